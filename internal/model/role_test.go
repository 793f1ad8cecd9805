package model

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	role, err := ParseRole("member")
	require.NoError(t, err)
	assert.Equal(t, RoleMember, role)

	role, err = ParseRole("admin")
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, role)

	_, err = ParseRole("owner")
	assert.Error(t, err, "owner is assigned at creation only")

	_, err = ParseRole("superuser")
	assert.Error(t, err)
}

func TestRoleAtLeast(t *testing.T) {
	assert.True(t, RoleOwner.AtLeast(RoleMember))
	assert.True(t, RoleOwner.AtLeast(RoleAdmin))
	assert.True(t, RoleOwner.AtLeast(RoleOwner))
	assert.True(t, RoleAdmin.AtLeast(RoleMember))
	assert.True(t, RoleAdmin.AtLeast(RoleAdmin))
	assert.False(t, RoleAdmin.AtLeast(RoleOwner))
	assert.True(t, RoleMember.AtLeast(RoleMember))
	assert.False(t, RoleMember.AtLeast(RoleAdmin))
	assert.False(t, RoleMember.AtLeast(RoleOwner))
}

func TestLinkExpiry(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	later := now.Add(time.Hour)

	link := &Link{}
	assert.False(t, link.ExpiredAt(now), "no bound means no expiry")
	assert.False(t, link.ClicksExhausted())
	assert.False(t, link.HasPassword())

	link.ExpiresAt = &later
	assert.False(t, link.ExpiredAt(now))
	assert.True(t, link.ExpiredAt(later), "the bound itself is expired")
	assert.True(t, link.ExpiredAt(later.Add(time.Second)))

	max := int64(3)
	link.MaxClicks = &max
	link.Clicks = 2
	assert.False(t, link.ClicksExhausted())
	link.Clicks = 3
	assert.True(t, link.ClicksExhausted())
}

func TestTeamMemberMembership(t *testing.T) {
	email := "pending@example.com"
	member := &TeamMember{InvitedEmail: &email, Status: MemberInvited}

	pending, ok := member.Membership().(Pending)
	require.True(t, ok)
	assert.Equal(t, email, pending.InvitedEmail)

	userID := uuid.New()
	member.UserID = &userID
	member.InvitedEmail = nil
	member.Status = MemberActive

	joined, ok := member.Membership().(Joined)
	require.True(t, ok)
	assert.Equal(t, userID, joined.UserID)
}

// Package model defines the persisted entities of the link registry.
//
// The registry is multi-tenant in the "shared database, shared schema"
// sense: every row carries its owner (and optionally a workspace/team
// scope), and every query in the repository filters by it. The central
// entity is Link; everything else either scopes links (Team, Workspace,
// Campaign, Domain) or gates what an owner may do with them
// (Subscription).
package model

import (
	"time"

	"github.com/google/uuid"
)

// DefaultDomain is the platform hostname used when a link is not bound
// to a verified custom domain.
const DefaultDomain = "short.ly"

// User is the local projection of an identity-provider account. The
// registry never authenticates credentials itself; it resolves a
// request's API key to one of these rows and passes the id down as the
// requester on every operation.
type User struct {
	ID         uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	Email      string    `gorm:"size:255;uniqueIndex;not null" json:"email"`
	APIKeyHash string    `gorm:"size:64;uniqueIndex;not null" json:"-"`
	Onboarded  bool      `gorm:"not null;default:false" json:"onboarded"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// Link is the authoritative mapping from (domain, short code) to a
// destination URL.
//
// Uniqueness of (domain, short_code) is enforced by the composite
// unique index, not by application-level pre-checks; the allocator's
// existence check is advisory only.
type Link struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	ShortCode string    `gorm:"size:50;uniqueIndex:idx_domain_code;not null" json:"short_code"`
	Domain    string    `gorm:"size:255;uniqueIndex:idx_domain_code;not null;default:'short.ly'" json:"domain"`

	Destination string `gorm:"type:text;not null" json:"destination"`
	Tags        string `gorm:"type:text" json:"tags"` // comma-separated, normalized lowercase
	Notes       string `gorm:"type:text" json:"notes"`

	// Protection. PasswordHash is a bcrypt digest; the plaintext is
	// never stored. Active=false hides the link from visitors entirely.
	PasswordHash string `gorm:"size:100" json:"-"`
	Active       bool   `gorm:"not null;default:true" json:"active"`

	// Expiry. Either bound may be unset. Clicks at or past MaxClicks
	// counts as expired.
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	MaxClicks *int64     `json:"max_clicks,omitempty"`

	// Clicks is mutated only by the repository's guarded atomic
	// increment on the successful-redirect path.
	Clicks int64 `gorm:"not null;default:0" json:"clicks"`

	UserID      *uuid.UUID `gorm:"type:uuid;index" json:"user_id,omitempty"` // nil for anonymous 24h links
	WorkspaceID *uuid.UUID `gorm:"type:uuid;index" json:"workspace_id,omitempty"`
	CampaignID  *uuid.UUID `gorm:"type:uuid;index" json:"campaign_id,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// HasPassword reports whether resolution must pass the password gate.
func (l *Link) HasPassword() bool { return l.PasswordHash != "" }

// ExpiredAt reports whether the link is past its date bound at the
// given instant.
func (l *Link) ExpiredAt(now time.Time) bool {
	return l.ExpiresAt != nil && !now.Before(*l.ExpiresAt)
}

// ClicksExhausted reports whether the click counter has reached the
// configured limit.
func (l *Link) ClicksExhausted() bool {
	return l.MaxClicks != nil && l.Clicks >= *l.MaxClicks
}

// Team groups users for shared link management. The creating user is
// the owner; that role is assigned exactly once, at creation, and is
// never reachable through the invite path.
type Team struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	OwnerID   uuid.UUID `gorm:"type:uuid;index;not null" json:"owner_id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// MemberStatus is the lifecycle state of a team membership row.
type MemberStatus string

const (
	MemberInvited MemberStatus = "invited"
	MemberActive  MemberStatus = "active"
)

// TeamMember joins a user (or a pending email invitation) to a team.
//
// Exactly one of UserID/InvitedEmail is authoritative at a time: while
// Status is "invited" the row is addressed by InvitedEmail, and the
// invited→active transition (which fills UserID and clears the email)
// happens exactly once, via a compare-and-swap on Status. Use
// Membership() instead of reading the nullable columns directly.
type TeamMember struct {
	ID     uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	TeamID uuid.UUID `gorm:"type:uuid;index;not null" json:"team_id"`

	UserID       *uuid.UUID `gorm:"type:uuid;index" json:"user_id,omitempty"`
	InvitedEmail *string    `gorm:"size:255;index" json:"invited_email,omitempty"`

	Role   Role         `gorm:"size:20;not null;default:'member'" json:"role"`
	Status MemberStatus `gorm:"size:20;not null;default:'invited'" json:"status"`

	InvitedBy uuid.UUID  `gorm:"type:uuid" json:"invited_by"`
	InvitedAt time.Time  `json:"invited_at"`
	JoinedAt  *time.Time `json:"joined_at,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// Membership is the sum-type view of a TeamMember row: a membership is
// either still pending on an email address or joined by a user.
type Membership interface{ isMembership() }

// Pending is a membership awaiting claim by the invited email.
type Pending struct{ InvitedEmail string }

// Joined is a membership held by a signed-up user.
type Joined struct{ UserID uuid.UUID }

func (Pending) isMembership() {}
func (Joined) isMembership()  {}

// Membership decodes the row into its tagged form.
func (m *TeamMember) Membership() Membership {
	if m.Status == MemberActive && m.UserID != nil {
		return Joined{UserID: *m.UserID}
	}
	email := ""
	if m.InvitedEmail != nil {
		email = *m.InvitedEmail
	}
	return Pending{InvitedEmail: email}
}

// Workspace is a team sub-grouping that owns links. Deleting a
// workspace deletes its links (an ownership boundary, unlike
// campaigns).
type Workspace struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	TeamID    uuid.UUID `gorm:"type:uuid;index;not null" json:"team_id"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	Color     string    `gorm:"size:20" json:"color"`
	Icon      string    `gorm:"size:50" json:"icon"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// Campaign is a non-owning grouping of links for attribution. Deleting
// a campaign unlinks its links instead of deleting them.
type Campaign struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;index;not null" json:"user_id"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// Domain is a custom hostname attached by a user. Until Verified it
// cannot be used as a link's domain.
type Domain struct {
	ID         uuid.UUID  `gorm:"type:uuid;primary_key" json:"id"`
	UserID     uuid.UUID  `gorm:"type:uuid;index;not null" json:"user_id"`
	Name       string     `gorm:"size:255;uniqueIndex;not null" json:"name"`
	Verified   bool       `gorm:"not null;default:false" json:"verified"`
	VerifiedAt *time.Time `json:"verified_at,omitempty"`
	CreatedAt  time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// Subscription attaches a billing plan to a user. For team billing the
// team owner's subscription is the one consulted.
type Subscription struct {
	ID        uuid.UUID  `gorm:"type:uuid;primary_key" json:"id"`
	UserID    uuid.UUID  `gorm:"type:uuid;index;not null" json:"user_id"`
	Plan      string     `gorm:"size:50;not null;default:'FREE'" json:"plan"`
	Status    string     `gorm:"size:20;not null;default:'ACTIVE'" json:"status"`
	StartDate time.Time  `json:"start_date"`
	EndDate   *time.Time `json:"end_date,omitempty"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

// ClickEvent is one successful resolution, recorded for analytics.
// Only derived attributes are kept; the raw client IP never reaches
// storage.
type ClickEvent struct {
	ID          uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	LinkID      uuid.UUID `gorm:"type:uuid;index;not null" json:"link_id"`
	Referrer    string    `gorm:"size:500" json:"referrer"`
	DeviceClass string    `gorm:"size:20" json:"device_class"` // desktop/mobile/tablet/bot/unknown
	Country     string    `gorm:"size:10" json:"country"`
	IPHash      string    `gorm:"size:64" json:"-"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// ActivityLog records dashboard mutations for the audit trail.
type ActivityLog struct {
	ID         uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	UserID     uuid.UUID `gorm:"type:uuid;index;not null" json:"user_id"`
	Action     string    `gorm:"size:50;not null" json:"action"`
	TargetType string    `gorm:"size:50" json:"target_type"`
	TargetID   string    `gorm:"size:64" json:"target_id"`
	Metadata   string    `gorm:"type:text" json:"metadata,omitempty"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
}

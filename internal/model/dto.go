package model

import (
	"time"

	"github.com/google/uuid"
)

// --- Request / response DTOs ---

// CreateLinkRequest creates a link for the authenticated user.
type CreateLinkRequest struct {
	Destination string     `json:"destination" binding:"required,url"`
	CustomCode  string     `json:"custom_code,omitempty"`
	Domain      string     `json:"domain,omitempty"` // must be a verified custom domain when set
	Tags        []string   `json:"tags,omitempty"`
	Notes       string     `json:"notes,omitempty"`
	Password    string     `json:"password,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	MaxClicks   *int64     `json:"max_clicks,omitempty"`
	WorkspaceID *uuid.UUID `json:"workspace_id,omitempty"`
	CampaignID  *uuid.UUID `json:"campaign_id,omitempty"`
}

// UpdateLinkRequest is a partial edit. Nil fields are left untouched.
// The short code is immutable after allocation and has no field here.
type UpdateLinkRequest struct {
	Destination *string    `json:"destination,omitempty"`
	Tags        []string   `json:"tags,omitempty"`
	Notes       *string    `json:"notes,omitempty"`
	Password    *string    `json:"password,omitempty"` // empty string clears the gate
	Active      *bool      `json:"active,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	ClearExpiry bool       `json:"clear_expiry,omitempty"`
	MaxClicks   *int64     `json:"max_clicks,omitempty"`
	CampaignID  *uuid.UUID `json:"campaign_id,omitempty"`
}

// LinkResponse is the dashboard view of a link.
type LinkResponse struct {
	ID          uuid.UUID  `json:"id"`
	ShortCode   string     `json:"short_code"`
	Domain      string     `json:"domain"`
	ShortURL    string     `json:"short_url"`
	Destination string     `json:"destination"`
	Tags        []string   `json:"tags"`
	Notes       string     `json:"notes,omitempty"`
	Active      bool       `json:"active"`
	Protected   bool       `json:"protected"`
	Clicks      int64      `json:"clicks"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	MaxClicks   *int64     `json:"max_clicks,omitempty"`
	WorkspaceID *uuid.UUID `json:"workspace_id,omitempty"`
	CampaignID  *uuid.UUID `json:"campaign_id,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// InviteRequest invites an email address into a team.
type InviteRequest struct {
	Email string `json:"email" binding:"required,email"`
	Role  string `json:"role,omitempty"` // member (default) or admin
}

// InviteResponse carries the invite link as a fallback when the mail
// transport is unconfigured or failed; the caller surfaces it directly.
type InviteResponse struct {
	MemberID   uuid.UUID `json:"member_id"`
	EmailSent  bool      `json:"email_sent"`
	InviteLink string    `json:"invite_link,omitempty"`
}

// UsageResponse reports current consumption against plan ceilings.
type UsageResponse struct {
	Plan          string `json:"plan"`
	LinksUsed     int64  `json:"links_used"`
	LinksLimit    int64  `json:"links_limit"`
	DomainsUsed   int64  `json:"domains_used"`
	DomainsLimit  int64  `json:"domains_limit"`
	ActiveLinks   int64  `json:"active_links"`
	TotalClicks   int64  `json:"total_clicks"`
}

// LinkAnalytics aggregates click events for one link.
type LinkAnalytics struct {
	TotalClicks int64            `json:"total_clicks"`
	ByDevice    map[string]int64 `json:"by_device"`
	ByCountry   map[string]int64 `json:"by_country"`
	ByReferrer  map[string]int64 `json:"by_referrer"`
}

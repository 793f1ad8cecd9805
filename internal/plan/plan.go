// Package plan is the billing boundary of the registry. Payment
// processing itself lives in an external gateway; this package only
// maps a user's current subscription row to the numeric ceilings the
// lifecycle guard enforces (links per month, team seats, custom
// domains).
package plan

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Limits are the numeric ceilings of a subscription tier.
type Limits struct {
	Name          string
	LinksPerMonth int64
	TeamMembers   int64
	CustomDomains int64
	PasswordGate  bool
}

// Catalog of tiers. Free stays deliberately tight; the seat count
// includes the owner.
var (
	Free = Limits{
		Name:          "FREE",
		LinksPerMonth: 100,
		TeamMembers:   2,
		CustomDomains: 0,
		PasswordGate:  false,
	}
	Starter = Limits{
		Name:          "STARTER",
		LinksPerMonth: 2000,
		TeamMembers:   3,
		CustomDomains: 2,
		PasswordGate:  true,
	}
	Professional = Limits{
		Name:          "PROFESSIONAL",
		LinksPerMonth: 5000,
		TeamMembers:   10,
		CustomDomains: 10,
		PasswordGate:  true,
	}
)

var byName = map[string]Limits{
	Free.Name:         Free,
	Starter.Name:      Starter,
	Professional.Name: Professional,
}

// ByName resolves a plan name stored on a subscription row, falling
// back to Free for anything unknown.
func ByName(name string) Limits {
	if l, ok := byName[name]; ok {
		return l
	}
	return Free
}

// SubscriptionSource is what the plan resolver needs from storage: the
// active, non-expired subscription plan name for a user, if any.
type SubscriptionSource interface {
	ActivePlanName(ctx context.Context, userID uuid.UUID, now time.Time) (string, error)
}

// Resolver turns a user id into that user's current limits.
type Resolver struct {
	source SubscriptionSource
}

func NewResolver(source SubscriptionSource) *Resolver {
	return &Resolver{source: source}
}

// LimitsFor returns the ceilings governing ownerID. Users without an
// active subscription are on the free tier; lookup errors degrade to
// Free as well so a billing outage never blocks reads, only the
// ceilings stay conservative.
func (r *Resolver) LimitsFor(ctx context.Context, ownerID uuid.UUID) Limits {
	name, err := r.source.ActivePlanName(ctx, ownerID, time.Now())
	if err != nil || name == "" {
		return Free
	}
	return ByName(name)
}

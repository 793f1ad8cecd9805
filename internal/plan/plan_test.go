package plan

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

type fakeSource struct {
	name string
	err  error
}

func (f fakeSource) ActivePlanName(ctx context.Context, userID uuid.UUID, now time.Time) (string, error) {
	return f.name, f.err
}

func TestByName(t *testing.T) {
	assert.Equal(t, Starter, ByName("STARTER"))
	assert.Equal(t, Professional, ByName("PROFESSIONAL"))
	assert.Equal(t, Free, ByName("FREE"))
	assert.Equal(t, Free, ByName(""), "unknown names fall back to free")
	assert.Equal(t, Free, ByName("ENTERPRISE"))
}

func TestLimitsFor(t *testing.T) {
	ctx := context.Background()
	id := uuid.New()

	assert.Equal(t, Starter, NewResolver(fakeSource{name: "STARTER"}).LimitsFor(ctx, id))
	assert.Equal(t, Free, NewResolver(fakeSource{}).LimitsFor(ctx, id), "no subscription means free")

	// Billing lookup failures degrade to the conservative tier instead
	// of failing the request.
	broken := NewResolver(fakeSource{err: errors.New("billing down")})
	assert.Equal(t, Free, broken.LimitsFor(ctx, id))
}

func TestCatalogOrdering(t *testing.T) {
	assert.Less(t, Free.LinksPerMonth, Starter.LinksPerMonth)
	assert.Less(t, Starter.LinksPerMonth, Professional.LinksPerMonth)
	assert.False(t, Free.PasswordGate)
	assert.True(t, Starter.PasswordGate)
	assert.Zero(t, Free.CustomDomains)
}

package repository

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Purplemerit/linkshortner-sub000/internal/model"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// sqlite permits one writer; serialize connections so concurrent
	// test goroutines queue instead of failing with a busy error.
	sqlDB.SetMaxOpenConns(1)

	repo := New(db, nil, zap.NewNop())
	require.NoError(t, repo.AutoMigrate())
	return repo
}

func seedUser(t *testing.T, repo *Repository, email string) *model.User {
	t.Helper()
	user := &model.User{
		ID:         uuid.New(),
		Email:      email,
		APIKeyHash: uuid.NewString(),
	}
	require.NoError(t, repo.CreateUser(context.Background(), user))
	return user
}

func seedLink(t *testing.T, repo *Repository, userID *uuid.UUID, domain, code string, mutate func(*model.Link)) *model.Link {
	t.Helper()
	link := &model.Link{
		ID:          uuid.New(),
		ShortCode:   code,
		Domain:      domain,
		Destination: "https://example.com/landing",
		Active:      true,
		UserID:      userID,
	}
	if mutate != nil {
		mutate(link)
	}
	require.NoError(t, repo.CreateLink(context.Background(), link))
	return link
}

func TestCreateLinkDuplicateCode(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	user := seedUser(t, repo, "dup@example.com")

	seedLink(t, repo, &user.ID, model.DefaultDomain, "promo", nil)

	err := repo.CreateLink(ctx, &model.Link{
		ID:          uuid.New(),
		ShortCode:   "promo",
		Domain:      model.DefaultDomain,
		Destination: "https://example.com/other",
		UserID:      &user.ID,
	})
	assert.ErrorIs(t, err, ErrDuplicateCode)

	// The same code on another domain is a distinct link.
	err = repo.CreateLink(ctx, &model.Link{
		ID:          uuid.New(),
		ShortCode:   "promo",
		Domain:      "go.example.com",
		Destination: "https://example.com/other",
		UserID:      &user.ID,
	})
	assert.NoError(t, err)
}

func TestCreateLinkConcurrentSameCode(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	user := seedUser(t, repo, "race@example.com")

	const writers = 4
	errs := make(chan error, writers)
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- repo.CreateLink(ctx, &model.Link{
				ID:          uuid.New(),
				ShortCode:   "contested",
				Domain:      model.DefaultDomain,
				Destination: "https://example.com/landing",
				UserID:      &user.ID,
			})
		}()
	}
	wg.Wait()
	close(errs)

	created := 0
	for err := range errs {
		if err == nil {
			created++
		} else {
			assert.ErrorIs(t, err, ErrDuplicateCode)
		}
	}
	assert.Equal(t, 1, created, "exactly one writer should win the index")
}

func TestFindByCode(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	user := seedUser(t, repo, "find@example.com")
	seedLink(t, repo, &user.ID, model.DefaultDomain, "docs", nil)

	link, err := repo.FindByCode(ctx, model.DefaultDomain, "docs")
	require.NoError(t, err)
	assert.Equal(t, "docs", link.ShortCode)

	_, err = repo.FindByCode(ctx, model.DefaultDomain, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	// Domain scopes the lookup.
	_, err = repo.FindByCode(ctx, "go.example.com", "docs")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestIncrementClicksGuard(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	user := seedUser(t, repo, "clicks@example.com")
	max := int64(2)
	link := seedLink(t, repo, &user.ID, model.DefaultDomain, "capped", func(l *model.Link) {
		l.MaxClicks = &max
	})

	for i := 0; i < 2; i++ {
		ok, err := repo.IncrementClicks(ctx, link.ID)
		require.NoError(t, err)
		assert.True(t, ok)
	}

	// At the limit the guard rejects; the counter must not move.
	ok, err := repo.IncrementClicks(ctx, link.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := repo.GetLinkByID(ctx, link.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Clicks)
}

func TestIncrementClicksConcurrentAtLimit(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	user := seedUser(t, repo, "lastclick@example.com")
	max := int64(2)
	link := seedLink(t, repo, &user.ID, model.DefaultDomain, "lastseat", func(l *model.Link) {
		l.MaxClicks = &max
		l.Clicks = 1
	})

	const visitors = 4
	results := make(chan bool, visitors)
	var wg sync.WaitGroup
	for i := 0; i < visitors; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := repo.IncrementClicks(ctx, link.ID)
			assert.NoError(t, err)
			results <- ok
		}()
	}
	wg.Wait()
	close(results)

	granted := 0
	for ok := range results {
		if ok {
			granted++
		}
	}
	assert.Equal(t, 1, granted, "only one visitor gets the last click")

	got, err := repo.GetLinkByID(ctx, link.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Clicks)
}

func TestIncrementClicksUnlimited(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	user := seedUser(t, repo, "unlimited@example.com")
	link := seedLink(t, repo, &user.ID, model.DefaultDomain, "open", nil)

	for i := 0; i < 5; i++ {
		ok, err := repo.IncrementClicks(ctx, link.ID)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	got, err := repo.GetLinkByID(ctx, link.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5), got.Clicks)
}

func TestUpdateLinkPreservesClickDelta(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	user := seedUser(t, repo, "edit@example.com")
	link := seedLink(t, repo, &user.ID, model.DefaultDomain, "edited", nil)

	// Dashboard edit loads a snapshot before the visit lands.
	snapshot, err := repo.GetLinkByID(ctx, link.ID)
	require.NoError(t, err)

	ok, err := repo.IncrementClicks(ctx, link.ID)
	require.NoError(t, err)
	require.True(t, ok)

	snapshot.Notes = "updated from the dashboard"
	require.NoError(t, repo.UpdateLink(ctx, snapshot))

	got, err := repo.GetLinkByID(ctx, link.ID)
	require.NoError(t, err)
	assert.Equal(t, "updated from the dashboard", got.Notes)
	assert.Equal(t, int64(1), got.Clicks, "click delta must survive a concurrent edit")
}

func TestDeleteLinkIdempotent(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	user := seedUser(t, repo, "delete@example.com")
	link := seedLink(t, repo, &user.ID, model.DefaultDomain, "gone", nil)

	require.NoError(t, repo.DeleteLink(ctx, link.ID))
	_, err := repo.GetLinkByID(ctx, link.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	// Second delete is a no-op, not an error.
	assert.NoError(t, repo.DeleteLink(ctx, link.ID))
}

func TestClaimInviteExactlyOnce(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	owner := seedUser(t, repo, "owner@example.com")

	team := &model.Team{ID: uuid.New(), Name: "acme", OwnerID: owner.ID}
	ownerRow := &model.TeamMember{
		ID:     uuid.New(),
		TeamID: team.ID,
		UserID: &owner.ID,
		Role:   model.RoleOwner,
		Status: model.MemberActive,
	}
	require.NoError(t, repo.CreateTeam(ctx, team, ownerRow))

	email := "invitee@example.com"
	invite := &model.TeamMember{
		ID:           uuid.New(),
		TeamID:       team.ID,
		InvitedEmail: &email,
		Role:         model.RoleMember,
		Status:       model.MemberInvited,
		InvitedBy:    owner.ID,
		InvitedAt:    time.Now(),
	}
	require.NoError(t, repo.CreateTeamMember(ctx, invite))

	// Two claimers race; the compare-and-swap lets exactly one through.
	claimerA, claimerB := uuid.New(), uuid.New()
	results := make(chan bool, 2)
	var wg sync.WaitGroup
	for _, claimer := range []uuid.UUID{claimerA, claimerB} {
		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()
			ok, err := repo.ClaimInvite(ctx, invite.ID, id, time.Now())
			assert.NoError(t, err)
			results <- ok
		}(claimer)
	}
	wg.Wait()
	close(results)

	claimed := 0
	for ok := range results {
		if ok {
			claimed++
		}
	}
	assert.Equal(t, 1, claimed)

	got, err := repo.GetTeamMemberByID(ctx, invite.ID)
	require.NoError(t, err)
	assert.Equal(t, model.MemberActive, got.Status)
	require.NotNil(t, got.UserID)
	assert.Nil(t, got.InvitedEmail)
	assert.NotNil(t, got.JoinedAt)

	joined, ok := got.Membership().(model.Joined)
	require.True(t, ok)
	assert.Contains(t, []uuid.UUID{claimerA, claimerB}, joined.UserID)
}

func TestDeleteWorkspaceCascadesLinks(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	owner := seedUser(t, repo, "ws@example.com")

	team := &model.Team{ID: uuid.New(), Name: "acme", OwnerID: owner.ID}
	ownerRow := &model.TeamMember{ID: uuid.New(), TeamID: team.ID, UserID: &owner.ID, Role: model.RoleOwner, Status: model.MemberActive}
	require.NoError(t, repo.CreateTeam(ctx, team, ownerRow))

	ws := &model.Workspace{ID: uuid.New(), TeamID: team.ID, Name: "launch"}
	require.NoError(t, repo.CreateWorkspace(ctx, ws))

	inside := seedLink(t, repo, &owner.ID, model.DefaultDomain, "inside", func(l *model.Link) {
		l.WorkspaceID = &ws.ID
	})
	outside := seedLink(t, repo, &owner.ID, model.DefaultDomain, "outside", nil)

	require.NoError(t, repo.DeleteWorkspace(ctx, ws.ID))

	_, err := repo.GetLinkByID(ctx, inside.ID)
	assert.ErrorIs(t, err, ErrNotFound, "workspace links are deleted with it")

	_, err = repo.GetLinkByID(ctx, outside.ID)
	assert.NoError(t, err)

	_, err = repo.GetWorkspaceByID(ctx, ws.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteCampaignUnlinksLinks(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	owner := seedUser(t, repo, "camp@example.com")

	campaign := &model.Campaign{ID: uuid.New(), UserID: owner.ID, Name: "summer"}
	require.NoError(t, repo.CreateCampaign(ctx, campaign))

	link := seedLink(t, repo, &owner.ID, model.DefaultDomain, "tagged", func(l *model.Link) {
		l.CampaignID = &campaign.ID
	})

	require.NoError(t, repo.DeleteCampaign(ctx, campaign.ID))

	// The link survives, detached from the deleted campaign.
	got, err := repo.GetLinkByID(ctx, link.ID)
	require.NoError(t, err)
	assert.Nil(t, got.CampaignID)

	_, err = repo.GetCampaignByID(ctx, campaign.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMarkDomainVerifiedIdempotent(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	owner := seedUser(t, repo, "domain@example.com")

	d := &model.Domain{ID: uuid.New(), UserID: owner.ID, Name: "go.example.com"}
	require.NoError(t, repo.CreateDomain(ctx, d))

	first := time.Now().Add(-time.Hour).Truncate(time.Second)
	require.NoError(t, repo.MarkDomainVerified(ctx, d.ID, first))

	// Re-verifying later must not move VerifiedAt.
	require.NoError(t, repo.MarkDomainVerified(ctx, d.ID, time.Now()))

	got, err := repo.GetDomainByID(ctx, d.ID)
	require.NoError(t, err)
	assert.True(t, got.Verified)
	require.NotNil(t, got.VerifiedAt)
	assert.WithinDuration(t, first, *got.VerifiedAt, time.Second)
}

func TestActivePlanName(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	user := seedUser(t, repo, "plan@example.com")
	now := time.Now()

	// No subscription rows at all.
	name, err := repo.ActivePlanName(ctx, user.ID, now)
	require.NoError(t, err)
	assert.Empty(t, name)

	ended := now.Add(-24 * time.Hour)
	require.NoError(t, repo.CreateSubscription(ctx, &model.Subscription{
		ID:        uuid.New(),
		UserID:    user.ID,
		Plan:      "STARTER",
		Status:    "ACTIVE",
		StartDate: now.Add(-48 * time.Hour),
		EndDate:   &ended,
	}))

	// Lapsed subscription does not count.
	name, err = repo.ActivePlanName(ctx, user.ID, now)
	require.NoError(t, err)
	assert.Empty(t, name)

	require.NoError(t, repo.CreateSubscription(ctx, &model.Subscription{
		ID:        uuid.New(),
		UserID:    user.ID,
		Plan:      "PROFESSIONAL",
		Status:    "ACTIVE",
		StartDate: now,
	}))

	name, err = repo.ActivePlanName(ctx, user.ID, now)
	require.NoError(t, err)
	assert.Equal(t, "PROFESSIONAL", name)
}

func TestCountLinksCreatedSince(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	user := seedUser(t, repo, "count@example.com")

	seedLink(t, repo, &user.ID, model.DefaultDomain, "one", nil)
	seedLink(t, repo, &user.ID, model.DefaultDomain, "two", nil)

	count, err := repo.CountLinksCreatedSince(ctx, user.ID, time.Now().Add(-time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	count, err = repo.CountLinksCreatedSince(ctx, user.ID, time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestDeleteExpiredAnonymous(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	user := seedUser(t, repo, "sweep@example.com")

	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)

	stale := seedLink(t, repo, nil, model.DefaultDomain, "stale1", func(l *model.Link) {
		l.ExpiresAt = &past
	})
	fresh := seedLink(t, repo, nil, model.DefaultDomain, "fresh1", func(l *model.Link) {
		l.ExpiresAt = &future
	})
	// Owned links are never swept, expired or not.
	owned := seedLink(t, repo, &user.ID, model.DefaultDomain, "owned1", func(l *model.Link) {
		l.ExpiresAt = &past
	})

	removed, err := repo.DeleteExpiredAnonymous(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	_, err = repo.GetLinkByID(ctx, stale.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = repo.GetLinkByID(ctx, fresh.ID)
	assert.NoError(t, err)
	_, err = repo.GetLinkByID(ctx, owned.ID)
	assert.NoError(t, err)
}

func TestAggregateClicks(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	user := seedUser(t, repo, "agg@example.com")
	link := seedLink(t, repo, &user.ID, model.DefaultDomain, "stats", nil)

	events := []model.ClickEvent{
		{ID: uuid.New(), LinkID: link.ID, DeviceClass: "mobile", Country: "DE", Referrer: "direct"},
		{ID: uuid.New(), LinkID: link.ID, DeviceClass: "mobile", Country: "DE", Referrer: "news.ycombinator.com"},
		{ID: uuid.New(), LinkID: link.ID, DeviceClass: "desktop", Country: "US", Referrer: "direct"},
	}
	for i := range events {
		require.NoError(t, repo.CreateClickEvent(ctx, &events[i]))
	}

	agg, err := repo.AggregateClicks(ctx, link.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), agg.TotalClicks)
	assert.Equal(t, int64(2), agg.ByDevice["mobile"])
	assert.Equal(t, int64(1), agg.ByDevice["desktop"])
	assert.Equal(t, int64(2), agg.ByCountry["DE"])
	assert.Equal(t, int64(2), agg.ByReferrer["direct"])
}

func TestAllowRateWithoutRedis(t *testing.T) {
	repo := newTestRepo(t)
	ok, err := repo.AllowRate(context.Background(), "ratelimit:user:x", 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "no redis configured means fail-open")
}

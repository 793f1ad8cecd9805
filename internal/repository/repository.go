// Package repository is the data access layer: the single writer of
// truth for links and the entities that scope them. All coordination
// between concurrent requests is pushed down to the database here —
// uniqueness via the (domain, short_code) index, click counting via a
// guarded atomic UPDATE, invite claiming via compare-and-swap — so the
// layers above never hold link state that could go stale.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Purplemerit/linkshortner-sub000/internal/model"
)

var (
	// ErrDuplicateCode is the translated unique-index violation on
	// (domain, short_code). Detected at insert time, after any
	// advisory pre-check has already passed.
	ErrDuplicateCode = errors.New("short code already exists for domain")

	// ErrNotFound is the translated empty-result error.
	ErrNotFound = errors.New("record not found")
)

// Repository wraps the database and an optional redis client. The
// redis handle may be nil (tests, degraded deployments); every redis
// path checks for that and falls through to the database.
type Repository struct {
	db     *gorm.DB
	rdb    *redis.Client
	logger *zap.Logger
}

func New(db *gorm.DB, rdb *redis.Client, logger *zap.Logger) *Repository {
	return &Repository{db: db, rdb: rdb, logger: logger}
}

// AutoMigrate creates or updates the schema. Production deployments
// run dedicated migrations; this covers dev and tests.
func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(
		&model.User{},
		&model.Link{},
		&model.Team{},
		&model.TeamMember{},
		&model.Workspace{},
		&model.Campaign{},
		&model.Domain{},
		&model.Subscription{},
		&model.ClickEvent{},
		&model.ActivityLog{},
	)
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicateCode
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	default:
		return err
	}
}

// ==================== users ====================

func (r *Repository) CreateUser(ctx context.Context, user *model.User) error {
	return translate(r.db.WithContext(ctx).Create(user).Error)
}

func (r *Repository) GetUserByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).First(&user, "email = ?", email).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

// GetUserByAPIKeyHash resolves an API key digest to a user. This runs
// on every authenticated request, so resolved users are cached in
// redis for a few minutes keyed by the digest (never the raw key).
func (r *Repository) GetUserByAPIKeyHash(ctx context.Context, hash string) (*model.User, error) {
	cacheKey := "user:apikey:" + hash
	if r.rdb != nil {
		if cached, err := r.rdb.Get(ctx, cacheKey).Result(); err == nil {
			var user model.User
			if err := unmarshalJSON(cached, &user); err == nil {
				return &user, nil
			}
		}
	}

	var user model.User
	if err := r.db.WithContext(ctx).First(&user, "api_key_hash = ?", hash).Error; err != nil {
		return nil, translate(err)
	}

	if r.rdb != nil {
		if data, err := marshalJSON(user); err == nil {
			r.rdb.Set(ctx, cacheKey, data, 5*time.Minute)
		}
	}
	return &user, nil
}

// ==================== links ====================

// CreateLink inserts a link. The composite unique index is the
// authoritative uniqueness check; a concurrent create that wins the
// race surfaces here as ErrDuplicateCode.
func (r *Repository) CreateLink(ctx context.Context, link *model.Link) error {
	return translate(r.db.WithContext(ctx).Create(link).Error)
}

// FindByCode is the hot read path, one indexed point lookup per
// inbound visit. Deliberately uncached: active, expiry and click state
// feed redirect decisions directly and must not be stale.
func (r *Repository) FindByCode(ctx context.Context, domain, code string) (*model.Link, error) {
	var link model.Link
	err := r.db.WithContext(ctx).
		Where("domain = ? AND short_code = ?", domain, code).
		First(&link).Error
	if err != nil {
		return nil, translate(err)
	}
	return &link, nil
}

// CodeExists is the allocator's advisory pre-check.
func (r *Repository) CodeExists(ctx context.Context, domain, code string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Link{}).
		Where("domain = ? AND short_code = ?", domain, code).
		Count(&count).Error
	return count > 0, err
}

func (r *Repository) GetLinkByID(ctx context.Context, id uuid.UUID) (*model.Link, error) {
	var link model.Link
	if err := r.db.WithContext(ctx).First(&link, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &link, nil
}

// UpdateLink persists an edited link row. The click counter is
// excluded from the write: it belongs to IncrementClicks alone, and
// writing back the snapshot loaded before the edit would erase any
// click that landed in between.
func (r *Repository) UpdateLink(ctx context.Context, link *model.Link) error {
	return translate(r.db.WithContext(ctx).Omit("clicks", "created_at").Save(link).Error)
}

// DeleteLink removes a link. Idempotent: deleting an absent id is a
// successful no-op.
func (r *Repository) DeleteLink(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&model.Link{}, "id = ?", id).Error
}

// IncrementClicks bumps the counter by one, guarded by the click
// limit, in a single UPDATE. This closes two races at once: a
// concurrent dashboard edit cannot clobber the delta (no application
// read-modify-write), and two visitors racing the last allowed click
// cannot both get it. Returns false when the guard rejected the
// increment, i.e. the link is exhausted.
func (r *Repository) IncrementClicks(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Link{}).
		Where("id = ? AND (max_clicks IS NULL OR clicks < max_clicks)", id).
		UpdateColumn("clicks", gorm.Expr("clicks + 1"))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ListLinksByUser returns a user's links, newest first, paginated.
func (r *Repository) ListLinksByUser(ctx context.Context, userID uuid.UUID, offset, limit int) ([]model.Link, int64, error) {
	var links []model.Link
	var total int64

	query := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if err := query.Model(&model.Link{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := query.Order("created_at DESC").Offset(offset).Limit(limit).Find(&links).Error; err != nil {
		return nil, 0, err
	}
	return links, total, nil
}

func (r *Repository) ListLinksByWorkspace(ctx context.Context, workspaceID uuid.UUID) ([]model.Link, error) {
	var links []model.Link
	err := r.db.WithContext(ctx).
		Where("workspace_id = ?", workspaceID).
		Order("created_at DESC").
		Find(&links).Error
	return links, err
}

func (r *Repository) ListLinksByCampaign(ctx context.Context, campaignID uuid.UUID) ([]model.Link, error) {
	var links []model.Link
	err := r.db.WithContext(ctx).
		Where("campaign_id = ?", campaignID).
		Order("created_at DESC").
		Find(&links).Error
	return links, err
}

// CountLinksCreatedSince counts a user's links created at or after the
// cutoff, for the monthly plan ceiling.
func (r *Repository) CountLinksCreatedSince(ctx context.Context, userID uuid.UUID, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Link{}).
		Where("user_id = ? AND created_at >= ?", userID, since).
		Count(&count).Error
	return count, err
}

// DeleteExpiredAnonymous prunes anonymous links past their forced TTL.
func (r *Repository) DeleteExpiredAnonymous(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("user_id IS NULL AND expires_at IS NOT NULL AND expires_at <= ?", now).
		Delete(&model.Link{})
	return res.RowsAffected, res.Error
}

// ==================== teams & members ====================

// CreateTeam inserts the team and its owner membership in one
// transaction, so a team can never exist without its owner row.
func (r *Repository) CreateTeam(ctx context.Context, team *model.Team, owner *model.TeamMember) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(team).Error; err != nil {
			return err
		}
		return tx.Create(owner).Error
	})
}

func (r *Repository) GetTeamByID(ctx context.Context, id uuid.UUID) (*model.Team, error) {
	var team model.Team
	if err := r.db.WithContext(ctx).First(&team, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &team, nil
}

// ListTeamsByUser returns the teams where the user holds an active
// membership, oldest first.
func (r *Repository) ListTeamsByUser(ctx context.Context, userID uuid.UUID) ([]model.Team, error) {
	var teams []model.Team
	err := r.db.WithContext(ctx).
		Joins("JOIN team_members ON team_members.team_id = teams.id").
		Where("team_members.user_id = ? AND team_members.status = ?", userID, model.MemberActive).
		Order("teams.created_at").
		Find(&teams).Error
	return teams, err
}

func (r *Repository) GetTeamMember(ctx context.Context, teamID, userID uuid.UUID) (*model.TeamMember, error) {
	var member model.TeamMember
	err := r.db.WithContext(ctx).
		Where("team_id = ? AND user_id = ?", teamID, userID).
		First(&member).Error
	if err != nil {
		return nil, translate(err)
	}
	return &member, nil
}

func (r *Repository) GetTeamMemberByID(ctx context.Context, memberID uuid.UUID) (*model.TeamMember, error) {
	var member model.TeamMember
	if err := r.db.WithContext(ctx).First(&member, "id = ?", memberID).Error; err != nil {
		return nil, translate(err)
	}
	return &member, nil
}

func (r *Repository) FindInviteByEmail(ctx context.Context, teamID uuid.UUID, email string) (*model.TeamMember, error) {
	var member model.TeamMember
	err := r.db.WithContext(ctx).
		Where("team_id = ? AND invited_email = ?", teamID, email).
		First(&member).Error
	if err != nil {
		return nil, translate(err)
	}
	return &member, nil
}

// FindPendingInvites returns all invited rows addressed to an email,
// across teams. Used by the sign-in sync to claim memberships.
func (r *Repository) FindPendingInvites(ctx context.Context, email string) ([]model.TeamMember, error) {
	var members []model.TeamMember
	err := r.db.WithContext(ctx).
		Where("invited_email = ? AND status = ?", email, model.MemberInvited).
		Find(&members).Error
	return members, err
}

func (r *Repository) CreateTeamMember(ctx context.Context, member *model.TeamMember) error {
	return translate(r.db.WithContext(ctx).Create(member).Error)
}

// CountTeamMembers counts all rows for a team, invited ones included:
// a pending seat still occupies a seat against the owner's plan.
func (r *Repository) CountTeamMembers(ctx context.Context, teamID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.TeamMember{}).
		Where("team_id = ?", teamID).
		Count(&count).Error
	return count, err
}

// ClaimInvite flips an invited row to active for the given user. The
// WHERE clause conditions the write on the row still being in invited
// state, so when a sign-up sync and a manual claim race, exactly one
// wins; the loser sees zero rows affected and reports false.
func (r *Repository) ClaimInvite(ctx context.Context, memberID, userID uuid.UUID, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.TeamMember{}).
		Where("id = ? AND status = ?", memberID, model.MemberInvited).
		Updates(map[string]interface{}{
			"user_id":       userID,
			"invited_email": nil,
			"status":        model.MemberActive,
			"joined_at":     now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// DeleteTeamMember removes a membership row. Idempotent like link
// deletion.
func (r *Repository) DeleteTeamMember(ctx context.Context, memberID uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&model.TeamMember{}, "id = ?", memberID).Error
}

// ==================== workspaces ====================

func (r *Repository) CreateWorkspace(ctx context.Context, ws *model.Workspace) error {
	return translate(r.db.WithContext(ctx).Create(ws).Error)
}

func (r *Repository) GetWorkspaceByID(ctx context.Context, id uuid.UUID) (*model.Workspace, error) {
	var ws model.Workspace
	if err := r.db.WithContext(ctx).First(&ws, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &ws, nil
}

func (r *Repository) UpdateWorkspace(ctx context.Context, ws *model.Workspace) error {
	return translate(r.db.WithContext(ctx).Save(ws).Error)
}

func (r *Repository) ListWorkspacesByTeam(ctx context.Context, teamID uuid.UUID) ([]model.Workspace, error) {
	var workspaces []model.Workspace
	err := r.db.WithContext(ctx).
		Where("team_id = ?", teamID).
		Order("created_at").
		Find(&workspaces).Error
	return workspaces, err
}

// DeleteWorkspace removes the workspace and everything it owns.
// Workspaces are an ownership boundary, so contained links go with
// them — contrast DeleteCampaign, which only unlinks.
func (r *Repository) DeleteWorkspace(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("workspace_id = ?", id).Delete(&model.Link{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Workspace{}, "id = ?", id).Error
	})
}

// ==================== campaigns ====================

func (r *Repository) CreateCampaign(ctx context.Context, c *model.Campaign) error {
	return translate(r.db.WithContext(ctx).Create(c).Error)
}

func (r *Repository) GetCampaignByID(ctx context.Context, id uuid.UUID) (*model.Campaign, error) {
	var c model.Campaign
	if err := r.db.WithContext(ctx).First(&c, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

func (r *Repository) ListCampaignsByUser(ctx context.Context, userID uuid.UUID) ([]model.Campaign, error) {
	var campaigns []model.Campaign
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&campaigns).Error
	return campaigns, err
}

// DeleteCampaign removes the campaign and detaches its links; the
// links themselves survive.
func (r *Repository) DeleteCampaign(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&model.Link{}).
			Where("campaign_id = ?", id).
			UpdateColumn("campaign_id", nil).Error
		if err != nil {
			return err
		}
		return tx.Delete(&model.Campaign{}, "id = ?", id).Error
	})
}

// ==================== domains ====================

func (r *Repository) CreateDomain(ctx context.Context, d *model.Domain) error {
	return translate(r.db.WithContext(ctx).Create(d).Error)
}

func (r *Repository) GetDomainByName(ctx context.Context, name string) (*model.Domain, error) {
	var d model.Domain
	if err := r.db.WithContext(ctx).First(&d, "name = ?", name).Error; err != nil {
		return nil, translate(err)
	}
	return &d, nil
}

func (r *Repository) GetDomainByID(ctx context.Context, id uuid.UUID) (*model.Domain, error) {
	var d model.Domain
	if err := r.db.WithContext(ctx).First(&d, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &d, nil
}

func (r *Repository) ListDomainsByUser(ctx context.Context, userID uuid.UUID) ([]model.Domain, error) {
	var domains []model.Domain
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at").
		Find(&domains).Error
	return domains, err
}

func (r *Repository) CountDomainsByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Domain{}).
		Where("user_id = ?", userID).
		Count(&count).Error
	return count, err
}

// MarkDomainVerified is idempotent; verifying a verified domain keeps
// the original VerifiedAt.
func (r *Repository) MarkDomainVerified(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).Model(&model.Domain{}).
		Where("id = ? AND verified = ?", id, false).
		Updates(map[string]interface{}{"verified": true, "verified_at": at}).Error
}

func (r *Repository) DeleteDomain(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&model.Domain{}, "id = ?", id).Error
}

// ==================== subscriptions ====================

// ActivePlanName implements plan.SubscriptionSource.
func (r *Repository) ActivePlanName(ctx context.Context, userID uuid.UUID, now time.Time) (string, error) {
	var sub model.Subscription
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND status = ? AND (end_date IS NULL OR end_date > ?)", userID, "ACTIVE", now).
		Order("created_at DESC").
		First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return sub.Plan, nil
}

func (r *Repository) CreateSubscription(ctx context.Context, sub *model.Subscription) error {
	return translate(r.db.WithContext(ctx).Create(sub).Error)
}

// ==================== analytics & audit ====================

func (r *Repository) CreateClickEvent(ctx context.Context, event *model.ClickEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

// AggregateClicks groups a link's click events by device, country and
// referrer for the analytics panel.
func (r *Repository) AggregateClicks(ctx context.Context, linkID uuid.UUID) (*model.LinkAnalytics, error) {
	agg := &model.LinkAnalytics{
		ByDevice:   map[string]int64{},
		ByCountry:  map[string]int64{},
		ByReferrer: map[string]int64{},
	}

	if err := r.db.WithContext(ctx).Model(&model.ClickEvent{}).
		Where("link_id = ?", linkID).
		Count(&agg.TotalClicks).Error; err != nil {
		return nil, err
	}

	type bucket struct {
		Key   string
		Count int64
	}
	group := func(column string, into map[string]int64) error {
		var rows []bucket
		err := r.db.WithContext(ctx).Model(&model.ClickEvent{}).
			Select(fmt.Sprintf("%s AS key, COUNT(*) AS count", column)).
			Where("link_id = ?", linkID).
			Group(column).
			Scan(&rows).Error
		if err != nil {
			return err
		}
		for _, row := range rows {
			into[row.Key] = row.Count
		}
		return nil
	}

	if err := group("device_class", agg.ByDevice); err != nil {
		return nil, err
	}
	if err := group("country", agg.ByCountry); err != nil {
		return nil, err
	}
	if err := group("referrer", agg.ByReferrer); err != nil {
		return nil, err
	}
	return agg, nil
}

// UserStats summarizes a user's links for the usage endpoint.
func (r *Repository) UserStats(ctx context.Context, userID uuid.UUID) (active, totalClicks int64, err error) {
	if err = r.db.WithContext(ctx).Model(&model.Link{}).
		Where("user_id = ? AND active = ?", userID, true).
		Count(&active).Error; err != nil {
		return
	}
	err = r.db.WithContext(ctx).Model(&model.Link{}).
		Where("user_id = ?", userID).
		Select("COALESCE(SUM(clicks), 0)").
		Scan(&totalClicks).Error
	return
}

func (r *Repository) CreateActivityLog(ctx context.Context, entry *model.ActivityLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *Repository) ListActivityLogs(ctx context.Context, userID uuid.UUID, limit int) ([]model.ActivityLog, error) {
	var logs []model.ActivityLog
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&logs).Error
	return logs, err
}

// ==================== rate limiting (redis) ====================

// AllowRate is a sliding-window counter over a redis sorted set,
// shared by the per-user API limiter and the password-attempt
// throttle. With no redis configured it allows everything.
func (r *Repository) AllowRate(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if r.rdb == nil {
		return true, nil
	}

	now := time.Now()
	windowStart := now.Add(-window).UnixNano()

	pipe := r.rdb.Pipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", fmt.Sprintf("%d", windowStart))
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(now.UnixNano()), Member: fmt.Sprintf("%d", now.UnixNano())})
	countCmd := pipe.ZCard(ctx, key)
	pipe.Expire(ctx, key, 2*window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}
	return countCmd.Val() <= int64(limit), nil
}

// HealthCheck verifies the database and, when configured, redis.
func (r *Repository) HealthCheck(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("acquire sql db: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping: %w", err)
	}
	if r.rdb != nil {
		if err := r.rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis ping: %w", err)
		}
	}
	return nil
}

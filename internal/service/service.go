// Package service orchestrates the link registry: code allocation,
// link lifecycle, resolution, teams and invitations, workspaces,
// campaigns and custom domains. Handlers stay thin; everything that
// decides is here, and everything that coordinates concurrent writers
// is pushed further down into the repository.
package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/Purplemerit/linkshortner-sub000/internal/model"
	"github.com/Purplemerit/linkshortner-sub000/internal/plan"
	"github.com/Purplemerit/linkshortner-sub000/internal/repository"
	"github.com/Purplemerit/linkshortner-sub000/internal/shortcode"
)

// Service wires the registry components together. The clock is
// injectable for expiry tests.
type Service struct {
	repo      *repository.Repository
	allocator *shortcode.Allocator
	plans     *plan.Resolver
	mailer    Mailer
	logger    *zap.Logger
	baseURL   string
	now       func() time.Time

	// DNS verification polling cadence, overridable in tests.
	verifyInterval time.Duration
	verifyTimeout  time.Duration
}

// Mailer is the outbound mail boundary. Send failures are recovered by
// the caller (the invite flow falls back to returning the link), never
// silently dropped.
type Mailer interface {
	Send(ctx context.Context, to, subject, html string) error
}

func New(repo *repository.Repository, mailer Mailer, baseURL string, logger *zap.Logger) (*Service, error) {
	alloc, err := shortcode.New(repo.CodeExists)
	if err != nil {
		return nil, err
	}
	return &Service{
		repo:      repo,
		allocator: alloc,
		plans:     plan.NewResolver(repo),
		mailer:    mailer,
		logger:    logger,
		baseURL:   strings.TrimRight(baseURL, "/"),
		now:       time.Now,

		verifyInterval: verifyPollInterval,
		verifyTimeout:  verifyPollTimeout,
	}, nil
}

// ==================== users / identity boundary ====================

// RegisterUser provisions the local projection of an identity-provider
// account and issues an API key. The plaintext key is returned exactly
// once; only its digest is stored.
func (s *Service) RegisterUser(ctx context.Context, email string) (*model.User, string, error) {
	apiKey := generateAPIKey()
	user := &model.User{
		ID:         uuid.New(),
		Email:      strings.ToLower(strings.TrimSpace(email)),
		APIKeyHash: hashAPIKey(apiKey),
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, "", fmt.Errorf("create user: %w", err)
	}

	// Sign-in sync: claim any memberships invited to this email.
	if _, err := s.ClaimInvites(ctx, user.ID, user.Email); err != nil {
		s.logger.Error("invite claim during registration failed",
			zap.String("user_id", user.ID.String()), zap.Error(err))
	}

	s.logger.Info("user registered",
		zap.String("user_id", user.ID.String()),
		zap.String("email", user.Email),
	)
	return user, apiKey, nil
}

// Authenticate resolves an API key to its user.
func (s *Service) Authenticate(ctx context.Context, apiKey string) (*model.User, error) {
	user, err := s.repo.GetUserByAPIKeyHash(ctx, hashAPIKey(apiKey))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrForbidden
	}
	return user, err
}

// ==================== link lifecycle ====================

// CreateLink allocates a code and persists a link for ownerID. The
// allocator's availability check is advisory; if a concurrent create
// wins the race on the same code, the insert's unique-index violation
// comes back as ErrCodeTaken.
func (s *Service) CreateLink(ctx context.Context, ownerID uuid.UUID, req *model.CreateLinkRequest) (*model.Link, error) {
	if err := validateDestination(req.Destination); err != nil {
		return nil, err
	}

	limits := s.plans.LimitsFor(ctx, ownerID)
	if err := s.validateCreate(ctx, ownerID, limits); err != nil {
		return nil, err
	}
	if err := validateExpirationPatch(req.ExpiresAt, req.MaxClicks, s.now()); err != nil {
		return nil, err
	}
	if req.Password != "" && !limits.PasswordGate {
		return nil, fmt.Errorf("%w: password protection requires a paid plan", ErrLimitExceeded)
	}

	domain := model.DefaultDomain
	if req.Domain != "" && req.Domain != model.DefaultDomain {
		if err := s.checkCustomDomain(ctx, ownerID, req.Domain); err != nil {
			return nil, err
		}
		domain = req.Domain
	}

	if req.WorkspaceID != nil {
		if err := s.checkWorkspaceRole(ctx, *req.WorkspaceID, ownerID, model.RoleMember); err != nil {
			return nil, err
		}
	}

	code, err := s.allocator.Allocate(ctx, domain, strings.ToLower(req.CustomCode))
	if err != nil {
		return nil, mapAllocError(err)
	}

	link := &model.Link{
		ID:          uuid.New(),
		ShortCode:   code,
		Domain:      domain,
		Destination: req.Destination,
		Tags:        normalizeTags(req.Tags),
		Notes:       req.Notes,
		Active:      true,
		ExpiresAt:   req.ExpiresAt,
		MaxClicks:   req.MaxClicks,
		UserID:      &ownerID,
		WorkspaceID: req.WorkspaceID,
		CampaignID:  req.CampaignID,
	}
	if req.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		link.PasswordHash = string(hash)
	}

	if err := s.repo.CreateLink(ctx, link); err != nil {
		if errors.Is(err, repository.ErrDuplicateCode) {
			return nil, ErrCodeTaken
		}
		return nil, fmt.Errorf("create link: %w", err)
	}

	s.audit(ownerID, "link.create", "link", link.ID.String(), code)
	s.logger.Info("link created",
		zap.String("user_id", ownerID.String()),
		zap.String("domain", domain),
		zap.String("code", code),
	)
	return link, nil
}

// CreateAnonymousLink is the quick-shorten path for visitors without
// an account. No owner, no custom code, and a forced 24h expiry.
func (s *Service) CreateAnonymousLink(ctx context.Context, destination string) (*model.Link, error) {
	if err := validateDestination(destination); err != nil {
		return nil, err
	}

	code, err := s.allocator.Allocate(ctx, model.DefaultDomain, "")
	if err != nil {
		return nil, mapAllocError(err)
	}

	expires := s.now().Add(24 * time.Hour)
	link := &model.Link{
		ID:          uuid.New(),
		ShortCode:   code,
		Domain:      model.DefaultDomain,
		Destination: destination,
		Active:      true,
		ExpiresAt:   &expires,
	}
	if err := s.repo.CreateLink(ctx, link); err != nil {
		if errors.Is(err, repository.ErrDuplicateCode) {
			return nil, ErrCodeTaken
		}
		return nil, fmt.Errorf("create anonymous link: %w", err)
	}
	return link, nil
}

// UpdateLink applies a partial edit after permission and range checks.
// The short code itself is immutable once allocated.
func (s *Service) UpdateLink(ctx context.Context, linkID, requesterID uuid.UUID, req *model.UpdateLinkRequest) (*model.Link, error) {
	link, err := s.authorizeLinkMutation(ctx, linkID, requesterID)
	if err != nil {
		return nil, err
	}

	if req.Destination != nil {
		if err := validateDestination(*req.Destination); err != nil {
			return nil, err
		}
		link.Destination = *req.Destination
	}
	if req.ExpiresAt != nil || req.MaxClicks != nil {
		if err := validateExpirationPatch(req.ExpiresAt, req.MaxClicks, s.now()); err != nil {
			return nil, err
		}
	}
	if req.ExpiresAt != nil {
		link.ExpiresAt = req.ExpiresAt
	}
	if req.ClearExpiry {
		link.ExpiresAt = nil
	}
	if req.MaxClicks != nil {
		link.MaxClicks = req.MaxClicks
	}
	if req.Active != nil {
		link.Active = *req.Active
	}
	if req.Tags != nil {
		link.Tags = normalizeTags(req.Tags)
	}
	if req.Notes != nil {
		link.Notes = *req.Notes
	}
	if req.CampaignID != nil {
		link.CampaignID = req.CampaignID
	}
	if req.Password != nil {
		if *req.Password == "" {
			link.PasswordHash = ""
		} else {
			limits := s.plans.LimitsFor(ctx, requesterID)
			if !limits.PasswordGate {
				return nil, fmt.Errorf("%w: password protection requires a paid plan", ErrLimitExceeded)
			}
			hash, err := bcrypt.GenerateFromPassword([]byte(*req.Password), bcrypt.DefaultCost)
			if err != nil {
				return nil, fmt.Errorf("hash password: %w", err)
			}
			link.PasswordHash = string(hash)
		}
	}

	if err := s.repo.UpdateLink(ctx, link); err != nil {
		return nil, fmt.Errorf("update link: %w", err)
	}
	s.audit(requesterID, "link.update", "link", link.ID.String(), "")
	return link, nil
}

// DeleteLink removes a link. Idempotent: an id that no longer exists
// is a successful no-op, so a double-submitted delete never errors.
func (s *Service) DeleteLink(ctx context.Context, linkID, requesterID uuid.UUID) error {
	link, err := s.repo.GetLinkByID(ctx, linkID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load link: %w", err)
	}
	if err := s.authorizeLoadedLink(ctx, link, requesterID); err != nil {
		return err
	}
	if err := s.repo.DeleteLink(ctx, linkID); err != nil {
		return fmt.Errorf("delete link: %w", err)
	}
	s.audit(requesterID, "link.delete", "link", linkID.String(), "")
	return nil
}

// GetLink loads one link for its owner (or a permitted team member).
func (s *Service) GetLink(ctx context.Context, linkID, requesterID uuid.UUID) (*model.Link, error) {
	return s.authorizeLinkMutation(ctx, linkID, requesterID)
}

// ListLinks pages through a user's links.
func (s *Service) ListLinks(ctx context.Context, userID uuid.UUID, page, pageSize int) ([]model.Link, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return s.repo.ListLinksByUser(ctx, userID, (page-1)*pageSize, pageSize)
}

// CheckAvailability is the dashboard's live custom-code probe.
func (s *Service) CheckAvailability(ctx context.Context, domain, code string) (bool, error) {
	if domain == "" {
		domain = model.DefaultDomain
	}
	if err := shortcode.Validate(strings.ToLower(code)); err != nil {
		return false, mapAllocError(err)
	}
	taken, err := s.repo.CodeExists(ctx, domain, strings.ToLower(code))
	return !taken, err
}

// LinkAnalytics returns a link's aggregated click events.
func (s *Service) LinkAnalytics(ctx context.Context, linkID, requesterID uuid.UUID) (*model.LinkAnalytics, error) {
	if _, err := s.authorizeLinkMutation(ctx, linkID, requesterID); err != nil {
		return nil, err
	}
	return s.repo.AggregateClicks(ctx, linkID)
}

// Usage reports consumption against the requester's plan ceilings.
func (s *Service) Usage(ctx context.Context, userID uuid.UUID) (*model.UsageResponse, error) {
	limits := s.plans.LimitsFor(ctx, userID)
	used, err := s.repo.CountLinksCreatedSince(ctx, userID, monthStart(s.now()))
	if err != nil {
		return nil, err
	}
	domains, err := s.repo.CountDomainsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	active, clicks, err := s.repo.UserStats(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &model.UsageResponse{
		Plan:         limits.Name,
		LinksUsed:    used,
		LinksLimit:   limits.LinksPerMonth,
		DomainsUsed:  domains,
		DomainsLimit: limits.CustomDomains,
		ActiveLinks:  active,
		TotalClicks:  clicks,
	}, nil
}

// ActivityLogs returns the requester's recent audit entries.
func (s *Service) ActivityLogs(ctx context.Context, userID uuid.UUID, limit int) ([]model.ActivityLog, error) {
	if limit < 1 || limit > 200 {
		limit = 50
	}
	return s.repo.ListActivityLogs(ctx, userID, limit)
}

// HealthCheck verifies the storage dependencies.
func (s *Service) HealthCheck(ctx context.Context) error {
	return s.repo.HealthCheck(ctx)
}

// ==================== shared authorization ====================

// authorizeLinkMutation loads a link and verifies the requester may
// mutate it: the owner always can; for workspace-scoped links an
// admin-or-better of the workspace's team can as well. A requester
// with no relationship to the link gets ErrNotFound, not ErrForbidden,
// so existence is never leaked.
func (s *Service) authorizeLinkMutation(ctx context.Context, linkID, requesterID uuid.UUID) (*model.Link, error) {
	link, err := s.repo.GetLinkByID(ctx, linkID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load link: %w", err)
	}
	if err := s.authorizeLoadedLink(ctx, link, requesterID); err != nil {
		return nil, err
	}
	return link, nil
}

func (s *Service) authorizeLoadedLink(ctx context.Context, link *model.Link, requesterID uuid.UUID) error {
	if link.UserID != nil && *link.UserID == requesterID {
		return nil
	}
	if link.WorkspaceID != nil {
		err := s.checkWorkspaceRole(ctx, *link.WorkspaceID, requesterID, model.RoleAdmin)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrForbidden) && !errors.Is(err, ErrNotFound) {
			return err
		}
	}
	return ErrNotFound
}

// checkWorkspaceRole verifies the requester holds at least minRole on
// the workspace's team.
func (s *Service) checkWorkspaceRole(ctx context.Context, workspaceID, userID uuid.UUID, minRole model.Role) error {
	ws, err := s.repo.GetWorkspaceByID(ctx, workspaceID)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("load workspace: %w", err)
	}
	return s.checkTeamRole(ctx, ws.TeamID, userID, minRole)
}

func (s *Service) checkTeamRole(ctx context.Context, teamID, userID uuid.UUID, minRole model.Role) error {
	member, err := s.repo.GetTeamMember(ctx, teamID, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrForbidden
	}
	if err != nil {
		return fmt.Errorf("load membership: %w", err)
	}
	if member.Status != model.MemberActive || !member.Role.AtLeast(minRole) {
		return ErrForbidden
	}
	return nil
}

// ==================== helpers ====================

func (s *Service) audit(userID uuid.UUID, action, targetType, targetID, metadata string) {
	// Audit writes are best-effort and off the request path.
	go func() {
		entry := &model.ActivityLog{
			ID:         uuid.New(),
			UserID:     userID,
			Action:     action,
			TargetType: targetType,
			TargetID:   targetID,
			Metadata:   metadata,
		}
		if err := s.repo.CreateActivityLog(context.Background(), entry); err != nil {
			s.logger.Error("activity log write failed", zap.Error(err))
		}
	}()
}

func mapAllocError(err error) error {
	switch {
	case errors.Is(err, shortcode.ErrInvalidFormat), errors.Is(err, shortcode.ErrCodeReserved):
		return fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	case errors.Is(err, shortcode.ErrCodeTaken):
		return ErrCodeTaken
	case errors.Is(err, shortcode.ErrAllocationExhausted):
		return ErrAllocationExhausted
	default:
		return err
	}
}

func normalizeTags(tags []string) string {
	cleaned := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			cleaned = append(cleaned, t)
		}
	}
	return strings.Join(cleaned, ",")
}

func monthStart(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
}

func generateAPIKey() string {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		// crypto/rand does not fail on supported platforms; a key must
		// never be minted from a partially filled buffer regardless.
		panic(err)
	}
	return hex.EncodeToString(bytes)
}

func hashAPIKey(key string) string {
	hash := sha256.Sum256([]byte(key))
	return hex.EncodeToString(hash[:])
}

package service

// Lifecycle guard: the validation layer every state-affecting mutation
// passes through before it reaches the repository. Plan ceilings,
// expiry ranges and team transitions are all decided here, before any
// write.

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Purplemerit/linkshortner-sub000/internal/model"
	"github.com/Purplemerit/linkshortner-sub000/internal/plan"
	"github.com/Purplemerit/linkshortner-sub000/internal/repository"
)

const (
	maxClicksFloor   = 1
	maxClicksCeiling = 10000
)

// validateCreate enforces the owner's monthly link ceiling.
func (s *Service) validateCreate(ctx context.Context, ownerID uuid.UUID, limits plan.Limits) error {
	count, err := s.repo.CountLinksCreatedSince(ctx, ownerID, monthStart(s.now()))
	if err != nil {
		return fmt.Errorf("count links: %w", err)
	}
	if count >= limits.LinksPerMonth {
		return fmt.Errorf("%w: monthly link limit of %d reached", ErrLimitExceeded, limits.LinksPerMonth)
	}
	return nil
}

// validateExpirationPatch checks the expiry inputs at the time they
// are set: a date bound must be strictly in the future, a click bound
// must sit within [1, 10000].
func validateExpirationPatch(expiresAt *time.Time, maxClicks *int64, now time.Time) error {
	if expiresAt != nil && !expiresAt.After(now) {
		return fmt.Errorf("%w: expiry must be in the future", ErrInvalidRange)
	}
	if maxClicks != nil && (*maxClicks < maxClicksFloor || *maxClicks > maxClicksCeiling) {
		return fmt.Errorf("%w: max clicks must be between %d and %d", ErrInvalidRange, maxClicksFloor, maxClicksCeiling)
	}
	return nil
}

// validateDestination accepts absolute http(s) URLs only.
func validateDestination(raw string) error {
	u, err := url.ParseRequestURI(strings.TrimSpace(raw))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: destination must be an absolute http(s) URL", ErrInvalidFormat)
	}
	return nil
}

// checkCustomDomain allows a custom hostname on a link only when the
// requester owns it and it has passed verification, and only on plans
// with a custom-domain allowance.
func (s *Service) checkCustomDomain(ctx context.Context, ownerID uuid.UUID, name string) error {
	limits := s.plans.LimitsFor(ctx, ownerID)
	if limits.CustomDomains == 0 {
		return fmt.Errorf("%w: custom domains require a paid plan", ErrLimitExceeded)
	}
	d, err := s.repo.GetDomainByName(ctx, strings.ToLower(name))
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%w: domain not registered", ErrInvalidFormat)
	}
	if err != nil {
		return fmt.Errorf("load domain: %w", err)
	}
	if d.UserID != ownerID {
		return ErrForbidden
	}
	if !d.Verified {
		return fmt.Errorf("%w: domain not verified", ErrInvalidFormat)
	}
	return nil
}

// validateInvite encodes the team transition rules: only an active
// owner/admin may invite, the assignable roles exclude owner, and the
// seat ceiling is the team owner's plan, not the inviter's.
func (s *Service) validateInvite(ctx context.Context, team *model.Team, inviterID uuid.UUID, role model.Role) error {
	if role == model.RoleOwner {
		return ErrForbidden
	}
	if err := s.checkTeamRole(ctx, team.ID, inviterID, model.RoleAdmin); err != nil {
		return err
	}

	ownerLimits := s.plans.LimitsFor(ctx, team.OwnerID)
	count, err := s.repo.CountTeamMembers(ctx, team.ID)
	if err != nil {
		return fmt.Errorf("count members: %w", err)
	}
	if count >= ownerLimits.TeamMembers {
		return fmt.Errorf("%w: team member limit of %d reached", ErrLimitExceeded, ownerLimits.TeamMembers)
	}
	return nil
}

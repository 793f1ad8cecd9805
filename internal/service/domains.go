package service

// Custom domain registration and verification. Verification itself is
// a single idempotent DNS TXT check; the dashboard's old polling loop
// is reproduced server-side as a bounded retry in AwaitVerification.

import (
	"context"
	"errors"
	"fmt"
	"net"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Purplemerit/linkshortner-sub000/internal/model"
	"github.com/Purplemerit/linkshortner-sub000/internal/repository"
)

var domainPattern = regexp.MustCompile(`^([a-z0-9]+(-[a-z0-9]+)*\.)+[a-z]{2,}$`)

const (
	verifyPollInterval = 5 * time.Second
	verifyPollTimeout  = 120 * time.Second
	verifyTXTPrefix    = "shortly-verify="
)

// TXTLookup resolves the TXT records of a hostname. Swappable in
// tests; production uses net.DefaultResolver.
type TXTLookup func(ctx context.Context, host string) ([]string, error)

// AddDomain registers a custom hostname for the requester, bounded by
// the plan's custom-domain allowance. The domain starts unverified.
func (s *Service) AddDomain(ctx context.Context, requesterID uuid.UUID, name string) (*model.Domain, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if !domainPattern.MatchString(name) {
		return nil, fmt.Errorf("%w: invalid domain name", ErrInvalidFormat)
	}

	limits := s.plans.LimitsFor(ctx, requesterID)
	count, err := s.repo.CountDomainsByUser(ctx, requesterID)
	if err != nil {
		return nil, fmt.Errorf("count domains: %w", err)
	}
	if count >= limits.CustomDomains {
		return nil, fmt.Errorf("%w: custom domain limit of %d reached", ErrLimitExceeded, limits.CustomDomains)
	}

	d := &model.Domain{
		ID:     uuid.New(),
		UserID: requesterID,
		Name:   name,
	}
	if err := s.repo.CreateDomain(ctx, d); err != nil {
		if errors.Is(err, repository.ErrDuplicateCode) {
			return nil, fmt.Errorf("%w: domain already registered", ErrCodeTaken)
		}
		return nil, fmt.Errorf("create domain: %w", err)
	}
	s.audit(requesterID, "domain.add", "domain", d.ID.String(), name)
	return d, nil
}

// ListDomains returns the requester's domains.
func (s *Service) ListDomains(ctx context.Context, requesterID uuid.UUID) ([]model.Domain, error) {
	return s.repo.ListDomainsByUser(ctx, requesterID)
}

// DeleteDomain removes a domain registration.
func (s *Service) DeleteDomain(ctx context.Context, domainID, requesterID uuid.UUID) error {
	d, err := s.repo.GetDomainByID(ctx, domainID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil // idempotent
	}
	if err != nil {
		return fmt.Errorf("load domain: %w", err)
	}
	if d.UserID != requesterID {
		return ErrNotFound
	}
	if err := s.repo.DeleteDomain(ctx, domainID); err != nil {
		return fmt.Errorf("delete domain: %w", err)
	}
	s.audit(requesterID, "domain.delete", "domain", domainID.String(), d.Name)
	return nil
}

// VerifyDomain performs one idempotent verification check: the
// domain's TXT records must contain the expected ownership token
// (the domain row id). A domain that already passed stays verified.
func (s *Service) VerifyDomain(ctx context.Context, domainID, requesterID uuid.UUID, lookup TXTLookup) (*model.Domain, error) {
	d, err := s.repo.GetDomainByID(ctx, domainID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load domain: %w", err)
	}
	if d.UserID != requesterID {
		return nil, ErrNotFound
	}
	if d.Verified {
		return d, nil
	}

	if lookup == nil {
		lookup = func(ctx context.Context, host string) ([]string, error) {
			return net.DefaultResolver.LookupTXT(ctx, host)
		}
	}

	records, err := lookup(ctx, d.Name)
	if err != nil {
		s.logger.Debug("txt lookup failed", zap.String("domain", d.Name), zap.Error(err))
		return nil, fmt.Errorf("%w: verification record not found", ErrInvalidFormat)
	}

	expected := verifyTXTPrefix + d.ID.String()
	for _, record := range records {
		if strings.TrimSpace(record) != expected {
			continue
		}
		now := s.now()
		if err := s.repo.MarkDomainVerified(ctx, d.ID, now); err != nil {
			return nil, fmt.Errorf("mark verified: %w", err)
		}
		d.Verified = true
		d.VerifiedAt = &now
		s.audit(requesterID, "domain.verify", "domain", d.ID.String(), d.Name)
		return d, nil
	}
	return nil, fmt.Errorf("%w: verification record not found", ErrInvalidFormat)
}

// AwaitVerification retries VerifyDomain every 5 seconds for up to two
// minutes, honoring the caller's context. It backs the ?wait=true
// variant of the verify endpoint so clients get one long call instead
// of a polling loop.
func (s *Service) AwaitVerification(ctx context.Context, domainID, requesterID uuid.UUID, lookup TXTLookup) (*model.Domain, error) {
	ctx, cancel := context.WithTimeout(ctx, s.verifyTimeout)
	defer cancel()

	ticker := time.NewTicker(s.verifyInterval)
	defer ticker.Stop()

	for {
		d, err := s.VerifyDomain(ctx, domainID, requesterID, lookup)
		if err == nil {
			return d, nil
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: verification timed out", ErrInvalidFormat)
		}
		if !errors.Is(err, ErrInvalidFormat) {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: verification timed out", ErrInvalidFormat)
		case <-ticker.C:
		}
	}
}

package service

// Resolution engine: the single decision procedure behind every
// inbound visit to a short link.

import (
	"context"
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
	"github.com/Purplemerit/linkshortner-sub000/internal/repository"
)

// Outcome is the terminal state of one resolution.
type Outcome string

const (
	OutcomeRedirect         Outcome = "redirect"
	OutcomePasswordRequired Outcome = "password_required"
	OutcomeNotFound         Outcome = "not_found"
	OutcomeExpired          Outcome = "expired"
)

// Resolution is the engine's verdict. Destination is set only for
// OutcomeRedirect.
type Resolution struct {
	Outcome     Outcome
	Destination string
}

// Visitor carries the request attributes the analytics event derives
// from. The raw IP is hashed before storage and never persisted.
type Visitor struct {
	IP        string
	UserAgent string
	Referrer  string
	Country   string
}

// Per-(code, ip) limit for password submissions.
const (
	passwordAttemptLimit  = 10
	passwordAttemptWindow = time.Minute
)

// Resolve maps an inbound (domain, code, password?) to an outcome.
//
// The check order is deliberate: pause and expiry are decided before
// the password gate, so a dead protected link reports a dead link
// instead of prompting for a password that can never succeed — and
// never confirms that the link would otherwise work. The click counter
// moves only on the redirect path; gates and failures leave it alone.
func (s *Service) Resolve(ctx context.Context, domain, code, suppliedPassword string, visitor Visitor) (Resolution, error) {
	if domain == "" {
		domain = model.DefaultDomain
	}

	link, err := s.repo.FindByCode(ctx, domain, code)
	if errors.Is(err, repository.ErrNotFound) {
		return Resolution{Outcome: OutcomeNotFound}, nil
	}
	if err != nil {
		return Resolution{}, fmt.Errorf("lookup %s/%s: %w", domain, code, err)
	}

	// Paused links are indistinguishable from absent ones to visitors.
	if !link.Active {
		return Resolution{Outcome: OutcomeNotFound}, nil
	}
	if link.ExpiredAt(s.now()) {
		return Resolution{Outcome: OutcomeExpired}, nil
	}
	if link.ClicksExhausted() {
		return Resolution{Outcome: OutcomeExpired}, nil
	}

	if link.HasPassword() {
		if suppliedPassword == "" {
			return Resolution{Outcome: OutcomePasswordRequired}, nil
		}
		if err := s.throttlePasswordAttempt(ctx, domain, code, visitor.IP); err != nil {
			return Resolution{}, err
		}
		if bcrypt.CompareHashAndPassword([]byte(link.PasswordHash), []byte(suppliedPassword)) != nil {
			return Resolution{Outcome: OutcomePasswordRequired}, nil
		}
	}

	// The guarded increment re-checks the click limit inside the
	// UPDATE itself, so two visitors racing the last allowed click
	// cannot both pass the snapshot check above and both count.
	counted, err := s.repo.IncrementClicks(ctx, link.ID)
	if err != nil {
		return Resolution{}, fmt.Errorf("count click: %w", err)
	}
	if !counted {
		return Resolution{Outcome: OutcomeExpired}, nil
	}

	s.recordClick(link.ID, visitor)

	return Resolution{Outcome: OutcomeRedirect, Destination: link.Destination}, nil
}

// throttlePasswordAttempt bounds password submissions per code and
// client, fail-open on limiter errors so a redis outage never locks
// every protected link.
func (s *Service) throttlePasswordAttempt(ctx context.Context, domain, code, ip string) error {
	key := fmt.Sprintf("pwattempt:%s:%s:%s", domain, code, ip)
	allowed, err := s.repo.AllowRate(ctx, key, passwordAttemptLimit, passwordAttemptWindow)
	if err != nil {
		s.logger.Error("password throttle check failed", zap.Error(err))
		return nil
	}
	if !allowed {
		return ErrRateLimited
	}
	return nil
}

// recordClick emits the analytics event off the request path, the
// same fire-and-forget shape as the audit trail.
func (s *Service) recordClick(linkID uuid.UUID, visitor Visitor) {
	go func() {
		event := &model.ClickEvent{
			ID:          uuid.New(),
			LinkID:      linkID,
			Referrer:    normalizeReferrer(visitor.Referrer),
			DeviceClass: classifyDevice(visitor.UserAgent),
			Country:     visitor.Country,
			IPHash:      hashIP(visitor.IP),
		}
		if err := s.repo.CreateClickEvent(context.Background(), event); err != nil {
			s.logger.Error("click event write failed",
				zap.String("link_id", linkID.String()), zap.Error(err))
		}
	}()
}

func normalizeReferrer(ref string) string {
	if ref == "" {
		return "direct"
	}
	if len(ref) > 500 {
		ref = ref[:500]
	}
	return ref
}

// classifyDevice buckets a User-Agent into a coarse device class. A
// full UA parser is overkill for four buckets.
func classifyDevice(ua string) string {
	ua = strings.ToLower(ua)
	switch {
	case ua == "":
		return "unknown"
	case strings.Contains(ua, "bot"), strings.Contains(ua, "crawler"), strings.Contains(ua, "spider"):
		return "bot"
	case strings.Contains(ua, "ipad"), strings.Contains(ua, "tablet"):
		return "tablet"
	case strings.Contains(ua, "mobile"), strings.Contains(ua, "android"), strings.Contains(ua, "iphone"):
		return "mobile"
	default:
		return "desktop"
	}
}

func hashIP(ip string) string {
	if ip == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(ip))
	return hex.EncodeToString(sum[:])
}

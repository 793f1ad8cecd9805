package service

import "errors"

// Error taxonomy crossing the service boundary. Handlers pattern-match
// these with errors.Is to pick HTTP statuses and render specific UI;
// nothing below ever escapes as an untyped failure.
var (
	// ErrInvalidFormat: malformed custom code or destination URL.
	// Caller-correctable, surfaced verbatim.
	ErrInvalidFormat = errors.New("invalid format")

	// ErrInvalidRange: expiry not in the future, or click limit out of
	// the 1-10000 bound.
	ErrInvalidRange = errors.New("value out of range")

	// ErrCodeTaken: uniqueness lost, either at the advisory pre-check
	// or on the insert itself when a concurrent create won.
	ErrCodeTaken = errors.New("short code already taken")

	// ErrAllocationExhausted: random generation kept colliding.
	ErrAllocationExhausted = errors.New("short code allocation exhausted")

	// ErrLimitExceeded: a plan ceiling was hit. Rendered with an
	// upgrade prompt, not a generic failure.
	ErrLimitExceeded = errors.New("plan limit exceeded")

	// ErrForbidden: requester lacks the role or ownership for the
	// mutation. Never reveals whether the resource exists when the
	// requester has no relationship to it.
	ErrForbidden = errors.New("forbidden")

	// ErrNotFound: resource absent, or indistinguishable from absent
	// on the public path.
	ErrNotFound = errors.New("not found")

	// ErrExpired: terminal resolution state, by date or click count.
	ErrExpired = errors.New("link expired")

	// ErrAlreadyMember: the invitee already holds or was already
	// offered a seat on the team.
	ErrAlreadyMember = errors.New("already a team member")

	// ErrRateLimited: too many password attempts against a protected
	// link.
	ErrRateLimited = errors.New("too many attempts")
)

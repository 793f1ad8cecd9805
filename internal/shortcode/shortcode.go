// Package shortcode allocates short codes for new links: validation of
// custom codes and collision-checked random generation. The existence
// check here is advisory, for early user feedback; the database's
// unique index on (domain, short_code) is the source of truth, and a
// concurrent create that wins the race surfaces as a taken-code error
// from the store, not from here.
package shortcode

import (
	"context"
	"errors"
	"regexp"

	gonanoid "github.com/jaevor/go-nanoid"
)

var (
	ErrInvalidFormat       = errors.New("short code must be 3-50 lowercase letters, digits or hyphens")
	ErrCodeReserved        = errors.New("short code is reserved")
	ErrCodeTaken           = errors.New("short code already in use")
	ErrAllocationExhausted = errors.New("could not allocate a unique short code")
)

const (
	randomLength = 6
	maxAttempts  = 5
	alphabet     = "abcdefghijklmnopqrstuvwxyz0123456789"
)

var codePattern = regexp.MustCompile(`^[a-z0-9-]+$`)

// Codes that collide with routing or dashboard paths.
var reserved = map[string]bool{
	"api":       true,
	"dashboard": true,
	"login":     true,
	"register":  true,
	"admin":     true,
	"settings":  true,
	"healthz":   true,
	"readyz":    true,
	"metrics":   true,
}

// Exists reports whether a code is already taken within a domain.
type Exists func(ctx context.Context, domain, code string) (bool, error)

// Allocator produces short codes unique within a domain.
type Allocator struct {
	exists   Exists
	generate func() string
}

// New builds an allocator over an existence check. The random
// generator is a fixed-alphabet nanoid; it is constructed once since
// gonanoid front-loads its entropy setup.
func New(exists Exists) (*Allocator, error) {
	gen, err := gonanoid.CustomASCII(alphabet, randomLength)
	if err != nil {
		return nil, err
	}
	return &Allocator{exists: exists, generate: gen}, nil
}

// Allocate returns a code for the given domain. A non-empty requested
// code is validated and checked; otherwise random candidates are
// drawn with a bounded number of retries on collision.
func (a *Allocator) Allocate(ctx context.Context, domain, requested string) (string, error) {
	if requested != "" {
		if err := Validate(requested); err != nil {
			return "", err
		}
		taken, err := a.exists(ctx, domain, requested)
		if err != nil {
			return "", err
		}
		if taken {
			return "", ErrCodeTaken
		}
		return requested, nil
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		code := a.generate()
		taken, err := a.exists(ctx, domain, code)
		if err != nil {
			return "", err
		}
		if !taken {
			return code, nil
		}
	}
	return "", ErrAllocationExhausted
}

// Validate checks a custom code against the allowed character set,
// length bounds and the reserved list.
func Validate(code string) error {
	if len(code) < 3 || len(code) > 50 || !codePattern.MatchString(code) {
		return ErrInvalidFormat
	}
	if reserved[code] {
		return ErrCodeReserved
	}
	return nil
}

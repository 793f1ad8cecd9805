package shortcode

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memExists is an in-memory existence check backing the allocator in
// tests.
type memExists struct {
	mu    sync.Mutex
	codes map[string]bool
}

func newMemExists(taken ...string) *memExists {
	m := &memExists{codes: map[string]bool{}}
	for _, c := range taken {
		m.codes["short.ly/"+c] = true
	}
	return m
}

func (m *memExists) exists(_ context.Context, domain, code string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.codes[domain+"/"+code], nil
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		code string
		err  error
	}{
		{"valid simple", "promo", nil},
		{"valid with digits and hyphen", "sale-2026", nil},
		{"too short", "ab", ErrInvalidFormat},
		{"uppercase rejected", "Promo", ErrInvalidFormat},
		{"underscore rejected", "pro_mo", ErrInvalidFormat},
		{"space rejected", "pro mo", ErrInvalidFormat},
		{"reserved api", "api", ErrCodeReserved},
		{"reserved dashboard", "dashboard", ErrCodeReserved},
		{"reserved metrics", "metrics", ErrCodeReserved},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.code)
			if tt.err == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.err)
			}
		})
	}
}

func TestAllocateCustomCode(t *testing.T) {
	ctx := context.Background()
	store := newMemExists("taken")
	alloc, err := New(store.exists)
	require.NoError(t, err)

	code, err := alloc.Allocate(ctx, "short.ly", "promo")
	require.NoError(t, err)
	assert.Equal(t, "promo", code)

	_, err = alloc.Allocate(ctx, "short.ly", "taken")
	assert.ErrorIs(t, err, ErrCodeTaken)

	// Same code is free on a different domain.
	code, err = alloc.Allocate(ctx, "go.example.com", "taken")
	require.NoError(t, err)
	assert.Equal(t, "taken", code)

	_, err = alloc.Allocate(ctx, "short.ly", "Bad Code")
	assert.ErrorIs(t, err, ErrInvalidFormat)
}

func TestAllocateRandom(t *testing.T) {
	ctx := context.Background()
	alloc, err := New(newMemExists().exists)
	require.NoError(t, err)

	code, err := alloc.Allocate(ctx, "short.ly", "")
	require.NoError(t, err)
	assert.Len(t, code, randomLength)
	assert.NoError(t, Validate(code))
}

func TestAllocateRandomRetriesOnCollision(t *testing.T) {
	ctx := context.Background()
	alloc, err := New(newMemExists().exists)
	require.NoError(t, err)

	// First two candidates collide, third is free.
	calls := 0
	alloc.exists = func(_ context.Context, domain, code string) (bool, error) {
		calls++
		return calls < 3, nil
	}

	_, err = alloc.Allocate(ctx, "short.ly", "")
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestAllocateExhausted(t *testing.T) {
	ctx := context.Background()
	alloc, err := New(func(_ context.Context, domain, code string) (bool, error) {
		return true, nil // everything is taken
	})
	require.NoError(t, err)

	_, err = alloc.Allocate(ctx, "short.ly", "")
	assert.ErrorIs(t, err, ErrAllocationExhausted)
}

func TestAllocateExistsError(t *testing.T) {
	boom := errors.New("db down")
	alloc, err := New(func(_ context.Context, domain, code string) (bool, error) {
		return false, boom
	})
	require.NoError(t, err)

	_, err = alloc.Allocate(context.Background(), "short.ly", "promo")
	assert.ErrorIs(t, err, boom)
}

package cache

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MemoryBackend is the in-process fallback. Values are kept as native Go
// values, never serialized, and are lost on restart.
//
// A value and its expiry live in two maps that are only touched together
// under mu, so a key never has one without the other.
//
// Get returns the stored value itself, not a copy. Slices, maps and pointers
// read from it are shared with every other reader and must be treated as
// read-only.
type MemoryBackend struct {
	mu       sync.Mutex
	values   map[string]any
	expiries map[string]time.Time
	now      func() time.Time
}

var _ Backend = (*MemoryBackend)(nil)

// MemoryOption configures a MemoryBackend.
type MemoryOption func(*MemoryBackend)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) MemoryOption {
	return func(b *MemoryBackend) { b.now = now }
}

// NewMemoryBackend returns an empty local backend.
func NewMemoryBackend(opts ...MemoryOption) *MemoryBackend {
	b := &MemoryBackend{
		values:   make(map[string]any),
		expiries: make(map[string]time.Time),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *MemoryBackend) Name() string { return "memory" }

// Get returns the value for key. An entry without a live expiry is purged
// from both maps and reported as a miss.
func (b *MemoryBackend) Get(_ context.Context, key string) (any, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	val, ok := b.values[key]
	if !ok {
		return nil, false, nil
	}
	exp, ok := b.expiries[key]
	if !ok || !b.now().Before(exp) {
		delete(b.values, key)
		delete(b.expiries, key)
		return nil, false, nil
	}
	return val, true, nil
}

func (b *MemoryBackend) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.values[key] = value
	b.expiries[key] = b.now().Add(ttl)
	return nil
}

func (b *MemoryBackend) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.values, key)
	delete(b.expiries, key)
	return nil
}

// DeletePattern approximates glob matching: the wildcards are dropped and
// every key containing the remaining literal text is removed. This is a
// superset of what Redis would match (the literal may appear anywhere in
// the key, not only at the wildcard's position).
func (b *MemoryBackend) DeletePattern(_ context.Context, pattern string) (int, error) {
	literal := strings.ReplaceAll(pattern, "*", "")

	b.mu.Lock()
	defer b.mu.Unlock()

	n := 0
	for key := range b.values {
		if strings.Contains(key, literal) {
			delete(b.values, key)
			delete(b.expiries, key)
			n++
		}
	}
	return n, nil
}

// Stats reports the number of stored and already expired entries.
func (b *MemoryBackend) Stats(_ context.Context) (map[string]any, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	expired := 0
	for _, exp := range b.expiries {
		if !now.Before(exp) {
			expired++
		}
	}
	return map[string]any{
		"backend": b.Name(),
		"keys":    len(b.values),
		"expired": expired,
	}, nil
}

// Sweep removes every expired entry and returns how many were removed.
func (b *MemoryBackend) Sweep() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	n := 0
	for key, exp := range b.expiries {
		if !now.Before(exp) {
			delete(b.values, key)
			delete(b.expiries, key)
			n++
		}
	}
	return n
}

// Len returns the number of entries in the value map, expired or not.
func (b *MemoryBackend) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.values)
}

// expiryLen returns the number of entries in the expiry map.
func (b *MemoryBackend) expiryLen() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.expiries)
}

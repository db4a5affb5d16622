package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/cockroachdb/errors"
)

// Store is the cache used by the rest of the service. It sends every call
// to the remote backend while the selector reports a live connection and to
// the local backend otherwise.
//
// Store never returns cache errors: failed reads are misses and failed
// writes are dropped. Errors are logged and counted.
type Store struct {
	selector *Selector
	remote   Backend
	local    Backend
	keys     KeyBuilder
	logger   *slog.Logger
	metrics  *Metrics
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithRemoteBackend replaces the Redis backend.
func WithRemoteBackend(b Backend) StoreOption {
	return func(s *Store) { s.remote = b }
}

// WithLocalBackend replaces the in-memory backend.
func WithLocalBackend(b Backend) StoreOption {
	return func(s *Store) { s.local = b }
}

// WithKeyBuilder sets the key builder exposed through Keys.
func WithKeyBuilder(k KeyBuilder) StoreOption {
	return func(s *Store) { s.keys = k }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) StoreOption {
	return func(s *Store) { s.logger = l }
}

// WithMetrics sets the collectors.
func WithMetrics(m *Metrics) StoreOption {
	return func(s *Store) { s.metrics = m }
}

// NewStore returns a Store switching between a RedisBackend on selector and
// a fresh MemoryBackend.
func NewStore(selector *Selector, opts ...StoreOption) *Store {
	s := &Store{
		selector: selector,
		keys:     NewKeyBuilder(DefaultKeyPrefix),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.remote == nil {
		s.remote = NewRedisBackend(selector)
	}
	if s.local == nil {
		s.local = NewMemoryBackend()
	}
	s.logger = s.logger.With("component", "cache.store")
	return s
}

// Keys returns the store's key builder.
func (s *Store) Keys() KeyBuilder { return s.keys }

// Connected reports whether the remote backend is active.
func (s *Store) Connected() bool { return s.selector.Connected() }

// Backend returns the name of the active backend.
func (s *Store) Backend() string { return s.active().Name() }

func (s *Store) active() Backend {
	if s.selector.Connected() {
		return s.remote
	}
	return s.local
}

// Get returns the value stored under key. Values read from the remote
// backend are decoded into generic JSON values; use the package-level Get
// for typed results.
func (s *Store) Get(ctx context.Context, key string) (any, bool) {
	return Get[any](ctx, s, key)
}

// Get returns the value stored under key as a T. Remote payloads are JSON
// decoded; a payload that does not decode into T is logged and treated as a
// miss.
func Get[T any](ctx context.Context, s *Store, key string) (T, bool) {
	var zero T
	b := s.active()
	start := time.Now()

	val, ok, err := b.Get(ctx, key)
	if err == nil && ok {
		val, ok, err = decode[T](val)
		if err != nil {
			err = errors.Mark(errors.Wrapf(err, "decode %s", key), ErrSerialization)
		}
	}
	s.metrics.observe(b.Name(), "get", start)

	if err != nil {
		s.fail(b, "get", key, err)
		ok = false
	}
	s.metrics.lookup(b.Name(), ok)
	s.logger.DebugContext(ctx, "cache lookup",
		"key", key,
		"hit", ok,
		"elapsed", time.Since(start),
		"backend", b.Name(),
	)
	if !ok {
		return zero, false
	}
	typed, ok := val.(T)
	if !ok {
		return zero, false
	}
	return typed, true
}

// decode converts a backend value into a T. A JSON null or a nil value is
// reported as absent.
func decode[T any](val any) (any, bool, error) {
	if p, ok := val.(Payload); ok {
		if bytes.Equal(bytes.TrimSpace(p), []byte("null")) {
			return nil, false, nil
		}
		var out T
		if err := json.Unmarshal(p, &out); err != nil {
			return nil, false, err
		}
		if isNil(out) {
			return nil, false, nil
		}
		return out, true, nil
	}
	if isNil(val) {
		return nil, false, nil
	}
	if typed, ok := val.(T); ok {
		return typed, true, nil
	}
	var zero T
	return nil, false, errors.Newf("cached value is %T, want %T", val, zero)
}

// Set stores value under key for ttl. Failures are logged and dropped.
// Nil values are not stored.
func (s *Store) Set(ctx context.Context, key string, value any, ttl time.Duration) {
	if isNil(value) {
		s.logger.DebugContext(ctx, "cache set skipped, nil value", "key", key)
		return
	}
	b := s.active()
	start := time.Now()
	err := b.Set(ctx, key, value, ttl)
	s.metrics.observe(b.Name(), "set", start)
	if err != nil {
		s.fail(b, "set", key, err)
		return
	}
	s.logger.DebugContext(ctx, "cache set", "key", key, "ttl", ttl, "backend", b.Name())
}

// Del removes key from the active backend.
func (s *Store) Del(ctx context.Context, key string) {
	b := s.active()
	start := time.Now()
	err := b.Delete(ctx, key)
	s.metrics.observe(b.Name(), "del", start)
	if err != nil {
		s.fail(b, "del", key, err)
	}
}

// DelPattern removes every key matching pattern and returns the number
// removed. Only the "*" wildcard is supported. On the local backend the
// match is a substring match on the pattern's literal text, which can
// remove more keys than Redis would.
func (s *Store) DelPattern(ctx context.Context, pattern string) int {
	b := s.active()
	start := time.Now()
	n, err := b.DeletePattern(ctx, pattern)
	s.metrics.observe(b.Name(), "del_pattern", start)
	if err != nil {
		s.fail(b, "del_pattern", pattern, err)
		return 0
	}
	s.logger.InfoContext(ctx, "cache invalidated", "pattern", pattern, "removed", n, "backend", b.Name())
	return n
}

// Stats reports statistics of the active backend. If the remote backend
// cannot answer, the local backend's statistics are returned.
func (s *Store) Stats(ctx context.Context) map[string]any {
	b := s.active()
	stats, err := b.Stats(ctx)
	if err != nil {
		s.fail(b, "stats", "", err)
		stats, _ = s.local.Stats(ctx)
	}
	if stats == nil {
		stats = map[string]any{}
	}
	stats["connected"] = s.selector.Connected()
	return stats
}

type sweeper interface {
	Sweep() int
}

// Sweep drops expired entries from the local backend and returns how many
// were removed. Entries nobody reads again would otherwise stay in memory.
func (s *Store) Sweep() int {
	if sw, ok := s.local.(sweeper); ok {
		return sw.Sweep()
	}
	return 0
}

// Reconnect asks the selector for a new remote connection unless the remote
// backend is already active. It reports whether the remote backend is active
// afterwards.
func (s *Store) Reconnect(ctx context.Context) bool {
	if s.selector.Connected() {
		return true
	}
	return s.selector.Connect(ctx)
}

// Close releases the remote connection.
func (s *Store) Close() error {
	return s.selector.Close()
}

func (s *Store) fail(b Backend, op, key string, err error) {
	s.metrics.failure(b.Name(), op, err)
	s.logger.Warn("cache operation failed",
		"op", op,
		"key", key,
		"backend", b.Name(),
		"kind", errorKind(err),
		"error", err,
	)
	if b == s.remote && errors.Is(err, ErrConnection) {
		s.selector.MarkDisconnected(err)
	}
}

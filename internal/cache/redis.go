package cache

import (
	"bufio"
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
)

// RedisBackend is the remote backend. Values are stored as JSON text under
// the full cache key with a TTL enforced by Redis.
type RedisBackend struct {
	client func() *redis.Client
}

var _ Backend = (*RedisBackend)(nil)

// NewRedisBackend returns a backend that always uses the selector's
// current client.
func NewRedisBackend(selector *Selector) *RedisBackend {
	return &RedisBackend{client: selector.Client}
}

// NewRedisBackendFromClient returns a backend bound to a fixed client.
func NewRedisBackendFromClient(client *redis.Client) *RedisBackend {
	return &RedisBackend{client: func() *redis.Client { return client }}
}

func (b *RedisBackend) Name() string { return "redis" }

func (b *RedisBackend) conn() (*redis.Client, error) {
	c := b.client()
	if c == nil {
		return nil, errors.Mark(errors.New("redis client not connected"), ErrConnection)
	}
	return c, nil
}

func (b *RedisBackend) Get(ctx context.Context, key string) (any, bool, error) {
	c, err := b.conn()
	if err != nil {
		return nil, false, err
	}
	data, err := c.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, markRemote(ctx, err, "get %s", key)
	}
	return Payload(data), true, nil
}

func (b *RedisBackend) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return errors.Mark(errors.Wrapf(err, "encode %s", key), ErrSerialization)
	}
	c, err := b.conn()
	if err != nil {
		return err
	}
	if err := c.Set(ctx, key, data, ttl).Err(); err != nil {
		return markRemote(ctx, err, "set %s", key)
	}
	return nil
}

func (b *RedisBackend) Delete(ctx context.Context, key string) error {
	c, err := b.conn()
	if err != nil {
		return err
	}
	if err := c.Del(ctx, key).Err(); err != nil {
		return markRemote(ctx, err, "del %s", key)
	}
	return nil
}

// DeletePattern resolves pattern with KEYS and removes the matches in a
// single DEL.
func (b *RedisBackend) DeletePattern(ctx context.Context, pattern string) (int, error) {
	c, err := b.conn()
	if err != nil {
		return 0, err
	}
	keys, err := c.Keys(ctx, pattern).Result()
	if err != nil {
		return 0, markRemote(ctx, err, "keys %s", pattern)
	}
	if len(keys) == 0 {
		return 0, nil
	}
	n, err := c.Del(ctx, keys...).Result()
	if err != nil {
		return 0, markRemote(ctx, err, "del %d keys", len(keys))
	}
	return int(n), nil
}

// Stats returns selected fields of INFO plus the key count of the current
// database.
func (b *RedisBackend) Stats(ctx context.Context) (map[string]any, error) {
	c, err := b.conn()
	if err != nil {
		return nil, err
	}
	raw, err := c.Info(ctx, "server", "memory", "stats", "keyspace").Result()
	if err != nil {
		return nil, markRemote(ctx, err, "info")
	}
	info := parseInfo(raw)

	stats := map[string]any{"backend": b.Name()}
	for _, field := range []string{"redis_version", "uptime_in_seconds", "used_memory_human", "keyspace_hits", "keyspace_misses"} {
		if v, ok := info[field]; ok {
			stats[field] = v
		}
	}
	if n, err := c.DBSize(ctx).Result(); err == nil {
		stats["keys"] = n
	}
	return stats, nil
}

func markRemote(ctx context.Context, err error, format string, args ...any) error {
	wrapped := errors.Wrapf(err, "redis "+format, args...)
	if isConnectivityError(ctx, err) {
		return errors.Mark(wrapped, ErrConnection)
	}
	return wrapped
}

// parseInfo turns an INFO reply into field/value pairs. Numeric values are
// returned as int64.
func parseInfo(raw string) map[string]any {
	out := make(map[string]any)
	sc := bufio.NewScanner(strings.NewReader(raw))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		k, v, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			out[k] = n
			continue
		}
		out[k] = v
	}
	return out
}

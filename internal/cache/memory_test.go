package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryBackendSetGet(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend()

	val, ok, err := b.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, val)

	servers := []gameServer{{ID: 1}}
	require.NoError(t, b.Set(ctx, "k", servers, time.Minute))

	val, ok, err = b.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	// Local values are stored as-is.
	assert.Equal(t, servers, val)
}

func TestMemoryBackendExpiryPurgesBothMaps(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	b := NewMemoryBackend(WithClock(clock.Now))

	require.NoError(t, b.Set(ctx, "k", "v", 10*time.Second))
	assert.Equal(t, 1, b.Len())
	assert.Equal(t, 1, b.expiryLen())

	clock.Advance(9 * time.Second)
	_, ok, _ := b.Get(ctx, "k")
	assert.True(t, ok)

	clock.Advance(2 * time.Second)
	_, ok, err := b.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, b.Len())
	assert.Equal(t, 0, b.expiryLen())
}

func TestMemoryBackendExpiresExactlyAtTTL(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	b := NewMemoryBackend(WithClock(clock.Now))

	require.NoError(t, b.Set(ctx, "k", "v", time.Second))
	clock.Advance(time.Second)
	_, ok, _ := b.Get(ctx, "k")
	assert.False(t, ok)
}

func TestMemoryBackendValueWithoutExpiryIsAbsent(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend()

	b.mu.Lock()
	b.values["orphan"] = "v"
	b.mu.Unlock()

	_, ok, err := b.Get(ctx, "orphan")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, b.Len())
}

func TestMemoryBackendOverwriteRefreshesExpiry(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	b := NewMemoryBackend(WithClock(clock.Now))

	require.NoError(t, b.Set(ctx, "k", "old", 10*time.Second))
	clock.Advance(8 * time.Second)
	require.NoError(t, b.Set(ctx, "k", "new", 10*time.Second))
	clock.Advance(8 * time.Second)

	val, ok, _ := b.Get(ctx, "k")
	assert.True(t, ok)
	assert.Equal(t, "new", val)
}

func TestMemoryBackendDelete(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend()

	require.NoError(t, b.Set(ctx, "k", "v", time.Minute))
	require.NoError(t, b.Delete(ctx, "k"))
	require.NoError(t, b.Delete(ctx, "never-set"))

	_, ok, _ := b.Get(ctx, "k")
	assert.False(t, ok)
	assert.Equal(t, 0, b.expiryLen())
}

func TestMemoryBackendDeletePattern(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend()

	require.NoError(t, b.Set(ctx, "takaro:items:serverA:all", 1, time.Minute))
	require.NoError(t, b.Set(ctx, "takaro:items:serverA:online", 2, time.Minute))
	require.NoError(t, b.Set(ctx, "takaro:items:serverB:all", 3, time.Minute))

	n, err := b.DeletePattern(ctx, "takaro:items:serverA:*")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, ok, _ := b.Get(ctx, "takaro:items:serverA:all")
	assert.False(t, ok)
	_, ok, _ = b.Get(ctx, "takaro:items:serverB:all")
	assert.True(t, ok)
}

func TestMemoryBackendDeletePatternIsSubstringMatch(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend()

	// Redis would not match this key for "takaro:items:*", the local
	// backend does because the literal text appears in it.
	require.NoError(t, b.Set(ctx, "archive:takaro:items:x", 1, time.Minute))

	n, err := b.DeletePattern(ctx, "takaro:items:*")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestMemoryBackendSweep(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	b := NewMemoryBackend(WithClock(clock.Now))

	require.NoError(t, b.Set(ctx, "short", 1, time.Second))
	require.NoError(t, b.Set(ctx, "long", 2, time.Hour))
	clock.Advance(time.Minute)

	assert.Equal(t, 1, b.Sweep())
	assert.Equal(t, 1, b.Len())
	assert.Equal(t, 1, b.expiryLen())

	stats, err := b.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, "memory", stats["backend"])
	assert.Equal(t, 1, stats["keys"])
	assert.Equal(t, 0, stats["expired"])
}

func TestMemoryBackendReturnsStoredValue(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend()
	names := map[string]string{"p1": "alice"}
	require.NoError(t, b.Set(ctx, "k", names, time.Minute))

	got, ok, err := b.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	got.(map[string]string)["p2"] = "bob"
	assert.Equal(t, "bob", names["p2"])
}

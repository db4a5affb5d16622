package cache

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newLocalStore returns a store whose selector never connects.
func newLocalStore(t *testing.T, clock *fakeClock) (*Store, *MemoryBackend) {
	t.Helper()
	sel := NewSelector(SelectorConfig{URL: "redis://127.0.0.1:1", ConnectTimeout: 200 * time.Millisecond}, testLogger(), nil)
	var opts []MemoryOption
	if clock != nil {
		opts = append(opts, WithClock(clock.Now))
	}
	local := NewMemoryBackend(opts...)
	return NewStore(sel, WithLocalBackend(local), WithLogger(testLogger())), local
}

// newRemoteStore returns a store connected to a miniredis instance.
func newRemoteStore(t *testing.T, opts ...StoreOption) (*Store, *Selector, *miniredis.Miniredis, *Metrics) {
	t.Helper()
	mr := miniredis.RunT(t)
	metrics := NewMetrics(prometheus.NewRegistry(), "test")
	sel := NewSelector(SelectorConfig{URL: "redis://" + mr.Addr(), ConnectTimeout: time.Second}, testLogger(), metrics)
	require.True(t, sel.Connect(context.Background()))
	t.Cleanup(func() { _ = sel.Close() })

	opts = append([]StoreOption{WithLogger(testLogger()), WithMetrics(metrics)}, opts...)
	return NewStore(sel, opts...), sel, mr, metrics
}

type gameServer struct {
	ID   int    `json:"id"`
	Name string `json:"name,omitempty"`
}

package cache

import (
	"context"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
)

const (
	// DefaultRedisURL is used when no URL is configured.
	DefaultRedisURL = "redis://localhost:6379"

	// DefaultConnectTimeout bounds the initial ping.
	DefaultConnectTimeout = 5 * time.Second
)

// SelectorConfig configures the remote connection.
type SelectorConfig struct {
	URL            string
	ConnectTimeout time.Duration
}

// Selector owns the remote client and the connected flag that decides which
// backend the Store uses. The flag only moves to true on a successful
// Connect and moves to false on any connectivity error. Reconnecting is left
// to whoever owns the process lifecycle.
type Selector struct {
	cfg     SelectorConfig
	logger  *slog.Logger
	metrics *Metrics

	connected atomic.Bool

	mu         sync.RWMutex
	client     *redis.Client
	generation uint64
}

// NewSelector returns a disconnected selector. Call Connect to reach the
// remote store.
func NewSelector(cfg SelectorConfig, logger *slog.Logger, metrics *Metrics) *Selector {
	if cfg.URL == "" {
		cfg.URL = DefaultRedisURL
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	metrics.setConnected(false)
	return &Selector{
		cfg:     cfg,
		logger:  logger.With("component", "cache.selector"),
		metrics: metrics,
	}
}

// Connect dials the configured remote store and pings it. It reports
// whether the remote backend is now active and never returns the
// underlying error.
func (s *Selector) Connect(ctx context.Context) bool {
	opts, err := redis.ParseURL(s.cfg.URL)
	if err != nil {
		s.logger.Warn("invalid redis url, using local cache", "error", err)
		s.MarkDisconnected(errors.Mark(err, ErrConnection))
		return false
	}
	opts.DialTimeout = s.cfg.ConnectTimeout

	s.mu.Lock()
	s.generation++
	gen := s.generation
	s.mu.Unlock()

	client := redis.NewClient(opts)
	client.AddHook(&lossHook{selector: s, generation: gen})

	pingCtx, cancel := context.WithTimeout(ctx, s.cfg.ConnectTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		s.logger.Warn("redis connection failed, using local cache", "addr", opts.Addr, "error", err)
		s.MarkDisconnected(errors.Mark(err, ErrConnection))
		return false
	}

	s.mu.Lock()
	if gen != s.generation {
		// A newer Connect won the race.
		s.mu.Unlock()
		_ = client.Close()
		return s.Connected()
	}
	old := s.client
	s.client = client
	s.mu.Unlock()

	if old != nil {
		_ = old.Close()
	}

	if s.connected.CompareAndSwap(false, true) {
		s.logger.Info("redis connected, using remote cache", "addr", opts.Addr)
		s.metrics.switched("redis", true)
	}
	return true
}

// Connected reports whether the remote backend is active.
func (s *Selector) Connected() bool {
	return s.connected.Load()
}

// Client returns the current remote client, or nil if Connect never
// succeeded.
func (s *Selector) Client() *redis.Client {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.client
}

// MarkDisconnected switches to the local backend. Repeated calls while
// already disconnected only log at debug level.
func (s *Selector) MarkDisconnected(err error) {
	if s.connected.CompareAndSwap(true, false) {
		s.logger.Warn("redis unavailable, switching to local cache", "error", err)
		s.metrics.switched("memory", false)
		return
	}
	s.logger.Debug("redis error while on local cache", "error", err)
}

// Close releases the remote client. It is best-effort.
func (s *Selector) Close() error {
	s.mu.Lock()
	client := s.client
	s.client = nil
	s.generation++
	s.mu.Unlock()

	s.connected.Store(false)
	s.metrics.setConnected(false)
	if client == nil {
		return nil
	}
	return client.Close()
}

func (s *Selector) report(generation uint64, err error) {
	s.mu.RLock()
	current := generation == s.generation
	s.mu.RUnlock()
	if !current {
		return
	}
	s.MarkDisconnected(errors.Mark(err, ErrConnection))
}

// isConnectivityError reports whether err, returned for a command run under
// ctx, means the remote store could not serve it. Misses and errors caused by
// the caller's own context ending do not count; client dial and read
// timeouts surface as net errors and still do.
func isConnectivityError(ctx context.Context, err error) bool {
	if err == nil || errors.Is(err, redis.Nil) {
		return false
	}
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true
}

// lossHook forwards errors observed by the client to the selector.
type lossHook struct {
	selector   *Selector
	generation uint64
}

var _ redis.Hook = (*lossHook)(nil)

func (h *lossHook) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		conn, err := next(ctx, network, addr)
		if isConnectivityError(ctx, err) {
			h.selector.report(h.generation, err)
		}
		return conn, err
	}
}

func (h *lossHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		err := next(ctx, cmd)
		if isConnectivityError(ctx, err) {
			h.selector.report(h.generation, err)
		}
		return err
	}
}

func (h *lossHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		err := next(ctx, cmds)
		if isConnectivityError(ctx, err) {
			h.selector.report(h.generation, err)
		}
		return err
	}
}

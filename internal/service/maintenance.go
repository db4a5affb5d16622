package service

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// CacheMaintainer is the part of the cache store the scheduler drives.
type CacheMaintainer interface {
	Sweep() int
	Connected() bool
	Reconnect(ctx context.Context) bool
}

// MaintenanceConfig holds configuration for the maintenance scheduler.
type MaintenanceConfig struct {
	// SweepInterval is how often expired fallback entries are dropped.
	// Zero disables sweeping.
	SweepInterval time.Duration

	// ReconnectInterval is how often a lost remote cache is retried.
	// Zero disables reconnection.
	ReconnectInterval time.Duration

	// ConnectTimeout bounds one reconnection attempt.
	ConnectTimeout time.Duration
}

// MaintenanceScheduler runs periodic cache upkeep: sweeping the local
// fallback and reconnecting to the remote cache after a loss.
type MaintenanceScheduler struct {
	cache  CacheMaintainer
	config MaintenanceConfig
	logger *slog.Logger

	stopCh    chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// NewMaintenanceScheduler creates a new maintenance scheduler.
func NewMaintenanceScheduler(cache CacheMaintainer, config MaintenanceConfig, logger *slog.Logger) *MaintenanceScheduler {
	if config.ConnectTimeout <= 0 {
		config.ConnectTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &MaintenanceScheduler{
		cache:  cache,
		config: config,
		logger: logger.With("component", "service.maintenance"),
		stopCh: make(chan struct{}),
	}
}

// Start begins the enabled loops. Calling Start twice is a no-op.
func (s *MaintenanceScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		return
	}
	s.isRunning = true

	if s.config.SweepInterval > 0 {
		s.loop(s.config.SweepInterval, s.sweep)
	}
	if s.config.ReconnectInterval > 0 {
		s.loop(s.config.ReconnectInterval, s.reconnect)
	}
	s.logger.Info("maintenance started",
		"sweep_interval", s.config.SweepInterval,
		"reconnect_interval", s.config.ReconnectInterval,
	)
}

func (s *MaintenanceScheduler) loop(interval time.Duration, fn func()) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				fn()
			case <-s.stopCh:
				return
			}
		}
	}()
}

func (s *MaintenanceScheduler) sweep() {
	if n := s.cache.Sweep(); n > 0 {
		s.logger.Debug("swept expired fallback entries", "removed", n)
	}
}

func (s *MaintenanceScheduler) reconnect() {
	if s.cache.Connected() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.config.ConnectTimeout)
	defer cancel()
	if s.cache.Reconnect(ctx) {
		s.logger.Info("remote cache restored")
	}
}

// Stop stops the scheduler and waits for running loops to exit.
func (s *MaintenanceScheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
		s.wg.Wait()
		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()
	})
}

package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"takaro-dashboard-api/internal/cache"
	"takaro-dashboard-api/internal/config"
	"takaro-dashboard-api/internal/telemetry"
)

const metricsNamespace = "takaro_dashboard"

// loadConfig reads the environment and applies command-line overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if cmd.Flags().Changed("log-level") {
		cfg.App.LogLevel = logLevel
	}

	logger := telemetry.NewLogger(os.Stderr, cfg.App.LogFormat, cfg.App.LogLevel, cfg.App.Name)
	slog.SetDefault(logger)
	return cfg, logger, nil
}

// newRegistry returns a registry with the Go runtime and process collectors.
func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// openCache builds the cache store and makes the initial connection
// attempt. A failed attempt leaves the store on the in-memory fallback.
func openCache(ctx context.Context, cfg *config.Config, logger *slog.Logger, metrics *cache.Metrics) *cache.Store {
	selector := cache.NewSelector(cache.SelectorConfig{
		URL:            cfg.Cache.RedisURL,
		ConnectTimeout: cfg.Cache.ConnectTimeout,
	}, logger, metrics)

	store := cache.NewStore(selector,
		cache.WithKeyBuilder(cache.NewKeyBuilder(cfg.Cache.KeyPrefix)),
		cache.WithLogger(logger),
		cache.WithMetrics(metrics),
	)

	if selector.Connect(ctx) {
		logger.Info("cache backend ready", "backend", store.Backend())
	} else {
		logger.Warn("redis unavailable, using in-memory cache", "url", redactURL(cfg.Cache.RedisURL))
	}
	return store
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"takaro-dashboard-api/internal/cache"
	"takaro-dashboard-api/internal/handler"
	"takaro-dashboard-api/internal/middleware"
	"takaro-dashboard-api/internal/repository"
	"takaro-dashboard-api/internal/router"
	"takaro-dashboard-api/internal/service"
	"takaro-dashboard-api/internal/telemetry"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd)
		},
	}
}

func runServe(cmd *cobra.Command) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger.Info("starting", "version", cfg.App.Version, "environment", cfg.App.Environment)

	ctx := context.Background()

	tracing, err := telemetry.InitTracing(ctx, telemetry.TracingConfig{
		Enabled:        cfg.Telemetry.Enabled,
		Endpoint:       cfg.Telemetry.Endpoint,
		ServiceName:    cfg.App.Name,
		ServiceVersion: cfg.App.Version,
		SampleRate:     cfg.Telemetry.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer tracing.Shutdown(context.Background())

	policy, err := cfg.Cache.Policy()
	if err != nil {
		return err
	}

	reg := newRegistry()
	metrics := cache.NewMetrics(reg, metricsNamespace)
	store := openCache(ctx, cfg, logger, metrics)
	defer store.Close()

	repo, err := repository.NewHTTPTakaroRepository(repository.HTTPConfig{
		BaseURL: cfg.Takaro.APIURL,
		Token:   cfg.Takaro.Token,
		Timeout: cfg.Takaro.Timeout,
	})
	if err != nil {
		return err
	}

	svc := service.NewDashboardService(repo, store, policy, service.DashboardOptions{
		PageSize:     cfg.Cache.PageSize,
		MaxTotal:     cfg.Cache.MaxPaginationTotal,
		SingleFlight: cfg.Cache.SingleFlight,
		Logger:       logger,
	})

	maintenance := service.NewMaintenanceScheduler(store, service.MaintenanceConfig{
		SweepInterval:     cfg.Cache.JanitorInterval,
		ReconnectInterval: cfg.Cache.ReconnectInterval,
		ConnectTimeout:    cfg.Cache.ConnectTimeout,
	}, logger)
	maintenance.Start()
	defer maintenance.Stop()

	if len(cfg.App.APIKeys) == 0 {
		logger.Warn("DASHBOARD_API_KEYS not set, API authentication disabled")
	}

	r := router.New(router.Config{
		Handler:          handler.New(cfg.App.Name, cfg.App.Version, store),
		DashboardHandler: handler.NewDashboardHandler(svc, logger),
		AdminHandler:     handler.NewAdminHandler(svc, logger),
		AuthMiddleware:   middleware.NewAuthMiddleware(cfg.App.APIKeys),
		Logger:           logger,
		Tracer:           tracing.Tracer(),
		Gatherer:         reg,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", cfg.Server.Address())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

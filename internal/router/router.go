package router

import (
	"log/slog"
	"net/http"

	"takaro-dashboard-api/internal/handler"
	"takaro-dashboard-api/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/trace"
)

// Config holds the configuration for creating a router.
type Config struct {
	Handler          *handler.Handler
	DashboardHandler *handler.DashboardHandler
	AdminHandler     *handler.AdminHandler
	AuthMiddleware   func(http.Handler) http.Handler
	Logger           *slog.Logger
	Tracer           trace.Tracer
	Gatherer         prometheus.Gatherer
}

// New creates and configures the HTTP router.
func New(cfg Config) *chi.Mux {
	r := chi.NewRouter()

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	// Global middleware stack (applies to ALL routes)
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID)
	if cfg.Tracer != nil {
		r.Use(middleware.Tracing(cfg.Tracer))
	}
	r.Use(middleware.Logging(logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", "X-API-Key"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	// PUBLIC routes (no auth required)
	if cfg.Handler != nil {
		r.Get("/api/status", cfg.Handler.Status)
		r.Get("/api/v1/health", cfg.Handler.Health)
		r.Get("/api/v1/ready", cfg.Handler.Ready)
	}
	if cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	// AUTHENTICATED routes
	r.Group(func(r chi.Router) {
		if cfg.AuthMiddleware != nil {
			r.Use(cfg.AuthMiddleware)
		}

		r.Route("/api/v1", func(r chi.Router) {
			if cfg.DashboardHandler != nil {
				r.Route("/gameservers", func(r chi.Router) {
					r.Get("/", cfg.DashboardHandler.GameServers)
					r.Route("/{id}", func(r chi.Router) {
						r.Get("/map", cfg.DashboardHandler.MapInfo)
						r.Get("/players", cfg.DashboardHandler.OnlinePlayers)
						r.Get("/players/names", cfg.DashboardHandler.PlayerNames)
						r.Get("/movement", cfg.DashboardHandler.Movement)
						r.Get("/deaths", cfg.DashboardHandler.Deaths)
						r.Get("/area", cfg.DashboardHandler.Area)
						r.Delete("/cache", cfg.DashboardHandler.InvalidateGameServer)
					})
				})
			}

			if cfg.AdminHandler != nil {
				r.Route("/admin/cache", func(r chi.Router) {
					r.Get("/", cfg.AdminHandler.CacheStats)
					r.Post("/invalidate", cfg.AdminHandler.Invalidate)
				})
			}
		})
	})

	return r
}

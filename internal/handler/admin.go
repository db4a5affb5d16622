package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"runtime"
	"time"

	"takaro-dashboard-api/internal/service"
	"takaro-dashboard-api/pkg/apierror"
	"takaro-dashboard-api/pkg/response"
)

// AdminHandler handles cache administration requests.
type AdminHandler struct {
	svc       *service.DashboardService
	logger    *slog.Logger
	startTime time.Time
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(svc *service.DashboardService, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		svc:       svc,
		logger:    logger.With("component", "handler.admin"),
		startTime: time.Now(),
	}
}

// CacheStats handles GET /api/v1/admin/cache
func (h *AdminHandler) CacheStats(w http.ResponseWriter, r *http.Request) {
	stats := map[string]any{
		"cache":          h.svc.CacheStatus(r.Context()),
		"uptime_seconds": int64(time.Since(h.startTime).Seconds()),
		"server_time":    time.Now().UTC().Format(time.RFC3339),
		"runtime": map[string]any{
			"go_version": runtime.Version(),
			"goroutines": runtime.NumGoroutine(),
		},
	}
	response.OK(w, stats)
}

// InvalidateRequest is the body of an invalidation request.
type InvalidateRequest struct {
	Pattern string `json:"pattern"`
}

// Invalidate handles POST /api/v1/admin/cache/invalidate
func (h *AdminHandler) Invalidate(w http.ResponseWriter, r *http.Request) {
	var req InvalidateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096)).Decode(&req); err != nil {
		response.Error(w, apierror.BadRequest("invalid JSON body"))
		return
	}

	removed, err := h.svc.Invalidate(r.Context(), req.Pattern)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.OK(w, map[string]any{"pattern": req.Pattern, "removed": removed})
}

package handler

import (
	"net/http"
	"runtime"
	"time"

	"takaro-dashboard-api/pkg/response"
)

// CacheState reports which cache backend is active.
type CacheState interface {
	Connected() bool
	Backend() string
}

// Handler serves health and status endpoints.
type Handler struct {
	service   string
	version   string
	cache     CacheState
	startTime time.Time
}

// New creates a new handler.
func New(service, version string, cache CacheState) *Handler {
	return &Handler{service: service, version: version, cache: cache, startTime: time.Now()}
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
}

// Health handles GET /api/v1/health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	response.OK(w, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Version:   h.version,
	})
}

// ReadyResponse represents the readiness check response.
type ReadyResponse struct {
	Ready     bool      `json:"ready"`
	Timestamp time.Time `json:"timestamp"`
	Checks    []Check   `json:"checks"`
}

// Check represents an individual readiness check.
type Check struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// Ready handles GET /api/v1/ready
// The in-memory fallback is a working cache, so a lost Redis connection
// degrades the cache check without failing readiness.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	cacheCheck := Check{Name: "cache", Status: "ok", Detail: h.cache.Backend()}
	if !h.cache.Connected() {
		cacheCheck.Status = "degraded"
	}

	response.OK(w, ReadyResponse{
		Ready:     true,
		Timestamp: time.Now().UTC(),
		Checks:    []Check{{Name: "api", Status: "ok"}, cacheCheck},
	})
}

// StatusChecks represents the checks in status response
type StatusChecks struct {
	Cache    string  `json:"cache"`
	MemoryMB float64 `json:"memory_mb"`
}

// StatusResponse represents the unified status response for monitoring
type StatusResponse struct {
	Service       string       `json:"service"`
	Status        string       `json:"status"`
	Timestamp     string       `json:"timestamp"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	Checks        StatusChecks `json:"checks"`
}

// Status handles GET /api/status
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	memoryMB := float64(memStats.Alloc) / 1024 / 1024

	resp := StatusResponse{
		Service:       h.service,
		Status:        "ok",
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Checks: StatusChecks{
			Cache:    h.cache.Backend(),
			MemoryMB: float64(int(memoryMB*100)) / 100,
		},
	}

	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate")
	response.OK(w, resp)
}

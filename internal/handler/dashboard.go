package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"takaro-dashboard-api/internal/model"
	"takaro-dashboard-api/internal/service"
	"takaro-dashboard-api/pkg/apierror"
	"takaro-dashboard-api/pkg/response"
)

// DashboardHandler serves cached game server data.
type DashboardHandler struct {
	svc    *service.DashboardService
	logger *slog.Logger
}

// NewDashboardHandler creates a new dashboard handler.
func NewDashboardHandler(svc *service.DashboardService, logger *slog.Logger) *DashboardHandler {
	return &DashboardHandler{svc: svc, logger: logger.With("component", "handler.dashboard")}
}

// GameServers handles GET /api/v1/gameservers
func (h *DashboardHandler) GameServers(w http.ResponseWriter, r *http.Request) {
	servers, err := h.svc.GameServers(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.List(w, servers)
}

// MapInfo handles GET /api/v1/gameservers/{id}/map
func (h *DashboardHandler) MapInfo(w http.ResponseWriter, r *http.Request) {
	info, err := h.svc.MapInfo(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.OK(w, info)
}

// OnlinePlayers handles GET /api/v1/gameservers/{id}/players
func (h *DashboardHandler) OnlinePlayers(w http.ResponseWriter, r *http.Request) {
	players, err := h.svc.OnlinePlayers(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.List(w, players)
}

// PlayerNames handles GET /api/v1/gameservers/{id}/players/names
func (h *DashboardHandler) PlayerNames(w http.ResponseWriter, r *http.Request) {
	names, err := h.svc.PlayerNames(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.List(w, names)
}

// Movement handles GET /api/v1/gameservers/{id}/movement?start&end&player
func (h *DashboardHandler) Movement(w http.ResponseWriter, r *http.Request) {
	tr, err := parseTimeRange(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	q := model.LocationQuery{GameServerID: chi.URLParam(r, "id"), Range: tr}
	if players := r.URL.Query().Get("player"); players != "" {
		for _, p := range strings.Split(players, ",") {
			if p = strings.TrimSpace(p); p != "" {
				q.PlayerIDs = append(q.PlayerIDs, p)
			}
		}
	}

	paths, err := h.svc.MovementPaths(r.Context(), q)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.List(w, paths)
}

// Deaths handles GET /api/v1/gameservers/{id}/deaths?start&end
func (h *DashboardHandler) Deaths(w http.ResponseWriter, r *http.Request) {
	tr, err := parseTimeRange(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	deaths, err := h.svc.DeathEvents(r.Context(), model.EventQuery{GameServerID: chi.URLParam(r, "id"), Range: tr})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.List(w, deaths)
}

// Area handles GET /api/v1/gameservers/{id}/area?minX&maxX&minZ&maxZ&start&end
func (h *DashboardHandler) Area(w http.ResponseWriter, r *http.Request) {
	tr, err := parseTimeRange(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	var box model.BoundingBox
	var fieldErrs []apierror.FieldError
	for _, f := range []struct {
		name string
		dst  *float64
	}{
		{"minX", &box.MinX}, {"maxX", &box.MaxX}, {"minZ", &box.MinZ}, {"maxZ", &box.MaxZ},
	} {
		v, err := strconv.ParseFloat(r.URL.Query().Get(f.name), 64)
		if err != nil {
			fieldErrs = append(fieldErrs, apierror.FieldError{Field: f.name, Message: "must be a number"})
			continue
		}
		*f.dst = v
	}
	if len(fieldErrs) > 0 {
		writeError(w, r, h.logger, apierror.ValidationError("invalid bounding box", fieldErrs...))
		return
	}

	locs, err := h.svc.AreaSearch(r.Context(), model.AreaQuery{GameServerID: chi.URLParam(r, "id"), Box: box, Range: tr})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.List(w, locs)
}

// InvalidateGameServer handles DELETE /api/v1/gameservers/{id}/cache
func (h *DashboardHandler) InvalidateGameServer(w http.ResponseWriter, r *http.Request) {
	removed, err := h.svc.InvalidateGameServer(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.OK(w, map[string]int{"removed": removed})
}

// parseTimeRange reads optional RFC3339 start and end query parameters.
func parseTimeRange(r *http.Request) (model.TimeRange, error) {
	var tr model.TimeRange
	var fieldErrs []apierror.FieldError
	for _, f := range []struct {
		name string
		dst  *time.Time
	}{
		{"start", &tr.Start}, {"end", &tr.End},
	} {
		raw := r.URL.Query().Get(f.name)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			fieldErrs = append(fieldErrs, apierror.FieldError{
				Field:   f.name,
				Message: fmt.Sprintf("must be an RFC3339 timestamp, got %q", raw),
			})
			continue
		}
		*f.dst = t.UTC()
	}
	if len(fieldErrs) > 0 {
		return tr, apierror.ValidationError("invalid time range", fieldErrs...)
	}
	return tr, nil
}

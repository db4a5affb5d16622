package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"takaro-dashboard-api/internal/model"
	"takaro-dashboard-api/pkg/pagination"
	"takaro-dashboard-api/pkg/uid"
)

// Upstream API paths.
const (
	pathGameServerSearch = "/gameserver/search"
	pathMapInfo          = "/gameserver/%s/map/info"
	pathPlayerOnServer   = "/pog/search"
	pathPlayerSearch     = "/player/search"
	pathEventSearch      = "/event/search"
	pathLocationSearch   = "/tracking/location"
	pathAreaSearch       = "/tracking/location/area"
)

// UpstreamError is a non-2xx response from the management API.
type UpstreamError struct {
	StatusCode int
	Method     string
	Path       string
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream %s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

// HTTPConfig configures HTTPTakaroRepository.
type HTTPConfig struct {
	BaseURL string
	Token   string
	Timeout time.Duration
	Client  *http.Client
}

// HTTPTakaroRepository implements TakaroRepository over the management
// API's JSON endpoints.
type HTTPTakaroRepository struct {
	baseURL string
	token   string
	client  *http.Client
}

var _ TakaroRepository = (*HTTPTakaroRepository)(nil)

// NewHTTPTakaroRepository creates a client for the API at cfg.BaseURL.
func NewHTTPTakaroRepository(cfg HTTPConfig) (*HTTPTakaroRepository, error) {
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid upstream base url %q", cfg.BaseURL)
	}

	client := cfg.Client
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}

	return &HTTPTakaroRepository{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		client:  client,
	}, nil
}

// searchRequest is the body accepted by the search endpoints.
type searchRequest struct {
	Filters       map[string]any `json:"filters,omitempty"`
	GreaterThan   map[string]any `json:"greaterThan,omitempty"`
	LessThan      map[string]any `json:"lessThan,omitempty"`
	Page          int            `json:"page"`
	Limit         int            `json:"limit"`
	SortBy        string         `json:"sortBy,omitempty"`
	SortDirection string         `json:"sortDirection,omitempty"`
}

func (r *searchRequest) withRange(field string, tr model.TimeRange) {
	if !tr.Start.IsZero() {
		if r.GreaterThan == nil {
			r.GreaterThan = map[string]any{}
		}
		r.GreaterThan[field] = tr.Start.UTC().Format(time.RFC3339)
	}
	if !tr.End.IsZero() {
		if r.LessThan == nil {
			r.LessThan = map[string]any{}
		}
		r.LessThan[field] = tr.End.UTC().Format(time.RFC3339)
	}
}

// SearchGameServers handles POST /gameserver/search
func (r *HTTPTakaroRepository) SearchGameServers(ctx context.Context, page, limit int) (pagination.Page[model.GameServer], error) {
	var out pagination.Page[model.GameServer]
	req := searchRequest{Page: page, Limit: limit, SortBy: "name", SortDirection: "asc"}
	err := r.do(ctx, http.MethodPost, pathGameServerSearch, req, &out)
	return out, err
}

// GetMapInfo handles GET /gameserver/{id}/map/info
func (r *HTTPTakaroRepository) GetMapInfo(ctx context.Context, gameServerID string) (*model.MapInfo, error) {
	var out struct {
		Data *model.MapInfo `json:"data"`
	}
	path := fmt.Sprintf(pathMapInfo, url.PathEscape(gameServerID))
	if err := r.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

// SearchPlayersOnServer handles POST /pog/search
func (r *HTTPTakaroRepository) SearchPlayersOnServer(ctx context.Context, q model.PlayerOnServerQuery, page, limit int) (pagination.Page[model.PlayerOnGameServer], error) {
	var out pagination.Page[model.PlayerOnGameServer]
	filters := map[string]any{"gameServerId": []string{q.GameServerID}}
	if q.OnlineOnly {
		filters["online"] = []bool{true}
	}
	req := searchRequest{Filters: filters, Page: page, Limit: limit}
	err := r.do(ctx, http.MethodPost, pathPlayerOnServer, req, &out)
	return out, err
}

// SearchPlayers handles POST /player/search
func (r *HTTPTakaroRepository) SearchPlayers(ctx context.Context, ids []string, page, limit int) (pagination.Page[model.Player], error) {
	var out pagination.Page[model.Player]
	req := searchRequest{Filters: map[string]any{"id": ids}, Page: page, Limit: limit}
	err := r.do(ctx, http.MethodPost, pathPlayerSearch, req, &out)
	return out, err
}

// SearchEvents handles POST /event/search
func (r *HTTPTakaroRepository) SearchEvents(ctx context.Context, q model.EventQuery, page, limit int) (pagination.Page[model.Event], error) {
	var out pagination.Page[model.Event]
	filters := map[string]any{"gameserverId": []string{q.GameServerID}}
	if q.EventName != "" {
		filters["eventName"] = []string{q.EventName}
	}
	req := searchRequest{Filters: filters, Page: page, Limit: limit, SortBy: "createdAt", SortDirection: "asc"}
	req.withRange("createdAt", q.Range)
	err := r.do(ctx, http.MethodPost, pathEventSearch, req, &out)
	return out, err
}

// SearchLocations handles POST /tracking/location
func (r *HTTPTakaroRepository) SearchLocations(ctx context.Context, q model.LocationQuery, page, limit int) (pagination.Page[model.Location], error) {
	var out pagination.Page[model.Location]
	filters := map[string]any{"gameserverId": []string{q.GameServerID}}
	if len(q.PlayerIDs) > 0 {
		filters["playerId"] = q.PlayerIDs
	}
	req := searchRequest{Filters: filters, Page: page, Limit: limit, SortBy: "createdAt", SortDirection: "asc"}
	req.withRange("createdAt", q.Range)
	err := r.do(ctx, http.MethodPost, pathLocationSearch, req, &out)
	return out, err
}

// SearchArea handles POST /tracking/location/area
func (r *HTTPTakaroRepository) SearchArea(ctx context.Context, q model.AreaQuery, page, limit int) (pagination.Page[model.Location], error) {
	var out pagination.Page[model.Location]
	body := struct {
		searchRequest
		model.BoundingBox
	}{
		searchRequest: searchRequest{
			Filters: map[string]any{"gameserverId": []string{q.GameServerID}},
			Page:    page,
			Limit:   limit,
		},
		BoundingBox: q.Box,
	}
	body.withRange("createdAt", q.Range)
	err := r.do(ctx, http.MethodPost, pathAreaSearch, body, &out)
	return out, err
}

func (r *HTTPTakaroRepository) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", path, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build %s request: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}
	if id := uid.FromContext(ctx); id != "" {
		req.Header.Set("X-Request-ID", id)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("upstream %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &UpstreamError{
			StatusCode: resp.StatusCode,
			Method:     method,
			Path:       path,
			Body:       strings.TrimSpace(string(excerpt)),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

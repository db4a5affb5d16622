package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"takaro-dashboard-api/internal/cache"
	"takaro-dashboard-api/internal/model"
	"takaro-dashboard-api/internal/repository"
	"takaro-dashboard-api/pkg/apierror"
	"takaro-dashboard-api/pkg/pagination"
)

// Cache namespaces.
const (
	nsGameServers = "gameservers"
	nsMapInfo     = "mapinfo"
	nsPlayers     = "players"
	nsPlayerNames = "playernames"
	nsMovement    = "movement"
	nsDeaths      = "deaths"
	nsArea        = "area"
)

// DashboardOptions tunes DashboardService.
type DashboardOptions struct {
	// PageSize is the page size used against the upstream API.
	PageSize int
	// MaxTotal caps every exhaustive listing.
	MaxTotal int
	// SingleFlight coalesces concurrent misses on the same key.
	SingleFlight bool
	Logger       *slog.Logger
}

// DashboardService serves dashboard data from the upstream API through the
// cache. Every accessor is cache-aside with the TTL of its category.
type DashboardService struct {
	repo     repository.TakaroRepository
	store    *cache.Store
	policy   cache.Policy
	keys     cache.KeyBuilder
	pageSize int
	maxTotal int
	logger   *slog.Logger

	gameServers   cache.Producer[struct{}, []model.GameServer]
	mapInfo       cache.Producer[string, *model.MapInfo]
	onlinePlayers cache.Producer[string, []model.PlayerOnGameServer]
	playerNames   cache.Producer[string, map[string]string]
	movement      cache.Producer[model.LocationQuery, []model.MovementPath]
	deaths        cache.Producer[model.EventQuery, []model.DeathEvent]
	area          cache.Producer[model.AreaQuery, []model.Location]
}

// NewDashboardService wires the memoized accessors on store.
func NewDashboardService(repo repository.TakaroRepository, store *cache.Store, policy cache.Policy, opts DashboardOptions) *DashboardService {
	if opts.PageSize <= 0 {
		opts.PageSize = pagination.DefaultPageSize
	}
	if opts.MaxTotal <= 0 {
		opts.MaxTotal = pagination.DefaultMaxTotal
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	s := &DashboardService{
		repo:     repo,
		store:    store,
		policy:   policy,
		keys:     store.Keys(),
		pageSize: opts.PageSize,
		maxTotal: opts.MaxTotal,
		logger:   opts.Logger.With("component", "service.dashboard"),
	}

	var mopts []cache.MemoizeOption
	if opts.SingleFlight {
		mopts = append(mopts, cache.WithSingleFlight())
	}

	s.gameServers = cache.Memoize(store,
		cache.FixedKey[struct{}](s.keys.Build(nsGameServers, "all")),
		policy.TTL(cache.CategoryGameServers), s.fetchGameServers, mopts...)

	s.mapInfo = cache.Memoize(store,
		func(id string) string { return s.keys.Build(nsMapInfo, id) },
		policy.TTL(cache.CategoryMapInfo), s.repo.GetMapInfo, mopts...)

	s.onlinePlayers = cache.Memoize(store,
		func(id string) string { return s.keys.Build(nsPlayers, id, "online") },
		policy.TTL(cache.CategoryPlayersList), s.fetchOnlinePlayers, mopts...)

	s.playerNames = cache.Memoize(store,
		func(id string) string { return s.keys.Build(nsPlayerNames, id) },
		policy.TTL(cache.CategoryPlayerNames), s.fetchPlayerNames, mopts...)

	s.movement = cache.Memoize(store,
		func(q model.LocationQuery) string {
			return s.keys.Build(nsMovement, q.GameServerID, q.Range.Start, q.Range.End, playerKey(q.PlayerIDs))
		},
		policy.TTL(cache.CategoryMovementPaths), s.fetchMovement, mopts...)

	s.deaths = cache.Memoize(store,
		func(q model.EventQuery) string {
			return s.keys.Build(nsDeaths, q.GameServerID, q.Range.Start, q.Range.End)
		},
		policy.TTL(cache.CategoryDeathEvents), s.fetchDeaths, mopts...)

	s.area = cache.Memoize(store,
		func(q model.AreaQuery) string {
			return s.keys.Build(nsArea, q.GameServerID, q.Box.MinX, q.Box.MaxX, q.Box.MinZ, q.Box.MaxZ, q.Range.Start, q.Range.End)
		},
		policy.TTL(cache.CategoryAreaSearch), s.fetchArea, mopts...)

	return s
}

// GameServers returns every registered game server.
func (s *DashboardService) GameServers(ctx context.Context) ([]model.GameServer, error) {
	return s.gameServers(ctx, struct{}{})
}

// MapInfo returns map metadata for a game server.
func (s *DashboardService) MapInfo(ctx context.Context, gameServerID string) (*model.MapInfo, error) {
	if err := requireID(gameServerID); err != nil {
		return nil, err
	}
	info, err := s.mapInfo(ctx, gameServerID)
	if err != nil {
		return nil, err
	}
	if info == nil {
		return nil, apierror.NotFound("map info not available for this game server")
	}
	return info, nil
}

// OnlinePlayers returns the players currently online on a game server.
func (s *DashboardService) OnlinePlayers(ctx context.Context, gameServerID string) ([]model.PlayerOnGameServer, error) {
	if err := requireID(gameServerID); err != nil {
		return nil, err
	}
	return s.onlinePlayers(ctx, gameServerID)
}

// PlayerNames maps player ids known to a game server to display names.
func (s *DashboardService) PlayerNames(ctx context.Context, gameServerID string) (map[string]string, error) {
	if err := requireID(gameServerID); err != nil {
		return nil, err
	}
	return s.playerNames(ctx, gameServerID)
}

// MovementPaths returns one time-ordered path per player.
func (s *DashboardService) MovementPaths(ctx context.Context, q model.LocationQuery) ([]model.MovementPath, error) {
	if err := requireID(q.GameServerID); err != nil {
		return nil, err
	}
	if err := validateRange(q.Range); err != nil {
		return nil, err
	}
	return s.movement(ctx, q)
}

// DeathEvents returns player deaths with a known position.
func (s *DashboardService) DeathEvents(ctx context.Context, q model.EventQuery) ([]model.DeathEvent, error) {
	if err := requireID(q.GameServerID); err != nil {
		return nil, err
	}
	if err := validateRange(q.Range); err != nil {
		return nil, err
	}
	q.EventName = model.EventPlayerDeath
	return s.deaths(ctx, q)
}

// AreaSearch returns positions recorded inside a bounding box.
func (s *DashboardService) AreaSearch(ctx context.Context, q model.AreaQuery) ([]model.Location, error) {
	if err := requireID(q.GameServerID); err != nil {
		return nil, err
	}
	if err := validateRange(q.Range); err != nil {
		return nil, err
	}
	if q.Box.MinX > q.Box.MaxX || q.Box.MinZ > q.Box.MaxZ {
		return nil, apierror.ValidationError("invalid bounding box",
			apierror.FieldError{Field: "box", Message: "min must not exceed max"})
	}
	return s.area(ctx, q)
}

// InvalidateGameServer drops every cached entry scoped to a game server and
// returns the number of keys removed.
func (s *DashboardService) InvalidateGameServer(ctx context.Context, gameServerID string) (int, error) {
	if err := requireID(gameServerID); err != nil {
		return 0, err
	}

	patterns := []string{
		s.keys.Build(nsMapInfo, gameServerID),
		s.keys.Build(nsPlayerNames, gameServerID),
		s.keys.Pattern(nsPlayers, gameServerID, ""),
		s.keys.Pattern(nsMovement, gameServerID, ""),
		s.keys.Pattern(nsDeaths, gameServerID, ""),
		s.keys.Pattern(nsArea, gameServerID, ""),
	}
	removed := 0
	for _, p := range patterns {
		removed += s.store.DelPattern(ctx, p)
	}
	return removed, nil
}

// InvalidateAll drops every key under the cache prefix.
func (s *DashboardService) InvalidateAll(ctx context.Context) int {
	return s.store.DelPattern(ctx, s.keys.Prefix()+cache.KeySeparator+"*")
}

// Invalidate drops keys matching pattern. The pattern must stay inside the
// cache prefix.
func (s *DashboardService) Invalidate(ctx context.Context, pattern string) (int, error) {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return 0, apierror.BadRequest("pattern is required")
	}
	if !strings.HasPrefix(pattern, s.keys.Prefix()+cache.KeySeparator) {
		return 0, apierror.BadRequest(fmt.Sprintf("pattern must start with %q", s.keys.Prefix()+cache.KeySeparator))
	}
	return s.store.DelPattern(ctx, pattern), nil
}

// CacheStatus reports the active backend and its statistics.
func (s *DashboardService) CacheStatus(ctx context.Context) map[string]any {
	stats := s.store.Stats(ctx)
	stats["backend"] = s.store.Backend()

	ttls := make(map[string]string)
	for _, c := range s.policy.Categories() {
		ttls[string(c)] = s.policy.TTL(c).String()
	}
	stats["ttl"] = ttls
	return stats
}

func (s *DashboardService) fetchGameServers(ctx context.Context, _ struct{}) ([]model.GameServer, error) {
	return pagination.FetchAll(ctx, func(ctx context.Context, page, limit int) (pagination.Page[model.GameServer], error) {
		return s.repo.SearchGameServers(ctx, page, limit)
	}, s.pageSize, s.maxTotal)
}

func (s *DashboardService) fetchOnlinePlayers(ctx context.Context, id string) ([]model.PlayerOnGameServer, error) {
	q := model.PlayerOnServerQuery{GameServerID: id, OnlineOnly: true}
	return pagination.FetchAll(ctx, func(ctx context.Context, page, limit int) (pagination.Page[model.PlayerOnGameServer], error) {
		return s.repo.SearchPlayersOnServer(ctx, q, page, limit)
	}, s.pageSize, s.maxTotal)
}

func (s *DashboardService) fetchPlayerNames(ctx context.Context, id string) (map[string]string, error) {
	q := model.PlayerOnServerQuery{GameServerID: id}
	pogs, err := pagination.FetchAll(ctx, func(ctx context.Context, page, limit int) (pagination.Page[model.PlayerOnGameServer], error) {
		return s.repo.SearchPlayersOnServer(ctx, q, page, limit)
	}, s.pageSize, s.maxTotal)
	if err != nil {
		return nil, err
	}

	names := make(map[string]string, len(pogs))
	if len(pogs) == 0 {
		return names, nil
	}

	ids := make([]string, 0, len(pogs))
	seen := make(map[string]struct{}, len(pogs))
	for _, p := range pogs {
		if _, ok := seen[p.PlayerID]; ok || p.PlayerID == "" {
			continue
		}
		seen[p.PlayerID] = struct{}{}
		ids = append(ids, p.PlayerID)
	}

	players, err := pagination.FetchAll(ctx, func(ctx context.Context, page, limit int) (pagination.Page[model.Player], error) {
		return s.repo.SearchPlayers(ctx, ids, page, limit)
	}, s.pageSize, s.maxTotal)
	if err != nil {
		return nil, err
	}
	for _, p := range players {
		names[p.ID] = p.Name
	}
	return names, nil
}

func (s *DashboardService) fetchMovement(ctx context.Context, q model.LocationQuery) ([]model.MovementPath, error) {
	locations, err := pagination.FetchAll(ctx, func(ctx context.Context, page, limit int) (pagination.Page[model.Location], error) {
		return s.repo.SearchLocations(ctx, q, page, limit)
	}, s.pageSize, s.maxTotal)
	if err != nil {
		return nil, err
	}

	names := s.namesFor(ctx, q.GameServerID)
	byPlayer := make(map[string]*model.MovementPath)
	for _, loc := range locations {
		path, ok := byPlayer[loc.PlayerID]
		if !ok {
			path = &model.MovementPath{PlayerID: loc.PlayerID, PlayerName: names[loc.PlayerID]}
			byPlayer[loc.PlayerID] = path
		}
		path.Points = append(path.Points, model.PathPoint{X: loc.X, Y: loc.Y, Z: loc.Z, Timestamp: loc.CreatedAt})
	}

	paths := make([]model.MovementPath, 0, len(byPlayer))
	for _, p := range byPlayer {
		sort.SliceStable(p.Points, func(i, j int) bool {
			return p.Points[i].Timestamp.Before(p.Points[j].Timestamp)
		})
		paths = append(paths, *p)
	}
	sort.Slice(paths, func(i, j int) bool { return paths[i].PlayerID < paths[j].PlayerID })
	return paths, nil
}

func (s *DashboardService) fetchDeaths(ctx context.Context, q model.EventQuery) ([]model.DeathEvent, error) {
	events, err := pagination.FetchAll(ctx, func(ctx context.Context, page, limit int) (pagination.Page[model.Event], error) {
		return s.repo.SearchEvents(ctx, q, page, limit)
	}, s.pageSize, s.maxTotal)
	if err != nil {
		return nil, err
	}

	names := s.namesFor(ctx, q.GameServerID)
	deaths := make([]model.DeathEvent, 0, len(events))
	for _, e := range events {
		if e.Meta.Position == nil {
			continue
		}
		deaths = append(deaths, model.DeathEvent{
			ID:         e.ID,
			PlayerID:   e.PlayerID,
			PlayerName: names[e.PlayerID],
			X:          e.Meta.Position.X,
			Y:          e.Meta.Position.Y,
			Z:          e.Meta.Position.Z,
			Timestamp:  e.CreatedAt,
		})
	}
	return deaths, nil
}

func (s *DashboardService) fetchArea(ctx context.Context, q model.AreaQuery) ([]model.Location, error) {
	return pagination.FetchAll(ctx, func(ctx context.Context, page, limit int) (pagination.Page[model.Location], error) {
		return s.repo.SearchArea(ctx, q, page, limit)
	}, s.pageSize, s.maxTotal)
}

// namesFor resolves player names through the cached lookup. Names are
// decoration: a failure leaves them blank.
func (s *DashboardService) namesFor(ctx context.Context, gameServerID string) map[string]string {
	names, err := s.playerNames(ctx, gameServerID)
	if err != nil {
		s.logger.WarnContext(ctx, "player name lookup failed",
			"game_server_id", gameServerID,
			"error", err,
		)
		return nil
	}
	return names
}

func requireID(id string) error {
	if strings.TrimSpace(id) == "" {
		return apierror.BadRequest("game server id is required")
	}
	return nil
}

func validateRange(r model.TimeRange) error {
	if !r.Start.IsZero() && !r.End.IsZero() && r.End.Before(r.Start) {
		return apierror.ValidationError("invalid time range",
			apierror.FieldError{Field: "end", Message: "must not be before start"})
	}
	return nil
}

// playerKey is the cache key part for a player filter; order-insensitive.
func playerKey(ids []string) string {
	if len(ids) == 0 {
		return ""
	}
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)
	return strings.Join(sorted, ",")
}

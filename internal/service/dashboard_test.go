package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"takaro-dashboard-api/internal/cache"
	"takaro-dashboard-api/internal/model"
	"takaro-dashboard-api/pkg/apierror"
	"takaro-dashboard-api/pkg/pagination"
)

// fakeRepository serves fixed data and counts calls per method.
type fakeRepository struct {
	mu    sync.Mutex
	calls map[string]int

	servers   []model.GameServer
	mapInfo   map[string]*model.MapInfo
	pogs      []model.PlayerOnGameServer
	players   []model.Player
	events    []model.Event
	locations []model.Location
	err       error
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{calls: map[string]int{}, mapInfo: map[string]*model.MapInfo{}}
}

func (f *fakeRepository) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeRepository) record(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[name]++
	return f.err
}

func pageOf[T any](items []T, page, limit int) pagination.Page[T] {
	start := page * limit
	if start > len(items) {
		start = len(items)
	}
	end := start + limit
	if end > len(items) {
		end = len(items)
	}
	return pagination.Page[T]{Data: items[start:end], Meta: pagination.Meta{Total: len(items)}}
}

func (f *fakeRepository) SearchGameServers(_ context.Context, page, limit int) (pagination.Page[model.GameServer], error) {
	if err := f.record("SearchGameServers"); err != nil {
		return pagination.Page[model.GameServer]{}, err
	}
	return pageOf(f.servers, page, limit), nil
}

func (f *fakeRepository) GetMapInfo(_ context.Context, id string) (*model.MapInfo, error) {
	if err := f.record("GetMapInfo"); err != nil {
		return nil, err
	}
	return f.mapInfo[id], nil
}

func (f *fakeRepository) SearchPlayersOnServer(_ context.Context, q model.PlayerOnServerQuery, page, limit int) (pagination.Page[model.PlayerOnGameServer], error) {
	if err := f.record("SearchPlayersOnServer"); err != nil {
		return pagination.Page[model.PlayerOnGameServer]{}, err
	}
	var out []model.PlayerOnGameServer
	for _, p := range f.pogs {
		if p.GameServerID == q.GameServerID && (!q.OnlineOnly || p.Online) {
			out = append(out, p)
		}
	}
	return pageOf(out, page, limit), nil
}

func (f *fakeRepository) SearchPlayers(_ context.Context, ids []string, page, limit int) (pagination.Page[model.Player], error) {
	if err := f.record("SearchPlayers"); err != nil {
		return pagination.Page[model.Player]{}, err
	}
	want := map[string]bool{}
	for _, id := range ids {
		want[id] = true
	}
	var out []model.Player
	for _, p := range f.players {
		if want[p.ID] {
			out = append(out, p)
		}
	}
	return pageOf(out, page, limit), nil
}

func (f *fakeRepository) SearchEvents(_ context.Context, q model.EventQuery, page, limit int) (pagination.Page[model.Event], error) {
	if err := f.record("SearchEvents"); err != nil {
		return pagination.Page[model.Event]{}, err
	}
	var out []model.Event
	for _, e := range f.events {
		if e.GameServerID == q.GameServerID && (q.EventName == "" || e.EventName == q.EventName) {
			out = append(out, e)
		}
	}
	return pageOf(out, page, limit), nil
}

func (f *fakeRepository) SearchLocations(_ context.Context, q model.LocationQuery, page, limit int) (pagination.Page[model.Location], error) {
	if err := f.record("SearchLocations"); err != nil {
		return pagination.Page[model.Location]{}, err
	}
	var out []model.Location
	for _, l := range f.locations {
		if l.GameServerID == q.GameServerID {
			out = append(out, l)
		}
	}
	return pageOf(out, page, limit), nil
}

func (f *fakeRepository) SearchArea(_ context.Context, q model.AreaQuery, page, limit int) (pagination.Page[model.Location], error) {
	if err := f.record("SearchArea"); err != nil {
		return pagination.Page[model.Location]{}, err
	}
	var out []model.Location
	for _, l := range f.locations {
		if l.GameServerID == q.GameServerID &&
			l.X >= q.Box.MinX && l.X <= q.Box.MaxX && l.Z >= q.Box.MinZ && l.Z <= q.Box.MaxZ {
			out = append(out, l)
		}
	}
	return pageOf(out, page, limit), nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newLocalStore(t *testing.T) *cache.Store {
	t.Helper()
	sel := cache.NewSelector(cache.SelectorConfig{URL: "redis://127.0.0.1:1", ConnectTimeout: 100 * time.Millisecond}, testLogger(), nil)
	return cache.NewStore(sel, cache.WithLogger(testLogger()))
}

func newRemoteStore(t *testing.T) (*cache.Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	sel := cache.NewSelector(cache.SelectorConfig{URL: "redis://" + mr.Addr(), ConnectTimeout: time.Second}, testLogger(), nil)
	require.True(t, sel.Connect(context.Background()))
	t.Cleanup(func() { _ = sel.Close() })
	return cache.NewStore(sel, cache.WithLogger(testLogger())), mr
}

func seededRepository() *fakeRepository {
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	repo := newFakeRepository()
	repo.servers = []model.GameServer{{ID: "gs1", Name: "alpha"}, {ID: "gs2", Name: "beta"}}
	repo.mapInfo["gs1"] = &model.MapInfo{Enabled: true, MapBlockSize: 128, MaxZoom: 4}
	repo.pogs = []model.PlayerOnGameServer{
		{PlayerID: "p1", GameServerID: "gs1", Online: true},
		{PlayerID: "p2", GameServerID: "gs1", Online: false},
		{PlayerID: "p3", GameServerID: "gs2", Online: true},
	}
	repo.players = []model.Player{{ID: "p1", Name: "alice"}, {ID: "p2", Name: "bob"}, {ID: "p3", Name: "carol"}}
	repo.events = []model.Event{
		{ID: "e1", EventName: model.EventPlayerDeath, PlayerID: "p1", GameServerID: "gs1",
			Meta: model.EventMeta{Position: &model.Position{X: 1, Y: 2, Z: 3}}, CreatedAt: base},
		{ID: "e2", EventName: model.EventPlayerDeath, PlayerID: "p2", GameServerID: "gs1", CreatedAt: base},
		{ID: "e3", EventName: "chat-message", PlayerID: "p1", GameServerID: "gs1", CreatedAt: base},
	}
	repo.locations = []model.Location{
		{PlayerID: "p2", GameServerID: "gs1", X: 5, Z: 5, CreatedAt: base.Add(time.Minute)},
		{PlayerID: "p1", GameServerID: "gs1", X: 2, Z: 2, CreatedAt: base.Add(2 * time.Minute)},
		{PlayerID: "p1", GameServerID: "gs1", X: 1, Z: 1, CreatedAt: base.Add(time.Minute)},
		{PlayerID: "p1", GameServerID: "gs1", X: 100, Z: 100, CreatedAt: base.Add(3 * time.Minute)},
		{PlayerID: "p3", GameServerID: "gs2", X: 0, Z: 0, CreatedAt: base},
	}
	return repo
}

func newService(t *testing.T, repo *fakeRepository, store *cache.Store) *DashboardService {
	t.Helper()
	return NewDashboardService(repo, store, cache.DefaultPolicy(), DashboardOptions{PageSize: 2, Logger: testLogger()})
}

func TestGameServersCached(t *testing.T) {
	ctx := context.Background()
	repo := seededRepository()
	svc := newService(t, repo, newLocalStore(t))

	servers, err := svc.GameServers(ctx)
	require.NoError(t, err)
	assert.Len(t, servers, 2)

	_, err = svc.GameServers(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, repo.count("SearchGameServers"))
}

func TestGameServersPaginates(t *testing.T) {
	ctx := context.Background()
	repo := seededRepository()
	repo.servers = nil
	for i := 0; i < 5; i++ {
		repo.servers = append(repo.servers, model.GameServer{ID: string(rune('a' + i))})
	}
	svc := newService(t, repo, newLocalStore(t))

	servers, err := svc.GameServers(ctx)
	require.NoError(t, err)
	assert.Len(t, servers, 5)
	assert.Equal(t, 3, repo.count("SearchGameServers"))
}

func TestMapInfo(t *testing.T) {
	ctx := context.Background()
	repo := seededRepository()
	svc := newService(t, repo, newLocalStore(t))

	info, err := svc.MapInfo(ctx, "gs1")
	require.NoError(t, err)
	assert.Equal(t, 128, info.MapBlockSize)

	_, err = svc.MapInfo(ctx, "gs1")
	require.NoError(t, err)
	assert.Equal(t, 1, repo.count("GetMapInfo"))
}

func TestMapInfoMissingIsNotFound(t *testing.T) {
	ctx := context.Background()
	repo := seededRepository()
	svc := newService(t, repo, newLocalStore(t))

	_, err := svc.MapInfo(ctx, "gs9")
	var apiErr *apierror.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "NOT_FOUND", apiErr.Code)

	// Nil results are not cached.
	_, _ = svc.MapInfo(ctx, "gs9")
	assert.Equal(t, 2, repo.count("GetMapInfo"))
}

func TestOnlinePlayers(t *testing.T) {
	ctx := context.Background()
	repo := seededRepository()
	svc := newService(t, repo, newLocalStore(t))

	players, err := svc.OnlinePlayers(ctx, "gs1")
	require.NoError(t, err)
	require.Len(t, players, 1)
	assert.Equal(t, "p1", players[0].PlayerID)
}

func TestPlayerNames(t *testing.T) {
	ctx := context.Background()
	repo := seededRepository()
	svc := newService(t, repo, newLocalStore(t))

	names, err := svc.PlayerNames(ctx, "gs1")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"p1": "alice", "p2": "bob"}, names)

	_, _ = svc.PlayerNames(ctx, "gs1")
	assert.Equal(t, 1, repo.count("SearchPlayers"))
}

func TestPlayerNamesEmptyServer(t *testing.T) {
	ctx := context.Background()
	repo := seededRepository()
	svc := newService(t, repo, newLocalStore(t))

	names, err := svc.PlayerNames(ctx, "gs-empty")
	require.NoError(t, err)
	assert.Empty(t, names)
	assert.Equal(t, 0, repo.count("SearchPlayers"))
}

func TestMovementPathsGroupedAndOrdered(t *testing.T) {
	ctx := context.Background()
	repo := seededRepository()
	svc := newService(t, repo, newLocalStore(t))

	paths, err := svc.MovementPaths(ctx, model.LocationQuery{GameServerID: "gs1"})
	require.NoError(t, err)
	require.Len(t, paths, 2)

	assert.Equal(t, "p1", paths[0].PlayerID)
	assert.Equal(t, "alice", paths[0].PlayerName)
	require.Len(t, paths[0].Points, 3)
	assert.Equal(t, float64(1), paths[0].Points[0].X)
	assert.Equal(t, float64(2), paths[0].Points[1].X)
	assert.Equal(t, float64(100), paths[0].Points[2].X)

	assert.Equal(t, "p2", paths[1].PlayerID)
	assert.Equal(t, "bob", paths[1].PlayerName)
}

func TestMovementPathsRejectsInvertedRange(t *testing.T) {
	ctx := context.Background()
	repo := seededRepository()
	svc := newService(t, repo, newLocalStore(t))

	now := time.Now()
	_, err := svc.MovementPaths(ctx, model.LocationQuery{
		GameServerID: "gs1",
		Range:        model.TimeRange{Start: now, End: now.Add(-time.Hour)},
	})
	var apiErr *apierror.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 400, apiErr.StatusCode)
	assert.Equal(t, 0, repo.count("SearchLocations"))
}

func TestDeathEventsSkipsEventsWithoutPosition(t *testing.T) {
	ctx := context.Background()
	repo := seededRepository()
	svc := newService(t, repo, newLocalStore(t))

	deaths, err := svc.DeathEvents(ctx, model.EventQuery{GameServerID: "gs1", EventName: "chat-message"})
	require.NoError(t, err)
	require.Len(t, deaths, 1)
	assert.Equal(t, "e1", deaths[0].ID)
	assert.Equal(t, "alice", deaths[0].PlayerName)
	assert.Equal(t, float64(3), deaths[0].Z)
}

func TestAreaSearch(t *testing.T) {
	ctx := context.Background()
	repo := seededRepository()
	svc := newService(t, repo, newLocalStore(t))

	box := model.BoundingBox{MinX: 0, MaxX: 10, MinZ: 0, MaxZ: 10}
	locs, err := svc.AreaSearch(ctx, model.AreaQuery{GameServerID: "gs1", Box: box})
	require.NoError(t, err)
	assert.Len(t, locs, 3)

	// Three matches at page size two.
	assert.Equal(t, 2, repo.count("SearchArea"))
	_, _ = svc.AreaSearch(ctx, model.AreaQuery{GameServerID: "gs1", Box: box})
	assert.Equal(t, 2, repo.count("SearchArea"))

	wider := box
	wider.MaxX = 1000
	wider.MaxZ = 1000
	locs, err = svc.AreaSearch(ctx, model.AreaQuery{GameServerID: "gs1", Box: wider})
	require.NoError(t, err)
	assert.Len(t, locs, 4)
}

func TestAreaSearchRejectsInvertedBox(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, seededRepository(), newLocalStore(t))

	_, err := svc.AreaSearch(ctx, model.AreaQuery{GameServerID: "gs1", Box: model.BoundingBox{MinX: 10, MaxX: 0}})
	var apiErr *apierror.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "VALIDATION_ERROR", apiErr.Code)
}

func TestUpstreamErrorPropagatesAndIsNotCached(t *testing.T) {
	ctx := context.Background()
	repo := seededRepository()
	boom := errors.New("upstream unavailable")
	repo.err = boom
	svc := newService(t, repo, newLocalStore(t))

	_, err := svc.GameServers(ctx)
	assert.ErrorIs(t, err, boom)

	repo.mu.Lock()
	repo.err = nil
	repo.mu.Unlock()

	servers, err := svc.GameServers(ctx)
	require.NoError(t, err)
	assert.Len(t, servers, 2)
}

func TestRequiresGameServerID(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, seededRepository(), newLocalStore(t))

	_, err := svc.OnlinePlayers(ctx, " ")
	var apiErr *apierror.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "BAD_REQUEST", apiErr.Code)
}

func TestInvalidateGameServer(t *testing.T) {
	ctx := context.Background()
	repo := seededRepository()
	svc := newService(t, repo, newLocalStore(t))

	_, _ = svc.MapInfo(ctx, "gs1")
	_, _ = svc.OnlinePlayers(ctx, "gs1")
	_, _ = svc.OnlinePlayers(ctx, "gs2")

	removed, err := svc.InvalidateGameServer(ctx, "gs1")
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	_, _ = svc.MapInfo(ctx, "gs1")
	_, _ = svc.OnlinePlayers(ctx, "gs2")
	assert.Equal(t, 2, repo.count("GetMapInfo"))
	// gs2 stayed cached.
	assert.Equal(t, 2, repo.count("SearchPlayersOnServer"))
}

func TestInvalidateAllAndPattern(t *testing.T) {
	ctx := context.Background()
	repo := seededRepository()
	svc := newService(t, repo, newLocalStore(t))

	_, _ = svc.GameServers(ctx)
	_, _ = svc.MapInfo(ctx, "gs1")

	n, err := svc.Invalidate(ctx, "takaro:gameservers:*")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = svc.Invalidate(ctx, "other:*")
	assert.Error(t, err)
	_, err = svc.Invalidate(ctx, "")
	assert.Error(t, err)

	assert.Equal(t, 1, svc.InvalidateAll(ctx))
}

func TestCacheStatus(t *testing.T) {
	svc := newService(t, seededRepository(), newLocalStore(t))

	status := svc.CacheStatus(context.Background())
	assert.Equal(t, "memory", status["backend"])
	assert.Equal(t, false, status["connected"])
	assert.Equal(t, "15m0s", status["ttl"].(map[string]string)["game-servers"])
}

func TestRemoteStoreRoundTripsTypedValues(t *testing.T) {
	ctx := context.Background()
	repo := seededRepository()
	store, mr := newRemoteStore(t)
	svc := newService(t, repo, store)

	first, err := svc.MovementPaths(ctx, model.LocationQuery{GameServerID: "gs1"})
	require.NoError(t, err)
	second, err := svc.MovementPaths(ctx, model.LocationQuery{GameServerID: "gs1"})
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, repo.count("SearchLocations"))
	assert.True(t, mr.Exists("takaro:movement:gs1:::"))
	assert.True(t, mr.Exists("takaro:playernames:gs1"))

	ttl := mr.TTL("takaro:movement:gs1:::")
	assert.Equal(t, 300*time.Second, ttl)

	info, err := svc.MapInfo(ctx, "gs1")
	require.NoError(t, err)
	info2, err := svc.MapInfo(ctx, "gs1")
	require.NoError(t, err)
	assert.Equal(t, info, info2)
	assert.Equal(t, 1, repo.count("GetMapInfo"))
}

func TestPlayerKeyIsOrderInsensitive(t *testing.T) {
	assert.Equal(t, "a,b", playerKey([]string{"b", "a"}))
	assert.Equal(t, "", playerKey(nil))
}

package repository

import (
	"context"

	"takaro-dashboard-api/internal/model"
	"takaro-dashboard-api/pkg/pagination"
)

// TakaroRepository defines the upstream management API calls the dashboard
// needs. Search methods return one page; page is 0-based.
type TakaroRepository interface {
	// SearchGameServers lists registered game servers.
	SearchGameServers(ctx context.Context, page, limit int) (pagination.Page[model.GameServer], error)

	// GetMapInfo returns map metadata for a game server.
	GetMapInfo(ctx context.Context, gameServerID string) (*model.MapInfo, error)

	// SearchPlayersOnServer lists players known to a game server.
	SearchPlayersOnServer(ctx context.Context, q model.PlayerOnServerQuery, page, limit int) (pagination.Page[model.PlayerOnGameServer], error)

	// SearchPlayers resolves global player records by id.
	SearchPlayers(ctx context.Context, ids []string, page, limit int) (pagination.Page[model.Player], error)

	// SearchEvents lists events on a game server.
	SearchEvents(ctx context.Context, q model.EventQuery, page, limit int) (pagination.Page[model.Event], error)

	// SearchLocations lists recorded player positions.
	SearchLocations(ctx context.Context, q model.LocationQuery, page, limit int) (pagination.Page[model.Location], error)

	// SearchArea lists recorded positions inside a bounding box.
	SearchArea(ctx context.Context, q model.AreaQuery, page, limit int) (pagination.Page[model.Location], error)
}

package model

import "time"

// TimeRange bounds a telemetry query. Zero values are open ends.
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Location is one recorded player position.
type Location struct {
	PlayerID     string    `json:"playerId"`
	GameServerID string    `json:"gameserverId"`
	X            float64   `json:"x"`
	Y            float64   `json:"y"`
	Z            float64   `json:"z"`
	CreatedAt    time.Time `json:"createdAt"`
}

// PathPoint is a position on a movement path.
type PathPoint struct {
	X         float64   `json:"x"`
	Y         float64   `json:"y"`
	Z         float64   `json:"z"`
	Timestamp time.Time `json:"timestamp"`
}

// MovementPath is the ordered trail of one player.
type MovementPath struct {
	PlayerID   string      `json:"playerId"`
	PlayerName string      `json:"playerName,omitempty"`
	Points     []PathPoint `json:"points"`
}

// LocationQuery selects recorded positions on a game server.
type LocationQuery struct {
	GameServerID string
	PlayerIDs    []string
	Range        TimeRange
}

// BoundingBox is an area on the x/z plane.
type BoundingBox struct {
	MinX float64 `json:"minX"`
	MaxX float64 `json:"maxX"`
	MinZ float64 `json:"minZ"`
	MaxZ float64 `json:"maxZ"`
}

// AreaQuery selects recorded positions inside a box.
type AreaQuery struct {
	GameServerID string
	Box          BoundingBox
	Range        TimeRange
}

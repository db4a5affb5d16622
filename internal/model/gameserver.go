package model

import "time"

// GameServer is a game server registered in the management API.
type GameServer struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	Reachable bool      `json:"reachable"`
	Enabled   bool      `json:"enabled"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// MapInfo describes the tile map of a game server.
type MapInfo struct {
	Enabled      bool    `json:"enabled"`
	MapBlockSize int     `json:"mapBlockSize"`
	MaxZoom      int     `json:"maxZoom"`
	MapSizeX     float64 `json:"mapSizeX"`
	MapSizeY     float64 `json:"mapSizeY"`
	MapSizeZ     float64 `json:"mapSizeZ"`
}

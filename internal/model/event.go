package model

import "time"

// EventPlayerDeath is the event name for player deaths.
const EventPlayerDeath = "player-death"

// Position is a point in world coordinates.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// EventMeta is the subset of event metadata the dashboard reads.
type EventMeta struct {
	Position *Position `json:"position,omitempty"`
	Attacker *Player   `json:"attacker,omitempty"`
}

// Event is a recorded game event.
type Event struct {
	ID           string    `json:"id"`
	EventName    string    `json:"eventName"`
	PlayerID     string    `json:"playerId"`
	GameServerID string    `json:"gameserverId"`
	Meta         EventMeta `json:"meta"`
	CreatedAt    time.Time `json:"createdAt"`
}

// EventQuery selects events on a game server.
type EventQuery struct {
	GameServerID string
	EventName    string
	Range        TimeRange
}

// DeathEvent is a player death with its position.
type DeathEvent struct {
	ID         string    `json:"id"`
	PlayerID   string    `json:"playerId"`
	PlayerName string    `json:"playerName,omitempty"`
	X          float64   `json:"x"`
	Y          float64   `json:"y"`
	Z          float64   `json:"z"`
	Timestamp  time.Time `json:"timestamp"`
}

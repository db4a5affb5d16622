package model

import "time"

// Player is a global player record.
type Player struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	SteamID   string    `json:"steamId,omitempty"`
	EpicID    string    `json:"epicOnlineServicesId,omitempty"`
	XboxID    string    `json:"xboxLiveId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// PlayerOnGameServer is a player's state on one game server.
type PlayerOnGameServer struct {
	ID           string    `json:"id"`
	PlayerID     string    `json:"playerId"`
	GameServerID string    `json:"gameServerId"`
	GameID       string    `json:"gameId"`
	Online       bool      `json:"online"`
	Ping         int       `json:"ping"`
	PositionX    float64   `json:"positionX"`
	PositionY    float64   `json:"positionY"`
	PositionZ    float64   `json:"positionZ"`
	Currency     int64     `json:"currency"`
	PlayTime     int64     `json:"playtimeSeconds"`
	LastSeen     time.Time `json:"lastSeen"`
}

// PlayerOnServerQuery filters players on a game server.
type PlayerOnServerQuery struct {
	GameServerID string
	OnlineOnly   bool
}

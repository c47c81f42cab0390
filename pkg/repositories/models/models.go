package models

import "github.com/cbodonnell/minegrid/pkg/game/types"

// Game is the summary row of a stored session.
type Game struct {
	RoomID    string      `json:"roomId"`
	HostID    string      `json:"hostId"`
	GuestID   string      `json:"guestId,omitempty"`
	Phase     types.Phase `json:"phase"`
	Winner    string      `json:"winner,omitempty"`
	CreatedAt int64       `json:"createdAt"`
	UpdatedAt int64       `json:"updatedAt"`
}

// GameConfig holds the defaults offered to clients creating a room.
type GameConfig struct {
	BoardSize int `json:"boardSize"`
	MaxMines  int `json:"maxMines"`
}

// DefaultGameConfig is used when storage has no configuration.
var DefaultGameConfig = GameConfig{
	BoardSize: 14,
	MaxMines:  5,
}

// GameFromSession builds the summary row of a session.
func GameFromSession(s *types.Session) *Game {
	return &Game{
		RoomID:    s.RoomID,
		HostID:    s.HostID,
		GuestID:   s.GuestID,
		Phase:     s.Phase,
		Winner:    s.Winner,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}

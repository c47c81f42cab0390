package repositories

import (
	"context"

	"github.com/cbodonnell/minegrid/pkg/game/types"
	"github.com/cbodonnell/minegrid/pkg/geometry"
	"github.com/cbodonnell/minegrid/pkg/repositories/models"
)

// HistoryLimit is the number of games returned by ListActiveGames
const HistoryLimit = 10

type Repository interface {
	Close(ctx context.Context) error
	// SaveSession writes a full session snapshot keyed by room id.
	SaveSession(ctx context.Context, session *types.Session) error
	// LoadSession reads a session snapshot. It returns ErrNotFound for unknown rooms.
	LoadSession(ctx context.Context, roomID string) (*types.Session, error)
	// ListActiveGames returns the most recent unfinished games of a participant.
	ListActiveGames(ctx context.Context, participantID string, limit int) ([]*models.Game, error)
	// ListAttackerShapes returns the stored attacker shape set in insertion order.
	ListAttackerShapes(ctx context.Context) ([]geometry.Footprint, error)
	// GetGameConfig returns the default game configuration.
	GetGameConfig(ctx context.Context) (*models.GameConfig, error)
}

package repositories

import (
	"context"
	"sort"
	"sync"

	"github.com/cbodonnell/minegrid/pkg/catalog"
	"github.com/cbodonnell/minegrid/pkg/game/types"
	"github.com/cbodonnell/minegrid/pkg/geometry"
	"github.com/cbodonnell/minegrid/pkg/repositories/models"
)

// MemoryRepository keeps session copies in a map. Nothing survives a restart.
type MemoryRepository struct {
	mu       sync.RWMutex
	sessions map[string]*types.Session
	shapes   []geometry.Footprint
	config   models.GameConfig
}

func NewMemoryRepository() *MemoryRepository {
	shapes := make([]geometry.Footprint, len(catalog.DefaultAttackerShapes))
	for i, fp := range catalog.DefaultAttackerShapes {
		shapes[i] = fp.Copy()
	}
	return &MemoryRepository{
		sessions: make(map[string]*types.Session),
		shapes:   shapes,
		config:   models.DefaultGameConfig,
	}
}

func (r *MemoryRepository) Close(ctx context.Context) error {
	return nil
}

func (r *MemoryRepository) SaveSession(ctx context.Context, session *types.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[session.RoomID] = session.Copy()
	return nil
}

func (r *MemoryRepository) LoadSession(ctx context.Context, roomID string) (*types.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	session, ok := r.sessions[roomID]
	if !ok {
		return nil, &ErrNotFound{}
	}
	return session.Copy(), nil
}

func (r *MemoryRepository) ListActiveGames(ctx context.Context, participantID string, limit int) ([]*models.Game, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	games := []*models.Game{}
	for _, session := range r.sessions {
		if session.Phase == types.PhaseGameOver {
			continue
		}
		if session.HostID != participantID && session.GuestID != participantID {
			continue
		}
		games = append(games, models.GameFromSession(session))
	}
	sort.Slice(games, func(i, j int) bool {
		if games[i].CreatedAt == games[j].CreatedAt {
			return games[i].RoomID < games[j].RoomID
		}
		return games[i].CreatedAt > games[j].CreatedAt
	})
	if limit >= 0 && len(games) > limit {
		games = games[:limit]
	}
	return games, nil
}

func (r *MemoryRepository) ListAttackerShapes(ctx context.Context) ([]geometry.Footprint, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	shapes := make([]geometry.Footprint, len(r.shapes))
	for i, fp := range r.shapes {
		shapes[i] = fp.Copy()
	}
	return shapes, nil
}

func (r *MemoryRepository) GetGameConfig(ctx context.Context) (*models.GameConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	config := r.config
	return &config, nil
}

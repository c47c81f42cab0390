package game

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/cbodonnell/minegrid/pkg/catalog"
	"github.com/cbodonnell/minegrid/pkg/game/types"
	"github.com/cbodonnell/minegrid/pkg/geometry"
	"github.com/cbodonnell/minegrid/pkg/repositories"
)

const (
	// RoomIDLength is the number of characters in a generated room id
	RoomIDLength = 6
	// RoomIDMaxRetries is the maximum number of attempts at finding an unused room id
	RoomIDMaxRetries = 1024
	// DefaultBoardSize is used for rows and columns when a create request leaves them out
	DefaultBoardSize = 14
)

const roomIDAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

type room struct {
	session    *types.Session
	lastActive time.Time
}

// Registry is the table of resident sessions. It is not safe for concurrent use and
// is owned by the game loop.
type Registry struct {
	repository       repositories.Repository
	catalog          catalog.Catalog
	defaultBoardSize int
	now              func() time.Time
	rooms            map[string]*room
}

type NewRegistryOptions struct {
	Repository repositories.Repository
	Catalog    catalog.Catalog
	// DefaultBoardSize is used when a create request has no dimensions. Defaults to 14.
	DefaultBoardSize int
	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

func NewRegistry(opts NewRegistryOptions) *Registry {
	boardSize := opts.DefaultBoardSize
	if boardSize == 0 {
		boardSize = DefaultBoardSize
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Registry{
		repository:       opts.Repository,
		catalog:          opts.Catalog,
		defaultBoardSize: geometry.ClampBoardSize(boardSize),
		now:              now,
		rooms:            make(map[string]*room),
	}
}

// Create starts a new SETUP session hosted by initiatorID under a fresh room id.
func (r *Registry) Create(ctx context.Context, initiatorID string, rows, cols int) (*types.Session, error) {
	if initiatorID == "" {
		return nil, &types.ErrValidation{Reason: "participant id is required"}
	}
	if rows == 0 {
		rows = r.defaultBoardSize
	}
	if cols == 0 {
		cols = r.defaultBoardSize
	}

	roomID, err := r.generateRoomID(ctx, RoomIDMaxRetries)
	if err != nil {
		return nil, fmt.Errorf("failed to generate a room id: %v", err)
	}

	attackerShapes, err := catalog.AttackerInventory(ctx, r.catalog)
	if err != nil {
		roomLogger(roomID).Error("Failed to load attacker shapes, starting with none: %v", err)
		attackerShapes = []types.Shape{}
	}

	now := r.now()
	session := types.NewSession(roomID, initiatorID, geometry.ClampBoardSize(rows), geometry.ClampBoardSize(cols), attackerShapes)
	session.CreatedAt = now.UnixMilli()
	session.UpdatedAt = session.CreatedAt
	r.rooms[roomID] = &room{
		session:    session,
		lastActive: now,
	}

	roomLogger(roomID).Info("Room created by %s (%dx%d)", initiatorID, session.Rows(), session.Cols())
	return session, nil
}

// generateRoomID draws random ids until one is unused both in memory and in storage.
func (r *Registry) generateRoomID(ctx context.Context, maxRetries int) (string, error) {
	for attempt := 0; attempt < maxRetries; attempt++ {
		b := make([]byte, RoomIDLength)
		for i := range b {
			b[i] = roomIDAlphabet[rand.Intn(len(roomIDAlphabet))]
		}
		id := string(b)
		if _, ok := r.rooms[id]; ok {
			continue
		}
		if r.repository != nil {
			_, err := r.repository.LoadSession(ctx, id)
			if err == nil {
				continue
			}
			if !repositories.IsNotFound(err) {
				return "", fmt.Errorf("failed to check room id %s: %v", id, err)
			}
		}
		return id, nil
	}

	return "", fmt.Errorf("failed to generate a unique room id after %d attempts", maxRetries)
}

// Get returns the resident session for roomID, rehydrating it from storage if needed.
func (r *Registry) Get(ctx context.Context, roomID string) (*types.Session, error) {
	if rm, ok := r.rooms[roomID]; ok {
		rm.lastActive = r.now()
		return rm.session, nil
	}
	if r.repository == nil {
		return nil, &types.ErrNotFound{RoomID: roomID}
	}

	session, err := r.repository.LoadSession(ctx, roomID)
	if err != nil {
		if repositories.IsNotFound(err) {
			return nil, &types.ErrNotFound{RoomID: roomID}
		}
		return nil, fmt.Errorf("failed to load session %s: %v", roomID, err)
	}

	normalize(session)
	session.MineIDCounter = types.NextMineID(session.Mines)
	r.rooms[roomID] = &room{
		session:    session,
		lastActive: r.now(),
	}

	roomLogger(roomID).Info("Room restored from storage")
	return session, nil
}

// Join binds participantID to the first free slot of the room. The host slot is filled
// first, then the guest slot if the participant is not the host. Re-joining as an
// already bound participant changes nothing. bound reports whether a slot was filled.
func (r *Registry) Join(ctx context.Context, roomID string, participantID string) (session *types.Session, bound bool, err error) {
	if participantID == "" {
		return nil, false, &types.ErrValidation{Reason: "participant id is required"}
	}
	session, err = r.Get(ctx, roomID)
	if err != nil {
		return nil, false, err
	}

	if session.HostID != "" && session.GuestID != "" && !session.HasParticipant(participantID) {
		return nil, false, &types.ErrCapacity{RoomID: roomID}
	}

	switch {
	case session.HostID == "":
		session.HostID = participantID
		bound = true
	case session.GuestID == "" && session.HostID != participantID:
		session.GuestID = participantID
		bound = true
	}

	return session, bound, nil
}

// Touch marks the room as active.
func (r *Registry) Touch(roomID string, now time.Time) {
	if rm, ok := r.rooms[roomID]; ok {
		rm.lastActive = now
	}
}

// EvictIdle drops resident rooms idle for longer than ttl that have no connected
// members. Storage is untouched, so an evicted room rehydrates on next access.
func (r *Registry) EvictIdle(now time.Time, ttl time.Duration, isOccupied func(roomID string) bool) []string {
	evicted := []string{}
	for roomID, rm := range r.rooms {
		if now.Sub(rm.lastActive) < ttl {
			continue
		}
		if isOccupied != nil && isOccupied(roomID) {
			continue
		}
		delete(r.rooms, roomID)
		evicted = append(evicted, roomID)
	}
	return evicted
}

// Resident reports whether the room is held in memory.
func (r *Registry) Resident(roomID string) bool {
	_, ok := r.rooms[roomID]
	return ok
}

// Len returns the number of resident rooms.
func (r *Registry) Len() int {
	return len(r.rooms)
}

// normalize replaces nil collections left by older snapshots with empty ones.
func normalize(s *types.Session) {
	if s.AttackerInventory == nil {
		s.AttackerInventory = []types.Shape{}
	}
	if s.DefenderInventory == nil {
		s.DefenderInventory = []types.Shape{}
	}
	if s.Mines == nil {
		s.Mines = []types.Mine{}
	}
	if s.Decorations == nil {
		s.Decorations = []types.Decoration{}
	}
}

package game

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/cbodonnell/minegrid/pkg/catalog"
	"github.com/cbodonnell/minegrid/pkg/game/types"
	"github.com/cbodonnell/minegrid/pkg/geometry"
	"github.com/cbodonnell/minegrid/pkg/repositories"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.t
}

func newTestRegistry(repo repositories.Repository, clock *fakeClock) *Registry {
	opts := NewRegistryOptions{
		Repository: repo,
		Catalog:    catalog.NewCatalog(catalog.NewCatalogOptions{}),
	}
	if clock != nil {
		opts.Now = clock.Now
	}
	return NewRegistry(opts)
}

func TestRegistry_Create(t *testing.T) {
	ctx := context.Background()
	registry := newTestRegistry(repositories.NewMemoryRepository(), nil)

	session, err := registry.Create(ctx, "host-1", 0, 0)
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^[0-9A-Z]{6}$`), session.RoomID)
	assert.Equal(t, "host-1", session.HostID)
	assert.Equal(t, types.PhaseSetup, session.Phase)
	assert.Equal(t, DefaultBoardSize, session.Rows())
	assert.Equal(t, DefaultBoardSize, session.Cols())
	assert.Len(t, session.AttackerInventory, len(catalog.DefaultAttackerShapes))
	assert.Empty(t, session.DefenderInventory)
	assert.NotZero(t, session.CreatedAt)

	clamped, err := registry.Create(ctx, "host-2", 40, 3)
	require.NoError(t, err)
	assert.Equal(t, geometry.MaxBoardSize, clamped.Rows())
	assert.Equal(t, geometry.MinBoardSize, clamped.Cols())
	assert.NotEqual(t, session.RoomID, clamped.RoomID)

	_, err = registry.Create(ctx, "", 0, 0)
	assert.True(t, types.IsValidation(err))

	assert.Equal(t, 2, registry.Len())
}

func TestRegistry_Get(t *testing.T) {
	ctx := context.Background()
	repo := repositories.NewMemoryRepository()
	registry := newTestRegistry(repo, nil)

	_, err := registry.Get(ctx, "ABCDEF")
	assert.True(t, types.IsNotFound(err))

	created, err := registry.Create(ctx, "host-1", 0, 0)
	require.NoError(t, err)
	got, err := registry.Get(ctx, created.RoomID)
	require.NoError(t, err)
	assert.Same(t, created, got)
}

func TestRegistry_Join(t *testing.T) {
	ctx := context.Background()
	registry := newTestRegistry(repositories.NewMemoryRepository(), nil)

	created, err := registry.Create(ctx, "host-1", 0, 0)
	require.NoError(t, err)
	roomID := created.RoomID

	session, bound, err := registry.Join(ctx, roomID, "host-1")
	require.NoError(t, err)
	assert.False(t, bound, "host re-join binds nothing")
	assert.Empty(t, session.GuestID)

	session, bound, err = registry.Join(ctx, roomID, "guest-1")
	require.NoError(t, err)
	assert.True(t, bound)
	assert.Equal(t, "guest-1", session.GuestID)

	_, bound, err = registry.Join(ctx, roomID, "guest-1")
	require.NoError(t, err)
	assert.False(t, bound, "guest re-join is idempotent")

	_, _, err = registry.Join(ctx, roomID, "intruder")
	require.Error(t, err)
	assert.True(t, types.IsCapacity(err))
	assert.Equal(t, "room is full", err.Error())

	_, _, err = registry.Join(ctx, "NOPE00", "guest-1")
	assert.True(t, types.IsNotFound(err))

	_, _, err = registry.Join(ctx, roomID, "")
	assert.True(t, types.IsValidation(err))
}

func TestRegistry_JoinRehydratesWithCounter(t *testing.T) {
	ctx := context.Background()
	repo := repositories.NewMemoryRepository()

	stored := types.NewSession("ROOM01", "host-1", 10, 10, []types.Shape{})
	stored.Mines = []types.Mine{
		{ID: 0, Footprint: geometry.Footprint{{1}}, Row: 0, Col: 0},
		{ID: 4, Footprint: geometry.Footprint{{1, 1}}, Row: 5, Col: 5},
	}
	stored.MineIDCounter = 0
	require.NoError(t, repo.SaveSession(ctx, stored))

	registry := newTestRegistry(repo, nil)
	require.False(t, registry.Resident("ROOM01"))

	session, bound, err := registry.Join(ctx, "ROOM01", "guest-1")
	require.NoError(t, err)
	assert.True(t, bound)
	assert.True(t, registry.Resident("ROOM01"))
	assert.Equal(t, 5, session.MineIDCounter)
	assert.Len(t, session.Mines, 2)
}

func TestRegistry_EvictIdle(t *testing.T) {
	ctx := context.Background()
	repo := repositories.NewMemoryRepository()
	clock := &fakeClock{t: time.Unix(1000, 0)}
	registry := newTestRegistry(repo, clock)

	idle, err := registry.Create(ctx, "host-1", 0, 0)
	require.NoError(t, err)
	require.NoError(t, repo.SaveSession(ctx, idle))
	occupied, err := registry.Create(ctx, "host-2", 0, 0)
	require.NoError(t, err)
	fresh, err := registry.Create(ctx, "host-3", 0, 0)
	require.NoError(t, err)

	later := clock.t.Add(time.Hour)
	registry.Touch(fresh.RoomID, later)

	evicted := registry.EvictIdle(later, 30*time.Minute, func(roomID string) bool {
		return roomID == occupied.RoomID
	})
	assert.Equal(t, []string{idle.RoomID}, evicted)
	assert.False(t, registry.Resident(idle.RoomID))
	assert.True(t, registry.Resident(occupied.RoomID))
	assert.True(t, registry.Resident(fresh.RoomID))

	restored, err := registry.Get(ctx, idle.RoomID)
	require.NoError(t, err)
	assert.Equal(t, idle.RoomID, restored.RoomID)
	assert.NotSame(t, idle, restored)
}

package repositories

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/cbodonnell/minegrid/pkg/catalog"
	"github.com/cbodonnell/minegrid/pkg/game/types"
	"github.com/cbodonnell/minegrid/pkg/geometry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSession(roomID, hostID string, createdAt int64) *types.Session {
	s := types.NewSession(roomID, hostID, 6, 6, []types.Shape{{InstanceID: "a1", Footprint: geometry.Footprint{{1}}}})
	s.CreatedAt = createdAt
	s.UpdatedAt = createdAt
	return s
}

func newSQLiteTestRepository(t *testing.T) Repository {
	t.Helper()
	ctx := context.Background()
	repo, err := NewSQLiteRepository(ctx, filepath.Join(t.TempDir(), "minegrid.db"), "../../migrations/sqlite")
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close(ctx) })
	return repo
}

func testRepositories(t *testing.T) map[string]Repository {
	return map[string]Repository{
		"memory": NewMemoryRepository(),
		"sqlite": newSQLiteTestRepository(t),
	}
}

func TestRepository_SaveLoadSession(t *testing.T) {
	for name, repo := range testRepositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := repo.LoadSession(ctx, "NOPE00")
			assert.True(t, IsNotFound(err))

			session := newTestSession("ROOM01", "host-1", 1000)
			_, err = session.PlaceMine(types.PlaceMineRequest{
				ActorID:   "host-1",
				Footprint: geometry.Footprint{{1, 1}},
				Row:       1,
				Col:       1,
			})
			require.NoError(t, err)
			require.NoError(t, repo.SaveSession(ctx, session))

			loaded, err := repo.LoadSession(ctx, "ROOM01")
			require.NoError(t, err)
			assert.Equal(t, session, loaded)

			session.GuestID = "guest-1"
			session.UpdatedAt = 2000
			require.NoError(t, repo.SaveSession(ctx, session))

			loaded, err = repo.LoadSession(ctx, "ROOM01")
			require.NoError(t, err)
			assert.Equal(t, "guest-1", loaded.GuestID)
			assert.Equal(t, int64(1000), loaded.CreatedAt)
			assert.Equal(t, int64(2000), loaded.UpdatedAt)
		})
	}
}

func TestRepository_ListActiveGames(t *testing.T) {
	for name, repo := range testRepositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			hosted := newTestSession("ROOM01", "p1", 1000)
			joined := newTestSession("ROOM02", "p2", 3000)
			joined.GuestID = "p1"
			finished := newTestSession("ROOM03", "p1", 4000)
			finished.Phase = types.PhaseGameOver
			other := newTestSession("ROOM04", "p3", 5000)
			for _, s := range []*types.Session{hosted, joined, finished, other} {
				require.NoError(t, repo.SaveSession(ctx, s))
			}

			games, err := repo.ListActiveGames(ctx, "p1", HistoryLimit)
			require.NoError(t, err)
			require.Len(t, games, 2)
			assert.Equal(t, "ROOM02", games[0].RoomID)
			assert.Equal(t, "p1", games[0].GuestID)
			assert.Equal(t, "ROOM01", games[1].RoomID)
			assert.Equal(t, types.PhaseSetup, games[1].Phase)

			games, err = repo.ListActiveGames(ctx, "p1", 1)
			require.NoError(t, err)
			require.Len(t, games, 1)

			games, err = repo.ListActiveGames(ctx, "nobody", HistoryLimit)
			require.NoError(t, err)
			assert.Empty(t, games)
		})
	}
}

func TestRepository_ShapesAndConfig(t *testing.T) {
	for name, repo := range testRepositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			shapes, err := repo.ListAttackerShapes(ctx)
			require.NoError(t, err)
			assert.Equal(t, catalog.DefaultAttackerShapes, shapes)

			config, err := repo.GetGameConfig(ctx)
			require.NoError(t, err)
			assert.Equal(t, 14, config.BoardSize)
			assert.Equal(t, 5, config.MaxMines)
		})
	}
}

func TestSQLiteRepository_SeedsOnce(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "minegrid.db")

	repo, err := NewSQLiteRepository(ctx, path, "../../migrations/sqlite")
	require.NoError(t, err)
	require.NoError(t, repo.Close(ctx))

	repo, err = NewSQLiteRepository(ctx, path, "../../migrations/sqlite")
	require.NoError(t, err)
	defer repo.Close(ctx)

	shapes, err := repo.ListAttackerShapes(ctx)
	require.NoError(t, err)
	assert.Len(t, shapes, len(catalog.DefaultAttackerShapes))
}

func TestSQLiteRepository_MigrationFailures(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "minegrid.db")

	_, err := NewSQLiteRepository(ctx, path, filepath.Join(t.TempDir(), "missing"))
	assert.ErrorContains(t, err, "failed to read migrations directory")

	broken := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(broken, "001_broken.sql"), []byte("CREATE TABLE ("), 0o600))
	_, err = NewSQLiteRepository(ctx, path, broken)
	assert.ErrorContains(t, err, "failed to execute migration")

	repo, err := NewSQLiteRepository(ctx, path, "../../migrations/sqlite")
	require.NoError(t, err)
	require.NoError(t, repo.Close(ctx))
}

func TestSnapshotRoundTrip(t *testing.T) {
	session := newTestSession("ROOM01", "host-1", 1000)
	session.Decorations = append(session.Decorations, types.Decoration{ID: "d1", Src: "/image/crate_2x3.png", Width: 2, Height: 3})

	data, err := encodeSnapshot(session)
	require.NoError(t, err)

	decoded, err := decodeSnapshot(data)
	require.NoError(t, err)
	assert.Equal(t, session, decoded)

	_, err = decodeSnapshot([]byte("garbage"))
	assert.Error(t, err)
}

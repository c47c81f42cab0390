package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/cbodonnell/minegrid/pkg/catalog"
	"github.com/cbodonnell/minegrid/pkg/game/types"
	"github.com/cbodonnell/minegrid/pkg/geometry"
	"github.com/cbodonnell/minegrid/pkg/log"
	"github.com/cbodonnell/minegrid/pkg/repositories/models"
	_ "github.com/mattn/go-sqlite3"
)

type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository opens the database at path, applies every migration in the
// migrations directory in name order and seeds the default attacker shapes.
func NewSQLiteRepository(ctx context.Context, path string, migrations string) (Repository, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %v", err)
	}

	dir, err := os.ReadDir(migrations)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to read migrations directory: %v", err)
	}
	sort.Slice(dir, func(i, j int) bool {
		return dir[i].Name() < dir[j].Name()
	})

	for _, entry := range dir {
		if entry.IsDir() {
			continue
		}

		migrationPath := filepath.Join(migrations, entry.Name())
		migration, err := os.ReadFile(migrationPath)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to read migration %s: %v", migrationPath, err)
		}

		if _, err := db.ExecContext(ctx, string(migration)); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute migration %s: %v", migrationPath, err)
		}
	}

	r := &SQLiteRepository{
		db: db,
	}
	if err := r.seedShapes(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to seed shapes: %v", err)
	}

	return r, nil
}

func (r *SQLiteRepository) seedShapes(ctx context.Context) error {
	var count int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM shapes WHERE type = 'attacker'").Scan(&count); err != nil {
		return fmt.Errorf("failed to count shapes: %v", err)
	}
	if count > 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %v", err)
	}
	defer tx.Rollback()

	for _, shape := range catalog.DefaultAttackerShapes {
		data, err := json.Marshal(shape)
		if err != nil {
			return fmt.Errorf("failed to marshal shape: %v", err)
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO shapes (shape_data, type) VALUES (?, 'attacker')", string(data)); err != nil {
			return fmt.Errorf("failed to insert shape: %v", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %v", err)
	}

	log.Info("Seeded %d default attacker shapes", len(catalog.DefaultAttackerShapes))
	return nil
}

func (r *SQLiteRepository) Close(ctx context.Context) error {
	return r.db.Close()
}

func (r *SQLiteRepository) SaveSession(ctx context.Context, session *types.Session) error {
	snapshot, err := encodeSnapshot(session)
	if err != nil {
		return err
	}

	q := `
	INSERT INTO games (room_id, host_id, guest_id, phase, winner, snapshot, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (room_id) DO UPDATE SET
		host_id = excluded.host_id,
		guest_id = excluded.guest_id,
		phase = excluded.phase,
		winner = excluded.winner,
		snapshot = excluded.snapshot,
		updated_at = excluded.updated_at;
	`
	_, err = r.db.ExecContext(ctx, q,
		session.RoomID,
		session.HostID,
		nullString(session.GuestID),
		string(session.Phase),
		nullString(session.Winner),
		snapshot,
		session.CreatedAt,
		session.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert game: %v", err)
	}

	return nil
}

func (r *SQLiteRepository) LoadSession(ctx context.Context, roomID string) (*types.Session, error) {
	var snapshot []byte
	if err := r.db.QueryRowContext(ctx, "SELECT snapshot FROM games WHERE room_id = ?", roomID).Scan(&snapshot); err != nil {
		if err == sql.ErrNoRows {
			return nil, &ErrNotFound{}
		}
		return nil, fmt.Errorf("failed to scan game: %v", err)
	}

	return decodeSnapshot(snapshot)
}

func (r *SQLiteRepository) ListActiveGames(ctx context.Context, participantID string, limit int) ([]*models.Game, error) {
	q := `
	SELECT room_id, host_id, guest_id, phase, winner, created_at, updated_at
	FROM games
	WHERE (host_id = ? OR guest_id = ?) AND phase != ?
	ORDER BY created_at DESC
	LIMIT ?;
	`
	rows, err := r.db.QueryContext(ctx, q, participantID, participantID, string(types.PhaseGameOver), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query games: %v", err)
	}
	defer rows.Close()

	games := []*models.Game{}
	for rows.Next() {
		game := &models.Game{}
		var guestID, winner sql.NullString
		var phase string
		if err := rows.Scan(&game.RoomID, &game.HostID, &guestID, &phase, &winner, &game.CreatedAt, &game.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan game: %v", err)
		}
		game.GuestID = guestID.String
		game.Winner = winner.String
		game.Phase = types.Phase(phase)
		games = append(games, game)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate games: %v", err)
	}

	return games, nil
}

func (r *SQLiteRepository) ListAttackerShapes(ctx context.Context) ([]geometry.Footprint, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT shape_data FROM shapes WHERE type = 'attacker' ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to query shapes: %v", err)
	}
	defer rows.Close()

	shapes := []geometry.Footprint{}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan shape: %v", err)
		}
		var shape geometry.Footprint
		if err := json.Unmarshal([]byte(data), &shape); err != nil {
			return nil, fmt.Errorf("failed to unmarshal shape: %v", err)
		}
		shapes = append(shapes, shape)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate shapes: %v", err)
	}

	return shapes, nil
}

func (r *SQLiteRepository) GetGameConfig(ctx context.Context) (*models.GameConfig, error) {
	var value string
	if err := r.db.QueryRowContext(ctx, "SELECT value FROM game_config WHERE key = 'default_config'").Scan(&value); err != nil {
		if err == sql.ErrNoRows {
			config := models.DefaultGameConfig
			return &config, nil
		}
		return nil, fmt.Errorf("failed to scan game config: %v", err)
	}

	config := &models.GameConfig{}
	if err := json.Unmarshal([]byte(value), config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal game config: %v", err)
	}

	return config, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

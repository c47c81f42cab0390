package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/cbodonnell/minegrid/pkg/catalog"
	"github.com/cbodonnell/minegrid/pkg/game/types"
	"github.com/cbodonnell/minegrid/pkg/geometry"
	"github.com/cbodonnell/minegrid/pkg/log"
	"github.com/cbodonnell/minegrid/pkg/repositories/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository connects to the database, applies the migrations directory and
// seeds the default attacker shapes. Saves run from a worker goroutine while the API
// reads concurrently, so a pool is used instead of a single connection.
// The caller is responsible for calling Close() on the repository.
func NewPostgresRepository(ctx context.Context, connStr string, migrations string) (Repository, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %v", err)
	}

	var username string
	var database string
	if err := pool.QueryRow(ctx, "SELECT current_user, current_database()").Scan(&username, &database); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to query database: %v", err)
	}
	log.Info("Connected to %s as %s", database, username)

	r := &PostgresRepository{
		pool: pool,
	}
	if migrations != "" {
		if err := r.migrate(ctx, migrations); err != nil {
			pool.Close()
			return nil, err
		}
	}
	if err := r.seedShapes(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to seed shapes: %v", err)
	}

	return r, nil
}

func (r *PostgresRepository) migrate(ctx context.Context, migrations string) error {
	dir, err := os.ReadDir(migrations)
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %v", err)
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
			return fmt.Errorf("failed to read migration %s: %v", migrationPath, err)
		}

		if _, err := r.pool.Exec(ctx, string(migration)); err != nil {
			return fmt.Errorf("failed to execute migration %s: %v", migrationPath, err)
		}
	}

	return nil
}

func (r *PostgresRepository) seedShapes(ctx context.Context) error {
	var count int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM shapes WHERE type = 'attacker'").Scan(&count); err != nil {
		return fmt.Errorf("failed to count shapes: %v", err)
	}
	if count > 0 {
		return nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %v", err)
	}
	defer tx.Rollback(ctx)

	for _, shape := range catalog.DefaultAttackerShapes {
		data, err := json.Marshal(shape)
		if err != nil {
			return fmt.Errorf("failed to marshal shape: %v", err)
		}
		if _, err := tx.Exec(ctx, "INSERT INTO shapes (shape_data, type) VALUES ($1, 'attacker')", string(data)); err != nil {
			return fmt.Errorf("failed to insert shape: %v", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %v", err)
	}

	log.Info("Seeded %d default attacker shapes", len(catalog.DefaultAttackerShapes))
	return nil
}

func (r *PostgresRepository) Close(ctx context.Context) error {
	r.pool.Close()
	return nil
}

func (r *PostgresRepository) SaveSession(ctx context.Context, session *types.Session) error {
	snapshot, err := encodeSnapshot(session)
	if err != nil {
		return err
	}

	q := `
	INSERT INTO games (room_id, host_id, guest_id, phase, winner, snapshot, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (room_id) DO UPDATE SET
		host_id = $2, guest_id = $3, phase = $4, winner = $5, snapshot = $6, updated_at = $8;
	`
	_, err = r.pool.Exec(ctx, q,
		session.RoomID,
		session.HostID,
		nullableText(session.GuestID),
		string(session.Phase),
		nullableText(session.Winner),
		snapshot,
		session.CreatedAt,
		session.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert game: %v", err)
	}

	return nil
}

func (r *PostgresRepository) LoadSession(ctx context.Context, roomID string) (*types.Session, error) {
	var snapshot []byte
	if err := r.pool.QueryRow(ctx, "SELECT snapshot FROM games WHERE room_id = $1", roomID).Scan(&snapshot); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &ErrNotFound{}
		}
		return nil, fmt.Errorf("failed to scan game: %v", err)
	}

	return decodeSnapshot(snapshot)
}

func (r *PostgresRepository) ListActiveGames(ctx context.Context, participantID string, limit int) ([]*models.Game, error) {
	q := `
	SELECT room_id, host_id, COALESCE(guest_id, ''), phase, COALESCE(winner, ''), created_at, updated_at
	FROM games
	WHERE (host_id = $1 OR guest_id = $1) AND phase != $2
	ORDER BY created_at DESC
	LIMIT $3;
	`
	rows, err := r.pool.Query(ctx, q, participantID, string(types.PhaseGameOver), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query games: %v", err)
	}
	defer rows.Close()

	games := []*models.Game{}
	for rows.Next() {
		game := &models.Game{}
		var phase string
		if err := rows.Scan(&game.RoomID, &game.HostID, &game.GuestID, &phase, &game.Winner, &game.CreatedAt, &game.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan game: %v", err)
		}
		game.Phase = types.Phase(phase)
		games = append(games, game)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate games: %v", err)
	}

	return games, nil
}

func (r *PostgresRepository) ListAttackerShapes(ctx context.Context) ([]geometry.Footprint, error) {
	rows, err := r.pool.Query(ctx, "SELECT shape_data FROM shapes WHERE type = 'attacker' ORDER BY id")
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

func (r *PostgresRepository) GetGameConfig(ctx context.Context) (*models.GameConfig, error) {
	var value string
	if err := r.pool.QueryRow(ctx, "SELECT value FROM game_config WHERE key = 'default_config'").Scan(&value); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
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

func nullableText(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

package repositories

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"
)

// Open creates the repository selected by the scheme of connStr: sqlite://<path>,
// postgresql://... or memory://. Migrations are read from the sqlite or postgres
// subdirectory of migrationsRoot.
func Open(ctx context.Context, connStr string, migrationsRoot string) (Repository, error) {
	u, err := url.Parse(connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %v", err)
	}

	switch u.Scheme {
	case "sqlite":
		repository, err := NewSQLiteRepository(ctx, u.Host+u.Path, filepath.Join(migrationsRoot, "sqlite"))
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite repository: %v", err)
		}
		return repository, nil
	case "postgresql", "postgres":
		repository, err := NewPostgresRepository(ctx, u.String(), filepath.Join(migrationsRoot, "postgres"))
		if err != nil {
			return nil, fmt.Errorf("failed to create Postgres repository: %v", err)
		}
		return repository, nil
	case "memory":
		return NewMemoryRepository(), nil
	default:
		return nil, fmt.Errorf("unknown database type %q", u.Scheme)
	}
}

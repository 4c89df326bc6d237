package postgres

import (
	"context"
	"embed"
	"fmt"
	"io"
	"io/fs"
	"sort"
	"strings"

	"github.com/samber/lo"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Migration is one forward-only schema change
type Migration struct {
	Version string
	SQL     string
}

const createMigrationsTable = `CREATE TABLE IF NOT EXISTS schema_migrations (
    version    TEXT PRIMARY KEY,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// LoadMigrations returns the embedded migrations ordered by version
func LoadMigrations() ([]Migration, error) {
	entries, err := fs.ReadDir(migrationFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("reading migrations: %w", err)
	}

	migrations := make([]Migration, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		body, err := migrationFS.ReadFile("migrations/" + e.Name())
		if err != nil {
			return nil, fmt.Errorf("reading migration %s: %w", e.Name(), err)
		}
		migrations = append(migrations, Migration{
			Version: strings.TrimSuffix(e.Name(), ".sql"),
			SQL:     string(body),
		})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}

// WriteMigrations prints every migration, used by the dry-run mode
func WriteMigrations(w io.Writer) error {
	migrations, err := LoadMigrations()
	if err != nil {
		return err
	}
	for _, m := range migrations {
		if _, err := fmt.Fprintf(w, "-- %s\n%s\n", m.Version, m.SQL); err != nil {
			return err
		}
	}
	return nil
}

// Migrate applies every migration not yet recorded in schema_migrations,
// each in its own transaction, and returns the versions it applied
func (db *DB) Migrate(ctx context.Context) ([]string, error) {
	migrations, err := LoadMigrations()
	if err != nil {
		return nil, err
	}

	if _, err := db.ExecContext(ctx, createMigrationsTable); err != nil {
		return nil, MapError(err, "schema_migrations")
	}

	var applied []string
	if err := db.SelectContext(ctx, &applied, `SELECT version FROM schema_migrations`); err != nil {
		return nil, MapError(err, "schema_migrations")
	}

	pending := lo.Filter(migrations, func(m Migration, _ int) bool {
		return !lo.Contains(applied, m.Version)
	})

	done := make([]string, 0, len(pending))
	for _, m := range pending {
		m := m
		db.logger.Infow("applying migration", "version", m.Version)
		err := db.WithTx(ctx, func(ctx context.Context) error {
			q := db.GetQuerier(ctx)
			if _, err := q.ExecContext(ctx, m.SQL); err != nil {
				return MapError(err, "migration "+m.Version)
			}
			if _, err := q.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, m.Version); err != nil {
				return MapError(err, "schema_migrations")
			}
			return nil
		})
		if err != nil {
			return done, err
		}
		done = append(done, m.Version)
	}

	return done, nil
}

// Package pg is the optional durable mirror: when an operator sets
// Database.PostgresDSN, the gateway applies the SQL migrations under
// Database.MigrationsDir (via golang-migrate) and shadows the on-disk session and cron stores into
// Postgres. Nothing here is load-bearing for a default single-node run —
// the JSONL session files and cron.json remain authoritative; this package
// only ever receives snapshots after the on-disk write already succeeded.
package pg

import (
	"database/sql"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// OpenDB opens a pooled connection to Postgres over the pgx stdlib driver.
func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("pg: open: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pg: ping: %w", err)
	}
	return db, nil
}

// Migrate applies every pending migration under dir to the database
// addressed by dsn. migrate.ErrNoChange is not an error: it means the
// schema was already current.
func Migrate(dsn, dir string) error {
	m, err := migrate.New("file://"+dir, dsn)
	if err != nil {
		return fmt.Errorf("pg: create migrator: %w", err)
	}
	defer m.Close()
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("pg: migrate up: %w", err)
	}
	return nil
}

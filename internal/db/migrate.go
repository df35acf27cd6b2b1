package db

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	pgxmigrate "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	sqlitemigrate "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"photowall/internal/logging"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrationsFS embed.FS

// RunMigrations brings the schema behind databaseURL up to date. It uses
// its own connection, which is closed on return.
func RunMigrations(databaseURL string) error {
	t, err := ParseURL(databaseURL)
	if err != nil {
		return err
	}

	conn, err := sql.Open(t.Driver, t.Source)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()

	var driver database.Driver
	switch t.Dialect {
	case Postgres:
		driver, err = pgxmigrate.WithInstance(conn, &pgxmigrate.Config{})
	case SQLite:
		driver, err = sqlitemigrate.WithInstance(conn, &sqlitemigrate.Config{})
	default:
		err = fmt.Errorf("no migration driver for %s", t.Dialect)
	}
	if err != nil {
		return fmt.Errorf("migration driver: %w", err)
	}

	src, err := iofs.New(migrationsFS, "migrations/"+string(t.Dialect))
	if err != nil {
		return fmt.Errorf("migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, string(t.Dialect), driver)
	if err != nil {
		return fmt.Errorf("migrate init: %w", err)
	}
	defer func() { _, _ = m.Close() }()

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logging.Info("migrations_up_to_date", logging.Fields{"dialect": t.Dialect})
			return nil
		}
		return fmt.Errorf("migrate up: %w", err)
	}

	version, dirty, _ := m.Version()
	logging.Info("migrations_applied", logging.Fields{
		"dialect": t.Dialect,
		"version": version,
		"dirty":   dirty,
	})
	return nil
}

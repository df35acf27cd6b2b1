// Package db opens the metadata database and applies the embedded schema
// migrations. Postgres (via pgx) is the production backend; sqlite (via
// modernc) serves local development and tests.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Dialect names the SQL flavour behind a connection.
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

// Target is a parsed DATABASE_URL.
type Target struct {
	Dialect Dialect
	Driver  string // database/sql driver name
	Source  string // DSN handed to the driver
}

// ParseURL maps a DATABASE_URL onto a driver. Accepted forms:
// postgres://…, postgresql://…, sqlite://path and file:path.
func ParseURL(databaseURL string) (Target, error) {
	raw := strings.TrimSpace(databaseURL)
	if raw == "" {
		return Target{}, errors.New("DATABASE_URL is empty")
	}

	switch {
	case strings.HasPrefix(raw, "postgres://"), strings.HasPrefix(raw, "postgresql://"):
		return Target{Dialect: Postgres, Driver: "pgx", Source: raw}, nil
	case strings.HasPrefix(raw, "sqlite://"):
		path := strings.TrimPrefix(raw, "sqlite://")
		if path == "" {
			return Target{}, errors.New("sqlite path is empty")
		}
		return Target{Dialect: SQLite, Driver: "sqlite", Source: path}, nil
	case strings.HasPrefix(raw, "file:"):
		return Target{Dialect: SQLite, Driver: "sqlite", Source: raw}, nil
	default:
		return Target{}, fmt.Errorf("unsupported DATABASE_URL scheme: %q", schemeOf(raw))
	}
}

func schemeOf(raw string) string {
	if i := strings.Index(raw, "://"); i > 0 {
		return raw[:i]
	}
	return raw
}

// Open opens a connection pool for databaseURL and verifies connectivity.
func Open(databaseURL string) (*sql.DB, Target, error) {
	t, err := ParseURL(databaseURL)
	if err != nil {
		return nil, Target{}, err
	}

	db, err := sql.Open(t.Driver, t.Source)
	if err != nil {
		return nil, Target{}, err
	}

	switch t.Dialect {
	case Postgres:
		// Conservative pool defaults.
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(30 * time.Minute)
	case SQLite:
		// One writer avoids SQLITE_BUSY under concurrent requests.
		db.SetMaxOpenConns(1)
	}

	// Validate connectivity immediately.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, Target{}, err
	}

	if t.Dialect == SQLite {
		if _, err := db.ExecContext(ctx, `PRAGMA journal_mode=WAL;`); err != nil {
			_ = db.Close()
			return nil, Target{}, fmt.Errorf("sqlite pragma: %w", err)
		}
	}

	return db, t, nil
}

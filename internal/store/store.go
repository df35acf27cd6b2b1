// Package store persists submissions and administrators in a SQL database.
// The same queries serve Postgres and sqlite; placeholders are written as
// "?" and rebound to "$n" for Postgres.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"photowall/internal/db"
	"photowall/internal/gallery"
)

// Store implements gallery.SubmissionStore and gallery.AdminStore.
type Store struct {
	db      *sql.DB
	dialect db.Dialect
	now     func() time.Time
}

var (
	_ gallery.SubmissionStore = (*Store)(nil)
	_ gallery.AdminStore      = (*Store)(nil)
)

// New wraps an open pool.
func New(conn *sql.DB, dialect db.Dialect) *Store {
	return &Store{db: conn, dialect: dialect, now: time.Now}
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// rebind rewrites "?" placeholders to "$1, $2, …" for Postgres.
func (s *Store) rebind(query string) string {
	if s.dialect != db.Postgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(v int64) time.Time {
	return time.UnixMilli(v).UTC()
}

// CreateSubmission inserts sub, assigning its ID and CreatedAt.
func (s *Store) CreateSubmission(ctx context.Context, sub *gallery.Submission) error {
	if sub == nil {
		return errors.New("submission is required")
	}
	images := sub.Images
	if images == nil {
		images = []gallery.Image{}
	}
	payload, err := json.Marshal(images)
	if err != nil {
		return fmt.Errorf("encode images: %w", err)
	}

	id := uuid.NewString()
	createdAt := s.now().UTC().Truncate(time.Millisecond)

	_, err = s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO submissions (id, name, social_media_handle, images, created_at)
		VALUES (?, ?, ?, ?, ?)
	`), id, sub.Name, sub.SocialMediaHandle, string(payload), toMillis(createdAt))
	if err != nil {
		return fmt.Errorf("insert submission: %w", err)
	}

	sub.ID = id
	sub.Images = images
	sub.CreatedAt = createdAt
	return nil
}

// ListSubmissions returns all submissions ordered by creation time, then id.
func (s *Store) ListSubmissions(ctx context.Context) ([]gallery.Submission, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, social_media_handle, images, created_at
		FROM submissions
		ORDER BY created_at, id
	`)
	if err != nil {
		return nil, fmt.Errorf("query submissions: %w", err)
	}
	defer rows.Close()

	subs := []gallery.Submission{}
	for rows.Next() {
		var (
			sub       gallery.Submission
			images    []byte
			createdAt int64
		)
		if err := rows.Scan(&sub.ID, &sub.Name, &sub.SocialMediaHandle, &images, &createdAt); err != nil {
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		if err := json.Unmarshal(images, &sub.Images); err != nil {
			return nil, fmt.Errorf("decode images for %s: %w", sub.ID, err)
		}
		if sub.Images == nil {
			sub.Images = []gallery.Image{}
		}
		sub.CreatedAt = fromMillis(createdAt)
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate submissions: %w", err)
	}
	return subs, nil
}

// CreateAdmin inserts a only if its username is free. The check and the
// insert are one statement, so concurrent registrations cannot both win.
func (s *Store) CreateAdmin(ctx context.Context, a *gallery.Admin) error {
	if a == nil {
		return errors.New("admin is required")
	}

	id := uuid.NewString()
	createdAt := s.now().UTC().Truncate(time.Millisecond)

	res, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO admins (id, username, password_hash, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (username) DO NOTHING
	`), id, a.Username, a.PasswordHash, toMillis(createdAt))
	if err != nil {
		return fmt.Errorf("insert admin: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert admin: %w", err)
	}
	if n == 0 {
		return gallery.ErrDuplicateUsername
	}

	a.ID = id
	a.CreatedAt = createdAt
	return nil
}

// FindAdminByUsername returns the admin or nil when absent.
func (s *Store) FindAdminByUsername(ctx context.Context, username string) (*gallery.Admin, error) {
	var (
		a         gallery.Admin
		createdAt int64
	)
	err := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT id, username, password_hash, created_at
		FROM admins
		WHERE username = ?
	`), username).Scan(&a.ID, &a.Username, &a.PasswordHash, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query admin: %w", err)
	}
	a.CreatedAt = fromMillis(createdAt)
	return &a, nil
}

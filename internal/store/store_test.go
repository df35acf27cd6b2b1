package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"photowall/internal/db"
	"photowall/internal/gallery"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	url := "sqlite://" + filepath.Join(t.TempDir(), "store.db")
	if err := db.RunMigrations(url); err != nil {
		t.Fatalf("migrations: %v", err)
	}
	conn, target, err := db.Open(url)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return New(conn, target.Dialect)
}

func TestRebind(t *testing.T) {
	pg := &Store{dialect: db.Postgres}
	lite := &Store{dialect: db.SQLite}

	q := `INSERT INTO t (a, b, c) VALUES (?, ?, ?)`
	if got, want := pg.rebind(q), `INSERT INTO t (a, b, c) VALUES ($1, $2, $3)`; got != want {
		t.Fatalf("postgres rebind = %q, want %q", got, want)
	}
	if got := lite.rebind(q); got != q {
		t.Fatalf("sqlite rebind changed query: %q", got)
	}
}

func TestCreateAndListSubmissions(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	s.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	first := &gallery.Submission{
		Name:              "Ana",
		SocialMediaHandle: "@ana",
		Images:            []gallery.Image{{URL: "https://cdn.test/a.jpg"}, {URL: "https://cdn.test/b.jpg"}},
	}
	second := &gallery.Submission{
		Name:              "Bo",
		SocialMediaHandle: "@bo",
		Images:            []gallery.Image{{URL: "https://cdn.test/c.jpg"}},
	}

	for _, sub := range []*gallery.Submission{first, second} {
		if err := s.CreateSubmission(ctx, sub); err != nil {
			t.Fatalf("create: %v", err)
		}
		if sub.ID == "" {
			t.Fatal("expected id to be assigned")
		}
		if sub.CreatedAt.IsZero() {
			t.Fatal("expected createdAt to be assigned")
		}
	}

	got, err := s.ListSubmissions(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 submissions, got %d", len(got))
	}
	if got[0].ID != first.ID || got[1].ID != second.ID {
		t.Fatalf("unexpected order: %s, %s", got[0].ID, got[1].ID)
	}
	if len(got[0].Images) != 2 || got[0].Images[1].URL != "https://cdn.test/b.jpg" {
		t.Fatalf("images not round-tripped: %+v", got[0].Images)
	}
	if !got[0].CreatedAt.Equal(first.CreatedAt) {
		t.Fatalf("createdAt = %v, want %v", got[0].CreatedAt, first.CreatedAt)
	}
}

func TestListSubmissions_EmptyIsNotNil(t *testing.T) {
	s := openTestStore(t)

	got, err := s.ListSubmissions(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", got)
	}
}

func TestCreateSubmission_RejectsEmptyName(t *testing.T) {
	s := openTestStore(t)

	err := s.CreateSubmission(context.Background(), &gallery.Submission{SocialMediaHandle: "@x"})
	if err == nil {
		t.Fatal("expected check constraint violation")
	}
}

func countAdmins(ctx context.Context, s *Store, username string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT COUNT(*) FROM admins WHERE username = ?`), username).Scan(&n)
	return n, err
}

func TestCreateAdmin_Conflict(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	a := &gallery.Admin{Username: "root", PasswordHash: "hash-1"}
	if err := s.CreateAdmin(ctx, a); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if a.ID == "" || a.CreatedAt.IsZero() {
		t.Fatalf("expected id and createdAt, got %+v", a)
	}

	err := s.CreateAdmin(ctx, &gallery.Admin{Username: "root", PasswordHash: "hash-2"})
	if !errors.Is(err, gallery.ErrDuplicateUsername) {
		t.Fatalf("expected ErrDuplicateUsername, got %v", err)
	}

	n, err := countAdmins(ctx, s, "root")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected exactly one admin, got %d", n)
	}

	found, err := s.FindAdminByUsername(ctx, "root")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if found == nil || found.PasswordHash != "hash-1" {
		t.Fatalf("expected original record to survive, got %+v", found)
	}
}

func TestFindAdminByUsername_Missing(t *testing.T) {
	s := openTestStore(t)

	a, err := s.FindAdminByUsername(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a != nil {
		t.Fatalf("expected nil admin, got %+v", a)
	}
}

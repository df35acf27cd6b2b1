package app

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"photowall/internal/config"
	"photowall/internal/live"
	"photowall/internal/logging"
	"photowall/internal/server"
)

func quietLogger() *logging.Logger {
	return logging.New(io.Discard, logging.LevelError, "text")
}

func TestNew_MissingBucket(t *testing.T) {
	// An S3 endpoint that knows no buckets.
	s3 := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer s3.Close()

	cfg := config.Config{
		DatabaseURL:     "sqlite://" + filepath.Join(t.TempDir(), "app.db"),
		Port:            0,
		S3Endpoint:      s3.URL,
		S3AccessKey:     "key",
		S3SecretKey:     "secret",
		S3Bucket:        "gallery",
		TokenTTL:        time.Hour,
		BcryptCost:      4,
		ShutdownTimeout: time.Second,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	a, err := New(ctx, cfg, quietLogger())
	if err == nil {
		t.Fatal("expected error for missing bucket")
	}
	if a != nil {
		t.Fatal("failed construction must not return an app")
	}
	if !strings.HasPrefix(err.Error(), "media:") {
		t.Fatalf("expected media error after migrations and database succeeded, got %v", err)
	}
}

func TestNew_BadDatabaseURL(t *testing.T) {
	cfg := config.Config{DatabaseURL: "mysql://nope", ShutdownTimeout: time.Second}

	_, err := New(context.Background(), cfg, quietLogger())
	if err == nil || !strings.HasPrefix(err.Error(), "migrations:") {
		t.Fatalf("expected migrations error, got %v", err)
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()

	log := quietLogger()
	a := &App{
		Config: config.Config{ShutdownTimeout: time.Second},
		Log:    log,
		Hub:    live.NewHub("*", log),
	}
	a.Server = server.New(server.Config{Addr: addr}, server.Deps{Live: a.Hub, Log: log})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	// Wait for the listener to come up.
	deadline := time.Now().Add(2 * time.Second)
	for {
		resp, err := http.Get("http://" + addr + "/live")
		if err == nil {
			resp.Body.Close()
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("server never came up: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRun_ListenError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	log := quietLogger()
	a := &App{
		Config: config.Config{ShutdownTimeout: time.Second},
		Log:    log,
		Hub:    live.NewHub("*", log),
	}
	a.Server = server.New(server.Config{Addr: ln.Addr().String()}, server.Deps{Live: a.Hub, Log: log})

	if err := a.Run(context.Background()); err == nil {
		t.Fatal("expected error when the port is taken")
	}
}

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"photowall/internal/app"
	"photowall/internal/config"
	"photowall/internal/logging"
)

// version is stamped at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := run(context.Background(), os.Stdout); err != nil {
		logging.Error("backend_exit", logging.Fields{"service": "backend"}, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, stdout io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	cfg.Version = version

	log := logging.New(stdout, logging.ParseLevel(cfg.LogLevel), cfg.LogFormat)
	logging.SetDefault(log)

	// SIGINT (Ctrl+C) or SIGTERM (container stop) starts a graceful shutdown.
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("starting", logging.Fields{"service": "backend", "addr": cfg.Addr(), "version": version})

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("startup: %w", err)
	}
	defer func() {
		if err := a.Close(context.Background()); err != nil {
			log.Error("close_failed", nil, err)
		}
	}()

	return a.Run(ctx)
}

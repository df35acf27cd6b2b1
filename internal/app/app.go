// Package app builds the process context: every long-lived handle the
// backend needs, constructed once at startup and passed explicitly.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/sync/errgroup"

	"photowall/internal/config"
	"photowall/internal/db"
	"photowall/internal/gallery"
	"photowall/internal/live"
	"photowall/internal/logging"
	"photowall/internal/media"
	"photowall/internal/metrics"
	"photowall/internal/server"
	"photowall/internal/store"
	"photowall/internal/telemetry"
)

const serviceName = "photowall"

// App owns the database pool, the media adapter, the live hub and the HTTP
// server.
type App struct {
	Config    config.Config
	Log       *logging.Logger
	Metrics   *metrics.Metrics
	DB        *sql.DB
	Store     *store.Store
	Media     *media.Store
	Hub       *live.Hub
	Submitter *gallery.Submitter
	Registrar *gallery.Registrar
	Server    *server.Server

	shutdownTracing func(context.Context) error
}

// New runs migrations, opens every connection and wires the services.
// On error, whatever was opened is closed again.
func New(ctx context.Context, cfg config.Config, log *logging.Logger) (a *App, err error) {
	a = &App{Config: cfg, Log: log, Metrics: metrics.New()}
	defer func() {
		if err != nil {
			_ = a.Close(context.Background())
			a = nil
		}
	}()

	a.shutdownTracing, err = telemetry.Setup(ctx, serviceName, cfg.Version, cfg.OTLPEndpoint)
	if err != nil {
		return a, fmt.Errorf("tracing: %w", err)
	}

	log.Info("running_migrations", nil)
	if err = db.RunMigrations(cfg.DatabaseURL); err != nil {
		return a, fmt.Errorf("migrations: %w", err)
	}

	conn, target, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		return a, fmt.Errorf("database: %w", err)
	}
	a.DB = conn
	a.Store = store.New(conn, target.Dialect)
	log.Info("database_ready", logging.Fields{"dialect": string(target.Dialect)})

	a.Media, err = media.New(ctx, media.Config{
		Endpoint:  cfg.S3Endpoint,
		AccessKey: cfg.S3AccessKey,
		SecretKey: cfg.S3SecretKey,
		Bucket:    cfg.S3Bucket,
		PublicURL: cfg.S3PublicURL,
		Prefix:    cfg.S3Prefix,
	})
	if err != nil {
		return a, fmt.Errorf("media: %w", err)
	}

	key, generated, err := cfg.SigningKey()
	if err != nil {
		return a, fmt.Errorf("signing key: %w", err)
	}
	if generated {
		log.Warn("jwt_secret_generated", logging.Fields{"note": "admin tokens will not survive a restart"})
	}

	a.Hub = live.NewHub(cfg.CORSAllowedOrigin, log)
	a.Submitter = gallery.NewSubmitter(a.Store, a.Media, a.Hub, a.Metrics, log, gallery.SubmitterConfig{
		UploadTimeout:    cfg.UploadTimeout,
		CleanupOnFailure: cfg.CleanupOnFailure,
	})
	a.Registrar = gallery.NewRegistrar(a.Store, a.Metrics, log, gallery.RegistrarConfig{
		BcryptCost: cfg.BcryptCost,
		JWTSecret:  key,
		TokenTTL:   cfg.TokenTTL,
	})

	a.Server = server.New(server.Config{
		Addr:                  cfg.Addr(),
		Version:               cfg.Version,
		MaxUploadBytes:        cfg.MaxUploadBytes,
		CORSAllowedOrigin:     cfg.CORSAllowedOrigin,
		RequireAuthForListing: cfg.RequireAuthForListing,
		AdminRateLimit:        cfg.AdminRateLimit,
	}, server.Deps{
		Submitter: a.Submitter,
		Registrar: a.Registrar,
		Live:      a.Hub,
		Metrics:   a.Metrics,
		Log:       log,
		Checks: map[string]server.Check{
			"database": a.Store.Ping,
			"media":    a.Media.Ping,
		},
		Gauges: map[string]metrics.GaugeFunc{
			"photowall_live_clients":    func() float64 { return float64(a.Hub.Len()) },
			"photowall_db_open_conns":   func() float64 { return float64(conn.Stats().OpenConnections) },
			"photowall_db_in_use_conns": func() float64 { return float64(conn.Stats().InUse) },
		},
	})
	return a, nil
}

// Run serves HTTP until ctx is cancelled or the listener fails, then shuts
// the server down within the configured timeout.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := a.Server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		a.Log.Info("shutting_down", nil)

		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.Config.ShutdownTimeout)
		defer cancel()

		// Hijacked websocket connections are not tracked by http.Server.
		a.Hub.Close()
		if err := a.Server.Shutdown(sctx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		a.Log.Info("shutdown_complete", nil)
		return nil
	})

	return g.Wait()
}

// Close releases the database pool and flushes pending spans.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.DB != nil {
		errs = append(errs, a.DB.Close())
	}
	if a.shutdownTracing != nil {
		errs = append(errs, a.shutdownTracing(ctx))
	}
	return errors.Join(errs...)
}

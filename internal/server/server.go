package server

import (
	"context"
	stdlog "log"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"photowall/internal/gallery"
	"photowall/internal/logging"
	"photowall/internal/metrics"
)

// Config holds the transport settings.
type Config struct {
	Addr    string // e.g. ":5000"
	Version string

	// MaxUploadBytes caps the request body of POST /api/submit.
	MaxUploadBytes int64
	// CORSAllowedOrigin is echoed in Access-Control-Allow-Origin.
	CORSAllowedOrigin string
	// RequireAuthForListing puts GET /api/users behind an admin token.
	RequireAuthForListing bool
	// AdminRateLimit is the per-IP request budget per minute on the admin
	// credential routes. Zero disables the limiter.
	AdminRateLimit int
}

// Check probes one dependency for the readiness and health endpoints.
type Check func(ctx context.Context) error

// Deps are the handles the routes delegate to.
type Deps struct {
	Submitter *gallery.Submitter
	Registrar *gallery.Registrar
	// Live serves GET /ws.
	Live    http.Handler
	Metrics *metrics.Metrics
	Log     *logging.Logger
	// Checks are run by /health and /ready, keyed by component name.
	Checks map[string]Check
	// Gauges are sampled on every /metrics scrape.
	Gauges map[string]metrics.GaugeFunc
}

type Server struct {
	cfg        Config
	submitter  *gallery.Submitter
	registrar  *gallery.Registrar
	metrics    *metrics.Metrics
	log        *logging.Logger
	checks     map[string]Check
	limiter    *rateLimiter
	handler    http.Handler
	httpServer *http.Server
}

func New(cfg Config, deps Deps) *Server {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 50 << 20
	}
	if cfg.CORSAllowedOrigin == "" {
		cfg.CORSAllowedOrigin = "*"
	}
	log := deps.Log
	if log == nil {
		log = logging.Default()
	}

	s := &Server{
		cfg:       cfg,
		submitter: deps.Submitter,
		registrar: deps.Registrar,
		metrics:   deps.Metrics,
		log:       log,
		checks:    deps.Checks,
	}

	r := chi.NewRouter()

	// recovery -> request id -> access log -> CORS -> security headers -> routes
	r.Use(s.recoveryMiddleware)
	r.Use(middleware.RealIP)
	r.Use(requestIDMiddleware)
	r.Use(s.accessLogMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(securityHeadersMiddleware)

	r.Get("/health", s.HandleHealth)
	r.Get("/ready", s.HandleReady)
	r.Get("/live", s.HandleLive)
	r.Get("/metrics", metrics.Handler(deps.Metrics, cfg.Version, deps.Gauges))

	r.Route("/api", func(r chi.Router) {
		r.Post("/submit", s.handleSubmit)

		r.Group(func(r chi.Router) {
			if cfg.AdminRateLimit > 0 {
				s.limiter = newRateLimiter(cfg.AdminRateLimit, time.Minute)
				r.Use(s.limiter.middleware)
			}
			r.Post("/register-admin", s.handleRegisterAdmin)
			r.Post("/login-admin", s.handleLoginAdmin)
		})

		r.Group(func(r chi.Router) {
			if cfg.RequireAuthForListing {
				r.Use(s.requireAdmin)
			}
			r.Get("/users", s.handleListSubmissions)
		})
	})

	if deps.Live != nil {
		r.Get("/ws", deps.Live.ServeHTTP)
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	s.handler = r
	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
		ErrorLog:          stdlog.New(log.Writer(logging.LevelWarn), "", 0),
	}
	return s
}

// Handler exposes the routed handler, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until Shutdown is called.
func (s *Server) Serve(ln net.Listener) error {
	s.log.Info("http_listening", logging.Fields{"addr": ln.Addr().String(), "version": s.cfg.Version})
	return s.httpServer.Serve(ln)
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.limiter != nil {
		s.limiter.Close()
	}
	return s.httpServer.Shutdown(ctx)
}

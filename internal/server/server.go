package server

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"filedesk/internal/files"
	"filedesk/internal/logger"
)

// Pinger is implemented by stores that can report connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config carries everything the HTTP layer needs. Stores are built by the
// caller and injected here.
type Config struct {
	Addr              string // e.g. ":8080"
	ReadHeaderTimeout time.Duration
	Version           string

	// MaxUploadBytes caps the request body of POST /upload. Zero means no
	// limit.
	MaxUploadBytes int64

	Files  *files.Service
	Auth   AuthConfig
	DB     Pinger // nil when metadata lives in memory
	Logger *logger.Logger
}

type Server struct {
	httpServer *http.Server
}

func New(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = logger.NewNop()
	}
	if cfg.ReadHeaderTimeout <= 0 {
		cfg.ReadHeaderTimeout = 5 * time.Second
	}

	s := &http.Server{
		Addr:              cfg.Addr,
		Handler:           cfg.routes(),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}

	return &Server{httpServer: s}
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (cfg Config) routes() http.Handler {
	r := chi.NewRouter()

	// requestID -> realIP -> logging -> metrics -> recover -> headers -> routes
	r.Use(requestIDMiddleware)
	r.Use(middleware.RealIP)
	r.Use(cfg.loggingMiddleware)
	r.Use(metricsMiddleware)
	r.Use(cfg.recoverMiddleware)
	r.Use(securityHeadersMiddleware)

	limiter := newLoginLimiter(cfg.Auth.LoginRate, cfg.Auth.LoginBurst)

	// The frontend calls everything under /api; both mounts share handlers
	// and the login limiter.
	mount := func(r chi.Router) {
		r.Get("/health", cfg.healthHandler())
		r.With(limiter.middleware).Post("/login", cfg.Auth.loginHandler(cfg.Logger))
		r.Post("/logout", cfg.Auth.logoutHandler())

		r.Post("/upload", cfg.uploadHandler())
		r.Get("/files", cfg.listFilesHandler())
		r.Delete("/files/{id}", cfg.deleteFileHandler())
		r.Get("/serve/{id}", cfg.serveHandler(false))
		r.Get("/download/{id}", cfg.serveHandler(true))
	}
	mount(r)
	r.Route("/api", mount)

	r.Get("/ready", cfg.readyHandler())
	r.Get("/live", liveHandler)
	r.Handle("/metrics", promhttp.Handler())

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorResp{Error: "not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorResp{Error: "method not allowed"})
	})

	return r
}

func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	return s.httpServer.Serve(ln)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

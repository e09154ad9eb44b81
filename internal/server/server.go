package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/ksenkin/tradediary/internal/server/handler"
	"github.com/ksenkin/tradediary/internal/server/middleware"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health    *handler.HealthHandler
	Auth      *handler.AuthHandler
	Positions *handler.PositionHandler
	Stats     *handler.StatsHandler
	Sync      *handler.SyncHandler
}

// Server is the headless HTTP API for the trade diary.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a Server with all routes registered on the ServeMux.
// Registration and the health check are public; every diary route sits
// behind the bearer-token auth middleware.
func NewServer(cfg Config, handlers Handlers, auth middleware.Authenticator, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// Public routes.
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)
	mux.HandleFunc("POST /api/auth/register", handlers.Auth.Register)

	// Authenticated diary routes.
	protected := http.NewServeMux()
	protected.HandleFunc("GET /api/auth/me", handlers.Auth.Me)
	protected.HandleFunc("GET /api/trades", handlers.Positions.ListTrades)
	protected.HandleFunc("GET /api/trades/{id}", handlers.Positions.GetTrade)
	protected.HandleFunc("PUT /api/trades/{id}/close", handlers.Positions.CloseTrade)
	protected.HandleFunc("GET /api/stats", handlers.Stats.GetStats)
	protected.HandleFunc("POST /api/sync", handlers.Sync.TriggerSync)
	protected.HandleFunc("GET /api/sync/runs", handlers.Sync.ListRuns)
	mux.Handle("/api/", middleware.Auth(auth)(protected))

	var h http.Handler = mux
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
	}
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}

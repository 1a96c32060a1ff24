// Package server assembles the HTTP surface: REST read views over the
// snapshot store, the WebSocket endpoint, and the middleware chain.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/sportfeed/oddsgate/internal/domain"
	"github.com/sportfeed/oddsgate/internal/server/handler"
	"github.com/sportfeed/oddsgate/internal/server/middleware"
	"github.com/sportfeed/oddsgate/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string

	// RateLimit / RateWindow bound REST requests per client IP. Zero
	// disables HTTP rate limiting.
	RateLimit  int
	RateWindow time.Duration
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health *handler.HealthHandler
	Odds   *handler.OddsHandler
	Scores *handler.ScoresHandler
	Props  *handler.PropsHandler
}

// Server is the HTTP + WebSocket API server for the odds gateway.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates a new Server with all routes registered on the ServeMux.
// It wires up middleware (rate limiting, auth, logging, CORS) and attaches
// the WebSocket hub. limiter may be nil to disable HTTP rate limiting.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, entitlements domain.EntitlementResolver, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	// API routes that require an entitlement.
	mux := http.NewServeMux()

	// Odds read views.
	mux.HandleFunc("GET /api/odds", handlers.Odds.ListOdds)
	mux.HandleFunc("GET /api/odds/moneyline", handlers.Odds.ListMoneyline)
	mux.HandleFunc("GET /api/odds/spreads", handlers.Odds.ListSpreads)
	mux.HandleFunc("GET /api/odds/totals", handlers.Odds.ListTotals)

	// Scores read view.
	mux.HandleFunc("GET /api/scores", handlers.Scores.ListScores)

	// Props read views (entitlement-gated in the handler).
	mux.HandleFunc("GET /api/props", handlers.Props.ListBooks)
	mux.HandleFunc("GET /api/props/{book}", handlers.Props.GetBookProps)

	// Auth wraps the API routes only. The health check stays open, and the
	// WebSocket endpoint does its own auth so the hub can attach the
	// entitlement to the consumer.
	outer := http.NewServeMux()
	outer.HandleFunc("GET /api/health", handlers.Health.HealthCheck)
	if wsHub != nil {
		outer.HandleFunc("GET /ws", wsHub.HandleWS)
	}
	outer.Handle("/api/", middleware.Auth(entitlements)(mux))

	var h http.Handler = outer
	if limiter != nil && cfg.RateLimit > 0 {
		h = middleware.RateLimit(limiter, cfg.RateLimit, cfg.RateWindow)(h)
	}
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
		mux:        mux,
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

// Package server assembles the HTTP + WebSocket API over the orchestration
// services.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/cinafi/leverbot/internal/domain"
	"github.com/cinafi/leverbot/internal/server/handler"
	"github.com/cinafi/leverbot/internal/server/middleware"
	"github.com/cinafi/leverbot/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	// APIKey empty disables authentication.
	APIKey string
	// RateLimit is requests per second per client IP; zero disables limiting.
	RateLimit int
}

// Handlers aggregates every handler the server registers.
type Handlers struct {
	Health     *handler.HealthHandler
	Meta       *handler.MetaHandler
	Positions  *handler.PositionHandler
	Actions    *handler.ActionHandler
	FlashLoans *handler.FlashLoanHandler
	Approve    *handler.ApproveHandler
	Admin      *handler.AdminHandler
	Cache      *handler.CacheHandler
}

// Server is the headless HTTP + WebSocket API.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// New creates a Server with all routes registered and the middleware chain
// applied: CORS, rate limiting, auth, then request logging.
func New(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)
	mux.HandleFunc("GET /api/meta", handlers.Meta.GetMeta)

	mux.HandleFunc("GET /api/positions", handlers.Positions.ListPositions)
	mux.HandleFunc("POST /api/positions/open", handlers.Positions.Open)
	mux.HandleFunc("POST /api/positions/open-leveraged", handlers.Positions.OpenLeveraged)
	mux.HandleFunc("POST /api/positions/operate", handlers.Positions.Operate)
	mux.HandleFunc("POST /api/positions/{id}/refresh", handlers.Positions.Refresh)

	mux.HandleFunc("POST /api/approve", handlers.Approve.Approve)

	mux.HandleFunc("GET /api/actions", handlers.Actions.ListActions)
	mux.HandleFunc("GET /api/actions/{id}", handlers.Actions.GetAction)
	mux.HandleFunc("POST /api/actions/{id}/retry", handlers.Actions.RetryAction)

	mux.HandleFunc("POST /api/flashloan", handlers.FlashLoans.Execute)
	mux.HandleFunc("POST /api/flashloan/preflight", handlers.FlashLoans.Preflight)

	mux.HandleFunc("GET /api/pools/{address}", handlers.Admin.GetPool)
	mux.HandleFunc("GET /api/tokens/{address}/rate", handlers.Admin.GetTokenRate)
	mux.HandleFunc("POST /api/admin/rate-provider", handlers.Admin.UpdateRateProvider)
	mux.HandleFunc("POST /api/admin/pool-capacity", handlers.Admin.UpdatePoolCapacity)

	mux.HandleFunc("DELETE /api/cache/{wallet}", handlers.Cache.ClearCache)

	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	var h http.Handler = mux
	h = middleware.Auth(cfg.APIKey)(h)
	if limiter != nil && cfg.RateLimit > 0 {
		h = middleware.RateLimit(limiter, cfg.RateLimit, time.Second)(h)
	}
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      h,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger.With("component", "server"),
	}
}

// Start blocks serving requests until the listener fails or Shutdown runs.
func (s *Server) Start() error {
	s.logger.Info("starting", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests within the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}

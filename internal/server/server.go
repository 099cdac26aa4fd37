// Package server assembles the HTTP API: routes, middleware chain, and the
// websocket attachment point.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/carbidx2025/CarbidX-EM/internal/domain"
	"github.com/carbidx2025/CarbidX-EM/internal/server/handler"
	"github.com/carbidx2025/CarbidX-EM/internal/server/middleware"
	"github.com/carbidx2025/CarbidX-EM/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string

	// APIRateLimit / APIRateWindow cap requests per client IP across the
	// whole API. Zero disables the middleware.
	APIRateLimit  int
	APIRateWindow time.Duration
}

// Handlers aggregates all HTTP handlers that the server registers.
type Handlers struct {
	Auth     *handler.AuthHandler
	Auctions *handler.AuctionHandler
	Bids     *handler.BidHandler
	Admin    *handler.AdminHandler
	Health   *handler.HealthHandler
}

// Server is the HTTP + websocket API server for the marketplace.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a Server with all routes registered on the ServeMux and
// the middleware chain (CORS, logging, rate limit, auth) wrapped around it.
func NewServer(
	cfg Config,
	handlers Handlers,
	verifier middleware.TokenVerifier,
	limiter domain.RateLimiter,
	wsHub *ws.Hub,
	logger *slog.Logger,
) *Server {
	mux := http.NewServeMux()

	// Auth surface.
	mux.HandleFunc("POST /api/register", handlers.Auth.Register)
	mux.HandleFunc("POST /api/login", handlers.Auth.Login)
	mux.HandleFunc("GET /api/me", handlers.Auth.Me)
	mux.HandleFunc("PUT /api/profile", handlers.Auth.UpdateProfile)

	// Car requests.
	mux.HandleFunc("POST /api/car-requests", handlers.Auctions.Create)
	mux.HandleFunc("GET /api/car-requests", handlers.Auctions.List)
	mux.HandleFunc("GET /api/car-requests/{id}", handlers.Auctions.Get)

	// Bids.
	mux.HandleFunc("POST /api/bids", handlers.Bids.Submit)
	mux.HandleFunc("GET /api/bids/{auctionID}", handlers.Bids.ListForAuction)
	mux.HandleFunc("GET /api/my-bids", handlers.Bids.ListMine)

	// Admin surface.
	mux.HandleFunc("GET /api/admin/users", handlers.Admin.ListUsers)
	mux.HandleFunc("PUT /api/admin/users/{id}", handlers.Admin.UpdateUser)
	mux.HandleFunc("DELETE /api/admin/users/{id}", handlers.Admin.DeleteUser)
	mux.HandleFunc("PUT /api/admin/verify-license/{id}", handlers.Admin.VerifyLicense)
	mux.HandleFunc("GET /api/admin/auctions", handlers.Admin.ListAuctions)
	mux.HandleFunc("PUT /api/admin/auctions/{id}/status", handlers.Admin.SetAuctionStatus)
	mux.HandleFunc("GET /api/admin/bids", handlers.Admin.ListBids)

	// Health check (no auth required).
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// Websocket endpoint.
	if wsHub != nil {
		mux.HandleFunc("GET /ws/{user_id}", wsHub.HandleWS)
	}

	// Build the middleware chain, innermost first.
	var h http.Handler = mux
	h = middleware.Auth(verifier)(h)
	if limiter != nil && cfg.APIRateLimit > 0 {
		h = middleware.RateLimit(limiter, cfg.APIRateLimit, cfg.APIRateWindow)(h)
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

	return &Server{httpServer: srv, logger: logger}
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting", slog.String("addr", s.httpServer.Addr))
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

// Package app provides the top-level application lifecycle: it wires the
// stores, coordination primitives, services, and HTTP/websocket server from
// the configuration and runs them until the context is cancelled.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/carbidx2025/CarbidX-EM/internal/auth"
	"github.com/carbidx2025/CarbidX-EM/internal/config"
	"github.com/carbidx2025/CarbidX-EM/internal/domain"
	"github.com/carbidx2025/CarbidX-EM/internal/server"
	"github.com/carbidx2025/CarbidX-EM/internal/server/handler"
	"github.com/carbidx2025/CarbidX-EM/internal/server/ws"
	"github.com/carbidx2025/CarbidX-EM/internal/service"
)

// App is the root application object. It owns the configuration, logger, and
// a list of cleanup functions called in reverse order on shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

// New creates a new App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run wires all dependencies, starts the HTTP server, the websocket hub, and
// the expiry sweeper, and blocks until the context is cancelled or one of
// them fails.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting application",
		slog.Int("port", a.cfg.Server.Port),
		slog.String("log_level", a.cfg.LogLevel),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	// Services.
	tokens := auth.NewTokenManager(a.cfg.Auth.JWTSecret, a.cfg.Auth.TokenTTL.Duration)
	authSvc := service.NewAuthService(deps.UserStore, tokens, a.cfg.Auth.BcryptCost, a.logger)
	auctionSvc := service.NewAuctionService(
		deps.AuctionStore, deps.BidStore, deps.SignalBus, deps.LockManager,
		a.cfg.Auction.DefaultDurationHours, a.logger,
	)
	if deps.Archiver != nil {
		auctionSvc = auctionSvc.WithArchiver(deps.Archiver)
	}
	bidSvc := service.NewBidService(
		deps.BidStore, deps.AuctionStore, deps.UserStore,
		deps.LockManager, deps.RateLimiter, deps.SignalBus,
		a.cfg.Auction.BidLockTTL.Duration,
		a.cfg.Auction.BidRateLimit,
		a.cfg.Auction.BidRateWindow.Duration,
		a.logger,
	)
	adminSvc := service.NewAdminService(deps.UserStore, deps.AuctionStore, deps.BidStore, a.logger)

	// Hub and HTTP server.
	hub := ws.NewHub(deps.SignalBus, a.logger)

	handlers := server.Handlers{
		Auth:     handler.NewAuthHandler(authSvc, a.logger),
		Auctions: handler.NewAuctionHandler(auctionSvc, a.logger),
		Bids:     handler.NewBidHandler(bidSvc, a.logger),
		Admin:    handler.NewAdminHandler(adminSvc, auctionSvc, a.logger),
		Health:   handler.NewHealthHandler(deps.StorePinger, deps.CachePinger, hub, a.logger),
	}
	srv := server.NewServer(server.Config{
		Port:          a.cfg.Server.Port,
		CORSOrigins:   a.cfg.Server.CORSOrigins,
		APIRateLimit:  a.cfg.Server.APIRateLimit,
		APIRateWindow: a.cfg.Server.APIRateWindow.Duration,
	}, handlers, tokens, deps.RateLimiter, hub, a.logger)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return srv.Start()
	})

	g.Go(func() error {
		err := hub.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		return a.runSweeper(gctx, auctionSvc)
	})

	// Shut the HTTP server down when the group context ends, unblocking
	// srv.Start.
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	return err
}

// runSweeper closes expired auctions on a fixed interval until ctx ends.
func (a *App) runSweeper(ctx context.Context, auctions *service.AuctionService) error {
	interval := a.cfg.Auction.SweepInterval.Duration
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	a.logger.Info("sweeper started", slog.Duration("interval", interval))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			closed, err := auctions.Sweep(ctx, domain.Now())
			if err != nil {
				a.logger.Error("sweep failed", slog.String("error", err.Error()))
				continue
			}
			if closed > 0 {
				a.logger.Info("sweep completed", slog.Int("auctions_closed", closed))
			}
		}
	}
}

// Close tears down all resources in reverse registration order. Safe to call
// multiple times.
func (a *App) Close() {
	a.logger.Info("shutting down application")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

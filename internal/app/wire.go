package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/carbidx2025/CarbidX-EM/internal/blob/s3"
	"github.com/carbidx2025/CarbidX-EM/internal/cache/redis"
	"github.com/carbidx2025/CarbidX-EM/internal/config"
	"github.com/carbidx2025/CarbidX-EM/internal/domain"
	"github.com/carbidx2025/CarbidX-EM/internal/server/handler"
	"github.com/carbidx2025/CarbidX-EM/internal/store/memory"
	"github.com/carbidx2025/CarbidX-EM/internal/store/postgres"
)

// Dependencies bundles every domain-level dependency the application needs.
// It is constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	// Stores
	UserStore    domain.UserStore
	AuctionStore domain.AuctionStore
	BidStore     domain.BidStore

	// Coordination
	LockManager domain.LockManager
	SignalBus   domain.SignalBus
	RateLimiter domain.RateLimiter

	// Blob storage (nil when archival is not configured)
	Archiver domain.AuctionArchiver

	// Health probes (nil when the backing system is not configured)
	StorePinger handler.Pinger
	CachePinger handler.Pinger
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
//
// Deployments without Postgres fall back to the in-memory stores; without
// Redis the in-process lock/bus/limiter are used. Those fallbacks are for
// development and single-instance runs, not for a fleet.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- Record store: PostgreSQL or in-memory ---
	if cfg.Postgres.Enabled() {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		pool := pgClient.Pool()
		deps.UserStore = postgres.NewUserStore(pool)
		deps.AuctionStore = postgres.NewAuctionStore(pool)
		deps.BidStore = postgres.NewBidStore(pool)
		deps.StorePinger = pgClient
		logger.Info("wire: using postgres store")
	} else {
		deps.UserStore = memory.NewUserStore()
		deps.AuctionStore = memory.NewAuctionStore()
		deps.BidStore = memory.NewBidStore()
		logger.Warn("wire: no postgres configured, using in-memory store")
	}

	// --- Coordination: Redis or in-process ---
	if cfg.Redis.Enabled() {
		rdClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = rdClient.Close() })

		deps.LockManager = redis.NewLockManager(rdClient)
		deps.SignalBus = redis.NewSignalBus(rdClient)
		deps.RateLimiter = redis.NewRateLimiter(rdClient)
		deps.CachePinger = rdClient
		logger.Info("wire: using redis coordination", slog.String("addr", cfg.Redis.Addr))
	} else {
		deps.LockManager = memory.NewLockManager()
		deps.SignalBus = memory.NewSignalBus()
		deps.RateLimiter = memory.NewRateLimiter()
		logger.Warn("wire: no redis configured, using in-process coordination")
	}

	// --- Blob storage for closed-auction archival (optional) ---
	if cfg.S3.Enabled() {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })

		deps.Archiver = s3blob.NewArchiver(s3blob.NewWriter(s3Client))
		logger.Info("wire: auction archival enabled", slog.String("bucket", cfg.S3.Bucket))
	}

	return deps, cleanup, nil
}

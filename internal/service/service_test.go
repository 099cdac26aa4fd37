package service

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/carbidx2025/CarbidX-EM/internal/domain"
	"github.com/carbidx2025/CarbidX-EM/internal/store/memory"
)

// testEnv bundles the in-memory backends shared by the service tests.
type testEnv struct {
	users    *memory.UserStore
	auctions *memory.AuctionStore
	bids     *memory.BidStore
	locks    *memory.LockManager
	limiter  *memory.RateLimiter
	bus      *memory.SignalBus
	logger   *slog.Logger
}

func newTestEnv() *testEnv {
	return &testEnv{
		users:    memory.NewUserStore(),
		auctions: memory.NewAuctionStore(),
		bids:     memory.NewBidStore(),
		locks:    memory.NewLockManager(),
		limiter:  memory.NewRateLimiter(),
		bus:      memory.NewSignalBus(),
		logger:   slog.New(slog.DiscardHandler),
	}
}

func (e *testEnv) bidService(rateLimit int) *BidService {
	return NewBidService(
		e.bids, e.auctions, e.users,
		e.locks, e.limiter, e.bus,
		time.Second, rateLimit, time.Minute,
		e.logger,
	)
}

func (e *testEnv) auctionService() *AuctionService {
	return NewAuctionService(e.auctions, e.bids, e.bus, e.locks, 24, e.logger)
}

// seedUser inserts a user directly into the store and returns it with its
// principal.
func (e *testEnv) seedUser(t *testing.T, u domain.User) (domain.User, domain.Principal) {
	t.Helper()
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	now := domain.Now()
	u.CreatedAt = now
	u.UpdatedAt = now
	require.NoError(t, e.users.Create(context.Background(), u))
	return u, domain.Principal{UserID: u.ID, Role: u.Role}
}

func (e *testEnv) seedDealer(t *testing.T, email string) (domain.User, domain.Principal) {
	t.Helper()
	return e.seedUser(t, domain.User{
		Email:           email,
		Name:            "Dealer " + email,
		Role:            domain.RoleDealer,
		DealerTier:      domain.TierStandard,
		DealerLicense:   "DL-" + email,
		LicenseVerified: true,
		IsActive:        true,
	})
}

func (e *testEnv) seedBuyer(t *testing.T, email string) (domain.User, domain.Principal) {
	t.Helper()
	return e.seedUser(t, domain.User{
		Email:    email,
		Name:     "Buyer " + email,
		Role:     domain.RoleBuyer,
		IsActive: true,
	})
}

// seedAuction inserts an Active auction with the given budget ending one hour
// from now.
func (e *testEnv) seedAuction(t *testing.T, buyerID string, budget int64) domain.Auction {
	t.Helper()
	now := domain.Now()
	a := domain.Auction{
		ID:            uuid.New().String(),
		BuyerID:       buyerID,
		Title:         "Family SUV",
		Make:          "Toyota",
		Model:         "RAV4",
		Year:          2023,
		MaxBudget:     decimal.NewFromInt(budget),
		DurationHours: 1,
		Status:        domain.AuctionActive,
		CreatedAt:     now,
		EndsAt:        now.Add(time.Hour),
	}
	require.NoError(t, e.auctions.Create(context.Background(), a))
	return a
}

func money(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

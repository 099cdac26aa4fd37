package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/carbidx2025/CarbidX-EM/internal/domain"
)

// Admission lock tuning. Contended acquires are retried with a fixed backoff
// until lockAcquireTimeout elapses; the TTL itself comes from configuration.
const (
	lockRetryInterval  = 25 * time.Millisecond
	lockAcquireTimeout = 3 * time.Second
)

// BidService is the admission controller: it decides, under a per-auction
// lock, whether a dealer's offer enters the book as the new Winning bid.
type BidService struct {
	bids     domain.BidStore
	auctions domain.AuctionStore
	users    domain.UserStore
	locks    domain.LockManager
	limiter  domain.RateLimiter
	bus      domain.SignalBus
	logger   *slog.Logger

	lockTTL    time.Duration
	rateLimit  int
	rateWindow time.Duration
}

// NewBidService creates a BidService with all required dependencies.
func NewBidService(
	bids domain.BidStore,
	auctions domain.AuctionStore,
	users domain.UserStore,
	locks domain.LockManager,
	limiter domain.RateLimiter,
	bus domain.SignalBus,
	lockTTL time.Duration,
	rateLimit int,
	rateWindow time.Duration,
	logger *slog.Logger,
) *BidService {
	if lockTTL <= 0 {
		lockTTL = 5 * time.Second
	}
	if rateLimit <= 0 {
		rateLimit = 10
	}
	if rateWindow <= 0 {
		rateWindow = time.Minute
	}
	return &BidService{
		bids:       bids,
		auctions:   auctions,
		users:      users,
		locks:      locks,
		limiter:    limiter,
		bus:        bus,
		logger:     logger,
		lockTTL:    lockTTL,
		rateLimit:  rateLimit,
		rateWindow: rateWindow,
	}
}

// Submit runs the full admission sequence for one offer. Checks run in a
// fixed order so a submission failing several rules always reports the same
// reason:
//
//  1. per-dealer rate limit
//  2. caller is a dealer, license verified, account active
//  3. auction exists and is accepting bids right now
//  4. price strictly undercuts the current lowest bid (ties rejected)
//  5. price is within the buyer's budget ceiling
//
// Steps 3-5 and the insert-then-demote write run under the auction's lock, so
// of two racing submissions one fully commits before the other is judged.
func (s *BidService) Submit(ctx context.Context, p domain.Principal, draft domain.BidDraft) (domain.Bid, error) {
	allowed, err := s.limiter.Allow(ctx, "bids:"+p.UserID, s.rateLimit, s.rateWindow)
	if err != nil {
		return domain.Bid{}, fmt.Errorf("bid_service: rate limiter: %w", err)
	}
	if !allowed {
		return domain.Bid{}, domain.ErrRateLimited
	}

	if err := p.Require(domain.RoleDealer); err != nil {
		return domain.Bid{}, err
	}
	dealer, err := s.users.GetByID(ctx, p.UserID)
	if err != nil {
		return domain.Bid{}, fmt.Errorf("bid_service: load dealer %s: %w", p.UserID, err)
	}
	if !dealer.LicenseVerified {
		return domain.Bid{}, fmt.Errorf("%w: dealer license not verified", domain.ErrForbidden)
	}
	if !dealer.IsActive {
		return domain.Bid{}, fmt.Errorf("%w: account disabled", domain.ErrForbidden)
	}
	if !draft.Price.GreaterThan(decimal.Zero) {
		return domain.Bid{}, fmt.Errorf("%w: price must be positive", domain.ErrInvalidInput)
	}

	release, err := s.acquireAuctionLock(ctx, draft.AuctionID)
	if err != nil {
		return domain.Bid{}, err
	}
	defer release()

	return s.admit(ctx, dealer, draft)
}

// admit runs the read-check-insert-demote sequence. Callers must hold the
// auction's lock.
func (s *BidService) admit(ctx context.Context, dealer domain.User, draft domain.BidDraft) (domain.Bid, error) {
	a, err := s.auctions.GetByID(ctx, draft.AuctionID)
	if err != nil {
		return domain.Bid{}, fmt.Errorf("bid_service: load auction %s: %w", draft.AuctionID, err)
	}
	now := domain.Now()
	if !a.AcceptingBids(now) {
		return domain.Bid{}, domain.ErrAuctionNotActive
	}

	existing, err := s.bids.ListByAuction(ctx, a.ID)
	if err != nil {
		return domain.Bid{}, fmt.Errorf("bid_service: list bids %s: %w", a.ID, err)
	}
	if len(existing) > 0 && !draft.Price.LessThan(existing[0].Price) {
		return domain.Bid{}, domain.ErrBidNotCompetitive
	}
	if draft.Price.GreaterThan(a.MaxBudget) {
		return domain.Bid{}, domain.ErrBudgetExceeded
	}

	b := domain.Bid{
		ID:         uuid.New().String(),
		AuctionID:  a.ID,
		DealerID:   dealer.ID,
		DealerName: dealer.Name,
		DealerTier: dealer.DealerTier,
		Price:      draft.Price,
		Message:    draft.Message,
		Status:     domain.BidWinning,
		CreatedAt:  now,
	}
	if err := s.bids.Create(ctx, b); err != nil {
		return domain.Bid{}, fmt.Errorf("bid_service: create bid: %w", err)
	}
	if err := s.bids.DemoteOthers(ctx, a.ID, b.ID); err != nil {
		return domain.Bid{}, fmt.Errorf("bid_service: demote bids %s: %w", a.ID, err)
	}

	s.publishNewBid(ctx, b)
	s.logger.Info("bid accepted",
		"bid_id", b.ID, "auction_id", a.ID, "dealer_id", dealer.ID, "price", b.Price)
	return b, nil
}

// acquireAuctionLock takes the auction's admission lock, retrying contended
// acquires until lockAcquireTimeout elapses.
func (s *BidService) acquireAuctionLock(ctx context.Context, auctionID string) (func(), error) {
	deadline := time.Now().Add(lockAcquireTimeout)
	for {
		release, err := s.locks.Acquire(ctx, auctionLockKey(auctionID), s.lockTTL)
		if err == nil {
			return release, nil
		}
		if !errors.Is(err, domain.ErrLockHeld) {
			return nil, fmt.Errorf("bid_service: acquire lock %s: %w", auctionID, err)
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("bid_service: auction %s admission busy: %w", auctionID, domain.ErrLockHeld)
		}

		timer := time.NewTimer(lockRetryInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

// ListForAuction returns every bid on the auction, best offer first. The
// auction must exist.
func (s *BidService) ListForAuction(ctx context.Context, auctionID string) ([]domain.Bid, error) {
	if _, err := s.auctions.GetByID(ctx, auctionID); err != nil {
		return nil, fmt.Errorf("bid_service: load auction %s: %w", auctionID, err)
	}
	return s.bids.ListByAuction(ctx, auctionID)
}

// ListForDealer returns the calling dealer's own bids, newest first.
func (s *BidService) ListForDealer(ctx context.Context, p domain.Principal) ([]domain.Bid, error) {
	if err := p.Require(domain.RoleDealer); err != nil {
		return nil, err
	}
	return s.bids.ListByDealer(ctx, p.UserID)
}

// publishNewBid emits the bid-accepted event. Delivery is best effort: a bus
// failure never rolls back the admission.
func (s *BidService) publishNewBid(ctx context.Context, b domain.Bid) {
	payload, err := domain.EncodeNewBid(b)
	if err != nil {
		s.logger.Error("encode new_bid event", "bid_id", b.ID, "error", err)
		return
	}
	if err := s.bus.Publish(ctx, domain.ChannelBids, payload); err != nil {
		s.logger.Error("publish new_bid event", "bid_id", b.ID, "error", err)
	}
}

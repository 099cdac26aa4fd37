package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/carbidx2025/CarbidX-EM/internal/domain"
)

// sweepLockTTL bounds how long one sweep iteration may hold an auction's
// admission lock.
const sweepLockTTL = 5 * time.Second

// auctionLockKey is the lock key shared by bid admission and the expiry
// sweep, so the two never interleave on the same auction.
func auctionLockKey(auctionID string) string {
	return "auction:" + auctionID
}

// AuctionService manages the car-request lifecycle: creation, visibility,
// admin status transitions, and the expiry sweep that closes auctions whose
// bidding window has elapsed.
type AuctionService struct {
	auctions domain.AuctionStore
	bids     domain.BidStore
	bus      domain.SignalBus
	locks    domain.LockManager
	archiver domain.AuctionArchiver // nil disables snapshot archival

	defaultDurationHours int
	logger               *slog.Logger
}

// NewAuctionService creates an AuctionService with all required dependencies.
func NewAuctionService(
	auctions domain.AuctionStore,
	bids domain.BidStore,
	bus domain.SignalBus,
	locks domain.LockManager,
	defaultDurationHours int,
	logger *slog.Logger,
) *AuctionService {
	if defaultDurationHours <= 0 {
		defaultDurationHours = 24
	}
	return &AuctionService{
		auctions:             auctions,
		bids:                 bids,
		bus:                  bus,
		locks:                locks,
		defaultDurationHours: defaultDurationHours,
		logger:               logger,
	}
}

// WithArchiver attaches a snapshot archiver so Sweep uploads closed auctions
// to blob storage. Without one, Sweep only closes them.
func (s *AuctionService) WithArchiver(a domain.AuctionArchiver) *AuctionService {
	s.archiver = a
	return s
}

// Create opens a new car request for the calling buyer. The bidding window is
// computed once at creation: endsAt = createdAt + durationHours.
func (s *AuctionService) Create(ctx context.Context, p domain.Principal, draft domain.AuctionDraft) (domain.Auction, error) {
	if err := p.Require(domain.RoleBuyer); err != nil {
		return domain.Auction{}, err
	}
	if err := validateDraft(draft); err != nil {
		return domain.Auction{}, err
	}

	hours := draft.DurationHours
	if hours <= 0 {
		hours = s.defaultDurationHours
	}

	now := domain.Now()
	a := domain.Auction{
		ID:                uuid.New().String(),
		BuyerID:           p.UserID,
		Title:             draft.Title,
		Make:              draft.Make,
		Model:             draft.Model,
		Year:              draft.Year,
		MaxBudget:         draft.MaxBudget,
		Description:       draft.Description,
		Location:          draft.Location,
		PreferredColor:    draft.PreferredColor,
		Transmission:      draft.Transmission,
		FuelType:          draft.FuelType,
		MileagePreference: draft.MileagePreference,
		DurationHours:     hours,
		Status:            domain.AuctionActive,
		CreatedAt:         now,
		EndsAt:            now.Add(time.Duration(hours) * time.Hour),
	}

	if err := s.auctions.Create(ctx, a); err != nil {
		return domain.Auction{}, fmt.Errorf("auction_service: create: %w", err)
	}

	s.publishNewAuction(ctx, a)
	s.logger.Info("auction created",
		"auction_id", a.ID, "buyer_id", a.BuyerID, "ends_at", a.EndsAt)
	return a, nil
}

// List returns the auctions visible to the caller: buyers see their own
// requests across all statuses, everyone else sees the Active ones.
func (s *AuctionService) List(ctx context.Context, p domain.Principal) ([]domain.Auction, error) {
	if p.Role == domain.RoleBuyer {
		return s.auctions.ListByBuyer(ctx, p.UserID)
	}
	return s.auctions.ListByStatus(ctx, domain.AuctionActive)
}

// Get returns one auction by id.
func (s *AuctionService) Get(ctx context.Context, id string) (domain.Auction, error) {
	return s.auctions.GetByID(ctx, id)
}

// SetStatus applies an admin status transition. Unknown status strings return
// domain.ErrInvalidStatus before the store is touched.
func (s *AuctionService) SetStatus(ctx context.Context, p domain.Principal, id, status string) error {
	if err := p.Require(domain.RoleAdmin); err != nil {
		return err
	}
	parsed, err := domain.ParseAuctionStatus(status)
	if err != nil {
		return err
	}
	if err := s.auctions.SetStatus(ctx, id, parsed); err != nil {
		return fmt.Errorf("auction_service: set status %s: %w", id, err)
	}
	s.logger.Info("auction status changed", "auction_id", id, "status", parsed)
	return nil
}

// Sweep closes every Active auction whose window elapsed before now, records
// the winning bid id, and archives a snapshot when an archiver is attached.
// It returns the number of auctions closed. Sweep is idempotent: an auction
// already Closed or Cancelled is never touched again.
func (s *AuctionService) Sweep(ctx context.Context, now time.Time) (int, error) {
	expired, err := s.auctions.ListExpired(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("auction_service: sweep list: %w", err)
	}

	closed := 0
	for _, a := range expired {
		if s.closeExpired(ctx, a) {
			closed++
		}
	}
	return closed, nil
}

// closeExpired closes one expired auction under its admission lock so the
// winning-bid read cannot interleave with a racing bid admission. A held lock
// means an admission is in flight; the auction is picked up again on the next
// sweep.
func (s *AuctionService) closeExpired(ctx context.Context, a domain.Auction) bool {
	release, err := s.locks.Acquire(ctx, auctionLockKey(a.ID), sweepLockTTL)
	if err != nil {
		if !errors.Is(err, domain.ErrLockHeld) {
			s.logger.Error("sweep: acquire lock", "auction_id", a.ID, "error", err)
		}
		return false
	}
	defer release()

	bids, err := s.bids.ListByAuction(ctx, a.ID)
	if err != nil {
		s.logger.Error("sweep: list bids", "auction_id", a.ID, "error", err)
		return false
	}

	var winningID string
	if len(bids) > 0 {
		// Price-ascending order puts the best offer first.
		winningID = bids[0].ID
	}

	if err := s.auctions.Close(ctx, a.ID, winningID); err != nil {
		s.logger.Error("sweep: close auction", "auction_id", a.ID, "error", err)
		return false
	}
	s.logger.Info("auction closed",
		"auction_id", a.ID, "winning_bid_id", winningID, "bids", len(bids))

	if s.archiver != nil {
		a.Status = domain.AuctionClosed
		a.WinningBidID = winningID
		path, err := s.archiver.ArchiveAuction(ctx, a, bids)
		if err != nil {
			// Archival is best effort; the close already happened.
			s.logger.Error("sweep: archive auction", "auction_id", a.ID, "error", err)
			return true
		}
		s.logger.Info("auction archived", "auction_id", a.ID, "path", path)
	}
	return true
}

// publishNewAuction emits the auction-created event. Delivery is best effort:
// a bus failure never rolls back the creation.
func (s *AuctionService) publishNewAuction(ctx context.Context, a domain.Auction) {
	payload, err := domain.EncodeNewAuction(a)
	if err != nil {
		s.logger.Error("encode new_auction event", "auction_id", a.ID, "error", err)
		return
	}
	if err := s.bus.Publish(ctx, domain.ChannelAuctions, payload); err != nil {
		s.logger.Error("publish new_auction event", "auction_id", a.ID, "error", err)
	}
}

func validateDraft(d domain.AuctionDraft) error {
	switch {
	case strings.TrimSpace(d.Title) == "":
		return fmt.Errorf("%w: title is required", domain.ErrInvalidInput)
	case strings.TrimSpace(d.Make) == "" || strings.TrimSpace(d.Model) == "":
		return fmt.Errorf("%w: make and model are required", domain.ErrInvalidInput)
	case d.Year < 1900:
		return fmt.Errorf("%w: year is out of range", domain.ErrInvalidInput)
	case !d.MaxBudget.GreaterThan(decimal.Zero):
		return fmt.Errorf("%w: max budget must be positive", domain.ErrInvalidInput)
	case d.DurationHours < 0:
		return fmt.Errorf("%w: auction duration must be positive", domain.ErrInvalidInput)
	}
	return nil
}

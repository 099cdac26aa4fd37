package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/carbidx2025/CarbidX-EM/internal/domain"
)

// AuctionStore is an in-memory domain.AuctionStore.
type AuctionStore struct {
	mu       sync.RWMutex
	auctions map[string]domain.Auction
}

// NewAuctionStore creates an empty in-memory auction store.
func NewAuctionStore() *AuctionStore {
	return &AuctionStore{auctions: make(map[string]domain.Auction)}
}

// Create inserts a new auction.
func (s *AuctionStore) Create(_ context.Context, a domain.Auction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.auctions[a.ID]; exists {
		return domain.ErrConflict
	}
	s.auctions[a.ID] = a
	return nil
}

// GetByID retrieves an auction by id.
func (s *AuctionStore) GetByID(_ context.Context, id string) (domain.Auction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.auctions[id]
	if !ok {
		return domain.Auction{}, domain.ErrNotFound
	}
	return a, nil
}

func (s *AuctionStore) list(keep func(domain.Auction) bool) []domain.Auction {
	out := make([]domain.Auction, 0, len(s.auctions))
	for _, a := range s.auctions {
		if keep(a) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// ListByBuyer returns the buyer's auctions, newest first.
func (s *AuctionStore) ListByBuyer(_ context.Context, buyerID string) ([]domain.Auction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.list(func(a domain.Auction) bool { return a.BuyerID == buyerID }), nil
}

// ListByStatus returns auctions in the given status, newest first.
func (s *AuctionStore) ListByStatus(_ context.Context, status domain.AuctionStatus) ([]domain.Auction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.list(func(a domain.Auction) bool { return a.Status == status }), nil
}

// ListAll returns every auction, newest first.
func (s *AuctionStore) ListAll(_ context.Context) ([]domain.Auction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.list(func(domain.Auction) bool { return true }), nil
}

// SetStatus overwrites the auction status.
func (s *AuctionStore) SetStatus(_ context.Context, id string, status domain.AuctionStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.auctions[id]
	if !ok {
		return domain.ErrNotFound
	}
	a.Status = status
	s.auctions[id] = a
	return nil
}

// ListExpired returns Active auctions whose window elapsed before now.
func (s *AuctionStore) ListExpired(_ context.Context, now time.Time) ([]domain.Auction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.list(func(a domain.Auction) bool {
		return a.Status == domain.AuctionActive && a.EndsAt.Before(now)
	}), nil
}

// Close transitions an Active auction to Closed and records the winning bid.
// Closing an auction that is no longer Active is a no-op.
func (s *AuctionStore) Close(_ context.Context, id string, winningBidID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.auctions[id]
	if !ok {
		return domain.ErrNotFound
	}
	if a.Status != domain.AuctionActive {
		return nil
	}
	a.Status = domain.AuctionClosed
	a.WinningBidID = winningBidID
	s.auctions[id] = a
	return nil
}

// Compile-time interface check.
var _ domain.AuctionStore = (*AuctionStore)(nil)

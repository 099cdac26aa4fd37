package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/carbidx2025/CarbidX-EM/internal/domain"
)

// BidStore is an in-memory domain.BidStore.
type BidStore struct {
	mu   sync.RWMutex
	bids map[string]domain.Bid
}

// NewBidStore creates an empty in-memory bid store.
func NewBidStore() *BidStore {
	return &BidStore{bids: make(map[string]domain.Bid)}
}

// Create inserts a new bid.
func (s *BidStore) Create(_ context.Context, b domain.Bid) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.bids[b.ID]; exists {
		return domain.ErrConflict
	}
	s.bids[b.ID] = b
	return nil
}

// ListByAuction returns the auction's bids ordered ascending by price, ties
// broken by submission time.
func (s *BidStore) ListByAuction(_ context.Context, auctionID string) ([]domain.Bid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Bid
	for _, b := range s.bids {
		if b.AuctionID == auctionID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Price.Cmp(out[j].Price); c != 0 {
			return c < 0
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// ListByDealer returns the dealer's bids across all auctions, newest first.
func (s *BidStore) ListByDealer(_ context.Context, dealerID string) ([]domain.Bid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Bid
	for _, b := range s.bids {
		if b.DealerID == dealerID {
			out = append(out, b)
		}
	}
	sortNewestFirst(out)
	return out, nil
}

// ListAll returns every bid, newest first.
func (s *BidStore) ListAll(_ context.Context) ([]domain.Bid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Bid, 0, len(s.bids))
	for _, b := range s.bids {
		out = append(out, b)
	}
	sortNewestFirst(out)
	return out, nil
}

func sortNewestFirst(bids []domain.Bid) {
	sort.Slice(bids, func(i, j int) bool {
		return bids[i].CreatedAt.After(bids[j].CreatedAt)
	})
}

// GetWinning returns the auction's current Winning bid, if any.
func (s *BidStore) GetWinning(_ context.Context, auctionID string) (domain.Bid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, b := range s.bids {
		if b.AuctionID == auctionID && b.Status == domain.BidWinning {
			return b, nil
		}
	}
	return domain.Bid{}, domain.ErrNotFound
}

// DemoteOthers marks every bid of the auction except keepID as Lost.
func (s *BidStore) DemoteOthers(_ context.Context, auctionID string, keepID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, b := range s.bids {
		if b.AuctionID == auctionID && id != keepID {
			b.Status = domain.BidLost
			s.bids[id] = b
		}
	}
	return nil
}

// Compile-time interface check.
var _ domain.BidStore = (*BidStore)(nil)

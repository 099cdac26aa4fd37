package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// BidStatus tracks a bid through the admission lifecycle. Within one auction
// at most one bid is Winning at any observed instant.
type BidStatus string

const (
	BidActive  BidStatus = "active"
	BidWinning BidStatus = "winning"
	BidLost    BidStatus = "lost"
)

// Bid is a dealer's priced, timestamped offer against one auction. Status is
// mutated only by the admission path as a side effect of a later bid's
// acceptance on the same auction.
type Bid struct {
	ID         string          `json:"id"`
	AuctionID  string          `json:"auction_id"`
	DealerID   string          `json:"dealer_id"`
	DealerName string          `json:"dealer_name"`
	DealerTier DealerTier      `json:"dealer_tier,omitempty"`
	Price      decimal.Decimal `json:"price"`
	Message    string          `json:"message,omitempty"`
	Status     BidStatus       `json:"status"`
	CreatedAt  time.Time       `json:"created_at"`
}

// BidDraft carries the dealer-supplied fields of a bid submission.
type BidDraft struct {
	AuctionID string          `json:"auction_id"`
	Price     decimal.Decimal `json:"price"`
	Message   string          `json:"message"`
}

package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// AuctionStatus tracks the auction lifecycle. Active is the initial state;
// Closed and Cancelled are terminal.
type AuctionStatus string

const (
	AuctionActive    AuctionStatus = "active"
	AuctionClosed    AuctionStatus = "closed"
	AuctionCancelled AuctionStatus = "cancelled"
)

// ParseAuctionStatus validates a status string against the closed three-value
// set. Unknown values return ErrInvalidStatus.
func ParseAuctionStatus(s string) (AuctionStatus, error) {
	switch AuctionStatus(s) {
	case AuctionActive, AuctionClosed, AuctionCancelled:
		return AuctionStatus(s), nil
	default:
		return "", ErrInvalidStatus
	}
}

// Auction is a buyer's car request open for competitive dealer pricing within
// a bounded time window. WinningBidID is set only when the auction closes.
type Auction struct {
	ID                string          `json:"id"`
	BuyerID           string          `json:"buyer_id"`
	Title             string          `json:"title"`
	Make              string          `json:"make"`
	Model             string          `json:"model"`
	Year              int             `json:"year"`
	MaxBudget         decimal.Decimal `json:"max_budget"`
	Description       string          `json:"description"`
	Location          string          `json:"location"`
	PreferredColor    string          `json:"preferred_color,omitempty"`
	Transmission      string          `json:"transmission,omitempty"`
	FuelType          string          `json:"fuel_type,omitempty"`
	MileagePreference string          `json:"mileage_preference,omitempty"`
	DurationHours     int             `json:"auction_duration"`
	Status            AuctionStatus   `json:"status"`
	CreatedAt         time.Time       `json:"created_at"`
	EndsAt            time.Time       `json:"ends_at"`
	WinningBidID      string          `json:"winning_bid_id,omitempty"`
}

// AcceptingBids reports whether the auction takes new bids at the given
// instant: it must be Active and the time window must not have elapsed.
func (a Auction) AcceptingBids(now time.Time) bool {
	return a.Status == AuctionActive && !now.After(a.EndsAt)
}

// AuctionDraft carries the buyer-supplied fields of a new car request.
type AuctionDraft struct {
	Title             string          `json:"title"`
	Make              string          `json:"make"`
	Model             string          `json:"model"`
	Year              int             `json:"year"`
	MaxBudget         decimal.Decimal `json:"max_budget"`
	Description       string          `json:"description"`
	Location          string          `json:"location"`
	PreferredColor    string          `json:"preferred_color"`
	Transmission      string          `json:"transmission"`
	FuelType          string          `json:"fuel_type"`
	MileagePreference string          `json:"mileage_preference"`
	DurationHours     int             `json:"auction_duration"`
}

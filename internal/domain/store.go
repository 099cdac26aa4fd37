package domain

import (
	"context"
	"io"
	"time"
)

// UserStore persists marketplace users. Create and Update return ErrConflict
// when the email unique key is already taken. Updating a dealer license to a
// new value resets LicenseVerified until an admin re-verifies it.
type UserStore interface {
	Create(ctx context.Context, u User) error
	GetByID(ctx context.Context, id string) (User, error)
	GetByEmail(ctx context.Context, email string) (User, error)
	Update(ctx context.Context, id string, upd UserUpdate) (User, error)
	VerifyLicense(ctx context.Context, dealerID string) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]User, error)
}

// AuctionStore persists car requests. Status and WinningBidID are mutated
// only through SetStatus and Close.
type AuctionStore interface {
	Create(ctx context.Context, a Auction) error
	GetByID(ctx context.Context, id string) (Auction, error)
	ListByBuyer(ctx context.Context, buyerID string) ([]Auction, error)
	ListByStatus(ctx context.Context, status AuctionStatus) ([]Auction, error)
	ListAll(ctx context.Context) ([]Auction, error)
	SetStatus(ctx context.Context, id string, status AuctionStatus) error
	// ListExpired returns Active auctions whose window elapsed before now.
	ListExpired(ctx context.Context, now time.Time) ([]Auction, error)
	// Close transitions an Active auction to Closed and records the winning
	// bid id. Closing an auction that is no longer Active is a no-op.
	Close(ctx context.Context, id string, winningBidID string) error
}

// BidStore persists bids. ListByAuction orders ascending by price (best offer
// first); the dealer and admin listings order newest first.
type BidStore interface {
	Create(ctx context.Context, b Bid) error
	ListByAuction(ctx context.Context, auctionID string) ([]Bid, error)
	ListByDealer(ctx context.Context, dealerID string) ([]Bid, error)
	ListAll(ctx context.Context) ([]Bid, error)
	GetWinning(ctx context.Context, auctionID string) (Bid, error)
	// DemoteOthers marks every bid of the auction except keepID as Lost.
	DemoteOthers(ctx context.Context, auctionID string, keepID string) error
}

// LockManager provides mutual exclusion keyed by an arbitrary string. Acquire
// returns ErrLockHeld when the key is held by another party; the returned
// release function is safe to call more than once.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// SignalBus decouples event producers from the notification hub. Subscribe
// returns a channel that closes when the context is cancelled.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

// RateLimiter admits requests under a sliding-window limit per key.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// BlobWriter uploads an object to blob storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// AuctionArchiver snapshots a closed auction together with its bid history.
// It returns the object path the snapshot was written to.
type AuctionArchiver interface {
	ArchiveAuction(ctx context.Context, a Auction, bids []Bid) (string, error)
}

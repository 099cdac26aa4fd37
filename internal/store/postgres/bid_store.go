package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/carbidx2025/CarbidX-EM/internal/domain"
)

// BidStore implements domain.BidStore using PostgreSQL.
type BidStore struct {
	pool *pgxpool.Pool
}

// NewBidStore creates a new BidStore backed by the given connection pool.
func NewBidStore(pool *pgxpool.Pool) *BidStore {
	return &BidStore{pool: pool}
}

const bidSelectCols = `id, auction_id, dealer_id, dealer_name, dealer_tier,
	price::text, message, status, created_at`

func scanBid(scanner interface{ Scan(dest ...any) error }) (domain.Bid, error) {
	var b domain.Bid
	var tier, price, status string

	err := scanner.Scan(
		&b.ID, &b.AuctionID, &b.DealerID, &b.DealerName, &tier,
		&price, &b.Message, &status, &b.CreatedAt,
	)
	if err != nil {
		return domain.Bid{}, err
	}

	b.Price, err = decimal.NewFromString(price)
	if err != nil {
		return domain.Bid{}, fmt.Errorf("parse price %q: %w", price, err)
	}
	b.DealerTier = domain.DealerTier(tier)
	b.Status = domain.BidStatus(status)
	return b, nil
}

func scanBidRows(rows pgx.Rows) ([]domain.Bid, error) {
	var bids []domain.Bid
	for rows.Next() {
		b, err := scanBid(rows)
		if err != nil {
			return nil, err
		}
		bids = append(bids, b)
	}
	return bids, rows.Err()
}

// Create inserts a new bid.
func (s *BidStore) Create(ctx context.Context, b domain.Bid) error {
	const query = `
		INSERT INTO bids (
			id, auction_id, dealer_id, dealer_name, dealer_tier,
			price, message, status, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := s.pool.Exec(ctx, query,
		b.ID, b.AuctionID, b.DealerID, b.DealerName, string(b.DealerTier),
		b.Price.String(), b.Message, string(b.Status), b.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create bid %s: %w", b.ID, err)
	}
	return nil
}

// ListByAuction returns all bids of an auction ordered ascending by price, so
// the best (lowest) offer comes first. Equal prices cannot occur for accepted
// bids; created_at breaks ties deterministically anyway.
func (s *BidStore) ListByAuction(ctx context.Context, auctionID string) ([]domain.Bid, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+bidSelectCols+` FROM bids
		 WHERE auction_id = $1 ORDER BY price, created_at`, auctionID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list bids for auction %s: %w", auctionID, err)
	}
	defer rows.Close()
	return scanBidRows(rows)
}

// ListByDealer returns a dealer's bids, newest first.
func (s *BidStore) ListByDealer(ctx context.Context, dealerID string) ([]domain.Bid, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+bidSelectCols+` FROM bids
		 WHERE dealer_id = $1 ORDER BY created_at DESC`, dealerID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list bids for dealer %s: %w", dealerID, err)
	}
	defer rows.Close()
	return scanBidRows(rows)
}

// ListAll returns every bid, newest first.
func (s *BidStore) ListAll(ctx context.Context) ([]domain.Bid, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+bidSelectCols+` FROM bids ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list bids: %w", err)
	}
	defer rows.Close()
	return scanBidRows(rows)
}

// GetWinning returns the auction's Winning bid, or domain.ErrNotFound when
// the auction has no bids.
func (s *BidStore) GetWinning(ctx context.Context, auctionID string) (domain.Bid, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+bidSelectCols+` FROM bids
		 WHERE auction_id = $1 AND status = $2`,
		auctionID, string(domain.BidWinning))

	b, err := scanBid(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Bid{}, domain.ErrNotFound
		}
		return domain.Bid{}, fmt.Errorf("postgres: get winning bid for auction %s: %w", auctionID, err)
	}
	return b, nil
}

// DemoteOthers marks every bid of the auction except keepID as Lost in a
// single statement.
func (s *BidStore) DemoteOthers(ctx context.Context, auctionID string, keepID string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE bids SET status = $3 WHERE auction_id = $1 AND id <> $2`,
		auctionID, keepID, string(domain.BidLost))
	if err != nil {
		return fmt.Errorf("postgres: demote bids for auction %s: %w", auctionID, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.BidStore = (*BidStore)(nil)

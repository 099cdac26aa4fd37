package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/carbidx2025/CarbidX-EM/internal/domain"
)

// AuctionStore implements domain.AuctionStore using PostgreSQL.
type AuctionStore struct {
	pool *pgxpool.Pool
}

// NewAuctionStore creates a new AuctionStore backed by the given pool.
func NewAuctionStore(pool *pgxpool.Pool) *AuctionStore {
	return &AuctionStore{pool: pool}
}

// max_budget travels as text so the value parses through decimal without
// float rounding.
const auctionSelectCols = `id, buyer_id, title, make, model, year,
	max_budget::text, description, location, preferred_color, transmission,
	fuel_type, mileage_preference, duration_hours, status, created_at,
	ends_at, COALESCE(winning_bid_id::text, '')`

func scanAuction(scanner interface{ Scan(dest ...any) error }) (domain.Auction, error) {
	var a domain.Auction
	var budget, status string

	err := scanner.Scan(
		&a.ID, &a.BuyerID, &a.Title, &a.Make, &a.Model, &a.Year,
		&budget, &a.Description, &a.Location, &a.PreferredColor,
		&a.Transmission, &a.FuelType, &a.MileagePreference,
		&a.DurationHours, &status, &a.CreatedAt, &a.EndsAt, &a.WinningBidID,
	)
	if err != nil {
		return domain.Auction{}, err
	}

	a.MaxBudget, err = decimal.NewFromString(budget)
	if err != nil {
		return domain.Auction{}, fmt.Errorf("parse max_budget %q: %w", budget, err)
	}
	a.Status = domain.AuctionStatus(status)
	return a, nil
}

func scanAuctionRows(rows pgx.Rows) ([]domain.Auction, error) {
	var auctions []domain.Auction
	for rows.Next() {
		a, err := scanAuction(rows)
		if err != nil {
			return nil, err
		}
		auctions = append(auctions, a)
	}
	return auctions, rows.Err()
}

// Create inserts a new auction.
func (s *AuctionStore) Create(ctx context.Context, a domain.Auction) error {
	const query = `
		INSERT INTO auctions (
			id, buyer_id, title, make, model, year, max_budget, description,
			location, preferred_color, transmission, fuel_type,
			mileage_preference, duration_hours, status, created_at, ends_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8,
			$9, $10, $11, $12, $13, $14, $15, $16, $17
		)`

	_, err := s.pool.Exec(ctx, query,
		a.ID, a.BuyerID, a.Title, a.Make, a.Model, a.Year,
		a.MaxBudget.String(), a.Description, a.Location, a.PreferredColor,
		a.Transmission, a.FuelType, a.MileagePreference, a.DurationHours,
		string(a.Status), a.CreatedAt, a.EndsAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create auction %s: %w", a.ID, err)
	}
	return nil
}

// GetByID retrieves a single auction by id.
func (s *AuctionStore) GetByID(ctx context.Context, id string) (domain.Auction, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+auctionSelectCols+` FROM auctions WHERE id = $1`, id)

	a, err := scanAuction(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Auction{}, domain.ErrNotFound
		}
		return domain.Auction{}, fmt.Errorf("postgres: get auction %s: %w", id, err)
	}
	return a, nil
}

// ListByBuyer returns a buyer's auctions, newest first.
func (s *AuctionStore) ListByBuyer(ctx context.Context, buyerID string) ([]domain.Auction, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+auctionSelectCols+` FROM auctions
		 WHERE buyer_id = $1 ORDER BY created_at DESC`, buyerID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list auctions by buyer: %w", err)
	}
	defer rows.Close()
	return scanAuctionRows(rows)
}

// ListByStatus returns auctions in the given status, newest first.
func (s *AuctionStore) ListByStatus(ctx context.Context, status domain.AuctionStatus) ([]domain.Auction, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+auctionSelectCols+` FROM auctions
		 WHERE status = $1 ORDER BY created_at DESC`, string(status))
	if err != nil {
		return nil, fmt.Errorf("postgres: list auctions by status: %w", err)
	}
	defer rows.Close()
	return scanAuctionRows(rows)
}

// ListAll returns every auction, newest first.
func (s *AuctionStore) ListAll(ctx context.Context) ([]domain.Auction, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+auctionSelectCols+` FROM auctions ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list auctions: %w", err)
	}
	defer rows.Close()
	return scanAuctionRows(rows)
}

// SetStatus applies an administrative status transition, bypassing time
// checks.
func (s *AuctionStore) SetStatus(ctx context.Context, id string, status domain.AuctionStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE auctions SET status = $2 WHERE id = $1`, id, string(status))
	if err != nil {
		return fmt.Errorf("postgres: set auction status %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListExpired returns Active auctions whose window elapsed before now.
func (s *AuctionStore) ListExpired(ctx context.Context, now time.Time) ([]domain.Auction, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+auctionSelectCols+` FROM auctions
		 WHERE status = $1 AND ends_at < $2 ORDER BY ends_at`,
		string(domain.AuctionActive), now)
	if err != nil {
		return nil, fmt.Errorf("postgres: list expired auctions: %w", err)
	}
	defer rows.Close()
	return scanAuctionRows(rows)
}

// Close transitions an Active auction to Closed and records the winning bid
// id. The status guard makes a repeated sweep of the same auction a no-op.
func (s *AuctionStore) Close(ctx context.Context, id string, winningBidID string) error {
	var winning *string
	if winningBidID != "" {
		winning = &winningBidID
	}

	_, err := s.pool.Exec(ctx,
		`UPDATE auctions SET status = $2, winning_bid_id = $3
		 WHERE id = $1 AND status = $4`,
		id, string(domain.AuctionClosed), winning, string(domain.AuctionActive))
	if err != nil {
		return fmt.Errorf("postgres: close auction %s: %w", id, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.AuctionStore = (*AuctionStore)(nil)

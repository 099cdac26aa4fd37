package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carbidx2025/CarbidX-EM/internal/domain"
)

// UserStore implements domain.UserStore using PostgreSQL.
type UserStore struct {
	pool *pgxpool.Pool
}

// NewUserStore creates a new UserStore backed by the given connection pool.
func NewUserStore(pool *pgxpool.Pool) *UserStore {
	return &UserStore{pool: pool}
}

const userSelectCols = `id, email, name, role, dealer_tier, phone, location,
	dealer_license, license_verified, is_verified, is_active, password_hash,
	created_at, updated_at`

func scanUser(scanner interface{ Scan(dest ...any) error }) (domain.User, error) {
	var u domain.User
	var role, tier string

	err := scanner.Scan(
		&u.ID, &u.Email, &u.Name, &role, &tier, &u.Phone, &u.Location,
		&u.DealerLicense, &u.LicenseVerified, &u.IsVerified, &u.IsActive,
		&u.PasswordHash, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return domain.User{}, err
	}

	u.Role = domain.Role(role)
	u.DealerTier = domain.DealerTier(tier)
	return u, nil
}

// isUniqueViolation reports whether err is a PostgreSQL unique-key violation.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// Create inserts a new user. A duplicate email maps to domain.ErrConflict.
func (s *UserStore) Create(ctx context.Context, u domain.User) error {
	const query = `
		INSERT INTO users (
			id, email, name, role, dealer_tier, phone, location,
			dealer_license, license_verified, is_verified, is_active,
			password_hash, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err := s.pool.Exec(ctx, query,
		u.ID, u.Email, u.Name, string(u.Role), string(u.DealerTier),
		u.Phone, u.Location, u.DealerLicense, u.LicenseVerified,
		u.IsVerified, u.IsActive, u.PasswordHash, u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrConflict
		}
		return fmt.Errorf("postgres: create user %s: %w", u.ID, err)
	}
	return nil
}

// GetByID retrieves a single user by id.
func (s *UserStore) GetByID(ctx context.Context, id string) (domain.User, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+userSelectCols+` FROM users WHERE id = $1`, id)

	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, domain.ErrNotFound
		}
		return domain.User{}, fmt.Errorf("postgres: get user %s: %w", id, err)
	}
	return u, nil
}

// GetByEmail retrieves a single user by email.
func (s *UserStore) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+userSelectCols+` FROM users WHERE email = $1`, email)

	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, domain.ErrNotFound
		}
		return domain.User{}, fmt.Errorf("postgres: get user by email: %w", err)
	}
	return u, nil
}

// Update applies the non-nil fields of upd and returns the updated user.
func (s *UserStore) Update(ctx context.Context, id string, upd domain.UserUpdate) (domain.User, error) {
	const query = `
		UPDATE users SET
			name            = COALESCE($2, name),
			email           = COALESCE($3, email),
			phone           = COALESCE($4, phone),
			location        = COALESCE($5, location),
			dealer_tier     = COALESCE($6, dealer_tier),
			dealer_license  = COALESCE($7, dealer_license),
			license_verified = CASE
				WHEN $7::text IS NOT NULL AND $7::text <> dealer_license THEN FALSE
				ELSE license_verified
			END,
			is_verified     = COALESCE($8, is_verified),
			is_active       = COALESCE($9, is_active),
			updated_at      = NOW()
		WHERE id = $1
		RETURNING ` + userSelectCols

	var tier *string
	if upd.DealerTier != nil {
		t := string(*upd.DealerTier)
		tier = &t
	}

	row := s.pool.QueryRow(ctx, query,
		id, upd.Name, upd.Email, upd.Phone, upd.Location, tier,
		upd.DealerLicense, upd.IsVerified, upd.IsActive,
	)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, domain.ErrNotFound
		}
		if isUniqueViolation(err) {
			return domain.User{}, domain.ErrConflict
		}
		return domain.User{}, fmt.Errorf("postgres: update user %s: %w", id, err)
	}
	return u, nil
}

// SetLicenseVerified flips the license verification flag for a dealer.
func (s *UserStore) SetLicenseVerified(ctx context.Context, id string, verified bool) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE users SET license_verified = $2, updated_at = NOW()
		 WHERE id = $1 AND role = $3`,
		id, verified, string(domain.RoleDealer),
	)
	if err != nil {
		return fmt.Errorf("postgres: set license verified %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// VerifyLicense marks a dealer's license as verified.
func (s *UserStore) VerifyLicense(ctx context.Context, dealerID string) error {
	return s.SetLicenseVerified(ctx, dealerID, true)
}

// Delete removes a user by id.
func (s *UserStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("postgres: delete user %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// List returns all users ordered by creation time, newest first.
func (s *UserStore) List(ctx context.Context) ([]domain.User, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+userSelectCols+` FROM users ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list users: %w", err)
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// Compile-time interface check.
var _ domain.UserStore = (*UserStore)(nil)

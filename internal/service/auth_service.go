// Package service implements the marketplace use cases on top of the domain
// stores and coordination primitives.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/carbidx2025/CarbidX-EM/internal/auth"
	"github.com/carbidx2025/CarbidX-EM/internal/domain"
)

// TokenIssuer abstracts JWT issuance so the service layer never depends on a
// concrete signing implementation.
type TokenIssuer interface {
	Issue(u domain.User) (string, error)
}

// RegisterInput carries the fields of a registration request.
type RegisterInput struct {
	Email         string            `json:"email"`
	Password      string            `json:"password"`
	Name          string            `json:"name"`
	Role          domain.Role       `json:"role"`
	Phone         string            `json:"phone"`
	Location      string            `json:"location"`
	DealerLicense string            `json:"dealer_license"`
	DealerTier    domain.DealerTier `json:"dealer_tier"`
}

// Session is an authenticated user together with their bearer token.
type Session struct {
	User  domain.User `json:"user"`
	Token string      `json:"access_token"`
}

// AuthService handles registration, login, and profile management.
type AuthService struct {
	users      domain.UserStore
	tokens     TokenIssuer
	bcryptCost int
	logger     *slog.Logger
}

// NewAuthService creates an AuthService with all required dependencies.
func NewAuthService(users domain.UserStore, tokens TokenIssuer, bcryptCost int, logger *slog.Logger) *AuthService {
	return &AuthService{
		users:      users,
		tokens:     tokens,
		bcryptCost: bcryptCost,
		logger:     logger,
	}
}

// Register creates a buyer or dealer account and returns a live session.
// Admin accounts cannot be self-registered. A duplicate email returns
// domain.ErrConflict.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (Session, error) {
	if err := validateRegister(in); err != nil {
		return Session{}, err
	}

	hash, err := auth.HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return Session{}, fmt.Errorf("auth_service: hash password: %w", err)
	}

	now := domain.Now()
	u := domain.User{
		ID:           uuid.New().String(),
		Email:        strings.ToLower(strings.TrimSpace(in.Email)),
		Name:         in.Name,
		Role:         in.Role,
		Phone:        in.Phone,
		Location:     in.Location,
		IsActive:     true,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if in.Role == domain.RoleDealer {
		u.DealerLicense = in.DealerLicense
		u.DealerTier = in.DealerTier
		if u.DealerTier == "" {
			u.DealerTier = domain.TierStandard
		}
		// A new dealer starts verified; only a later license change resets
		// the flag until an admin re-verifies it.
		u.LicenseVerified = true
	}

	if err := s.users.Create(ctx, u); err != nil {
		return Session{}, fmt.Errorf("auth_service: register %s: %w", u.Email, err)
	}

	token, err := s.tokens.Issue(u)
	if err != nil {
		return Session{}, fmt.Errorf("auth_service: register %s: %w", u.Email, err)
	}

	s.logger.Info("user registered", "user_id", u.ID, "role", u.Role)
	return Session{User: u, Token: token}, nil
}

// Login authenticates by email and password. Unknown emails and wrong
// passwords both map to domain.ErrUnauthorized; disabled accounts map to
// domain.ErrForbidden.
func (s *AuthService) Login(ctx context.Context, email, password string) (Session, error) {
	u, err := s.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return Session{}, domain.ErrUnauthorized
		}
		return Session{}, fmt.Errorf("auth_service: login: %w", err)
	}
	if !auth.VerifyPassword(u.PasswordHash, password) {
		return Session{}, domain.ErrUnauthorized
	}
	if !u.IsActive {
		return Session{}, fmt.Errorf("%w: account disabled", domain.ErrForbidden)
	}

	token, err := s.tokens.Issue(u)
	if err != nil {
		return Session{}, fmt.Errorf("auth_service: login %s: %w", u.ID, err)
	}

	s.logger.Info("user logged in", "user_id", u.ID, "role", u.Role)
	return Session{User: u, Token: token}, nil
}

// Me returns the caller's own account.
func (s *AuthService) Me(ctx context.Context, p domain.Principal) (domain.User, error) {
	return s.users.GetByID(ctx, p.UserID)
}

// UpdateProfile applies the caller's own profile changes. The account flags
// (IsActive, IsVerified) are admin-only and are ignored here; changing the
// dealer license resets its verification.
func (s *AuthService) UpdateProfile(ctx context.Context, p domain.Principal, upd domain.UserUpdate) (domain.User, error) {
	upd.IsActive = nil
	upd.IsVerified = nil

	if upd.Email != nil {
		e := strings.ToLower(strings.TrimSpace(*upd.Email))
		if !validEmail(e) {
			return domain.User{}, fmt.Errorf("%w: malformed email", domain.ErrInvalidInput)
		}
		upd.Email = &e
	}

	u, err := s.users.Update(ctx, p.UserID, upd)
	if err != nil {
		return domain.User{}, fmt.Errorf("auth_service: update profile %s: %w", p.UserID, err)
	}
	return u, nil
}

func validateRegister(in RegisterInput) error {
	if !validEmail(strings.TrimSpace(in.Email)) {
		return fmt.Errorf("%w: malformed email", domain.ErrInvalidInput)
	}
	if len(in.Password) < 6 {
		return fmt.Errorf("%w: password must be at least 6 characters", domain.ErrInvalidInput)
	}
	if strings.TrimSpace(in.Name) == "" {
		return fmt.Errorf("%w: name is required", domain.ErrInvalidInput)
	}
	if in.Role != domain.RoleBuyer && in.Role != domain.RoleDealer {
		return fmt.Errorf("%w: role must be buyer or dealer", domain.ErrInvalidInput)
	}
	return nil
}

func validEmail(email string) bool {
	at := strings.IndexByte(email, '@')
	return at > 0 && at < len(email)-1 && !strings.ContainsAny(email, " \t")
}

package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/carbidx2025/CarbidX-EM/internal/domain"
)

// AdminService exposes the moderation surface: user management, license
// verification, and unfiltered listings.
type AdminService struct {
	users    domain.UserStore
	auctions domain.AuctionStore
	bids     domain.BidStore
	logger   *slog.Logger
}

// NewAdminService creates an AdminService with all required dependencies.
func NewAdminService(users domain.UserStore, auctions domain.AuctionStore, bids domain.BidStore, logger *slog.Logger) *AdminService {
	return &AdminService{
		users:    users,
		auctions: auctions,
		bids:     bids,
		logger:   logger,
	}
}

// ListUsers returns every account, newest first.
func (s *AdminService) ListUsers(ctx context.Context, p domain.Principal) ([]domain.User, error) {
	if err := p.Require(domain.RoleAdmin); err != nil {
		return nil, err
	}
	return s.users.List(ctx)
}

// UpdateUser applies an admin edit to any account, including the IsActive
// and IsVerified flags the profile route ignores. A license set by an admin
// counts as verified, unlike the self-service profile path.
func (s *AdminService) UpdateUser(ctx context.Context, p domain.Principal, id string, upd domain.UserUpdate) (domain.User, error) {
	if err := p.Require(domain.RoleAdmin); err != nil {
		return domain.User{}, err
	}
	u, err := s.users.Update(ctx, id, upd)
	if err != nil {
		return domain.User{}, fmt.Errorf("admin_service: update user %s: %w", id, err)
	}
	if upd.DealerLicense != nil && u.Role == domain.RoleDealer && !u.LicenseVerified {
		if err := s.users.VerifyLicense(ctx, id); err != nil {
			return domain.User{}, fmt.Errorf("admin_service: update user %s: %w", id, err)
		}
		u.LicenseVerified = true
	}
	s.logger.Info("user updated by admin", "user_id", id, "admin_id", p.UserID)
	return u, nil
}

// VerifyLicense marks a dealer's license as verified, unlocking bid
// submission for the account.
func (s *AdminService) VerifyLicense(ctx context.Context, p domain.Principal, dealerID string) error {
	if err := p.Require(domain.RoleAdmin); err != nil {
		return err
	}
	if err := s.users.VerifyLicense(ctx, dealerID); err != nil {
		return fmt.Errorf("admin_service: verify license %s: %w", dealerID, err)
	}
	s.logger.Info("dealer license verified", "dealer_id", dealerID, "admin_id", p.UserID)
	return nil
}

// DeleteUser removes an account. Admins cannot delete themselves.
func (s *AdminService) DeleteUser(ctx context.Context, p domain.Principal, id string) error {
	if err := p.Require(domain.RoleAdmin); err != nil {
		return err
	}
	if id == p.UserID {
		return fmt.Errorf("%w: cannot delete own account", domain.ErrForbidden)
	}
	if err := s.users.Delete(ctx, id); err != nil {
		return fmt.Errorf("admin_service: delete user %s: %w", id, err)
	}
	s.logger.Info("user deleted", "user_id", id, "admin_id", p.UserID)
	return nil
}

// ListAuctions returns every auction regardless of status, newest first.
func (s *AdminService) ListAuctions(ctx context.Context, p domain.Principal) ([]domain.Auction, error) {
	if err := p.Require(domain.RoleAdmin); err != nil {
		return nil, err
	}
	return s.auctions.ListAll(ctx)
}

// ListBids returns every bid across all auctions, newest first.
func (s *AdminService) ListBids(ctx context.Context, p domain.Principal) ([]domain.Bid, error) {
	if err := p.Require(domain.RoleAdmin); err != nil {
		return nil, err
	}
	return s.bids.ListAll(ctx)
}

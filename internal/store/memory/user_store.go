// Package memory provides concurrency-safe in-memory implementations of the
// domain interfaces. They back the test suite and the store-less development
// mode; nothing here survives a process restart.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/carbidx2025/CarbidX-EM/internal/domain"
)

// UserStore is an in-memory domain.UserStore.
type UserStore struct {
	mu      sync.RWMutex
	users   map[string]domain.User // key: user id
	byEmail map[string]string      // key: email -> user id
}

// NewUserStore creates an empty in-memory user store.
func NewUserStore() *UserStore {
	return &UserStore{
		users:   make(map[string]domain.User),
		byEmail: make(map[string]string),
	}
}

// Create inserts a user, rejecting duplicate emails with domain.ErrConflict.
func (s *UserStore) Create(_ context.Context, u domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.byEmail[u.Email]; taken {
		return domain.ErrConflict
	}
	s.users[u.ID] = u
	s.byEmail[u.Email] = u.ID
	return nil
}

// GetByID retrieves a user by id.
func (s *UserStore) GetByID(_ context.Context, id string) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return u, nil
}

// GetByEmail retrieves a user by email.
func (s *UserStore) GetByEmail(_ context.Context, email string) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[email]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return s.users[id], nil
}

// Update applies the non-nil fields of upd and returns the updated user.
func (s *UserStore) Update(_ context.Context, id string, upd domain.UserUpdate) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}

	if upd.Email != nil && *upd.Email != u.Email {
		if _, taken := s.byEmail[*upd.Email]; taken {
			return domain.User{}, domain.ErrConflict
		}
		delete(s.byEmail, u.Email)
		u.Email = *upd.Email
		s.byEmail[u.Email] = id
	}
	if upd.Name != nil {
		u.Name = *upd.Name
	}
	if upd.Phone != nil {
		u.Phone = *upd.Phone
	}
	if upd.Location != nil {
		u.Location = *upd.Location
	}
	if upd.DealerTier != nil {
		u.DealerTier = *upd.DealerTier
	}
	if upd.DealerLicense != nil {
		if *upd.DealerLicense != u.DealerLicense {
			u.LicenseVerified = false
		}
		u.DealerLicense = *upd.DealerLicense
	}
	if upd.IsVerified != nil {
		u.IsVerified = *upd.IsVerified
	}
	if upd.IsActive != nil {
		u.IsActive = *upd.IsActive
	}
	u.UpdatedAt = domain.Now()

	s.users[id] = u
	return u, nil
}

// SetLicenseVerified flips the license verification flag for a dealer.
func (s *UserStore) SetLicenseVerified(_ context.Context, id string, verified bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok || u.Role != domain.RoleDealer {
		return domain.ErrNotFound
	}
	u.LicenseVerified = verified
	u.UpdatedAt = domain.Now()
	s.users[id] = u
	return nil
}

// VerifyLicense marks a dealer's license as verified.
func (s *UserStore) VerifyLicense(ctx context.Context, dealerID string) error {
	return s.SetLicenseVerified(ctx, dealerID, true)
}

// Delete removes a user by id.
func (s *UserStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return domain.ErrNotFound
	}
	delete(s.byEmail, u.Email)
	delete(s.users, id)
	return nil
}

// List returns all users, newest first.
func (s *UserStore) List(_ context.Context) ([]domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.User, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool {
		return users[i].CreatedAt.After(users[j].CreatedAt)
	})
	return users, nil
}

// Compile-time interface check.
var _ domain.UserStore = (*UserStore)(nil)

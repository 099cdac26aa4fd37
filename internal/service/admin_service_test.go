package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/carbidx2025/CarbidX-EM/internal/domain"
)

func adminService(env *testEnv) *AdminService {
	return NewAdminService(env.users, env.auctions, env.bids, env.logger)
}

func TestAdminUpdateUser(t *testing.T) {
	env := newTestEnv()
	svc := adminService(env)
	ctx := context.Background()

	admin := domain.Principal{UserID: "admin-1", Role: domain.RoleAdmin}
	_, dealer := env.seedDealer(t, "dealer@cars.test")

	t.Run("requires_admin", func(t *testing.T) {
		_, err := svc.UpdateUser(ctx, dealer, dealer.UserID, domain.UserUpdate{})
		require.ErrorIs(t, err, domain.ErrForbidden)
	})

	t.Run("license_set_by_admin_is_verified", func(t *testing.T) {
		lic := "DL-fresh"
		u, err := svc.UpdateUser(ctx, admin, dealer.UserID, domain.UserUpdate{DealerLicense: &lic})
		require.NoError(t, err)
		require.Equal(t, "DL-fresh", u.DealerLicense)
		require.True(t, u.LicenseVerified)

		stored, err := env.users.GetByID(ctx, dealer.UserID)
		require.NoError(t, err)
		require.True(t, stored.LicenseVerified)
	})

	t.Run("can_disable_account", func(t *testing.T) {
		off := false
		u, err := svc.UpdateUser(ctx, admin, dealer.UserID, domain.UserUpdate{IsActive: &off})
		require.NoError(t, err)
		require.False(t, u.IsActive)
	})
}

func TestAdminDeleteUser(t *testing.T) {
	env := newTestEnv()
	svc := adminService(env)
	ctx := context.Background()

	admin := domain.Principal{UserID: "admin-1", Role: domain.RoleAdmin}
	_, buyer := env.seedBuyer(t, "anna@cars.test")

	require.ErrorIs(t, svc.DeleteUser(ctx, admin, admin.UserID), domain.ErrForbidden)

	require.NoError(t, svc.DeleteUser(ctx, admin, buyer.UserID))
	_, err := env.users.GetByID(ctx, buyer.UserID)
	require.ErrorIs(t, err, domain.ErrNotFound)

	require.ErrorIs(t, svc.DeleteUser(ctx, admin, buyer.UserID), domain.ErrNotFound)
}

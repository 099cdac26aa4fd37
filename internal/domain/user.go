package domain

import "time"

// Role identifies what a user is allowed to do on the marketplace.
type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleDealer Role = "dealer"
	RoleAdmin  Role = "admin"
)

// DealerTier is the subscription tier of a dealer account.
type DealerTier string

const (
	TierStandard DealerTier = "standard"
	TierPremium  DealerTier = "premium"
	TierGold     DealerTier = "gold"
)

// User is a registered marketplace participant. PasswordHash is never
// serialized in API responses.
type User struct {
	ID              string     `json:"id"`
	Email           string     `json:"email"`
	Name            string     `json:"name"`
	Role            Role       `json:"role"`
	DealerTier      DealerTier `json:"dealer_tier,omitempty"`
	Phone           string     `json:"phone,omitempty"`
	Location        string     `json:"location,omitempty"`
	DealerLicense   string     `json:"dealer_license,omitempty"`
	LicenseVerified bool       `json:"license_verified"`
	IsVerified      bool       `json:"is_verified"`
	IsActive        bool       `json:"is_active"`
	PasswordHash    string     `json:"-"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// UserUpdate carries the mutable profile fields. Nil means "leave unchanged".
type UserUpdate struct {
	Name          *string     `json:"name"`
	Email         *string     `json:"email"`
	Phone         *string     `json:"phone"`
	Location      *string     `json:"location"`
	DealerTier    *DealerTier `json:"dealer_tier"`
	DealerLicense *string     `json:"dealer_license"`
	IsVerified    *bool       `json:"is_verified"`
	IsActive      *bool       `json:"is_active"`
}

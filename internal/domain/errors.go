package domain

import "errors"

// Business-rule rejections. None are transient and none are retried; each maps
// to a distinct, stable API response so clients can branch on the reason.
var (
	ErrForbidden         = errors.New("forbidden")
	ErrNotFound          = errors.New("not found")
	ErrAuctionNotActive  = errors.New("auction is not active")
	ErrBidNotCompetitive = errors.New("bid must be lower than current lowest bid")
	ErrBudgetExceeded    = errors.New("bid exceeds maximum budget")
	ErrInvalidStatus     = errors.New("invalid auction status")
	ErrConflict          = errors.New("already exists")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrRateLimited       = errors.New("rate limited")
	ErrInvalidInput      = errors.New("invalid input")
)

// Infrastructure-level sentinels.
var (
	ErrLockHeld = errors.New("lock already held")
)

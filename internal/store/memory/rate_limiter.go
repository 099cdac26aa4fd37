package memory

import (
	"context"
	"sync"
	"time"

	"github.com/carbidx2025/CarbidX-EM/internal/domain"
)

// RateLimiter is an in-process sliding-window domain.RateLimiter.
type RateLimiter struct {
	mu     sync.Mutex
	events map[string][]time.Time
}

// NewRateLimiter creates an empty in-process rate limiter.
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{events: make(map[string][]time.Time)}
}

// Allow records an event for key and reports whether it fits under limit
// events within the trailing window.
func (l *RateLimiter) Allow(_ context.Context, key string, limit int, window time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-window)

	kept := l.events[key][:0]
	for _, t := range l.events[key] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}

	if len(kept) >= limit {
		l.events[key] = kept
		return false, nil
	}
	l.events[key] = append(kept, now)
	return true, nil
}

// Compile-time interface check.
var _ domain.RateLimiter = (*RateLimiter)(nil)

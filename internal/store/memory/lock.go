package memory

import (
	"context"
	"sync"
	"time"

	"github.com/carbidx2025/CarbidX-EM/internal/domain"
)

// LockManager is an in-process domain.LockManager keyed by string. It mirrors
// the try-lock semantics of the Redis implementation: Acquire fails fast with
// ErrLockHeld instead of blocking, and the TTL bounds how long a crashed
// holder can wedge the key.
type LockManager struct {
	mu   sync.Mutex
	held map[string]lockEntry
	next uint64
}

type lockEntry struct {
	token  uint64
	expiry time.Time
}

// NewLockManager creates an empty lock manager.
func NewLockManager() *LockManager {
	return &LockManager{held: make(map[string]lockEntry)}
}

// Acquire takes the key or returns domain.ErrLockHeld. The release function
// is safe to call more than once and only clears the caller's own hold, so a
// release arriving after TTL expiry cannot drop a later holder's lock.
func (m *LockManager) Acquire(_ context.Context, key string, ttl time.Duration) (func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	if e, ok := m.held[key]; ok && now.Before(e.expiry) {
		return nil, domain.ErrLockHeld
	}
	m.next++
	token := m.next
	m.held[key] = lockEntry{token: token, expiry: now.Add(ttl)}

	var once sync.Once
	release := func() {
		once.Do(func() {
			m.mu.Lock()
			if e, ok := m.held[key]; ok && e.token == token {
				delete(m.held, key)
			}
			m.mu.Unlock()
		})
	}
	return release, nil
}

// Compile-time interface check.
var _ domain.LockManager = (*LockManager)(nil)

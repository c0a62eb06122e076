// Package cooldown suppresses duplicate alerts per (symbol, direction,
// reason) key for a mode-dependent window.
package cooldown

import (
	"context"
	"sync"
	"time"
)

// Store is the cooldown backend. Mark is best effort; a failed mark must
// not block signal emission.
type Store interface {
	// Active reports whether the key is still inside its cooldown window
	Active(ctx context.Context, key string) (bool, error)
	// Mark starts a cooldown window for the key
	Mark(ctx context.Context, key string, ttl time.Duration) error
}

// MemoryStore is an in-process cooldown store with lazy expiry
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

// NewMemoryStore creates an empty in-process store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]time.Time),
		now:     time.Now,
	}
}

// Active reports whether the key's window has not yet expired
func (m *MemoryStore) Active(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	expiry, ok := m.entries[key]
	if !ok {
		return false, nil
	}
	if m.now().After(expiry) {
		delete(m.entries, key)
		return false, nil
	}
	return true, nil
}

// Mark records a cooldown window for the key
func (m *MemoryStore) Mark(_ context.Context, key string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = m.now().Add(ttl)
	return nil
}

var _ Store = (*MemoryStore)(nil)

package cache

import (
	"context"
	"sync"
	"time"
)

// tokenEntry represents a stored token with expiration
type tokenEntry struct {
	expiresAt time.Time
}

// InMemoryTokenStore implements TokenStore using an in-memory map.
// Suitable for single-instance deployments and testing.
type InMemoryTokenStore struct {
	mu        sync.RWMutex
	entries   map[string]tokenEntry
	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewInMemoryTokenStore creates a new in-memory token store.
// It starts a background goroutine to clean up expired entries.
func NewInMemoryTokenStore() *InMemoryTokenStore {
	store := &InMemoryTokenStore{
		entries:  make(map[string]tokenEntry),
		stopChan: make(chan struct{}),
	}

	store.wg.Add(1)
	go store.cleanupLoop()

	return store
}

// Ensure InMemoryTokenStore implements TokenStore
var _ TokenStore = (*InMemoryTokenStore)(nil)

// Store registers a token with a TTL
func (s *InMemoryTokenStore) Store(ctx context.Context, token string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[token] = tokenEntry{
		expiresAt: time.Now().Add(ttl),
	}
	return nil
}

// Valid reports whether the token exists and has not expired
func (s *InMemoryTokenStore) Valid(ctx context.Context, token string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, exists := s.entries[token]
	if !exists {
		return false, nil
	}
	if time.Now().After(e.expiresAt) {
		return false, nil
	}
	return true, nil
}

// Close stops the cleanup goroutine. Safe to call multiple times.
func (s *InMemoryTokenStore) Close() error {
	s.closeOnce.Do(func() {
		close(s.stopChan)
		s.wg.Wait()
	})
	return nil
}

// cleanupLoop periodically removes expired entries
func (s *InMemoryTokenStore) cleanupLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.cleanup()
		}
	}
}

func (s *InMemoryTokenStore) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for token, e := range s.entries {
		if now.After(e.expiresAt) {
			delete(s.entries, token)
		}
	}
}

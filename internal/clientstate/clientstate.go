// Package clientstate holds the short-lived, session-scoped state the
// confirmation flow keeps per browser session: the verified order payload
// (so reloads do not re-run verification) and the "cart already cleared"
// dedup marker. Entries are keyed by provider session id and expire after
// a TTL.
package clientstate

import (
	"sync"
	"time"

	"github.com/brightwell/checkout/internal/domain"
)

// DefaultTTL bounds how long a verified session stays cached.
const DefaultTTL = 24 * time.Hour

type entry struct {
	order       *domain.Order
	cartCleared bool
	expiresAt   time.Time
}

// Store is a mutex-guarded in-memory session cache.
type Store struct {
	mu      sync.Mutex
	entries map[string]*entry
	ttl     time.Duration
	now     func() time.Time
}

// NewStore creates a session cache with the given TTL (DefaultTTL if zero).
func NewStore(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{
		entries: make(map[string]*entry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// CacheOrder stores the verified order payload for a session.
func (s *Store) CacheOrder(sessionID string, order *domain.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.get(sessionID)
	e.order = order
}

// CachedOrder returns the verified order for a session, or nil.
func (s *Store) CachedOrder(sessionID string) *domain.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[sessionID]
	if !ok || s.now().After(e.expiresAt) {
		return nil
	}
	return e.order
}

// MarkCartCleared sets the dedup marker for a session.
func (s *Store) MarkCartCleared(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.get(sessionID)
	e.cartCleared = true
}

// CartCleared reports whether the dedup marker is set for a session.
func (s *Store) CartCleared(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[sessionID]
	if !ok || s.now().After(e.expiresAt) {
		return false
	}
	return e.cartCleared
}

// Sweep drops expired entries. Called opportunistically by the worker.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	removed := 0
	for id, e := range s.entries {
		if now.After(e.expiresAt) {
			delete(s.entries, id)
			removed++
		}
	}
	return removed
}

// get returns the live entry for a session, creating or refreshing as
// needed. Caller holds the lock.
func (s *Store) get(sessionID string) *entry {
	now := s.now()
	e, ok := s.entries[sessionID]
	if !ok || now.After(e.expiresAt) {
		e = &entry{expiresAt: now.Add(s.ttl)}
		s.entries[sessionID] = e
	}
	return e
}

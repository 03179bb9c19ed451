package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/brightwell/checkout/internal/domain"
)

// memIntentStore is an in-memory domain.IntentStore with the same
// consume-once semantics as the PostgreSQL implementation.
type memIntentStore struct {
	mu      sync.Mutex
	intents map[string]*domain.PendingCheckoutIntent
}

func newMemIntentStore() *memIntentStore {
	return &memIntentStore{intents: make(map[string]*domain.PendingCheckoutIntent)}
}

func (s *memIntentStore) Create(ctx context.Context, intent domain.PendingCheckoutIntent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if intent.CreatedAt.IsZero() {
		intent.CreatedAt = time.Now()
	}
	s.intents[intent.ProviderSessionID] = &intent
	return nil
}

func (s *memIntentStore) Get(ctx context.Context, providerSessionID string) (*domain.PendingCheckoutIntent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	intent, ok := s.intents[providerSessionID]
	if !ok {
		return nil, domain.ErrUnknownSession
	}
	cp := *intent
	return &cp, nil
}

func (s *memIntentStore) Consume(ctx context.Context, providerSessionID string) (*domain.PendingCheckoutIntent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	intent, ok := s.intents[providerSessionID]
	if !ok {
		return nil, domain.ErrUnknownSession
	}
	if intent.Status != domain.IntentStatusOpen {
		return nil, domain.ErrSessionAlreadyProcessed
	}
	intent.Status = domain.IntentStatusConsumed
	cp := *intent
	return &cp, nil
}

func (s *memIntentStore) ExpireOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int64
	for _, intent := range s.intents {
		if intent.Status == domain.IntentStatusOpen && intent.CreatedAt.Before(cutoff) {
			intent.Status = domain.IntentStatusExpired
			count++
		}
	}
	return count, nil
}

// memOrderStore is an in-memory domain.OrderStore. createErrs is drained
// one error per Create call before writes start succeeding, so tests can
// simulate transient write failures.
type memOrderStore struct {
	mu          sync.Mutex
	orders      map[string]*domain.Order
	createErrs  []error
	createCalls int
}

func newMemOrderStore() *memOrderStore {
	return &memOrderStore{orders: make(map[string]*domain.Order)}
}

func (s *memOrderStore) Create(ctx context.Context, order domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.createCalls++
	if len(s.createErrs) > 0 {
		err := s.createErrs[0]
		s.createErrs = s.createErrs[1:]
		return err
	}
	s.orders[order.ProviderSessionID] = &order
	return nil
}

func (s *memOrderStore) GetBySessionID(ctx context.Context, providerSessionID string) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[providerSessionID]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	cp := *order
	return &cp, nil
}

func (s *memOrderStore) LinkAccount(ctx context.Context, orderID, accountID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, order := range s.orders {
		if order.ID != orderID {
			continue
		}
		if order.AccountID != nil {
			return domain.Conflict("order.link_account", "Order is already linked to an account")
		}
		id := accountID
		order.AccountID = &id
		return nil
	}
	return domain.ErrOrderNotFound
}

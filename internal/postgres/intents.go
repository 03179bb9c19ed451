package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/brightwell/checkout/internal/domain"
)

// IntentStore implements domain.IntentStore using PostgreSQL.
type IntentStore struct {
	pool *pgxpool.Pool
}

var _ domain.IntentStore = (*IntentStore)(nil)

// NewIntentStore creates a PostgreSQL-backed intent store.
func NewIntentStore(pool *pgxpool.Pool) *IntentStore {
	return &IntentStore{pool: pool}
}

// Create writes a new open intent keyed by the provider session id.
func (s *IntentStore) Create(ctx context.Context, intent domain.PendingCheckoutIntent) error {
	linesJSON, err := json.Marshal(intent.Lines)
	if err != nil {
		return domain.Internal(err, "intent.create", "failed to encode intent lines")
	}
	shippingJSON, err := json.Marshal(intent.ShippingAddress)
	if err != nil {
		return domain.Internal(err, "intent.create", "failed to encode shipping address")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO checkout_intents
		   (provider_session_id, lines, shipping_address, total_cents, status, guest_email, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, now())`,
		intent.ProviderSessionID, linesJSON, shippingJSON, intent.TotalCents,
		domain.IntentStatusOpen, intent.GuestEmail,
	)
	if err != nil {
		return domain.Internal(err, "intent.create", "failed to write checkout intent")
	}
	return nil
}

// Get returns the intent for a provider session id.
func (s *IntentStore) Get(ctx context.Context, providerSessionID string) (*domain.PendingCheckoutIntent, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT provider_session_id, lines, shipping_address, total_cents, status, guest_email, created_at
		 FROM checkout_intents WHERE provider_session_id = $1`,
		providerSessionID,
	)
	return scanIntent(row, "intent.get")
}

// Consume atomically transitions the intent from open to consumed and
// returns its snapshot. The conditional UPDATE is the only concurrency
// guard between concurrent webhook redeliveries; no application lock.
func (s *IntentStore) Consume(ctx context.Context, providerSessionID string) (*domain.PendingCheckoutIntent, error) {
	row := s.pool.QueryRow(ctx,
		`UPDATE checkout_intents
		 SET status = $1
		 WHERE provider_session_id = $2 AND status = $3
		 RETURNING provider_session_id, lines, shipping_address, total_cents, status, guest_email, created_at`,
		domain.IntentStatusConsumed, providerSessionID, domain.IntentStatusOpen,
	)

	intent, err := scanIntent(row, "intent.consume")
	if err == nil {
		return intent, nil
	}
	if !errors.Is(err, domain.ErrUnknownSession) {
		return nil, err
	}

	// Zero rows: either the intent was never created, or it already left
	// the open state. Distinguish so redelivery can be a no-op success.
	var status string
	lookupErr := s.pool.QueryRow(ctx,
		`SELECT status FROM checkout_intents WHERE provider_session_id = $1`,
		providerSessionID,
	).Scan(&status)
	if lookupErr != nil {
		if errors.Is(lookupErr, pgx.ErrNoRows) {
			return nil, domain.ErrUnknownSession
		}
		return nil, domain.Internal(lookupErr, "intent.consume", "failed to check intent status")
	}
	return nil, domain.ErrSessionAlreadyProcessed
}

// ExpireOlderThan transitions open intents created before the cutoff to
// expired.
func (s *IntentStore) ExpireOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE checkout_intents SET status = $1 WHERE status = $2 AND created_at < $3`,
		domain.IntentStatusExpired, domain.IntentStatusOpen, cutoff,
	)
	if err != nil {
		return 0, domain.Internal(err, "intent.expire", "failed to expire stale intents")
	}
	return tag.RowsAffected(), nil
}

func scanIntent(row pgx.Row, op string) (*domain.PendingCheckoutIntent, error) {
	var intent domain.PendingCheckoutIntent
	var linesJSON, shippingJSON []byte

	err := row.Scan(&intent.ProviderSessionID, &linesJSON, &shippingJSON,
		&intent.TotalCents, &intent.Status, &intent.GuestEmail, &intent.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUnknownSession
		}
		return nil, domain.Internal(err, op, "failed to read checkout intent")
	}

	if err := json.Unmarshal(linesJSON, &intent.Lines); err != nil {
		return nil, domain.Internal(err, op, "failed to decode intent lines")
	}
	if err := json.Unmarshal(shippingJSON, &intent.ShippingAddress); err != nil {
		return nil, domain.Internal(err, op, "failed to decode shipping address")
	}
	return &intent, nil
}

package postgres

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/brightwell/checkout/internal/domain"
)

// OrderStore implements domain.OrderStore using PostgreSQL.
type OrderStore struct {
	pool *pgxpool.Pool
}

var _ domain.OrderStore = (*OrderStore)(nil)

// NewOrderStore creates a PostgreSQL-backed order store.
func NewOrderStore(pool *pgxpool.Pool) *OrderStore {
	return &OrderStore{pool: pool}
}

// Create writes an order and its items in one transaction.
func (s *OrderStore) Create(ctx context.Context, order domain.Order) error {
	shippingJSON, err := json.Marshal(order.ShippingAddress)
	if err != nil {
		return domain.Internal(err, "order.create", "failed to encode shipping address")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.Internal(err, "order.create", "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO orders
		   (id, order_number, provider_session_id, shipping_address, total_cents,
		    payment_status, fulfillment_status, account_id, guest_email, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		order.ID, order.OrderNumber, order.ProviderSessionID, shippingJSON,
		order.TotalCents, order.PaymentStatus, order.FulfillmentStatus,
		order.AccountID, order.GuestEmail, order.CreatedAt,
	)
	if err != nil {
		return domain.Internal(err, "order.create", "failed to write order")
	}

	for _, item := range order.Items {
		selectionsJSON, err := json.Marshal(item.Selections)
		if err != nil {
			return domain.Internal(err, "order.create", "failed to encode item selections")
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO order_items
			   (order_id, product_id, product_name, selections, quantity, unit_price_cents, total_cents)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			order.ID, item.ProductID, item.ProductName, selectionsJSON,
			item.Quantity, item.UnitPriceCents, item.TotalCents,
		)
		if err != nil {
			return domain.Internal(err, "order.create", "failed to write order item")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Internal(err, "order.create", "failed to commit order")
	}
	return nil
}

// GetBySessionID returns the order materialized for a provider session id.
func (s *OrderStore) GetBySessionID(ctx context.Context, providerSessionID string) (*domain.Order, error) {
	var order domain.Order
	var shippingJSON []byte

	err := s.pool.QueryRow(ctx,
		`SELECT id, order_number, provider_session_id, shipping_address, total_cents,
		        payment_status, fulfillment_status, account_id, guest_email, created_at
		 FROM orders WHERE provider_session_id = $1`,
		providerSessionID,
	).Scan(&order.ID, &order.OrderNumber, &order.ProviderSessionID, &shippingJSON,
		&order.TotalCents, &order.PaymentStatus, &order.FulfillmentStatus,
		&order.AccountID, &order.GuestEmail, &order.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, domain.Internal(err, "order.get_by_session", "failed to read order")
	}

	rows, err := s.pool.Query(ctx,
		`SELECT product_id, product_name, selections, quantity, unit_price_cents, total_cents
		 FROM order_items WHERE order_id = $1`,
		order.ID,
	)
	if err != nil {
		return nil, domain.Internal(err, "order.get_by_session", "failed to read order items")
	}
	defer rows.Close()

	for rows.Next() {
		var item domain.OrderItem
		var selectionsJSON []byte
		if err := rows.Scan(&item.ProductID, &item.ProductName, &selectionsJSON,
			&item.Quantity, &item.UnitPriceCents, &item.TotalCents); err != nil {
			return nil, domain.Internal(err, "order.get_by_session", "failed to scan order item")
		}
		if err := json.Unmarshal(selectionsJSON, &item.Selections); err != nil {
			return nil, domain.Internal(err, "order.get_by_session", "failed to decode item selections")
		}
		order.Items = append(order.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Internal(err, "order.get_by_session", "failed to read order items")
	}

	return &order, nil
}

// LinkAccount sets the account reference on an existing order. An order
// that already belongs to an account is never re-linked.
func (s *OrderStore) LinkAccount(ctx context.Context, orderID uuid.UUID, accountID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE orders SET account_id = $1 WHERE id = $2 AND account_id IS NULL`,
		accountID, orderID,
	)
	if err != nil {
		return domain.Internal(err, "order.link_account", "failed to link account")
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	// Zero rows: missing order, or one already claimed by an account.
	var linked *uuid.UUID
	lookupErr := s.pool.QueryRow(ctx,
		`SELECT account_id FROM orders WHERE id = $1`, orderID,
	).Scan(&linked)
	if lookupErr != nil {
		if errors.Is(lookupErr, pgx.ErrNoRows) {
			return domain.ErrOrderNotFound
		}
		return domain.Internal(lookupErr, "order.link_account", "failed to check order")
	}
	return domain.Conflict("order.link_account", "Order is already linked to an account")
}

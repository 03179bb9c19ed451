package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Payment status values for an order.
const (
	PaymentStatusPending  = "pending"
	PaymentStatusPaid     = "paid"
	PaymentStatusFailed   = "failed"
	PaymentStatusRefunded = "refunded"
)

// Fulfillment status values for an order.
const (
	FulfillmentStatusUnfulfilled = "unfulfilled"
	FulfillmentStatusShipped     = "shipped"
	FulfillmentStatusDelivered   = "delivered"
	FulfillmentStatusCancelled   = "cancelled"
)

// Order domain errors.
var (
	ErrOrderNotFound = &Error{Code: ENOTFOUND, Message: "Order not found"}

	// ErrFulfillmentWrite indicates the order write failed after the
	// intent was consumed and retries were exhausted. Operator-facing;
	// never shown to the buyer as a payment failure.
	ErrFulfillmentWrite = &Error{Code: EINTERNAL, Message: "Order could not be written after payment"}
)

// OrderItem is a denormalized copy of a cart line at time of purchase.
// Immutable after order creation.
type OrderItem struct {
	ProductID      string            `json:"product_id"`
	ProductName    string            `json:"product_name"`
	Selections     map[string]string `json:"selections"`
	Quantity       int32             `json:"quantity"`
	UnitPriceCents int64             `json:"unit_price_cents"`
	TotalCents     int64             `json:"total_cents"`
}

// Order is the durable, paid record materialized from a pending intent.
// Append-only after creation; cancellation is a status transition, not a
// deletion.
type Order struct {
	ID                uuid.UUID       `json:"id"`
	OrderNumber       string          `json:"order_number"`
	ProviderSessionID string          `json:"provider_session_id"`
	Items             []OrderItem     `json:"items"`
	ShippingAddress   ShippingAddress `json:"shipping_address"`
	TotalCents        int64           `json:"total_cents"`
	PaymentStatus     string          `json:"payment_status"`
	FulfillmentStatus string          `json:"fulfillment_status"`
	CreatedAt         time.Time       `json:"created_at"`

	// AccountID links a guest order to an authenticated account after
	// the fact. Nil for guest orders that were never linked.
	AccountID  *uuid.UUID `json:"account_id,omitempty"`
	GuestEmail string     `json:"guest_email,omitempty"`
}

// OrderStore persists orders.
type OrderStore interface {
	// Create writes a new order with its items.
	Create(ctx context.Context, order Order) error

	// GetBySessionID returns the order materialized for a provider
	// session id, or ErrOrderNotFound.
	GetBySessionID(ctx context.Context, providerSessionID string) (*Order, error)

	// LinkAccount sets the account reference on an existing order.
	// A post-creation step; never a checkout precondition.
	LinkAccount(ctx context.Context, orderID uuid.UUID, accountID uuid.UUID) error
}

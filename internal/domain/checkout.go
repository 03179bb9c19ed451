package domain

import (
	"context"
	"time"
)

// Intent status values. An intent is written once as open, and leaves
// that state exactly once: either consumed by the fulfillment handler or
// expired by the sweeper.
const (
	IntentStatusOpen     = "open"
	IntentStatusConsumed = "consumed"
	IntentStatusExpired  = "expired"
)

// Checkout domain errors.
var (
	ErrEmptyCart = &Error{Code: EINVALID, Message: "Cart is empty"}

	// ErrSessionAlreadyProcessed indicates the intent for a provider
	// session was already consumed. Webhook redelivery treats this as
	// success.
	ErrSessionAlreadyProcessed = &Error{Code: ECONFLICT, Message: "Checkout session already processed"}

	// ErrUnknownSession indicates a provider session id the backend has
	// never seen, or one whose intent was purged.
	ErrUnknownSession = &Error{Code: ENOTFOUND, Message: "Checkout session not found"}

	// ErrPaymentNotCompleted indicates the provider reports the session
	// as unpaid (abandoned or failed). Terminal; the buyer retries checkout.
	ErrPaymentNotCompleted = &Error{Code: EPAYMENT, Message: "Payment was not completed"}
)

// UnavailableItem creates the session-creation rejection for a line whose
// product is inactive or whose selected option is out of stock.
func UnavailableItem(lineID, reason string) error {
	return Errorf(EINVALID, "checkout.create_session", "item unavailable (%s): %s", lineID, reason)
}

// ShippingAddress is the address snapshot captured at session creation
// and copied verbatim onto the order.
type ShippingAddress struct {
	FullName     string `json:"full_name"`
	AddressLine1 string `json:"address_line1"`
	AddressLine2 string `json:"address_line2,omitempty"`
	City         string `json:"city"`
	State        string `json:"state"`
	PostalCode   string `json:"postal_code"`
	Country      string `json:"country"`
}

// IntentLine is a priced cart line snapshotted into a pending intent.
// Prices here are authoritative: recomputed from the catalog, never
// taken from the client.
type IntentLine struct {
	LineID         string            `json:"line_id"`
	ProductID      string            `json:"product_id"`
	ProductName    string            `json:"product_name"`
	Selections     map[string]string `json:"selections"`
	Quantity       int32             `json:"quantity"`
	UnitPriceCents int64             `json:"unit_price_cents"`
}

// PendingCheckoutIntent bridges "session opened" and "order materialized".
// It is keyed by the payment provider's session id; that id maps to at
// most one order, ever.
type PendingCheckoutIntent struct {
	ProviderSessionID string
	Lines             []IntentLine
	ShippingAddress   ShippingAddress
	TotalCents        int64
	Status            string
	GuestEmail        string
	CreatedAt         time.Time
}

// IntentStore persists pending checkout intents.
type IntentStore interface {
	// Create writes a new open intent.
	Create(ctx context.Context, intent PendingCheckoutIntent) error

	// Get returns the intent for a provider session id, or
	// ErrUnknownSession.
	Get(ctx context.Context, providerSessionID string) (*PendingCheckoutIntent, error)

	// Consume atomically transitions the intent from open to consumed
	// and returns its snapshot. This conditional update is the only
	// concurrency guard between concurrent webhook deliveries: if the
	// intent is not open (already consumed, expired, or absent) it
	// returns ErrSessionAlreadyProcessed or ErrUnknownSession without
	// modifying anything.
	Consume(ctx context.Context, providerSessionID string) (*PendingCheckoutIntent, error)

	// ExpireOlderThan transitions open intents created before the cutoff
	// to expired, returning how many were affected. Expired intents
	// never materialize orders.
	ExpireOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// CreateSessionParams is the input to checkout session creation. Client
// prices on the lines are ignored.
type CreateSessionParams struct {
	Lines           []CartLine
	ShippingAddress ShippingAddress
	GuestEmail      string
}

// CheckoutSession is the result of opening a session with the payment
// provider: where to send the buyer, and the id everything downstream is
// keyed by.
type CheckoutSession struct {
	ProviderSessionID string `json:"provider_session_id"`
	RedirectURL       string `json:"redirect_url"`
	TotalCents        int64  `json:"total_cents"`
}

// CheckoutService opens payment provider sessions for carts.
type CheckoutService interface {
	// CreateSession re-validates the cart against the catalog, recomputes
	// the authoritative total, opens a provider session and persists a
	// pending intent keyed by the session id before returning.
	CreateSession(ctx context.Context, params CreateSessionParams) (*CheckoutSession, error)
}

// Package billing abstracts the external payment provider. The provider
// is a black box reachable through exactly two surfaces: creating a
// hosted checkout session, and the asynchronous "payment completed"
// webhook it sends back.
package billing

import (
	"context"
	"errors"
)

// Payment status values reported by the provider for a session.
const (
	PaymentStatusPaid   = "paid"
	PaymentStatusUnpaid = "unpaid"
)

// Session status values.
const (
	SessionStatusOpen     = "open"
	SessionStatusComplete = "complete"
	SessionStatusExpired  = "expired"
)

var (
	// ErrSessionNotFound indicates the provider does not know the session id.
	ErrSessionNotFound = errors.New("billing: session not found")

	// ErrInvalidSignature indicates a webhook payload that failed
	// signature verification.
	ErrInvalidSignature = errors.New("billing: invalid webhook signature")
)

// LineItem is one priced line sent to the provider. Amounts are
// authoritative server-side totals, never client-declared prices.
type LineItem struct {
	Name            string
	UnitAmountCents int64
	Quantity        int64
}

// CreateSessionParams are the inputs to opening a hosted checkout session.
type CreateSessionParams struct {
	LineItems     []LineItem
	Currency      string
	CustomerEmail string

	// SuccessURL is where the provider redirects the buyer after payment.
	// The provider substitutes its session id into the template.
	SuccessURL string
	CancelURL  string
}

// Session is the provider-side, time-bounded authorization to collect one
// payment for one precomputed total.
type Session struct {
	ID               string
	URL              string
	AmountTotalCents int64
	PaymentStatus    string
	Status           string
}

// Provider defines the payment provider interface.
// Implementations can use Stripe, PayPal, Square, etc.
type Provider interface {
	// CreateCheckoutSession opens a hosted checkout session and returns
	// its id and redirect URL.
	CreateCheckoutSession(ctx context.Context, params CreateSessionParams) (*Session, error)

	// GetCheckoutSession retrieves an existing session, including its
	// payment status. Used by verification to distinguish "webhook not
	// yet delivered" from "payment never completed".
	GetCheckoutSession(ctx context.Context, sessionID string) (*Session, error)

	// VerifyWebhookSignature verifies that a webhook request is authentic.
	VerifyWebhookSignature(payload []byte, signature string, secret string) error
}

package routes

import (
	"net/http"

	"github.com/brightwell/checkout/internal/handler"
)

// StorefrontDeps contains dependencies for the buyer-facing API routes.
type StorefrontDeps struct {
	// Cart
	CartHandler *handler.CartHandler

	// Checkout session creation and confirmation-page verification
	CheckoutHandler *handler.CheckoutHandler

	// Orders
	OrderHandler *handler.OrderHandler
}

// WebhookDeps contains dependencies for webhook routes.
type WebhookDeps struct {
	StripeHandler http.HandlerFunc
}

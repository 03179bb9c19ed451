package routes

import (
	"github.com/brightwell/checkout/internal/router"
)

// RegisterStorefrontRoutes registers the buyer-facing API routes.
func RegisterStorefrontRoutes(r *router.Router, deps StorefrontDeps) {
	// Shopping cart
	r.Get("/cart", deps.CartHandler.View)
	r.Post("/cart/items", deps.CartHandler.Add)
	r.Delete("/cart", deps.CartHandler.Clear)

	// Checkout flow
	r.Post("/checkout/create-session", deps.CheckoutHandler.CreateSession)
	r.Get("/checkout/verify", deps.CheckoutHandler.Verify)

	// Orders
	r.Get("/orders/{session_id}", deps.OrderHandler.GetBySession)
	r.Post("/orders/{id}/link", deps.OrderHandler.LinkAccount)
}

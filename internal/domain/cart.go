package domain

import "context"

// Cart domain errors.
var (
	ErrCartNotFound        = &Error{Code: ENOTFOUND, Message: "Cart not found"}
	ErrProductNotFound     = &Error{Code: ENOTFOUND, Message: "Product not found"}
	ErrInvalidQuantity     = &Error{Code: EINVALID, Message: "Quantity must be greater than 0"}
	ErrIncompleteSelection = &Error{Code: EINVALID, Message: "A choice is required for every product option"}
)

// CartLine is a single line in a buyer's cart: one product with one
// concrete set of variant selections. Two additions of the same
// product+selection combination resolve to the same LineID and their
// quantities are summed, never duplicated.
type CartLine struct {
	// LineID is derived from ProductID and Selections; see pricing.LineID.
	LineID     string            `json:"line_id"`
	ProductID  string            `json:"product_id"`
	Selections map[string]string `json:"selections"` // variant id -> option id
	Quantity   int32             `json:"quantity"`

	// UnitPriceCents is display-only on the client. The server recomputes
	// it from the catalog at checkout and ignores the client value.
	UnitPriceCents int64 `json:"unit_price_cents"`
}

// CartService manages the buyer's active cart. The cart has no server
// authority over pricing; it exists so that checkout and the post-payment
// side effects have an explicit, injectable collaborator instead of
// ambient client state.
type CartService interface {
	// Get returns the lines of the cart for the given browser session.
	Get(ctx context.Context, cartSessionID string) ([]CartLine, error)

	// Add merges a line into the cart, summing quantities for an
	// existing LineID. Rejects lines with missing variant selections.
	Add(ctx context.Context, cartSessionID string, line CartLine) ([]CartLine, error)

	// Clear removes all lines from the cart.
	Clear(ctx context.Context, cartSessionID string) error
}

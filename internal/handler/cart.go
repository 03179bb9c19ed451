package handler

import (
	"encoding/json"
	"net/http"

	"github.com/brightwell/checkout/internal/domain"
)

// CartHandler serves the buyer's cart.
type CartHandler struct {
	cart domain.CartService
}

// NewCartHandler creates a new CartHandler instance.
func NewCartHandler(cart domain.CartService) *CartHandler {
	return &CartHandler{cart: cart}
}

type cartResponse struct {
	Lines      []domain.CartLine `json:"lines"`
	TotalCents int64             `json:"total_cents"`
}

// View handles GET /cart.
func (h *CartHandler) View(w http.ResponseWriter, r *http.Request) {
	cartSessionID := r.Header.Get(cartSessionHeader)
	if cartSessionID == "" {
		ErrorResponse(w, r, domain.Invalid("cart.view", "Missing cart session"))
		return
	}

	lines, err := h.cart.Get(r.Context(), cartSessionID)
	if err != nil {
		ErrorResponse(w, r, err)
		return
	}

	var total int64
	for _, line := range lines {
		total += line.UnitPriceCents * int64(line.Quantity)
	}

	JSONResponse(w, http.StatusOK, cartResponse{Lines: lines, TotalCents: total})
}

type addItemRequest struct {
	ProductID  string            `json:"product_id"`
	Selections map[string]string `json:"selections"`
	Quantity   int32             `json:"quantity"`
}

// Add handles POST /cart/items. Adding the same product with the same
// selections merges into the existing line.
func (h *CartHandler) Add(w http.ResponseWriter, r *http.Request) {
	cartSessionID := r.Header.Get(cartSessionHeader)
	if cartSessionID == "" {
		ErrorResponse(w, r, domain.Invalid("cart.add", "Missing cart session"))
		return
	}

	var req addItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ErrorResponse(w, r, domain.Invalid("cart.add", "Invalid JSON body"))
		return
	}

	lines, err := h.cart.Add(r.Context(), cartSessionID, domain.CartLine{
		ProductID:  req.ProductID,
		Selections: req.Selections,
		Quantity:   req.Quantity,
	})
	if err != nil {
		ErrorResponse(w, r, err)
		return
	}

	var total int64
	for _, line := range lines {
		total += line.UnitPriceCents * int64(line.Quantity)
	}

	JSONResponse(w, http.StatusOK, cartResponse{Lines: lines, TotalCents: total})
}

// Clear handles DELETE /cart.
func (h *CartHandler) Clear(w http.ResponseWriter, r *http.Request) {
	cartSessionID := r.Header.Get(cartSessionHeader)
	if cartSessionID == "" {
		ErrorResponse(w, r, domain.Invalid("cart.clear", "Missing cart session"))
		return
	}

	if err := h.cart.Clear(r.Context(), cartSessionID); err != nil {
		ErrorResponse(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

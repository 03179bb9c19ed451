package handler

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/brightwell/checkout/internal/domain"
)

// OrderHandler serves order lookup and post-purchase account linking.
type OrderHandler struct {
	orders domain.OrderStore
}

// NewOrderHandler creates a new OrderHandler instance.
func NewOrderHandler(orders domain.OrderStore) *OrderHandler {
	return &OrderHandler{orders: orders}
}

// GetBySession handles GET /orders/{session_id}, keyed by the provider
// session id the confirmation page carries.
func (h *OrderHandler) GetBySession(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("session_id")
	if sessionID == "" {
		ErrorResponse(w, r, domain.Invalid("order.get", "Missing session id"))
		return
	}

	order, err := h.orders.GetBySessionID(r.Context(), sessionID)
	if err != nil {
		ErrorResponse(w, r, err)
		return
	}

	JSONResponse(w, http.StatusOK, order)
}

type linkAccountRequest struct {
	AccountID string `json:"account_id"`
}

// LinkAccount handles POST /orders/{id}/link. Guest orders can be
// claimed by an account after the fact; an order that already belongs
// to an account is not re-linked.
func (h *OrderHandler) LinkAccount(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		ErrorResponse(w, r, domain.Invalid("order.link_account", "Invalid order id"))
		return
	}

	var req linkAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ErrorResponse(w, r, domain.Invalid("order.link_account", "Invalid JSON body"))
		return
	}

	accountID, err := uuid.Parse(req.AccountID)
	if err != nil {
		ErrorResponse(w, r, domain.Invalid("order.link_account", "Invalid account id"))
		return
	}

	if err := h.orders.LinkAccount(r.Context(), orderID, accountID); err != nil {
		ErrorResponse(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

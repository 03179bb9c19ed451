package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/brightwell/checkout/internal/domain"
	"github.com/brightwell/checkout/internal/service"
)

// cartSessionHeader carries the buyer's cart session id. The storefront
// sets it from its session cookie.
const cartSessionHeader = "X-Cart-Session"

// CheckoutHandler serves checkout session creation and confirmation-page
// verification.
type CheckoutHandler struct {
	cart     domain.CartService
	checkout domain.CheckoutService
	verify   *service.VerifyService
	effects  *service.SideEffects
	logger   *slog.Logger
}

// NewCheckoutHandler creates a new CheckoutHandler instance.
func NewCheckoutHandler(cart domain.CartService, checkout domain.CheckoutService, verify *service.VerifyService, effects *service.SideEffects, logger *slog.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		cart:     cart,
		checkout: checkout,
		verify:   verify,
		effects:  effects,
		logger:   logger,
	}
}

type createSessionRequest struct {
	ShippingAddress domain.ShippingAddress `json:"shipping_address"`
	GuestEmail      string                 `json:"guest_email"`
}

// CreateSession handles POST /checkout/create-session. The cart is
// loaded server-side from the session id; any prices the client sends
// play no part in what gets charged.
func (h *CheckoutHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	cartSessionID := r.Header.Get(cartSessionHeader)
	if cartSessionID == "" {
		ErrorResponse(w, r, domain.Invalid("checkout.create_session", "Missing cart session"))
		return
	}

	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ErrorResponse(w, r, domain.Invalid("checkout.create_session", "Invalid JSON body"))
		return
	}

	lines, err := h.cart.Get(r.Context(), cartSessionID)
	if err != nil {
		ErrorResponse(w, r, err)
		return
	}

	session, err := h.checkout.CreateSession(r.Context(), domain.CreateSessionParams{
		Lines:           lines,
		ShippingAddress: req.ShippingAddress,
		GuestEmail:      req.GuestEmail,
	})
	if err != nil {
		ErrorResponse(w, r, err)
		return
	}

	JSONResponse(w, http.StatusOK, session)
}

type verifyResponse struct {
	State    string        `json:"state"`
	Order    *domain.Order `json:"order,omitempty"`
	Attempts int           `json:"attempts,omitempty"`
}

// Verify handles GET /checkout/verify?session_id=... for the
// confirmation page.
//
//	200 success               payment confirmed, order attached
//	202 verifying             another verification is in flight
//	202 still_processing      no answer yet, poll again
//	402 payment_not_completed terminal, buyer restarts checkout
//	404 session_not_found     terminal, unknown session id
func (h *CheckoutHandler) Verify(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")

	result := h.verify.Verify(r.Context(), sessionID)

	if result.State == service.StateSuccess && result.Order != nil {
		cartSessionID := r.Header.Get(cartSessionHeader)
		if cartSessionID != "" {
			if err := h.effects.Apply(r.Context(), sessionID, cartSessionID, result.Order); err != nil {
				// The order is confirmed; a failed cart clear must not
				// turn the confirmation page into an error page.
				h.logger.Error("post-confirmation side effects failed",
					"provider_session_id", sessionID, "error", err)
			}
		}
	}

	JSONResponse(w, verifyStatus(result.State), verifyResponse{
		State:    result.State,
		Order:    result.Order,
		Attempts: result.Attempts,
	})
}

func verifyStatus(state string) int {
	switch state {
	case service.StateSuccess:
		return http.StatusOK
	case service.StateVerifying, service.StateStillProcessing:
		return http.StatusAccepted
	case service.StatePaymentNotCompleted:
		return http.StatusPaymentRequired
	case service.StateSessionNotFound:
		return http.StatusNotFound
	case service.StateMissingSession:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

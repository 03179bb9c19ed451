package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightwell/checkout/internal/billing"
	"github.com/brightwell/checkout/internal/clientstate"
	"github.com/brightwell/checkout/internal/domain"
	"github.com/brightwell/checkout/internal/service"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubCart struct {
	lines      []domain.CartLine
	getErr     error
	clearCalls int
}

func (s *stubCart) Get(ctx context.Context, cartSessionID string) ([]domain.CartLine, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.lines, nil
}

func (s *stubCart) Add(ctx context.Context, cartSessionID string, line domain.CartLine) ([]domain.CartLine, error) {
	s.lines = append(s.lines, line)
	return s.lines, nil
}

func (s *stubCart) Clear(ctx context.Context, cartSessionID string) error {
	s.clearCalls++
	s.lines = nil
	return nil
}

type stubCheckout struct {
	session *domain.CheckoutSession
	err     error
	got     domain.CreateSessionParams
}

func (s *stubCheckout) CreateSession(ctx context.Context, params domain.CreateSessionParams) (*domain.CheckoutSession, error) {
	s.got = params
	if s.err != nil {
		return nil, s.err
	}
	return s.session, nil
}

type stubOrders struct {
	orders map[string]*domain.Order
}

func (s *stubOrders) Create(ctx context.Context, order domain.Order) error {
	s.orders[order.ProviderSessionID] = &order
	return nil
}

func (s *stubOrders) GetBySessionID(ctx context.Context, providerSessionID string) (*domain.Order, error) {
	order, ok := s.orders[providerSessionID]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	return order, nil
}

func (s *stubOrders) LinkAccount(ctx context.Context, orderID, accountID uuid.UUID) error {
	for _, order := range s.orders {
		if order.ID != orderID {
			continue
		}
		if order.AccountID != nil {
			return domain.Conflict("order.link_account", "Order is already linked to an account")
		}
		id := accountID
		order.AccountID = &id
		return nil
	}
	return domain.ErrOrderNotFound
}

type stubIntents struct{}

func (stubIntents) Create(ctx context.Context, intent domain.PendingCheckoutIntent) error {
	return nil
}

func (stubIntents) Get(ctx context.Context, providerSessionID string) (*domain.PendingCheckoutIntent, error) {
	return nil, domain.ErrUnknownSession
}

func (stubIntents) Consume(ctx context.Context, providerSessionID string) (*domain.PendingCheckoutIntent, error) {
	return nil, domain.ErrUnknownSession
}

func (stubIntents) ExpireOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

func TestVerifyStatus(t *testing.T) {
	tests := []struct {
		state string
		want  int
	}{
		{service.StateSuccess, http.StatusOK},
		{service.StateVerifying, http.StatusAccepted},
		{service.StateStillProcessing, http.StatusAccepted},
		{service.StatePaymentNotCompleted, http.StatusPaymentRequired},
		{service.StateSessionNotFound, http.StatusNotFound},
		{service.StateMissingSession, http.StatusBadRequest},
		{"bogus", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		if got := verifyStatus(tt.state); got != tt.want {
			t.Errorf("verifyStatus(%q) = %d, want %d", tt.state, got, tt.want)
		}
	}
}

func TestCreateSession_MissingCartHeader(t *testing.T) {
	h := NewCheckoutHandler(&stubCart{}, &stubCheckout{}, nil, nil, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/checkout/create-session", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	h.CreateSession(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateSession_InvalidJSON(t *testing.T) {
	h := NewCheckoutHandler(&stubCart{}, &stubCheckout{}, nil, nil, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/checkout/create-session", strings.NewReader(`{`))
	req.Header.Set(cartSessionHeader, "cart_abc")
	rec := httptest.NewRecorder()
	h.CreateSession(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateSession_Success(t *testing.T) {
	cart := &stubCart{lines: []domain.CartLine{{
		ProductID:  "coffee-blend",
		Selections: map[string]string{"grind": "whole"},
		Quantity:   1,
	}}}
	checkout := &stubCheckout{session: &domain.CheckoutSession{
		ProviderSessionID: "cs_123",
		RedirectURL:       "https://checkout.example.com/pay/abc",
		TotalCents:        240,
	}}
	h := NewCheckoutHandler(cart, checkout, nil, nil, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/checkout/create-session",
		strings.NewReader(`{"guest_email": "buyer@example.com", "shipping_address": {"full_name": "Ada Buyer"}}`))
	req.Header.Set(cartSessionHeader, "cart_abc")
	rec := httptest.NewRecorder()
	h.CreateSession(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp domain.CheckoutSession
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "cs_123", resp.ProviderSessionID)
	assert.Equal(t, "https://checkout.example.com/pay/abc", resp.RedirectURL)

	// The handler passed the server-side cart, not anything client-sent.
	require.Len(t, checkout.got.Lines, 1)
	assert.Equal(t, "coffee-blend", checkout.got.Lines[0].ProductID)
	assert.Equal(t, "buyer@example.com", checkout.got.GuestEmail)
	assert.Equal(t, "Ada Buyer", checkout.got.ShippingAddress.FullName)
}

func TestCreateSession_EmptyCartPropagates(t *testing.T) {
	checkout := &stubCheckout{err: domain.ErrEmptyCart}
	h := NewCheckoutHandler(&stubCart{}, checkout, nil, nil, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/checkout/create-session", strings.NewReader(`{}`))
	req.Header.Set(cartSessionHeader, "cart_abc")
	rec := httptest.NewRecorder()
	h.CreateSession(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// newVerifyHandler wires a CheckoutHandler over a real verification
// service and side-effect applier, backed by in-memory stubs.
func newVerifyHandler(orders *stubOrders, cart *stubCart) *CheckoutHandler {
	state := clientstate.NewStore(time.Hour)
	verify := service.NewVerifyService(orders, stubIntents{}, billing.NewMockProvider(), state, testLogger(), 1, time.Millisecond)
	effects := service.NewSideEffects(cart, state, 15*time.Minute, testLogger())
	return NewCheckoutHandler(cart, &stubCheckout{}, verify, effects, testLogger())
}

func TestVerify_SuccessClearsCartOnce(t *testing.T) {
	orders := &stubOrders{orders: map[string]*domain.Order{
		"cs_123": {
			OrderNumber:       "ORD-20260115-A3K9",
			ProviderSessionID: "cs_123",
			PaymentStatus:     domain.PaymentStatusPaid,
			CreatedAt:         time.Now(),
		},
	}}
	cart := &stubCart{}
	h := newVerifyHandler(orders, cart)

	get := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/checkout/verify?session_id=cs_123", nil)
		req.Header.Set(cartSessionHeader, "cart_abc")
		rec := httptest.NewRecorder()
		h.Verify(rec, req)
		return rec
	}

	rec := get()
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		State string        `json:"state"`
		Order *domain.Order `json:"order"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, service.StateSuccess, resp.State)
	require.NotNil(t, resp.Order)
	assert.Equal(t, "ORD-20260115-A3K9", resp.Order.OrderNumber)
	assert.Equal(t, 1, cart.clearCalls)

	// A reload serves the cached order and the cart is left alone.
	rec = get()
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, cart.clearCalls)
}

func TestVerify_MissingSessionID(t *testing.T) {
	h := newVerifyHandler(&stubOrders{orders: map[string]*domain.Order{}}, &stubCart{})

	req := httptest.NewRequest(http.MethodGet, "/checkout/verify", nil)
	rec := httptest.NewRecorder()
	h.Verify(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestVerify_UnknownSession(t *testing.T) {
	cart := &stubCart{}
	h := newVerifyHandler(&stubOrders{orders: map[string]*domain.Order{}}, cart)

	req := httptest.NewRequest(http.MethodGet, "/checkout/verify?session_id=cs_missing", nil)
	req.Header.Set(cartSessionHeader, "cart_abc")
	rec := httptest.NewRecorder()
	h.Verify(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Zero(t, cart.clearCalls)
}

package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightwell/checkout/internal/billing"
	"github.com/brightwell/checkout/internal/clientstate"
	"github.com/brightwell/checkout/internal/domain"
)

func newVerifyFixture(t *testing.T) (*memIntentStore, *memOrderStore, *billing.MockProvider, *clientstate.Store, *VerifyService) {
	t.Helper()
	intents := newMemIntentStore()
	orders := newMemOrderStore()
	provider := billing.NewMockProvider()
	state := clientstate.NewStore(time.Hour)
	svc := NewVerifyService(orders, intents, provider, state, testLogger(), 3, time.Millisecond)
	return intents, orders, provider, state, svc
}

func paidOrder(sessionID string) domain.Order {
	return domain.Order{
		OrderNumber:       "ORD-20260115-A3K9",
		ProviderSessionID: sessionID,
		TotalCents:        240,
		PaymentStatus:     domain.PaymentStatusPaid,
		FulfillmentStatus: domain.FulfillmentStatusUnfulfilled,
		CreatedAt:         time.Now(),
	}
}

func TestVerify_MissingSessionID(t *testing.T) {
	_, _, _, _, svc := newVerifyFixture(t)

	result := svc.Verify(context.Background(), "")
	assert.Equal(t, StateMissingSession, result.State)
}

func TestVerify_SuccessFirstAttempt(t *testing.T) {
	_, orders, _, state, svc := newVerifyFixture(t)
	require.NoError(t, orders.Create(context.Background(), paidOrder("cs_123")))

	result := svc.Verify(context.Background(), "cs_123")
	assert.Equal(t, StateSuccess, result.State)
	require.NotNil(t, result.Order)
	assert.Equal(t, "ORD-20260115-A3K9", result.Order.OrderNumber)
	assert.Equal(t, 1, result.Attempts)

	// The verified order is cached for later confirmation-page loads.
	assert.NotNil(t, state.CachedOrder("cs_123"))
}

func TestVerify_OrderAppearsWhileRetrying(t *testing.T) {
	intents, orders, provider, _, svc := newVerifyFixture(t)
	seedIntent(t, intents, "cs_123")

	// The provider says paid; the order lands between the first and
	// second attempt, as when the webhook is a beat behind the redirect.
	provider.GetCheckoutSessionFunc = func(ctx context.Context, sessionID string) (*billing.Session, error) {
		require.NoError(t, orders.Create(context.Background(), paidOrder(sessionID)))
		return &billing.Session{
			ID:            sessionID,
			PaymentStatus: billing.PaymentStatusPaid,
			Status:        billing.SessionStatusComplete,
		}, nil
	}

	result := svc.Verify(context.Background(), "cs_123")
	assert.Equal(t, StateSuccess, result.State)
	require.NotNil(t, result.Order)
	assert.Equal(t, 2, result.Attempts)
}

func TestVerify_PaymentNotCompleted(t *testing.T) {
	intents, _, provider, _, svc := newVerifyFixture(t)
	seedIntent(t, intents, "cs_123")
	provider.Sessions["cs_123"] = &billing.Session{
		ID:            "cs_123",
		PaymentStatus: billing.PaymentStatusUnpaid,
		Status:        billing.SessionStatusOpen,
	}

	result := svc.Verify(context.Background(), "cs_123")
	assert.Equal(t, StatePaymentNotCompleted, result.State)
	assert.Equal(t, 1, result.Attempts)
	assert.Nil(t, result.Order)
}

func TestVerify_SessionNotFound(t *testing.T) {
	_, _, _, _, svc := newVerifyFixture(t)

	result := svc.Verify(context.Background(), "cs_never_seen")
	assert.Equal(t, StateSessionNotFound, result.State)
}

func TestVerify_StillProcessingAfterExhaustion(t *testing.T) {
	intents, _, provider, _, svc := newVerifyFixture(t)
	seedIntent(t, intents, "cs_123")

	// Paid at the provider, but the order never materializes within the
	// polling budget. Not a failure; the page polls again later.
	provider.Sessions["cs_123"] = &billing.Session{
		ID:            "cs_123",
		PaymentStatus: billing.PaymentStatusPaid,
		Status:        billing.SessionStatusComplete,
	}

	result := svc.Verify(context.Background(), "cs_123")
	assert.Equal(t, StateStillProcessing, result.State)
	assert.Equal(t, 3, result.Attempts)
}

func TestVerify_CachedOrderShortCircuits(t *testing.T) {
	_, orders, provider, _, svc := newVerifyFixture(t)
	require.NoError(t, orders.Create(context.Background(), paidOrder("cs_123")))

	first := svc.Verify(context.Background(), "cs_123")
	require.Equal(t, StateSuccess, first.State)
	calls := len(provider.CallLog)

	second := svc.Verify(context.Background(), "cs_123")
	assert.Equal(t, StateSuccess, second.State)
	assert.Equal(t, 0, second.Attempts)
	assert.Len(t, provider.CallLog, calls, "cached verification must not touch the provider")
}

func TestVerify_ConcurrentCallShortCircuits(t *testing.T) {
	intents, _, provider, _, svc := newVerifyFixture(t)
	seedIntent(t, intents, "cs_123")

	entered := make(chan struct{})
	release := make(chan struct{})
	provider.GetCheckoutSessionFunc = func(ctx context.Context, sessionID string) (*billing.Session, error) {
		close(entered)
		<-release
		return &billing.Session{
			ID:            sessionID,
			PaymentStatus: billing.PaymentStatusUnpaid,
			Status:        billing.SessionStatusOpen,
		}, nil
	}

	done := make(chan VerificationResult, 1)
	go func() {
		done <- svc.Verify(context.Background(), "cs_123")
	}()

	<-entered
	dup := svc.Verify(context.Background(), "cs_123")
	assert.Equal(t, StateVerifying, dup.State)

	close(release)
	result := <-done
	assert.Equal(t, StatePaymentNotCompleted, result.State)
}

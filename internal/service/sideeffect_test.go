package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightwell/checkout/internal/clientstate"
	"github.com/brightwell/checkout/internal/domain"
)

// fakeCart records Clear calls and can fail on demand.
type fakeCart struct {
	clearCalls []string
	clearErr   error
}

func (f *fakeCart) Get(ctx context.Context, cartSessionID string) ([]domain.CartLine, error) {
	return nil, nil
}

func (f *fakeCart) Add(ctx context.Context, cartSessionID string, line domain.CartLine) ([]domain.CartLine, error) {
	return nil, nil
}

func (f *fakeCart) Clear(ctx context.Context, cartSessionID string) error {
	if f.clearErr != nil {
		return f.clearErr
	}
	f.clearCalls = append(f.clearCalls, cartSessionID)
	return nil
}

func TestApply_ClearsCartOnce(t *testing.T) {
	cart := &fakeCart{}
	state := clientstate.NewStore(time.Hour)
	effects := NewSideEffects(cart, state, 15*time.Minute, testLogger())

	order := paidOrder("cs_123")

	require.NoError(t, effects.Apply(context.Background(), "cs_123", "cart_abc", &order))
	require.Len(t, cart.clearCalls, 1)
	assert.Equal(t, "cart_abc", cart.clearCalls[0])

	// Reload, back button, duplicate tab: the clear never runs again.
	require.NoError(t, effects.Apply(context.Background(), "cs_123", "cart_abc", &order))
	require.NoError(t, effects.Apply(context.Background(), "cs_123", "cart_abc", &order))
	assert.Len(t, cart.clearCalls, 1)
}

func TestApply_StaleOrderSkipsClear(t *testing.T) {
	cart := &fakeCart{}
	state := clientstate.NewStore(time.Hour)
	effects := NewSideEffects(cart, state, 15*time.Minute, testLogger())

	// The buyer revisits last week's confirmation link with a fresh cart.
	order := paidOrder("cs_123")
	order.CreatedAt = time.Now().Add(-7 * 24 * time.Hour)

	require.NoError(t, effects.Apply(context.Background(), "cs_123", "cart_abc", &order))
	assert.Empty(t, cart.clearCalls)

	// The order is still cached so the page renders.
	assert.NotNil(t, state.CachedOrder("cs_123"))
}

func TestApply_FreshnessBoundary(t *testing.T) {
	cart := &fakeCart{}
	state := clientstate.NewStore(time.Hour)
	effects := NewSideEffects(cart, state, 15*time.Minute, testLogger())

	// Just inside the window still clears.
	order := paidOrder("cs_123")
	order.CreatedAt = time.Now().Add(-14 * time.Minute)

	require.NoError(t, effects.Apply(context.Background(), "cs_123", "cart_abc", &order))
	assert.Len(t, cart.clearCalls, 1)

	// Just past it does not.
	late := paidOrder("cs_456")
	late.CreatedAt = time.Now().Add(-(15*time.Minute + time.Second))

	require.NoError(t, effects.Apply(context.Background(), "cs_456", "cart_abc", &late))
	assert.Len(t, cart.clearCalls, 1)
	assert.NotNil(t, state.CachedOrder("cs_456"))
}

func TestApply_ClearFailureRetriesNextLoad(t *testing.T) {
	cart := &fakeCart{clearErr: errors.New("cart backend down")}
	state := clientstate.NewStore(time.Hour)
	effects := NewSideEffects(cart, state, 15*time.Minute, testLogger())

	order := paidOrder("cs_123")

	err := effects.Apply(context.Background(), "cs_123", "cart_abc", &order)
	require.Error(t, err)

	// The marker was not set; the next page load tries again and succeeds.
	cart.clearErr = nil
	require.NoError(t, effects.Apply(context.Background(), "cs_123", "cart_abc", &order))
	assert.Len(t, cart.clearCalls, 1)
}

func TestApply_DifferentSessionsClearIndependently(t *testing.T) {
	cart := &fakeCart{}
	state := clientstate.NewStore(time.Hour)
	effects := NewSideEffects(cart, state, 15*time.Minute, testLogger())

	orderA := paidOrder("cs_a")
	orderB := paidOrder("cs_b")

	require.NoError(t, effects.Apply(context.Background(), "cs_a", "cart_1", &orderA))
	require.NoError(t, effects.Apply(context.Background(), "cs_b", "cart_1", &orderB))
	assert.Len(t, cart.clearCalls, 2)
}

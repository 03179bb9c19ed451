package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/brightwell/checkout/internal/clientstate"
	"github.com/brightwell/checkout/internal/domain"
	"github.com/brightwell/checkout/internal/telemetry"
)

// defaultFreshnessWindow bounds how old a confirmed order may be before
// its confirmation stops clearing the cart. A buyer revisiting last
// week's confirmation link must not lose the cart they built today.
const defaultFreshnessWindow = 15 * time.Minute

// SideEffects applies the client-visible consequences of a confirmed
// order, exactly once per checkout session. The cart clear is the
// destructive one; everything here is guarded so confirmation-page
// reloads and back-button revisits are harmless.
type SideEffects struct {
	cart      domain.CartService
	state     *clientstate.Store
	freshness time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

// NewSideEffects creates a new SideEffects applier. freshness falls back
// to the default window when zero.
func NewSideEffects(cart domain.CartService, state *clientstate.Store, freshness time.Duration, logger *slog.Logger) *SideEffects {
	if freshness <= 0 {
		freshness = defaultFreshnessWindow
	}
	return &SideEffects{
		cart:      cart,
		state:     state,
		freshness: freshness,
		logger:    logger,
		now:       time.Now,
	}
}

// Apply runs the post-confirmation side effects for an order. Both
// guards must pass before the cart is cleared: the per-session dedup
// marker, and the order freshness window. A skipped clear still caches
// the order so the confirmation page renders without re-verifying.
func (s *SideEffects) Apply(ctx context.Context, providerSessionID, cartSessionID string, order *domain.Order) error {
	s.state.CacheOrder(providerSessionID, order)

	if s.state.CartCleared(providerSessionID) {
		s.countSkipped("already_applied")
		return nil
	}

	if age := s.now().Sub(order.CreatedAt); age > s.freshness {
		s.logger.Info("skipping cart clear for stale order",
			"provider_session_id", providerSessionID,
			"order_number", order.OrderNumber,
			"order_age", age,
		)
		s.countSkipped("stale_order")
		s.state.MarkCartCleared(providerSessionID)
		return nil
	}

	if err := s.cart.Clear(ctx, cartSessionID); err != nil {
		// Leave the marker unset so the next confirmation load retries.
		s.logger.Error("cart clear failed",
			"provider_session_id", providerSessionID,
			"cart_session_id", cartSessionID,
			"error", err,
		)
		return err
	}
	s.state.MarkCartCleared(providerSessionID)

	s.logger.Info("cart cleared after confirmed order",
		"provider_session_id", providerSessionID,
		"order_number", order.OrderNumber,
	)
	if telemetry.Business != nil {
		telemetry.Business.CartCleared.WithLabelValues().Inc()
	}
	return nil
}

func (s *SideEffects) countSkipped(reason string) {
	if telemetry.Business != nil {
		telemetry.Business.CartClearSkipped.WithLabelValues(reason).Inc()
	}
}

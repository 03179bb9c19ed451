package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"github.com/brightwell/checkout/internal/domain"
	"github.com/brightwell/checkout/internal/telemetry"
)

// Defaults for the order-write retry. The write is retried before the
// webhook is acknowledged; a consumed intent must never be left without
// an order while retries remain.
const (
	defaultWriteRetries   = 4
	defaultWriteRetryBase = 100 * time.Millisecond
)

// FulfillmentService materializes orders from paid checkout sessions. It
// is the single writer of orders from checkout; no other path creates an
// order for a fresh purchase.
type FulfillmentService struct {
	intents  domain.IntentStore
	orders   domain.OrderStore
	currency string
	logger   *slog.Logger

	writeRetries   uint64
	writeRetryBase time.Duration
	now            func() time.Time
}

// NewFulfillmentService creates a new FulfillmentService instance.
func NewFulfillmentService(intents domain.IntentStore, orders domain.OrderStore, currency string, logger *slog.Logger) *FulfillmentService {
	return &FulfillmentService{
		intents:        intents,
		orders:         orders,
		currency:       currency,
		logger:         logger,
		writeRetries:   defaultWriteRetries,
		writeRetryBase: defaultWriteRetryBase,
		now:            time.Now,
	}
}

// HandlePaymentCompleted consumes the pending intent for a provider
// session and creates the order from its snapshot.
//
// Idempotency: the intent store's conditional open->consumed update is
// the concurrency guard. Redelivered events return
// domain.ErrSessionAlreadyProcessed; events for unknown sessions return
// domain.ErrUnknownSession. The webhook handler treats both as no-op
// success, so redelivery is always safe.
func (s *FulfillmentService) HandlePaymentCompleted(ctx context.Context, providerSessionID string) (*domain.Order, error) {
	intent, err := s.intents.Consume(ctx, providerSessionID)
	if err != nil {
		return nil, err
	}

	orderNumber, err := generateOrderNumber(s.now())
	if err != nil {
		return nil, domain.Internal(err, "fulfillment.handle", "failed to generate order number")
	}

	items := make([]domain.OrderItem, len(intent.Lines))
	for i, line := range intent.Lines {
		items[i] = domain.OrderItem{
			ProductID:      line.ProductID,
			ProductName:    line.ProductName,
			Selections:     line.Selections,
			Quantity:       line.Quantity,
			UnitPriceCents: line.UnitPriceCents,
			TotalCents:     line.UnitPriceCents * int64(line.Quantity),
		}
	}

	order := domain.Order{
		ID:                uuid.New(),
		OrderNumber:       orderNumber,
		ProviderSessionID: providerSessionID,
		Items:             items,
		ShippingAddress:   intent.ShippingAddress,
		TotalCents:        intent.TotalCents,
		PaymentStatus:     domain.PaymentStatusPaid,
		FulfillmentStatus: domain.FulfillmentStatusUnfulfilled,
		GuestEmail:        intent.GuestEmail,
		CreatedAt:         s.now(),
	}

	// The intent is already consumed; the order write must land. Retry
	// transient store failures with backoff before giving up.
	backoff := retry.WithMaxRetries(s.writeRetries, retry.NewFibonacci(s.writeRetryBase))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := s.orders.Create(ctx, order); err != nil {
			s.logger.Warn("order write failed, retrying",
				"provider_session_id", providerSessionID,
				"order_number", orderNumber,
				"error", err,
			)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		// Escape hatch: the intent stays consumed with no order. This is
		// operator-facing, never surfaced to the buyer as a payment
		// failure; the payment itself succeeded.
		s.logger.Error("CRITICAL: consumed intent has no order, manual reconciliation required",
			"provider_session_id", providerSessionID,
			"order_number", orderNumber,
			"error", err,
		)
		return nil, domain.WrapError(errors.Join(domain.ErrFulfillmentWrite, err),
			domain.EINTERNAL, "fulfillment.handle", domain.ErrFulfillmentWrite.Message)
	}

	s.logger.Info("order created",
		"order_number", order.OrderNumber,
		"provider_session_id", providerSessionID,
		"total_cents", order.TotalCents,
	)
	if telemetry.Business != nil {
		telemetry.Business.OrdersCreated.WithLabelValues(s.currency).Inc()
		telemetry.Business.OrderValue.WithLabelValues(s.currency).Observe(float64(order.TotalCents))
	}

	return &order, nil
}

// IsNoOpDelivery reports whether a fulfillment error means the event was
// already handled (or never will be) and should be acknowledged quietly.
func IsNoOpDelivery(err error) bool {
	return errors.Is(err, domain.ErrSessionAlreadyProcessed) || errors.Is(err, domain.ErrUnknownSession)
}

// orderNumberAlphabet excludes ambiguous characters (0/O, 1/I/L).
const orderNumberAlphabet = "23456789ABCDEFGHJKMNPQRSTUVWXYZ"

// generateOrderNumber produces a human-facing order number of the form
// ORD-20250129-A3K9.
func generateOrderNumber(now time.Time) (string, error) {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	suffix := make([]byte, 4)
	for i, v := range b {
		suffix[i] = orderNumberAlphabet[int(v)%len(orderNumberAlphabet)]
	}
	return fmt.Sprintf("ORD-%s-%s", now.Format("20060102"), suffix), nil
}

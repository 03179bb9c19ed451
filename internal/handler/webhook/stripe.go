package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/stripe/stripe-go/v82"

	"github.com/brightwell/checkout/internal/billing"
	"github.com/brightwell/checkout/internal/domain"
	"github.com/brightwell/checkout/internal/handler"
	"github.com/brightwell/checkout/internal/service"
	"github.com/brightwell/checkout/internal/telemetry"
)

// maxPayloadBytes bounds the webhook body read. Stripe events are small.
const maxPayloadBytes = 1 << 20

// Fulfiller materializes orders from paid sessions.
type Fulfiller interface {
	HandlePaymentCompleted(ctx context.Context, providerSessionID string) (*domain.Order, error)
}

// StripeHandler handles Stripe webhook events.
type StripeHandler struct {
	provider    billing.Provider
	fulfillment Fulfiller
	config      StripeWebhookConfig
	logger      *slog.Logger
}

// StripeWebhookConfig contains configuration for Stripe webhook handling.
type StripeWebhookConfig struct {
	// WebhookSecret is the webhook signing secret from the Stripe dashboard.
	WebhookSecret string
}

// NewStripeHandler creates a new Stripe webhook handler.
func NewStripeHandler(provider billing.Provider, fulfillment Fulfiller, config StripeWebhookConfig, logger *slog.Logger) *StripeHandler {
	return &StripeHandler{
		provider:    provider,
		fulfillment: fulfillment,
		config:      config,
		logger:      logger,
	}
}

// HandleWebhook processes incoming Stripe webhook events.
//
// Acknowledgment policy: once the signature checks out, events that were
// handled, were already handled, or never can be handled get a 200 —
// processing is idempotent, and a non-2xx makes Stripe hammer the
// endpoint with retries of an event we already dealt with. The one
// exception is a transient failure while the intent is still open: the
// order does not exist yet and Stripe's redelivery is the only retry
// channel, so that case returns a 500 to keep it open.
//
// Stripe CLI testing:
//
//	stripe listen --forward-to localhost:3000/webhooks/stripe
//	stripe trigger checkout.session.completed
func (h *StripeHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()

	if r.Method != http.MethodPost {
		handler.ErrorResponse(w, r, domain.Invalid("webhook.stripe", "Method not allowed"))
		return
	}

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxPayloadBytes))
	if err != nil {
		handler.ErrorResponse(w, r, domain.Invalid("webhook.stripe", "Error reading request body"))
		return
	}

	signature := r.Header.Get("Stripe-Signature")
	if signature == "" {
		handler.ErrorResponse(w, r, domain.Errorf(domain.EUNAUTHORIZED, "webhook.stripe", "Missing signature"))
		return
	}

	if err := h.provider.VerifyWebhookSignature(payload, signature, h.config.WebhookSecret); err != nil {
		h.logger.Warn("webhook signature verification failed", "error", err)
		handler.ErrorResponse(w, r, domain.Errorf(domain.EUNAUTHORIZED, "webhook.stripe", "Invalid signature"))
		return
	}

	var event stripe.Event
	if err := json.Unmarshal(payload, &event); err != nil {
		handler.ErrorResponse(w, r, domain.Invalid("webhook.stripe", "Invalid JSON"))
		return
	}

	h.logger.Info("stripe webhook received", "event_type", event.Type, "event_id", event.ID)
	if telemetry.Business != nil {
		telemetry.Business.WebhookReceived.WithLabelValues(string(event.Type)).Inc()
	}
	defer func() {
		if telemetry.Business != nil {
			telemetry.Business.WebhookLatency.WithLabelValues(string(event.Type)).Observe(time.Since(startTime).Seconds())
		}
	}()

	switch event.Type {
	case "checkout.session.completed":
		if err := h.handleSessionCompleted(r.Context(), event); err != nil {
			handler.ErrorResponse(w, r, err)
			return
		}

	case "checkout.session.expired":
		h.handleSessionExpired(event)

	default:
		h.logger.Debug("unhandled event type", "event_type", event.Type)
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"received": true}`))
}

// handleSessionCompleted materializes an order for a paid checkout
// session. Redelivered and unknown sessions are no-ops. A returned error
// means the intent is still open and the event must not be acknowledged.
func (h *StripeHandler) handleSessionCompleted(ctx context.Context, event stripe.Event) error {
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		// Redelivery carries the same payload; retrying cannot help.
		h.logger.Error("failed to parse checkout session from webhook", "event_id", event.ID, "error", err)
		h.countFailed(event, "parse_error")
		return nil
	}

	if session.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		// Completed-but-unpaid covers deferred payment methods; the order
		// waits for the eventual async payment event.
		h.logger.Info("session completed without payment, skipping",
			"provider_session_id", session.ID, "payment_status", session.PaymentStatus)
		h.countProcessed(event)
		return nil
	}

	order, err := h.fulfillment.HandlePaymentCompleted(ctx, session.ID)
	if err != nil {
		if service.IsNoOpDelivery(err) {
			h.logger.Info("session already handled, acknowledging redelivery",
				"provider_session_id", session.ID)
			h.countProcessed(event)
			return nil
		}
		h.countFailed(event, "fulfillment_error")
		if errors.Is(err, domain.ErrFulfillmentWrite) {
			// The intent is consumed; redelivery would be a no-op. The
			// CRITICAL reconciliation log already fired.
			h.logger.Error("order write exhausted retries, acknowledging for operator recovery",
				"provider_session_id", session.ID, "error", err)
			return nil
		}
		// The intent is still open. Refuse the ack so Stripe redelivers
		// and the session gets another chance to materialize.
		h.logger.Error("failed to materialize order from webhook, requesting redelivery",
			"provider_session_id", session.ID, "error", err)
		return err
	}

	h.logger.Info("webhook materialized order",
		"provider_session_id", session.ID, "order_number", order.OrderNumber)
	h.countProcessed(event)
	return nil
}

func (h *StripeHandler) handleSessionExpired(event stripe.Event) {
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		h.logger.Error("failed to parse checkout session from webhook", "event_id", event.ID, "error", err)
		h.countFailed(event, "parse_error")
		return
	}

	// Expiry is handled by the intent sweeper on its own clock; the event
	// is informational.
	h.logger.Info("checkout session expired", "provider_session_id", session.ID)
	h.countProcessed(event)
}

func (h *StripeHandler) countProcessed(event stripe.Event) {
	if telemetry.Business != nil {
		telemetry.Business.WebhookProcessed.WithLabelValues(string(event.Type)).Inc()
	}
}

func (h *StripeHandler) countFailed(event stripe.Event, reason string) {
	if telemetry.Business != nil {
		telemetry.Business.WebhookFailed.WithLabelValues(string(event.Type), reason).Inc()
	}
}

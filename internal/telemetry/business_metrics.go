package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// BusinessMetrics holds Prometheus metrics for checkout-funnel
// observability.
type BusinessMetrics struct {
	// Checkout funnel
	CheckoutSessionsStarted *prometheus.CounterVec
	CheckoutRejected        *prometheus.CounterVec

	// Webhooks
	WebhookReceived  *prometheus.CounterVec
	WebhookProcessed *prometheus.CounterVec
	WebhookFailed    *prometheus.CounterVec
	WebhookLatency   *prometheus.HistogramVec

	// Orders
	OrdersCreated *prometheus.CounterVec
	OrderValue    *prometheus.HistogramVec

	// Verification
	VerifyOutcome  *prometheus.CounterVec
	VerifyAttempts *prometheus.HistogramVec

	// Side effects
	CartCleared      *prometheus.CounterVec
	CartClearSkipped *prometheus.CounterVec

	// Intent lifecycle
	IntentsExpired *prometheus.CounterVec
}

// Business is the global metrics instance, set once at startup.
// Handlers nil-check it so tests can run without registration.
var Business *BusinessMetrics

// NewBusinessMetrics creates and registers all business metrics.
func NewBusinessMetrics(namespace string) *BusinessMetrics {
	if namespace == "" {
		namespace = "checkout"
	}

	subsystem := "business"

	return &BusinessMetrics{
		CheckoutSessionsStarted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "checkout_sessions_started_total",
				Help:      "Total payment provider sessions opened",
			},
			[]string{"currency"},
		),
		CheckoutRejected: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "checkout_rejected_total",
				Help:      "Total session creations rejected before reaching the provider",
			},
			[]string{"reason"}, // unavailable_item, empty_cart, invalid_input
		),
		WebhookReceived: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "webhook_received_total",
				Help:      "Total provider webhook events received",
			},
			[]string{"event_type"},
		),
		WebhookProcessed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "webhook_processed_total",
				Help:      "Total provider webhook events handled to completion",
			},
			[]string{"event_type"},
		),
		WebhookFailed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "webhook_failed_total",
				Help:      "Total provider webhook events that failed processing",
			},
			[]string{"event_type", "reason"},
		),
		WebhookLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "webhook_duration_seconds",
				Help:      "Provider webhook processing time",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"event_type"},
		),
		OrdersCreated: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "orders_created_total",
				Help:      "Total orders materialized from paid sessions",
			},
			[]string{"currency"},
		),
		OrderValue: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "order_value_cents",
				Help:      "Order totals in cents",
				Buckets:   prometheus.ExponentialBuckets(500, 2.5, 10),
			},
			[]string{"currency"},
		),
		VerifyOutcome: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "verify_outcome_total",
				Help:      "Terminal states reached by confirmation-page verification",
			},
			[]string{"state"},
		),
		VerifyAttempts: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "verify_attempts",
				Help:      "Polling attempts used per verification",
				Buckets:   []float64{1, 2, 3, 4, 5},
			},
			[]string{"state"},
		),
		CartCleared: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "cart_cleared_total",
				Help:      "Total carts cleared after confirmed payment",
			},
			[]string{},
		),
		CartClearSkipped: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "cart_clear_skipped_total",
				Help:      "Cart clears skipped by the dedup marker or freshness window",
			},
			[]string{"reason"}, // already_applied, stale_order
		),
		IntentsExpired: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "intents_expired_total",
				Help:      "Open checkout intents expired by the sweeper",
			},
			[]string{},
		),
	}
}

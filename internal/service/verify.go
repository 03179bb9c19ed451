package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/brightwell/checkout/internal/billing"
	"github.com/brightwell/checkout/internal/clientstate"
	"github.com/brightwell/checkout/internal/domain"
	"github.com/brightwell/checkout/internal/telemetry"
)

// Verification states surfaced to the confirmation page.
const (
	// StateVerifying is returned when another verification for the same
	// session is already in flight; the caller should simply retry.
	StateVerifying = "verifying"

	// StateSuccess means the order exists and payment is confirmed.
	StateSuccess = "success"

	// StateStillProcessing means polling exhausted its attempts without a
	// terminal answer. Not a failure: the webhook may simply not have
	// landed yet.
	StateStillProcessing = "still_processing"

	// StatePaymentNotCompleted means the provider reports the session as
	// unpaid. Terminal; the buyer starts checkout over.
	StatePaymentNotCompleted = "payment_not_completed"

	// StateSessionNotFound means the session id is unknown to the backend
	// and to the provider. Terminal.
	StateSessionNotFound = "session_not_found"

	// StateMissingSession means no session id was supplied at all.
	StateMissingSession = "missing_session"
)

// Polling defaults: a handful of quick attempts to cover the common
// race where the buyer's redirect beats the webhook by a second or two.
const (
	defaultVerifyMaxAttempts = 3
	defaultVerifyDelay       = 2 * time.Second
)

// VerificationResult is the outcome of one Verify call.
type VerificationResult struct {
	State    string
	Order    *domain.Order
	Attempts int
}

// VerifyService answers "did my payment go through?" for the
// confirmation page. It polls briefly for the order the webhook is
// expected to create, consulting the provider to distinguish "not yet"
// from "never".
type VerifyService struct {
	orders   domain.OrderStore
	intents  domain.IntentStore
	provider billing.Provider
	state    *clientstate.Store
	logger   *slog.Logger

	maxAttempts uint64
	delay       time.Duration

	mu       sync.Mutex
	inFlight map[string]bool
}

// NewVerifyService creates a new VerifyService instance. maxAttempts and
// delay fall back to defaults when zero.
func NewVerifyService(orders domain.OrderStore, intents domain.IntentStore, provider billing.Provider, state *clientstate.Store, logger *slog.Logger, maxAttempts int, delay time.Duration) *VerifyService {
	if maxAttempts <= 0 {
		maxAttempts = defaultVerifyMaxAttempts
	}
	if delay <= 0 {
		delay = defaultVerifyDelay
	}
	return &VerifyService{
		orders:      orders,
		intents:     intents,
		provider:    provider,
		state:       state,
		logger:      logger,
		maxAttempts: uint64(maxAttempts),
		delay:       delay,
		inFlight:    make(map[string]bool),
	}
}

// terminal wraps a result so the retry loop stops without exhausting
// attempts.
type terminalResult struct {
	result VerificationResult
}

func (t *terminalResult) Error() string { return t.result.State }

// Verify resolves the payment state for a provider session id.
//
// Each attempt checks the order store first, then the provider. The
// provider reporting "paid" without an order present is the normal
// webhook lag case and keeps polling; "unpaid" is terminal. An id
// unknown to both the intent store and the provider is terminal.
func (s *VerifyService) Verify(ctx context.Context, providerSessionID string) VerificationResult {
	if providerSessionID == "" {
		return s.finish(VerificationResult{State: StateMissingSession})
	}

	// A verified order is cached client-state; answer without touching
	// the stores or the provider.
	if order := s.state.CachedOrder(providerSessionID); order != nil {
		return VerificationResult{State: StateSuccess, Order: order, Attempts: 0}
	}

	// Re-entrancy guard: the confirmation page retries on its own, and
	// overlapping polls against the provider buy nothing.
	s.mu.Lock()
	if s.inFlight[providerSessionID] {
		s.mu.Unlock()
		return VerificationResult{State: StateVerifying}
	}
	s.inFlight[providerSessionID] = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.inFlight, providerSessionID)
		s.mu.Unlock()
	}()

	attempts := 0
	backoff := retry.WithMaxRetries(s.maxAttempts-1, retry.NewConstant(s.delay))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempts++
		return s.attempt(ctx, providerSessionID)
	})

	switch {
	case err == nil:
		order, getErr := s.orders.GetBySessionID(ctx, providerSessionID)
		if getErr != nil {
			// The order was there a moment ago. Treat as transient.
			s.logger.Error("order vanished between poll and read",
				"provider_session_id", providerSessionID, "error", getErr)
			return s.finish(VerificationResult{State: StateStillProcessing, Attempts: attempts})
		}
		s.state.CacheOrder(providerSessionID, order)
		return s.finish(VerificationResult{State: StateSuccess, Order: order, Attempts: attempts})

	default:
		var term *terminalResult
		if errors.As(err, &term) {
			term.result.Attempts = attempts
			return s.finish(term.result)
		}
		return s.finish(VerificationResult{State: StateStillProcessing, Attempts: attempts})
	}
}

// attempt performs one poll. nil means the order is confirmed; a
// retryable error means keep polling; a terminalResult stops the loop.
func (s *VerifyService) attempt(ctx context.Context, providerSessionID string) error {
	order, err := s.orders.GetBySessionID(ctx, providerSessionID)
	if err == nil && order.PaymentStatus == domain.PaymentStatusPaid {
		return nil
	}
	if err != nil && !errors.Is(err, domain.ErrOrderNotFound) {
		s.logger.Warn("order lookup failed during verification",
			"provider_session_id", providerSessionID, "error", err)
		return retry.RetryableError(err)
	}

	// No order yet. If we never opened this session, say so immediately
	// instead of burning attempts.
	if _, err := s.intents.Get(ctx, providerSessionID); err != nil {
		if errors.Is(err, domain.ErrUnknownSession) {
			return &terminalResult{result: VerificationResult{State: StateSessionNotFound}}
		}
		return retry.RetryableError(err)
	}

	session, err := s.provider.GetCheckoutSession(ctx, providerSessionID)
	if err != nil {
		if errors.Is(err, billing.ErrSessionNotFound) {
			return &terminalResult{result: VerificationResult{State: StateSessionNotFound}}
		}
		// Provider hiccup. Keep the buyer in "processing" rather than
		// flashing a failure.
		s.logger.Warn("provider lookup failed during verification",
			"provider_session_id", providerSessionID, "error", err)
		return retry.RetryableError(err)
	}

	if session.PaymentStatus == billing.PaymentStatusPaid {
		// Paid but not materialized: the webhook is lagging. Keep polling.
		return retry.RetryableError(errors.New("paid session awaiting order"))
	}
	if session.Status == billing.SessionStatusExpired {
		return &terminalResult{result: VerificationResult{State: StatePaymentNotCompleted}}
	}

	// Session open and unpaid: the buyer came back without paying.
	return &terminalResult{result: VerificationResult{State: StatePaymentNotCompleted}}
}

// finish records the terminal outcome in metrics.
func (s *VerifyService) finish(r VerificationResult) VerificationResult {
	if telemetry.Business != nil {
		telemetry.Business.VerifyOutcome.WithLabelValues(r.State).Inc()
		if r.Attempts > 0 {
			telemetry.Business.VerifyAttempts.WithLabelValues(r.State).Observe(float64(r.Attempts))
		}
	}
	return r
}

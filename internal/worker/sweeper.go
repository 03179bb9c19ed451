// Package worker runs the background maintenance loops: expiring
// abandoned checkout intents and pruning cached client state.
package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/brightwell/checkout/internal/clientstate"
	"github.com/brightwell/checkout/internal/domain"
	"github.com/brightwell/checkout/internal/telemetry"
)

// Config holds sweeper configuration
type Config struct {
	// Interval is how often the sweep runs
	Interval time.Duration

	// IntentTTL is how long an open intent may sit unpaid. Intents older
	// than this are expired and will never materialize orders.
	IntentTTL time.Duration
}

// Sweeper expires abandoned checkout intents on a fixed interval.
type Sweeper struct {
	config  Config
	intents domain.IntentStore
	state   *clientstate.Store
	logger  *slog.Logger
}

// NewSweeper creates a new intent expiry sweeper.
func NewSweeper(intents domain.IntentStore, state *clientstate.Store, config Config, logger *slog.Logger) *Sweeper {
	if config.Interval == 0 {
		config.Interval = time.Hour
	}
	if config.IntentTTL == 0 {
		config.IntentTTL = 24 * time.Hour
	}

	return &Sweeper{
		config:  config,
		intents: intents,
		state:   state,
		logger:  logger,
	}
}

// Start runs the sweep loop until the context is cancelled. One sweep
// runs immediately so a restart doesn't postpone cleanup by a full
// interval.
func (s *Sweeper) Start(ctx context.Context) error {
	s.logger.Info("sweeper starting",
		"interval", s.config.Interval,
		"intent_ttl", s.config.IntentTTL,
	)

	s.sweep(ctx)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sweeper shutting down")
			return ctx.Err()

		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// sweep expires stale intents and prunes expired client-state entries.
func (s *Sweeper) sweep(ctx context.Context) {
	cutoff := time.Now().Add(-s.config.IntentTTL)

	count, err := s.intents.ExpireOlderThan(ctx, cutoff)
	if err != nil {
		s.logger.Error("failed to expire stale intents", "error", err)
	} else if count > 0 {
		s.logger.Info("expired stale checkout intents", "count", count, "cutoff", cutoff)
		if telemetry.Business != nil {
			telemetry.Business.IntentsExpired.WithLabelValues().Add(float64(count))
		}
	}

	if s.state != nil {
		if pruned := s.state.Sweep(); pruned > 0 {
			s.logger.Info("pruned cached client state", "count", pruned)
		}
	}
}

package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/brightwell/checkout/internal/clientstate"
	"github.com/brightwell/checkout/internal/domain"
)

type recordingIntents struct {
	mu      sync.Mutex
	cutoffs []time.Time
	expired int64
	err     error
}

func (r *recordingIntents) Create(ctx context.Context, intent domain.PendingCheckoutIntent) error {
	return nil
}

func (r *recordingIntents) Get(ctx context.Context, providerSessionID string) (*domain.PendingCheckoutIntent, error) {
	return nil, domain.ErrUnknownSession
}

func (r *recordingIntents) Consume(ctx context.Context, providerSessionID string) (*domain.PendingCheckoutIntent, error) {
	return nil, domain.ErrUnknownSession
}

func (r *recordingIntents) ExpireOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cutoffs = append(r.cutoffs, cutoff)
	return r.expired, r.err
}

func (r *recordingIntents) calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.cutoffs)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSweeperDefaults(t *testing.T) {
	s := NewSweeper(&recordingIntents{}, nil, Config{}, testLogger())

	if s.config.Interval != time.Hour {
		t.Errorf("default interval = %v, want 1h", s.config.Interval)
	}
	if s.config.IntentTTL != 24*time.Hour {
		t.Errorf("default intent TTL = %v, want 24h", s.config.IntentTTL)
	}
}

func TestSweepCutoff(t *testing.T) {
	intents := &recordingIntents{expired: 3}
	s := NewSweeper(intents, nil, Config{Interval: time.Hour, IntentTTL: 24 * time.Hour}, testLogger())

	before := time.Now()
	s.sweep(context.Background())

	if got := intents.calls(); got != 1 {
		t.Fatalf("ExpireOlderThan called %d times, want 1", got)
	}
	cutoff := intents.cutoffs[0]
	want := before.Add(-24 * time.Hour)
	if cutoff.Before(want.Add(-time.Minute)) || cutoff.After(want.Add(time.Minute)) {
		t.Errorf("cutoff = %v, want about %v", cutoff, want)
	}
}

func TestSweepSurvivesStoreError(t *testing.T) {
	intents := &recordingIntents{err: errors.New("db down")}
	state := clientstate.NewStore(time.Hour)
	s := NewSweeper(intents, state, Config{Interval: time.Hour, IntentTTL: time.Hour}, testLogger())

	// Must not panic; the client-state prune still runs.
	s.sweep(context.Background())
}

func TestStartSweepsImmediatelyAndStops(t *testing.T) {
	intents := &recordingIntents{}
	s := NewSweeper(intents, nil, Config{Interval: time.Hour, IntentTTL: time.Hour}, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	deadline := time.After(2 * time.Second)
	for intents.calls() == 0 {
		select {
		case <-deadline:
			t.Fatal("no sweep ran after Start")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Start returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not stop on context cancel")
	}
}

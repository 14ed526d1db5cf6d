package lockout

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"faceguard/internal/audit"
	"faceguard/internal/lockout/metrics"
	dErrors "faceguard/pkg/domain-errors"
	"faceguard/pkg/requestcontext"
)

// Recorder is the audit port this service needs.
type Recorder interface {
	Record(ctx context.Context, event audit.Event)
}

// Status is the answer to a pre-verification lockout check.
type Status struct {
	Locked       bool
	RetryAfter   time.Duration
	FailureCount int
}

// Service implements the per-identity brute-force policy: an identity is
// OPEN while its failure count stays below the limit within the window, and
// LOCKED for the configured duration once the limit is reached. The policy
// is keyed by the claimed username, whether or not it was ever enrolled, so
// probing unknown accounts is throttled identically.
type Service struct {
	store       Store
	maxFailures int
	window      time.Duration
	duration    time.Duration
	logger      *slog.Logger
	recorder    Recorder
	metrics     *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithRecorder(recorder Recorder) Option {
	return func(s *Service) { s.recorder = recorder }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func New(store Store, maxFailures int, window, duration time.Duration, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("lockout store is required")
	}
	svc := &Service{
		store:       store,
		maxFailures: maxFailures,
		window:      window,
		duration:    duration,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Check reports whether the identity may attempt verification now. An
// expired lock transitions back to OPEN with the counter reset, so one more
// failure is allowed before re-locking. A blocked attempt is audited as
// lockout_block and does not change the failure count.
func (s *Service) Check(ctx context.Context, identity string) (Status, error) {
	state, err := s.store.Get(ctx, identity)
	if err != nil {
		return Status{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read lockout state")
	}
	if state == nil {
		return Status{}, nil
	}

	now := requestcontext.Now(ctx)

	if state.IsLockedAt(now) {
		s.metrics.IncrementBlocked()
		s.record(ctx, audit.Event{
			Type:     audit.EventLockoutBlock,
			Identity: identity,
			Outcome:  audit.OutcomeBlocked,
			Detail: map[string]any{
				"retry_after_seconds": int(state.RemainingLock(now).Seconds()),
			},
		})
		return Status{
			Locked:       true,
			RetryAfter:   state.RemainingLock(now),
			FailureCount: state.FailureCount,
		}, nil
	}

	if state.LockedUntil != nil {
		// Lock elapsed: back to OPEN with a clean counter.
		if err := s.store.Clear(ctx, identity); err != nil {
			return Status{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to reset expired lockout")
		}
		return Status{}, nil
	}

	return Status{FailureCount: state.FailureCount}, nil
}

// RecordFailure counts one failed verification. Reaching the limit applies
// the hard lock and audits lockout_triggered. The increment itself is a
// single atomic store operation; callers pass a non-cancellable context so
// an aborted request cannot leave the counter half-updated.
func (s *Service) RecordFailure(ctx context.Context, identity string) (*State, error) {
	now := requestcontext.Now(ctx)

	state, err := s.store.Increment(ctx, identity, now, s.window)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record verification failure")
	}
	s.metrics.IncrementFailures()

	if state.FailureCount >= s.maxFailures && !state.IsLockedAt(now) {
		until := now.Add(s.duration)
		if err := s.store.Lock(ctx, identity, until); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to apply lockout")
		}
		state.LockedUntil = &until
		s.metrics.IncrementLockouts()

		s.logger.WarnContext(ctx, "identity locked out",
			"identity", identity,
			"failure_count", state.FailureCount,
			"locked_until", until,
		)
		s.record(ctx, audit.Event{
			Type:     audit.EventLockoutTriggered,
			Identity: identity,
			Outcome:  audit.OutcomeBlocked,
			Detail: map[string]any{
				"failure_count": state.FailureCount,
				"locked_until":  until,
			},
		})
	}

	return state, nil
}

// RecordSuccess resets the failure count to zero regardless of its prior
// value.
func (s *Service) RecordSuccess(ctx context.Context, identity string) error {
	if err := s.store.Clear(ctx, identity); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to reset lockout state")
	}
	return nil
}

// Clear removes lockout state on behalf of an administrator and audits the
// action.
func (s *Service) Clear(ctx context.Context, identity string) error {
	if err := s.store.Clear(ctx, identity); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to clear lockout state")
	}
	s.record(ctx, audit.Event{
		Type:     audit.EventLockoutCleared,
		Identity: identity,
		Outcome:  audit.OutcomeSuccess,
	})
	return nil
}

func (s *Service) record(ctx context.Context, event audit.Event) {
	if s.recorder != nil {
		s.recorder.Record(ctx, event)
	}
}

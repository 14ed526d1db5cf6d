package audit

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"faceguard/internal/audit/metrics"
	"faceguard/pkg/requestcontext"
)

// Publisher fans an event out to an external sink (e.g. Kafka) in addition
// to the store. Publish failures are logged, never propagated.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Recorder is the write side of the audit log. Record never fails or blocks
// the calling operation: events are enqueued onto a buffered channel and
// persisted by Run in the background. When the buffer is saturated the event
// is dropped and the drop is surfaced through a metric and a warning, so an
// audit outage is visible without ever turning into an authentication
// failure.
type Recorder struct {
	store     Store
	publisher Publisher
	logger    *slog.Logger
	metrics   *metrics.Metrics
	inbox     chan Event
}

type RecorderOption func(*Recorder)

func WithPublisher(p Publisher) RecorderOption {
	return func(r *Recorder) { r.publisher = p }
}

func WithMetrics(m *metrics.Metrics) RecorderOption {
	return func(r *Recorder) { r.metrics = m }
}

func WithBufferSize(n int) RecorderOption {
	return func(r *Recorder) { r.inbox = make(chan Event, n) }
}

func NewRecorder(store Store, logger *slog.Logger, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		store:  store,
		logger: logger,
		inbox:  make(chan Event, 256),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record enqueues an event. Missing ID and timestamp are filled in from the
// request context. Safe to call from any goroutine; never blocks.
func (r *Recorder) Record(ctx context.Context, event Event) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}

	select {
	case r.inbox <- event:
		r.metrics.IncrementRecorded(string(event.Type))
	default:
		r.metrics.IncrementDropped()
		r.logger.Warn("audit pipeline saturated, event dropped",
			"type", event.Type,
			"identity", event.Identity,
		)
	}
}

// Run drains the inbox until ctx is cancelled, then flushes whatever is
// still buffered before returning.
func (r *Recorder) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			r.flush()
			return
		case event := <-r.inbox:
			r.persist(event)
		}
	}
}

func (r *Recorder) flush() {
	for {
		select {
		case event := <-r.inbox:
			r.persist(event)
		default:
			return
		}
	}
}

func (r *Recorder) persist(event Event) {
	// Detached context: persistence must not inherit request cancellation.
	ctx := context.Background()

	if err := r.store.Append(ctx, event); err != nil {
		// One retry covers transient store hiccups; after that the event is
		// lost and the loss is counted.
		if err = r.store.Append(ctx, event); err != nil {
			r.metrics.IncrementAppendFailures()
			r.logger.Error("audit append failed, event lost",
				"error", err,
				"type", event.Type,
				"identity", event.Identity,
			)
		}
	}

	if r.publisher != nil {
		if err := r.publisher.Publish(ctx, event); err != nil {
			r.logger.Warn("audit publish failed",
				"error", err,
				"type", event.Type,
			)
		}
	}
}

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics surfaces audit pipeline health. A logging outage never fails an
// authentication decision, so the dropped counter is the signal that the
// trail is incomplete.
type Metrics struct {
	EventsRecorded *prometheus.CounterVec
	EventsDropped  prometheus.Counter
	AppendFailures prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		EventsRecorded: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "faceguard_audit_events_recorded_total",
			Help: "Total audit events accepted for persistence, by type",
		}, []string{"type"}),
		EventsDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "faceguard_audit_events_dropped_total",
			Help: "Total audit events dropped because the pipeline was saturated",
		}),
		AppendFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "faceguard_audit_append_failures_total",
			Help: "Total audit store append failures (events lost after retry)",
		}),
	}
}

func (m *Metrics) IncrementRecorded(eventType string) {
	if m != nil {
		m.EventsRecorded.WithLabelValues(eventType).Inc()
	}
}

func (m *Metrics) IncrementDropped() {
	if m != nil {
		m.EventsDropped.Inc()
	}
}

func (m *Metrics) IncrementAppendFailures() {
	if m != nil {
		m.AppendFailures.Inc()
	}
}

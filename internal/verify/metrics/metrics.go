package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the verification decision engine.
type Metrics struct {
	Decisions *prometheus.CounterVec
	Duration  prometheus.Histogram
}

func New() *Metrics {
	return &Metrics{
		Decisions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "faceguard_verify_decisions_total",
			Help: "Total verification decisions by outcome and denial reason",
		}, []string{"outcome", "reason"}),
		Duration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "faceguard_verify_duration_seconds",
			Help:    "End-to-end verification pipeline latency",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) ObserveDecision(outcome, reason string) {
	if m != nil {
		m.Decisions.WithLabelValues(outcome, reason).Inc()
	}
}

func (m *Metrics) ObserveDuration(d time.Duration) {
	if m != nil {
		m.Duration.Observe(d.Seconds())
	}
}

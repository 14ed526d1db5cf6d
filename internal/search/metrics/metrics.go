package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for 1:N identification scans.
type Metrics struct {
	Duration prometheus.Histogram
	Scanned  prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		Duration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "faceguard_search_duration_seconds",
			Help:    "End-to-end 1:N search latency",
			Buckets: prometheus.DefBuckets,
		}),
		Scanned: promauto.NewCounter(prometheus.CounterOpts{
			Name: "faceguard_search_scanned_total",
			Help: "Total enrollments compared across all scans",
		}),
	}
}

func (m *Metrics) ObserveScan(d time.Duration, scanned int) {
	if m != nil {
		m.Duration.Observe(d.Seconds())
		m.Scanned.Add(float64(scanned))
	}
}

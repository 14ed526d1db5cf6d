package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the lockout policy.
type Metrics struct {
	FailuresRecorded prometheus.Counter
	LockoutsTotal    prometheus.Counter
	BlockedAttempts  prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		FailuresRecorded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "faceguard_lockout_failures_recorded_total",
			Help: "Total verification failures recorded against identities",
		}),
		LockoutsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "faceguard_lockout_locks_total",
			Help: "Total hard locks applied after reaching the failure limit",
		}),
		BlockedAttempts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "faceguard_lockout_blocked_attempts_total",
			Help: "Total verification attempts rejected while locked",
		}),
	}
}

func (m *Metrics) IncrementFailures() {
	if m != nil {
		m.FailuresRecorded.Inc()
	}
}

func (m *Metrics) IncrementLockouts() {
	if m != nil {
		m.LockoutsTotal.Inc()
	}
}

func (m *Metrics) IncrementBlocked() {
	if m != nil {
		m.BlockedAttempts.Inc()
	}
}

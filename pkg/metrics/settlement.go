package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SettlementMetrics records settlement attempt outcomes.
type SettlementMetrics struct {
	duration *prometheus.HistogramVec
	settled  *prometheus.CounterVec
	failed   *prometheus.CounterVec
	replayed prometheus.Counter
	unassign prometheus.Counter
}

// NewSettlementMetrics registers the settlement metrics on the provided registerer.
func NewSettlementMetrics(reg prometheus.Registerer) *SettlementMetrics {
	if reg == nil {
		return &SettlementMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "settlement_duration_seconds",
		Help:    "Duration of order settlement transactions in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"mode"})
	settled := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "settlement_success",
		Help: "Successfully settled orders.",
	}, []string{"mode"})
	failed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "settlement_failure",
		Help: "Settlement attempts aborted by an error.",
	}, []string{"mode", "reason"})
	replayed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "settlement_replayed",
		Help: "Settlement calls short-circuited by the idempotency guard.",
	})
	unassign := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "settlement_unassigned",
		Help: "Orders settled without a delivery agent in range.",
	})
	reg.MustRegister(duration, settled, failed, replayed, unassign)
	return &SettlementMetrics{
		duration: duration,
		settled:  settled,
		failed:   failed,
		replayed: replayed,
		unassign: unassign,
	}
}

// ObserveDuration records how long a settlement transaction took.
func (s *SettlementMetrics) ObserveDuration(mode string, duration time.Duration) {
	if s == nil || s.duration == nil {
		return
	}
	s.duration.WithLabelValues(normalizeLabel(mode)).Observe(duration.Seconds())
}

// IncSettled increments the success counter for the mode.
func (s *SettlementMetrics) IncSettled(mode string) {
	if s == nil || s.settled == nil {
		return
	}
	s.settled.WithLabelValues(normalizeLabel(mode)).Inc()
}

// IncFailed increments the failure counter for the mode and reason.
func (s *SettlementMetrics) IncFailed(mode, reason string) {
	if s == nil || s.failed == nil {
		return
	}
	s.failed.WithLabelValues(normalizeLabel(mode), normalizeLabel(reason)).Inc()
}

// IncReplayed counts an idempotent replay.
func (s *SettlementMetrics) IncReplayed() {
	if s == nil || s.replayed == nil {
		return
	}
	s.replayed.Inc()
}

// IncUnassigned counts an order settled without a delivery job.
func (s *SettlementMetrics) IncUnassigned() {
	if s == nil || s.unassign == nil {
		return
	}
	s.unassign.Inc()
}

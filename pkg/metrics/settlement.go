package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SettlementMetrics records commission payout outcomes.
type SettlementMetrics struct {
	duration  *prometheus.HistogramVec
	transfers *prometheus.CounterVec
	failures  *prometheus.CounterVec
}

// NewSettlementMetrics registers the settlement metrics on the provided registerer.
func NewSettlementMetrics(reg prometheus.Registerer) *SettlementMetrics {
	if reg == nil {
		return &SettlementMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "settlement_duration_seconds",
		Help:    "Duration of commission settlement attempts in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"flow"})
	transfers := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "settlement_transfers_total",
		Help: "Chain transfers submitted during settlement.",
	}, []string{"flow", "outcome"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "settlement_reconciliation_failures_total",
		Help: "Reconciliation writes that exhausted their retries.",
	}, []string{"flow"})
	reg.MustRegister(duration, transfers, failures)
	return &SettlementMetrics{
		duration:  duration,
		transfers: transfers,
		failures:  failures,
	}
}

// ObserveDuration records how long a settlement attempt took.
func (s *SettlementMetrics) ObserveDuration(flow string, duration time.Duration) {
	if s == nil || s.duration == nil {
		return
	}
	s.duration.WithLabelValues(normalizeLabel(flow)).Observe(duration.Seconds())
}

// IncTransfer counts one submitted transfer with its outcome label.
func (s *SettlementMetrics) IncTransfer(flow, outcome string) {
	if s == nil || s.transfers == nil {
		return
	}
	s.transfers.WithLabelValues(normalizeLabel(flow), normalizeLabel(outcome)).Inc()
}

// IncReconciliationFailure counts a reconciliation write that gave up.
func (s *SettlementMetrics) IncReconciliationFailure(flow string) {
	if s == nil || s.failures == nil {
		return
	}
	s.failures.WithLabelValues(normalizeLabel(flow)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}

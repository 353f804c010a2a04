package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OutboxMetrics records outbox dispatcher activity.
type OutboxMetrics struct {
	published *prometheus.CounterVec
	failed    *prometheus.CounterVec
	deadEnded *prometheus.CounterVec
	latency   *prometheus.HistogramVec
}

// NewOutboxMetrics registers the dispatcher metrics on the provided registerer.
func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	published := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_published_total",
		Help: "Outbox events published to Pub/Sub.",
	}, []string{"event_type"})
	failed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_publish_failures_total",
		Help: "Outbox publish attempts that failed and will retry.",
	}, []string{"event_type"})
	deadEnded := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_dlq_total",
		Help: "Outbox events moved to the dead letter queue.",
	}, []string{"event_type", "reason"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "outbox_publish_latency_seconds",
		Help:    "Time from outbox row creation to publish.",
		Buckets: prometheus.DefBuckets,
	}, []string{"event_type"})
	reg.MustRegister(published, failed, deadEnded, latency)
	return &OutboxMetrics{
		published: published,
		failed:    failed,
		deadEnded: deadEnded,
		latency:   latency,
	}
}

// IncPublished counts a successfully published event.
func (o *OutboxMetrics) IncPublished(eventType string) {
	if o == nil || o.published == nil {
		return
	}
	o.published.WithLabelValues(normalizeLabel(eventType)).Inc()
}

// IncFailed counts a retryable publish failure.
func (o *OutboxMetrics) IncFailed(eventType string) {
	if o == nil || o.failed == nil {
		return
	}
	o.failed.WithLabelValues(normalizeLabel(eventType)).Inc()
}

// IncDLQ counts an event parked in the dead letter queue.
func (o *OutboxMetrics) IncDLQ(eventType, reason string) {
	if o == nil || o.deadEnded == nil {
		return
	}
	o.deadEnded.WithLabelValues(normalizeLabel(eventType), normalizeLabel(reason)).Inc()
}

// ObserveLatency records the row age at publish time.
func (o *OutboxMetrics) ObserveLatency(eventType string, age time.Duration) {
	if o == nil || o.latency == nil {
		return
	}
	o.latency.WithLabelValues(normalizeLabel(eventType)).Observe(age.Seconds())
}

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OutboxMetrics tracks the publisher loop. Every series is keyed by event type.
type OutboxMetrics struct {
	published    *prometheus.CounterVec
	failed       *prometheus.CounterVec
	deadLettered *prometheus.CounterVec
	latency      *prometheus.HistogramVec
}

func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	m := &OutboxMetrics{
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "outbox_published_total",
			Help: "Phase and disbursement events acknowledged by Pub/Sub.",
		}, []string{"event_type"}),
		failed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "outbox_failed_total",
			Help: "Publish attempts that Pub/Sub rejected or timed out.",
		}, []string{"event_type"}),
		deadLettered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "outbox_dead_lettered_total",
			Help: "Events parked in the dead letter table.",
		}, []string{"event_type", "reason"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "outbox_publish_seconds",
			Help:    "Time from publish call to server acknowledgement.",
			Buckets: prometheus.DefBuckets,
		}, []string{"event_type"}),
	}
	reg.MustRegister(m.published, m.failed, m.deadLettered, m.latency)
	return m
}

func (m *OutboxMetrics) IncPublished(eventType string) {
	if m != nil && m.published != nil {
		m.published.WithLabelValues(normalizeLabel(eventType)).Inc()
	}
}

func (m *OutboxMetrics) IncFailed(eventType string) {
	if m != nil && m.failed != nil {
		m.failed.WithLabelValues(normalizeLabel(eventType)).Inc()
	}
}

func (m *OutboxMetrics) IncDeadLettered(eventType, reason string) {
	if m != nil && m.deadLettered != nil {
		m.deadLettered.WithLabelValues(normalizeLabel(eventType), normalizeLabel(reason)).Inc()
	}
}

func (m *OutboxMetrics) ObserveLatency(eventType string, elapsed time.Duration) {
	if m != nil && m.latency != nil {
		m.latency.WithLabelValues(normalizeLabel(eventType)).Observe(elapsed.Seconds())
	}
}

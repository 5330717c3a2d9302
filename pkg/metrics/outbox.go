package metrics

import "github.com/prometheus/client_golang/prometheus"

// OutboxMetrics tracks the publisher drain loop.
type OutboxMetrics struct {
	published prometheus.Counter
	failed    prometheus.Counter
	pending   prometheus.Gauge
}

// NewOutboxMetrics registers outbox publisher metrics on the provided registerer.
func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	published := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "outbox_events_published_total",
		Help: "Outbox events successfully broadcast.",
	})
	failed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "outbox_events_failed_total",
		Help: "Outbox publish attempts that failed.",
	})
	pending := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "outbox_events_pending",
		Help: "Unpublished outbox events seen on the last drain.",
	})
	reg.MustRegister(published, failed, pending)
	return &OutboxMetrics{published: published, failed: failed, pending: pending}
}

// IncPublished increments the published counter.
func (m *OutboxMetrics) IncPublished() {
	if m == nil || m.published == nil {
		return
	}
	m.published.Inc()
}

// IncFailed increments the failure counter.
func (m *OutboxMetrics) IncFailed() {
	if m == nil || m.failed == nil {
		return
	}
	m.failed.Inc()
}

// SetPending records the backlog size observed on a drain pass.
func (m *OutboxMetrics) SetPending(n int) {
	if m == nil || m.pending == nil {
		return
	}
	m.pending.Set(float64(n))
}

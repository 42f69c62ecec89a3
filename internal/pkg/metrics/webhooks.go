// Package metrics exposes Prometheus instruments for webhook delivery.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// WebhookMetrics is safe to use as a nil pointer; every method is then a no-op.
type WebhookMetrics struct {
	deliveries     *prometheus.CounterVec
	duration       *prometheus.HistogramVec
	rounds         *prometheus.CounterVec
	recorderErrors *prometheus.CounterVec
}

func NewWebhookMetrics(reg prometheus.Registerer) *WebhookMetrics {
	if reg == nil {
		return &WebhookMetrics{}
	}
	deliveries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_deliveries_total",
		Help: "Webhook delivery attempts by event and result.",
	}, []string{"event", "result"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "webhook_delivery_duration_seconds",
		Help:    "Wall-clock duration of webhook delivery attempts.",
		Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
	}, []string{"event"})
	rounds := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_dispatch_rounds_total",
		Help: "Dispatch rounds that matched at least one webhook.",
	}, []string{"event"})
	recorderErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_recorder_errors_total",
		Help: "Failed writes while recording delivery outcomes.",
	}, []string{"op"})
	reg.MustRegister(deliveries, duration, rounds, recorderErrors)
	return &WebhookMetrics{
		deliveries:     deliveries,
		duration:       duration,
		rounds:         rounds,
		recorderErrors: recorderErrors,
	}
}

func (m *WebhookMetrics) ObserveDelivery(event string, success bool, d time.Duration) {
	if m == nil || m.deliveries == nil {
		return
	}
	result := "failure"
	if success {
		result = "success"
	}
	m.deliveries.WithLabelValues(normalizeLabel(event), result).Inc()
	m.duration.WithLabelValues(normalizeLabel(event)).Observe(d.Seconds())
}

func (m *WebhookMetrics) IncRound(event string) {
	if m == nil || m.rounds == nil {
		return
	}
	m.rounds.WithLabelValues(normalizeLabel(event)).Inc()
}

func (m *WebhookMetrics) IncRecorderError(op string) {
	if m == nil || m.recorderErrors == nil {
		return
	}
	m.recorderErrors.WithLabelValues(normalizeLabel(op)).Inc()
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestWebhookMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWebhookMetrics(reg)

	m.ObserveDelivery("TASK_CREATED", true, 120*time.Millisecond)
	m.ObserveDelivery("TASK_CREATED", false, time.Second)
	m.ObserveDelivery("TASK_CREATED", true, 10*time.Millisecond)
	m.IncRound("TASK_CREATED")
	m.IncRecorderError("")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.deliveries.WithLabelValues("TASK_CREATED", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.deliveries.WithLabelValues("TASK_CREATED", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rounds.WithLabelValues("TASK_CREATED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.recorderErrors.WithLabelValues("unknown")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.duration))
}

func TestWebhookMetricsNilSafe(t *testing.T) {
	var m *WebhookMetrics
	assert.NotPanics(t, func() {
		m.ObserveDelivery("TASK_CREATED", true, time.Second)
		m.IncRound("TASK_CREATED")
		m.IncRecorderError("log")
	})

	empty := NewWebhookMetrics(nil)
	assert.NotPanics(t, func() { empty.IncRound("TASK_CREATED") })
}

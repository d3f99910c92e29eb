package telemetry

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"github.com/odvcencio/taskmate/pkg/pending"
)

func TestMetrics_Observe(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.ObserveTurn("executed")
	m.ObserveTurn("executed")
	m.ObserveVerdict("confirm", "strong_affirmative")
	m.ObserveAction("create_task", true)
	m.ObserveAction("delete_task", false)
	m.SetPending(3)
	m.SetCircuitState(1)
	m.ObservePendingEvent("pending.set")
	m.ObserveModel(120*time.Millisecond, nil)
	m.ObserveHTTP("/api/chat", "POST", 429, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Turns.WithLabelValues("executed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ConfirmVerdicts.WithLabelValues("confirm", "strong_affirmative")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ActionsExecuted.WithLabelValues("delete_task", "failure")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.PendingBatches))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CircuitState))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("/api/chat", "POST", "4xx")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.ModelLatency))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveTurn("x")
		m.ObserveVerdict("none", "no_match")
		m.ObserveAction("create_task", true)
		m.ObserveModel(time.Second, errors.New("boom"))
		m.SetPending(1)
		m.SetCircuitState(2)
		m.ObservePendingEvent("pending.set")
		m.ObserveHTTP("/", "GET", 200, 0)
	})
}

func TestMetrics_DoubleRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewMetrics(reg)
	assert.Panics(t, func() { NewMetrics(reg) })
}

func TestStatusClass(t *testing.T) {
	assert.Equal(t, "2xx", statusClass(204))
	assert.Equal(t, "3xx", statusClass(302))
	assert.Equal(t, "4xx", statusClass(404))
	assert.Equal(t, "5xx", statusClass(502))
}

func TestTracerProvider_Disabled(t *testing.T) {
	tp, err := NewTracerProvider(TracingConfig{})
	require.NoError(t, err)
	assert.NoError(t, tp.Shutdown(context.Background()))

	var nilTP *TracerProvider
	assert.NoError(t, nilTP.Shutdown(context.Background()))
}

func TestTracerProvider_ExportsSpans(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	var buf bytes.Buffer
	tp, err := NewTracerProvider(TracingConfig{Enabled: true, ServiceName: "taskmate-test", Output: &buf})
	require.NoError(t, err)

	ctx, span := StartSpan(context.Background(), "chat.turn")
	SetAttributes(ctx, AttrUserID.String("u1"), AttrActionCount.Int(2))
	RecordError(ctx, errors.New("model down"))
	RecordError(ctx, nil)
	span.End()

	require.NoError(t, tp.Shutdown(context.Background()))
	out := buf.String()
	assert.True(t, strings.Contains(out, "chat.turn"), out)
	assert.Contains(t, out, "taskmate.user.id")
	assert.Contains(t, out, "model down")

}

func TestMetrics_PendingObserver(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	n := 0
	obs := m.PendingObserver(func() int { return n })

	n = 1
	obs.OnPendingEvent(pending.Event{Type: pending.EventSet, UserID: "u1", Count: 2})
	n = 0
	obs.OnPendingEvent(pending.Event{Type: pending.EventTaken, UserID: "u1", Count: 2})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.PendingEvents.WithLabelValues("pending.set")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PendingEvents.WithLabelValues("pending.taken")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.PendingBatches))
}

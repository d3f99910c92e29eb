package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/odvcencio/taskmate/pkg/pending"
)

const namespace = "taskmate"

// Metrics groups the collectors the chat pipeline updates. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	Turns           *prometheus.CounterVec
	ConfirmVerdicts *prometheus.CounterVec
	PendingBatches  prometheus.Gauge
	PendingEvents   *prometheus.CounterVec
	ActionsExecuted *prometheus.CounterVec
	ModelLatency    *prometheus.HistogramVec
	CircuitState    prometheus.Gauge
	HTTPRequests    *prometheus.CounterVec
	HTTPLatency     *prometheus.HistogramVec
}

// NewMetrics registers every collector on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Turns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "turns_total",
			Help:      "Chat turns handled, by outcome",
		}, []string{"outcome"}),
		ConfirmVerdicts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "confirm",
			Name:      "verdicts_total",
			Help:      "Confirmation detector verdicts, by verdict and rule",
		}, []string{"verdict", "pattern"}),
		PendingBatches: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pending",
			Name:      "batches",
			Help:      "Pending action batches currently held",
		}),
		PendingEvents: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pending",
			Name:      "events_total",
			Help:      "Pending store transitions, by type",
		}, []string{"type"}),
		ActionsExecuted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "actions",
			Name:      "executed_total",
			Help:      "Executed actions, by kind and result",
		}, []string{"kind", "result"}),
		ModelLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "model",
			Name:      "latency_seconds",
			Help:      "Model call latency in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}, []string{"result"}),
		CircuitState: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "model",
			Name:      "circuit_state",
			Help:      "Model circuit breaker state (0 closed, 1 open, 2 half-open)",
		}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests, by route and status",
		}, []string{"route", "method", "status"}),
		HTTPLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
		}, []string{"route", "method"}),
	}
}

func (m *Metrics) ObserveTurn(outcome string) {
	if m == nil {
		return
	}
	m.Turns.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveVerdict(verdict, pattern string) {
	if m == nil {
		return
	}
	m.ConfirmVerdicts.WithLabelValues(verdict, pattern).Inc()
}

func (m *Metrics) ObserveAction(kind string, ok bool) {
	if m == nil {
		return
	}
	result := "success"
	if !ok {
		result = "failure"
	}
	m.ActionsExecuted.WithLabelValues(kind, result).Inc()
}

func (m *Metrics) ObserveModel(elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	m.ModelLatency.WithLabelValues(result).Observe(elapsed.Seconds())
}

func (m *Metrics) SetPending(n int) {
	if m == nil {
		return
	}
	m.PendingBatches.Set(float64(n))
}

func (m *Metrics) ObservePendingEvent(eventType string) {
	if m == nil {
		return
	}
	m.PendingEvents.WithLabelValues(eventType).Inc()
}

// PendingObserver counts store transitions and keeps the batch gauge in
// step using count, usually the store's entry total.
func (m *Metrics) PendingObserver(count func() int) pending.Observer {
	return pending.ObserverFunc(func(ev pending.Event) {
		m.ObservePendingEvent(string(ev.Type))
		if count != nil {
			m.SetPending(count())
		}
	})
}

func (m *Metrics) SetCircuitState(state int) {
	if m == nil {
		return
	}
	m.CircuitState.Set(float64(state))
}

func (m *Metrics) ObserveHTTP(route, method string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(route, method, statusClass(status)).Inc()
	m.HTTPLatency.WithLabelValues(route, method).Observe(elapsed.Seconds())
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}

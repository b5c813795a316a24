package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kirillkom/cottonlog/internal/core/domain"
)

// WorkflowMetrics records bale transitions and outbound resilience events.
// It satisfies ports.WorkflowMetrics and resilience.Observer.
type WorkflowMetrics struct {
	registry *prometheus.Registry

	completedTotal  *prometheus.CounterVec
	errorsTotal     *prometheus.CounterVec
	persistDuration *prometheus.HistogramVec
	retriesTotal    *prometheus.CounterVec
	breakerState    *prometheus.GaugeVec
}

// NewWorkflowMetrics registers into registry; nil creates a private one.
func NewWorkflowMetrics(registry *prometheus.Registry) *WorkflowMetrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	completedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cottonlog",
			Subsystem: "workflow",
			Name:      "bales_completed_total",
			Help:      "Total committed bale completions by session mode.",
		},
		[]string{"mode"},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cottonlog",
			Subsystem: "workflow",
			Name:      "errors_total",
			Help:      "Total rejected workflow transitions by step.",
		},
		[]string{"step"},
	)
	persistDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "cottonlog",
			Subsystem: "workflow",
			Name:      "persist_duration_seconds",
			Help:      "Session snapshot persistence duration by result.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"result"},
	)
	retriesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cottonlog",
			Subsystem: "outbound",
			Name:      "retries_total",
			Help:      "Total retried outbound calls by operation.",
		},
		[]string{"operation"},
	)
	breakerState := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "cottonlog",
			Subsystem: "outbound",
			Name:      "circuit_open",
			Help:      "1 while the operation's circuit breaker is not closed.",
		},
		[]string{"operation"},
	)

	registry.MustRegister(completedTotal, errorsTotal, persistDuration, retriesTotal, breakerState)
	return &WorkflowMetrics{
		registry:        registry,
		completedTotal:  completedTotal,
		errorsTotal:     errorsTotal,
		persistDuration: persistDuration,
		retriesTotal:    retriesTotal,
		breakerState:    breakerState,
	}
}

func (m *WorkflowMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkflowMetrics) ObserveCompletion(mode domain.SessionMode) {
	m.completedTotal.WithLabelValues(string(mode)).Inc()
}

func (m *WorkflowMetrics) ObserveFailure(step domain.Step) {
	m.errorsTotal.WithLabelValues(string(step)).Inc()
}

func (m *WorkflowMetrics) ObservePersist(duration time.Duration, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	m.persistDuration.WithLabelValues(result).Observe(duration.Seconds())
}

func (m *WorkflowMetrics) ObserveRetry(operation string) {
	m.retriesTotal.WithLabelValues(operation).Inc()
}

func (m *WorkflowMetrics) ObserveBreakerState(operation string, state string) {
	value := 0.0
	if state != "closed" {
		value = 1
	}
	m.breakerState.WithLabelValues(operation).Set(value)
}

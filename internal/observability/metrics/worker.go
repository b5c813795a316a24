package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// WorkerMetrics covers the export worker driven by bale completion events.
type WorkerMetrics struct {
	registry *prometheus.Registry

	exportTotal    *prometheus.CounterVec
	exportDuration *prometheus.HistogramVec
	exportInFlight prometheus.Gauge
	eventLag       *prometheus.HistogramVec
	ledgerTotal    *prometheus.CounterVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	exportTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cottonlog",
			Subsystem: "worker",
			Name:      "export_total",
			Help:      "Total regenerated session exports by status.",
		},
		[]string{"service", "status"},
	)
	exportDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "cottonlog",
			Subsystem: "worker",
			Name:      "export_duration_seconds",
			Help:      "Session export duration in seconds by status.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "status"},
	)
	exportInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "cottonlog",
			Subsystem: "worker",
			Name:      "export_in_flight",
			Help:      "Number of in-flight session exports.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	eventLag := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "cottonlog",
			Subsystem: "worker",
			Name:      "event_lag_seconds",
			Help:      "Delay between bale completion and event handling.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"service"},
	)
	ledgerTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cottonlog",
			Subsystem: "worker",
			Name:      "ledger_records_total",
			Help:      "Completion ledger writes by result (recorded, duplicate, error).",
		},
		[]string{"service", "result"},
	)

	registry.MustRegister(exportTotal, exportDuration, exportInFlight, eventLag, ledgerTotal)

	return &WorkerMetrics{
		registry:       registry,
		exportTotal:    exportTotal,
		exportDuration: exportDuration,
		exportInFlight: exportInFlight,
		eventLag:       eventLag,
		ledgerTotal:    ledgerTotal,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartExport() {
	m.exportInFlight.Inc()
}

func (m *WorkerMetrics) FinishExport(service string, duration time.Duration, err error) {
	m.exportInFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	}

	m.exportTotal.WithLabelValues(service, status).Inc()
	m.exportDuration.WithLabelValues(service, status).Observe(duration.Seconds())
}

func (m *WorkerMetrics) ObserveEventLag(service string, lag time.Duration) {
	if lag < 0 {
		return
	}
	m.eventLag.WithLabelValues(service).Observe(lag.Seconds())
}

func (m *WorkerMetrics) RecordLedger(service, result string) {
	m.ledgerTotal.WithLabelValues(service, result).Inc()
}

// ProjectionObserver binds WorkerMetrics to one service label for the
// completion projector.
type ProjectionObserver struct {
	metrics *WorkerMetrics
	service string
}

func (m *WorkerMetrics) Projection(service string) *ProjectionObserver {
	return &ProjectionObserver{metrics: m, service: service}
}

func (o *ProjectionObserver) ObserveEventLag(lag time.Duration) {
	o.metrics.ObserveEventLag(o.service, lag)
}

func (o *ProjectionObserver) ObserveLedger(result string) {
	o.metrics.RecordLedger(o.service, result)
}

func (o *ProjectionObserver) StartExport() {
	o.metrics.StartExport()
}

func (o *ProjectionObserver) FinishExport(duration time.Duration, err error) {
	o.metrics.FinishExport(o.service, duration, err)
}

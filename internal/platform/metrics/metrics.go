package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the registry's Prometheus collectors.
type Metrics struct {
	registry *prometheus.Registry

	Operations       *prometheus.CounterVec
	ValidationIssues *prometheus.CounterVec
	Patients         prometheus.Gauge
	RequestDuration  *prometheus.HistogramVec
}

// New creates the collectors on a private registry so tests and multiple
// servers in one process do not collide on the global one.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Operations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "patient_registry_operations_total",
			Help: "Registry operations by operation and outcome",
		}, []string{"op", "outcome"}),
		ValidationIssues: f.NewCounterVec(prometheus.CounterOpts{
			Name: "patient_registry_validation_issues_total",
			Help: "Validation issues by field, reason code and status",
		}, []string{"field", "code", "status"}),
		Patients: f.NewGauge(prometheus.GaugeOpts{
			Name: "patient_registry_records",
			Help: "Number of live patient records",
		}),
		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "patient_registry_http_request_duration_seconds",
			Help:    "HTTP request latency by method, route and status",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
}

// ObserveOperation counts one registry operation.
func (m *Metrics) ObserveOperation(op, outcome string) {
	m.Operations.WithLabelValues(op, outcome).Inc()
}

func (m *Metrics) ObserveIssue(field, code, status string) {
	m.ValidationIssues.WithLabelValues(field, code, status).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

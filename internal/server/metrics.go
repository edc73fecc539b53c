package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors of one server instance.
//
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	operations        *prometheus.CounterVec
	compensations     *prometheus.CounterVec
	consistencyIssues *prometheus.CounterVec
	requestDuration   *prometheus.HistogramVec
}

// NewMetrics builds a registry with the healthrec collectors plus the Go
// runtime and process collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "healthrec_operations_total",
			Help: "Record service operations by outcome.",
		}, []string{"operation", "result"}),
		compensations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "healthrec_compensations_total",
			Help: "Blob deletions attempted after a failed record insert.",
		}, []string{"result"}),
		consistencyIssues: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "healthrec_consistency_issues_total",
			Help: "Record/blob inconsistencies detected, by type.",
		}, []string{"type"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "healthrec_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.operations,
		m.compensations,
		m.consistencyIssues,
		m.requestDuration,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests and embedding.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) observeOperation(operation string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = string(ErrorKindOf(err))
	}
	m.operations.WithLabelValues(operation, result).Inc()
}

func (m *Metrics) observeCompensation(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "failed"
	}
	m.compensations.WithLabelValues(result).Inc()
}

func (m *Metrics) observeIssue(issueType string) {
	if m == nil {
		return
	}
	m.consistencyIssues.WithLabelValues(issueType).Inc()
}

func (m *Metrics) observeRequest(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.requestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())
}

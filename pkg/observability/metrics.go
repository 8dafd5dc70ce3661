package observability

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Fallback policies reported when a remote write fails
const (
	PolicyRetained   = "retained"
	PolicyRolledBack = "rolled_back"
)

// Recorder receives business metrics from the application services
type Recorder interface {
	// RecordOperation records one ledger or store operation and its outcome
	RecordOperation(ctx context.Context, operation string, duration time.Duration, err error)

	// RecordFallback records that a remote write failed and which local policy applied
	RecordFallback(ctx context.Context, operation, policy string)
}

// NopRecorder discards everything
type NopRecorder struct{}

func (NopRecorder) RecordOperation(context.Context, string, time.Duration, error) {}
func (NopRecorder) RecordFallback(context.Context, string, string)                {}

// MultiRecorder fans out to several recorders
type MultiRecorder []Recorder

func (m MultiRecorder) RecordOperation(ctx context.Context, operation string, duration time.Duration, err error) {
	for _, r := range m {
		r.RecordOperation(ctx, operation, duration, err)
	}
}

func (m MultiRecorder) RecordFallback(ctx context.Context, operation, policy string) {
	for _, r := range m {
		r.RecordFallback(ctx, operation, policy)
	}
}

// Collector holds all Prometheus metrics for the application
type Collector struct {
	// Registry for this collector instance
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Business metrics
	Operations        *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
	Fallbacks         *prometheus.CounterVec
}

var _ Recorder = (*Collector)(nil)

// NewCollector creates a collector with its own registry, so several
// collectors can coexist in tests
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		Operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operations_total",
				Help:      "Ledger and store operations by outcome",
			},
			[]string{"operation", "status"},
		),
		OperationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "operation_duration_seconds",
				Help:      "Ledger and store operation duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		Fallbacks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "persistence_fallbacks_total",
				Help:      "Remote write failures by operation and local policy",
			},
			[]string{"operation", "policy"},
		),
	}

	registry.MustRegister(
		c.HTTPRequests,
		c.HTTPDuration,
		c.Operations,
		c.OperationDuration,
		c.Fallbacks,
	)

	return c
}

// RecordOperation implements Recorder
func (c *Collector) RecordOperation(ctx context.Context, operation string, duration time.Duration, err error) {
	c.Operations.WithLabelValues(operation, statusLabel(err)).Inc()
	c.OperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordFallback implements Recorder
func (c *Collector) RecordFallback(ctx context.Context, operation, policy string) {
	c.Fallbacks.WithLabelValues(operation, policy).Inc()
}

// RecordHTTP records one served request
func (c *Collector) RecordHTTP(method, route string, status int, duration time.Duration) {
	c.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.HTTPDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// Registry exposes the underlying registry
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func statusLabel(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}

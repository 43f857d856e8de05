// Package metrics holds the prometheus instrumentation of the registry
// manager and install coordinator.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "umreg"

// Operation outcomes
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Recorder records registry and install metrics. A nil *Recorder is valid
// and records nothing.
type Recorder struct {
	registry *prometheus.Registry

	operations    *prometheus.CounterVec   // By operation and outcome
	duration      *prometheus.HistogramVec // By operation
	conflicts     *prometheus.CounterVec   // By kind and reason
	fetchFailures prometheus.Counter
	entries       *prometheus.GaugeVec // By view and kind
}

// New creates a Recorder registered on its own registry
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),

		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Install, uninstall and discovery operations",
		}, []string{"operation", "outcome"}),

		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Duration of install, uninstall and discovery operations",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		}, []string{"operation"}),

		conflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conflicts_total",
			Help:      "Install candidates that conflicted with an existing installation",
		}, []string{"kind", "reason"}),

		fetchFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "remote_fetch_failures_total",
			Help:      "Remote registries that could not be loaded",
		}),

		entries: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "registry_entries",
			Help:      "Entries visible in the local and current views",
		}, []string{"view", "kind"}),
	}

	r.registry.MustRegister(r.operations, r.duration, r.conflicts, r.fetchFailures, r.entries)
	return r
}

// Operation counts one finished operation
func (r *Recorder) Operation(operation string, start time.Time, err error) {
	if r == nil {
		return
	}
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeError
	}
	r.operations.WithLabelValues(operation, outcome).Inc()
	r.duration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// Conflict counts a conflicting candidate
func (r *Recorder) Conflict(kind, reason string) {
	if r == nil {
		return
	}
	r.conflicts.WithLabelValues(kind, reason).Inc()
}

// RemoteFetchFailed counts a remote registry that failed to load
func (r *Recorder) RemoteFetchFailed() {
	if r == nil {
		return
	}
	r.fetchFailures.Inc()
}

// Entries sets the number of entries of kind visible in view
func (r *Recorder) Entries(view, kind string, n int) {
	if r == nil {
		return
	}
	r.entries.WithLabelValues(view, kind).Set(float64(n))
}

// Gatherer exposes the underlying registry
func (r *Recorder) Gatherer() prometheus.Gatherer {
	return r.registry
}

// Handler serves the metrics in the prometheus text format
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

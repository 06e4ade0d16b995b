// Package metrics exposes Prometheus collectors for merges and HTTP traffic.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/serroba/slop-farmer/internal/slop"
)

const namespace = "slop_farmer"

// Recorder owns a registry and the collectors registered on it.
type Recorder struct {
	registry *prometheus.Registry

	merges         prometheus.Counter
	domainsCreated prometheus.Counter
	pathsCreated   prometheus.Counter
	reports        *prometheus.CounterVec

	httpRequests *prometheus.CounterVec
	httpLatency  *prometheus.HistogramVec
	httpInflight prometheus.Gauge
}

// NewRecorder creates a recorder with its own registry, including Go and process collectors.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		merges: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "merges_total",
			Help:      "Total number of committed merges.",
		}),
		domainsCreated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "domains_created_total",
			Help:      "Total number of domains first seen in a merge.",
		}),
		pathsCreated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "paths_created_total",
			Help:      "Total number of paths first seen in a merge.",
		}),
		reports: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reports_total",
			Help:      "Total number of report upserts by outcome.",
		}, []string{"outcome"}),
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"method", "path", "status"}),
		httpLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
		httpInflight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_inflight",
			Help:      "Current number of in-flight HTTP requests.",
		}),
	}
}

// ObserveMerge counts what a committed merge changed.
func (r *Recorder) ObserveMerge(result slop.MergeResult) {
	r.merges.Inc()
	r.domainsCreated.Add(float64(result.DomainsCreated))
	r.pathsCreated.Add(float64(result.PathsCreated))
	r.reports.WithLabelValues("created").Add(float64(result.ReportsCreated))
	r.reports.WithLabelValues("updated").Add(float64(result.ReportsUpdated))
}

// RequestStarted marks a request in flight and returns the function that completes it.
// path should be the route template to keep label cardinality bounded.
func (r *Recorder) RequestStarted(method, path string) func(status int) {
	start := time.Now()

	r.httpInflight.Inc()

	return func(status int) {
		r.httpInflight.Dec()
		r.httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
		r.httpLatency.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

var _ slop.MergeObserver = (*Recorder)(nil)

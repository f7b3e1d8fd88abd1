// Package metrics exposes Prometheus collectors for query fetches, cache
// evictions, mutations and the view surface.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "blog_em"

// Recorder holds the collectors and the registry they are registered on.
type Recorder struct {
	registry *prometheus.Registry

	fetchTotal      *prometheus.CounterVec
	fetchDuration   *prometheus.HistogramVec
	dedupTotal      *prometheus.CounterVec
	evictionsTotal  *prometheus.CounterVec
	mutationTotal   *prometheus.CounterVec
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// New registers all collectors on registry; a nil registry gets a fresh one so
// that several recorders can coexist in tests.
func New(registry *prometheus.Registry) *Recorder {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	r := &Recorder{
		registry: registry,
		fetchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "query_fetch_total",
			Help:      "Query fetches by resource and outcome",
		}, []string{"resource", "outcome"}),
		fetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_fetch_duration_seconds",
			Help:      "Query fetch latency including retries",
			Buckets:   prometheus.DefBuckets,
		}, []string{"resource"}),
		dedupTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "query_dedup_total",
			Help:      "Fetch requests that joined an in-flight fetch",
		}, []string{"resource"}),
		evictionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_evictions_total",
			Help:      "Idle cache entries removed by garbage collection",
		}, []string{"resource"}),
		mutationTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mutation_total",
			Help:      "Mutations by name and outcome",
		}, []string{"name", "outcome"}),
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "View requests by method, route and status",
		}, []string{"method", "route", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "View request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	registry.MustRegister(
		r.fetchTotal,
		r.fetchDuration,
		r.dedupTotal,
		r.evictionsTotal,
		r.mutationTotal,
		r.requestsTotal,
		r.requestDuration,
		collectors.NewGoCollector(),
	)
	return r
}

// ObserveFetch implements query.Metrics.
func (r *Recorder) ObserveFetch(resource, outcome string, elapsed time.Duration) {
	r.fetchTotal.WithLabelValues(label(resource), outcome).Inc()
	r.fetchDuration.WithLabelValues(label(resource)).Observe(elapsed.Seconds())
}

// IncDedup implements query.Metrics.
func (r *Recorder) IncDedup(resource string) {
	r.dedupTotal.WithLabelValues(label(resource)).Inc()
}

// ObserveMutation implements query.Metrics.
func (r *Recorder) ObserveMutation(name, outcome string) {
	r.mutationTotal.WithLabelValues(name, outcome).Inc()
}

// IncEviction counts an entry removed by the cache GC.
func (r *Recorder) IncEviction(resource string) {
	r.evictionsTotal.WithLabelValues(label(resource)).Inc()
}

// ObserveRequest records one view request.
func (r *Recorder) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	r.requestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	r.requestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

func label(resource string) string {
	if resource == "" {
		return "unknown"
	}
	return resource
}

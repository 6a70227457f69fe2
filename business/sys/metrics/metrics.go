// Package metrics constructs the metrics the application will track.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/ardanlabs/powchain/foundation/blockchain/network"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "powchain"

// Metrics holds the collectors for the service. A value is constructed once
// by the application and shared with the middleware and the debug mux.
type Metrics struct {
	registry *prometheus.Registry
	requests *prometheus.CounterVec
	errors   *prometheus.CounterVec
	panics   prometheus.Counter
	latency  *prometheus.HistogramVec
}

// New constructs the set of metrics and registers the chain collector for
// the nodes on the network.
func New(net *network.Network) *Metrics {
	m := Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Number of HTTP requests handled.",
		}, []string{"method", "status"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_errors_total",
			Help:      "Number of HTTP requests that returned an error.",
		}, []string{"method"}),
		panics: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_panics_total",
			Help:      "Number of panics recovered while handling requests.",
		}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Time taken to handle HTTP requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests,
		m.errors,
		m.panics,
		m.latency,
	)

	if net != nil {
		m.registry.MustRegister(newChainCollector(net))
	}

	return &m
}

// Handler returns the handler that exposes the metrics for scraping.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the registry holding every metric.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// AddRequest records a handled request.
func (m *Metrics) AddRequest(method string, status int, took time.Duration) {
	m.requests.WithLabelValues(method, strconv.Itoa(status)).Inc()
	m.latency.WithLabelValues(method).Observe(took.Seconds())
}

// AddError records a request that returned an error.
func (m *Metrics) AddError(method string) {
	m.errors.WithLabelValues(method).Inc()
}

// AddPanic records a recovered panic.
func (m *Metrics) AddPanic() {
	m.panics.Inc()
}

// Package metrics records dispatch metrics in a private prometheus registry
// and serves them in the text exposition format.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns the request metrics of one process.
type Collector struct {
	registry *prometheus.Registry
	handler  http.Handler

	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	notFound prometheus.Counter
}

// New creates a collector whose metric names start with namespace. A
// private registry keeps it clear of the global one.
func New(namespace string) *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		registry: reg,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Dispatched requests by controller, method and status.",
		}, []string{"controller", "method", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Time from request to response, dispatch included.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"controller"}),
		notFound: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "not_found_total",
			Help:      "Requests that resolved to no controller or action.",
		}),
	}

	reg.MustRegister(
		c.requests,
		c.duration,
		c.notFound,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	c.handler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
	return c
}

// Observe records one handled request. An empty controller is recorded as
// "none".
func (c *Collector) Observe(controller, method string, status int, elapsed time.Duration) {
	if controller == "" {
		controller = "none"
	}
	c.requests.WithLabelValues(controller, method, strconv.Itoa(status)).Inc()
	c.duration.WithLabelValues(controller).Observe(elapsed.Seconds())
	if status == http.StatusNotFound {
		c.notFound.Inc()
	}
}

// Handler serves the registry.
func (c *Collector) Handler() http.Handler { return c.handler }

// Registry exposes the registry so applications can add their own metrics.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Package metrics provides the Prometheus instrumentation used by the listener.
package metrics

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// UnmatchedRoute is the route label used for requests no route claimed.
const UnmatchedRoute = "unmatched"

// Config holds the configuration for a Collector.
type Config struct {
	// Namespace and Subsystem prefix every metric name.
	Namespace string
	Subsystem string

	// Buckets for the request duration histogram. Defaults to prometheus.DefBuckets.
	Buckets []float64

	// Registerer receives the collectors. Defaults to a fresh prometheus.Registry.
	Registerer prometheus.Registerer

	// ConstLabels are attached to every metric.
	ConstLabels prometheus.Labels
}

// Collector records per-request metrics for a listener.
// All methods are safe to call on a nil *Collector, which records nothing.
type Collector struct {
	requests  *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	inFlight  prometheus.Gauge
	queueWait prometheus.Histogram
	rejected  *prometheus.CounterVec

	registerer prometheus.Registerer
	gatherer   prometheus.Gatherer
}

// NewCollector creates the request metrics and registers them with cfg.Registerer.
func NewCollector(cfg Config) (*Collector, error) {
	reg := cfg.Registerer
	var gatherer prometheus.Gatherer
	if reg == nil {
		r := prometheus.NewRegistry()
		reg, gatherer = r, r
	} else if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	buckets := cfg.Buckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	c := &Collector{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "requests_total",
			Help:        "Total number of requests handled, by method, route and status code.",
			ConstLabels: cfg.ConstLabels,
		}, []string{"method", "route", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "request_duration_seconds",
			Help:        "Time spent running the request pipeline.",
			Buckets:     buckets,
			ConstLabels: cfg.ConstLabels,
		}, []string{"method", "route"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "requests_in_flight",
			Help:        "Number of request pipelines currently running.",
			ConstLabels: cfg.ConstLabels,
		}),
		queueWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "queue_wait_seconds",
			Help:        "Time a request waited for admission before its pipeline started.",
			Buckets:     prometheus.ExponentialBuckets(0.0005, 4, 8),
			ConstLabels: cfg.ConstLabels,
		}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "requests_rejected_total",
			Help:        "Requests refused before dispatch, by reason.",
			ConstLabels: cfg.ConstLabels,
		}, []string{"reason"}),
		registerer: reg,
		gatherer:   gatherer,
	}

	for _, col := range []prometheus.Collector{c.requests, c.duration, c.inFlight, c.queueWait, c.rejected} {
		if err := reg.Register(col); err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}
	return c, nil
}

// MustNewCollector is like NewCollector but panics on registration errors.
func MustNewCollector(cfg Config) *Collector {
	c, err := NewCollector(cfg)
	if err != nil {
		panic(err)
	}
	return c
}

// ObserveRequest records one finished request.
func (c *Collector) ObserveRequest(method, route string, status int, d time.Duration) {
	if c == nil {
		return
	}
	if route == "" {
		route = UnmatchedRoute
	}
	c.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.duration.WithLabelValues(method, route).Observe(d.Seconds())
}

// TrackInFlight increments the in-flight gauge and returns the matching decrement.
func (c *Collector) TrackInFlight() func() {
	if c == nil {
		return func() {}
	}
	c.inFlight.Inc()
	return c.inFlight.Dec
}

// ObserveQueueWait records how long a request waited before admission.
func (c *Collector) ObserveQueueWait(d time.Duration) {
	if c == nil {
		return
	}
	c.queueWait.Observe(d.Seconds())
}

// Reject counts a request refused before dispatch.
func (c *Collector) Reject(reason string) {
	if c == nil {
		return
	}
	c.rejected.WithLabelValues(reason).Inc()
}

// Handler returns an http.Handler exposing the collector's registry.
// When the registerer cannot be gathered from, the default gatherer is served.
func (c *Collector) Handler() http.Handler {
	if c == nil || c.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}

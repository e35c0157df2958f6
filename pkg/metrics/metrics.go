// Package metrics holds the Prometheus collectors for the service on a
// private registry and exposes them over HTTP.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Collector holds all Prometheus metrics for the service. A nil *Collector
// is valid and records nothing.
type Collector struct {
	registry *prometheus.Registry

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	ChainInvocations *prometheus.CounterVec
	ChainDuration    prometheus.Histogram

	LoaderRows   *prometheus.CounterVec
	LoadDuration prometheus.Gauge
}

// New creates a Collector with every metric registered under namespace.
func New(namespace string) *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		ChainInvocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chain_invocations_total",
			Help:      "Question answering chain invocations by outcome.",
		}, []string{"outcome"}),
		ChainDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "chain_duration_seconds",
			Help:      "Question answering chain latency in seconds.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		LoaderRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "loader_rows_total",
			Help:      "CSV rows processed by the safety index loader by outcome.",
		}, []string{"outcome"}),
		LoadDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "loader_last_duration_seconds",
			Help:      "Duration of the most recent safety index load.",
		}),
	}
	c.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.HTTPRequests, c.HTTPDuration,
		c.ChainInvocations, c.ChainDuration,
		c.LoaderRows, c.LoadDuration,
	)
	return c
}

// Registry returns the private registry.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// ObserveRequest records one served HTTP request.
func (c *Collector) ObserveRequest(method, route string, status int, d time.Duration) {
	if c == nil {
		return
	}
	c.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.HTTPDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// ObserveChain records one chain invocation.
func (c *Collector) ObserveChain(err error, d time.Duration) {
	if c == nil {
		return
	}
	c.ChainInvocations.WithLabelValues(outcome(err)).Inc()
	c.ChainDuration.Observe(d.Seconds())
}

// ObserveLoaderRow records one processed CSV row.
func (c *Collector) ObserveLoaderRow(err error) {
	if c == nil {
		return
	}
	c.LoaderRows.WithLabelValues(outcome(err)).Inc()
}

// ObserveLoad records the duration of a complete load.
func (c *Collector) ObserveLoad(d time.Duration) {
	if c == nil {
		return
	}
	c.LoadDuration.Set(d.Seconds())
}

func outcome(err error) string {
	if err != nil {
		return OutcomeError
	}
	return OutcomeOK
}

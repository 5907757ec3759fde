// Package metrics exposes slicing and job counters in Prometheus format.
//
// A Metrics value owns its own registry so that tests and multiple servers
// in one process never collide on the global default registerer. All methods
// are safe on a nil *Metrics, which lets the CLI run without instrumentation.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "bitslicer"

// Counts summarizes one slicing pass.
type Counts struct {
	Hex      int
	Binary   int
	Invalid  int
	Absent   int
	Fallback int
	Overflow int
}

// Metrics holds the service's collectors.
type Metrics struct {
	registry *prometheus.Registry

	tokens      *prometheus.CounterVec
	fallbacks   prometheus.Counter
	overflows   prometheus.Counter
	jobs        *prometheus.CounterVec
	jobDuration prometheus.Histogram
	activeJobs  prometheus.Gauge
}

// New creates and registers all collectors, including the Go runtime and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		tokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_decoded_total",
			Help:      "Cell tokens decoded, by classification (hex, binary, invalid, absent).",
		}, []string{"class"}),
		fallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "hex_fallbacks_total",
			Help:      "Tokens that could not be parsed and were replaced by a zero word.",
		}),
		overflows: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "overflow_words_total",
			Help:      "Decoded words longer than their column bit length.",
		}),
		jobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_total",
			Help:      "Slicing jobs finished, by final phase.",
		}, []string{"phase"}),
		jobDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Wall time of slicing jobs.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
		}),
		activeJobs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "jobs_active",
			Help:      "Slicing jobs currently running.",
		}),
	}

	m.registry.MustRegister(
		m.tokens,
		m.fallbacks,
		m.overflows,
		m.jobs,
		m.jobDuration,
		m.activeJobs,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveSlice adds the counts of one slicing pass.
func (m *Metrics) ObserveSlice(c Counts) {
	if m == nil {
		return
	}
	m.tokens.WithLabelValues("hex").Add(float64(c.Hex))
	m.tokens.WithLabelValues("binary").Add(float64(c.Binary))
	m.tokens.WithLabelValues("invalid").Add(float64(c.Invalid))
	m.tokens.WithLabelValues("absent").Add(float64(c.Absent))
	m.fallbacks.Add(float64(c.Fallback))
	m.overflows.Add(float64(c.Overflow))
}

// JobStarted marks a job as running.
func (m *Metrics) JobStarted() {
	if m == nil {
		return
	}
	m.activeJobs.Inc()
}

// JobFinished records a job's final phase and duration.
func (m *Metrics) JobFinished(phase string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.activeJobs.Dec()
	m.jobs.WithLabelValues(phase).Inc()
	m.jobDuration.Observe(elapsed.Seconds())
}

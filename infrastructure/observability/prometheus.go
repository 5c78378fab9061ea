// Package observability exports the service's metrics through Prometheus.
package observability

import (
	"maps"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ahrav/go-gavel-ratings/internal/ports"
)

// Namespace prefixes every exported metric.
const Namespace = "gavel"

// ratingBuckets cover the 0-5 rating scale in half-point steps.
var ratingBuckets = prometheus.LinearBuckets(0.5, 0.5, 10)

// PrometheusMetrics implements ports.MetricsCollector on a private
// registry. Vectors are created on first use; the label names seen on that
// first observation become the vector's fixed label set, later observations
// fill missing labels with "" and drop unknown ones.
type PrometheusMetrics struct {
	registry *prometheus.Registry
	factory  promauto.Factory

	mu         sync.Mutex
	counters   map[string]*labelled[*prometheus.CounterVec]
	gauges     map[string]*labelled[*prometheus.GaugeVec]
	histograms map[string]*labelled[*prometheus.HistogramVec]
}

type labelled[V any] struct {
	vec    V
	labels []string
}

// NewPrometheusMetrics creates a collector with Go runtime and process
// metrics already registered.
func NewPrometheusMetrics() *PrometheusMetrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return &PrometheusMetrics{
		registry:   reg,
		factory:    promauto.With(reg),
		counters:   make(map[string]*labelled[*prometheus.CounterVec]),
		gauges:     make(map[string]*labelled[*prometheus.GaugeVec]),
		histograms: make(map[string]*labelled[*prometheus.HistogramVec]),
	}
}

// Registry returns the underlying registry, mainly for tests.
func (pm *PrometheusMetrics) Registry() *prometheus.Registry { return pm.registry }

// Handler serves the registry in the Prometheus exposition format.
func (pm *PrometheusMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(pm.registry, promhttp.HandlerOpts{Registry: pm.registry})
}

// RecordLatency observes duration in the "<operation>_duration_seconds"
// histogram.
func (pm *PrometheusMetrics) RecordLatency(operation string, duration time.Duration, labels map[string]string) {
	pm.RecordHistogram(sanitize(operation)+"_duration_seconds", duration.Seconds(), labels)
}

// RecordCounter adds value to the named counter. Negative values are
// ignored because Prometheus counters only increase.
func (pm *PrometheusMetrics) RecordCounter(metric string, value float64, labels map[string]string) {
	if value < 0 {
		return
	}
	pm.mu.Lock()
	c, ok := pm.counters[metric]
	if !ok {
		names := labelNames(labels)
		c = &labelled[*prometheus.CounterVec]{
			vec: pm.factory.NewCounterVec(prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      sanitize(metric),
				Help:      "Count of " + strings.ReplaceAll(metric, "_", " ") + ".",
			}, names),
			labels: names,
		}
		pm.counters[metric] = c
	}
	pm.mu.Unlock()

	c.vec.WithLabelValues(labelValues(c.labels, labels)...).Add(value)
}

// RecordGauge sets the named gauge.
func (pm *PrometheusMetrics) RecordGauge(metric string, value float64, labels map[string]string) {
	pm.mu.Lock()
	g, ok := pm.gauges[metric]
	if !ok {
		names := labelNames(labels)
		g = &labelled[*prometheus.GaugeVec]{
			vec: pm.factory.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: Namespace,
				Name:      sanitize(metric),
				Help:      "Current " + strings.ReplaceAll(metric, "_", " ") + ".",
			}, names),
			labels: names,
		}
		pm.gauges[metric] = g
	}
	pm.mu.Unlock()

	g.vec.WithLabelValues(labelValues(g.labels, labels)...).Set(value)
}

// RecordHistogram observes value in the named histogram. Names ending in
// "_seconds" use the default latency buckets, other names mentioning
// "rating" use half-point rating buckets.
func (pm *PrometheusMetrics) RecordHistogram(metric string, value float64, labels map[string]string) {
	pm.mu.Lock()
	h, ok := pm.histograms[metric]
	if !ok {
		buckets := prometheus.DefBuckets
		if !strings.HasSuffix(metric, "_seconds") && strings.Contains(metric, "rating") {
			buckets = ratingBuckets
		}
		names := labelNames(labels)
		h = &labelled[*prometheus.HistogramVec]{
			vec: pm.factory.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      sanitize(metric),
				Help:      "Distribution of " + strings.ReplaceAll(metric, "_", " ") + ".",
				Buckets:   buckets,
			}, names),
			labels: names,
		}
		pm.histograms[metric] = h
	}
	pm.mu.Unlock()

	h.vec.WithLabelValues(labelValues(h.labels, labels)...).Observe(value)
}

func labelNames(labels map[string]string) []string {
	names := slices.Sorted(maps.Keys(labels))
	for i, n := range names {
		names[i] = sanitize(n)
	}
	return names
}

func labelValues(names []string, labels map[string]string) []string {
	values := make([]string, len(names))
	for k, v := range labels {
		if i := slices.Index(names, sanitize(k)); i >= 0 {
			values[i] = v
		}
	}
	return values
}

// sanitize maps name onto the Prometheus name alphabet.
func sanitize(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
}

var _ ports.MetricsCollector = (*PrometheusMetrics)(nil)

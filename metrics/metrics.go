// Package metrics - Prometheus collectors for the detection pipeline.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Failure kinds reported on nudenet_failures_total.
const (
	FailureNotReady    = "not_ready"
	FailureEmptyImage  = "empty_image"
	FailureUnsupported = "unsupported_format"
	FailureInference   = "inference"
	FailureOther       = "other"
)

// Metrics holds the pipeline collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	detections *prometheus.CounterVec
	failures   *prometheus.CounterVec
	stages     *prometheus.HistogramVec
	modelLoad  prometheus.Histogram
	ready      prometheus.Gauge
}

// New creates the collectors on a fresh registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.NewRegistry())
}

// NewWithRegistry creates the collectors and registers them on registry.
//
// Arguments:
//   - registry: The registry to register on; it is also what Handler serves.
//
// Returns:
//   - *Metrics: The collectors.
func NewWithRegistry(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		registry: registry,
		detections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nudenet_detections_total",
			Help: "Completed detections by verdict",
		}, []string{"verdict"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nudenet_failures_total",
			Help: "Failed detections by kind",
		}, []string{"kind"}),
		stages: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "nudenet_stage_duration_seconds",
			Help:    "Time spent in each pipeline stage",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
		}, []string{"stage"}),
		modelLoad: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "nudenet_model_load_seconds",
			Help:    "Time to fetch, open and warm up both models",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		ready: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "nudenet_ready",
			Help: "1 once both models are loaded and warmed up",
		}),
	}
	registry.MustRegister(m.detections, m.failures, m.stages, m.modelLoad, m.ready)
	return m
}

// ObserveDetection counts a completed detection.
func (m *Metrics) ObserveDetection(nsfw bool) {
	if m == nil {
		return
	}
	m.detections.WithLabelValues(strconv.FormatBool(nsfw)).Inc()
}

// ObserveFailure counts a failed detection of the given kind.
func (m *Metrics) ObserveFailure(kind string) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(kind).Inc()
}

// ObserveStage records how long a stage took.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.stages.WithLabelValues(stage).Observe(d.Seconds())
}

// ObserveModelLoad records an init duration.
func (m *Metrics) ObserveModelLoad(d time.Duration) {
	if m == nil {
		return
	}
	m.modelLoad.Observe(d.Seconds())
}

// SetReady sets the readiness gauge.
func (m *Metrics) SetReady(ready bool) {
	if m == nil {
		return
	}
	if ready {
		m.ready.Set(1)
		return
	}
	m.ready.Set(0)
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.HandlerFor(prometheus.NewRegistry(), promhttp.HandlerOpts{})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

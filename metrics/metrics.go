// Package metrics exposes the viewer's prometheus metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the prometheus counters and gauges of the viewer and of the
// stream client.
type Metrics struct {
	registry           *prometheus.Registry
	framesTotal        *prometheus.CounterVec
	framesSkippedTotal *prometheus.CounterVec
	bufferAllocations  *prometheus.CounterVec
	skeletonErrors     prometheus.Counter
	trackedSkeletons   prometheus.Gauge
	datagramsDropped   prometheus.Counter
}

// New creates and registers the metrics on a private registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	framesTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "kinectview_frames_total",
		Help: "Total number of frames processed, by stream",
	}, []string{"stream"})
	framesSkippedTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "kinectview_frames_skipped_total",
		Help: "Total number of callbacks whose frame was missing or inconsistent, by stream",
	}, []string{"stream"})
	bufferAllocations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "kinectview_buffer_allocations_total",
		Help: "Total number of output buffer allocations, by stream",
	}, []string{"stream"})
	skeletonErrors := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "kinectview_skeleton_errors_total",
		Help: "Total number of frames with at least one skeleton that could not be drawn",
	})
	trackedSkeletons := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "kinectview_tracked_skeletons",
		Help: "Number of skeletons drawn in the last frame",
	})
	datagramsDropped := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "kinectview_stream_datagrams_dropped_total",
		Help: "Total number of stream datagrams dropped as malformed or stale",
	})

	registry.MustRegister(
		framesTotal,
		framesSkippedTotal,
		bufferAllocations,
		skeletonErrors,
		trackedSkeletons,
		datagramsDropped,
	)

	return &Metrics{
		registry:           registry,
		framesTotal:        framesTotal,
		framesSkippedTotal: framesSkippedTotal,
		bufferAllocations:  bufferAllocations,
		skeletonErrors:     skeletonErrors,
		trackedSkeletons:   trackedSkeletons,
		datagramsDropped:   datagramsDropped,
	}
}

func (m *Metrics) IncFrames(stream string) {
	m.framesTotal.WithLabelValues(stream).Inc()
}

func (m *Metrics) IncFramesSkipped(stream string) {
	m.framesSkippedTotal.WithLabelValues(stream).Inc()
}

func (m *Metrics) IncBufferAllocations(stream string) {
	m.bufferAllocations.WithLabelValues(stream).Inc()
}

func (m *Metrics) IncSkeletonErrors() {
	m.skeletonErrors.Inc()
}

func (m *Metrics) SetTrackedSkeletons(n int) {
	m.trackedSkeletons.Set(float64(n))
}

func (m *Metrics) IncDatagramsDropped() {
	m.datagramsDropped.Inc()
}

// Registry returns the registry the metrics are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an http.Handler that serves the metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the counters of a detection session
type Metrics struct {
	FilesProcessed atomic.Uint64
	FilesFailed    atomic.Uint64
	Detections     atomic.Uint64
	FramesDecoded  atomic.Uint64

	filesByType *prometheus.CounterVec
	fileSeconds *prometheus.HistogramVec

	registry *prometheus.Registry
}

// New creates a Metrics instance with its own Prometheus registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		filesByType: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wildlifetagger_files_total",
			Help: "Files processed, by media type and outcome",
		}, []string{"type", "outcome"}),
		fileSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "wildlifetagger_file_processing_seconds",
			Help:    "Wall-clock processing time per file",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
		}, []string{"type"}),
	}

	m.registerPrometheusMetrics()

	return m
}

func (m *Metrics) registerPrometheusMetrics() {
	m.registry.MustRegister(m.filesByType, m.fileSeconds)

	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "wildlifetagger_session_files_processed",
			Help: "Files successfully processed in the last session",
		},
		func() float64 { return float64(m.FilesProcessed.Load()) },
	))

	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "wildlifetagger_session_files_failed",
			Help: "Files that failed in the last session",
		},
		func() float64 { return float64(m.FilesFailed.Load()) },
	))

	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "wildlifetagger_session_detections",
			Help: "Detections found in the last session, sentinel rows excluded",
		},
		func() float64 { return float64(m.Detections.Load()) },
	))

	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "wildlifetagger_session_video_frames",
			Help: "Video frames decoded in the last session",
		},
		func() float64 { return float64(m.FramesDecoded.Load()) },
	))
}

// ObserveFile records the outcome of one file
func (m *Metrics) ObserveFile(fileType string, success bool, seconds float64, detections int) {
	outcome := "success"
	if success {
		m.FilesProcessed.Add(1)
	} else {
		outcome = "failure"
		m.FilesFailed.Add(1)
	}
	if detections > 0 {
		m.Detections.Add(uint64(detections))
	}
	m.filesByType.WithLabelValues(fileType, outcome).Inc()
	m.fileSeconds.WithLabelValues(fileType).Observe(seconds)
}

// Registry returns the Prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteTextfile writes the registry in the node-exporter textfile format
func (m *Metrics) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	return nil
}

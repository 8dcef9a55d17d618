package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// PipelineMetrics contains the Prometheus metrics of screenshot processing.
type PipelineMetrics struct {
	OperationsTotal *prometheus.CounterVec
	ErrorsTotal     *prometheus.CounterVec
	StageDuration   *prometheus.HistogramVec
	ItemsTotal      *prometheus.CounterVec
	LastImageTime   prometheus.Gauge

	registry *prometheus.Registry
}

// NewPipelineMetrics creates the pipeline metrics and registers them.
func NewPipelineMetrics(registry *prometheus.Registry) (*PipelineMetrics, error) {
	m := &PipelineMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register pipeline metrics: %w", err)
	}
	return m, nil
}

func (m *PipelineMetrics) initMetrics() {
	m.OperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "iconscan_operations_total",
			Help: "Total number of pipeline operations partitioned by stage and outcome",
		},
		[]string{"operation", "status"},
	)

	m.ErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "iconscan_errors_total",
			Help: "Total number of pipeline errors partitioned by stage and error category",
		},
		[]string{"operation", "error_type"},
	)

	m.StageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "iconscan_stage_duration_seconds",
			Help:    "Time spent in each pipeline stage",
			Buckets: prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount15), // 1ms to ~16s
		},
		[]string{"operation"},
	)

	m.ItemsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "iconscan_items_total",
			Help: "Counted pipeline items such as raw candidates and accepted detections",
		},
		[]string{"item"},
	)

	m.LastImageTime = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "iconscan_last_image_timestamp_seconds",
			Help: "Unix time at which the last screenshot finished processing",
		},
	)
}

// RecordOperation implements Recorder.
func (m *PipelineMetrics) RecordOperation(operation, status string) {
	m.OperationsTotal.WithLabelValues(operation, status).Inc()
	if operation == OpImage {
		m.LastImageTime.SetToCurrentTime()
	}
}

// RecordDuration implements Recorder.
func (m *PipelineMetrics) RecordDuration(operation string, seconds float64) {
	m.StageDuration.WithLabelValues(operation).Observe(seconds)
}

// RecordError implements Recorder.
func (m *PipelineMetrics) RecordError(operation, errorType string) {
	m.ErrorsTotal.WithLabelValues(operation, errorType).Inc()
}

// RecordCount implements Recorder.
func (m *PipelineMetrics) RecordCount(operation string, n int) {
	if n <= 0 {
		return
	}
	m.ItemsTotal.WithLabelValues(operation).Add(float64(n))
}

// Describe implements the prometheus.Collector interface.
func (m *PipelineMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.OperationsTotal.Describe(ch)
	m.ErrorsTotal.Describe(ch)
	m.StageDuration.Describe(ch)
	m.ItemsTotal.Describe(ch)
	ch <- m.LastImageTime.Desc()
}

// Collect implements the prometheus.Collector interface.
func (m *PipelineMetrics) Collect(ch chan<- prometheus.Metric) {
	m.OperationsTotal.Collect(ch)
	m.ErrorsTotal.Collect(ch)
	m.StageDuration.Collect(ch)
	m.ItemsTotal.Collect(ch)
	ch <- m.LastImageTime
}

var _ Recorder = (*PipelineMetrics)(nil)

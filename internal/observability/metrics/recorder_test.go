package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMetrics(t *testing.T) *PipelineMetrics {
	t.Helper()
	m, err := NewPipelineMetrics(prometheus.NewRegistry())
	require.NoError(t, err)
	return m
}

func TestPipelineMetricsRecordOperation(t *testing.T) {
	t.Parallel()
	m := newTestMetrics(t)

	m.RecordOperation(OpImage, StatusSuccess)
	m.RecordOperation(OpImage, StatusSuccess)
	m.RecordOperation(OpImage, StatusError)
	m.RecordOperation(OpOCR, StatusEmptyRegion)

	assert.InDelta(t, 2, testutil.ToFloat64(m.OperationsTotal.WithLabelValues(OpImage, StatusSuccess)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.OperationsTotal.WithLabelValues(OpImage, StatusError)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.OperationsTotal.WithLabelValues(OpOCR, StatusEmptyRegion)), 0)
	assert.Positive(t, testutil.ToFloat64(m.LastImageTime))
}

func TestPipelineMetricsRecordCount(t *testing.T) {
	t.Parallel()
	m := newTestMetrics(t)

	m.RecordCount(OpCandidates, 12)
	m.RecordCount(OpCandidates, 3)
	m.RecordCount(OpDetections, 0)

	assert.InDelta(t, 15, testutil.ToFloat64(m.ItemsTotal.WithLabelValues(OpCandidates)), 0)
	// zero counts do not create a series
	assert.Equal(t, 1, testutil.CollectAndCount(m.ItemsTotal))
}

func TestPipelineMetricsErrorsAndDurations(t *testing.T) {
	t.Parallel()
	m := newTestMetrics(t)

	m.RecordError(OpPersist, "database")
	m.RecordDuration(OpMatch, 0.25)
	m.RecordDuration(OpMatch, 0.5)

	assert.InDelta(t, 1, testutil.ToFloat64(m.ErrorsTotal.WithLabelValues(OpPersist, "database")), 0)

	expected := `
# HELP iconscan_errors_total Total number of pipeline errors partitioned by stage and error category
# TYPE iconscan_errors_total counter
iconscan_errors_total{error_type="database",operation="persist"} 1
`
	require.NoError(t, testutil.CollectAndCompare(m.ErrorsTotal, strings.NewReader(expected)))
	assert.Equal(t, 1, testutil.CollectAndCount(m.StageDuration))
}

func TestNewPipelineMetricsRejectsDoubleRegistration(t *testing.T) {
	t.Parallel()
	registry := prometheus.NewRegistry()

	_, err := NewPipelineMetrics(registry)
	require.NoError(t, err)
	_, err = NewPipelineMetrics(registry)
	assert.Error(t, err)
}

func TestNoOpRecorder(t *testing.T) {
	t.Parallel()
	var r Recorder = NoOpRecorder{}
	assert.NotPanics(t, func() {
		r.RecordOperation(OpImage, StatusSuccess)
		r.RecordDuration(OpImage, 1)
		r.RecordError(OpImage, "x")
		r.RecordCount(OpDetections, 3)
	})
}

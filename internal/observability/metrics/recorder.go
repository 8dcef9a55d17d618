// Package metrics provides Prometheus metrics for the iconscan pipeline.
package metrics

// Recorder defines a minimal interface for recording metrics.
// Components depend on this abstraction rather than on concrete collectors.
type Recorder interface {
	// RecordOperation records an operation with its status.
	// The operation is one of the Op constants, the status one of the Status constants.
	RecordOperation(operation, status string)

	// RecordDuration records the duration of an operation in seconds.
	RecordDuration(operation string, seconds float64)

	// RecordError records an error occurrence with its category.
	RecordError(operation, errorType string)

	// RecordCount adds n occurrences of a counted item such as OpCandidates.
	RecordCount(operation string, n int)
}

// NoOpRecorder is a Recorder that discards every measurement.
// It is used when metrics recording is not needed.
type NoOpRecorder struct{}

// RecordOperation does nothing.
func (NoOpRecorder) RecordOperation(operation, status string) {}

// RecordDuration does nothing.
func (NoOpRecorder) RecordDuration(operation string, seconds float64) {}

// RecordError does nothing.
func (NoOpRecorder) RecordError(operation, errorType string) {}

// RecordCount does nothing.
func (NoOpRecorder) RecordCount(operation string, n int) {}

var _ Recorder = NoOpRecorder{}

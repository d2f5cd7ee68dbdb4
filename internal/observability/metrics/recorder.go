// Package metrics provides custom Prometheus metrics for pokerwatch.
package metrics

// Recorder defines a minimal interface for recording metrics.
// Components depend on this abstraction rather than concrete collectors.
type Recorder interface {
	// RecordOperation records an operation with its status
	// (e.g. "cycle", "success").
	RecordOperation(operation, status string)

	// RecordDuration records the duration of an operation in seconds.
	RecordDuration(operation string, seconds float64)

	// RecordError records an error occurrence with its type.
	RecordError(operation, errorType string)
}

// NopRecorder discards everything.
type NopRecorder struct{}

func (NopRecorder) RecordOperation(string, string) {}
func (NopRecorder) RecordDuration(string, float64) {}
func (NopRecorder) RecordError(string, string) {}

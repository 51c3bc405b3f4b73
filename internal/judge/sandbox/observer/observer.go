// Package observer defines metrics hooks for sandbox execution.
package observer

import "context"

// MetricsRecorder records sandbox metrics.
type MetricsRecorder interface {
	// ObserveRun is called once per program execution.
	ObserveRun(ctx context.Context, languageID string, terminal string, wallTimeMs int64, outputBytes int64)
	// ObserveBatch is called once per judged batch.
	ObserveBatch(ctx context.Context, mode string, verdict string, cases int, totalTimeMs int64)
}

// NoopMetricsRecorder discards everything.
type NoopMetricsRecorder struct{}

func (NoopMetricsRecorder) ObserveRun(context.Context, string, string, int64, int64) {}

func (NoopMetricsRecorder) ObserveBatch(context.Context, string, string, int, int64) {}

// Package observer defines metrics hooks for language loading and compilation.
package observer

import (
	"context"
	"time"
)

// Load outcomes reported for each definition file.
const (
	LoadOutcomeLoaded  = "loaded"
	LoadOutcomeSkipped = "skipped"
)

// MetricsRecorder records compile pipeline metrics.
type MetricsRecorder interface {
	ObserveCompile(ctx context.Context, languageID string, status string, duration time.Duration)
	ObserveLoad(ctx context.Context, outcome string)
}

// NoopMetricsRecorder is a default recorder that does nothing.
type NoopMetricsRecorder struct{}

func (NoopMetricsRecorder) ObserveCompile(ctx context.Context, languageID string, status string, duration time.Duration) {
}

func (NoopMetricsRecorder) ObserveLoad(ctx context.Context, outcome string) {
}

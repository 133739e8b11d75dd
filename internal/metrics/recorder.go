package metrics

import "time"

// ResultLabel enumerates cycle result categories for counters.
type ResultLabel string

const (
	ResultSuccess ResultLabel = "success"
	ResultFailure ResultLabel = "failure"
)

// Recorder defines observability hooks for synchronization and lifecycle metrics.
type Recorder interface {
	ObserveCycleDuration(d time.Duration)
	IncCycleOutcome(result ResultLabel, stage string)
	SetSchedulerRunning(running bool)
	ObserveLifecycle(operation string, removed int, reclaimedMB float64)
	IncLifecycleWarning(operation, reason string)
	SetStoreEntries(n int)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveCycleDuration(time.Duration)    {}
func (NoopRecorder) IncCycleOutcome(ResultLabel, string)   {}
func (NoopRecorder) SetSchedulerRunning(bool)              {}
func (NoopRecorder) ObserveLifecycle(string, int, float64) {}
func (NoopRecorder) IncLifecycleWarning(string, string)    {}
func (NoopRecorder) SetStoreEntries(int)                   {}

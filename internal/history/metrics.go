package history

import "time"

// Metrics receives counters from the engines. Implementations must be
// safe for concurrent use.
type Metrics interface {
	RecordWritten(root RootKind, op Operation)
	PurgeCompleted(result *PurgeResult, elapsed time.Duration)
	RestoreCompleted(err error)
}

// NopMetrics discards everything.
type NopMetrics struct{}

func (NopMetrics) RecordWritten(RootKind, Operation)           {}
func (NopMetrics) PurgeCompleted(*PurgeResult, time.Duration) {}
func (NopMetrics) RestoreCompleted(error)                      {}

// Package metrics records build stage outcomes for Prometheus
package metrics

import (
	"time"

	"github.com/ubbuilder/ubb/pkg/types"
)

// ResultLabel enumerates stage result categories for counters.
type ResultLabel string

const (
	ResultSuccess  ResultLabel = "success"
	ResultFailed   ResultLabel = "failed"
	ResultCanceled ResultLabel = "canceled"
	ResultSkipped  ResultLabel = "skipped"
)

// ResultOf maps an outcome to its label
func ResultOf(o types.Outcome) ResultLabel {
	switch {
	case o.Cancelled:
		return ResultCanceled
	case o.Success:
		return ResultSuccess
	default:
		return ResultFailed
	}
}

// Recorder defines observability hooks for the orchestrator. All methods must
// be safe to call on a NoopRecorder.
type Recorder interface {
	ObserveStageDuration(stage string, d time.Duration)
	IncStageResult(stage string, result ResultLabel)
	ObserveCounters(stage string, c types.BuildCounters)
	IncPluginJob(result ResultLabel)
	SetQueuePending(n int)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveStageDuration(string, time.Duration) {}
func (NoopRecorder) IncStageResult(string, ResultLabel) {}
func (NoopRecorder) ObserveCounters(string, types.BuildCounters) {}
func (NoopRecorder) IncPluginJob(ResultLabel) {}
func (NoopRecorder) SetQueuePending(int) {}

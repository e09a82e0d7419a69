package engine

import (
	"github.com/ubbuilder/ubb/pkg/types"
)

// Observer receives everything the orchestrator reports. All methods are
// called from the control loop, so implementations must not block and must
// not call back into the Orchestrator synchronously.
type Observer interface {
	OnLog(rec types.LogRecord)
	OnCounters(c types.BuildCounters)
	OnState(s types.StageState)
	OnStatus(status string)
	OnFinished(o types.Outcome)
}

// NopObserver discards all reports
type NopObserver struct{}

func (NopObserver) OnLog(types.LogRecord) {}
func (NopObserver) OnCounters(types.BuildCounters) {}
func (NopObserver) OnState(types.StageState) {}
func (NopObserver) OnStatus(string) {}
func (NopObserver) OnFinished(types.Outcome) {}

// Notifier raises user-visible notifications.
// Implemented by notifier.BuildNotifier.
type Notifier interface {
	Toast(severity types.Severity, message string)
	NotifyStageStarted(stage types.StageState, detail string)
	NotifyBuildFinished(outcome types.Outcome)
	NotifyQueueDrained(processed int)
}

type nopNotifier struct{}

func (nopNotifier) Toast(types.Severity, string) {}
func (nopNotifier) NotifyStageStarted(types.StageState, string) {}
func (nopNotifier) NotifyBuildFinished(types.Outcome) {}
func (nopNotifier) NotifyQueueDrained(int) {}

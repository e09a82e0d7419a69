package cli

import (
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"
	"github.com/ubbuilder/ubb/pkg/logger"
	"github.com/ubbuilder/ubb/pkg/sessionlog"
	"github.com/ubbuilder/ubb/pkg/types"
)

// consoleObserver prints build output to the terminal. It runs on the
// orchestrator loop, so it only writes and hands outcomes over a channel.
type consoleObserver struct {
	mu       sync.Mutex
	output   io.Writer
	errorOut io.Writer
	logger   logger.Logger
	finished chan types.Outcome
}

func newConsoleObserver(output, errorOut io.Writer, log logger.Logger) *consoleObserver {
	return &consoleObserver{
		output:   output,
		errorOut: errorOut,
		logger:   log,
		finished: make(chan types.Outcome, 8),
	}
}

func (o *consoleObserver) OnLog(rec types.LogRecord) {
	line := sessionlog.Format(rec)

	o.mu.Lock()
	defer o.mu.Unlock()

	switch rec.Severity {
	case types.SeverityError:
		fmt.Fprintln(o.errorOut, color.RedString(line))
	case types.SeverityWarning:
		fmt.Fprintln(o.output, color.YellowString(line))
	case types.SeverityDebug:
		o.logger.Debug(rec.Text)
	default:
		fmt.Fprintln(o.output, line)
	}
}

func (o *consoleObserver) OnCounters(c types.BuildCounters) {
	o.logger.Debug("Counters", logger.WithField("counters", c.String()))
}

func (o *consoleObserver) OnState(s types.StageState) {
	if s == types.StageIdle {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	fmt.Fprintln(o.output, color.CyanString("==> %s", s.DisplayName()))
}

func (o *consoleObserver) OnStatus(status string) {
	o.logger.Debug(status)
}

func (o *consoleObserver) OnFinished(outcome types.Outcome) {
	select {
	case o.finished <- outcome:
	default:
		o.logger.Warn("Dropped build outcome", logger.WithField("stage", outcome.Stage.DisplayName()))
	}
}

// outcomeError turns a finished run into the command's exit error
func outcomeError(o types.Outcome) error {
	switch {
	case o.Cancelled:
		return types.ErrCancelled
	case o.Success:
		return nil
	case o.Owner == types.OwnerPlugins:
		return fmt.Errorf("plugin queue finished with failures (%d processed)", o.Processed)
	default:
		return fmt.Errorf("%s failed with exit code %d", o.Stage.DisplayName(), o.ExitCode)
	}
}

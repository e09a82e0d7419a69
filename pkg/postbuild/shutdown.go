package postbuild

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/ubbuilder/ubb/pkg/logger"
	"github.com/ubbuilder/ubb/pkg/process"
	"github.com/ubbuilder/ubb/pkg/types"
)

// Decision is the outcome of the shutdown policy
type Decision struct {
	Fire   bool
	Reason string
}

// EvaluateShutdown decides whether to power the machine off after a run.
// It fires iff ShutdownOnFinish && (!ShutdownOnlyOnSuccess || lastSuccess).
func EvaluateShutdown(opts types.PostBuildOptions, lastSuccess bool) Decision {
	switch {
	case !opts.ShutdownOnFinish:
		return Decision{Reason: "shutdown after build is disabled"}
	case opts.ShutdownOnlyOnSuccess && !lastSuccess:
		return Decision{Reason: "build failed and shutdown is limited to successful builds"}
	case lastSuccess:
		return Decision{Fire: true, Reason: "build succeeded"}
	default:
		return Decision{Fire: true, Reason: "build finished"}
	}
}

// Shutdowner powers the machine off
type Shutdowner interface {
	Shutdown() error
}

// SystemShutdown issues the OS shutdown command and terminates the application
type SystemShutdown struct {
	logger    logger.Logger
	start     func(name string, args ...string) error
	terminate func(code int)
}

// NewSystemShutdown creates a shutdowner. A nil terminate exits the process.
func NewSystemShutdown(log logger.Logger, terminate func(code int)) *SystemShutdown {
	if log == nil {
		log = logger.Nop()
	}
	if terminate == nil {
		terminate = os.Exit
	}
	return &SystemShutdown{
		logger:    log,
		terminate: terminate,
		start: func(name string, args ...string) error {
			return exec.Command(name, args...).Start()
		},
	}
}

// WithStarter replaces how the shutdown command is launched
func (s *SystemShutdown) WithStarter(start func(name string, args ...string) error) *SystemShutdown {
	s.start = start
	return s
}

// Shutdown starts the delayed OS shutdown and terminates the application.
// The application keeps running if the command cannot be started.
func (s *SystemShutdown) Shutdown() error {
	name, args := process.ShutdownCommand()
	s.logger.Warn("Shutting down the machine", logger.WithField("command", name), logger.WithField("args", args))

	if err := s.start(name, args...); err != nil {
		return fmt.Errorf("start shutdown: %w", err)
	}
	s.terminate(0)
	return nil
}

package types

import (
	"errors"
	"fmt"
)

// Sentinel errors for build orchestration.
// These enable reliable error checking with errors.Is()
var (
	// ErrBusy indicates a process is already active
	ErrBusy = errors.New("a build is already running")

	// ErrCancelled indicates the user killed the active process
	ErrCancelled = errors.New("build cancelled by user")

	// ErrNotRunning indicates there is nothing to cancel
	ErrNotRunning = errors.New("no build is running")
)

// ValidationError reports bad input. No process is launched.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NewValidationError creates a validation error for a field
func NewValidationError(field, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// LaunchError reports that an executable could not be started
type LaunchError struct {
	Command string
	Err     error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("failed to launch %s: %v", e.Command, e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }

// ExitError reports a nonzero exit code
type ExitError struct {
	Stage StageState
	Code  int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s exited with code %d", e.Stage.DisplayName(), e.Code)
}

// IsValidation reports whether err is a ValidationError
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

package types_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/ubbuilder/ubb/pkg/types"
)

func TestJobStatus_ForwardOnly(t *testing.T) {
	tests := []struct {
		from, to types.JobStatus
		want     bool
	}{
		{types.JobPending, types.JobRunning, true},
		{types.JobRunning, types.JobSucceeded, true},
		{types.JobRunning, types.JobFailed, true},
		{types.JobPending, types.JobSucceeded, false},
		{types.JobSucceeded, types.JobRunning, false},
		{types.JobFailed, types.JobPending, false},
		{types.JobSucceeded, types.JobFailed, false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s->%s", tt.from, tt.to), func(t *testing.T) {
			if got := tt.from.CanAdvanceTo(tt.to); got != tt.want {
				t.Errorf("CanAdvanceTo = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStageState_DisplayName(t *testing.T) {
	if got := types.StageRunningEngineBuild.DisplayName(); got != "Engine" {
		t.Errorf("expected Engine, got %s", got)
	}
	if got := types.StageIdle.DisplayName(); got != "Idle" {
		t.Errorf("expected Idle, got %s", got)
	}
}

func TestErrors(t *testing.T) {
	err := fmt.Errorf("enqueue: %w", types.NewValidationError("manifest", "file %s does not exist", "a.uplugin"))
	if !types.IsValidation(err) {
		t.Fatal("expected wrapped validation error to be detected")
	}
	if err.Error() != "enqueue: manifest: file a.uplugin does not exist" {
		t.Errorf("unexpected message: %s", err.Error())
	}

	launch := &types.LaunchError{Command: "Setup.sh", Err: errors.New("missing")}
	if !errors.Is(launch, launch.Err) {
		t.Error("expected LaunchError to unwrap")
	}

	exit := &types.ExitError{Stage: types.StageRunningSetup, Code: 3}
	if exit.Error() != "Setup exited with code 3" {
		t.Errorf("unexpected exit message: %s", exit.Error())
	}
}

func TestBuildCounters_String(t *testing.T) {
	c := types.BuildCounters{Errors: 1, Warnings: 2, CompiledThisStep: 3, CompiledTotal: 4, CurrentStep: 5, TotalSteps: 6}
	want := "Step: [5/6] [Compiled: 3. Total: 4] 1 errors, 2 warnings"
	if c.String() != want {
		t.Errorf("got %q, want %q", c.String(), want)
	}
}

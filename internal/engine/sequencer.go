package engine

import (
	"github.com/ubbuilder/ubb/pkg/types"
)

// Pipeline names the stage chain a sequencer run walks through
type Pipeline int

const (
	// PipelineSetup runs Setup, project generation, the automation tool
	// build and optionally the engine build
	PipelineSetup Pipeline = iota
	// PipelineEngine runs only the engine build
	PipelineEngine
)

// Sequencer is the stage state machine. It holds no processes; the
// orchestrator asks it what comes next after each exit.
type Sequencer struct {
	stages []types.StageState
	pos    int
}

// NewSequencer plans the stages of a pipeline
func NewSequencer(p Pipeline, continueToEngine bool) *Sequencer {
	var stages []types.StageState
	switch p {
	case PipelineEngine:
		stages = []types.StageState{types.StageRunningEngineBuild}
	default:
		stages = []types.StageState{
			types.StageRunningSetup,
			types.StageRunningProjectGen,
			types.StageRunningAutomationToolBuild,
		}
		if continueToEngine {
			stages = append(stages, types.StageRunningEngineBuild)
		}
	}
	return &Sequencer{stages: stages, pos: -1}
}

// Stages returns the planned stages in order
func (s *Sequencer) Stages() []types.StageState {
	return append([]types.StageState(nil), s.stages...)
}

// Current returns the stage being executed, or Idle before Start and after
// the run is over
func (s *Sequencer) Current() types.StageState {
	if s.pos < 0 || s.pos >= len(s.stages) {
		return types.StageIdle
	}
	return s.stages[s.pos]
}

// Start moves to the first stage
func (s *Sequencer) Start() types.StageState {
	s.pos = 0
	return s.Current()
}

// Advance records the result of the current stage. A failed stage halts the
// run. done is true when nothing is left to launch.
func (s *Sequencer) Advance(success bool) (next types.StageState, done bool) {
	if s.pos < 0 || s.pos >= len(s.stages) {
		return types.StageIdle, true
	}
	if !success {
		s.pos = len(s.stages)
		return types.StageIdle, true
	}
	s.pos++
	if s.pos >= len(s.stages) {
		return types.StageIdle, true
	}
	return s.stages[s.pos], false
}

// Halt ends the run without another transition
func (s *Sequencer) Halt() {
	s.pos = len(s.stages)
}

package engine

import (
	"fmt"
	"path/filepath"

	"github.com/ubbuilder/ubb/pkg/archive"
	"github.com/ubbuilder/ubb/pkg/cmdline"
	"github.com/ubbuilder/ubb/pkg/logger"
	"github.com/ubbuilder/ubb/pkg/metrics"
	"github.com/ubbuilder/ubb/pkg/plugin"
	"github.com/ubbuilder/ubb/pkg/process"
	"github.com/ubbuilder/ubb/pkg/types"
	"github.com/ubbuilder/ubb/pkg/utils"
)

// prepareSetupRequest checks the engine tree and fills in the automation
// tool location when it was left empty
func prepareSetupRequest(req types.BuildRequest) (types.BuildRequest, error) {
	if !utils.DirectoryExists(req.EngineRoot) {
		return req, types.NewValidationError("engine_root", "engine source %q is not a directory", req.EngineRoot)
	}
	if req.AutomationToolPath == "" {
		req.AutomationToolPath = plugin.AutomationToolPath(req.EngineRoot)
	}
	return req, nil
}

// prepareEngineRequest applies the version gates to a copy of req. Platform
// toggles the selected engine cannot build are switched off and reported.
func prepareEngineRequest(req types.BuildRequest) (types.BuildRequest, []string, error) {
	index := req.EngineVersionIndex
	if index <= 0 || index > cmdline.MaxVersionIndex {
		return req, nil, types.NewValidationError("engine_version", "select an engine version")
	}
	if req.AutomationToolPath == "" {
		if req.EngineRoot == "" {
			return req, nil, types.NewValidationError("automation_tool", "automation tool path is not set")
		}
		req.AutomationToolPath = plugin.AutomationToolPath(req.EngineRoot)
	}

	var warnings []string
	name := cmdline.EngineName(index)

	if req.Platforms.HTML5 && !cmdline.SupportsHTML5(index) {
		req.Platforms.HTML5 = false
		warnings = append(warnings, fmt.Sprintf("HTML5 is not supported by engine %s. Disabled.", name))
	}
	if !cmdline.SupportsConsoles(index) {
		p := &req.Platforms
		if p.Switch || p.PS4 || p.XboxOne {
			p.Switch, p.PS4, p.XboxOne = false, false, false
			warnings = append(warnings, fmt.Sprintf("Console platforms are not supported by engine %s. Disabled.", name))
		}
	}

	return req, warnings, nil
}

// validateEngineFiles checks the parts of an engine request that live on disk
func validateEngineFiles(req types.BuildRequest) error {
	if cmdline.IsCustomScript(req) {
		script := req.CustomBuildScript
		if !filepath.IsAbs(script) && req.EngineRoot != "" {
			script = filepath.Join(req.EngineRoot, script)
		}
		if !utils.FileExists(script) {
			return types.NewValidationError("custom_build_script", "build script %q does not exist", req.CustomBuildScript)
		}
	}

	if req.PostBuild.ZipEnabled {
		if req.PostBuild.ZipPath == "" {
			return types.NewValidationError("zip_path", "zip path is not set")
		}
		if utils.DirectoryExists(req.PostBuild.ZipPath) {
			return types.NewValidationError("zip_path", "%q is a directory; give the path of the .zip file to write", req.PostBuild.ZipPath)
		}
		if dir := filepath.Dir(req.PostBuild.ZipPath); !archive.IsWritableDir(dir) {
			return types.NewValidationError("zip_path", "cannot write to %q", dir)
		}
	}
	return nil
}

// beginSequence resets run state for a new stage pipeline
func (o *Orchestrator) beginSequence(p Pipeline, req types.BuildRequest) {
	o.owner = types.OwnerSequencer
	o.req = req
	o.seq = NewSequencer(p, req.ContinueToEngineBuild)
	o.skipShutdown = false
	o.lastStage = types.StageIdle
	o.runStart = o.now()
	if o.sessionLog != nil {
		o.sessionLog.Reset()
	}
	o.resetCounters()
}

// startStage launches stage, skipping the automation tool build when the
// tool is already present
func (o *Orchestrator) startStage(stage types.StageState) {
	for stage == types.StageRunningAutomationToolBuild && utils.FileExists(o.req.AutomationToolPath) {
		o.emit(types.SeverityInfo, "Skip building Automation Tool. Already exists.")
		o.metrics.IncStageResult(stage.DisplayName(), metrics.ResultSkipped)
		o.lastStage = stage

		next, done := o.seq.Advance(true)
		if done {
			o.finishSequence(true, 0, false)
			return
		}
		stage = next
	}

	if err := o.launch(stage, o.stageSpec(stage), cmdline.EngineName(o.req.EngineVersionIndex)); err != nil {
		o.lastStage = stage
		o.seq.Halt()
		o.finishSequence(false, -1, false)
	}
}

func (o *Orchestrator) stageSpec(stage types.StageState) process.Spec {
	root := o.req.EngineRoot
	var spec process.Spec

	switch stage {
	case types.StageRunningSetup:
		args := cmdline.Setup(o.req.Setup)
		spec = process.Spec{Command: plugin.SetupPath(root), Args: args.Args(), CommandLine: args.String()}
	case types.StageRunningProjectGen:
		spec = process.Spec{Command: plugin.GenerateProjectFilesPath(root)}
	case types.StageRunningAutomationToolBuild:
		args := cmdline.AutomationToolCompile()
		spec = process.Spec{Command: plugin.RunUATPath(root), Args: args.Args(), CommandLine: args.String()}
	default:
		spec = engineSpec(o.req)
	}

	spec.Dir = root
	spec.Env = o.req.Env
	return spec
}

func engineSpec(req types.BuildRequest) process.Spec {
	args := cmdline.EngineBuild(req)
	return process.Spec{
		Command:     req.AutomationToolPath,
		Args:        args.Args(),
		CommandLine: args.String(),
	}
}

// finishSequence ends a stage pipeline. An engine build that was not
// cancelled goes through the post-build coordinator off the loop first.
func (o *Orchestrator) finishSequence(success bool, code int, cancelled bool) {
	if o.owner != types.OwnerSequencer {
		return
	}
	o.owner = types.OwnerNone
	o.active = nil
	o.lastSuccess = success
	o.setState(types.StageIdle)

	elapsed := o.now().Sub(o.runStart)
	outcome := types.Outcome{
		Owner:     types.OwnerSequencer,
		Stage:     o.lastStage,
		Success:   success,
		Cancelled: cancelled,
		ExitCode:  code,
		Elapsed:   elapsed,
		Counters:  o.counters,
	}
	if !cancelled {
		o.summary(elapsed)
	}

	opts := o.req.PostBuild
	fireShutdown := !cancelled && !o.skipShutdown

	if o.lastStage != types.StageRunningEngineBuild || cancelled {
		o.postBuild.FlushLog()
		o.complete(outcome, opts, fireShutdown)
		return
	}

	if success && opts.ZipEnabled {
		o.emit(types.SeverityInfo, fmt.Sprintf("Creating ZIP file %s", opts.ZipPath))
	}

	o.archiving = true
	ctx := o.ctx
	tool := o.req.AutomationToolPath
	go func() {
		res := o.postBuild.EngineBuildFinished(ctx, success, tool, opts)
		o.postBack(func() {
			o.archiving = false
			o.reportArchive(res.ArchivePath, res.Archive, res.Err)
			if res.LogPath != "" {
				o.logger.Info("Session log saved", logger.WithField("path", res.LogPath))
			}
			o.complete(outcome, opts, fireShutdown)
		})
	}()
}

// complete publishes the outcome of a sequencer run
func (o *Orchestrator) complete(outcome types.Outcome, opts types.PostBuildOptions, fireShutdown bool) {
	o.notifier.NotifyBuildFinished(outcome)
	o.observer.OnFinished(outcome)
	if fireShutdown {
		o.evaluateShutdown(opts, outcome.Success)
	}
}

func (o *Orchestrator) reportArchive(path string, stats archive.Stats, err error) {
	switch {
	case err != nil:
		o.emit(types.SeverityError, err.Error())
		o.notifier.Toast(types.SeverityError, err.Error())
	case path != "":
		o.emit(types.SeverityInfo, fmt.Sprintf("Created %s (%d files, %s)", path, stats.Files, utils.FormatBytes(stats.Bytes)))
	}
}

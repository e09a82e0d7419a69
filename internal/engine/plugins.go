package engine

import (
	"fmt"
	"strings"

	"github.com/ubbuilder/ubb/pkg/cmdline"
	"github.com/ubbuilder/ubb/pkg/logger"
	"github.com/ubbuilder/ubb/pkg/metrics"
	"github.com/ubbuilder/ubb/pkg/plugin"
	"github.com/ubbuilder/ubb/pkg/process"
	"github.com/ubbuilder/ubb/pkg/types"
)

// startNextPlugin launches the first pending job that is not already
// compiled. Jobs that fail to launch are marked failed and skipped; the
// last launch error is returned when nothing could be launched.
func (o *Orchestrator) startNextPlugin() (bool, error) {
	var launchErr error
	for _, job := range o.queue.Pending() {
		if !o.queue.IsValid(job) {
			if !o.refused[job.ID] {
				o.refused[job.ID] = true
				o.emit(types.SeverityWarning, fmt.Sprintf("%s is already compiled in %s. Remove it from the queue or clear the package location.",
					job.PluginName, job.DestinationPath))
			}
			continue
		}

		if err := o.queue.MarkRunning(job.ID); err != nil {
			o.logger.Warn("Cannot start plugin job", logger.WithField("id", job.ID), logger.WithField("error", err))
			continue
		}
		job.Status = types.JobRunning
		o.job = job
		o.resetCounters()
		o.pluginHeader(job)

		if err := o.launch(types.StageRunningPluginBuild, pluginSpec(job, o.pluginEnv), job.PluginName); err != nil {
			launchErr = err
			_ = o.queue.MarkFinished(job.ID, false)
			o.processed++
			o.failed++
			o.lastSuccess = false
			o.metrics.IncPluginJob(metrics.ResultFailed)
			continue
		}

		o.metrics.SetQueuePending(len(o.queue.Pending()))
		return true, nil
	}
	return false, launchErr
}

func pluginSpec(job types.PluginJob, env map[string]string) process.Spec {
	args := cmdline.Plugin(job)
	return process.Spec{
		Command:     plugin.RunUATPath(job.EngineRootPath),
		Args:        args.Args(),
		CommandLine: args.String(),
		Dir:         job.EngineRootPath,
		Env:         env,
	}
}

func (o *Orchestrator) pluginHeader(job types.PluginJob) {
	o.emit(types.SeverityInfo, fmt.Sprintf("==== BUILDING PLUGIN %s ====", strings.ToUpper(job.PluginName)))
	o.emit(types.SeverityInfo, "Plugin: "+job.ManifestPath)
	o.emit(types.SeverityInfo, "Package Location: "+job.DestinationPath)
	if job.EngineVersion != "" {
		o.emit(types.SeverityInfo, "Target Engine: "+job.EngineVersion)
	}
	if len(job.TargetPlatforms) > 0 {
		o.emit(types.SeverityInfo, "Target Platforms: "+strings.Join(job.TargetPlatforms, ", "))
	}
}

// finishJob records the exit of the running plugin job, archives the
// package when asked to and moves on to the next job
func (o *Orchestrator) finishJob(success bool, code int) {
	job := o.job
	if err := o.queue.MarkFinished(job.ID, success); err != nil {
		o.logger.Warn("Cannot finish plugin job", logger.WithField("id", job.ID), logger.WithField("error", err))
	}
	o.processed++
	o.lastSuccess = success
	if !success {
		o.failed++
	}
	o.metrics.IncPluginJob(metrics.ResultOf(types.Outcome{Success: success}))

	elapsed := o.now().Sub(o.stageStart)
	o.summary(elapsed)
	o.setState(types.StageIdle)
	o.notifier.NotifyBuildFinished(types.Outcome{
		Owner:    types.OwnerPlugins,
		Stage:    types.StageRunningPluginBuild,
		Success:  success,
		ExitCode: code,
		Elapsed:  elapsed,
		Counters: o.counters,
	})

	if !success || !job.ZipRequested {
		o.continueQueue()
		return
	}

	o.emit(types.SeverityInfo, fmt.Sprintf("Creating ZIP file for %s", job.PluginName))
	o.archiving = true
	ctx := o.ctx
	go func() {
		res := o.postBuild.PluginPackaged(ctx, job, true)
		o.postBack(func() {
			o.archiving = false
			o.reportArchive(res.ArchivePath, res.Archive, res.Err)
			o.continueQueue()
		})
	}()
}

func (o *Orchestrator) continueQueue() {
	if o.owner != types.OwnerPlugins {
		return
	}
	if launched, _ := o.startNextPlugin(); !launched {
		o.drainQueue(false)
	}
}

// drainQueue ends a plugin queue run
func (o *Orchestrator) drainQueue(cancelled bool) {
	if o.owner != types.OwnerPlugins {
		return
	}
	o.owner = types.OwnerNone
	o.setState(types.StageIdle)

	if !cancelled {
		o.emit(types.SeverityInfo, fmt.Sprintf("Finished plugin queue build with %d plugin(s)", o.processed))
		o.notifier.NotifyQueueDrained(o.processed)
	}
	o.postBuild.FlushLog()
	o.metrics.SetQueuePending(len(o.queue.Pending()))

	o.observer.OnFinished(types.Outcome{
		Owner:     types.OwnerPlugins,
		Stage:     types.StageRunningPluginBuild,
		Success:   !cancelled && o.failed == 0,
		Cancelled: cancelled,
		Elapsed:   o.now().Sub(o.runStart),
		Counters:  o.counters,
		Processed: o.processed,
	})

	if !cancelled && o.queuePolicy != nil {
		o.evaluateShutdown(o.queuePolicy(), o.lastSuccess)
	}
}

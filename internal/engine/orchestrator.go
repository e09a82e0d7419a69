// Package engine drives the stage sequencer and the plugin queue from a
// single control loop that owns all build state
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ubbuilder/ubb/pkg/classifier"
	"github.com/ubbuilder/ubb/pkg/logger"
	"github.com/ubbuilder/ubb/pkg/metrics"
	"github.com/ubbuilder/ubb/pkg/notifier"
	"github.com/ubbuilder/ubb/pkg/postbuild"
	"github.com/ubbuilder/ubb/pkg/process"
	"github.com/ubbuilder/ubb/pkg/queue"
	"github.com/ubbuilder/ubb/pkg/sessionlog"
	"github.com/ubbuilder/ubb/pkg/types"
	"github.com/ubbuilder/ubb/pkg/utils"
)

// ErrStopped is returned by commands issued after the control loop exited
var ErrStopped = errors.New("orchestrator is not running")

const eventBuffer = 256

// Options wires the orchestrator's collaborators. Only Runner is required.
type Options struct {
	Runner     process.Runner
	Observer   Observer
	Classifier *classifier.Classifier
	Queue      *queue.PluginQueue
	SessionLog *sessionlog.Log
	Archiver   postbuild.Archiver
	Shutdowner postbuild.Shutdowner
	Notifier   Notifier
	Metrics    metrics.Recorder
	Logger     logger.Logger

	// PluginEnv is merged into the environment of plugin builds
	PluginEnv map[string]string
	// QueuePolicy supplies the shutdown policy applied when the plugin
	// queue drains. Nil never shuts down.
	QueuePolicy func() types.PostBuildOptions

	Now func() time.Time
}

// Snapshot is a consistent view of the orchestrator state
type Snapshot struct {
	State     types.StageState
	Owner     types.Owner
	Counters  types.BuildCounters
	Jobs      []types.PluginJob
	Archiving bool
	Elapsed   time.Duration
}

// Orchestrator serializes every state change onto one goroutine.
// Public methods marshal closures onto it and wait for their result.
type Orchestrator struct {
	runner      process.Runner
	observer    Observer
	classifier  *classifier.Classifier
	queue       *queue.PluginQueue
	sessionLog  *sessionlog.Log
	postBuild   *postbuild.Coordinator
	shutdowner  postbuild.Shutdowner
	notifier    Notifier
	metrics     metrics.Recorder
	logger      logger.Logger
	pluginEnv   map[string]string
	queuePolicy func() types.PostBuildOptions
	now         func() time.Time

	commands chan func()
	events   chan process.Event
	done     chan struct{}
	running  atomic.Bool

	// Everything below is owned by the control loop
	ctx          context.Context
	state        types.StageState
	owner        types.Owner
	active       process.Handle
	cancelled    map[uint64]struct{}
	counters     types.BuildCounters
	archiving    bool
	runStart     time.Time
	stageStart   time.Time
	lastStage    types.StageState
	lastSuccess  bool
	seq          *Sequencer
	req          types.BuildRequest
	skipShutdown bool
	job          types.PluginJob
	processed    int
	failed       int
	refused      map[string]bool
}

// New creates an orchestrator. Call Run to start the control loop.
func New(opts Options) *Orchestrator {
	if opts.Runner == nil {
		panic("engine: Runner is required")
	}
	if opts.Observer == nil {
		opts.Observer = NopObserver{}
	}
	if opts.Classifier == nil {
		opts.Classifier = classifier.Default()
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	if opts.Queue == nil {
		opts.Queue = queue.New(opts.Logger)
	}
	if opts.Notifier == nil {
		opts.Notifier = nopNotifier{}
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NoopRecorder{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	var flusher postbuild.LogFlusher
	if opts.SessionLog != nil {
		flusher = opts.SessionLog
	}

	return &Orchestrator{
		runner:      opts.Runner,
		observer:    opts.Observer,
		classifier:  opts.Classifier,
		queue:       opts.Queue,
		sessionLog:  opts.SessionLog,
		postBuild:   postbuild.NewCoordinator(opts.Archiver, flusher, opts.Logger),
		shutdowner:  opts.Shutdowner,
		notifier:    opts.Notifier,
		metrics:     opts.Metrics,
		logger:      opts.Logger,
		pluginEnv:   opts.PluginEnv,
		queuePolicy: opts.QueuePolicy,
		now:         opts.Now,
		commands:    make(chan func()),
		events:      make(chan process.Event, eventBuffer),
		done:        make(chan struct{}),
		state:       types.StageIdle,
		cancelled:   make(map[uint64]struct{}),
		refused:     make(map[string]bool),
	}
}

// Run executes the control loop until ctx is cancelled. The active process,
// if any, is killed with its children on the way out.
func (o *Orchestrator) Run(ctx context.Context) error {
	if !o.running.CompareAndSwap(false, true) {
		return errors.New("orchestrator is already running")
	}
	defer close(o.done)

	o.ctx = ctx
	o.logger.Debug("Control loop started")

	for {
		select {
		case <-ctx.Done():
			o.teardown()
			return ctx.Err()
		case fn := <-o.commands:
			fn()
		case ev := <-o.events:
			o.handleEvent(ev)
		}
	}
}

func (o *Orchestrator) teardown() {
	if o.active == nil {
		return
	}
	o.logger.Warn("Stopping active build", logger.WithField("stage", o.state.DisplayName()))
	if err := o.active.Kill(true); err != nil {
		o.logger.Warn("Failed to kill build process", logger.WithField("error", err))
	}
	o.active = nil
}

// call runs fn on the control loop and waits for its result
func (o *Orchestrator) call(fn func() error) error {
	reply := make(chan error, 1)
	cmd := func() {
		reply <- process.Recover(o.logger, fn)
	}
	select {
	case o.commands <- cmd:
	case <-o.done:
		return ErrStopped
	}
	return <-reply
}

// postBack schedules fn on the control loop without waiting. Used by work
// that runs off the loop, such as archiving.
func (o *Orchestrator) postBack(fn func()) {
	select {
	case o.commands <- fn:
	case <-o.done:
	}
}

func (o *Orchestrator) busy() bool {
	return o.active != nil || o.owner != types.OwnerNone || o.archiving
}

// RunSetup runs Setup, GenerateProjectFiles and the automation tool build,
// followed by the engine build when the request asks to continue.
func (o *Orchestrator) RunSetup(req types.BuildRequest) error {
	return o.call(func() error {
		if o.busy() {
			return types.ErrBusy
		}
		req, err := prepareSetupRequest(req)
		if err != nil {
			return err
		}
		var warnings []string
		if req.ContinueToEngineBuild {
			if req, warnings, err = prepareEngineRequest(req); err != nil {
				return err
			}
			if err := validateEngineFiles(req); err != nil {
				return err
			}
		}

		o.beginSequence(PipelineSetup, req)
		o.warnAll(warnings)
		o.startStage(o.seq.Start())
		return nil
	})
}

// BuildEngine starts an installed engine build directly
func (o *Orchestrator) BuildEngine(req types.BuildRequest) error {
	return o.call(func() error {
		if o.busy() {
			return types.ErrBusy
		}
		req, warnings, err := prepareEngineRequest(req)
		if err != nil {
			return err
		}
		if err := validateEngineFiles(req); err != nil {
			return err
		}

		o.beginSequence(PipelineEngine, req)
		o.warnAll(warnings)

		if req.PostBuild.SkipIfBuilt {
			if dir := postbuild.FinalBuildPath(req.AutomationToolPath); utils.DirectoryExists(dir) {
				o.emit(types.SeverityInfo, fmt.Sprintf("Engine build already available at %s. Skipping engine build.", dir))
				o.skipShutdown = true
				o.lastStage = types.StageRunningEngineBuild
				o.seq.Halt()
				o.finishSequence(true, 0, false)
				return nil
			}
		}

		o.startStage(o.seq.Start())
		return nil
	})
}

// EngineCommandLine returns the BuildGraph arguments BuildEngine would use
func (o *Orchestrator) EngineCommandLine(req types.BuildRequest) (string, error) {
	req, _, err := prepareEngineRequest(req)
	if err != nil {
		return "", err
	}
	return engineSpec(req).CommandLine, nil
}

// EnqueuePlugin validates and appends a plugin job
func (o *Orchestrator) EnqueuePlugin(job types.PluginJob) (types.PluginJob, error) {
	var queued types.PluginJob
	err := o.call(func() error {
		j, warnings, err := o.queue.Enqueue(job)
		if err != nil {
			return err
		}
		queued = j
		o.warnAll(warnings)
		o.emit(types.SeverityInfo, fmt.Sprintf("Queued plugin %s for engine %s", j.PluginName, j.EngineVersion))
		o.metrics.SetQueuePending(len(o.queue.Pending()))
		return nil
	})
	return queued, err
}

// RemovePlugin drops a job that is not running
func (o *Orchestrator) RemovePlugin(id string) error {
	return o.call(func() error {
		if err := o.queue.Remove(id); err != nil {
			return err
		}
		o.metrics.SetQueuePending(len(o.queue.Pending()))
		return nil
	})
}

// StartPluginQueue builds pending plugin jobs one at a time until none are left
func (o *Orchestrator) StartPluginQueue() error {
	return o.call(func() error {
		if o.busy() {
			return types.ErrBusy
		}
		if o.queue.Len() == 0 {
			return types.NewValidationError("queue", "plugin queue is empty")
		}
		if len(o.queue.Pending()) == 0 {
			return types.NewValidationError("queue", "no pending plugin jobs")
		}

		o.owner = types.OwnerPlugins
		o.processed = 0
		o.failed = 0
		o.lastSuccess = false
		o.refused = make(map[string]bool)
		o.runStart = o.now()
		if o.sessionLog != nil {
			o.sessionLog.Reset()
		}

		launched, err := o.startNextPlugin()
		switch {
		case launched:
			return nil
		case o.processed > 0:
			// Every remaining job failed to launch
			o.drainQueue(false)
			return err
		default:
			o.owner = types.OwnerNone
			return types.NewValidationError("queue", "every pending plugin is already compiled")
		}
	})
}

// CancelCurrent kills the active process and returns to Idle immediately.
// The process's own exit event is ignored when it arrives.
func (o *Orchestrator) CancelCurrent() error {
	return o.call(func() error {
		if o.active == nil {
			return types.ErrNotRunning
		}

		h := o.active
		stage := o.state
		o.active = nil
		o.cancelled[h.ID()] = struct{}{}

		if err := h.Kill(stage == types.StageRunningEngineBuild); err != nil {
			o.logger.Warn("Failed to kill build process", logger.WithField("error", err))
		}
		o.emit(types.SeverityWarning, fmt.Sprintf("%s cancelled by user", stage.DisplayName()))
		o.metrics.IncStageResult(stage.DisplayName(), metrics.ResultCanceled)

		switch o.owner {
		case types.OwnerSequencer:
			o.seq.Halt()
			o.finishSequence(false, -1, true)
		case types.OwnerPlugins:
			if err := o.queue.MarkFinished(o.job.ID, false); err != nil {
				o.logger.Debug("Cancelled job already finished", logger.WithField("error", err))
			}
			o.processed++
			o.failed++
			o.metrics.IncPluginJob(metrics.ResultCanceled)
			o.drainQueue(true)
		default:
			o.setState(types.StageIdle)
		}
		return nil
	})
}

// Snapshot returns the current state, counters and queue
func (o *Orchestrator) Snapshot() (Snapshot, error) {
	var snap Snapshot
	err := o.call(func() error {
		snap = Snapshot{
			State:     o.state,
			Owner:     o.owner,
			Counters:  o.counters,
			Jobs:      o.queue.Jobs(),
			Archiving: o.archiving,
		}
		if o.owner != types.OwnerNone {
			snap.Elapsed = o.now().Sub(o.runStart)
		}
		return nil
	})
	return snap, err
}

func (o *Orchestrator) handleEvent(ev process.Event) {
	if _, ok := o.cancelled[ev.Handle]; ok {
		if ev.Kind == process.EventExit {
			delete(o.cancelled, ev.Handle)
		}
		return
	}
	if o.active == nil || ev.Handle != o.active.ID() {
		o.logger.Debug("Ignoring event from stale process", logger.WithField("handle", ev.Handle))
		return
	}

	err := process.Recover(o.logger, func() error {
		switch ev.Kind {
		case process.EventLine:
			o.handleLine(ev.Line, ev.IsError)
		case process.EventTick:
			o.handleTick()
		case process.EventExit:
			o.handleExit(ev.ExitCode)
		}
		return nil
	})
	if err != nil {
		o.abort(err)
	}
}

func (o *Orchestrator) handleLine(line string, isError bool) {
	res := o.classifier.Classify(line, isError)

	before := o.counters
	classifier.Apply(&o.counters, res.Instructions)
	o.record(res.Record)

	if o.counters != before {
		o.observer.OnCounters(o.counters)
	}
}

func (o *Orchestrator) handleTick() {
	elapsed := o.now().Sub(o.stageStart)
	o.observer.OnStatus(fmt.Sprintf("%s - Elapsed %s - %s",
		o.state.DisplayName(), notifier.FormatDuration(elapsed), o.counters.String()))
}

func (o *Orchestrator) handleExit(code int) {
	stage := o.state
	success := code == 0
	o.active = nil

	severity := types.SeverityInfo
	result := metrics.ResultSuccess
	if !success {
		severity = types.SeverityError
		result = metrics.ResultFailed
	}
	o.emit(severity, fmt.Sprintf("%s exited with code %d", stage.DisplayName(), code))

	o.metrics.ObserveStageDuration(stage.DisplayName(), o.now().Sub(o.stageStart))
	o.metrics.IncStageResult(stage.DisplayName(), result)
	o.metrics.ObserveCounters(stage.DisplayName(), o.counters)

	switch o.owner {
	case types.OwnerSequencer:
		next, done := o.seq.Advance(success)
		if done {
			o.finishSequence(success, code, false)
			return
		}
		o.startStage(next)
	case types.OwnerPlugins:
		o.finishJob(success, code)
	}
}

// abort downgrades a panic during event handling to a failed run
func (o *Orchestrator) abort(cause error) {
	stage := o.state
	if o.active != nil {
		o.cancelled[o.active.ID()] = struct{}{}
		if err := o.active.Kill(true); err != nil {
			o.logger.Warn("Failed to kill build process", logger.WithField("error", err))
		}
		o.active = nil
	}
	o.emit(types.SeverityError, fmt.Sprintf("%s failed: %v", stage.DisplayName(), cause))

	switch o.owner {
	case types.OwnerSequencer:
		o.seq.Halt()
		o.finishSequence(false, -1, false)
	case types.OwnerPlugins:
		if job, ok := o.queue.Get(o.job.ID); ok && job.Status == types.JobRunning {
			_ = o.queue.MarkFinished(job.ID, false)
			o.processed++
			o.failed++
		}
		o.drainQueue(false)
	default:
		o.setState(types.StageIdle)
	}
}

// launch starts a process for stage. Launch failures are logged and toasted
// and leave the orchestrator without an active handle.
func (o *Orchestrator) launch(stage types.StageState, spec process.Spec, detail string) error {
	spec.Owner = o.owner
	h, err := o.runner.Start(o.ctx, spec, o.events)
	if err != nil {
		o.emit(types.SeverityError, err.Error())
		o.notifier.Toast(types.SeverityError, err.Error())
		return err
	}

	o.active = h
	o.stageStart = o.now()
	o.lastStage = stage
	o.setState(stage)
	o.emit(types.SeverityInfo, fmt.Sprintf("%s %s", spec.Command, spec.CommandLine))
	o.notifier.NotifyStageStarted(stage, detail)
	return nil
}

func (o *Orchestrator) setState(s types.StageState) {
	if o.state == s {
		return
	}
	o.state = s
	o.observer.OnState(s)
}

func (o *Orchestrator) resetCounters() {
	o.counters = types.BuildCounters{}
	o.observer.OnCounters(o.counters)
}

func (o *Orchestrator) record(rec types.LogRecord) {
	if o.sessionLog != nil {
		o.sessionLog.Append(rec)
	}
	o.observer.OnLog(rec)
}

func (o *Orchestrator) emit(severity types.Severity, text string) {
	o.record(types.LogRecord{Text: text, Severity: severity, Timestamp: o.now()})
}

func (o *Orchestrator) warnAll(warnings []string) {
	for _, w := range warnings {
		o.emit(types.SeverityWarning, w)
	}
}

// summary closes the log of a finished build
func (o *Orchestrator) summary(elapsed time.Duration) {
	o.emit(types.SeverityInfo, "=== BUILD FINISHED ===")
	o.emit(types.SeverityInfo, fmt.Sprintf("Compiled approximately %d files.", o.counters.CompiledTotal))
	o.emit(types.SeverityInfo, fmt.Sprintf("Took %s", notifier.FormatDuration(elapsed)))
	o.emit(types.SeverityInfo, fmt.Sprintf("Build ended at %s", o.now().Format("Monday, January 2, 2006 3:04:05 PM")))
}

func (o *Orchestrator) evaluateShutdown(opts types.PostBuildOptions, lastSuccess bool) {
	d := postbuild.EvaluateShutdown(opts, lastSuccess)
	if !d.Fire {
		o.logger.Debug("Not shutting down", logger.WithField("reason", d.Reason))
		return
	}
	if o.shutdowner == nil {
		o.logger.Warn("Shutdown requested but no shutdowner is configured")
		return
	}

	o.emit(types.SeverityWarning, fmt.Sprintf("Shutting down the machine: %s", d.Reason))
	if o.sessionLog != nil {
		o.postBuild.FlushLog()
	}
	if err := o.shutdowner.Shutdown(); err != nil {
		o.emit(types.SeverityError, fmt.Sprintf("Shutdown failed: %v", err))
	}
}

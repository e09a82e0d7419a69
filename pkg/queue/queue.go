// Package queue holds the FIFO queue of plugin packaging jobs
package queue

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/google/uuid"
	"github.com/ubbuilder/ubb/pkg/cmdline"
	"github.com/ubbuilder/ubb/pkg/logger"
	"github.com/ubbuilder/ubb/pkg/plugin"
	"github.com/ubbuilder/ubb/pkg/types"
)

// Sentinel errors for queue operations
var (
	// ErrJobNotFound indicates no job has the given ID
	ErrJobNotFound = errors.New("plugin job not found")

	// ErrJobRunning indicates the job is running and cannot be removed
	ErrJobRunning = errors.New("plugin job is running")

	// ErrInvalidTransition indicates a status change that is not forward
	ErrInvalidTransition = errors.New("invalid job status transition")
)

// PluginQueue keeps plugin jobs in insertion order
type PluginQueue struct {
	logger logger.Logger
	jobs   []*types.PluginJob
	mu     sync.RWMutex
}

// New creates an empty queue
func New(log logger.Logger) *PluginQueue {
	if log == nil {
		log = logger.Nop()
	}
	return &PluginQueue{logger: log}
}

// Enqueue validates job, fills in what the descriptor provides and appends it.
// Returned warnings describe options that were adjusted. On error the queue is
// unchanged.
func (q *PluginQueue) Enqueue(job types.PluginJob) (types.PluginJob, []string, error) {
	if err := validate(job); err != nil {
		return types.PluginJob{}, nil, err
	}

	manifest, err := plugin.ReadManifest(job.ManifestPath)
	if err != nil {
		return types.PluginJob{}, nil, types.NewValidationError("manifest", "%v", err)
	}

	var warnings []string

	job.ID = uuid.New().String()
	job.Status = types.JobPending
	job.PluginName = manifest.Name()

	if job.EngineVersion == "" {
		if v, err := plugin.DetectEngineVersion(job.EngineRootPath); err == nil {
			job.EngineVersion = fmt.Sprintf("%d.%d", v.Major(), v.Minor())
		}
	}

	if job.UseAltCompiler && !cmdline.SupportsAltCompiler(job.EngineVersion) {
		job.UseAltCompiler = false
		warnings = append(warnings, fmt.Sprintf("VS2019 compiler requires engine 4.25 or newer (%s). Using default compiler.", versionLabel(job.EngineVersion)))
	}

	if job.UseManifestPlatforms && len(job.TargetPlatforms) == 0 {
		job.TargetPlatforms = manifest.WhitelistPlatforms()
	}
	job.TargetPlatforms = append([]string(nil), job.TargetPlatforms...)

	q.mu.Lock()
	stored := job
	q.jobs = append(q.jobs, &stored)
	size := len(q.jobs)
	q.mu.Unlock()

	q.logger.Debug("Plugin queued",
		logger.WithField("plugin", job.PluginName),
		logger.WithField("id", job.ID),
		logger.WithField("queue_size", size))

	for _, w := range warnings {
		q.logger.Warn(w, logger.WithField("plugin", job.PluginName))
	}

	return job, warnings, nil
}

func validate(job types.PluginJob) error {
	info, err := os.Stat(job.ManifestPath)
	if job.ManifestPath == "" || err != nil || info.IsDir() {
		return types.NewValidationError("manifest", "plugin descriptor %q does not exist", job.ManifestPath)
	}

	info, err = os.Stat(job.DestinationPath)
	if job.DestinationPath == "" || err != nil || !info.IsDir() {
		return types.NewValidationError("destination", "package location %q is not a directory", job.DestinationPath)
	}

	if job.EngineRootPath == "" {
		return types.NewValidationError("engine", "engine selection is invalid")
	}

	if job.ZipRequested {
		info, err = os.Stat(job.ZipDestination)
		if job.ZipDestination == "" || err != nil || !info.IsDir() {
			return types.NewValidationError("zip", "zip location %q is not a directory", job.ZipDestination)
		}
	}
	return nil
}

func versionLabel(v string) string {
	if v == "" {
		return "unknown version"
	}
	return v
}

// Remove deletes a job that is not running
func (q *PluginQueue) Remove(id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, job := range q.jobs {
		if job.ID != id {
			continue
		}
		if job.Status == types.JobRunning {
			return ErrJobRunning
		}
		q.jobs = append(q.jobs[:i], q.jobs[i+1:]...)
		return nil
	}
	return ErrJobNotFound
}

// Jobs returns a copy of all jobs in queue order
func (q *PluginQueue) Jobs() []types.PluginJob {
	q.mu.RLock()
	defer q.mu.RUnlock()

	out := make([]types.PluginJob, len(q.jobs))
	for i, job := range q.jobs {
		out[i] = *job
	}
	return out
}

// Len returns the number of jobs in the queue
func (q *PluginQueue) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.jobs)
}

// Get returns the job with the given ID
func (q *PluginQueue) Get(id string) (types.PluginJob, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if job := q.find(id); job != nil {
		return *job, true
	}
	return types.PluginJob{}, false
}

// IsPending reports whether the job exists and has not started
func (q *PluginQueue) IsPending(id string) bool {
	job, ok := q.Get(id)
	return ok && job.Status == types.JobPending
}

// IsValid reports whether job still needs building. A job whose destination
// already contains the packaged plugin is "already compiled".
func (q *PluginQueue) IsValid(job types.PluginJob) bool {
	return !plugin.IsPackaged(job.DestinationPath, job.PluginName)
}

// Pending returns pending jobs in queue order
func (q *PluginQueue) Pending() []types.PluginJob {
	q.mu.RLock()
	defer q.mu.RUnlock()

	var out []types.PluginJob
	for _, job := range q.jobs {
		if job.Status == types.JobPending {
			out = append(out, *job)
		}
	}
	return out
}

// Running returns the running job, if any
func (q *PluginQueue) Running() (types.PluginJob, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	for _, job := range q.jobs {
		if job.Status == types.JobRunning {
			return *job, true
		}
	}
	return types.PluginJob{}, false
}

// MarkRunning moves a pending job to running
func (q *PluginQueue) MarkRunning(id string) error {
	return q.advance(id, types.JobRunning)
}

// MarkFinished moves a running job to succeeded or failed
func (q *PluginQueue) MarkFinished(id string, success bool) error {
	next := types.JobFailed
	if success {
		next = types.JobSucceeded
	}
	return q.advance(id, next)
}

func (q *PluginQueue) advance(id string, next types.JobStatus) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	job := q.find(id)
	if job == nil {
		return ErrJobNotFound
	}
	if !job.Status.CanAdvanceTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, job.Status, next)
	}
	job.Status = next
	return nil
}

func (q *PluginQueue) find(id string) *types.PluginJob {
	for _, job := range q.jobs {
		if job.ID == id {
			return job
		}
	}
	return nil
}

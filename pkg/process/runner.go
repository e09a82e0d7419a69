// Package process launches external build tools and streams their output
package process

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ubbuilder/ubb/pkg/logger"
	"github.com/ubbuilder/ubb/pkg/types"
)

// EventKind identifies what a runner event carries
type EventKind int

const (
	// EventLine is one line of stdout or stderr
	EventLine EventKind = iota
	// EventTick is emitted once per tick interval while the process runs
	EventTick
	// EventExit is always the last event of a handle
	EventExit
)

// Event is delivered to the orchestrator loop.
// Exit is only sent after both output streams are fully drained.
type Event struct {
	Handle   uint64
	Owner    types.Owner
	Kind     EventKind
	Line     string
	IsError  bool
	ExitCode int
}

// Spec describes one process launch
type Spec struct {
	Command string
	Args    []string
	// CommandLine is the verbatim argument string. On Windows it replaces
	// the escaped Args so tools receive exactly what was built.
	CommandLine string
	Dir         string
	Env         map[string]string
	Owner       types.Owner
}

// Handle controls a started process
type Handle interface {
	ID() uint64
	Kill(tree bool) error
	Done() <-chan struct{}
}

// Runner starts processes and reports their output as events
type Runner interface {
	Start(ctx context.Context, spec Spec, events chan<- Event) (Handle, error)
}

const (
	// DefaultTickInterval drives elapsed-time updates while a stage runs
	DefaultTickInterval = time.Second

	// MaxLineSize caps a single output line. Longer lines are cut and
	// end with TruncatedSuffix; the rest of the line is still drained.
	MaxLineSize = 1024 * 1024

	TruncatedSuffix = " [line truncated]"
)

var handleSeq atomic.Uint64

// NextHandleID allocates a process handle identifier, unique per process lifetime
func NextHandleID() uint64 {
	return handleSeq.Add(1)
}

// ExecRunner runs real processes with os/exec
type ExecRunner struct {
	logger       logger.Logger
	tickInterval time.Duration
}

// NewExecRunner creates a runner. A zero tick interval uses DefaultTickInterval.
func NewExecRunner(log logger.Logger, tick time.Duration) *ExecRunner {
	if tick <= 0 {
		tick = DefaultTickInterval
	}
	if log == nil {
		log = logger.Nop()
	}
	return &ExecRunner{logger: log, tickInterval: tick}
}

type execHandle struct {
	id       uint64
	cmd      *exec.Cmd
	done     chan struct{}
	killOnce sync.Once
	killErr  error
}

func (h *execHandle) ID() uint64            { return h.id }
func (h *execHandle) Done() <-chan struct{} { return h.done }

// Kill terminates the process, and its descendants when tree is set.
// Repeated calls are no-ops.
func (h *execHandle) Kill(tree bool) error {
	h.killOnce.Do(func() {
		select {
		case <-h.done:
			return
		default:
		}
		if h.cmd.Process == nil {
			return
		}
		if tree {
			h.killErr = killTree(h.cmd.Process.Pid)
			if h.killErr == nil {
				return
			}
		}
		if err := h.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			h.killErr = err
		}
	})
	return h.killErr
}

// Start launches spec and streams its output into events.
// A command that cannot be found or started yields a *types.LaunchError.
func (r *ExecRunner) Start(ctx context.Context, spec Spec, events chan<- Event) (Handle, error) {
	path, err := resolveCommand(spec.Command)
	if err != nil {
		return nil, &types.LaunchError{Command: spec.Command, Err: err}
	}

	cmd := exec.Command(path, spec.Args...)
	cmd.Dir = spec.Dir
	cmd.Env = MergeEnv(os.Environ(), spec.Env)
	configureCommand(cmd, path, spec)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, &types.LaunchError{Command: spec.Command, Err: err}
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, &types.LaunchError{Command: spec.Command, Err: err}
	}

	if err := cmd.Start(); err != nil {
		return nil, &types.LaunchError{Command: spec.Command, Err: err}
	}

	h := &execHandle{
		id:   NextHandleID(),
		cmd:  cmd,
		done: make(chan struct{}),
	}

	r.logger.Debug("Process started",
		logger.WithField("command", spec.Command),
		logger.WithField("pid", cmd.Process.Pid),
		logger.WithField("handle", h.id))

	send := func(ev Event) {
		ev.Handle = h.id
		ev.Owner = spec.Owner
		select {
		case events <- ev:
		case <-ctx.Done():
		}
	}

	streams, _ := NewSafeGroup(context.Background(), r.logger)
	streams.Go(func() error { return scanLines(stdout, false, send) })
	streams.Go(func() error { return scanLines(stderr, true, send) })

	stopTicks := make(chan struct{})
	go func() {
		ticker := time.NewTicker(r.tickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stopTicks:
				return
			case <-ticker.C:
				send(Event{Kind: EventTick})
			}
		}
	}()

	go func() {
		if err := streams.Wait(); err != nil {
			r.logger.Warn("Output stream ended with error", logger.WithField("error", err))
		}
		waitErr := cmd.Wait()
		close(stopTicks)
		close(h.done)

		code := exitCode(waitErr)
		r.logger.Debug("Process exited",
			logger.WithField("handle", h.id),
			logger.WithField("code", code))
		send(Event{Kind: EventExit, ExitCode: code})
	}()

	return h, nil
}

func scanLines(r io.Reader, isError bool, send func(Event)) error {
	br := bufio.NewReaderSize(r, 64*1024)
	var line []byte
	truncated := false

	flush := func() {
		text := strings.TrimRight(string(line), "\r")
		if truncated {
			text += TruncatedSuffix
		}
		send(Event{Kind: EventLine, Line: text, IsError: isError})
		line = line[:0]
		truncated = false
	}

	for {
		chunk, isPrefix, err := br.ReadLine()
		if len(chunk) > 0 && !truncated {
			if room := MaxLineSize - len(line); len(chunk) > room {
				chunk = chunk[:room]
				truncated = true
			}
			line = append(line, chunk...)
		}
		if err != nil {
			if len(line) > 0 || truncated {
				flush()
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if !isPrefix {
			flush()
		}
	}
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

func resolveCommand(command string) (string, error) {
	if command == "" {
		return "", errors.New("empty command")
	}
	if strings.ContainsAny(command, `/\`) {
		info, err := os.Stat(command)
		if err != nil {
			return "", err
		}
		if info.IsDir() {
			return "", errors.New("command is a directory")
		}
		return command, nil
	}
	return exec.LookPath(command)
}

// MergeEnv overlays overrides on base (KEY=VALUE entries).
// Keys compare case-insensitively on Windows.
func MergeEnv(base []string, overrides map[string]string) []string {
	if len(overrides) == 0 {
		return base
	}

	normalize := func(k string) string {
		if runtime.GOOS == "windows" {
			return strings.ToUpper(k)
		}
		return k
	}

	merged := make([]string, 0, len(base)+len(overrides))
	index := make(map[string]int, len(base))
	for _, kv := range base {
		key := kv
		if i := strings.IndexByte(kv, '='); i > 0 {
			key = kv[:i]
		}
		if pos, ok := index[normalize(key)]; ok {
			merged[pos] = kv
			continue
		}
		index[normalize(key)] = len(merged)
		merged = append(merged, kv)
	}

	for key, value := range overrides {
		kv := key + "=" + value
		if pos, ok := index[normalize(key)]; ok {
			merged[pos] = kv
			continue
		}
		index[normalize(key)] = len(merged)
		merged = append(merged, kv)
	}
	return merged
}

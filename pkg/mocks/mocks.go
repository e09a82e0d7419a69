// Package mocks provides test doubles for the process runner and the
// orchestrator's collaborators.
package mocks

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ubbuilder/ubb/pkg/archive"
	"github.com/ubbuilder/ubb/pkg/process"
	"github.com/ubbuilder/ubb/pkg/types"
)

// DefaultWait bounds how long helpers wait for asynchronous results
const DefaultWait = 5 * time.Second

// MockHandle is a process handle that never runs anything
type MockHandle struct {
	id     uint64
	mu     sync.Mutex
	kills  []bool
	done   chan struct{}
	closed bool
}

func newMockHandle() *MockHandle {
	return &MockHandle{id: process.NextHandleID(), done: make(chan struct{})}
}

// ID implements process.Handle
func (h *MockHandle) ID() uint64 { return h.id }

// Done implements process.Handle
func (h *MockHandle) Done() <-chan struct{} { return h.done }

// Kill records the request and closes Done
func (h *MockHandle) Kill(tree bool) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.kills = append(h.kills, tree)
	if !h.closed {
		h.closed = true
		close(h.done)
	}
	return nil
}

// Kills returns the tree flag of every Kill call
func (h *MockHandle) Kills() []bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]bool(nil), h.kills...)
}

// Call is one Start invocation captured by MockRunner
type Call struct {
	Spec   process.Spec
	Handle *MockHandle
	events chan<- process.Event
}

// Line sends a stdout line for the call's process
func (c Call) Line(text string) {
	c.send(process.Event{Kind: process.EventLine, Line: text})
}

// ErrorLine sends a stderr line for the call's process
func (c Call) ErrorLine(text string) {
	c.send(process.Event{Kind: process.EventLine, Line: text, IsError: true})
}

// Tick sends an elapsed-time tick
func (c Call) Tick() {
	c.send(process.Event{Kind: process.EventTick})
}

// Exit sends the terminal event
func (c Call) Exit(code int) {
	c.send(process.Event{Kind: process.EventExit, ExitCode: code})
}

func (c Call) send(ev process.Event) {
	ev.Handle = c.Handle.id
	ev.Owner = c.Spec.Owner
	c.events <- ev
}

// MockRunner is a process.Runner whose processes are driven by the test
type MockRunner struct {
	mu       sync.Mutex
	calls    chan Call
	startErr error
}

// NewMockRunner creates a runner that buffers up to 32 unclaimed starts
func NewMockRunner() *MockRunner {
	return &MockRunner{calls: make(chan Call, 32)}
}

// SetStartError makes subsequent Start calls fail with err
func (r *MockRunner) SetStartError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.startErr = err
}

// Start implements process.Runner
func (r *MockRunner) Start(_ context.Context, spec process.Spec, events chan<- process.Event) (process.Handle, error) {
	r.mu.Lock()
	err := r.startErr
	r.mu.Unlock()
	if err != nil {
		return nil, &types.LaunchError{Command: spec.Command, Err: err}
	}

	h := newMockHandle()
	r.calls <- Call{Spec: spec, Handle: h, events: events}
	return h, nil
}

// Next waits for the next Start call
func (r *MockRunner) Next(t testing.TB) Call {
	t.Helper()
	select {
	case c := <-r.calls:
		return c
	case <-time.After(DefaultWait):
		t.Fatal("timed out waiting for a process to start")
		return Call{}
	}
}

// Pending returns the number of started processes not yet claimed by Next
func (r *MockRunner) Pending() int {
	return len(r.calls)
}

// MockObserver records everything the orchestrator reports
type MockObserver struct {
	mu       sync.Mutex
	logs     []types.LogRecord
	states   []types.StageState
	counters []types.BuildCounters
	statuses []string
	finished chan types.Outcome
	lines    chan string
	onLog    func(types.LogRecord)
}

// NewMockObserver creates an observer with buffered outcome delivery
func NewMockObserver() *MockObserver {
	return &MockObserver{
		finished: make(chan types.Outcome, 16),
		lines:    make(chan string, 1024),
	}
}

// SetLogHook runs fn for every log record before it is stored
func (m *MockObserver) SetLogHook(fn func(types.LogRecord)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onLog = fn
}

func (m *MockObserver) OnLog(rec types.LogRecord) {
	m.mu.Lock()
	hook := m.onLog
	m.mu.Unlock()
	if hook != nil {
		hook(rec)
	}

	m.mu.Lock()
	m.logs = append(m.logs, rec)
	m.mu.Unlock()

	select {
	case m.lines <- rec.Text:
	default:
	}
}

func (m *MockObserver) OnCounters(c types.BuildCounters) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters = append(m.counters, c)
}

func (m *MockObserver) OnState(s types.StageState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states = append(m.states, s)
}

func (m *MockObserver) OnStatus(status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses = append(m.statuses, status)
}

func (m *MockObserver) OnFinished(o types.Outcome) {
	m.finished <- o
}

// Finished waits for the next outcome
func (m *MockObserver) Finished(t testing.TB) types.Outcome {
	t.Helper()
	select {
	case o := <-m.finished:
		return o
	case <-time.After(DefaultWait):
		t.Fatal("timed out waiting for the build to finish")
		return types.Outcome{}
	}
}

// WaitForLine waits until a log line containing substr is reported
func (m *MockObserver) WaitForLine(t testing.TB, substr string) {
	t.Helper()
	deadline := time.After(DefaultWait)
	for {
		select {
		case line := <-m.lines:
			if strings.Contains(line, substr) {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for log line %q", substr)
		}
	}
}

// Logs returns a copy of the recorded log records
func (m *MockObserver) Logs() []types.LogRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]types.LogRecord(nil), m.logs...)
}

// HasLog reports whether a record containing substr was logged
func (m *MockObserver) HasLog(substr string) bool {
	return m.CountLogs(substr) > 0
}

// CountLogs counts records containing substr
func (m *MockObserver) CountLogs(substr string) int {
	n := 0
	for _, rec := range m.Logs() {
		if strings.Contains(rec.Text, substr) {
			n++
		}
	}
	return n
}

// States returns the reported state transitions
func (m *MockObserver) States() []types.StageState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]types.StageState(nil), m.states...)
}

// LastCounters returns the most recent counters, or zero counters
func (m *MockObserver) LastCounters() types.BuildCounters {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.counters) == 0 {
		return types.BuildCounters{}
	}
	return m.counters[len(m.counters)-1]
}

// Statuses returns the reported status lines
func (m *MockObserver) Statuses() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.statuses...)
}

// ArchiveCall is one captured archive request
type ArchiveCall struct {
	Src  string
	Dest string
	Opts archive.Options
}

// MockArchiver records archive requests without touching the disk
type MockArchiver struct {
	mu    sync.Mutex
	calls []ArchiveCall
	err   error
}

// NewMockArchiver creates a new mock archiver
func NewMockArchiver() *MockArchiver {
	return &MockArchiver{}
}

// SetError makes subsequent archives fail
func (a *MockArchiver) SetError(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.err = err
}

// Archive implements postbuild.Archiver
func (a *MockArchiver) Archive(_ context.Context, src, dest string, opts archive.Options) (archive.Stats, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, ArchiveCall{Src: src, Dest: dest, Opts: opts})
	if a.err != nil {
		return archive.Stats{}, a.err
	}
	return archive.Stats{Files: 1, Bytes: 1}, nil
}

// Calls returns the captured archive requests
func (a *MockArchiver) Calls() []ArchiveCall {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]ArchiveCall(nil), a.calls...)
}

// MockShutdowner counts shutdown requests
type MockShutdowner struct {
	mu    sync.Mutex
	count int
}

// Shutdown implements postbuild.Shutdowner
func (s *MockShutdowner) Shutdown() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count++
	return nil
}

// Count returns how many times Shutdown was called
func (s *MockShutdowner) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// MockNotifier records notifications
type MockNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (n *MockNotifier) add(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, msg)
}

func (n *MockNotifier) Toast(severity types.Severity, message string) {
	n.add(string(severity) + ": " + message)
}

func (n *MockNotifier) NotifyStageStarted(stage types.StageState, detail string) {
	n.add("started: " + stage.DisplayName())
}

func (n *MockNotifier) NotifyBuildFinished(outcome types.Outcome) {
	n.add("finished: " + outcome.Stage.DisplayName())
}

func (n *MockNotifier) NotifyQueueDrained(processed int) {
	n.add("drained")
}

// Messages returns the recorded notifications
func (n *MockNotifier) Messages() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.messages...)
}

// Package sessionlog buffers the log lines of a build session and persists them
package sessionlog

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ubbuilder/ubb/pkg/types"
)

const fileTimeLayout = "20060102-150405"

// Log accumulates session records until they are flushed to disk
type Log struct {
	dir     string
	now     func() time.Time
	records []types.LogRecord
	mu      sync.Mutex
}

// New creates a session log writing into dir
func New(dir string) *Log {
	return &Log{dir: dir, now: time.Now}
}

// WithClock replaces the time source used for file names
func (l *Log) WithClock(now func() time.Time) *Log {
	l.now = now
	return l
}

// Dir returns the directory logs are written to
func (l *Log) Dir() string {
	return l.dir
}

// Append adds a record to the session
func (l *Log) Append(rec types.LogRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, rec)
}

// Reset drops all buffered records
func (l *Log) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = nil
}

// Len returns the number of buffered records
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}

// Flush writes the buffered records to a new timestamped file and returns its
// path. Records stay buffered. An empty session writes nothing.
func (l *Log) Flush() (string, error) {
	l.mu.Lock()
	records := make([]types.LogRecord, len(l.records))
	copy(records, l.records)
	l.mu.Unlock()

	if len(records) == 0 || l.dir == "" {
		return "", nil
	}

	if err := os.MkdirAll(l.dir, 0755); err != nil {
		return "", fmt.Errorf("create log directory: %w", err)
	}

	path := filepath.Join(l.dir, fmt.Sprintf("Build-%s.log", l.now().Format(fileTimeLayout)))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create session log: %w", err)
	}

	w := bufio.NewWriter(f)
	for _, rec := range records {
		fmt.Fprintln(w, Format(rec))
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return "", fmt.Errorf("write session log: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close session log: %w", err)
	}
	return path, nil
}

// Format renders a record as one log file line
func Format(rec types.LogRecord) string {
	return fmt.Sprintf("[%s] [%s] %s",
		rec.Timestamp.Format("15:04:05"),
		strings.ToUpper(string(rec.Severity)),
		rec.Text)
}

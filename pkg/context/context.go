// Package context carries build session metadata through a context.Context
package context

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Context keys for build sessions.
// Using unexported struct pointers prevents key collisions.
var (
	sessionIDKey = &struct{}{}
	operationKey = &struct{}{}
	startTimeKey = &struct{}{}
)

// WithSessionID adds a build session ID to the context
func WithSessionID(parent context.Context, sessionID string) context.Context {
	if sessionID == "" {
		sessionID = NewSessionID()
	}
	return context.WithValue(parent, sessionIDKey, sessionID)
}

// SessionID retrieves the session ID from context
func SessionID(ctx context.Context) string {
	if id, ok := ctx.Value(sessionIDKey).(string); ok && id != "" {
		return id
	}
	return ""
}

// WithOperation names the public command being executed (setup, engine, plugins)
func WithOperation(parent context.Context, operation string) context.Context {
	return context.WithValue(parent, operationKey, operation)
}

// Operation retrieves the operation name from context
func Operation(ctx context.Context) string {
	if op, ok := ctx.Value(operationKey).(string); ok {
		return op
	}
	return ""
}

// WithStartTime records when the session started
func WithStartTime(parent context.Context, startTime time.Time) context.Context {
	return context.WithValue(parent, startTimeKey, startTime)
}

// Elapsed returns the time since the session started, or zero when unknown
func Elapsed(ctx context.Context) time.Duration {
	if t, ok := ctx.Value(startTimeKey).(time.Time); ok {
		return time.Since(t)
	}
	return 0
}

// NewSessionID creates a new unique session ID
func NewSessionID() string {
	return "ubb_" + uuid.New().String()
}

// NewSession enriches a context with a fresh session ID and start time
func NewSession(parent context.Context, operation string) context.Context {
	ctx := WithSessionID(parent, "")
	ctx = WithOperation(ctx, operation)
	return WithStartTime(ctx, time.Now())
}

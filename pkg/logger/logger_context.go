package logger

import (
	"context"

	pcontext "github.com/ubbuilder/ubb/pkg/context"
)

// WithContext returns a logger that tags every entry with the build session
// carried by ctx
func WithContext(ctx context.Context, log Logger) Logger {
	if ctx == nil || log == nil {
		return log
	}
	return &contextualLogger{ctx: ctx, logger: log}
}

type contextualLogger struct {
	ctx    context.Context
	logger Logger
}

func (cl *contextualLogger) fields(extra []Field) []Field {
	var fields []Field
	if id := pcontext.SessionID(cl.ctx); id != "" {
		fields = append(fields, WithField("session", id))
	}
	if op := pcontext.Operation(cl.ctx); op != "" {
		fields = append(fields, WithField("operation", op))
	}
	return append(fields, extra...)
}

func (cl *contextualLogger) Info(message string, fields ...Field) {
	cl.logger.Info(message, cl.fields(fields)...)
}

func (cl *contextualLogger) Error(message string, fields ...Field) {
	cl.logger.Error(message, cl.fields(fields)...)
}

func (cl *contextualLogger) Warn(message string, fields ...Field) {
	cl.logger.Warn(message, cl.fields(fields)...)
}

func (cl *contextualLogger) Debug(message string, fields ...Field) {
	cl.logger.Debug(message, cl.fields(fields)...)
}

func (cl *contextualLogger) Success(message string, fields ...Field) {
	cl.logger.Success(message, cl.fields(fields)...)
}

func (cl *contextualLogger) WithStage(stage string) Logger {
	return &contextualLogger{ctx: cl.ctx, logger: cl.logger.WithStage(stage)}
}

// Package logger provides structured, stage-aware logging for the builder
package logger

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
)

// Logger interface for abstracted logging
type Logger interface {
	Info(message string, fields ...Field)
	Error(message string, fields ...Field)
	Warn(message string, fields ...Field)
	Debug(message string, fields ...Field)
	Success(message string, fields ...Field)
	WithStage(stage string) Logger
}

// Field represents a structured logging field
type Field struct {
	Key   string
	Value interface{}
}

// WithField creates a new field
func WithField(key string, value interface{}) Field {
	return Field{Key: key, Value: value}
}

// StageLogger implements Logger and tags entries with the running stage
type StageLogger struct {
	logger    *logrus.Logger
	stageName string
}

type levelStyle struct {
	label string
	color *color.Color
}

var levelStyles = map[logrus.Level]levelStyle{
	logrus.ErrorLevel: {"ERROR", color.New(color.FgRed, color.Bold)},
	logrus.WarnLevel:  {"WARN", color.New(color.FgYellow, color.Bold)},
	logrus.InfoLevel:  {"INFO", color.New(color.FgCyan)},
	logrus.DebugLevel: {"DEBUG", color.New(color.FgWhite, color.Faint)},
}

var (
	stageColor = color.New(color.FgBlue)
	fieldColor = color.New(color.FgWhite, color.Faint)
)

// CustomFormatter renders "[time] LEVEL: [stage] message {k=v, ...}"
type CustomFormatter struct {
	TimestampFormat string
	DisableColors   bool
}

func (f *CustomFormatter) paint(c *color.Color, s string) string {
	if f.DisableColors {
		return s
	}
	return c.Sprint(s)
}

// Format implements logrus.Formatter
func (f *CustomFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	style, ok := levelStyles[entry.Level]
	if !ok {
		style = levelStyle{"SUCCESS", color.New(color.FgGreen)}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s: ", entry.Time.Format(f.TimestampFormat), f.paint(style.color, style.label))

	keys := make([]string, 0, len(entry.Data))
	for k := range entry.Data {
		if k == stageField {
			fmt.Fprintf(&b, "[%s] ", f.paint(stageColor, fmt.Sprint(entry.Data[k])))
			continue
		}
		keys = append(keys, k)
	}
	b.WriteString(entry.Message)

	if len(keys) > 0 {
		sort.Strings(keys)
		pairs := make([]string, len(keys))
		for i, k := range keys {
			pairs[i] = fmt.Sprintf("%s=%v", k, entry.Data[k])
		}
		b.WriteString(f.paint(fieldColor, " {"+strings.Join(pairs, ", ")+"}"))
	}

	b.WriteByte('\n')
	return []byte(b.String()), nil
}

const stageField = "stage"

func newLogrus(logLevel string, disableColors bool, out io.Writer) *logrus.Logger {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	return &logrus.Logger{
		Out:       out,
		Hooks:     make(logrus.LevelHooks),
		Formatter: &CustomFormatter{TimestampFormat: "15:04:05", DisableColors: disableColors},
		Level:     level,
		ExitFunc:  os.Exit,
	}
}

// teeFile adds logFile to out. An unopenable file is ignored so logging
// never blocks a build.
func teeFile(out io.Writer, logFile string) io.Writer {
	if logFile == "" {
		return out
	}
	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return out
	}
	return io.MultiWriter(out, file)
}

// CreateLogger creates a colored console logger, optionally teeing to a file
func CreateLogger(logFile string, logLevel string) Logger {
	return &StageLogger{logger: newLogrus(logLevel, false, teeFile(os.Stdout, logFile))}
}

// CreateLoggerWithOutput creates an uncolored logger writing to output.
// A nil output discards everything.
func CreateLoggerWithOutput(logFile string, logLevel string, output io.Writer) Logger {
	if output == nil {
		output = io.Discard
	}
	return &StageLogger{logger: newLogrus(logLevel, true, teeFile(output, logFile))}
}

// WithStage returns a logger that prefixes entries with stage
func (l *StageLogger) WithStage(stage string) Logger {
	return &StageLogger{logger: l.logger, stageName: stage}
}

func (l *StageLogger) log(level logrus.Level, message string, fields []Field) {
	if !l.logger.IsLevelEnabled(level) {
		return
	}
	data := make(logrus.Fields, len(fields)+1)
	if l.stageName != "" {
		data[stageField] = l.stageName
	}
	for _, f := range fields {
		data[f.Key] = f.Value
	}
	l.logger.WithFields(data).Log(level, message)
}

func (l *StageLogger) Info(message string, fields ...Field) {
	l.log(logrus.InfoLevel, message, fields)
}

func (l *StageLogger) Error(message string, fields ...Field) {
	l.log(logrus.ErrorLevel, message, fields)
}

func (l *StageLogger) Warn(message string, fields ...Field) {
	l.log(logrus.WarnLevel, message, fields)
}

func (l *StageLogger) Debug(message string, fields ...Field) {
	l.log(logrus.DebugLevel, message, fields)
}

// Success logs at info level with a check mark
func (l *StageLogger) Success(message string, fields ...Field) {
	l.log(logrus.InfoLevel, "✅ "+message, fields)
}

// Nop returns a logger that discards everything
func Nop() Logger {
	return CreateLoggerWithOutput("", "error", io.Discard)
}

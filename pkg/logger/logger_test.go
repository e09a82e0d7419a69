package logger_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	pcontext "github.com/ubbuilder/ubb/pkg/context"
	"github.com/ubbuilder/ubb/pkg/logger"
)

func TestCreateLogger(t *testing.T) {
	log := logger.CreateLogger("", "info")
	if log == nil {
		t.Fatal("expected logger to be created")
	}
}

func TestLogger_WithStage(t *testing.T) {
	var buf bytes.Buffer
	log := logger.CreateLoggerWithOutput("", "info", &buf)

	log.WithStage("AutomationTool").Info("compiling")

	output := buf.String()
	if !strings.Contains(output, "[AutomationTool] compiling") {
		t.Errorf("expected stage prefix in log output, got %q", output)
	}
}

func TestLogger_FieldsAreSorted(t *testing.T) {
	var buf bytes.Buffer
	log := logger.CreateLoggerWithOutput("", "info", &buf)

	log.Info("exit",
		logger.WithField("zeta", 1),
		logger.WithField("alpha", "x"),
	)

	if !strings.Contains(buf.String(), "{alpha=x, zeta=1}") {
		t.Errorf("expected sorted fields, got %q", buf.String())
	}
}

func TestLogger_Success(t *testing.T) {
	var buf bytes.Buffer
	log := logger.CreateLoggerWithOutput("", "info", &buf)

	log.Success("build completed")

	if !strings.Contains(buf.String(), "build completed") {
		t.Error("expected success message in log output")
	}
}

func TestLogger_ErrorLevel(t *testing.T) {
	var buf bytes.Buffer
	log := logger.CreateLoggerWithOutput("", "error", &buf)

	log.Debug("should not appear")
	log.Info("should not appear")
	log.Warn("should not appear")
	log.Error("should appear")

	output := buf.String()
	if strings.Contains(output, "should not appear") {
		t.Error("lower level logs should not appear with error level")
	}
	if !strings.Contains(output, "should appear") {
		t.Error("error level log should appear")
	}
}

func TestLogger_TeesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ubb.log")
	var buf bytes.Buffer
	log := logger.CreateLoggerWithOutput(path, "info", &buf)

	log.Info("to both")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "to both") || !strings.Contains(buf.String(), "to both") {
		t.Error("expected message in both outputs")
	}
}

func TestWithContext(t *testing.T) {
	var buf bytes.Buffer
	base := logger.CreateLoggerWithOutput("", "info", &buf)

	ctx := pcontext.WithSessionID(context.Background(), "ubb_test")
	ctx = pcontext.WithOperation(ctx, "engine")

	logger.WithContext(ctx, base).WithStage("Engine").Warn("slow")

	output := buf.String()
	for _, want := range []string{"[Engine] slow", "session=ubb_test", "operation=engine"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in %q", want, output)
		}
	}
}

func TestNop(t *testing.T) {
	// Must not panic
	logger.Nop().WithStage("x").Error("ignored")
}

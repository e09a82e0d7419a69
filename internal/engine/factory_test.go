package engine_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ubbuilder/ubb/internal/engine"
	"github.com/ubbuilder/ubb/pkg/config"
	"github.com/ubbuilder/ubb/pkg/metrics"
	"github.com/ubbuilder/ubb/pkg/mocks"
	"github.com/ubbuilder/ubb/pkg/process"
)

func TestDependencyFactory_CreateDefaults(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, "build.env")
	if err := os.WriteFile(envFile, []byte("UE_SDKS_ROOT=/sdks\n"), 0644); err != nil {
		t.Fatal(err)
	}

	s := config.Default()
	s.EnvFile = envFile
	s.Logging.SessionDir = filepath.Join(dir, "logs")
	s.Metrics.Textfile = filepath.Join(dir, "ubb.prom")
	s.PostBuild.ShutdownOnFinish = true

	f := engine.NewDependencyFactory(config.NewProvider(s), nil)
	opts, err := f.CreateDefaults()
	if err != nil {
		t.Fatalf("CreateDefaults: %v", err)
	}

	if _, ok := opts.Runner.(*process.ExecRunner); !ok {
		t.Errorf("Runner = %T", opts.Runner)
	}
	if opts.Queue == nil || opts.Classifier == nil || opts.Notifier == nil || opts.Shutdowner == nil {
		t.Errorf("missing defaults: %+v", opts)
	}
	if opts.SessionLog == nil || opts.SessionLog.Dir() != s.Logging.SessionDir {
		t.Error("session log not configured")
	}
	if opts.PluginEnv["UE_SDKS_ROOT"] != "/sdks" {
		t.Errorf("PluginEnv = %v", opts.PluginEnv)
	}
	if _, ok := opts.Metrics.(*metrics.PrometheusRecorder); !ok {
		t.Errorf("Metrics = %T", opts.Metrics)
	}
	if !opts.QueuePolicy().ShutdownOnFinish {
		t.Error("queue policy must follow settings")
	}

	opts.Metrics.SetQueuePending(2)
	if err := f.WriteMetrics(); err != nil {
		t.Fatalf("WriteMetrics: %v", err)
	}
	if _, err := os.Stat(s.Metrics.Textfile); err != nil {
		t.Errorf("metrics textfile not written: %v", err)
	}
}

func TestDependencyFactory_Overrides(t *testing.T) {
	f := engine.NewDependencyFactory(nil, nil)
	runner := mocks.NewMockRunner()

	opts, err := f.CreateWithOverrides(engine.Options{Runner: runner})
	if err != nil {
		t.Fatalf("CreateWithOverrides: %v", err)
	}
	if opts.Runner != runner {
		t.Error("runner override ignored")
	}
	if _, ok := opts.Metrics.(metrics.NoopRecorder); !ok {
		t.Errorf("metrics without a textfile = %T", opts.Metrics)
	}
	if err := f.WriteMetrics(); err != nil {
		t.Errorf("WriteMetrics without recorder: %v", err)
	}
}

func TestDependencyFactory_BadEnvFile(t *testing.T) {
	s := config.Default()
	s.EnvFile = filepath.Join(t.TempDir(), "missing.env")

	if _, err := engine.NewDependencyFactory(config.NewProvider(s), nil).CreateDefaults(); err == nil {
		t.Error("expected env file error")
	}
}

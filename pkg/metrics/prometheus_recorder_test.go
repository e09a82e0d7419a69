package metrics_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/ubbuilder/ubb/pkg/metrics"
	"github.com/ubbuilder/ubb/pkg/types"
)

func TestPrometheusRecorder(t *testing.T) {
	reg := prom.NewRegistry()
	pr := metrics.NewPrometheusRecorder(reg)

	pr.ObserveStageDuration("Engine", 2*time.Hour)
	pr.IncStageResult("Engine", metrics.ResultSuccess)
	pr.IncStageResult("Engine", metrics.ResultSuccess)
	pr.ObserveCounters("Engine", types.BuildCounters{CompiledTotal: 1200, Warnings: 7, Errors: 1})
	pr.IncPluginJob(metrics.ResultFailed)
	pr.SetQueuePending(3)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if len(mfs) == 0 {
		t.Fatal("expected metrics, got none")
	}

	expected := `
# HELP ubb_plugin_queue_pending Plugin jobs waiting to be built
# TYPE ubb_plugin_queue_pending gauge
ubb_plugin_queue_pending 3
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected), "ubb_plugin_queue_pending"); err != nil {
		t.Error(err)
	}

	for _, mf := range mfs {
		if mf.GetName() == "ubb_stage_results_total" && len(mf.GetMetric()) != 1 {
			t.Errorf("stage result series = %d, want 1", len(mf.GetMetric()))
		}
	}
}

func TestPrometheusRecorder_WriteTextfile(t *testing.T) {
	pr := metrics.NewPrometheusRecorder(nil)
	pr.IncStageResult("Setup", metrics.ResultFailed)

	path := filepath.Join(t.TempDir(), "ubb.prom")
	if err := pr.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `ubb_stage_results_total{result="failed",stage="Setup"} 1`) {
		t.Errorf("unexpected textfile:\n%s", data)
	}

	if err := pr.WriteTextfile(""); err != nil {
		t.Errorf("empty path must be a no-op, got %v", err)
	}
}

func TestNilRecorderIsSafe(t *testing.T) {
	var pr *metrics.PrometheusRecorder
	pr.IncPluginJob(metrics.ResultSuccess)
	pr.SetQueuePending(1)
	if err := pr.WriteTextfile("x"); err != nil {
		t.Error(err)
	}

	var rec metrics.Recorder = metrics.NoopRecorder{}
	rec.ObserveCounters("Engine", types.BuildCounters{})
}

func TestResultOf(t *testing.T) {
	tests := []struct {
		outcome types.Outcome
		want    metrics.ResultLabel
	}{
		{types.Outcome{Success: true}, metrics.ResultSuccess},
		{types.Outcome{}, metrics.ResultFailed},
		{types.Outcome{Cancelled: true, Success: true}, metrics.ResultCanceled},
	}
	for _, tt := range tests {
		if got := metrics.ResultOf(tt.outcome); got != tt.want {
			t.Errorf("ResultOf(%+v) = %s, want %s", tt.outcome, got, tt.want)
		}
	}
}

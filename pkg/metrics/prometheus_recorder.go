package metrics

import (
	"fmt"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/ubbuilder/ubb/pkg/types"
)

const namespace = "ubb"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	registry      *prom.Registry
	stageDuration *prom.HistogramVec
	stageResults  *prom.CounterVec
	compiledFiles *prom.GaugeVec
	warnings      *prom.GaugeVec
	errors        *prom.GaugeVec
	pluginJobs    *prom.CounterVec
	queuePending  prom.Gauge
}

// NewPrometheusRecorder constructs and registers the builder metrics.
// A nil registry creates a private one.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		registry: reg,
		stageDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of build stages",
			// Engine builds run for hours
			Buckets: []float64{1, 10, 60, 300, 900, 1800, 3600, 7200, 14400, 28800},
		}, []string{"stage"}),
		stageResults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "stage_results_total",
			Help:      "Stage result counts by outcome",
		}, []string{"stage", "result"}),
		compiledFiles: prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "last_compiled_files",
			Help:      "Files compiled by the last run of a stage",
		}, []string{"stage"}),
		warnings: prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "last_warnings",
			Help:      "Warnings reported by the last run of a stage",
		}, []string{"stage"}),
		errors: prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "last_errors",
			Help:      "Errors reported by the last run of a stage",
		}, []string{"stage"}),
		pluginJobs: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "plugin_jobs_total",
			Help:      "Plugin packaging jobs by result",
		}, []string{"result"}),
		queuePending: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "plugin_queue_pending",
			Help:      "Plugin jobs waiting to be built",
		}),
	}
	reg.MustRegister(pr.stageDuration, pr.stageResults, pr.compiledFiles, pr.warnings, pr.errors, pr.pluginJobs, pr.queuePending)
	return pr
}

// Registry returns the registry the metrics are registered with
func (p *PrometheusRecorder) Registry() *prom.Registry {
	return p.registry
}

func (p *PrometheusRecorder) ObserveStageDuration(stage string, d time.Duration) {
	if p == nil {
		return
	}
	p.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncStageResult(stage string, result ResultLabel) {
	if p == nil {
		return
	}
	p.stageResults.WithLabelValues(stage, string(result)).Inc()
}

func (p *PrometheusRecorder) ObserveCounters(stage string, c types.BuildCounters) {
	if p == nil {
		return
	}
	p.compiledFiles.WithLabelValues(stage).Set(float64(c.CompiledTotal))
	p.warnings.WithLabelValues(stage).Set(float64(c.Warnings))
	p.errors.WithLabelValues(stage).Set(float64(c.Errors))
}

func (p *PrometheusRecorder) IncPluginJob(result ResultLabel) {
	if p == nil {
		return
	}
	p.pluginJobs.WithLabelValues(string(result)).Inc()
}

func (p *PrometheusRecorder) SetQueuePending(n int) {
	if p == nil {
		return
	}
	p.queuePending.Set(float64(n))
}

// WriteTextfile writes all metrics in the text exposition format, for the
// node exporter textfile collector
func (p *PrometheusRecorder) WriteTextfile(path string) error {
	if p == nil || path == "" {
		return nil
	}
	if err := prom.WriteToTextfile(path, p.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

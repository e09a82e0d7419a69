package engine

import (
	"github.com/ubbuilder/ubb/pkg/classifier"
	"github.com/ubbuilder/ubb/pkg/config"
	"github.com/ubbuilder/ubb/pkg/logger"
	"github.com/ubbuilder/ubb/pkg/metrics"
	"github.com/ubbuilder/ubb/pkg/notifier"
	"github.com/ubbuilder/ubb/pkg/postbuild"
	"github.com/ubbuilder/ubb/pkg/process"
	"github.com/ubbuilder/ubb/pkg/queue"
	"github.com/ubbuilder/ubb/pkg/sessionlog"
	"github.com/ubbuilder/ubb/pkg/types"
)

// DependencyFactory creates the default collaborators of an Orchestrator
// from the current settings. Construction is explicit so tests can swap
// any piece through CreateWithOverrides.
type DependencyFactory struct {
	provider *config.Provider
	logger   logger.Logger
	recorder *metrics.PrometheusRecorder
}

// NewDependencyFactory creates a new dependency factory
func NewDependencyFactory(provider *config.Provider, log logger.Logger) *DependencyFactory {
	if provider == nil {
		provider = config.NewProvider(nil)
	}
	if log == nil {
		log = logger.Nop()
	}
	return &DependencyFactory{provider: provider, logger: log}
}

// CreateDefaults creates all default dependencies. The plugin environment
// file is read here, so a broken env file fails early.
func (f *DependencyFactory) CreateDefaults() (Options, error) {
	s := f.provider.Get()

	env, err := s.BuildEnv()
	if err != nil {
		return Options{}, err
	}

	opts := Options{
		Runner:      f.createRunner(),
		Classifier:  classifier.Default(),
		Queue:       queue.New(f.logger),
		Archiver:    postbuild.ZipArchiver{},
		Shutdowner:  postbuild.NewSystemShutdown(f.logger, nil),
		Notifier:    f.createNotifier(s),
		Metrics:     f.createRecorder(s),
		Logger:      f.logger,
		PluginEnv:   env,
		QueuePolicy: f.queuePolicy,
	}
	if s.Logging.SessionDir != "" {
		opts.SessionLog = sessionlog.New(s.Logging.SessionDir)
	}
	return opts, nil
}

// CreateWithOverrides creates dependencies with specific overrides.
// Non-nil values replace defaults.
func (f *DependencyFactory) CreateWithOverrides(overrides Options) (Options, error) {
	opts, err := f.CreateDefaults()
	if err != nil {
		return Options{}, err
	}

	if overrides.Runner != nil {
		opts.Runner = overrides.Runner
	}
	if overrides.Observer != nil {
		opts.Observer = overrides.Observer
	}
	if overrides.Classifier != nil {
		opts.Classifier = overrides.Classifier
	}
	if overrides.Queue != nil {
		opts.Queue = overrides.Queue
	}
	if overrides.SessionLog != nil {
		opts.SessionLog = overrides.SessionLog
	}
	if overrides.Archiver != nil {
		opts.Archiver = overrides.Archiver
	}
	if overrides.Shutdowner != nil {
		opts.Shutdowner = overrides.Shutdowner
	}
	if overrides.Notifier != nil {
		opts.Notifier = overrides.Notifier
	}
	if overrides.Metrics != nil {
		opts.Metrics = overrides.Metrics
	}
	if overrides.PluginEnv != nil {
		opts.PluginEnv = overrides.PluginEnv
	}
	if overrides.QueuePolicy != nil {
		opts.QueuePolicy = overrides.QueuePolicy
	}
	if overrides.Now != nil {
		opts.Now = overrides.Now
	}

	return opts, nil
}

// WriteMetrics exports the recorded metrics to the configured textfile.
// It is a no-op when metrics are not configured.
func (f *DependencyFactory) WriteMetrics() error {
	return f.recorder.WriteTextfile(f.provider.Get().Metrics.Textfile)
}

// Individual factory methods for each dependency

func (f *DependencyFactory) createRunner() process.Runner {
	return process.NewExecRunner(f.logger, process.DefaultTickInterval)
}

func (f *DependencyFactory) createNotifier(s *config.Settings) Notifier {
	return notifier.New(notifier.Config{
		Enabled: s.Notifications.Enabled,
		Sound:   s.Notifications.Sound,
	}, f.logger)
}

func (f *DependencyFactory) createRecorder(s *config.Settings) metrics.Recorder {
	if s.Metrics.Textfile == "" {
		return metrics.NoopRecorder{}
	}
	if f.recorder == nil {
		f.recorder = metrics.NewPrometheusRecorder(nil)
	}
	return f.recorder
}

// queuePolicy reads the shutdown policy at drain time so reloaded settings apply
func (f *DependencyFactory) queuePolicy() types.PostBuildOptions {
	return f.provider.Get().PostBuild
}

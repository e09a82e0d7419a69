package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/ubbuilder/ubb/internal/engine"
	"github.com/ubbuilder/ubb/pkg/config"
	pcontext "github.com/ubbuilder/ubb/pkg/context"
	"github.com/ubbuilder/ubb/pkg/logger"
	"github.com/ubbuilder/ubb/pkg/process"
	"github.com/ubbuilder/ubb/pkg/types"
)

// session is one running orchestrator with its signal handling and
// settings watcher
type session struct {
	ctx      context.Context
	cancel   context.CancelFunc
	logger   logger.Logger
	orch     *engine.Orchestrator
	factory  *engine.DependencyFactory
	observer *consoleObserver
	manager  *process.Manager
	reload   *config.ReloadManager
	stopped  chan struct{}
	runErr   error
}

// startSession builds the orchestrator from the loaded settings and starts
// its loop. Interrupts cancel the active build instead of killing ubb.
func (c *CLI) startSession(ctx context.Context, operation string, watchSettings bool) (*session, error) {
	ctx = pcontext.NewSession(ctx, operation)
	log := logger.WithContext(ctx, c.logger)

	factory := engine.NewDependencyFactory(c.provider, log)
	opts, err := factory.CreateWithOverrides(c.overrides)
	if err != nil {
		return nil, err
	}
	observer := newConsoleObserver(c.output, c.errorOut, log)
	opts.Observer = observer

	runCtx, cancel := context.WithCancel(ctx)
	s := &session{
		ctx:      runCtx,
		cancel:   cancel,
		logger:   log,
		orch:     engine.New(opts),
		factory:  factory,
		observer: observer,
		manager:  process.NewManager(log),
		stopped:  make(chan struct{}),
	}

	go func() {
		defer close(s.stopped)
		s.runErr = s.orch.Run(runCtx)
	}()

	s.manager.RegisterShutdownHandler(func() {
		if err := s.orch.CancelCurrent(); err != nil && !errors.Is(err, types.ErrNotRunning) {
			log.Warn("Cancel failed", logger.WithField("error", err))
		}
	})
	s.manager.Start(runCtx)

	if path := c.config.settingsPath(); watchSettings && path != "" {
		s.reload = config.NewReloadManager(path, c.provider, log)
		s.reload.AddCallback(func(_ *config.Settings, err error) {
			if err == nil {
				c.printInfo("Settings reloaded, new builds use " + path)
			}
		})
		if err := s.reload.StartWatching(runCtx); err != nil {
			log.Warn("Settings will not be reloaded", logger.WithField("error", err))
			s.reload = nil
		}
	}

	log.Debug("Session started", logger.WithField("operation", operation))
	return s, nil
}

// wait blocks until the orchestrator reports the end of the run
func (s *session) wait() (types.Outcome, error) {
	select {
	case o := <-s.observer.finished:
		return o, nil
	case <-s.stopped:
		if s.runErr != nil {
			return types.Outcome{}, s.runErr
		}
		return types.Outcome{}, engine.ErrStopped
	case <-s.ctx.Done():
		return types.Outcome{}, s.ctx.Err()
	}
}

// close stops the loop, kills anything still running and exports metrics
func (s *session) close() {
	s.manager.Stop()
	if s.reload != nil {
		if err := s.reload.StopWatching(); err != nil {
			s.logger.Debug("Stop watching settings", logger.WithField("error", err))
		}
	}
	s.cancel()
	<-s.stopped

	if err := s.factory.WriteMetrics(); err != nil {
		s.logger.Warn("Failed to write metrics", logger.WithField("error", err))
	}
}

// runToCompletion starts one operation and waits for its outcome
func (c *CLI) runToCompletion(ctx context.Context, operation string, start func(*engine.Orchestrator) error) error {
	s, err := c.startSession(ctx, operation, false)
	if err != nil {
		return err
	}
	defer s.close()

	if err := start(s.orch); err != nil {
		return err
	}

	outcome, err := s.wait()
	if err != nil {
		return fmt.Errorf("%s interrupted: %w", operation, err)
	}
	return outcomeError(outcome)
}

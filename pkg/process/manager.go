package process

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/ubbuilder/ubb/pkg/logger"
)

// Manager turns OS signals into an orderly shutdown of running builds
type Manager struct {
	logger           logger.Logger
	shutdownHandlers []func()
	stop             chan struct{}
	wg               sync.WaitGroup
	mu               sync.Mutex
	running          bool
	signals          []os.Signal
}

// NewManager creates a new signal manager
func NewManager(log logger.Logger) *Manager {
	return &Manager{
		logger:  log,
		signals: []os.Signal{os.Interrupt, syscall.SIGTERM},
	}
}

// RegisterShutdownHandler adds a handler. Handlers run in reverse registration order.
func (m *Manager) RegisterShutdownHandler(handler func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.shutdownHandlers = append(m.shutdownHandlers, handler)
}

// Start listens for signals until ctx is done or Stop is called.
// Cancelling ctx does not run the handlers; only a signal does.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	m.stop = make(chan struct{})
	stop := m.stop
	m.mu.Unlock()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, m.signals...)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer signal.Stop(sigChan)

		select {
		case <-ctx.Done():
		case <-stop:
		case sig := <-sigChan:
			m.logger.Warn("Received signal, cancelling build", logger.WithField("signal", sig))
			m.Shutdown()
		}
	}()
}

// Stop stops listening for signals
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	close(m.stop)
	m.mu.Unlock()

	m.wg.Wait()
}

// IsRunning reports whether the manager is listening for signals
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Shutdown runs the registered handlers in reverse order
func (m *Manager) Shutdown() {
	m.mu.Lock()
	handlers := make([]func(), len(m.shutdownHandlers))
	copy(handlers, m.shutdownHandlers)
	m.mu.Unlock()

	for i := len(handlers) - 1; i >= 0; i-- {
		handlers[i]()
	}
}

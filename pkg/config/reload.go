package config

import (
	"context"
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/ubbuilder/ubb/pkg/logger"
)

// Provider hands out the current settings snapshot. Readers never see a
// partially updated value.
type Provider struct {
	current atomic.Pointer[Settings]
}

// NewProvider creates a provider holding s
func NewProvider(s *Settings) *Provider {
	p := &Provider{}
	if s == nil {
		s = Default()
	}
	p.current.Store(s)
	return p
}

// Get returns the current snapshot. Callers must not mutate it.
func (p *Provider) Get() *Settings {
	return p.current.Load()
}

// Store replaces the current snapshot
func (p *Provider) Store(s *Settings) {
	p.current.Store(s)
}

// ReloadCallback is called after a reload attempt
type ReloadCallback func(*Settings, error)

// DefaultDebounce is how long the file must stay quiet before a reload
const DefaultDebounce = 500 * time.Millisecond

// ReloadManager watches the settings file and refreshes a Provider.
// A reload only happens when the file content actually changed.
type ReloadManager struct {
	path     string
	provider *Provider
	logger   logger.Logger

	mu        sync.RWMutex
	callbacks []ReloadCallback
	debounce  time.Duration
	digest    [sha256.Size]byte
	timer     *time.Timer
	watcher   *fsnotify.Watcher
	stop      context.CancelFunc
}

// NewReloadManager creates a reload manager for the settings file at path
func NewReloadManager(path string, provider *Provider, log logger.Logger) *ReloadManager {
	if log == nil {
		log = logger.Nop()
	}
	return &ReloadManager{
		path:     path,
		provider: provider,
		logger:   log.WithStage("Settings"),
		debounce: DefaultDebounce,
	}
}

func (rm *ReloadManager) AddCallback(callback ReloadCallback) {
	rm.mu.Lock()
	rm.callbacks = append(rm.callbacks, callback)
	rm.mu.Unlock()
}

func (rm *ReloadManager) SetDebouncePeriod(period time.Duration) {
	rm.mu.Lock()
	rm.debounce = period
	rm.mu.Unlock()
}

// StartWatching watches the settings file until ctx is done or StopWatching
// is called. Only one watch may be active.
func (rm *ReloadManager) StartWatching(ctx context.Context) error {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if rm.watcher != nil {
		return fmt.Errorf("already watching %s", rm.path)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	// Editors save by rename, which drops a watch on the file itself
	if err := watcher.Add(filepath.Dir(rm.path)); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch settings directory: %w", err)
	}

	rm.digest, _ = fileDigest(rm.path)
	watchCtx, stop := context.WithCancel(ctx)
	rm.watcher = watcher
	rm.stop = stop

	go rm.watch(watchCtx, watcher)

	rm.logger.Debug("Watching settings file", logger.WithField("path", rm.path))
	return nil
}

// StopWatching stops the watch started by StartWatching
func (rm *ReloadManager) StopWatching() error {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if rm.watcher == nil {
		return nil
	}
	rm.stop()
	if rm.timer != nil {
		rm.timer.Stop()
		rm.timer = nil
	}
	err := rm.watcher.Close()
	rm.watcher = nil
	return err
}

func (rm *ReloadManager) IsWatching() bool {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return rm.watcher != nil
}

// Reload loads the settings file now and publishes it on success.
// A failed reload keeps the previous snapshot.
func (rm *ReloadManager) Reload() (*Settings, error) {
	s, err := Load(rm.path)
	if err != nil {
		rm.logger.Error("Settings reload failed, keeping current settings", logger.WithField("error", err))
		rm.notify(nil, err)
		return nil, err
	}

	rm.provider.Store(s)
	rm.logger.Info("Settings reloaded", logger.WithField("path", rm.path))
	rm.notify(s, nil)
	return s, nil
}

func (rm *ReloadManager) watch(ctx context.Context, watcher *fsnotify.Watcher) {
	defer func() {
		if r := recover(); r != nil {
			rm.logger.Error("Settings watcher panic recovered", logger.WithField("panic", r))
		}
	}()

	name := filepath.Base(rm.path)
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !touchesSettings(name, filepath.Base(event.Name)) {
				continue
			}
			if event.Has(fsnotify.Remove) {
				rm.logger.Warn("Settings file removed, keeping current settings")
				continue
			}
			rm.schedule()

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			rm.logger.Error("Settings watcher error", logger.WithField("error", err))
			rm.notify(nil, err)
		}
	}
}

// touchesSettings reports whether an event on base concerns the settings
// file, including the temp files some editors write before renaming.
func touchesSettings(name, base string) bool {
	if base == name {
		return true
	}
	return strings.Contains(base, name) && (strings.HasSuffix(base, ".tmp") || strings.HasSuffix(base, "~"))
}

func (rm *ReloadManager) schedule() {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if rm.timer != nil {
		rm.timer.Stop()
	}
	rm.timer = time.AfterFunc(rm.debounce, rm.reloadIfChanged)
}

func (rm *ReloadManager) reloadIfChanged() {
	digest, err := fileDigest(rm.path)
	if err != nil {
		rm.notify(nil, err)
		return
	}

	rm.mu.Lock()
	unchanged := digest == rm.digest
	rm.digest = digest
	rm.mu.Unlock()

	if !unchanged {
		_, _ = rm.Reload()
	}
}

func fileDigest(path string) ([sha256.Size]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return [sha256.Size]byte{}, err
	}
	return sha256.Sum256(data), nil
}

func (rm *ReloadManager) notify(s *Settings, err error) {
	rm.mu.RLock()
	callbacks := append([]ReloadCallback(nil), rm.callbacks...)
	rm.mu.RUnlock()

	for _, cb := range callbacks {
		func() {
			defer func() {
				if r := recover(); r != nil {
					rm.logger.Error("Reload callback panic recovered", logger.WithField("panic", r))
				}
			}()
			cb(s, err)
		}()
	}
}

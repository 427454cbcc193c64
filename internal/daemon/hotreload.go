package daemon

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/jmylchreest/notiq/internal/config"
)

// DefaultPollInterval is how often the config file is checked.
const DefaultPollInterval = time.Second

// ConfigWatcher polls the daemon config file and hands validated
// configurations to the reload callback.
type ConfigWatcher struct {
	mu     sync.RWMutex
	logger *slog.Logger
	clock  clockwork.Clock

	configPath    string
	lastModTime   time.Time
	currentConfig *config.DaemonConfig
	pollInterval  time.Duration

	onReloadCallback func(newConfig *config.DaemonConfig)
	onErrorCallback  func(err error)

	stopCh  chan struct{}
	doneCh  chan struct{}
	running bool
}

// NewConfigWatcher creates a ConfigWatcher for path. An empty path selects
// the default daemon config path.
func NewConfigWatcher(path string, clock clockwork.Clock, logger *slog.Logger) *ConfigWatcher {
	if path == "" {
		path = config.DaemonConfigPath()
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ConfigWatcher{
		logger:       logger,
		clock:        clock,
		configPath:   path,
		pollInterval: DefaultPollInterval,
	}
}

// SetPollInterval sets the polling interval. It takes effect on Start.
func (w *ConfigWatcher) SetPollInterval(interval time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pollInterval = interval
}

// SetReloadCallback sets the callback for successfully reloaded configs.
func (w *ConfigWatcher) SetReloadCallback(callback func(newConfig *config.DaemonConfig)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onReloadCallback = callback
}

// SetErrorCallback sets the callback for configs that fail to load.
func (w *ConfigWatcher) SetErrorCallback(callback func(err error)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onErrorCallback = callback
}

// Start begins polling. The file's current modification time is the baseline.
func (w *ConfigWatcher) Start(ctx context.Context, initialConfig *config.DaemonConfig) {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return
	}
	w.running = true
	w.currentConfig = initialConfig
	if info, err := os.Stat(w.configPath); err == nil {
		w.lastModTime = info.ModTime()
	}
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	interval := w.pollInterval
	w.mu.Unlock()

	go w.watchLoop(ctx, interval)
	w.logger.Debug("config watcher started", "path", w.configPath, "interval", interval)
}

// Stop stops polling and waits for the loop to exit.
func (w *ConfigWatcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	close(w.stopCh)
	done := w.doneCh
	w.mu.Unlock()

	<-done
	w.logger.Debug("config watcher stopped")
}

// Current returns the last valid configuration.
func (w *ConfigWatcher) Current() *config.DaemonConfig {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.currentConfig
}

func (w *ConfigWatcher) watchLoop(ctx context.Context, interval time.Duration) {
	defer close(w.doneCh)

	ticker := w.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.Chan():
			w.checkForChanges()
		}
	}
}

// checkForChanges reloads the file when its modification time moved forward.
// It reports whether a reload was attempted.
func (w *ConfigWatcher) checkForChanges() bool {
	w.mu.RLock()
	reloadCallback := w.onReloadCallback
	errorCallback := w.onErrorCallback
	lastModTime := w.lastModTime
	w.mu.RUnlock()

	info, err := os.Stat(w.configPath)
	if err != nil {
		if !os.IsNotExist(err) {
			w.logger.Debug("failed to stat config file", "path", w.configPath, "error", err)
		}
		return false
	}

	modTime := info.ModTime()
	if !modTime.After(lastModTime) {
		return false
	}

	w.mu.Lock()
	w.lastModTime = modTime
	w.mu.Unlock()

	newConfig, err := config.LoadDaemonConfig(w.configPath)
	if err != nil {
		w.logger.Warn("config file changed but validation failed", "path", w.configPath, "error", err)
		if errorCallback != nil {
			errorCallback(err)
		}
		return true
	}

	w.mu.Lock()
	w.currentConfig = newConfig
	w.mu.Unlock()

	w.logger.Info("config reloaded", "path", w.configPath)
	if reloadCallback != nil {
		reloadCallback(newConfig)
	}
	return true
}

package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Update carries a reloaded configuration.
type Update struct {
	Config    *Config
	Timestamp time.Time
}

// Watcher reloads the config file on change. Only runtime-tunable
// settings (log level, public paths, include limits) are meant to be
// picked up by subscribers; server and Redis settings require a restart.
type Watcher struct {
	path    string
	log     *zap.Logger
	watcher *fsnotify.Watcher

	mu      sync.Mutex
	closed  bool
	closeCh chan struct{}
}

// NewWatcher creates a watcher for the given config file path.
func NewWatcher(path string, log *zap.Logger) (*Watcher, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is required for watching")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Watcher{
		path:    path,
		log:     log.Named("config-watcher"),
		closeCh: make(chan struct{}),
	}, nil
}

// Watch starts watching and returns a channel of reloaded configs.
// Reload failures are logged and the previous config stays in effect.
func (w *Watcher) Watch(ctx context.Context) (<-chan Update, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	w.mu.Lock()
	w.watcher = watcher
	w.mu.Unlock()

	// Watch the directory for atomic writes (rename-over)
	dir := filepath.Dir(w.path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	updates := make(chan Update, 4)
	go w.watchLoop(ctx, watcher, updates)

	w.log.Info("watching config file", zap.String("path", w.path))
	return updates, nil
}

func (w *Watcher) watchLoop(ctx context.Context, watcher *fsnotify.Watcher, updates chan<- Update) {
	defer close(updates)

	var debounce *time.Timer
	var debounceMu sync.Mutex

	for {
		select {
		case <-ctx.Done():
			return

		case <-w.closeCh:
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !w.matchesPath(event.Name) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}

			debounceMu.Lock()
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(100*time.Millisecond, func() {
				w.reload(ctx, updates)
			})
			debounceMu.Unlock()

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			w.log.Error("file watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) matchesPath(name string) bool {
	if name == w.path {
		return true
	}
	absName, _ := filepath.Abs(name)
	absPath, _ := filepath.Abs(w.path)
	return absName == absPath
}

func (w *Watcher) reload(ctx context.Context, updates chan<- Update) {
	cfg, err := Load(w.path)
	if err != nil {
		w.log.Error("config reload rejected", zap.Error(err))
		return
	}

	select {
	case updates <- Update{Config: cfg, Timestamp: time.Now()}:
		w.log.Info("config reloaded", zap.String("path", w.path))
	case <-ctx.Done():
	default:
		w.log.Warn("config update channel full, dropping update")
	}
}

// Close stops watching and releases resources.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	close(w.closeCh)

	if w.watcher != nil {
		return w.watcher.Close()
	}
	return nil
}

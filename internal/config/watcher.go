package config

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher reloads configuration when the config file changes and notifies
// subscribers with the freshly validated result. Reload failures keep the
// previous configuration in effect.
type Watcher struct {
	path   string
	logger *zap.Logger

	mu          sync.RWMutex
	subscribers []func(*Config)

	watcher *fsnotify.Watcher
	stop    chan struct{}
	done    chan struct{}
}

// NewWatcher creates a watcher for the given configuration file. A watcher
// with an empty path is inert: Start and Stop are no-ops.
func NewWatcher(path string, logger *zap.Logger) *Watcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{
		path:   path,
		logger: logger,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Subscribe registers a callback invoked after each successful reload.
func (w *Watcher) Subscribe(fn func(*Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.subscribers = append(w.subscribers, fn)
}

// Start begins watching the configuration file for changes.
func (w *Watcher) Start() error {
	if w.path == "" {
		close(w.done)
		return nil
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		close(w.done)
		return err
	}
	w.watcher = fw

	// Watch the directory: editors often replace the file, which drops
	// a watch registered on the file itself.
	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		fw.Close()
		close(w.done)
		return err
	}

	go w.run()
	return nil
}

// Stop halts the watcher.
func (w *Watcher) Stop() {
	close(w.stop)
	<-w.done
}

func (w *Watcher) run() {
	defer close(w.done)
	defer w.watcher.Close()

	// Debounce timer: editors fire several events per save.
	var pending *time.Timer
	reload := make(chan struct{}, 1)

	for {
		select {
		case <-w.stop:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if pending != nil {
				pending.Stop()
			}
			pending = time.AfterFunc(250*time.Millisecond, func() {
				select {
				case reload <- struct{}{}:
				default:
				}
			})
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("Config watcher error", zap.Error(err))
		case <-reload:
			w.reload()
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := Load()
	if err != nil {
		w.logger.Error("Config reload failed, keeping previous configuration",
			zap.String("path", w.path),
			zap.Error(err))
		return
	}

	w.logger.Info("Configuration reloaded", zap.String("path", w.path))

	w.mu.RLock()
	subscribers := make([]func(*Config), len(w.subscribers))
	copy(subscribers, w.subscribers)
	w.mu.RUnlock()

	for _, fn := range subscribers {
		fn(cfg)
	}
}

package config

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/agenthands/ontosense/internal/logger"
)

// Watcher reloads a config file when it changes on disk and hands the new,
// validated Config to the registered callbacks. Invalid edits are logged and
// ignored.
type Watcher struct {
	path     string
	debounce time.Duration
	log      *zap.Logger

	mu        sync.Mutex
	callbacks []func(*Config)

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewWatcher starts watching path. The directory is watched rather than the file
// so that editors that save by rename are seen too.
func NewWatcher(path string, log *zap.Logger) (*Watcher, error) {
	return newWatcher(path, 300*time.Millisecond, log)
}

func newWatcher(path string, debounce time.Duration, log *zap.Logger) (*Watcher, error) {
	log = logger.OrNop(log)
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		fw.Close()
		return nil, err
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", path, err)
	}

	w := &Watcher{
		path:     abs,
		debounce: debounce,
		log:      log,
		watcher:  fw,
		done:     make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

func (w *Watcher) OnChange(cb func(*Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, cb)
}

func (w *Watcher) Close() error {
	err := w.watcher.Close()
	<-w.done
	return err
}

func (w *Watcher) loop() {
	defer close(w.done)

	var timer *time.Timer
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				if timer != nil {
					timer.Stop()
				}
				return
			}
			if filepath.Clean(event.Name) != w.path || event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, w.reload)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn("config watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err == nil {
		cfg.ApplyEnv()
		err = cfg.Validate()
	}
	if err != nil {
		w.log.Warn("config change ignored", zap.String("path", w.path), zap.Error(err))
		return
	}
	w.log.Info("config reloaded", zap.String("path", w.path))

	w.mu.Lock()
	callbacks := make([]func(*Config), len(w.callbacks))
	copy(callbacks, w.callbacks)
	w.mu.Unlock()
	for _, cb := range callbacks {
		cb(cfg)
	}
}

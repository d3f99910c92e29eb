package config

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

const defaultWatchDebounce = 500 * time.Millisecond

// Watcher reloads configuration when its file changes on disk.
type Watcher struct {
	path     string
	load     func() (*Config, error)
	onReload func(*Config)
	logger   zerolog.Logger
	debounce time.Duration

	mu    sync.Mutex
	timer *time.Timer
}

// NewWatcher watches path and passes every successfully loaded config to
// onReload. load defaults to LoadFromPath(path).
func NewWatcher(path string, load func() (*Config, error), onReload func(*Config), logger zerolog.Logger) *Watcher {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	path = filepath.Clean(path)
	if load == nil {
		load = func() (*Config, error) { return LoadFromPath(path) }
	}
	return &Watcher{
		path:     path,
		load:     load,
		onReload: onReload,
		logger:   logger,
		debounce: defaultWatchDebounce,
	}
}

// Run blocks until ctx is done. The parent directory is watched so that
// editors which replace the file on save are still seen.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fsw.Close()
	if err := fsw.Add(filepath.Dir(w.path)); err != nil {
		return err
	}
	defer w.stopTimer()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			w.schedule(ctx)
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn().Err(err).Msg("config watcher error")
		}
	}
}

func (w *Watcher) schedule(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		if ctx.Err() != nil {
			return
		}
		w.reload()
	})
}

func (w *Watcher) reload() {
	cfg, err := w.load()
	if err != nil {
		w.logger.Warn().Err(err).Str("path", w.path).Msg("config reload failed, keeping previous")
		return
	}
	w.logger.Info().Str("path", w.path).Msg("config reloaded")
	if w.onReload != nil {
		w.onReload(cfg)
	}
}

func (w *Watcher) stopTimer() {
	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
}

// ActivePath returns the highest-precedence config file Load would read,
// or "" when none exists.
func ActivePath() string {
	project := filepath.Join(".", DirName, "config.yaml")
	if _, err := os.Stat(project); err == nil {
		return project
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ""
	}
	user := filepath.Join(home, DirName, "config.yaml")
	if _, err := os.Stat(user); err == nil {
		return user
	}
	return ""
}

package config

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// MutableSettings are the knobs a running daemon may reload without a
// restart: autonomy level, telemetry retention, alert cooldown.
type MutableSettings struct {
	Autonomy      AutonomyLevel
	RetentionDays int
	AlertCooldown int64 // seconds, so it is safe to store atomically
}

// Watcher reloads MutableSettings from the environment whenever a sentinel
// file changes, the way the teacher's config watcher reacts to on-disk
// config edits via fsnotify instead of requiring a daemon restart.
type Watcher struct {
	mu       sync.RWMutex
	current  MutableSettings
	path     string
	fw       *fsnotify.Watcher
	reloadFn func() (MutableSettings, error)
	closed   atomic.Bool
}

// NewWatcher creates a Watcher that reloads from reloadFn whenever path
// changes on disk. path is typically a config file or a directory
// containing one; reloadFn is left to the caller so tests can inject a
// fake reload without touching the environment.
func NewWatcher(path string, initial MutableSettings, reloadFn func() (MutableSettings, error)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(path); err != nil {
		fw.Close()
		return nil, err
	}
	w := &Watcher{current: initial, path: path, fw: fw, reloadFn: reloadFn}
	return w, nil
}

// Run watches for filesystem events until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) {
	defer w.fw.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.reload()
		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Str("path", w.path).Msg("config watcher error")
		}
	}
}

func (w *Watcher) reload() {
	settings, err := w.reloadFn()
	if err != nil {
		log.Warn().Err(err).Str("path", w.path).Msg("config reload failed, keeping previous settings")
		return
	}
	w.mu.Lock()
	w.current = settings
	w.mu.Unlock()
	log.Info().Str("autonomy", string(settings.Autonomy)).Msg("configuration reloaded")
}

// Current returns the latest successfully loaded settings.
func (w *Watcher) Current() MutableSettings {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// Close stops watching. Safe to call more than once.
func (w *Watcher) Close() error {
	if w.closed.CompareAndSwap(false, true) {
		return w.fw.Close()
	}
	return nil
}

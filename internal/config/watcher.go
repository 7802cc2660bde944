package config

import (
	"log/slog"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Watcher watches the optional YAML override file for changes and reloads
// the full environment+file configuration when it is written, notifying the
// caller of what changed via [Diff]. It backs the dynamic-reload of the
// rate-limit, max-message-length, and log-level tunables without a process
// restart.
type Watcher struct {
	path     string
	onChange func(old, new *Config, diff Diff)

	mu      sync.Mutex
	current *Config

	fsw      *fsnotify.Watcher
	done     chan struct{}
	stopOnce sync.Once
}

// NewWatcher loads configFile immediately and starts watching it for
// changes in a background goroutine. onChange is invoked, with the watcher's
// internal lock released, whenever a reload produces a [Diff] with at least
// one changed field.
func NewWatcher(configFile string, onChange func(old, new *Config, diff Diff)) (*Watcher, error) {
	cfg, err := Load(configFile)
	if err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(configFile); err != nil {
		fsw.Close()
		return nil, err
	}

	w := &Watcher{
		path:     configFile,
		onChange: onChange,
		current:  cfg,
		fsw:      fsw,
		done:     make(chan struct{}),
	}

	go w.loop()
	return w, nil
}

// Current returns the most recently loaded valid config.
func (w *Watcher) Current() *Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Stop stops the watcher and releases the underlying fsnotify handle.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.fsw.Close()
	})
}

func (w *Watcher) loop() {
	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				w.reload()
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			slog.Warn("config watcher: fsnotify error", "err", err)
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		slog.Warn("config watcher: failed to reload config, keeping previous", "path", w.path, "err", err)
		return
	}

	w.mu.Lock()
	old := w.current
	diff := DiffConfigs(old, cfg)
	w.current = cfg
	w.mu.Unlock()

	if !diff.Changed() {
		return
	}

	slog.Info("config watcher: configuration reloaded", "path", w.path)
	if w.onChange != nil {
		w.onChange(old, cfg, diff)
	}
}

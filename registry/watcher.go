package registry

import (
	"context"
	"log/slog"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/VODAN-Development/2025-fieldlab7/errors"
)

// debounceDelay is how long to wait after a file event before reloading,
// so a save that touches both registry files triggers one reload, not two.
const debounceDelay = 500 * time.Millisecond

// Watcher reloads the store when a registry file changes on disk.
type Watcher struct {
	store   *Store
	watcher *fsnotify.Watcher
	logger  *slog.Logger
}

// NewWatcher registers both registry files with fsnotify. The watcher does
// nothing until Run is called.
func NewWatcher(store *Store, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.WrapFatal(err, "registry", "NewWatcher", "create file watcher")
	}

	for _, path := range []string{store.cfg.EndpointsFile, store.cfg.QueriesFile} {
		if path == "" {
			continue
		}
		if err := fsw.Add(path); err != nil {
			_ = fsw.Close()
			return nil, errors.WrapFatal(err, "registry", "NewWatcher", "watch "+path)
		}
	}

	return &Watcher{store: store, watcher: fsw, logger: logger}, nil
}

// Run blocks until ctx is cancelled, reloading the store after each burst of
// write events. A failed reload is logged and the previous registries stay
// active.
func (w *Watcher) Run(ctx context.Context) {
	defer func() {
		if err := w.watcher.Close(); err != nil {
			w.logger.Error("close file watcher", "error", err)
		}
	}()

	var debounce *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			w.logger.Info("registry file changed", "file", event.Name)
			if debounce == nil {
				debounce = time.NewTimer(debounceDelay)
				fire = debounce.C
			} else {
				debounce.Reset(debounceDelay)
			}

		case <-fire:
			debounce = nil
			fire = nil
			if err := w.store.Reload(); err != nil {
				w.logger.Error("registry reload failed, keeping previous registries", "error", err)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("file watcher error", "error", err)
		}
	}
}

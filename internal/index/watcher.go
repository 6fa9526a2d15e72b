package index

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/inkday/internal/storage"
)

// EventCallback is called after a watcher-driven re-import.
// kind is "updated" when the document changed, "deleted" when it vanished.
type EventCallback func(kind string, path string)

const watchDebounce = 200 * time.Millisecond

// Watch starts an fsnotify watcher on the directory holding the document and
// re-syncs the DB when the document is written, created or renamed into
// place. Events are debounced since editors tend to save in several steps.
// The directory is watched rather than the file so atomic renames are seen.
//
// Sync runs on the watcher goroutine without the diary service's save lock.
// The service records the new checksum right after each write, well inside
// the debounce window, so the service's own writes re-sync as no-ops.
//
// It blocks until ctx is cancelled.
func Watch(ctx context.Context, db *DB, store *storage.FS, docPath string, logger *slog.Logger, cb EventCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	target := filepath.Join(store.Root(), filepath.FromSlash(docPath))
	dir := filepath.Dir(target)
	if err := w.Add(dir); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("dir", dir), slog.String("document", docPath))

	var timer *time.Timer
	var fire <-chan time.Time
	removed := false

	schedule := func() {
		if timer == nil {
			timer = time.NewTimer(watchDebounce)
			fire = timer.C
			return
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(watchDebounce)
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-fire:
			changed, syncErr := Sync(db, store, docPath, logger)
			if syncErr != nil {
				logger.Warn("watcher: sync failed", slog.String("path", docPath), slog.String("error", syncErr.Error()))
				continue
			}
			if removed {
				removed = false
				if _, statErr := store.Stat(docPath); statErr != nil {
					logger.Debug("watcher: document removed", slog.String("path", docPath))
					if cb != nil {
						cb("deleted", docPath)
					}
					continue
				}
			}
			if changed && cb != nil {
				cb("updated", docPath)
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				removed = true
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
				schedule()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

package indexer

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"media-catalog/internal/logging"
	"media-catalog/internal/metrics"
)

// watch forwards filesystem events as debounced sync triggers. Events are
// hints only; the periodic pass remains the source of truth.
func (idx *Indexer) watch(ctx context.Context) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logging.Error("Failed to create file watcher: %v", err)
		metrics.SyncWatcherErrors.Inc()
		return
	}
	defer func() {
		if err := watcher.Close(); err != nil {
			logging.Error("failed to close file watcher: %v", err)
		}
	}()

	count := idx.addWatchTree(watcher, idx.config.MediaDir)
	metrics.SyncWatchedDirectories.Set(float64(count))
	logging.Info("File watcher started, watching %d directories", count)

	debounce := time.NewTimer(idx.config.WatchDebounce)
	debounce.Stop()
	defer debounce.Stop()

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if idx.handleWatchEvent(watcher, event) {
				debounce.Reset(idx.config.WatchDebounce)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logging.Error("Watcher error: %v", err)
			metrics.SyncWatcherErrors.Inc()

		case <-debounce.C:
			logging.Debug("Watcher events settled, triggering synchronization")
			idx.TriggerSync("watch")

		case <-ctx.Done():
			return
		}
	}
}

// addWatchTree registers root and every directory below it that the walk
// would visit.
func (idx *Indexer) addWatchTree(watcher *fsnotify.Watcher, root string) int {
	count := 0
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != idx.config.MediaDir && idx.skipDir(path, d.Name()) {
			return fs.SkipDir
		}
		if addErr := watcher.Add(path); addErr != nil {
			logging.Warn("failed to add path to watcher %s: %v", path, addErr)
			metrics.SyncWatcherErrors.Inc()
			return nil
		}
		count++
		return nil
	})
	if err != nil {
		logging.Error("failed to walk media directory for watcher: %v", err)
		metrics.SyncWatcherErrors.Inc()
	}
	return count
}

// handleWatchEvent records the event, follows new directories and reports
// whether the event is relevant to the catalog.
func (idx *Indexer) handleWatchEvent(watcher *fsnotify.Watcher, event fsnotify.Event) bool {
	if idx.ignoredPath(event.Name) {
		return false
	}
	metrics.SyncWatcherEventsTotal.WithLabelValues(eventType(event.Op)).Inc()

	if event.Op.Has(fsnotify.Chmod) && !event.Op.Has(fsnotify.Write) {
		return false
	}

	if event.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			n := idx.addWatchTree(watcher, event.Name)
			metrics.SyncWatchedDirectories.Add(float64(n))
			logging.Debug("Added %d new directories to watcher under %s", n, event.Name)
		}
	}
	return true
}

// ignoredPath reports whether a path lies in a pruned part of the tree.
func (idx *Indexer) ignoredPath(path string) bool {
	rel, err := filepath.Rel(idx.config.MediaDir, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return true
	}
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if strings.HasPrefix(part, ".") && part != "." {
			return true
		}
		if part == idx.config.EditsDirName {
			return true
		}
	}
	trash := idx.config.TrashDirName
	return rel == trash || strings.HasPrefix(filepath.ToSlash(rel), trash+"/")
}

func eventType(op fsnotify.Op) string {
	switch {
	case op.Has(fsnotify.Create):
		return "create"
	case op.Has(fsnotify.Write):
		return "write"
	case op.Has(fsnotify.Remove):
		return "remove"
	case op.Has(fsnotify.Rename):
		return "rename"
	case op.Has(fsnotify.Chmod):
		return "chmod"
	default:
		return "unknown"
	}
}

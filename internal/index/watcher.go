package index

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/arbor/internal/storage"
)

// Event kinds passed to EventCallback.
const (
	EventCreated = "created"
	EventUpdated = "updated"
	EventDeleted = "deleted"
)

// EventCallback is called after each watcher-driven index change.
type EventCallback func(kind string, path string)

const reconcileDelay = 200 * time.Millisecond

// Watch follows file changes under root and keeps the index current until
// ctx is cancelled. Directories created later are watched too. Renames delete
// the old path at once and schedule a debounced reconcile to pick up the new
// one.
func Watch(ctx context.Context, idx PlotIndex, store storage.Provider, root string, logger *slog.Logger, cb EventCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, root); err != nil {
		return err
	}
	logger.Info("watcher: started", slog.String("root", root))

	notify := func(kind, rel string) {
		logger.Debug("watcher: "+kind, slog.String("path", rel))
		if cb != nil {
			cb(kind, rel)
		}
	}

	var reconcile *time.Timer
	var reconcileC <-chan time.Time
	defer func() {
		if reconcile != nil {
			reconcile.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			logger.Info("watcher: stopped")
			return nil

		case <-reconcileC:
			reconcileStore(idx, store, logger, notify)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if skipDir(root, ev.Name) {
						continue
					}
					if err := addDirsRecursive(w, ev.Name); err != nil {
						logger.Warn("watcher: add dir failed", slog.String("path", ev.Name), slog.String("error", err.Error()))
					}
					indexDir(idx, store, root, ev.Name, logger, notify)
					continue
				}
			}

			rel, err := filepath.Rel(root, ev.Name)
			if err != nil || !storage.IsPlotFile(rel) {
				continue
			}
			rel = filepath.ToSlash(rel)

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				if !indexPath(idx, store, rel, logger) {
					continue
				}
				kind := EventUpdated
				if ev.Op&fsnotify.Create != 0 {
					kind = EventCreated
				}
				notify(kind, rel)

			case ev.Op&fsnotify.Remove != 0:
				if err := idx.DeletePlot(rel); err != nil {
					logger.Warn("watcher: delete failed", slog.String("path", rel), slog.String("error", err.Error()))
					continue
				}
				notify(EventDeleted, rel)

			case ev.Op&fsnotify.Rename != 0:
				if err := idx.DeletePlot(rel); err != nil {
					logger.Warn("watcher: rename delete failed", slog.String("path", rel), slog.String("error", err.Error()))
				} else {
					notify(EventDeleted, rel)
				}
				if reconcile == nil {
					reconcile = time.NewTimer(reconcileDelay)
					reconcileC = reconcile.C
				} else {
					reconcile.Reset(reconcileDelay)
				}
			}

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", err.Error()))
		}
	}
}

func indexPath(idx PlotIndex, store storage.Provider, rel string, logger *slog.Logger) bool {
	data, err := store.Read(rel)
	if err != nil {
		logger.Warn("watcher: read failed", slog.String("path", rel), slog.String("error", err.Error()))
		return false
	}
	if _, err := IndexFile(idx, rel, data); err != nil {
		logger.Warn("watcher: index failed", slog.String("path", rel), slog.String("error", err.Error()))
		return false
	}
	return true
}

// reconcileStore drops rows without a file and indexes files whose checksum
// differs from the stored one.
func reconcileStore(idx PlotIndex, store storage.Provider, logger *slog.Logger, notify func(kind, rel string)) {
	checksums, err := idx.AllChecksums()
	if err != nil {
		logger.Warn("reconcile: checksums failed", slog.String("error", err.Error()))
		return
	}
	metas, err := store.List("")
	if err != nil {
		logger.Warn("reconcile: list failed", slog.String("error", err.Error()))
		return
	}

	disk := make(map[string]string, len(metas))
	for _, m := range metas {
		disk[m.Path] = m.Checksum
	}
	for p := range checksums {
		if _, ok := disk[p]; ok {
			continue
		}
		if err := idx.DeletePlot(p); err == nil {
			notify(EventDeleted, p)
		}
	}
	for p, cs := range disk {
		prev, known := checksums[p]
		if prev == cs {
			continue
		}
		if !indexPath(idx, store, p, logger) {
			continue
		}
		if known {
			notify(EventUpdated, p)
		} else {
			notify(EventCreated, p)
		}
	}
}

func indexDir(idx PlotIndex, store storage.Provider, root, dir string, logger *slog.Logger, notify func(kind, rel string)) {
	_ = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil || !storage.IsPlotFile(rel) {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if indexPath(idx, store, rel, logger) {
			notify(EventCreated, rel)
		}
		return nil
	})
}

// skipDir reports whether dir holds no plot files: the photo directory and
// hidden directories.
func skipDir(root, dir string) bool {
	rel, err := filepath.Rel(root, dir)
	if err != nil {
		return true
	}
	rel = filepath.ToSlash(rel)
	return rel == storage.PhotoDir || strings.HasPrefix(filepath.Base(dir), ".")
}

func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != root && skipDir(root, p) {
			return filepath.SkipDir
		}
		return w.Add(p)
	})
}

package doccache

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// EventCallback is called after a watcher-driven cache change.
// kind is one of "updated" or "deleted"; path is repository-relative.
type EventCallback func(kind string, path string)

const reconcileDelay = 200 * time.Millisecond

// Watch keeps the embedding cache warm for a local repository rooted at
// root: changed documents are re-embedded as soon as they are written, so
// the next run finds them in the cache. Renames trigger a debounced full
// Refresh. Watch blocks until ctx is cancelled.
func (c *Cache) Watch(ctx context.Context, root string, cb EventCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, root); err != nil {
		return err
	}
	logger := c.opts.Logger
	logger.Info("doccache: watcher started", slog.String("root", root))

	var reconcileTimer *time.Timer
	var reconcileCh <-chan time.Time
	scheduleReconcile := func() {
		if reconcileTimer == nil {
			reconcileTimer = time.NewTimer(reconcileDelay)
			reconcileCh = reconcileTimer.C
		} else {
			reconcileTimer.Reset(reconcileDelay)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reconcileTimer != nil {
				reconcileTimer.Stop()
			}
			logger.Info("doccache: watcher stopped")
			return nil

		case <-reconcileCh:
			if _, err := c.Refresh(ctx); err != nil {
				logger.Warn("doccache: reconcile failed", slog.String("error", err.Error()))
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, ev.Name); addErr != nil {
						logger.Warn("doccache: watch new dir failed",
							slog.String("path", ev.Name),
							slog.String("error", addErr.Error()))
					}
					scheduleReconcile()
					continue
				}
			}
			rel, ok := c.relevantPath(root, ev.Name)
			if !ok {
				continue
			}

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				data, readErr := c.repo.ReadFile(ctx, rel)
				if readErr != nil {
					logger.Warn("doccache: read failed", slog.String("path", rel), slog.String("error", readErr.Error()))
					continue
				}
				if upErr := c.upsert(ctx, rel, data); upErr != nil {
					logger.Warn("doccache: embed failed", slog.String("path", rel), slog.String("error", upErr.Error()))
					continue
				}
				logger.Debug("doccache: document embedded", slog.String("path", rel))
				if cb != nil {
					cb("updated", rel)
				}

			case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				if rmErr := c.remove(ctx, rel); rmErr != nil {
					logger.Warn("doccache: remove failed", slog.String("path", rel), slog.String("error", rmErr.Error()))
				} else if cb != nil {
					cb("deleted", rel)
				}
				if ev.Op&fsnotify.Rename != 0 {
					scheduleReconcile()
				}
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("doccache: watcher error", slog.String("error", watchErr.Error()))
		}
	}
}

// relevantPath maps an absolute event path to a repository-relative Markdown
// path under the docs directory.
func (c *Cache) relevantPath(root, abs string) (string, bool) {
	if !strings.HasSuffix(abs, ".md") {
		return "", false
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", false
	}
	rel = filepath.ToSlash(rel)
	if dir := strings.Trim(c.opts.DocsDir, "/"); dir != "" && !strings.HasPrefix(rel, dir+"/") {
		return "", false
	}
	for _, seg := range strings.Split(rel, "/") {
		if strings.HasPrefix(seg, ".") {
			return "", false
		}
	}
	return rel, true
}

// addDirsRecursive adds root and all its non-hidden subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return w.Add(path)
	})
}

package ingest

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/ansuz/internal/storage"
)

// EventCallback is called after a watcher-driven store change.
// kind is one of "created", "updated", "deleted".
type EventCallback func(kind string, path string)

// Watch starts an fsnotify watcher on the vault root and processes file
// change events until ctx is cancelled. It calls cb (if non-nil) after
// each successful mutation.
//
// New directories created at runtime are automatically added to the watch
// list. Rename events trigger a reconciliation pass that removes stale
// entries whose files no longer exist on disk.
func (in *Ingester) Watch(ctx context.Context, vault storage.Provider, cb EventCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	root := vault.Root()
	if err := addDirsRecursive(w, root); err != nil {
		return err
	}

	in.log.Info("watcher: started", slog.String("root", root))

	// reconcileTimer is used to debounce rename reconciliation.
	var reconcileTimer *time.Timer
	var reconcileCh <-chan time.Time

	scheduleReconcile := func() {
		if reconcileTimer == nil {
			reconcileTimer = time.NewTimer(200 * time.Millisecond)
			reconcileCh = reconcileTimer.C
		} else {
			reconcileTimer.Reset(200 * time.Millisecond)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reconcileTimer != nil {
				reconcileTimer.Stop()
			}
			in.log.Info("watcher: stopped")
			return nil

		case <-reconcileCh:
			in.reconcileAfterRename(ctx, vault, cb)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			absPath := ev.Name

			// --- Handle new directories: add to watcher ---
			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(absPath); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, absPath); addErr != nil {
						in.log.Warn("watcher: add new dir failed",
							slog.String("path", absPath),
							slog.String("error", addErr.Error()))
					} else {
						in.log.Debug("watcher: watching new dir", slog.String("path", absPath))
					}
					// Ingest any .md files already in the new directory.
					in.ingestNewDir(ctx, vault, root, absPath, cb)
					continue
				}
			}

			// Only process .md files from here on.
			if !strings.HasSuffix(absPath, ".md") {
				continue
			}

			rel, relErr := filepath.Rel(root, absPath)
			if relErr != nil {
				continue
			}

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				data, readErr := vault.Read(rel)
				if readErr != nil {
					in.log.Warn("watcher: read failed", slog.String("path", rel), slog.String("error", readErr.Error()))
					continue
				}
				if ingErr := in.IngestFile(ctx, rel, data); ingErr != nil {
					in.log.Warn("watcher: ingest failed", slog.String("path", rel), slog.String("error", ingErr.Error()))
					continue
				}
				kind := "updated"
				if ev.Op&fsnotify.Create != 0 {
					kind = "created"
				}
				in.log.Debug("watcher: ingested", slog.String("path", rel), slog.String("op", kind))
				if cb != nil {
					cb(kind, rel)
				}

			case ev.Op&fsnotify.Remove != 0:
				if delErr := in.Remove(ctx, rel); delErr != nil {
					in.log.Warn("watcher: remove failed", slog.String("path", rel), slog.String("error", delErr.Error()))
					continue
				}
				in.log.Debug("watcher: removed", slog.String("path", rel))
				if cb != nil {
					cb("deleted", rel)
				}

			case ev.Op&fsnotify.Rename != 0:
				// fsnotify fires Rename on the OLD path only. The new
				// path will arrive as a separate Create event (if it
				// stays within a watched dir). We delete the old entry
				// immediately and schedule a short reconciliation pass
				// to catch any stragglers.
				if delErr := in.Remove(ctx, rel); delErr != nil {
					in.log.Warn("watcher: rename remove failed", slog.String("path", rel), slog.String("error", delErr.Error()))
				} else {
					in.log.Debug("watcher: rename old removed", slog.String("path", rel))
					if cb != nil {
						cb("deleted", rel)
					}
				}
				scheduleReconcile()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			in.log.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// reconcileAfterRename does a lightweight sync using batch lookups:
// finds store entries without a corresponding file on disk and removes
// them, and ingests on-disk files the store does not know about.
func (in *Ingester) reconcileAfterRename(ctx context.Context, vault storage.Provider, cb EventCallback) {
	known, err := in.store.Checksums(ctx)
	if err != nil {
		in.log.Warn("reconcile: checksums failed", slog.String("error", err.Error()))
		return
	}

	metas, err := vault.List("")
	if err != nil {
		in.log.Warn("reconcile: list failed", slog.String("error", err.Error()))
		return
	}

	disk := make(map[string]string, len(metas))
	for _, m := range metas {
		disk[m.Path] = m.Checksum
	}

	for p := range known {
		if _, ok := disk[p]; !ok {
			if delErr := in.Remove(ctx, p); delErr == nil {
				in.log.Debug("reconcile: removed stale", slog.String("path", p))
				if cb != nil {
					cb("deleted", p)
				}
			}
		}
	}

	for p, cs := range disk {
		if known[p] == cs {
			continue
		}
		data, readErr := vault.Read(p)
		if readErr != nil {
			continue
		}
		if ingErr := in.IngestFile(ctx, p, data); ingErr == nil {
			in.log.Debug("reconcile: ingested new", slog.String("path", p))
			if cb != nil {
				cb("created", p)
			}
		}
	}
}

// ingestNewDir ingests any .md files found in a newly created directory.
func (in *Ingester) ingestNewDir(ctx context.Context, vault storage.Provider, root, dirPath string, cb EventCallback) {
	_ = filepath.WalkDir(dirPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(path, ".md") {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		data, readErr := vault.Read(rel)
		if readErr != nil {
			return nil
		}
		if ingErr := in.IngestFile(ctx, rel, data); ingErr == nil {
			in.log.Debug("watcher: ingested from new dir", slog.String("path", rel))
			if cb != nil {
				cb("created", rel)
			}
		}
		return nil
	})
}

// addDirsRecursive adds root and all its subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}

package rules

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"csreply-backend/internal/shared/telemetry"
)

// Watcher reloads a rules file into a Store whenever the file changes.
// A file that fails to parse is logged and ignored; the previous snapshot
// stays active.
type Watcher struct {
	path    string
	store   *Store
	adjust  func(*Rules) (*Rules, error)
	watcher *fsnotify.Watcher
}

// NewWatcher watches path and feeds successful reloads into store. adjust, if
// non-nil, is applied to every freshly parsed snapshot (env threshold
// overrides).
func NewWatcher(path string, store *Store, adjust func(*Rules) (*Rules, error)) (*Watcher, error) {
	if path == "" {
		return nil, fmt.Errorf("rules watcher: path is required")
	}
	if store == nil {
		return nil, fmt.Errorf("rules watcher: store is required")
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// Editors and config-map mounts replace files via rename, so watch the
	// directory and filter on the file name.
	if err := w.Add(filepath.Dir(path)); err != nil {
		_ = w.Close()
		return nil, err
	}
	return &Watcher{
		path:    filepath.Clean(path),
		store:   store,
		adjust:  adjust,
		watcher: w,
	}, nil
}

// Run blocks until ctx is done or the underlying watcher is closed.
func (w *Watcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			changed, err := w.Reload()
			if err != nil {
				telemetry.Error("rules.reload_failed", map[string]any{
					"path":  w.path,
					"error": err.Error(),
				})
				continue
			}
			if changed {
				telemetry.Info("rules.reloaded", map[string]any{
					"path":        w.path,
					"fingerprint": w.store.Current().Fingerprint(),
				})
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			telemetry.Error("rules.watch_error", map[string]any{
				"path":  w.path,
				"error": err.Error(),
			})
		}
	}
}

// Reload parses the file and swaps it in if valid. Editors often emit several
// write events per save; a file whose content is unchanged is not swapped.
func (w *Watcher) Reload() (bool, error) {
	r, err := LoadFile(w.path)
	if err != nil {
		return false, err
	}
	if current := w.store.Current(); current != nil && current.Fingerprint() == r.Fingerprint() {
		return false, nil
	}
	if w.adjust != nil {
		if r, err = w.adjust(r); err != nil {
			return false, err
		}
	}
	w.store.Swap(r)
	return true, nil
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

// Package watch triggers a callback once filesystem activity under a tree
// settles.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/memkit/treescan/internal/ignore"
	"github.com/memkit/treescan/internal/logging"
)

// DefaultDebounce is the quiet period used when Options.Debounce is zero.
const DefaultDebounce = 500 * time.Millisecond

// Options configures a Watcher.
type Options struct {
	Debounce time.Duration
	// Skip reports whether a root-relative, slash-separated path should be
	// neither watched nor treated as activity. Refresh consults it again.
	Skip func(rel string, isDir bool) bool
}

// Watcher follows a directory tree recursively.
type Watcher struct {
	root   string
	opts   Options
	fsw    *fsnotify.Watcher
	logger *zap.Logger

	mu sync.Mutex
	// dirs holds the root-relative directories currently watched.
	dirs map[string]struct{}
}

// New starts watching root and every directory below it that Skip admits.
func New(root string, opts Options, logger *zap.Logger) (*Watcher, error) {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Skip == nil {
		opts.Skip = func(string, bool) bool { return false }
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch init: %w", err)
	}
	w := &Watcher{
		root:   root,
		opts:   opts,
		fsw:    fsw,
		logger: logging.Component(logger, "watch"),
		dirs:   make(map[string]struct{}),
	}
	if err := w.addRecursive(root); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	return w, nil
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

// Refresh applies the current Skip to the whole tree: directories it now
// skips stop being watched and directories it now admits start.
func (w *Watcher) Refresh() error {
	w.mu.Lock()
	var dropped []string
	for rel := range w.dirs {
		if w.opts.Skip(rel, true) || w.underSkipped(rel) {
			dropped = append(dropped, rel)
			delete(w.dirs, rel)
		}
	}
	w.mu.Unlock()
	w.unwatch(dropped)
	return w.addRecursive(w.root)
}

// Run blocks until ctx is done, calling fn once per burst of events after
// Debounce of quiet. Calls are serialized; errors from fn are logged.
func (w *Watcher) Run(ctx context.Context, fn func(context.Context) error) error {
	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if !w.handle(ev) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(w.opts.Debounce)
			fire = timer.C
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", zap.Error(err))
		case <-fire:
			fire = nil
			if err := fn(ctx); err != nil {
				if errors.Is(err, context.Canceled) {
					return nil
				}
				w.logger.Error("triggered run failed", zap.Error(err))
			}
		}
	}
}

// handle reports whether ev counts as activity, extending the watch to new
// directories.
func (w *Watcher) handle(ev fsnotify.Event) bool {
	rel, ok := w.rel(ev.Name)
	if !ok {
		return false
	}
	if ev.Has(fsnotify.Create) {
		if info, err := os.Lstat(ev.Name); err == nil && info.IsDir() {
			if w.opts.Skip(rel, true) {
				return false
			}
			if err := w.addRecursive(ev.Name); err != nil {
				w.logger.Warn("cannot watch new directory", zap.String("path", rel), zap.Error(err))
			}
			return true
		}
	}
	// A watched directory leaving the tree takes its files with it, whatever
	// Skip says about the directory name as a file.
	if ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
		if gone := w.forget(rel); len(gone) > 0 {
			w.unwatch(gone)
			return true
		}
	}
	if ev.Op == fsnotify.Chmod {
		return false
	}
	return !w.opts.Skip(rel, false) && !w.underSkipped(rel)
}

func (w *Watcher) rel(name string) (string, bool) {
	rel, err := filepath.Rel(w.root, name)
	if err != nil || rel == "." {
		return "", false
	}
	return ignore.NormalizePath(rel), true
}

// underSkipped catches events for paths inside a skipped directory that was
// still watched via a parent (the parent reports its children by name).
func (w *Watcher) underSkipped(rel string) bool {
	dir := filepath.ToSlash(filepath.Dir(filepath.FromSlash(rel)))
	for dir != "." && dir != "/" && dir != "" {
		if w.opts.Skip(dir, true) {
			return true
		}
		dir = filepath.ToSlash(filepath.Dir(filepath.FromSlash(dir)))
	}
	return false
}

// forget drops rel and every watched directory below it from the watched
// set and returns what it dropped.
func (w *Watcher) forget(rel string) []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	var gone []string
	prefix := rel + "/"
	for d := range w.dirs {
		if d == rel || strings.HasPrefix(d, prefix) {
			gone = append(gone, d)
			delete(w.dirs, d)
		}
	}
	return gone
}

// unwatch removes kernel watches. A moved directory keeps its watch at the
// new location, so it has to go explicitly.
func (w *Watcher) unwatch(rels []string) {
	for _, rel := range rels {
		_ = w.fsw.Remove(filepath.Join(w.root, filepath.FromSlash(rel)))
	}
}

func (w *Watcher) addRecursive(start string) error {
	return filepath.WalkDir(start, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == start {
				return err
			}
			w.logger.Debug("skip unreadable directory", zap.String("path", path), zap.Error(err))
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if rel, ok := w.rel(path); ok && w.opts.Skip(rel, true) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		if rel, ok := w.rel(path); ok {
			w.mu.Lock()
			w.dirs[rel] = struct{}{}
			w.mu.Unlock()
		}
		return nil
	})
}

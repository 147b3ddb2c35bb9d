package app

import (
	"context"

	"go.uber.org/zap"

	"github.com/memkit/treescan/internal/scan"
	"github.com/memkit/treescan/internal/store"
	"github.com/memkit/treescan/internal/watch"
)

// runWatch scans once, then rescans after every settled burst of changes
// until ctx is cancelled.
func runWatch(ctx context.Context, ws workspace, reset bool, out output) error {
	s := newScanner(ws)
	if reset {
		if err := s.Reset(); err != nil {
			return err
		}
	}
	var (
		walker *scan.Walker
		w      *watch.Watcher
	)
	scanOnce := func(ctx context.Context) error {
		rep, err := s.Run(ctx)
		if err != nil {
			return err
		}
		if err := out.report(rep); err != nil {
			return err
		}
		// The ignore file may have changed along with the tree.
		next, err := s.Walker()
		if err != nil {
			return err
		}
		walker = next
		if w == nil {
			return nil
		}
		return w.Refresh()
	}
	if err := scanOnce(ctx); err != nil {
		return err
	}

	w, err := watch.New(ws.root, watch.Options{
		Debounce: ws.cfg.Watch.Debounce,
		Skip: func(rel string, isDir bool) bool {
			if rel == store.IgnoreFileName {
				return false
			}
			if isDir {
				return walker.Skips(rel, true)
			}
			return !walker.Admits(rel)
		},
	}, ws.logger)
	if err != nil {
		return err
	}
	defer w.Close()

	ws.logger.Info("watching for changes",
		zap.String("root", ws.root),
		zap.Duration("debounce", ws.cfg.Watch.Debounce))
	return w.Run(ctx, scanOnce)
}

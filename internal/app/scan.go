package app

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-git/go-billy/v5/osfs"
	"go.uber.org/zap"

	"github.com/memkit/treescan/internal/cachex"
	"github.com/memkit/treescan/internal/config"
	"github.com/memkit/treescan/internal/diff"
	"github.com/memkit/treescan/internal/gitx"
	"github.com/memkit/treescan/internal/hasher"
	"github.com/memkit/treescan/internal/history"
	"github.com/memkit/treescan/internal/ignore"
	"github.com/memkit/treescan/internal/logging"
	"github.com/memkit/treescan/internal/report"
	"github.com/memkit/treescan/internal/scan"
	"github.com/memkit/treescan/internal/store"
)

// Scanner runs complete one-shot scans of a root: walk, hash, diff against
// the stored snapshot, then persist the new snapshot.
type Scanner struct {
	root      string
	cfg       config.Config
	cachePath string
	logger    *zap.Logger
	now       func() time.Time
}

// newScanner returns a Scanner for ws.
func newScanner(ws workspace) *Scanner {
	return &Scanner{
		root:      ws.root,
		cfg:       ws.cfg,
		cachePath: ws.cachePath(),
		logger:    logging.Component(ws.logger, "scanner"),
		now:       time.Now,
	}
}

// Reset deletes the stored snapshot so the next run starts from an empty
// baseline.
func (s *Scanner) Reset() error {
	if err := cachex.Remove(s.cachePath); err != nil {
		return fmt.Errorf("reset cache: %w", err)
	}
	s.logger.Info("scan cache removed", zap.String("path", s.cachePath))
	return nil
}

// Walker builds the walker a scan uses, so other commands can ask the same
// inclusion questions.
func (s *Scanner) Walker() (*scan.Walker, error) {
	fileP, err := ignore.LoadPatterns(store.IgnorePath(s.root))
	if err != nil {
		return nil, fmt.Errorf("load ignore file: %w", err)
	}
	patterns := ignore.DefaultPatterns()
	patterns = append(patterns, s.cfg.Scan.Ignore...)
	patterns = append(patterns, fileP...)

	return scan.NewWalker(osfs.New(s.root), s.root, scan.Options{
		IncludeExt: s.cfg.Scan.IncludeExt,
		Ignore:     patterns,
		Exclude:    s.excludes(),
	}, s.logger), nil
}

// excludes lists state paths inside the root that must never be scanned.
func (s *Scanner) excludes() []string {
	out := []string{store.DirName}
	rel, err := filepath.Rel(s.root, s.cachePath)
	if err == nil && rel != "." && !strings.HasPrefix(rel, "..") {
		out = append(out, ignore.NormalizePath(rel))
	}
	return out
}

// Run performs one scan. The snapshot is replaced only when the run gets as
// far as producing a report; a failed run leaves the previous one in place.
func (s *Scanner) Run(ctx context.Context) (report.Report, error) {
	started := s.now()
	s.logger.Debug("scan started",
		zap.String("root", s.root),
		zap.Uint64("config", config.Fingerprint(s.cfg)))

	walker, err := s.Walker()
	if err != nil {
		return report.Report{}, err
	}
	walked, err := walker.Walk(".")
	if err != nil {
		return report.Report{}, fmt.Errorf("walk %s: %w", s.root, err)
	}

	h, err := hasher.New(osfs.New(s.root), hasher.Options{
		Algorithm:    s.cfg.Scan.Algorithm,
		MaxBytes:     s.cfg.Scan.MaxHashBytes,
		ChunkSize:    s.cfg.Scan.ChunkSize,
		Workers:      s.cfg.Scan.Workers,
		ChunkTimeout: s.cfg.Scan.ChunkTimeout,
	}, s.logger)
	if err != nil {
		return report.Report{}, err
	}
	hashed := h.Hash(ctx, walked.Files)

	previous, baseline := s.baseline()
	unknown := hashed.FailedPaths()
	if len(walked.Errors) > 0 {
		dirs := make([]string, 0, len(walked.Errors))
		for _, e := range walked.Errors {
			dirs = append(dirs, e.Path)
		}
		unknown = append(unknown, diff.UnderDirs(previous, dirs)...)
	}
	changes := diff.Diff(previous, hashed.Records, unknown)
	head := currentHead(ctx, s.root)
	finished := s.now()

	rep := report.Build(report.Input{
		Root:       s.root,
		StartedAt:  started,
		Finished:   finished,
		GitHead:    head,
		Algorithm:  s.cfg.Scan.Algorithm,
		Baseline:   baseline,
		Files:      len(walked.Files),
		Hash:       hashed,
		Diff:       changes,
		WalkErrors: walked.Errors,
		Recent:     s.cfg.Report.Recent,
	})

	next := cachex.New(s.root, s.cfg.Scan.Algorithm)
	next.Files = changes.Next
	next.ScannedAt = finished.UnixMilli()
	next.Head = head
	if err := cachex.Save(s.cachePath, next); err != nil {
		return rep, fmt.Errorf("save scan cache: %w", err)
	}
	if err := report.Save(store.ReportPath(s.root), rep); err != nil {
		s.logger.Warn("cannot write report file", zap.Error(err))
	}
	s.record(ctx, rep)

	s.logger.Info("scan complete",
		zap.String("run", rep.RunID),
		zap.Int("files", rep.Totals.Files),
		zap.Int("added", rep.Changes.Added),
		zap.Int("modified", rep.Changes.Modified),
		zap.Int("deleted", rep.Changes.Deleted),
		zap.Int("failed_chunks", rep.Totals.FailedChunks),
		zap.Int64("duration_ms", rep.DurationMs))
	return rep, nil
}

// baseline loads the previous snapshot. Any load failure degrades to an
// empty baseline.
func (s *Scanner) baseline() (map[string]cachex.FileRecord, string) {
	c, ok, err := cachex.Load(s.cachePath, s.cfg.Scan.Algorithm)
	switch {
	case err != nil:
		s.logger.Warn("discarding unusable scan cache",
			zap.String("path", s.cachePath), zap.Error(err))
		return nil, report.BaselineDiscarded
	case !ok:
		return nil, report.BaselineEmpty
	}
	return c.Files, report.BaselineCache
}

func (s *Scanner) record(ctx context.Context, rep report.Report) {
	if !s.cfg.History.Enabled {
		return
	}
	st, err := history.Open(ctx, store.HistoryPath(s.root))
	if err != nil {
		s.logger.Warn("history unavailable", zap.Error(err))
		return
	}
	defer st.Close()
	if err := st.Record(ctx, history.FromReport(rep)); err != nil {
		s.logger.Warn("cannot record run", zap.Error(err))
	}
}

func currentHead(ctx context.Context, root string) string {
	head, err := gitx.Head(ctx, root)
	if err != nil {
		return ""
	}
	return head
}

func runScan(ctx context.Context, ws workspace, reset bool, out output) error {
	s := newScanner(ws)
	if reset {
		if err := s.Reset(); err != nil {
			return err
		}
	}
	rep, err := s.Run(ctx)
	if err != nil {
		return err
	}
	return out.report(rep)
}

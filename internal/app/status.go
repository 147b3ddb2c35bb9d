package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/memkit/treescan/internal/cachex"
	"github.com/memkit/treescan/internal/format"
	"github.com/memkit/treescan/internal/hash"
	"github.com/memkit/treescan/internal/statusx"
)

// StatusResponse describes output of the status command.
type StatusResponse struct {
	Root        string          `json:"root"`
	CachePath   string          `json:"cache_path"`
	Cached      bool            `json:"cached"`
	CacheError  string          `json:"cache_error,omitempty"`
	FileCount   int             `json:"file_count"`
	Oversized   int             `json:"oversized"`
	Errors      int             `json:"errors"`
	Algorithm   hash.Algorithm  `json:"algorithm,omitempty"`
	ScannedAtMs int64           `json:"scanned_at_ms,omitempty"`
	Git         statusx.GitInfo `json:"git"`
	Verdict     statusx.Verdict `json:"verdict"`
}

func computeStatus(ctx context.Context, ws workspace) (StatusResponse, error) {
	s := newScanner(ws)
	resp := StatusResponse{Root: ws.root, CachePath: s.cachePath}

	exists, err := cachex.Exists(s.cachePath)
	if err != nil {
		return StatusResponse{}, err
	}
	resp.Cached = exists

	var c cachex.Cache
	usable := false
	if exists {
		loaded, ok, err := cachex.Load(s.cachePath, ws.cfg.Scan.Algorithm)
		if err != nil {
			resp.CacheError = err.Error()
		} else if ok {
			c, usable = loaded, true
		}
	}
	if usable {
		resp.FileCount = len(c.Files)
		resp.Algorithm = c.Algorithm
		resp.ScannedAtMs = c.ScannedAt
		for _, rec := range c.Files {
			switch {
			case rec.TooLarge():
				resp.Oversized++
			case rec.Failed():
				resp.Errors++
			}
		}
	}

	walker, err := s.Walker()
	if err != nil {
		return StatusResponse{}, err
	}
	resp.Git = statusx.CollectGitInfo(ctx, ws.root, c.Head, walker.Admits)
	resp.Verdict = statusx.Assess(statusx.Baseline{Exists: exists, Usable: usable}, resp.Git)
	return resp, nil
}

func (o output) status(resp StatusResponse) error {
	if o.json {
		return writeJSON(o.w, resp)
	}
	p := &errWriter{w: o.w}
	p.printf("Root: %s\n", resp.Root)
	switch {
	case !resp.Cached:
		p.printf("Snapshot: none (next scan reports every file as added)\n")
	case resp.CacheError != "":
		p.printf("Snapshot: unusable (%s)\n", resp.CacheError)
	default:
		p.printf("Snapshot: %d files, %s, scanned %s\n",
			resp.FileCount, resp.Algorithm,
			time.UnixMilli(resp.ScannedAtMs).Format("2006-01-02 15:04:05"))
		if resp.Oversized > 0 || resp.Errors > 0 {
			p.printf("Unhashed: %d oversized, %d unreadable\n", resp.Oversized, resp.Errors)
		}
	}
	if resp.Git.Repo {
		p.printf("Git: recorded %s, current %s (%s)\n",
			orNone(format.ShortHead(resp.Git.BaseHead)),
			orNone(format.ShortHead(resp.Git.CurrentHead)),
			resp.Git.ChangedReason)
		if resp.Git.ChangedPathCount > 0 {
			p.printf("Git changed paths in scope: %d\n", resp.Git.ChangedPathCount)
		}
	}
	p.printf("Stale: %v (%s)\n", resp.Verdict.Stale, resp.Verdict.Why)
	return p.err
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}

type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) printf(layout string, args ...any) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintf(e.w, layout, args...)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

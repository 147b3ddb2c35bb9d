// Package report aggregates a scan run into a summary.
package report

import (
	"encoding/json"
	"io"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/memkit/treescan/internal/cachex"
	"github.com/memkit/treescan/internal/diff"
	"github.com/memkit/treescan/internal/hash"
	"github.com/memkit/treescan/internal/hasher"
	"github.com/memkit/treescan/internal/scan"
)

// Baseline sources.
const (
	BaselineCache     = "cache"
	BaselineEmpty     = "empty"
	BaselineDiscarded = "discarded"
)

// NoExtension buckets files without an extension.
const NoExtension = "(none)"

// ExtBucket counts files sharing an extension.
type ExtBucket struct {
	Ext   string `json:"ext"`
	Count int    `json:"count"`
}

// Totals summarizes the work a run did.
type Totals struct {
	Files        int `json:"files"`
	Hashed       int `json:"hashed"`
	Oversized    int `json:"oversized"`
	Errors       int `json:"errors"`
	FailedChunks int `json:"failed_chunks"`
	WalkErrors   int `json:"walk_errors"`
}

// Report is the outcome of one scan run.
type Report struct {
	RunID      string                `json:"run_id"`
	Root       string                `json:"root"`
	StartedAt  time.Time             `json:"started_at"`
	DurationMs int64                 `json:"duration_ms"`
	GitHead    string                `json:"git_head,omitempty"`
	Algorithm  hash.Algorithm        `json:"algorithm"`
	Baseline   string                `json:"baseline"`
	Workers    int                   `json:"workers"`
	Totals     Totals                `json:"totals"`
	Changes    diff.Counts           `json:"changes"`
	Extensions []ExtBucket           `json:"extensions"`
	Recent     []diff.ChangeEntry    `json:"recent"`
	ErrorFiles []cachex.FileRecord   `json:"error_files,omitempty"`
	Failed     []hasher.ChunkFailure `json:"failed_chunks,omitempty"`
	WalkErrors []scan.WalkError      `json:"walk_errors,omitempty"`
}

// Input carries everything Build aggregates.
type Input struct {
	Root       string
	StartedAt  time.Time
	Finished   time.Time
	GitHead    string
	Algorithm  hash.Algorithm
	Baseline   string
	Files      int
	Hash       hasher.Result
	Diff       diff.Result
	WalkErrors []scan.WalkError
	Recent     int
}

// Build aggregates a run into a Report.
func Build(in Input) Report {
	r := Report{
		RunID:      uuid.NewString(),
		Root:       in.Root,
		StartedAt:  in.StartedAt,
		DurationMs: in.Finished.Sub(in.StartedAt).Milliseconds(),
		GitHead:    in.GitHead,
		Algorithm:  in.Algorithm,
		Baseline:   in.Baseline,
		Workers:    in.Hash.Workers,
		Changes:    diff.Count(in.Diff.Changes),
		Extensions: BucketByExtension(in.Hash.Records),
		Recent:     RecentChanges(in.Diff.Changes, in.Recent),
		Failed:     in.Hash.Failed,
		WalkErrors: in.WalkErrors,
	}
	r.Totals = Totals{
		Files:        in.Files,
		FailedChunks: len(in.Hash.Failed),
		WalkErrors:   len(in.WalkErrors),
	}
	for _, rec := range in.Hash.Records {
		switch {
		case rec.TooLarge():
			r.Totals.Oversized++
		case rec.Failed():
			r.Totals.Errors++
			r.ErrorFiles = append(r.ErrorFiles, rec)
		default:
			r.Totals.Hashed++
		}
	}
	return r
}

// BucketByExtension counts records per lower-cased extension, largest bucket
// first, ties by extension.
func BucketByExtension(records []cachex.FileRecord) []ExtBucket {
	counts := make(map[string]int)
	for _, rec := range records {
		counts[Extension(rec.Path)]++
	}
	out := make([]ExtBucket, 0, len(counts))
	for ext, n := range counts {
		out = append(out, ExtBucket{Ext: ext, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Ext < out[j].Ext
	})
	return out
}

// Extension returns the lower-cased extension of a slash path, or NoExtension.
// Dotfiles such as ".env" count as having no extension.
func Extension(p string) string {
	base := path.Base(p)
	ext := path.Ext(base)
	if ext == "" || ext == base {
		return NoExtension
	}
	return strings.ToLower(ext)
}

// RecentChanges returns at most n changes ordered by modification time
// descending, ties broken by path ascending.
func RecentChanges(changes []diff.ChangeEntry, n int) []diff.ChangeEntry {
	if n <= 0 || len(changes) == 0 {
		return []diff.ChangeEntry{}
	}
	sorted := append([]diff.ChangeEntry(nil), changes...)
	sort.SliceStable(sorted, func(i, j int) bool {
		ti, tj := sorted[i].ModifiedTime(), sorted[j].ModifiedTime()
		if ti != tj {
			return ti > tj
		}
		return sorted[i].Path < sorted[j].Path
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

// WriteJSON encodes the report as indented JSON.
func WriteJSON(w io.Writer, r Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// Save writes the JSON report atomically.
func Save(path string, r Report) error {
	return cachex.WriteJSONAtomic(path, r)
}

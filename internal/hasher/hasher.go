// Package hasher fingerprints files in parallel, one chunk of paths per worker.
package hasher

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"sort"
	"time"

	"github.com/go-git/go-billy/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/memkit/treescan/internal/cachex"
	"github.com/memkit/treescan/internal/hash"
	"github.com/memkit/treescan/internal/logging"
	"github.com/memkit/treescan/internal/scan"
)

// MaxWorkers caps the automatically sized pool.
const MaxWorkers = 8

// Options configures a Hasher.
type Options struct {
	Algorithm    hash.Algorithm
	MaxBytes     int64
	ChunkSize    int
	Workers      int
	ChunkTimeout time.Duration
}

// ChunkFailure describes a chunk whose results were dropped.
type ChunkFailure struct {
	Index  int      `json:"index"`
	Paths  []string `json:"paths"`
	Reason string   `json:"reason"`
}

// Result is the merged output of all chunks.
type Result struct {
	// Records holds one record per file of every completed chunk, sorted by path.
	Records []cachex.FileRecord
	Failed  []ChunkFailure
	Chunks  int
	Workers int
}

// FailedPaths returns every path that belonged to a failed chunk.
func (r Result) FailedPaths() []string {
	var out []string
	for _, f := range r.Failed {
		out = append(out, f.Paths...)
	}
	sort.Strings(out)
	return out
}

// Hasher computes FileRecords for lists of files.
type Hasher struct {
	fs     billy.Filesystem
	opts   Options
	logger *zap.Logger

	hashFile func(ctx context.Context, ref scan.FileRef) cachex.FileRecord
}

// New validates opts and returns a Hasher reading from fsys.
func New(fsys billy.Filesystem, opts Options, logger *zap.Logger) (*Hasher, error) {
	if _, err := opts.Algorithm.New(); err != nil {
		return nil, err
	}
	if opts.ChunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", opts.ChunkSize)
	}
	if opts.MaxBytes <= 0 {
		return nil, fmt.Errorf("max bytes must be positive, got %d", opts.MaxBytes)
	}
	if opts.ChunkTimeout <= 0 {
		return nil, fmt.Errorf("chunk timeout must be positive, got %s", opts.ChunkTimeout)
	}
	h := &Hasher{
		fs:     fsys,
		opts:   opts,
		logger: logging.Component(logger, "hasher"),
	}
	h.hashFile = h.fingerprint
	return h, nil
}

// PoolSize resolves the worker count: an explicit request wins, otherwise the
// CPU count capped at MaxWorkers.
func PoolSize(requested int) int {
	if requested > 0 {
		return requested
	}
	n := runtime.NumCPU()
	if n > MaxWorkers {
		n = MaxWorkers
	}
	if n < 1 {
		n = 1
	}
	return n
}

// Chunk splits files into consecutive sublists of at most size entries.
func Chunk(files []scan.FileRef, size int) [][]scan.FileRef {
	if size <= 0 || len(files) == 0 {
		return nil
	}
	chunks := make([][]scan.FileRef, 0, (len(files)+size-1)/size)
	for start := 0; start < len(files); start += size {
		end := min(start+size, len(files))
		chunks = append(chunks, files[start:end:end])
	}
	return chunks
}

type slot struct {
	records []cachex.FileRecord
	failure *ChunkFailure
}

// Hash fingerprints files. Per-file failures become sentinel records; a chunk
// that exceeds ChunkTimeout is reported in Result.Failed and contributes no
// records. Hash never fails as a whole.
func (h *Hasher) Hash(ctx context.Context, files []scan.FileRef) Result {
	chunks := Chunk(files, h.opts.ChunkSize)
	workers := min(PoolSize(h.opts.Workers), max(len(chunks), 1))
	slots := make([]slot, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, chunk := range chunks {
		g.Go(func() error {
			slots[i] = h.runChunk(gctx, i, chunk)
			return nil
		})
	}
	_ = g.Wait()

	res := Result{Chunks: len(chunks), Workers: workers}
	for _, s := range slots {
		if s.failure != nil {
			res.Failed = append(res.Failed, *s.failure)
			continue
		}
		res.Records = append(res.Records, s.records...)
	}
	sort.Slice(res.Records, func(i, j int) bool {
		return res.Records[i].Path < res.Records[j].Path
	})
	return res
}

func (h *Hasher) runChunk(ctx context.Context, index int, chunk []scan.FileRef) slot {
	cctx, cancel := context.WithTimeout(ctx, h.opts.ChunkTimeout)
	defer cancel()

	done := make(chan []cachex.FileRecord, 1)
	go func() {
		out := make([]cachex.FileRecord, 0, len(chunk))
		for _, ref := range chunk {
			if cctx.Err() != nil {
				return
			}
			out = append(out, h.hashFile(cctx, ref))
		}
		if cctx.Err() != nil {
			return
		}
		done <- out
	}()

	if out, ok := awaitChunk(cctx, done); ok {
		return slot{records: out}
	}
	paths := make([]string, 0, len(chunk))
	for _, ref := range chunk {
		paths = append(paths, ref.RelPath)
	}
	reason := cctx.Err().Error()
	h.logger.Warn("chunk failed; results excluded, rerun to retry",
		zap.Int("chunk", index),
		zap.Int("files", len(chunk)),
		zap.String("reason", reason))
	return slot{failure: &ChunkFailure{Index: index, Paths: paths, Reason: reason}}
}

// awaitChunk waits for a chunk's records. Records already delivered when the
// deadline fires still count.
func awaitChunk(ctx context.Context, done <-chan []cachex.FileRecord) ([]cachex.FileRecord, bool) {
	select {
	case out := <-done:
		return out, true
	case <-ctx.Done():
		select {
		case out := <-done:
			return out, true
		default:
			return nil, false
		}
	}
}

// fingerprint stats and hashes one file, never returning an error: failures
// are folded into the error sentinel.
func (h *Hasher) fingerprint(ctx context.Context, ref scan.FileRef) cachex.FileRecord {
	rec := cachex.FileRecord{Path: ref.RelPath}
	fail := func(err error) cachex.FileRecord {
		h.logger.Debug("hash failed", zap.String("path", ref.RelPath), zap.Error(err))
		rec.ContentHash = cachex.SentinelError
		rec.Error = err.Error()
		return rec
	}

	info, err := h.fs.Stat(ref.FSPath)
	if err != nil {
		return fail(err)
	}
	rec.Size = info.Size()
	rec.ModifiedTime = info.ModTime().UnixMilli()
	if rec.Size > h.opts.MaxBytes {
		rec.ContentHash = cachex.SentinelTooLarge
		return rec
	}

	f, err := h.fs.Open(ref.FSPath)
	if err != nil {
		return fail(err)
	}
	defer f.Close()

	digest, err := h.opts.Algorithm.New()
	if err != nil {
		return fail(err)
	}
	limited := io.LimitReader(f, h.opts.MaxBytes+1)
	n, err := io.Copy(digest, &ctxReader{ctx: ctx, r: limited})
	if err != nil {
		return fail(err)
	}
	if n > h.opts.MaxBytes {
		// The file grew past the cap after stat.
		rec.ContentHash = cachex.SentinelTooLarge
		return rec
	}
	rec.ContentHash = hash.Hex(digest)
	return rec
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

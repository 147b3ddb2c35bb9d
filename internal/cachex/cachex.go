// Package cachex persists the per-path fingerprint snapshot a scan diffs against.
package cachex

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/memkit/treescan/internal/hash"
)

// FormatVersion is bumped whenever the on-disk layout changes incompatibly.
const FormatVersion = 1

// Sentinel hashes stand in for a digest when hashing is skipped or fails.
const (
	SentinelTooLarge = "too_large"
	SentinelError    = "error"
)

var (
	ErrCacheCorrupt   = errors.New("scan cache is corrupt")
	ErrCacheVersion   = errors.New("scan cache format version mismatch")
	ErrCacheAlgorithm = errors.New("scan cache hash algorithm mismatch")
)

// FileRecord is the fingerprint of one file at scan time.
type FileRecord struct {
	Path         string `json:"path"`
	Size         int64  `json:"size"`
	ModifiedTime int64  `json:"modifiedTime"`
	ContentHash  string `json:"contentHash"`
	Error        string `json:"error,omitempty"`
}

// TooLarge reports whether the record carries the oversized sentinel.
func (r FileRecord) TooLarge() bool { return r.ContentHash == SentinelTooLarge }

// Failed reports whether the record carries the error sentinel.
func (r FileRecord) Failed() bool { return r.ContentHash == SentinelError }

// Cache is the ScanCache: a header plus one record per path.
type Cache struct {
	Version   int                   `json:"version"`
	Algorithm hash.Algorithm        `json:"algorithm"`
	Root      string                `json:"root"`
	ScannedAt int64                 `json:"scannedAt"`
	Head      string                `json:"head,omitempty"`
	Files     map[string]FileRecord `json:"files"`
}

// New returns an empty cache for the given algorithm.
func New(root string, algo hash.Algorithm) Cache {
	return Cache{
		Version:   FormatVersion,
		Algorithm: algo,
		Root:      root,
		Files:     make(map[string]FileRecord),
	}
}

// Load reads the cache at path. A missing file returns ok=false and no error.
// The returned cache is only usable when err is nil; a version or algorithm
// mismatch is reported through ErrCacheVersion or ErrCacheAlgorithm.
func Load(path string, algo hash.Algorithm) (Cache, bool, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Cache{}, false, nil
	}
	if err != nil {
		return Cache{}, false, err
	}
	var c Cache
	if err := json.Unmarshal(data, &c); err != nil {
		return Cache{}, false, fmt.Errorf("%w: %s: %v", ErrCacheCorrupt, path, err)
	}
	if c.Version != FormatVersion {
		return Cache{}, false, fmt.Errorf("%w: have %d, want %d", ErrCacheVersion, c.Version, FormatVersion)
	}
	if c.Algorithm != algo {
		return Cache{}, false, fmt.Errorf("%w: have %q, want %q", ErrCacheAlgorithm, c.Algorithm, algo)
	}
	if c.Files == nil {
		c.Files = make(map[string]FileRecord)
	}
	for p, rec := range c.Files {
		if rec.Path != p {
			return Cache{}, false, fmt.Errorf("%w: record key %q holds path %q", ErrCacheCorrupt, p, rec.Path)
		}
	}
	return c, true, nil
}

// Save replaces the cache at path atomically.
func Save(path string, c Cache) error {
	c.Version = FormatVersion
	if c.Files == nil {
		c.Files = make(map[string]FileRecord)
	}
	return WriteJSONAtomic(path, c)
}

// Remove deletes the cache file. A missing file is not an error.
func Remove(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Exists reports whether a cache file is present at path.
func Exists(path string) (bool, error) {
	_, err := os.Stat(filepath.Clean(path))
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

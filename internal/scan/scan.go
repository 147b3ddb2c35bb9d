// Package scan enumerates the files a scan run should fingerprint.
package scan

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-git/go-billy/v5"
	"go.uber.org/zap"

	"github.com/memkit/treescan/internal/ignore"
	"github.com/memkit/treescan/internal/logging"
)

// FileRef is a file selected for hashing.
type FileRef struct {
	// RelPath is relative to the scan root and slash-separated.
	RelPath string
	// AbsPath is RelPath joined onto the root given to NewWalker.
	AbsPath string
	// FSPath addresses the file inside the walker's filesystem.
	FSPath string
}

// WalkError records a directory or entry that could not be read.
type WalkError struct {
	Path string `json:"path"`
	Err  string `json:"error"`
}

// Result is the outcome of a walk.
type Result struct {
	Files  []FileRef
	Errors []WalkError
}

// Options controls which entries a walk admits.
type Options struct {
	// IncludeExt is the extension allow-list; empty admits every file.
	IncludeExt []string
	// Ignore holds gitignore-style patterns.
	Ignore []string
	// Exclude names relative paths (files or directories) that are always skipped.
	Exclude []string
}

// Walker recursively enumerates files on a billy filesystem.
type Walker struct {
	fs      billy.Filesystem
	root    string
	exts    []string
	exclude map[string]struct{}
	matcher ignore.Matcher
	logger  *zap.Logger
}

// NewWalker builds a walker. root is only used to derive absolute paths for reporting.
func NewWalker(fsys billy.Filesystem, root string, opts Options, logger *zap.Logger) *Walker {
	exclude := make(map[string]struct{}, len(opts.Exclude))
	for _, p := range opts.Exclude {
		p = strings.Trim(ignore.NormalizePath(filepath.Clean(p)), "/")
		if p != "" && p != "." {
			exclude[p] = struct{}{}
		}
	}
	exts := make([]string, 0, len(opts.IncludeExt))
	for _, ext := range opts.IncludeExt {
		exts = append(exts, strings.ToLower(ext))
	}
	return &Walker{
		fs:      fsys,
		root:    root,
		exts:    exts,
		exclude: exclude,
		matcher: ignore.NewMatcher(opts.Ignore),
		logger:  logging.Component(logger, "walker"),
	}
}

// Walk enumerates files below base. An unreadable base is fatal; unreadable
// subdirectories are recorded in Result.Errors and skipped.
func (w *Walker) Walk(base string) (Result, error) {
	entries, err := w.fs.ReadDir(base)
	if err != nil {
		return Result{}, fmt.Errorf("read root %q: %w", base, err)
	}
	var res Result
	w.visit(base, "", entries, &res)

	sort.Slice(res.Files, func(i, j int) bool {
		return res.Files[i].RelPath < res.Files[j].RelPath
	})
	sort.Slice(res.Errors, func(i, j int) bool {
		return res.Errors[i].Path < res.Errors[j].Path
	})
	return res, nil
}

func (w *Walker) visit(dir, relDir string, entries []os.FileInfo, res *Result) {
	for _, info := range entries {
		name := info.Name()
		rel := name
		if relDir != "" {
			rel = relDir + "/" + name
		}
		fsPath := w.fs.Join(dir, name)

		if _, ok := w.exclude[rel]; ok {
			continue
		}
		if info.Mode()&os.ModeSymlink != 0 {
			continue
		}

		if info.IsDir() {
			if w.matcher.Ignored(rel, true) {
				w.logger.Debug("skip ignored directory", zap.String("path", rel))
				continue
			}
			children, err := w.fs.ReadDir(fsPath)
			if err != nil {
				w.logger.Warn("cannot read directory", zap.String("path", rel), zap.Error(err))
				res.Errors = append(res.Errors, WalkError{Path: rel, Err: err.Error()})
				continue
			}
			w.visit(fsPath, rel, children, res)
			continue
		}

		if !info.Mode().IsRegular() {
			continue
		}
		if w.matcher.Ignored(rel, false) {
			continue
		}
		if !matchesExt(strings.ToLower(name), w.exts) {
			continue
		}
		res.Files = append(res.Files, FileRef{
			RelPath: rel,
			AbsPath: filepath.Join(w.root, filepath.FromSlash(rel)),
			FSPath:  fsPath,
		})
	}
}

func matchesExt(lowerName string, exts []string) bool {
	if len(exts) == 0 {
		return true
	}
	for _, ext := range exts {
		if strings.HasSuffix(lowerName, ext) {
			return true
		}
	}
	return false
}

// Skips reports whether a walk would skip the entry at rel on its own,
// without looking at its parents.
func (w *Walker) Skips(rel string, isDir bool) bool {
	rel = strings.Trim(ignore.NormalizePath(rel), "/")
	if _, ok := w.exclude[rel]; ok {
		return true
	}
	return w.matcher.Ignored(rel, isDir)
}

// Admits reports whether a walk would enumerate the regular file at rel.
func (w *Walker) Admits(rel string) bool {
	rel = strings.Trim(ignore.NormalizePath(rel), "/")
	if rel == "" || w.Skips(rel, false) {
		return false
	}
	for dir := path.Dir(rel); dir != "."; dir = path.Dir(dir) {
		if w.Skips(dir, true) {
			return false
		}
	}
	return matchesExt(strings.ToLower(path.Base(rel)), w.exts)
}

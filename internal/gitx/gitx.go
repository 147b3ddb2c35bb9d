// Package gitx shells out to git for the few facts a scan report records.
package gitx

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
)

func runGit(ctx context.Context, root string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "git", append([]string{"-C", root}, args...)...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return out, fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(string(out)))
	}
	return out, nil
}

// Unavailable reports whether err means the git binary could not be run.
func Unavailable(err error) bool {
	var execErr *exec.Error
	return errors.As(err, &execErr)
}

func notRepo(err error) bool {
	var exitErr *exec.ExitError
	return errors.As(err, &exitErr)
}

// TopLevel returns the absolute work tree root containing start.
func TopLevel(ctx context.Context, start string) (string, error) {
	out, err := runGit(ctx, start, "rev-parse", "--show-toplevel")
	if err != nil {
		return "", err
	}
	path := strings.TrimSpace(string(out))
	if path == "" {
		return "", fmt.Errorf("git rev-parse --show-toplevel returned empty path")
	}
	return filepath.Abs(filepath.Clean(path))
}

// IsRepo reports whether root is inside a git work tree. A missing git
// binary is not an error.
func IsRepo(ctx context.Context, root string) (bool, error) {
	out, err := runGit(ctx, root, "rev-parse", "--is-inside-work-tree")
	if err != nil {
		if Unavailable(err) || notRepo(err) {
			return false, nil
		}
		return false, err
	}
	return strings.TrimSpace(string(out)) == "true", nil
}

// Head returns the commit id of HEAD, or "" outside a repository or before
// the first commit.
func Head(ctx context.Context, root string) (string, error) {
	out, err := runGit(ctx, root, "rev-parse", "--verify", "--quiet", "HEAD")
	if err != nil {
		if Unavailable(err) || notRepo(err) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// DirtyPaths returns the paths `git status --porcelain` reports, renames
// resolved to their new name.
func DirtyPaths(ctx context.Context, root string) ([]string, error) {
	out, err := runGit(ctx, root, "status", "--porcelain", "--untracked-files=all")
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, line := range strings.Split(string(bytes.TrimRight(out, "\n")), "\n") {
		line = strings.TrimRight(line, "\r")
		if len(line) < 4 {
			continue
		}
		rest := strings.TrimSpace(line[2:])
		if i := strings.LastIndex(rest, " -> "); i >= 0 {
			rest = rest[i+4:]
		}
		rest = strings.Trim(rest, `"`)
		if rest != "" {
			paths = append(paths, rest)
		}
	}
	return paths, nil
}

// ChangedBetween lists the paths that differ between two commits.
func ChangedBetween(ctx context.Context, root, from, to string) ([]string, error) {
	out, err := runGit(ctx, root, "diff", "--name-only", from, to)
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, line := range strings.Split(string(out), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			paths = append(paths, line)
		}
	}
	return paths, nil
}

package app

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memkit/treescan/internal/config"
	"github.com/memkit/treescan/internal/ignore"
	"github.com/memkit/treescan/internal/report"
	"github.com/memkit/treescan/internal/statusx"
	"github.com/memkit/treescan/internal/store"
)

func TestRunInitRefusesOverwriteWithoutForce(t *testing.T) {
	root := t.TempDir()

	if err := runInit(root, false); err != nil {
		t.Fatalf("initial init failed: %v", err)
	}
	for _, p := range []string{store.ConfigPath(root), store.IgnorePath(root)} {
		if _, err := os.Stat(p); err != nil {
			t.Fatalf("expected %s to exist: %v", p, err)
		}
	}

	if err := runInit(root, false); err == nil {
		t.Fatalf("second init without --force should fail")
	}

	if err := os.WriteFile(store.IgnorePath(root), []byte("custom/\n"), 0o644); err != nil {
		t.Fatalf("failed to edit ignore file: %v", err)
	}
	if err := runInit(root, true); err != nil {
		t.Fatalf("force init failed: %v", err)
	}
	patterns, err := ignore.LoadPatterns(store.IgnorePath(root))
	if err != nil {
		t.Fatalf("load patterns: %v", err)
	}
	if len(patterns) != len(ignore.DefaultPatterns()) {
		t.Fatalf("force init should restore default patterns, got %v", patterns)
	}

	cfg, raw, err := config.Load(store.ConfigPath(root))
	if err != nil {
		t.Fatalf("generated config does not load: %v", err)
	}
	if raw == nil {
		t.Fatalf("expected config bytes")
	}
	if cfg.Scan.ChunkSize != config.DefaultChunkSize {
		t.Fatalf("unexpected chunk size %d", cfg.Scan.ChunkSize)
	}
}

func TestComputeStatusWithoutSnapshot(t *testing.T) {
	root := seedTree(t)
	ws := testWorkspace(t, root)

	resp, err := computeStatus(context.Background(), ws)
	require.NoError(t, err)
	assert.False(t, resp.Cached)
	assert.True(t, resp.Verdict.Stale)
	assert.Equal(t, statusx.WhyMissingCache, resp.Verdict.Why)

	scanOnce(t, ws)
	resp, err = computeStatus(context.Background(), ws)
	require.NoError(t, err)
	assert.True(t, resp.Cached)
	assert.Equal(t, 3, resp.FileCount)
	assert.NotZero(t, resp.ScannedAtMs)

	require.NoError(t, os.WriteFile(store.CachePath(root), []byte("garbage"), 0o644))
	resp, err = computeStatus(context.Background(), ws)
	require.NoError(t, err)
	assert.NotEmpty(t, resp.CacheError)
	assert.Equal(t, statusx.WhyCacheUnusable, resp.Verdict.Why)

	var buf bytes.Buffer
	require.NoError(t, output{w: &buf}.status(resp))
	assert.Contains(t, buf.String(), "Snapshot: unusable")
}

func TestStatusFollowsGitChanges(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}

	root := t.TempDir()
	runGit(t, root, "init", "-q")
	runGit(t, root, "config", "user.email", "test@example.com")
	runGit(t, root, "config", "user.name", "Test User")
	runGit(t, root, "config", "commit.gpgsign", "false")
	writeFile(t, root, ".gitignore", ".treescan/\n")
	writeFile(t, root, "a.go", "package a\n")
	runGit(t, root, "add", ".")
	runGit(t, root, "commit", "-q", "-m", "initial")

	ws := testWorkspace(t, root)
	rep := scanOnce(t, ws)
	if rep.GitHead == "" {
		t.Fatalf("expected the report to record the git head")
	}

	resp := statusMust(t, ws)
	if resp.Verdict.Stale || resp.Verdict.Why != statusx.WhyUpToDate {
		t.Fatalf("expected up to date after scan, got %#v", resp.Verdict)
	}

	// A file outside the extension allow-list dirties git but not the scan.
	writeFile(t, root, "image.png", "\x89PNG")
	resp = statusMust(t, ws)
	if resp.Git.ChangedReason != statusx.GitChangedWorktree {
		t.Fatalf("expected worktree change, got %s", resp.Git.ChangedReason)
	}
	if resp.Verdict.Stale {
		t.Fatalf("out-of-scope change should not make the snapshot stale")
	}

	writeFile(t, root, "b.go", "package a\n")
	resp = statusMust(t, ws)
	if !resp.Verdict.Stale || resp.Git.ChangedPathCount != 1 {
		t.Fatalf("expected stale with one changed path, got %#v / %d", resp.Verdict, resp.Git.ChangedPathCount)
	}

	runGit(t, root, "add", ".")
	runGit(t, root, "commit", "-q", "-m", "second")
	resp = statusMust(t, ws)
	if resp.Verdict.Why != statusx.WhyGitHeadChanged || !resp.Verdict.Stale {
		t.Fatalf("expected head change, got %#v", resp.Verdict)
	}

	scanOnce(t, ws)
	resp = statusMust(t, ws)
	if resp.Verdict.Stale {
		t.Fatalf("expected fresh snapshot after rescan, got %#v", resp.Verdict)
	}
}

func statusMust(t *testing.T, ws workspace) StatusResponse {
	t.Helper()
	resp, err := computeStatus(context.Background(), ws)
	if err != nil {
		t.Fatalf("computeStatus returned error: %v", err)
	}
	return resp
}

func runGit(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("git %v failed: %v\n%s", args, err, out)
	}
}

func TestRunEndToEnd(t *testing.T) {
	root := seedTree(t)
	var stdout, stderr bytes.Buffer

	code := run(context.Background(), []string{"scan", "--root", root, "--json", "--no-history", "--workers", "2", "--chunk-size", "1"}, nil, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())
	var rep report.Report
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &rep))
	assert.Equal(t, 3, rep.Changes.Added)
	assert.Equal(t, 2, rep.Workers)

	stdout.Reset()
	code = run(context.Background(), []string{"--root", root, "--json", "--no-history"}, nil, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &rep))
	assert.Zero(t, rep.Changes.Total())

	stdout.Reset()
	code = run(context.Background(), []string{"status", "--root", root}, nil, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())
	assert.Contains(t, stdout.String(), "Snapshot: 3 files")
}

func TestRunServe(t *testing.T) {
	root := seedTree(t)
	in := strings.NewReader(`{"op":"scan"}` + "\n" + `{"op":"status"}` + "\n" + `{"op":"history"}` + "\n")
	var stdout, stderr bytes.Buffer

	code := run(context.Background(), []string{"serve", "--root", root, "--no-history"}, in, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())

	lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
	require.Len(t, lines, 3)
	var scan struct {
		OK   bool          `json:"ok"`
		Data report.Report `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &scan))
	assert.True(t, scan.OK)
	assert.Equal(t, 3, scan.Data.Changes.Added)
	assert.Contains(t, lines[1], `"cached":true`)
	assert.Contains(t, lines[2], `"data":[]`)
}

func TestRunReportsErrors(t *testing.T) {
	var stdout, stderr bytes.Buffer
	missing := filepath.Join(t.TempDir(), "missing")
	assert.Equal(t, 1, run(context.Background(), []string{"--root", missing}, nil, &stdout, &stderr))
	assert.Contains(t, stderr.String(), "scan root")

	stderr.Reset()
	assert.Equal(t, 1, run(context.Background(), []string{"--root", t.TempDir(), "--algorithm", "md5"}, nil, &stdout, &stderr))
	assert.Contains(t, stderr.String(), "invalid configuration")

	stderr.Reset()
	assert.Equal(t, 1, run(context.Background(), []string{"--root", t.TempDir(), "--color", "sometimes"}, nil, &stdout, &stderr))

	assert.Equal(t, 0, run(context.Background(), []string{"--help"}, nil, &stdout, &stderr))
}

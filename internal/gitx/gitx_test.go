package gitx

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gitRepo(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
	root := t.TempDir()
	for _, args := range [][]string{
		{"init", "-q"},
		{"config", "user.email", "test@example.com"},
		{"config", "user.name", "Test User"},
		{"config", "commit.gpgsign", "false"},
	} {
		git(t, root, args...)
	}
	return root
}

func git(t *testing.T, root string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", append([]string{"-C", root}, args...)...)
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "git %v: %s", args, out)
}

func TestIsRepoOutsideWorkTree(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
	ok, err := IsRepo(context.Background(), t.TempDir())
	require.NoError(t, err)
	assert.False(t, ok)

	head, err := Head(context.Background(), t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, head)
}

func TestRepoFacts(t *testing.T) {
	ctx := context.Background()
	root := gitRepo(t)

	ok, err := IsRepo(ctx, root)
	require.NoError(t, err)
	assert.True(t, ok)

	head, err := Head(ctx, root)
	require.NoError(t, err)
	assert.Empty(t, head, "no commits yet")

	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("a\n"), 0o644))
	git(t, root, "add", ".")
	git(t, root, "commit", "-q", "-m", "first")
	first, err := Head(ctx, root)
	require.NoError(t, err)
	assert.Len(t, first, 40)

	top, err := TopLevel(ctx, root)
	require.NoError(t, err)
	want, err := filepath.EvalSymlinks(root)
	require.NoError(t, err)
	got, err := filepath.EvalSymlinks(top)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	dirty, err := DirtyPaths(ctx, root)
	require.NoError(t, err)
	assert.Empty(t, dirty)

	require.NoError(t, os.MkdirAll(filepath.Join(root, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "sub", "b.txt"), []byte("b\n"), 0o644))
	dirty, err = DirtyPaths(ctx, root)
	require.NoError(t, err)
	assert.Equal(t, []string{"sub/b.txt"}, dirty)

	git(t, root, "add", ".")
	git(t, root, "commit", "-q", "-m", "second")
	second, err := Head(ctx, root)
	require.NoError(t, err)

	changed, err := ChangedBetween(ctx, root, first, second)
	require.NoError(t, err)
	assert.Equal(t, []string{"sub/b.txt"}, changed)
}

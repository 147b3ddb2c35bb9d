package app

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memkit/treescan/internal/cachex"
	"github.com/memkit/treescan/internal/config"
	"github.com/memkit/treescan/internal/hash"
	"github.com/memkit/treescan/internal/store"
)

func TestRunWatchFollowsIgnoreFileEdits(t *testing.T) {
	root := seedTree(t)
	writeFile(t, root, store.IgnoreFileName, "gen/\n")
	writeFile(t, root, "gen/a.go", "package gen\n")
	ws := testWorkspace(t, root, func(c *config.Config) { c.Watch.Debounce = 50 * time.Millisecond })

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- runWatch(ctx, ws, false, output{w: io.Discard, json: true}) }()
	t.Cleanup(func() {
		cancel()
		assert.NoError(t, <-errc)
	})

	cached := func(p string) bool {
		c, ok, err := cachex.Load(store.CachePath(root), hash.SHA256)
		if err != nil || !ok {
			return false
		}
		_, found := c.Files[p]
		return found
	}
	require.Eventually(t, func() bool { return cached("main.go") }, 5*time.Second, 20*time.Millisecond)
	assert.False(t, cached("gen/a.go"))

	// Writes repeat until they land, since the watch starts after the first scan.
	require.Eventually(t, func() bool {
		_ = os.WriteFile(filepath.Join(root, store.IgnoreFileName), []byte("# nothing ignored\n"), 0o644)
		return cached("gen/a.go")
	}, 10*time.Second, 250*time.Millisecond)

	require.Eventually(t, func() bool {
		_ = os.WriteFile(filepath.Join(root, "gen", "b.go"), []byte("package gen\n"), 0o644)
		return cached("gen/b.go")
	}, 10*time.Second, 250*time.Millisecond)
}

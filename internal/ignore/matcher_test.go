package ignore

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGlobMatch(t *testing.T) {
	assert.True(t, GlobMatch("**/node_modules", "node_modules"))
	assert.True(t, GlobMatch("**/node_modules", "apps/web/node_modules"))
	assert.True(t, GlobMatch("**/*.log", "a/b/c.log"))
	assert.True(t, GlobMatch("docs/*.md", "docs/readme.md"))
	assert.False(t, GlobMatch("docs/*.md", "docs/sub/readme.md"))
	assert.False(t, GlobMatch("**/dist", "distribution"))
}

func TestMatcherDirOnlyPatterns(t *testing.T) {
	m := NewMatcher([]string{"build/"})
	assert.True(t, m.Ignored("build", true))
	assert.True(t, m.Ignored("pkg/build", true))
	assert.False(t, m.Ignored("build", false), "a file named build is not a directory")
}

func TestMatcherNegationReincludes(t *testing.T) {
	m := NewMatcher([]string{"*.json", "!package.json"})
	assert.True(t, m.Ignored("tsconfig.json", false))
	assert.False(t, m.Ignored("package.json", false))
	assert.False(t, m.Ignored("src/package.json", false))
}

func TestMatcherRootAnchoredPattern(t *testing.T) {
	m := NewMatcher([]string{"/tmp/cache"})
	assert.True(t, m.Ignored("tmp/cache", true))
	assert.False(t, m.Ignored("src/tmp/cache", true))
}

func TestLoadPatterns(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".treescanignore")

	patterns, err := LoadPatterns(path)
	require.NoError(t, err)
	assert.Empty(t, patterns)

	require.NoError(t, WriteDefault(path))
	patterns, err = LoadPatterns(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultPatterns(), patterns)
}

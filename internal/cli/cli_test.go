package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, args ...string) Command {
	t.Helper()
	var out bytes.Buffer
	c, err := Parse(args, &out)
	require.NoError(t, err)
	return c
}

func TestParseDefaultsToScan(t *testing.T) {
	c := parse(t)
	assert.Equal(t, ActionScan, c.Action)
	assert.Equal(t, "auto", c.Color)
	assert.Nil(t, c.Overrides.Scan, "unset flags must not override the config file")
	assert.Nil(t, c.Overrides.Report)
}

func TestParseScanFlags(t *testing.T) {
	c := parse(t, "scan", "--reset", "--workers", "3", "--timeout", "2s", "--algorithm", "xxh3", "--json", "--root", "/tmp/x")
	assert.Equal(t, ActionScan, c.Action)
	assert.True(t, c.Reset)
	assert.True(t, c.JSON)
	assert.Equal(t, "/tmp/x", c.Root)
	require.NotNil(t, c.Overrides.Scan)
	assert.Equal(t, 3, *c.Overrides.Scan.Workers)
	assert.Equal(t, "2s", *c.Overrides.Scan.ChunkTimeout)
	assert.Equal(t, "xxh3", *c.Overrides.Scan.Algorithm)
	assert.Nil(t, c.Overrides.Scan.ChunkSize)
}

func TestParseIncludeExt(t *testing.T) {
	c := parse(t, "--include-ext", "go,md")
	require.NotNil(t, c.Overrides.Scan)
	require.NotNil(t, c.Overrides.Scan.IncludeExt)
	assert.Equal(t, []string{"go", "md"}, *c.Overrides.Scan.IncludeExt)

	c = parse(t, "scan", "--include-ext=")
	require.NotNil(t, c.Overrides.Scan)
	require.NotNil(t, c.Overrides.Scan.IncludeExt)
	assert.Empty(t, *c.Overrides.Scan.IncludeExt)

	c = parse(t, "scan")
	assert.Nil(t, c.Overrides.Scan)
}

func TestParseRootReset(t *testing.T) {
	c := parse(t, "--reset", "--recent", "3", "--no-history")
	assert.Equal(t, ActionScan, c.Action)
	assert.True(t, c.Reset)
	require.NotNil(t, c.Overrides.Report)
	assert.Equal(t, 3, *c.Overrides.Report.Recent)
	require.NotNil(t, c.Overrides.History)
	assert.False(t, *c.Overrides.History.Enabled)
}

func TestParseSubcommands(t *testing.T) {
	c := parse(t, "init", "--force")
	assert.Equal(t, ActionInit, c.Action)
	assert.True(t, c.Force)

	c = parse(t, "history", "--limit", "5")
	assert.Equal(t, ActionHistory, c.Action)
	assert.Equal(t, 5, c.Limit)

	c = parse(t, "history")
	assert.Equal(t, DefaultHistoryLimit, c.Limit)

	c = parse(t, "status", "--json")
	assert.Equal(t, ActionStatus, c.Action)
	assert.True(t, c.JSON)

	c = parse(t, "serve")
	assert.Equal(t, ActionServe, c.Action)

	c = parse(t, "watch", "--debounce", "250ms")
	assert.Equal(t, ActionWatch, c.Action)
	require.NotNil(t, c.Overrides.Watch)
	assert.Equal(t, "250ms", *c.Overrides.Watch.Debounce)
}

func TestParseHelp(t *testing.T) {
	var out bytes.Buffer
	c, err := Parse([]string{"--help"}, &out)
	require.NoError(t, err)
	assert.Equal(t, ActionNone, c.Action)
	assert.Contains(t, out.String(), "treescan")
}

func TestParseErrors(t *testing.T) {
	var out bytes.Buffer
	_, err := Parse([]string{"bogus"}, &out)
	assert.Error(t, err)

	_, err = Parse([]string{"init", "--nope"}, &out)
	assert.Error(t, err)

	_, err = Parse([]string{"scan", "--workers", "many"}, &out)
	assert.Error(t, err)
}

// Package cli turns argv into a Command using cobra.
package cli

import (
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/memkit/treescan/internal/config"
	"github.com/memkit/treescan/internal/hash"
)

// Actions a Command can carry. ActionNone means cobra already handled the
// invocation (help output).
const (
	ActionNone    = ""
	ActionScan    = "scan"
	ActionWatch   = "watch"
	ActionStatus  = "status"
	ActionHistory = "history"
	ActionInit    = "init"
	ActionServe   = "serve"
)

// DefaultHistoryLimit is the number of runs `history` lists.
const DefaultHistoryLimit = 20

// Command represents parsed CLI input.
type Command struct {
	Action  string
	Root    string
	Config  string
	JSON    bool
	Color   string
	Verbose bool
	Reset   bool
	Force   bool
	Limit   int
	// Overrides holds only the flags that were set explicitly; they win over
	// the config file.
	Overrides config.UserConfig
}

type scanFlags struct {
	includeExt []string
	workers    int
	chunkSize  int
	maxBytes   int64
	timeout    time.Duration
	algorithm  string
	recent     int
	debounce   time.Duration
	noHistory  bool
}

// Parse converts argv into a Command description. Help and usage text go to out.
func Parse(args []string, out io.Writer) (Command, error) {
	var (
		c Command
		f scanFlags
	)
	action := func(name string) func(*cobra.Command, []string) error {
		return func(*cobra.Command, []string) error {
			c.Action = name
			return nil
		}
	}

	root := &cobra.Command{
		Use:   "treescan",
		Short: "Report files added, modified and deleted since the last scan",
		Long: `treescan walks a directory tree, fingerprints every text-like file in
parallel and compares the result with the snapshot stored by the previous run.

Run without a subcommand to scan once.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          action(ActionScan),
	}
	root.SetOut(out)
	root.SetErr(out)
	root.CompletionOptions.DisableDefaultCmd = true

	pf := root.PersistentFlags()
	pf.StringVar(&c.Root, "root", "", "directory to scan (default: git top level or current directory)")
	pf.StringVar(&c.Config, "config", "", "config file (default: <root>/.treescan/config.yaml)")
	pf.BoolVar(&c.JSON, "json", false, "print JSON instead of text")
	pf.StringVar(&c.Color, "color", "auto", "colour output: auto, always or never")
	pf.BoolVarP(&c.Verbose, "verbose", "v", false, "debug logging")
	pf.StringSliceVar(&f.includeExt, "include-ext", nil, "extensions to scan, replacing the configured list (empty scans every file)")
	pf.IntVar(&f.workers, "workers", 0, "hashing workers (default: CPU count, at most 8)")
	pf.IntVar(&f.chunkSize, "chunk-size", config.DefaultChunkSize, "paths per hashing chunk")
	pf.Int64Var(&f.maxBytes, "max-bytes", config.DefaultMaxHashBytes, "files larger than this are recorded as too_large")
	pf.DurationVar(&f.timeout, "timeout", config.DefaultChunkTimeout, "per-chunk hashing timeout")
	pf.StringVar(&f.algorithm, "algorithm", "sha256", "content hash: "+hash.SupportedNames())
	pf.IntVar(&f.recent, "recent", config.DefaultRecent, "number of most recent changes to list")
	pf.BoolVar(&f.noHistory, "no-history", false, "do not record the run in the history database")

	root.Flags().BoolVar(&c.Reset, "reset", false, "delete the stored snapshot before scanning")

	scanCmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan once and report changes",
		Args:  cobra.NoArgs,
		RunE:  action(ActionScan),
	}
	scanCmd.Flags().BoolVar(&c.Reset, "reset", false, "delete the stored snapshot before scanning")

	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Scan, then rescan whenever the tree changes",
		Args:  cobra.NoArgs,
		RunE:  action(ActionWatch),
	}
	watchCmd.Flags().BoolVar(&c.Reset, "reset", false, "delete the stored snapshot before the first scan")
	watchCmd.Flags().DurationVar(&f.debounce, "debounce", config.DefaultDebounce, "quiet period before a rescan")

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show what the stored snapshot holds",
		Args:  cobra.NoArgs,
		RunE:  action(ActionStatus),
	}

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "List recent scan runs",
		Args:  cobra.NoArgs,
		RunE:  action(ActionHistory),
	}
	historyCmd.Flags().IntVar(&c.Limit, "limit", DefaultHistoryLimit, "number of runs to list")

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config and ignore file",
		Args:  cobra.NoArgs,
		RunE:  action(ActionInit),
	}
	initCmd.Flags().BoolVar(&c.Force, "force", false, "overwrite existing files")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Answer JSON line requests (status, scan, history) on stdin",
		Args:  cobra.NoArgs,
		RunE:  action(ActionServe),
	}

	root.AddCommand(scanCmd, watchCmd, statusCmd, historyCmd, initCmd, serveCmd)
	root.SetArgs(args)

	executed, err := root.ExecuteC()
	if err != nil {
		return Command{}, err
	}

	c.Overrides = overrides(root, executed, f)
	return c, nil
}

func overrides(root, executed *cobra.Command, f scanFlags) config.UserConfig {
	var user config.UserConfig
	pf := root.PersistentFlags()
	scan := &config.UserScanOverrides{}
	touched := false
	if pf.Changed("include-ext") {
		exts := append([]string{}, f.includeExt...)
		scan.IncludeExt = &exts
		touched = true
	}
	if pf.Changed("workers") {
		scan.Workers = &f.workers
		touched = true
	}
	if pf.Changed("chunk-size") {
		scan.ChunkSize = &f.chunkSize
		touched = true
	}
	if pf.Changed("max-bytes") {
		scan.MaxHashBytes = &f.maxBytes
		touched = true
	}
	if pf.Changed("timeout") {
		s := f.timeout.String()
		scan.ChunkTimeout = &s
		touched = true
	}
	if pf.Changed("algorithm") {
		scan.Algorithm = &f.algorithm
		touched = true
	}
	if touched {
		user.Scan = scan
	}
	if pf.Changed("recent") {
		user.Report = &config.UserReportOverrides{Recent: &f.recent}
	}
	if pf.Changed("no-history") {
		enabled := !f.noHistory
		user.History = &config.UserHistoryOverrides{Enabled: &enabled}
	}
	if fl := executed.Flags().Lookup("debounce"); fl != nil && fl.Changed {
		s := f.debounce.String()
		user.Watch = &config.UserWatchOverrides{Debounce: &s}
	}
	return user
}

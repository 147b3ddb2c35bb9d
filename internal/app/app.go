package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"go.uber.org/zap"

	"github.com/memkit/treescan/internal/cli"
	"github.com/memkit/treescan/internal/config"
	"github.com/memkit/treescan/internal/format"
	"github.com/memkit/treescan/internal/gitx"
	"github.com/memkit/treescan/internal/history"
	"github.com/memkit/treescan/internal/ignore"
	"github.com/memkit/treescan/internal/logging"
	"github.com/memkit/treescan/internal/report"
	"github.com/memkit/treescan/internal/serve"
	"github.com/memkit/treescan/internal/store"
)

// Run executes the CLI app and returns an exit code.
func Run(args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return run(ctx, args, os.Stdin, os.Stdout, os.Stderr)
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	cmd, err := cli.Parse(args, stdout)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	if cmd.Action == cli.ActionNone {
		return 0
	}

	logger := logging.NewWriter(stderr, cmd.Verbose)
	defer func() { _ = logger.Sync() }()

	if err := dispatch(ctx, cmd, stdin, stdout, logger); err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	return 0
}

func dispatch(ctx context.Context, cmd cli.Command, stdin io.Reader, stdout io.Writer, logger *zap.Logger) error {
	root, err := resolveRoot(ctx, cmd.Root)
	if err != nil {
		return err
	}
	if cmd.Action == cli.ActionInit {
		return runInit(root, cmd.Force)
	}

	ws, err := loadWorkspace(root, cmd, logger)
	if err != nil {
		return err
	}
	mode, err := format.ParseColorMode(cmd.Color)
	if err != nil {
		return err
	}
	out := output{w: stdout, json: cmd.JSON, policy: colorPolicy(mode, cmd.JSON, stdout)}

	switch cmd.Action {
	case cli.ActionScan:
		return runScan(ctx, ws, cmd.Reset, out)
	case cli.ActionWatch:
		return runWatch(ctx, ws, cmd.Reset, out)
	case cli.ActionStatus:
		resp, err := computeStatus(ctx, ws)
		if err != nil {
			return err
		}
		return out.status(resp)
	case cli.ActionHistory:
		return runHistory(ctx, ws, cmd.Limit, out)
	case cli.ActionServe:
		return runServe(ctx, ws, stdin, stdout)
	}
	return fmt.Errorf("unknown action %q", cmd.Action)
}

// workspace is a scan root with its resolved configuration.
type workspace struct {
	root   string
	cfg    config.Config
	logger *zap.Logger
}

func loadWorkspace(root string, cmd cli.Command, logger *zap.Logger) (workspace, error) {
	cfgPath := cmd.Config
	if cfgPath == "" {
		cfgPath = store.ConfigPath(root)
	}
	cfg, _, err := config.Load(cfgPath)
	if err != nil {
		return workspace{}, err
	}
	cfg, err = config.ApplyOverrides(cfg, cmd.Overrides)
	if err != nil {
		return workspace{}, err
	}
	return workspace{root: root, cfg: cfg, logger: logger}, nil
}

// cachePath resolves the configured cache location; relative paths are
// taken from the root.
func (ws workspace) cachePath() string {
	p := ws.cfg.Cache.Path
	switch {
	case p == "":
		return store.CachePath(ws.root)
	case filepath.IsAbs(p):
		return p
	default:
		return filepath.Join(ws.root, p)
	}
}

// resolveRoot picks the scan root: the flag when given, otherwise the git
// work tree containing the current directory, otherwise the current directory.
func resolveRoot(ctx context.Context, flag string) (string, error) {
	start := flag
	if start == "" {
		start = "."
	}
	abs, err := filepath.Abs(start)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("scan root: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("scan root %s is not a directory", abs)
	}
	if flag != "" {
		return abs, nil
	}
	if top, err := gitx.TopLevel(ctx, abs); err == nil {
		return top, nil
	}
	return abs, nil
}

func runInit(root string, force bool) error {
	cfgPath := store.ConfigPath(root)
	ignorePath := store.IgnorePath(root)
	if !force {
		for _, p := range []string{cfgPath, ignorePath} {
			if _, err := os.Stat(p); err == nil {
				return fmt.Errorf("%s already exists; rerun with --force to overwrite", p)
			} else if !errors.Is(err, os.ErrNotExist) {
				return err
			}
		}
	}
	if err := os.MkdirAll(store.Dir(root), 0o755); err != nil {
		return err
	}
	if err := config.SaveDefault(cfgPath); err != nil {
		return err
	}
	return ignore.WriteDefault(ignorePath)
}

func runHistory(ctx context.Context, ws workspace, limit int, out output) error {
	runs, err := latestRuns(ctx, ws, limit)
	if err != nil {
		return err
	}
	return out.history(runs)
}

func latestRuns(ctx context.Context, ws workspace, limit int) ([]history.Run, error) {
	path := store.HistoryPath(ws.root)
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	st, err := history.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer st.Close()
	return st.Latest(ctx, limit)
}

func runServe(ctx context.Context, ws workspace, in io.Reader, out io.Writer) error {
	s := newScanner(ws)
	return serve.ServeStdio(ctx, in, out, serve.Handlers{
		Status: func(ctx context.Context) (any, error) {
			return computeStatus(ctx, ws)
		},
		Scan: func(ctx context.Context, reset bool) (any, error) {
			if reset {
				if err := s.Reset(); err != nil {
					return nil, err
				}
			}
			return s.Run(ctx)
		},
		History: func(ctx context.Context, limit int) (any, error) {
			if limit == 0 {
				limit = cli.DefaultHistoryLimit
			}
			runs, err := latestRuns(ctx, ws, limit)
			if runs == nil {
				runs = []history.Run{}
			}
			return runs, err
		},
	}, ws.logger)
}

// output renders results as JSON or styled text.
type output struct {
	w      io.Writer
	json   bool
	policy format.ColorPolicy
}

func (o output) report(r report.Report) error {
	if o.json {
		return report.WriteJSON(o.w, r)
	}
	return format.WriteReport(o.w, r, o.policy)
}

func (o output) history(runs []history.Run) error {
	if o.json {
		if runs == nil {
			runs = []history.Run{}
		}
		return writeJSON(o.w, runs)
	}
	return format.WriteHistory(o.w, runs, o.policy)
}

func colorPolicy(mode format.ColorMode, jsonOut bool, w io.Writer) format.ColorPolicy {
	f, _ := w.(*os.File)
	return format.DetectColorPolicy(mode, jsonOut, f)
}

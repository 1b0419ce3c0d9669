package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"bibsort/internal/config"
	"bibsort/internal/errors"
	"bibsort/internal/history"
	"bibsort/internal/paths"
	"bibsort/internal/slogutil"
	"bibsort/internal/version"
)

// rootOptions holds the persistent flags.
type rootOptions struct {
	format     string
	verbose    int
	quiet      bool
	configPath string
	logFile    string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	reorder := &reorderOptions{}

	root := &cobra.Command{
		Use:   "bibsort <input.tex> [output.tex]",
		Short: "Reorder a LaTeX bibliography by first citation",
		Long: `bibsort rewrites the thebibliography block of a LaTeX document so that
entries appear in the order their keys are first cited with \cite.
Entries that are never cited are kept after the cited ones.

Examples:
  bibsort paper.tex                    # writes paper-reordered.tex
  bibsort paper.tex sorted.tex         # explicit output
  bibsort -i paper.tex                 # rewrite in place, zstd snapshot first
  bibsort --dry-run -f json paper.tex  # report only`,
		Args:          cobra.RangeArgs(1, 2),
		Version:       version.Info(),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.setup(cmd)
			if err != nil {
				return err
			}
			defer a.close()
			return runReorder(a, reorder, args)
		},
	}
	root.SetVersionTemplate(version.Full() + "\n")

	pf := root.PersistentFlags()
	pf.StringVarP(&opts.format, "format", "f", "", "Output format (human, json, yaml); default from output.format")
	pf.CountVarP(&opts.verbose, "verbose", "v", "Increase log verbosity (-v info, -vv debug)")
	pf.BoolVarP(&opts.quiet, "quiet", "q", false, "Suppress log output")
	pf.StringVar(&opts.configPath, "config", "", "Config file (default .bibsort/config.toml)")
	pf.StringVar(&opts.logFile, "log-file", "", "Also write logs to this file, with rotation")

	f := root.Flags()
	f.BoolVar(&reorder.dryRun, "dry-run", false, "Compute and report without writing anything")
	f.BoolVarP(&reorder.inPlace, "in-place", "i", false, "Rewrite the input file")
	f.BoolVar(&reorder.noBackup, "no-backup", false, "Skip the snapshot taken before an in-place rewrite")
	f.BoolVar(&reorder.noHistory, "no-history", false, "Do not record this run")

	root.AddCommand(newScanCmd(opts))
	root.AddCommand(newHistoryCmd(opts))
	root.AddCommand(newRestoreCmd(opts))
	root.AddCommand(newConfigCmd(opts))
	return root
}

// app is the per-invocation environment shared by all commands.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	logs   *slogutil.LoggerFactory
	format OutputFormat
	stdout io.Writer
	stderr io.Writer
}

// setup loads config, resolves the output format and builds the logger.
func (o *rootOptions) setup(cmd *cobra.Command) (*app, error) {
	dir, err := os.Getwd()
	if err != nil {
		dir = "."
	}
	cfg, err := config.LoadConfig(dir, o.configPath)
	if err != nil {
		return nil, err
	}

	format := OutputFormat(cfg.Output.Format)
	if o.format != "" {
		format = OutputFormat(o.format)
	}
	if !format.Valid() {
		return nil, fmt.Errorf("unsupported format: %s", format)
	}

	logs := slogutil.NewLoggerFactory(cfg.Logging, cmd.ErrOrStderr())
	if o.quiet || cmd.Flags().Changed("verbose") {
		logs.SetCLILevel(slogutil.LevelFromVerbosity(o.verbose, o.quiet))
	}
	logs.SetLogFile(o.logFile)

	logger, err := logs.Logger()
	if err != nil {
		logger.Warn("Log file unavailable", "error", err)
	}
	if cfg.Source != "" {
		logger.Debug("Loaded config", "path", cfg.Source)
	}

	return &app{
		cfg:    cfg,
		logger: logger,
		logs:   logs,
		format: format,
		stdout: cmd.OutOrStdout(),
		stderr: cmd.ErrOrStderr(),
	}, nil
}

func (a *app) close() {
	_ = a.logs.Close()
}

// print formats resp in the selected format and writes it to stdout.
func (a *app) print(resp interface{}) error {
	out, err := FormatResponse(resp, a.format)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(a.stdout, out)
	return err
}

// openHistory opens the run journal. Failures are logged and yield nil:
// history never blocks a run.
func (a *app) openHistory() *history.Store {
	path, err := paths.GetHistoryPath(a.cfg.History.Path)
	if err == nil {
		var store *history.Store
		if store, err = history.OpenStore(path, a.logger); err == nil {
			return store
		}
	}
	a.logger.Warn("History unavailable",
		"code", errors.HistoryUnavailable,
		"error", err,
	)
	return nil
}

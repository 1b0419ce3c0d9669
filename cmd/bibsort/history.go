package main

import (
	stderrors "errors"
	"fmt"

	"github.com/spf13/cobra"

	"bibsort/internal/errors"
	"bibsort/internal/history"
	"bibsort/internal/paths"
)

// HistoryResponseCLI lists recent runs
type HistoryResponseCLI struct {
	Path string         `json:"path" yaml:"path"`
	Runs []*history.Run `json:"runs" yaml:"runs"`
}

// HistoryShowResponseCLI is one recorded run in full
type HistoryShowResponseCLI struct {
	Path string       `json:"path" yaml:"path"`
	Run  *history.Run `json:"run" yaml:"run"`
}

func newHistoryCmd(root *rootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent reorder runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := root.setup(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			if !cmd.Flags().Changed("limit") {
				limit = a.cfg.History.Limit
			}
			resp, err := listHistory(a, limit)
			if err != nil {
				return err
			}
			return a.print(resp)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Number of runs to show (default history.limit)")
	cmd.AddCommand(newHistoryShowCmd(root))
	return cmd
}

func newHistoryShowCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show one run in full",
		Long: `Show every recorded detail of one run. The ID may be shortened to any
prefix that matches a single run, such as the 8 characters "history" prints.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := root.setup(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			resp, err := showHistory(a, args[0])
			if err != nil {
				return err
			}
			return a.print(resp)
		},
	}
}

func listHistory(a *app, limit int) (*HistoryResponseCLI, error) {
	path, err := paths.GetHistoryPath(a.cfg.History.Path)
	if err != nil {
		return nil, err
	}
	resp := &HistoryResponseCLI{Path: path, Runs: []*history.Run{}}

	store := a.openHistory()
	if store == nil {
		return resp, nil
	}
	defer func() { _ = store.Close() }()

	runs, err := store.Recent(limit)
	if err != nil {
		return nil, err
	}
	if runs != nil {
		resp.Runs = runs
	}
	return resp, nil
}

func showHistory(a *app, id string) (*HistoryShowResponseCLI, error) {
	path, err := paths.GetHistoryPath(a.cfg.History.Path)
	if err != nil {
		return nil, err
	}

	store := a.openHistory()
	if store == nil {
		return nil, errors.NewBibsortError(errors.HistoryUnavailable, "cannot open run history "+path, nil, nil)
	}
	defer func() { _ = store.Close() }()

	run, err := store.Get(id)
	if stderrors.Is(err, history.ErrAmbiguousID) {
		return nil, errors.NewBibsortError(errors.RunNotFound, fmt.Sprintf("run ID %q is ambiguous; give more characters", id), err, nil)
	}
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, errors.NewBibsortError(errors.RunNotFound, fmt.Sprintf("no run matches %q", id), nil, nil)
	}
	return &HistoryShowResponseCLI{Path: path, Run: run}, nil
}

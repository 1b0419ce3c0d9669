package main

import (
	"fmt"
	"time"

	"bibsort/internal/backup"
	"bibsort/internal/digest"
	"bibsort/internal/document"
	"bibsort/internal/errors"
	"bibsort/internal/history"
	"bibsort/internal/latex"
	"bibsort/internal/paths"
	"bibsort/internal/version"
)

// reorderOptions holds the root command's own flags.
type reorderOptions struct {
	dryRun    bool
	inPlace   bool
	noBackup  bool
	noHistory bool
}

// Context window around a citation in reports.
const (
	contextBefore = 30
	contextAfter  = 40
)

// ReorderResponseCLI is the report of one reorder run
type ReorderResponseCLI struct {
	Version      string                `json:"version" yaml:"version"`
	RunID        string                `json:"runId,omitempty" yaml:"runId,omitempty"`
	Input        string                `json:"input" yaml:"input"`
	Output       string                `json:"output" yaml:"output"`
	DryRun       bool                  `json:"dryRun" yaml:"dryRun"`
	Written      bool                  `json:"written" yaml:"written"`
	Changed      bool                  `json:"changed" yaml:"changed"`
	Snapshot     string                `json:"snapshot,omitempty" yaml:"snapshot,omitempty"`
	Citations    []CitationCLI         `json:"citations" yaml:"citations"`
	Order        []string              `json:"order" yaml:"order"`
	Preamble     string                `json:"preamble" yaml:"preamble"`
	Entries      int                   `json:"entries" yaml:"entries"`
	EntryKeys    []string              `json:"entryKeys" yaml:"entryKeys"`
	Decisions    []DecisionCLI         `json:"decisions" yaml:"decisions"`
	Diagnostics  []document.Diagnostic `json:"diagnostics,omitempty" yaml:"diagnostics,omitempty"`
	Block        string                `json:"block" yaml:"block"`
	InputDigest  string                `json:"inputDigest" yaml:"inputDigest"`
	OutputDigest string                `json:"outputDigest" yaml:"outputDigest"`

	preview int
}

// CitationCLI is one key occurrence with its surrounding text
type CitationCLI struct {
	Key     string `json:"key" yaml:"key"`
	Line    int    `json:"line" yaml:"line"`
	Context string `json:"context" yaml:"context"`
	First   bool   `json:"first" yaml:"first"`
}

// Decision actions, one per key of the rebuilt bibliography or citation.
const (
	ActionCited   = "cited"
	ActionMissing = "missing"
	ActionUnused  = "unused"
)

// DecisionCLI records where a key ended up. Position is 1-based and 0 for
// keys that have no entry.
type DecisionCLI struct {
	Key      string `json:"key" yaml:"key"`
	Action   string `json:"action" yaml:"action"`
	Position int    `json:"position,omitempty" yaml:"position,omitempty"`
}

func runReorder(a *app, o *reorderOptions, args []string) error {
	input := args[0]
	if o.inPlace && len(args) == 2 {
		return fmt.Errorf("--in-place cannot be combined with an output path")
	}

	run := history.NewRun(input)
	if abs, err := paths.Canonicalize(input); err == nil {
		run.InputPath = abs
	}

	resp, err := reorderDocument(a, o, args, run)
	if err != nil {
		run.MarkFailed(string(errors.CodeOf(err)), err.Error())
	}

	if a.cfg.History.Enabled && !o.noHistory {
		recordRun(a, run)
	}
	if err != nil {
		return err
	}
	resp.RunID = run.ID
	return a.print(resp)
}

func reorderDocument(a *app, o *reorderOptions, args []string, run *history.Run) (*ReorderResponseCLI, error) {
	input := args[0]
	text, err := document.ReadDocument(input)
	if err != nil {
		return nil, err
	}
	run.InputDigest = digest.String(text)

	output := outputPath(a, o, args)
	run.OutputPath = output
	if !o.inPlace && paths.SamePath(output, input) {
		return nil, errors.NewBibsortError(
			errors.OutputWrite,
			fmt.Sprintf("output path %s is the input; use --in-place to overwrite it", output),
			nil,
			nil,
		)
	}

	a.logger.Debug("Reordering", "input", input, "output", output, "bytes", len(text))
	res, err := document.Reorder(text, a.cfg.Options())
	if err != nil {
		return nil, err
	}
	logDiagnostics(a, res.Diagnostics)

	resp := buildReorderResponse(text, res)
	resp.Input = input
	resp.Output = output
	resp.DryRun = o.dryRun
	resp.InputDigest = run.InputDigest
	resp.preview = a.cfg.Output.PreviewCitations

	run.Citations = res.Order.Len()
	run.Entries = len(res.Block.Entries)
	run.Matched = res.Reconciled.Matched
	run.MissingKeys = res.Reconciled.Missing
	run.OrphanKeys = res.Reconciled.Orphans
	run.OutputDigest = resp.OutputDigest

	if o.dryRun {
		run.MarkFinished(history.StatusDryRun)
		a.logger.Info("Dry run, nothing written", "output", output)
		return resp, nil
	}

	if o.inPlace && a.cfg.Backup.Enabled && !o.noBackup {
		snap, err := backup.Snapshot(input, a.cfg.Backup.Dir, text, time.Now())
		if err != nil {
			return nil, err
		}
		resp.Snapshot = snap
		run.Snapshot = snap
		a.logger.Info("Snapshot written", "path", snap)
	}

	if err := document.WriteDocument(output, res.Text); err != nil {
		return nil, err
	}
	resp.Written = true
	run.MarkFinished(history.StatusSucceeded)
	a.logger.Info("Bibliography reordered",
		"output", output,
		"entries", len(res.Reconciled.Entries),
		"matched", res.Reconciled.Matched,
	)
	return resp, nil
}

// outputPath picks the explicit path, the input for --in-place, or the
// input name with the configured suffix.
func outputPath(a *app, o *reorderOptions, args []string) string {
	switch {
	case len(args) == 2:
		return args[1]
	case o.inPlace:
		return args[0]
	default:
		return paths.DefaultOutputPath(args[0], a.cfg.Output.Suffix)
	}
}

func buildReorderResponse(text string, res *document.Result) *ReorderResponseCLI {
	resp := &ReorderResponseCLI{
		Version:      version.Version,
		Changed:      res.Changed,
		Order:        res.Order.Keys,
		Preamble:     res.Block.Preamble,
		Entries:      len(res.Block.Entries),
		EntryKeys:    res.Block.Keys(),
		Diagnostics:  res.Diagnostics,
		Block:        res.BlockText,
		OutputDigest: digest.String(res.Text),
	}

	resp.Citations = make([]CitationCLI, 0, len(res.Scan.Occurrences))
	for _, occ := range res.Scan.Occurrences {
		resp.Citations = append(resp.Citations, CitationCLI{
			Key:     occ.Key,
			Line:    occ.Line,
			Context: latex.Context(text, occ.Pos.Offset, contextBefore, contextAfter),
			First:   res.Order.First[occ.Key] == occ.Pos,
		})
	}

	placed := make(map[string]int, len(res.Reconciled.Entries))
	for i, e := range res.Reconciled.Entries {
		placed[e.Key] = i + 1
	}
	for _, key := range res.Order.Keys {
		if pos, ok := placed[key]; ok {
			resp.Decisions = append(resp.Decisions, DecisionCLI{Key: key, Action: ActionCited, Position: pos})
		} else {
			resp.Decisions = append(resp.Decisions, DecisionCLI{Key: key, Action: ActionMissing})
		}
	}
	for _, key := range res.Reconciled.Orphans {
		resp.Decisions = append(resp.Decisions, DecisionCLI{Key: key, Action: ActionUnused, Position: placed[key]})
	}
	return resp
}

func logDiagnostics(a *app, diags []document.Diagnostic) {
	for _, d := range diags {
		attrs := []any{"kind", d.Kind}
		if d.Key != "" {
			attrs = append(attrs, "key", d.Key)
		}
		if d.Line > 0 {
			attrs = append(attrs, "line", d.Line)
		}
		switch d.Severity {
		case document.SeverityWarning:
			a.logger.Warn(d.Message, attrs...)
		case document.SeverityNotice:
			a.logger.Info(d.Message, attrs...)
		default:
			a.logger.Debug(d.Message, attrs...)
		}
	}
}

func recordRun(a *app, run *history.Run) {
	store := a.openHistory()
	if store == nil {
		return
	}
	defer func() { _ = store.Close() }()

	if err := store.Record(run); err != nil {
		a.logger.Warn("Could not record run", "code", errors.HistoryUnavailable, "error", err)
		return
	}
	if keep := a.cfg.History.Keep; keep > 0 {
		if n, err := store.Prune(keep); err != nil {
			a.logger.Warn("Could not prune history", "error", err)
		} else if n > 0 {
			a.logger.Debug("Pruned history", "removed", n)
		}
	}
}

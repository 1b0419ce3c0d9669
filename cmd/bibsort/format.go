package main

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"

	"bibsort/internal/digest"
	"bibsort/internal/document"
	"bibsort/internal/errors"
	"bibsort/internal/history"
)

// OutputFormat represents the output format type
type OutputFormat string

const (
	FormatHuman OutputFormat = "human"
	FormatJSON  OutputFormat = "json"
	FormatYAML  OutputFormat = "yaml"
)

// Valid reports whether f is a known format.
func (f OutputFormat) Valid() bool {
	switch f {
	case FormatHuman, FormatJSON, FormatYAML:
		return true
	}
	return false
}

// FormatResponse formats a response according to the specified format
func FormatResponse(resp interface{}, format OutputFormat) (string, error) {
	switch format {
	case FormatJSON:
		return formatJSON(resp)
	case FormatYAML:
		return formatYAML(resp)
	case FormatHuman:
		return formatHuman(resp)
	default:
		return "", fmt.Errorf("unsupported format: %s", format)
	}
}

func formatJSON(resp interface{}) (string, error) {
	data, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return string(data), nil
}

func formatYAML(resp interface{}) (string, error) {
	var b strings.Builder
	enc := yaml.NewEncoder(&b)
	enc.SetIndent(2)
	if err := enc.Encode(resp); err != nil {
		return "", fmt.Errorf("failed to marshal YAML: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("failed to marshal YAML: %w", err)
	}
	return strings.TrimSuffix(b.String(), "\n"), nil
}

// formatHuman dispatches on the response type
func formatHuman(resp interface{}) (string, error) {
	switch v := resp.(type) {
	case *ReorderResponseCLI:
		return formatReorderHuman(v), nil
	case *ScanResponseCLI:
		return formatScanHuman(v), nil
	case *HistoryResponseCLI:
		return formatHistoryHuman(v), nil
	case *HistoryShowResponseCLI:
		return formatHistoryShowHuman(v), nil
	case *RestoreResponseCLI:
		return formatRestoreHuman(v), nil
	case *ConfigShowResponse:
		return formatConfigHuman(v)
	default:
		return formatJSON(resp)
	}
}

// formatError renders err for stderr with its suggested fixes. ${input}
// in a fix command is replaced by input.
func formatError(err error, input string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Error: %v\n", err)

	var be *errors.BibsortError
	if !stderrors.As(err, &be) || len(be.SuggestedFixes) == 0 {
		return b.String()
	}
	if input == "" {
		input = "<input.tex>"
	}
	b.WriteString("Suggested fixes:\n")
	for _, fix := range be.SuggestedFixes {
		if fix.Command != "" {
			fmt.Fprintf(&b, "  $ %s\n    %s\n", strings.ReplaceAll(fix.Command, "${input}", input), fix.Description)
			continue
		}
		fmt.Fprintf(&b, "  - %s\n", fix.Description)
	}
	return b.String()
}

// truncate shortens s to n runes with an ellipsis.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 3 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}

func rule() string {
	return strings.Repeat("=", 60) + "\n"
}

// formatReorderHuman follows the run: citations, order, entries, decisions,
// then the outcome line.
func formatReorderHuman(resp *ReorderResponseCLI) string {
	var b strings.Builder

	fmt.Fprintf(&b, "bibsort v%s\n", resp.Version)
	b.WriteString(rule() + "\n")
	fmt.Fprintf(&b, "Input:  %s\n", resp.Input)
	fmt.Fprintf(&b, "Output: %s\n\n", resp.Output)

	writeCitations(&b, resp.Citations, resp.preview)

	fmt.Fprintf(&b, "Citation order (%d unique):\n", len(resp.Order))
	for i, key := range resp.Order {
		fmt.Fprintf(&b, "  %d. %s\n", i+1, key)
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "Bibliography: %s\n", resp.Preamble)
	fmt.Fprintf(&b, "Found %d entries:\n", resp.Entries)
	for _, key := range resp.EntryKeys {
		fmt.Fprintf(&b, "  - %s\n", key)
	}
	b.WriteString("\n")

	b.WriteString("Decisions:\n")
	for _, d := range resp.Decisions {
		switch d.Action {
		case ActionCited:
			fmt.Fprintf(&b, "  %3d. %s -> added to bibliography\n", d.Position, d.Key)
		case ActionMissing:
			fmt.Fprintf(&b, "     - %s -> WARNING: no bibliography entry found\n", d.Key)
		case ActionUnused:
			fmt.Fprintf(&b, "  %3d. %s -> added as unused entry\n", d.Position, d.Key)
		}
	}
	b.WriteString("\n")

	var notes []string
	for _, d := range resp.Diagnostics {
		if d.Severity != document.SeverityWarning || d.Kind == document.MissingEntry {
			continue
		}
		where := ""
		if d.Line > 0 {
			where = fmt.Sprintf("line %d: ", d.Line)
		}
		notes = append(notes, fmt.Sprintf("  ! %s%s\n", where, d.Message))
	}
	if len(notes) > 0 {
		b.WriteString("Warnings:\n")
		for _, n := range notes {
			b.WriteString(n)
		}
		b.WriteString("\n")
	}

	b.WriteString("New bibliography:\n")
	b.WriteString(resp.Block)
	b.WriteString("\n\n")

	switch {
	case resp.DryRun:
		fmt.Fprintf(&b, "✓ Dry run: %s would be written (%s)", resp.Output, changeSummary(resp))
	case resp.Written:
		fmt.Fprintf(&b, "✓ Wrote %s (%s)", resp.Output, changeSummary(resp))
		if resp.Snapshot != "" {
			fmt.Fprintf(&b, "\n  Snapshot: %s", resp.Snapshot)
		}
	default:
		b.WriteString("✗ Nothing written")
	}
	return b.String()
}

func changeSummary(resp *ReorderResponseCLI) string {
	if !resp.Changed {
		return "already in citation order"
	}
	return fmt.Sprintf("digest %s -> %s", digest.Short(resp.InputDigest), digest.Short(resp.OutputDigest))
}

// writeCitations lists up to limit occurrences; limit 0 lists none.
func writeCitations(b *strings.Builder, cites []CitationCLI, limit int) {
	fmt.Fprintf(b, "Citations found: %d\n", len(cites))
	shown := cites
	if len(shown) > limit {
		shown = shown[:limit]
	}
	for i, c := range shown {
		first := ""
		if c.First {
			first = " [FIRST]"
		}
		fmt.Fprintf(b, "  %d. line %d: %s%s\n", i+1, c.Line, c.Key, first)
		if c.Context != "" {
			fmt.Fprintf(b, "     %s\n", truncate(c.Context, 72))
		}
	}
	if rest := len(cites) - len(shown); rest > 0 {
		fmt.Fprintf(b, "  ... and %d more\n", rest)
	}
	b.WriteString("\n")
}

func formatScanHuman(resp *ScanResponseCLI) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Scan: %s\n", resp.Input)
	b.WriteString(rule())
	fmt.Fprintf(&b, "Commands: \\%s\n\n", strings.Join(resp.Commands, ", \\"))

	writeCitations(&b, resp.Citations, resp.preview)

	fmt.Fprintf(&b, "Citation order (%d unique):\n", len(resp.Order))
	for i, k := range resp.Order {
		times := ""
		if k.Count > 1 {
			times = fmt.Sprintf(" (cited %d times)", k.Count)
		}
		fmt.Fprintf(&b, "  %d. %s, line %d%s\n", i+1, k.Key, k.Line, times)
	}

	if len(resp.Malformed) > 0 {
		b.WriteString("\nMalformed markers:\n")
		for _, m := range resp.Malformed {
			fmt.Fprintf(&b, "  ! line %d: %s\n", m.Line, m.Reason)
		}
	}

	bib := resp.Bibliography
	if bib == nil {
		b.WriteString("\nNo bibliography block found")
		return b.String()
	}
	fmt.Fprintf(&b, "\nBibliography: %d entries\n", len(bib.Keys))
	fmt.Fprintf(&b, "  %s\n", bib.Preamble)
	if len(bib.Missing) > 0 {
		fmt.Fprintf(&b, "  Missing: %s\n", strings.Join(bib.Missing, ", "))
	}
	if len(bib.Orphans) > 0 {
		fmt.Fprintf(&b, "  Unused:  %s\n", strings.Join(bib.Orphans, ", "))
	}
	if len(bib.Duplicates) > 0 {
		fmt.Fprintf(&b, "  Duplicate keys: %s\n", strings.Join(bib.Duplicates, ", "))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func formatHistoryHuman(resp *HistoryResponseCLI) string {
	if len(resp.Runs) == 0 {
		return fmt.Sprintf("No runs recorded in %s", resp.Path)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Recent runs (%d):\n\n", len(resp.Runs))
	for _, r := range resp.Runs {
		icon := "✓"
		switch r.Status {
		case history.StatusFailed:
			icon = "✗"
		case history.StatusDryRun:
			icon = "○"
		case history.StatusRunning:
			icon = "…"
		}
		fmt.Fprintf(&b, "%s %s  %-9s  %s\n", icon, r.ID[:min(8, len(r.ID))], r.Status, humanize.Time(r.StartedAt))
		fmt.Fprintf(&b, "    %s", r.InputPath)
		if r.OutputPath != "" && r.OutputPath != r.InputPath {
			fmt.Fprintf(&b, " -> %s", r.OutputPath)
		}
		b.WriteString("\n")
		if r.Status == history.StatusFailed {
			fmt.Fprintf(&b, "    %s: %s\n", r.ErrorCode, r.Error)
			continue
		}
		fmt.Fprintf(&b, "    %d citations, %d of %d entries cited", r.Citations, r.Matched, r.Entries)
		if n := len(r.MissingKeys); n > 0 {
			fmt.Fprintf(&b, ", %d missing", n)
		}
		b.WriteString("\n")
		if r.Snapshot != "" {
			fmt.Fprintf(&b, "    snapshot %s\n", r.Snapshot)
		}
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func formatHistoryShowHuman(resp *HistoryShowResponseCLI) string {
	r := resp.Run
	var b strings.Builder

	fmt.Fprintf(&b, "Run %s\n", r.ID)
	b.WriteString(rule())
	fmt.Fprintf(&b, "Status:    %s\n", r.Status)
	fmt.Fprintf(&b, "Started:   %s (%s)\n", r.StartedAt.Local().Format("2006-01-02 15:04:05"), humanize.Time(r.StartedAt))
	if r.FinishedAt != nil {
		fmt.Fprintf(&b, "Duration:  %s\n", r.Duration().Round(time.Millisecond))
	}
	fmt.Fprintf(&b, "Input:     %s\n", r.InputPath)
	if r.OutputPath != "" {
		fmt.Fprintf(&b, "Output:    %s\n", r.OutputPath)
	}
	if r.Snapshot != "" {
		fmt.Fprintf(&b, "Snapshot:  %s\n", r.Snapshot)
	}

	if r.Status == history.StatusFailed {
		fmt.Fprintf(&b, "Error:     %s: %s", r.ErrorCode, r.Error)
		return b.String()
	}

	fmt.Fprintf(&b, "Citations: %d unique keys\n", r.Citations)
	fmt.Fprintf(&b, "Entries:   %d, %d cited\n", r.Entries, r.Matched)
	if len(r.MissingKeys) > 0 {
		fmt.Fprintf(&b, "Missing:   %s\n", strings.Join(r.MissingKeys, ", "))
	}
	if len(r.OrphanKeys) > 0 {
		fmt.Fprintf(&b, "Unused:    %s\n", strings.Join(r.OrphanKeys, ", "))
	}
	if r.InputDigest != "" {
		fmt.Fprintf(&b, "Digest:    %s -> %s\n", digest.Short(r.InputDigest), digest.Short(r.OutputDigest))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func formatRestoreHuman(resp *RestoreResponseCLI) string {
	return fmt.Sprintf("✓ Restored %s\n  from %s (%s)", resp.Destination, resp.Snapshot, digest.Short(resp.Digest))
}

func formatConfigHuman(resp *ConfigShowResponse) (string, error) {
	var b strings.Builder
	if resp.UsedDefaults {
		b.WriteString("# built-in defaults\n")
	} else {
		fmt.Fprintf(&b, "# %s\n", resp.ConfigPath)
	}
	if err := toml.NewEncoder(&b).Encode(resp.Config); err != nil {
		return "", fmt.Errorf("failed to encode config: %w", err)
	}
	return strings.TrimSuffix(b.String(), "\n"), nil
}

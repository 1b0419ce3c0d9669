package document

import (
	"fmt"

	"bibsort/internal/bibliography"
	"bibsort/internal/citation"
)

// Kind classifies a diagnostic.
type Kind string

const (
	// MissingEntry: a cited key has no bibliography entry.
	MissingEntry Kind = "missing-entry"
	// OrphanEntry: a bibliography entry is never cited.
	OrphanEntry Kind = "orphan-entry"
	// DuplicateEntry: a key is declared more than once in the bibliography.
	DuplicateEntry Kind = "duplicate-entry"
	// RepeatCitation: a key is cited more than once.
	RepeatCitation Kind = "repeat-citation"
	// MalformedMarker: a citation marker could not be read.
	MalformedMarker Kind = "malformed-marker"
	// LeadText: text between the preamble line and the first entry. It is
	// kept in place ahead of the reordered entries.
	LeadText Kind = "lead-text"
)

// Severity orders diagnostics for presentation.
type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityNotice  Severity = "notice"
	SeverityDebug   Severity = "debug"
)

// Diagnostic is a non-fatal finding of a run.
type Diagnostic struct {
	Kind     Kind     `json:"kind" yaml:"kind"`
	Severity Severity `json:"severity" yaml:"severity"`
	Key      string   `json:"key,omitempty" yaml:"key,omitempty"`
	Line     int      `json:"line,omitempty" yaml:"line,omitempty"`
	Message  string   `json:"message" yaml:"message"`
}

func collectDiagnostics(scan *citation.ScanResult, order *citation.Order, block *bibliography.Block, rec *bibliography.Reconciled) []Diagnostic {
	var diags []Diagnostic

	for _, m := range scan.Malformed {
		diags = append(diags, Diagnostic{
			Kind:     MalformedMarker,
			Severity: SeverityWarning,
			Line:     m.Line,
			Message:  m.Reason,
		})
	}

	firstLine := make(map[string]int, len(scan.Occurrences))
	for _, occ := range scan.Occurrences {
		if first, ok := order.First[occ.Key]; ok && first == occ.Pos {
			firstLine[occ.Key] = occ.Line
		}
	}

	for _, key := range rec.Missing {
		diags = append(diags, Diagnostic{
			Kind:     MissingEntry,
			Severity: SeverityWarning,
			Key:      key,
			Line:     firstLine[key],
			Message:  fmt.Sprintf("no bibliography entry for cited key %q", key),
		})
	}

	entryLine := make(map[string]int, len(block.Entries))
	for _, e := range block.Entries {
		entryLine[e.Key] = e.Line
	}
	for _, key := range rec.Orphans {
		diags = append(diags, Diagnostic{
			Kind:     OrphanEntry,
			Severity: SeverityNotice,
			Key:      key,
			Line:     entryLine[key],
			Message:  fmt.Sprintf("entry %q is never cited; kept at the end", key),
		})
	}

	for _, key := range block.Duplicates {
		diags = append(diags, Diagnostic{
			Kind:     DuplicateEntry,
			Severity: SeverityWarning,
			Key:      key,
			Line:     entryLine[key],
			Message:  fmt.Sprintf("entry %q declared more than once; the last declaration wins", key),
		})
	}

	if block.Lead != "" {
		diags = append(diags, Diagnostic{
			Kind:     LeadText,
			Severity: SeverityNotice,
			Message:  fmt.Sprintf("text before the first entry is kept after the preamble: %q", block.Lead),
		})
	}

	for _, key := range order.Repeated() {
		diags = append(diags, Diagnostic{
			Kind:     RepeatCitation,
			Severity: SeverityDebug,
			Key:      key,
			Line:     firstLine[key],
			Message:  fmt.Sprintf("key %q cited %d times; first citation decides its position", key, order.Count[key]),
		})
	}

	return diags
}

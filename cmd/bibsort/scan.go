package main

import (
	"github.com/spf13/cobra"

	"bibsort/internal/bibliography"
	"bibsort/internal/citation"
	"bibsort/internal/document"
	"bibsort/internal/latex"
	"bibsort/internal/version"
)

// ScanResponseCLI reports citations without rewriting anything
type ScanResponseCLI struct {
	Version      string               `json:"version" yaml:"version"`
	Input        string               `json:"input" yaml:"input"`
	Commands     []string             `json:"commands" yaml:"commands"`
	Citations    []CitationCLI        `json:"citations" yaml:"citations"`
	Order        []OrderedKeyCLI      `json:"order" yaml:"order"`
	Malformed    []citation.Malformed `json:"malformed,omitempty" yaml:"malformed,omitempty"`
	Bibliography *BibliographyCLI     `json:"bibliography,omitempty" yaml:"bibliography,omitempty"`

	preview int
}

// OrderedKeyCLI is a unique key with where it is first cited
type OrderedKeyCLI struct {
	Key   string `json:"key" yaml:"key"`
	Line  int    `json:"line" yaml:"line"`
	Count int    `json:"count" yaml:"count"`
}

// BibliographyCLI summarises the block when the document has one
type BibliographyCLI struct {
	Preamble   string   `json:"preamble" yaml:"preamble"`
	Keys       []string `json:"keys" yaml:"keys"`
	Missing    []string `json:"missing,omitempty" yaml:"missing,omitempty"`
	Orphans    []string `json:"orphans,omitempty" yaml:"orphans,omitempty"`
	Duplicates []string `json:"duplicates,omitempty" yaml:"duplicates,omitempty"`
}

func newScanCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "scan <input.tex>",
		Short: "List citations in first-appearance order without rewriting",
		Long: `Scan a document for citation markers and print each key in the order
it is first cited, with the line and surrounding text. When the document has
a bibliography block, also report missing and unused entries.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := root.setup(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			resp, err := scanDocument(a, args[0])
			if err != nil {
				return err
			}
			return a.print(resp)
		},
	}
}

func scanDocument(a *app, input string) (*ScanResponseCLI, error) {
	text, err := document.ReadDocument(input)
	if err != nil {
		return nil, err
	}
	opts := a.cfg.Options()

	scan := citation.Scan(text, opts.Citation)
	order := citation.Resolve(scan.Occurrences)
	a.logger.Debug("Scanned", "input", input, "occurrences", len(scan.Occurrences), "unique", order.Len())

	resp := &ScanResponseCLI{
		Version:   version.Version,
		Input:     input,
		Commands:  opts.Citation.Commands,
		Citations: make([]CitationCLI, 0, len(scan.Occurrences)),
		Order:     make([]OrderedKeyCLI, 0, order.Len()),
		Malformed: scan.Malformed,
		preview:   a.cfg.Output.PreviewCitations,
	}

	firstLine := make(map[string]int, order.Len())
	for _, occ := range scan.Occurrences {
		first := order.First[occ.Key] == occ.Pos
		if first {
			firstLine[occ.Key] = occ.Line
		}
		resp.Citations = append(resp.Citations, CitationCLI{
			Key:     occ.Key,
			Line:    occ.Line,
			Context: latex.Context(text, occ.Pos.Offset, contextBefore, contextAfter),
			First:   first,
		})
	}
	for _, key := range order.Keys {
		resp.Order = append(resp.Order, OrderedKeyCLI{Key: key, Line: firstLine[key], Count: order.Count[key]})
	}

	block, err := bibliography.Parse(text, opts.Bibliography)
	if err != nil {
		a.logger.Info("No bibliography block", "reason", err)
		return resp, nil
	}
	rec := bibliography.Reconcile(order.Keys, block)
	resp.Bibliography = &BibliographyCLI{
		Preamble:   block.Preamble,
		Keys:       block.Keys(),
		Missing:    rec.Missing,
		Orphans:    rec.Orphans,
		Duplicates: block.Duplicates,
	}
	return resp, nil
}

// Package document drives one reorder run over a whole LaTeX document:
// scan citations, parse the bibliography, reconcile, and splice the rebuilt
// block back into the text.
package document

import (
	stderrors "errors"

	"bibsort/internal/bibliography"
	"bibsort/internal/citation"
	"bibsort/internal/errors"
)

// Options selects the marker and block syntax.
type Options struct {
	Citation     citation.Syntax
	Bibliography bibliography.Syntax
}

// DefaultOptions handles \cite and thebibliography/\bibitem.
func DefaultOptions() Options {
	return Options{
		Citation:     citation.DefaultSyntax(),
		Bibliography: bibliography.DefaultSyntax(),
	}
}

// Result is everything one run produced. Text is the full rewritten document.
type Result struct {
	Text        string                   `json:"-" yaml:"-"`
	BlockText   string                   `json:"block" yaml:"block"`
	Scan        *citation.ScanResult     `json:"scan" yaml:"scan"`
	Order       *citation.Order          `json:"order" yaml:"order"`
	Block       *bibliography.Block      `json:"bibliography" yaml:"bibliography"`
	Reconciled  *bibliography.Reconciled `json:"reconciled" yaml:"reconciled"`
	Diagnostics []Diagnostic             `json:"diagnostics,omitempty" yaml:"diagnostics,omitempty"`
	// Changed reports whether Text differs from the input.
	Changed bool `json:"changed" yaml:"changed"`
}

// Reorder rewrites the bibliography of text in first-citation order. It
// fails with NoCitations when the text cites nothing and with
// BibliographyDelimiter when the block markers are missing; mismatches
// between citations and entries are reported as diagnostics.
func Reorder(text string, opts Options) (*Result, error) {
	scan := citation.Scan(text, opts.Citation)
	if len(scan.Occurrences) == 0 {
		return nil, errors.NewBibsortError(
			errors.NoCitations,
			"no citation markers found in the document",
			nil,
			nil,
		).WithDetails(map[string]interface{}{
			"commands":  opts.Citation.Commands,
			"malformed": len(scan.Malformed),
		})
	}
	order := citation.Resolve(scan.Occurrences)

	block, err := bibliography.Parse(text, opts.Bibliography)
	if err != nil {
		marker := opts.Bibliography.BeginMarker()
		if stderrors.Is(err, bibliography.ErrEndNotFound) {
			marker = opts.Bibliography.EndMarker()
		}
		return nil, errors.NewBibsortError(
			errors.BibliographyDelimiter,
			"could not find "+marker,
			err,
			nil,
		).WithDetails(map[string]string{"marker": marker})
	}

	rec := bibliography.Reconcile(order.Keys, block)
	blockText := block.Render(rec.Entries)
	out := Splice(text, block.Start, block.End, blockText)

	return &Result{
		Text:        out,
		BlockText:   blockText,
		Scan:        scan,
		Order:       order,
		Block:       block,
		Reconciled:  rec,
		Diagnostics: collectDiagnostics(scan, order, block, rec),
		Changed:     out != text,
	}, nil
}

// Splice replaces text[start:end] with replacement.
func Splice(text string, start, end int, replacement string) string {
	return text[:start] + replacement + text[end:]
}

// Package citation finds citation markers in LaTeX source and resolves the
// order in which each key is first cited.
package citation

import (
	"strings"

	"bibsort/internal/latex"
)

// Syntax describes which markers count as citations.
type Syntax struct {
	// Commands are control word names without the backslash, e.g. "cite".
	Commands []string
	// SkipComments ignores text from an unescaped % to the end of the line.
	SkipComments bool
}

// DefaultSyntax recognises \cite only.
func DefaultSyntax() Syntax {
	return Syntax{Commands: []string{"cite"}}
}

// Position orders occurrences: Offset is the byte offset of the marker's
// backslash, Sub the key's index inside the marker's group.
type Position struct {
	Offset int `json:"offset" yaml:"offset"`
	Sub    int `json:"sub" yaml:"sub"`
}

// Less reports whether p comes strictly before q.
func (p Position) Less(q Position) bool {
	if p.Offset != q.Offset {
		return p.Offset < q.Offset
	}
	return p.Sub < q.Sub
}

// Occurrence is one reference to one key by one marker.
type Occurrence struct {
	Key  string   `json:"key" yaml:"key"`
	Pos  Position `json:"pos" yaml:"pos"`
	Line int      `json:"line" yaml:"line"`
}

// Malformed records a marker, or part of one, that could not be used.
type Malformed struct {
	Offset int    `json:"offset" yaml:"offset"`
	Line   int    `json:"line" yaml:"line"`
	Reason string `json:"reason" yaml:"reason"`
}

// ScanResult is the output of Scan in left-to-right order.
type ScanResult struct {
	Occurrences []Occurrence `json:"occurrences" yaml:"occurrences"`
	Malformed   []Malformed  `json:"malformed,omitempty" yaml:"malformed,omitempty"`
}

const (
	reasonUnterminated = "unterminated citation marker"
	reasonNoBody       = "citation marker without key list"
	reasonEmptyKey     = "empty key"
)

// Scan finds every citation marker in text. A marker is \<command>, zero or
// more [modifier] groups and a {key,key,...} group, with blanks and one line
// break allowed between them. Comments inside the key list are dropped and
// keys are trimmed; empty keys are dropped and reported as Malformed.
func Scan(text string, syntax Syntax) *ScanResult {
	commands := make(map[string]bool, len(syntax.Commands))
	for _, c := range syntax.Commands {
		commands[c] = true
	}

	lines := latex.NewLines(text)
	result := &ScanResult{}

	for i := 0; i < len(text); {
		switch text[i] {
		case '%':
			if !syntax.SkipComments {
				i++
				continue
			}
			nl := strings.IndexByte(text[i:], '\n')
			if nl < 0 {
				return result
			}
			i += nl
		case '\\':
			name, end := latex.ControlWord(text, i)
			if name == "" || !commands[name] {
				i = end
				continue
			}
			i = scanMarker(text, i, end, lines, result)
		default:
			i++
		}
	}

	return result
}

// scanMarker reads the marker whose command name ends at nameEnd and returns
// the offset to resume scanning from.
func scanMarker(text string, start, nameEnd int, lines *latex.Lines, result *ScanResult) int {
	j := latex.SkipSpace(text, nameEnd)
	modifiers := false
	for j < len(text) && text[j] == '[' {
		closeIdx, ok := latex.Group(text, j)
		if !ok {
			result.Malformed = append(result.Malformed, Malformed{Offset: start, Line: lines.At(start), Reason: reasonUnterminated})
			return nameEnd
		}
		modifiers = true
		j = latex.SkipSpace(text, closeIdx+1)
	}

	if j >= len(text) || text[j] != '{' {
		// \cite used as a plain word, e.g. in \newcommand{\cite}; only an
		// error when a modifier promised a key list.
		if modifiers {
			result.Malformed = append(result.Malformed, Malformed{Offset: start, Line: lines.At(start), Reason: reasonNoBody})
		}
		return nameEnd
	}

	closeIdx, ok := latex.Group(text, j)
	if !ok {
		result.Malformed = append(result.Malformed, Malformed{Offset: start, Line: lines.At(start), Reason: reasonUnterminated})
		return nameEnd
	}

	line := lines.At(start)
	sub := 0
	for _, raw := range latex.SplitTopLevel(latex.StripComments(text[j+1:closeIdx]), ',') {
		key := strings.TrimSpace(raw)
		if key == "" {
			result.Malformed = append(result.Malformed, Malformed{Offset: start, Line: line, Reason: reasonEmptyKey})
			continue
		}
		result.Occurrences = append(result.Occurrences, Occurrence{
			Key:  key,
			Pos:  Position{Offset: start, Sub: sub},
			Line: line,
		})
		sub++
	}

	return closeIdx + 1
}

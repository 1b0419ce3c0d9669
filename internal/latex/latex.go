// Package latex holds the small lexical helpers shared by the citation
// scanner and the bibliography parser: control words, balanced groups and
// line lookup. It does not attempt to understand TeX beyond that.
package latex

import (
	"sort"
	"strings"
)

// IsLetter reports whether c can be part of a control word name.
func IsLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// ControlWord reads the control word starting at text[i], which must be a
// backslash. It returns the name without the backslash and the index just
// past it. For a control symbol such as \% or \\ the name is empty and end
// skips the escaped character.
func ControlWord(text string, i int) (name string, end int) {
	j := i + 1
	for j < len(text) && IsLetter(text[j]) {
		j++
	}
	if j == i+1 {
		if j < len(text) {
			return "", j + 1
		}
		return "", j
	}
	return text[i+1 : j], j
}

// SkipSpace returns the index of the first byte at or after i that is not a
// space or tab, crossing at most one line break. TeX ignores that much
// whitespace between a control word and its arguments.
func SkipSpace(text string, i int) int {
	newline := false
	for i < len(text) {
		switch text[i] {
		case ' ', '\t', '\r':
			i++
		case '\n':
			if newline {
				return i
			}
			newline = true
			i++
		default:
			return i
		}
	}
	return i
}

// StripComments removes every unescaped % together with the rest of its
// line and the line break, as TeX does when reading an argument.
func StripComments(s string) string {
	if strings.IndexByte(s, '%') < 0 {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			b.WriteByte(s[i])
			if i+1 < len(s) {
				i++
				b.WriteByte(s[i])
			}
		case '%':
			nl := strings.IndexByte(s[i:], '\n')
			if nl < 0 {
				return b.String()
			}
			i += nl
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

// Group returns the index of the delimiter closing the group opened at
// text[start], which must be '{' or '['. Braces nest inside both kinds of
// group; escaped characters never open or close anything and a % comment
// runs to the end of its line. A ']' inside nested braces does not close a
// bracket group.
func Group(text string, start int) (int, bool) {
	if start >= len(text) {
		return 0, false
	}
	open := text[start]
	if open != '{' && open != '[' {
		return 0, false
	}

	depth := 0
	for i := start + 1; i < len(text); i++ {
		switch text[i] {
		case '\\':
			i++
		case '%':
			nl := strings.IndexByte(text[i:], '\n')
			if nl < 0 {
				return 0, false
			}
			i += nl
		case '{':
			depth++
		case '}':
			if depth == 0 {
				if open == '{' {
					return i, true
				}
				return 0, false
			}
			depth--
		case ']':
			if open == '[' && depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}

// SplitTopLevel splits s at every sep that is not nested inside braces or
// escaped with a backslash.
func SplitTopLevel(s string, sep byte) []string {
	var parts []string
	depth := 0
	last := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '{':
			depth++
		case '}':
			if depth > 0 {
				depth--
			}
		case sep:
			if depth == 0 {
				parts = append(parts, s[last:i])
				last = i + 1
			}
		}
	}
	return append(parts, s[last:])
}

// Lines maps byte offsets to 1-based line numbers.
type Lines struct {
	starts []int
}

// NewLines indexes the line starts of text.
func NewLines(text string) *Lines {
	starts := []int{0}
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return &Lines{starts: starts}
}

// At returns the line number containing offset.
func (l *Lines) At(offset int) int {
	return sort.Search(len(l.starts), func(i int) bool { return l.starts[i] > offset })
}

// Context returns up to before bytes ahead of offset and after bytes from it,
// flattened onto one line. Used for diagnostics only.
func Context(text string, offset, before, after int) string {
	start := offset - before
	if start < 0 {
		start = 0
	}
	end := offset + after
	if end > len(text) {
		end = len(text)
	}
	snippet := strings.ToValidUTF8(text[start:end], "")
	snippet = strings.ReplaceAll(snippet, "\n", " ")
	return strings.TrimSpace(strings.ReplaceAll(snippet, "\r", ""))
}

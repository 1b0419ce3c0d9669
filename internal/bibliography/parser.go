// Package bibliography parses a thebibliography block into keyed entries and
// rebuilds it in a given citation order.
package bibliography

import (
	"errors"
	"strings"

	"bibsort/internal/latex"
)

var (
	// ErrBeginNotFound is returned when the document has no begin marker.
	ErrBeginNotFound = errors.New("bibliography begin marker not found")
	// ErrEndNotFound is returned when no end marker follows the begin marker.
	ErrEndNotFound = errors.New("bibliography end marker not found")
)

// Syntax names the environment and the entry command.
type Syntax struct {
	Environment string
	ItemCommand string
}

// DefaultSyntax matches \begin{thebibliography} ... \bibitem{key} ... \end{thebibliography}.
func DefaultSyntax() Syntax {
	return Syntax{Environment: "thebibliography", ItemCommand: "bibitem"}
}

// BeginMarker returns the literal opening marker.
func (s Syntax) BeginMarker() string {
	return `\begin{` + s.Environment + `}`
}

// EndMarker returns the literal closing marker.
func (s Syntax) EndMarker() string {
	return `\end{` + s.Environment + `}`
}

// Entry is one \bibitem. Label holds the optional [label] argument verbatim.
type Entry struct {
	Key   string `json:"key" yaml:"key"`
	Label string `json:"label,omitempty" yaml:"label,omitempty"`
	Body  string `json:"body" yaml:"body"`
	Line  int    `json:"line" yaml:"line"`
}

// Block is a parsed bibliography. Start and End delimit the byte span from
// the begin marker to the end of the end marker.
type Block struct {
	Preamble   string   `json:"preamble" yaml:"preamble"`
	Closing    string   `json:"closing" yaml:"closing"`
	Lead       string   `json:"lead,omitempty" yaml:"lead,omitempty"`
	Entries    []Entry  `json:"entries" yaml:"entries"`
	Duplicates []string `json:"duplicates,omitempty" yaml:"duplicates,omitempty"`
	Start      int      `json:"start" yaml:"start"`
	End        int      `json:"end" yaml:"end"`
	itemCmd    string
}

// Keys returns the entry keys in declaration order.
func (b *Block) Keys() []string {
	keys := make([]string, len(b.Entries))
	for i, e := range b.Entries {
		keys[i] = e.Key
	}
	return keys
}

// itemStart is the location of one \bibitem header inside the block.
type itemStart struct {
	at, bodyAt int
	key, label string
}

// Parse locates the first bibliography block in text and splits it into
// entries. A key declared twice keeps the slot of its first declaration and
// the body of its last one.
func Parse(text string, syntax Syntax) (*Block, error) {
	begin := strings.Index(text, syntax.BeginMarker())
	if begin < 0 {
		return nil, ErrBeginNotFound
	}
	endRel := strings.Index(text[begin:], syntax.EndMarker())
	if endRel < 0 {
		return nil, ErrEndNotFound
	}
	endAt := begin + endRel

	lines := latex.NewLines(text)
	items := findItems(text, begin+len(syntax.BeginMarker()), endAt, syntax.ItemCommand)

	preambleEnd := endAt
	if nl := strings.IndexByte(text[begin:endAt], '\n'); nl >= 0 {
		preambleEnd = begin + nl
	}
	if len(items) > 0 && items[0].at < preambleEnd {
		preambleEnd = items[0].at
	}

	block := &Block{
		Preamble: strings.TrimSuffix(text[begin:preambleEnd], "\r"),
		Closing:  syntax.EndMarker(),
		Entries:  make([]Entry, 0, len(items)),
		Start:    begin,
		End:      endAt + len(syntax.EndMarker()),
		itemCmd:  syntax.ItemCommand,
	}

	leadEnd := endAt
	if len(items) > 0 {
		leadEnd = items[0].at
	}
	block.Lead = strings.TrimSpace(text[preambleEnd:leadEnd])

	slot := make(map[string]int, len(items))
	for i, it := range items {
		bodyEnd := endAt
		if i+1 < len(items) {
			bodyEnd = items[i+1].at
		}
		entry := Entry{
			Key:   it.key,
			Label: it.label,
			Body:  NormalizeBody(text[it.bodyAt:bodyEnd]),
			Line:  lines.At(it.at),
		}
		if idx, dup := slot[it.key]; dup {
			block.Entries[idx].Label = entry.Label
			block.Entries[idx].Body = entry.Body
			block.Duplicates = append(block.Duplicates, it.key)
			continue
		}
		slot[it.key] = len(block.Entries)
		block.Entries = append(block.Entries, entry)
	}

	return block, nil
}

// findItems returns every \<cmd>[label]{key} header between from and to.
// Blanks and one line break may separate the parts. A command without a
// closed {key} group is treated as body text.
func findItems(text string, from, to int, cmd string) []itemStart {
	var items []itemStart
	for i := from; i < to; {
		if text[i] != '\\' {
			i++
			continue
		}
		name, end := latex.ControlWord(text, i)
		if name != cmd {
			i = end
			continue
		}

		j := latex.SkipSpace(text, end)
		label := ""
		if j < to && text[j] == '[' {
			closeIdx, ok := latex.Group(text, j)
			if !ok || closeIdx >= to {
				i = end
				continue
			}
			label = text[j+1 : closeIdx]
			j = latex.SkipSpace(text, closeIdx+1)
		}
		if j >= to || text[j] != '{' {
			i = end
			continue
		}
		closeIdx, ok := latex.Group(text, j)
		if !ok || closeIdx >= to {
			i = end
			continue
		}

		items = append(items, itemStart{
			at:     i,
			bodyAt: closeIdx + 1,
			key:    strings.TrimSpace(text[j+1 : closeIdx]),
			label:  label,
		})
		i = closeIdx + 1
	}
	return items
}

// NormalizeBody trims the body and collapses every run of two or more blank
// lines into one. The first line of a run is kept as written.
func NormalizeBody(body string) string {
	lines := strings.Split(body, "\n")
	out := make([]string, 0, len(lines))
	blank := 0
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			blank++
			if blank > 1 {
				continue
			}
		} else {
			blank = 0
		}
		out = append(out, l)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

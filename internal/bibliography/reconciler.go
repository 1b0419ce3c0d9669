package bibliography

import "strings"

// Reconciled holds the rebuilt entry order: cited entries in citation order
// followed by uncited entries in declaration order.
type Reconciled struct {
	Entries []Entry `json:"entries" yaml:"entries"`
	// Matched is the number of leading entries that were cited.
	Matched int `json:"matched" yaml:"matched"`
	// Missing lists cited keys with no entry, in citation order.
	Missing []string `json:"missing,omitempty" yaml:"missing,omitempty"`
	// Orphans lists entries that were never cited, in declaration order.
	Orphans []string `json:"orphans,omitempty" yaml:"orphans,omitempty"`
}

// Reconcile orders the block's entries by keys. It never drops or duplicates
// an entry: every entry of block appears exactly once in the result.
func Reconcile(keys []string, block *Block) *Reconciled {
	index := make(map[string]int, len(block.Entries))
	for i, e := range block.Entries {
		index[e.Key] = i
	}

	r := &Reconciled{Entries: make([]Entry, 0, len(block.Entries))}
	used := make(map[string]bool, len(block.Entries))

	for _, key := range keys {
		i, ok := index[key]
		if !ok {
			r.Missing = append(r.Missing, key)
			continue
		}
		if used[key] {
			continue
		}
		used[key] = true
		r.Entries = append(r.Entries, block.Entries[i])
	}
	r.Matched = len(r.Entries)

	for _, e := range block.Entries {
		if used[e.Key] {
			continue
		}
		r.Entries = append(r.Entries, e)
		r.Orphans = append(r.Orphans, e.Key)
	}

	return r
}

// Render serialises entries as a complete block: the preamble line, a blank
// line, any lead text followed by a blank line, the entries separated by
// blank lines, and the closing marker on its own line.
func (b *Block) Render(entries []Entry) string {
	var sb strings.Builder
	sb.WriteString(b.Preamble)
	sb.WriteString("\n\n")
	if b.Lead != "" {
		sb.WriteString(b.Lead)
		if len(entries) > 0 {
			sb.WriteString("\n\n")
		}
	}
	for i, e := range entries {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(b.renderEntry(e))
	}
	sb.WriteString("\n")
	sb.WriteString(b.Closing)
	return sb.String()
}

func (b *Block) renderEntry(e Entry) string {
	cmd := b.itemCmd
	if cmd == "" {
		cmd = DefaultSyntax().ItemCommand
	}
	head := `\` + cmd
	if e.Label != "" {
		head += "[" + e.Label + "]"
	}
	return head + "{" + e.Key + "}\n" + e.Body
}

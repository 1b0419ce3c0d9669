package bibliography

import (
	"reflect"
	"sort"
	"testing"
)

func mustParse(t *testing.T, text string) *Block {
	t.Helper()
	block, err := Parse(text, DefaultSyntax())
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	return block
}

const abwBlock = "\\begin{thebibliography}{9}\n\\bibitem{a} A.\n\\bibitem{w} W.\n\\bibitem{b} B.\n\\bibitem{v} V.\n\\end{thebibliography}"

func TestReconcile_Order(t *testing.T) {
	tests := []struct {
		name        string
		keys        []string
		wantOrder   []string
		wantMatched int
		wantMissing []string
		wantOrphans []string
	}{
		{
			name:        "citation order then orphans",
			keys:        []string{"b", "a"},
			wantOrder:   []string{"b", "a", "w", "v"},
			wantMatched: 2,
			wantOrphans: []string{"w", "v"},
		},
		{
			name:        "missing key skipped",
			keys:        []string{"q", "v", "a", "w", "b"},
			wantOrder:   []string{"v", "a", "w", "b"},
			wantMatched: 4,
			wantMissing: []string{"q"},
		},
		{
			name:        "no matches keeps original order",
			keys:        []string{"x", "y"},
			wantOrder:   []string{"a", "w", "b", "v"},
			wantMatched: 0,
			wantMissing: []string{"x", "y"},
			wantOrphans: []string{"a", "w", "b", "v"},
		},
		{
			name:        "repeated key in input placed once",
			keys:        []string{"b", "b", "a"},
			wantOrder:   []string{"b", "a", "w", "v"},
			wantMatched: 2,
			wantOrphans: []string{"w", "v"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			block := mustParse(t, abwBlock)
			r := Reconcile(tt.keys, block)

			got := make([]string, len(r.Entries))
			for i, e := range r.Entries {
				got[i] = e.Key
			}
			if !reflect.DeepEqual(got, tt.wantOrder) {
				t.Errorf("order = %q, want %q", got, tt.wantOrder)
			}
			if r.Matched != tt.wantMatched {
				t.Errorf("Matched = %d, want %d", r.Matched, tt.wantMatched)
			}
			if !reflect.DeepEqual(r.Missing, tt.wantMissing) {
				t.Errorf("Missing = %q, want %q", r.Missing, tt.wantMissing)
			}
			if !reflect.DeepEqual(r.Orphans, tt.wantOrphans) {
				t.Errorf("Orphans = %q, want %q", r.Orphans, tt.wantOrphans)
			}
		})
	}
}

func TestReconcile_SetClosure(t *testing.T) {
	block := mustParse(t, abwBlock)
	r := Reconcile([]string{"v", "zz", "a"}, block)

	in := block.Keys()
	out := make([]string, len(r.Entries))
	for i, e := range r.Entries {
		out[i] = e.Key
	}
	sort.Strings(in)
	sort.Strings(out)
	if !reflect.DeepEqual(in, out) {
		t.Errorf("key multiset changed: in %q, out %q", in, out)
	}
}

func TestReconcile_EmptyBlock(t *testing.T) {
	block := mustParse(t, "\\begin{thebibliography}{9}\n\\end{thebibliography}")
	r := Reconcile([]string{"a", "b"}, block)

	if len(r.Entries) != 0 {
		t.Errorf("Entries = %v, want none", r.Entries)
	}
	if !reflect.DeepEqual(r.Missing, []string{"a", "b"}) {
		t.Errorf("Missing = %q, want [a b]", r.Missing)
	}
	if got := block.Render(r.Entries); got != "\\begin{thebibliography}{9}\n\n\n\\end{thebibliography}" {
		t.Errorf("Render() = %q", got)
	}
}

func TestRender(t *testing.T) {
	block := mustParse(t, "\\begin{thebibliography}{99}\n\\bibitem{a}  A.\n\n\n\\bibitem[L]{b}\nB.\nmore\n\\end{thebibliography}")
	r := Reconcile([]string{"b", "a"}, block)

	want := "\\begin{thebibliography}{99}\n\n" +
		"\\bibitem[L]{b}\nB.\nmore\n\n" +
		"\\bibitem{a}\nA.\n" +
		"\\end{thebibliography}"
	if got := block.Render(r.Entries); got != want {
		t.Errorf("Render() =\n%q\nwant\n%q", got, want)
	}
}

func TestRender_Idempotent(t *testing.T) {
	block := mustParse(t, sampleDoc)
	first := block.Render(Reconcile([]string{"b", "a"}, block).Entries)

	again := mustParse(t, first)
	second := again.Render(Reconcile([]string{"b", "a"}, again).Entries)

	if first != second {
		t.Errorf("second pass changed the block:\n%q\n%q", first, second)
	}
}

func TestRender_KeepsLead(t *testing.T) {
	tests := []struct {
		name string
		text string
		keys []string
		want string
	}{
		{
			name: "lead before entries",
			text: "\\begin{thebibliography}{9}\n\\small\n\\setlength{\\itemsep}{0pt}\n\\bibitem{a} A.\n\\bibitem{b} B.\n\\end{thebibliography}",
			keys: []string{"b", "a"},
			want: "\\begin{thebibliography}{9}\n\n" +
				"\\small\n\\setlength{\\itemsep}{0pt}\n\n" +
				"\\bibitem{b}\nB.\n\n" +
				"\\bibitem{a}\nA.\n" +
				"\\end{thebibliography}",
		},
		{
			name: "lead without entries",
			text: "\\begin{thebibliography}{9}\n% nothing yet\n\\end{thebibliography}",
			want: "\\begin{thebibliography}{9}\n\n% nothing yet\n\\end{thebibliography}",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			block := mustParse(t, tt.text)
			first := block.Render(Reconcile(tt.keys, block).Entries)
			if first != tt.want {
				t.Fatalf("Render() =\n%q\nwant\n%q", first, tt.want)
			}

			again := mustParse(t, first)
			if again.Lead != block.Lead {
				t.Errorf("Lead after re-parse = %q, want %q", again.Lead, block.Lead)
			}
			if second := again.Render(Reconcile(tt.keys, again).Entries); second != first {
				t.Errorf("second pass changed the block:\n%q\n%q", first, second)
			}
		})
	}
}

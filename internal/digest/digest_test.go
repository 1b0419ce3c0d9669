package digest

import (
	"os"
	"path/filepath"
	"testing"
)

// BLAKE2b-256 of the empty input.
const emptyDigest = "0e5751c026e543b2e8ab2eb06099daa1d1e5df47778f7787faab45cdf12fe3a8"

func TestString(t *testing.T) {
	if got := String(""); got != emptyDigest {
		t.Errorf("String(\"\") = %s, want %s", got, emptyDigest)
	}
	if String("a") == String("b") {
		t.Error("different inputs should differ")
	}
	if len(String("\\cite{a}")) != 64 {
		t.Errorf("digest length = %d, want 64", len(String("\\cite{a}")))
	}
}

func TestFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "paper.tex")
	content := "\\begin{thebibliography}{9}\n\\end{thebibliography}\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	got, err := File(path)
	if err != nil {
		t.Fatalf("File() error = %v", err)
	}
	if got != String(content) {
		t.Errorf("File() = %s, want %s", got, String(content))
	}

	if _, err := File(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("File() on missing path should fail")
	}
}

func TestShort(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{emptyDigest, "0e5751c026e5"},
		{"abc", "abc"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := Short(tt.in); got != tt.want {
			t.Errorf("Short(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

const paperTex = `\documentclass{article}
\begin{document}
First \cite{knuth}, then \cite{lamport, knuth}.
Finally \cite{dijkstra}.

\begin{thebibliography}{99}
\bibitem{dijkstra} E. Dijkstra. Go To Statement Considered Harmful.
\bibitem{unused} Nobody. Never cited.
\bibitem{knuth} D. Knuth. The TeXbook.
\bibitem{lamport} L. Lamport. LaTeX.
\end{thebibliography}
\end{document}
`

// setupWorkspace isolates the CLI in a temp directory with its own home.
func setupWorkspace(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("BIBSORT_HOME", filepath.Join(dir, "home"))
	prevDir, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(prevDir) })
	if err := os.WriteFile(filepath.Join(dir, "paper.tex"), []byte(paperTex), 0644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func runCLI(t *testing.T, args ...string) (code int, stdout, stderr string) {
	t.Helper()
	var out, errOut bytes.Buffer
	code = run(args, &out, &errOut)
	return code, out.String(), errOut.String()
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func bibOrder(t *testing.T, text string) []string {
	t.Helper()
	var keys []string
	for _, line := range strings.Split(text, "\n") {
		if rest, ok := strings.CutPrefix(line, `\bibitem{`); ok {
			keys = append(keys, rest[:strings.IndexByte(rest, '}')])
		}
	}
	return keys
}

func TestRun_WritesDefaultOutput(t *testing.T) {
	dir := setupWorkspace(t)

	code, stdout, stderr := runCLI(t, "paper.tex")
	if code != 0 {
		t.Fatalf("exit %d, stderr:\n%s", code, stderr)
	}

	out := readFile(t, filepath.Join(dir, "paper-reordered.tex"))
	got := strings.Join(bibOrder(t, out), ",")
	if got != "knuth,lamport,dijkstra,unused" {
		t.Errorf("bibliography order = %s", got)
	}
	if readFile(t, filepath.Join(dir, "paper.tex")) != paperTex {
		t.Error("input was modified")
	}
	if !strings.Contains(stdout, "✓ Wrote paper-reordered.tex") {
		t.Errorf("stdout missing outcome:\n%s", stdout)
	}
	if !strings.Contains(stdout, "unused -> added as unused entry") {
		t.Errorf("stdout missing unused decision:\n%s", stdout)
	}
	if !strings.Contains(stdout, "Found 4 entries:\n  - dijkstra\n  - unused\n  - knuth\n  - lamport\n") {
		t.Errorf("stdout missing parsed entry keys:\n%s", stdout)
	}
	if !strings.Contains(stdout, "New bibliography:\n\\begin{thebibliography}{99}\n\n\\bibitem{knuth}") {
		t.Errorf("stdout missing rewritten block:\n%s", stdout)
	}
}

func TestRun_ExplicitOutput(t *testing.T) {
	dir := setupWorkspace(t)

	if code, _, stderr := runCLI(t, "paper.tex", "sorted.tex"); code != 0 {
		t.Fatalf("exit %d, stderr:\n%s", code, stderr)
	}
	if _, err := os.Stat(filepath.Join(dir, "sorted.tex")); err != nil {
		t.Errorf("explicit output not written: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "paper-reordered.tex")); !os.IsNotExist(err) {
		t.Error("default output written alongside explicit output")
	}
}

func TestRun_DryRunWritesNothing(t *testing.T) {
	dir := setupWorkspace(t)

	code, stdout, stderr := runCLI(t, "--dry-run", "--no-history", "paper.tex")
	if code != 0 {
		t.Fatalf("exit %d, stderr:\n%s", code, stderr)
	}
	if _, err := os.Stat(filepath.Join(dir, "paper-reordered.tex")); !os.IsNotExist(err) {
		t.Error("dry run wrote the output file")
	}
	if !strings.Contains(stdout, "New bibliography:") || !strings.Contains(stdout, "✓ Dry run:") {
		t.Errorf("unexpected dry run output:\n%s", stdout)
	}
}

func TestRun_InPlaceWithSnapshotAndRestore(t *testing.T) {
	dir := setupWorkspace(t)
	input := filepath.Join(dir, "paper.tex")

	code, stdout, stderr := runCLI(t, "-i", "-f", "json", "paper.tex")
	if code != 0 {
		t.Fatalf("exit %d, stderr:\n%s", code, stderr)
	}
	var resp ReorderResponseCLI
	if err := json.Unmarshal([]byte(stdout), &resp); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, stdout)
	}
	if resp.Snapshot == "" || !resp.Written {
		t.Fatalf("response = %+v, want a snapshot and a write", resp)
	}
	if got := strings.Join(bibOrder(t, readFile(t, input)), ","); got != "knuth,lamport,dijkstra,unused" {
		t.Errorf("in-place order = %s", got)
	}

	if code, _, stderr := runCLI(t, "restore", resp.Snapshot); code != 0 {
		t.Fatalf("restore exit %d, stderr:\n%s", code, stderr)
	}
	if readFile(t, input) != paperTex {
		t.Error("restore did not bring back the original text")
	}
}

func TestRun_InPlaceTwice(t *testing.T) {
	dir := setupWorkspace(t)

	for i := 1; i <= 2; i++ {
		if code, _, stderr := runCLI(t, "-i", "paper.tex"); code != 0 {
			t.Fatalf("run %d exit %d, stderr:\n%s", i, code, stderr)
		}
	}

	matches, err := filepath.Glob(filepath.Join(dir, "paper.tex.*.bak.zst"))
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 2 {
		t.Errorf("snapshots = %v, want 2", matches)
	}
	if got := strings.Join(bibOrder(t, readFile(t, filepath.Join(dir, "paper.tex"))), ","); got != "knuth,lamport,dijkstra,unused" {
		t.Errorf("order after two runs = %s", got)
	}
}

func TestRun_InPlaceNoBackup(t *testing.T) {
	dir := setupWorkspace(t)

	if code, _, stderr := runCLI(t, "-i", "--no-backup", "paper.tex"); code != 0 {
		t.Fatalf("exit %d, stderr:\n%s", code, stderr)
	}
	matches, err := filepath.Glob(filepath.Join(dir, "*.bak.zst"))
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 0 {
		t.Errorf("snapshots written with --no-backup: %v", matches)
	}
}

func TestRun_Errors(t *testing.T) {
	tests := []struct {
		name     string
		doc      string
		args     []string
		wantErr  string
		noOutput string
	}{
		{
			name:     "no bibliography block",
			doc:      "Text \\cite{a}.\n\\bibitem{a} A.\n",
			args:     []string{"bad.tex"},
			wantErr:  "BIBLIOGRAPHY_DELIMITER",
			noOutput: "bad-reordered.tex",
		},
		{
			name:     "no citations",
			doc:      "\\begin{thebibliography}{9}\n\\bibitem{a} A.\n\\end{thebibliography}\n",
			args:     []string{"bad.tex"},
			wantErr:  "bibsort scan bad.tex",
			noOutput: "bad-reordered.tex",
		},
		{
			name:    "missing input",
			args:    []string{"absent.tex"},
			wantErr: "INPUT_NOT_FOUND",
		},
		{
			name:    "output is the input",
			doc:     paperTex,
			args:    []string{"bad.tex", "./bad.tex"},
			wantErr: "--in-place",
		},
		{
			name:    "in place with output",
			doc:     paperTex,
			args:    []string{"-i", "bad.tex", "other.tex"},
			wantErr: "cannot be combined",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := setupWorkspace(t)
			if tt.doc != "" {
				if err := os.WriteFile(filepath.Join(dir, "bad.tex"), []byte(tt.doc), 0644); err != nil {
					t.Fatal(err)
				}
			}

			code, stdout, stderr := runCLI(t, tt.args...)
			if code != 1 {
				t.Fatalf("exit %d, want 1; stdout:\n%s", code, stdout)
			}
			if !strings.Contains(stderr, tt.wantErr) {
				t.Errorf("stderr missing %q:\n%s", tt.wantErr, stderr)
			}
			if tt.noOutput != "" {
				if _, err := os.Stat(filepath.Join(dir, tt.noOutput)); !os.IsNotExist(err) {
					t.Errorf("%s written despite the error", tt.noOutput)
				}
			}
			if tt.doc != "" && readFile(t, filepath.Join(dir, "bad.tex")) != tt.doc {
				t.Error("input modified by a failed run")
			}
		})
	}
}

func TestRun_YAMLFormat(t *testing.T) {
	setupWorkspace(t)

	code, stdout, stderr := runCLI(t, "--dry-run", "--format", "yaml", "paper.tex")
	if code != 0 {
		t.Fatalf("exit %d, stderr:\n%s", code, stderr)
	}
	var resp struct {
		Order  []string `yaml:"order"`
		DryRun bool     `yaml:"dryRun"`
	}
	if err := yaml.Unmarshal([]byte(stdout), &resp); err != nil {
		t.Fatalf("invalid YAML: %v\n%s", err, stdout)
	}
	if strings.Join(resp.Order, ",") != "knuth,lamport,dijkstra" || !resp.DryRun {
		t.Errorf("resp = %+v", resp)
	}
}

func TestRun_FormatFromConfig(t *testing.T) {
	dir := setupWorkspace(t)
	cfgDir := filepath.Join(dir, ".bibsort")
	if err := os.MkdirAll(cfgDir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(cfgDir, "config.toml"), []byte("[output]\nformat = \"json\"\nsuffix = \".sorted\"\n"), 0644); err != nil {
		t.Fatal(err)
	}

	code, stdout, stderr := runCLI(t, "paper.tex")
	if code != 0 {
		t.Fatalf("exit %d, stderr:\n%s", code, stderr)
	}
	if !json.Valid([]byte(stdout)) {
		t.Errorf("expected JSON from config, got:\n%s", stdout)
	}
	if _, err := os.Stat(filepath.Join(dir, "paper.sorted.tex")); err != nil {
		t.Errorf("configured suffix not applied: %v", err)
	}
}

func TestRun_Scan(t *testing.T) {
	dir := setupWorkspace(t)

	code, stdout, stderr := runCLI(t, "scan", "-f", "json", "paper.tex")
	if code != 0 {
		t.Fatalf("exit %d, stderr:\n%s", code, stderr)
	}
	var resp ScanResponseCLI
	if err := json.Unmarshal([]byte(stdout), &resp); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(resp.Citations) != 4 {
		t.Errorf("citations = %d, want 4", len(resp.Citations))
	}
	if len(resp.Order) != 3 || resp.Order[0].Key != "knuth" || resp.Order[0].Count != 2 {
		t.Errorf("order = %+v", resp.Order)
	}
	if resp.Bibliography == nil || strings.Join(resp.Bibliography.Orphans, ",") != "unused" {
		t.Errorf("bibliography = %+v", resp.Bibliography)
	}
	if _, err := os.Stat(filepath.Join(dir, "paper-reordered.tex")); !os.IsNotExist(err) {
		t.Error("scan wrote an output file")
	}
}

func TestRun_History(t *testing.T) {
	setupWorkspace(t)

	runCLI(t, "paper.tex")
	runCLI(t, "--dry-run", "paper.tex")
	runCLI(t, "--no-history", "paper.tex", "x.tex")
	runCLI(t, "absent.tex")

	code, stdout, stderr := runCLI(t, "history", "-f", "json")
	if code != 0 {
		t.Fatalf("exit %d, stderr:\n%s", code, stderr)
	}
	var resp struct {
		Runs []struct {
			Status string `json:"status"`
		} `json:"runs"`
	}
	if err := json.Unmarshal([]byte(stdout), &resp); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	var statuses []string
	for _, r := range resp.Runs {
		statuses = append(statuses, r.Status)
	}
	if got := strings.Join(statuses, ","); got != "failed,dry-run,succeeded" {
		t.Errorf("statuses = %s, want newest first failed,dry-run,succeeded", got)
	}

	code, stdout, _ = runCLI(t, "history", "-n", "1")
	if code != 0 || !strings.Contains(stdout, "Recent runs (1):") {
		t.Errorf("limited history = %d:\n%s", code, stdout)
	}
}

func TestRun_HistoryShow(t *testing.T) {
	setupWorkspace(t)

	if code, _, stderr := runCLI(t, "paper.tex"); code != 0 {
		t.Fatalf("exit %d, stderr:\n%s", code, stderr)
	}
	_, stdout, _ := runCLI(t, "history", "-f", "json")
	var list HistoryResponseCLI
	if err := json.Unmarshal([]byte(stdout), &list); err != nil || len(list.Runs) != 1 {
		t.Fatalf("history = %q (%v)", stdout, err)
	}
	id := list.Runs[0].ID

	code, stdout, stderr := runCLI(t, "history", "show", id[:8], "-f", "json")
	if code != 0 {
		t.Fatalf("exit %d, stderr:\n%s", code, stderr)
	}
	var shown HistoryShowResponseCLI
	if err := json.Unmarshal([]byte(stdout), &shown); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if shown.Run == nil || shown.Run.ID != id || shown.Run.Entries != 4 || shown.Run.Matched != 3 {
		t.Errorf("shown run = %+v, want %s with 4 entries, 3 cited", shown.Run, id)
	}

	code, stdout, _ = runCLI(t, "history", "show", id)
	if code != 0 || !strings.Contains(stdout, "Run "+id) || !strings.Contains(stdout, "Unused:    unused") {
		t.Errorf("human show exit %d:\n%s", code, stdout)
	}

	code, _, stderr = runCLI(t, "history", "show", "zzzz")
	if code != 1 || !strings.Contains(stderr, "RUN_NOT_FOUND") || !strings.Contains(stderr, "$ bibsort history") {
		t.Errorf("unknown run exit %d, stderr:\n%s", code, stderr)
	}
}

func TestRun_ConfigInitAndShow(t *testing.T) {
	dir := setupWorkspace(t)

	code, stdout, stderr := runCLI(t, "config", "init")
	if code != 0 {
		t.Fatalf("exit %d, stderr:\n%s", code, stderr)
	}
	path := filepath.Join(dir, ".bibsort", "config.toml")
	if !strings.Contains(stdout, path) {
		t.Errorf("stdout = %q, want the written path", stdout)
	}
	if !strings.Contains(readFile(t, path), "[bibliography]") {
		t.Error("config file missing [bibliography] table")
	}

	if code, _, stderr := runCLI(t, "config", "init"); code != 1 || !strings.Contains(stderr, "already exists") {
		t.Errorf("second init exit %d, stderr:\n%s", code, stderr)
	}
	if code, _, _ := runCLI(t, "config", "init", "--force"); code != 0 {
		t.Errorf("init --force exit %d", code)
	}

	code, stdout, _ = runCLI(t, "config", "show")
	if code != 0 || !strings.Contains(stdout, "# "+path) {
		t.Errorf("config show exit %d:\n%s", code, stdout)
	}
}

func TestRun_InvalidConfig(t *testing.T) {
	dir := setupWorkspace(t)
	bad := filepath.Join(dir, "bad.toml")
	if err := os.WriteFile(bad, []byte("[output]\nformat = \"xml\"\n"), 0644); err != nil {
		t.Fatal(err)
	}

	code, _, stderr := runCLI(t, "--config", bad, "paper.tex")
	if code != 1 {
		t.Fatalf("exit %d, want 1", code)
	}
	if !strings.Contains(stderr, "CONFIG_INVALID") || !strings.Contains(stderr, "bibsort config show") {
		t.Errorf("stderr:\n%s", stderr)
	}
}

func TestRun_Version(t *testing.T) {
	code, stdout, _ := runCLI(t, "--version")
	if code != 0 || !strings.HasPrefix(stdout, "bibsort version ") {
		t.Errorf("--version exit %d: %q", code, stdout)
	}
	if !strings.Contains(stdout, "\nCommit: ") || !strings.Contains(stdout, "\nBuilt: ") {
		t.Errorf("--version missing build details: %q", stdout)
	}
}

func TestRun_LogLevels(t *testing.T) {
	tests := []struct {
		name      string
		args      []string
		wantInfo  bool
		wantDebug bool
	}{
		{"default is warn", nil, false, false},
		{"-v is info", []string{"-v"}, true, false},
		{"-vv is debug", []string{"-vv"}, true, true},
		{"-q wins", []string{"-q", "-vv"}, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setupWorkspace(t)

			args := append(append([]string{"--dry-run", "--no-history"}, tt.args...), "paper.tex")
			code, _, stderr := runCLI(t, args...)
			if code != 0 {
				t.Fatalf("exit %d, stderr:\n%s", code, stderr)
			}
			if got := strings.Contains(stderr, `[info] entry "unused" is never cited`); got != tt.wantInfo {
				t.Errorf("info line present = %v, want %v:\n%s", got, tt.wantInfo, stderr)
			}
			if got := strings.Contains(stderr, "[debug] "); got != tt.wantDebug {
				t.Errorf("debug lines present = %v, want %v:\n%s", got, tt.wantDebug, stderr)
			}
		})
	}
}

func TestRun_LogFile(t *testing.T) {
	dir := setupWorkspace(t)
	logPath := filepath.Join(dir, "logs", "bibsort.log")

	code, _, stderr := runCLI(t, "--no-history", "--log-file", logPath, "paper.tex")
	if code != 0 {
		t.Fatalf("exit %d, stderr:\n%s", code, stderr)
	}
	if strings.Contains(stderr, "Bibliography reordered") {
		t.Error("info line reached the terminal at warn level")
	}
	if log := readFile(t, logPath); !strings.Contains(log, "[info] Bibliography reordered") {
		t.Errorf("log file missing info line:\n%s", log)
	}
}

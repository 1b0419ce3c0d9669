// Package testutil provides golden-file helpers for document fixtures.
package testutil

import (
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"testing"
)

// Fixture is one directory under testdata/fixtures holding input.tex and
// the golden files produced from it.
type Fixture struct {
	// Name is the directory name, used as the subtest name.
	Name string

	// Root is the absolute path to the fixture directory
	Root string
}

// InputPath returns the fixture's source document.
func (f *Fixture) InputPath() string {
	return filepath.Join(f.Root, "input.tex")
}

// Input reads the fixture's source document, failing the test on error.
func (f *Fixture) Input(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile(f.InputPath())
	if err != nil {
		t.Fatalf("Failed to read fixture input: %v", err)
	}
	return string(data)
}

// ExpectedPath returns the path to a golden file within the fixture.
func (f *Fixture) ExpectedPath(name string) string {
	return filepath.Join(f.Root, name)
}

// LoadFixtures returns every fixture directory that has an input.tex,
// sorted by name.
func LoadFixtures(t *testing.T) []*Fixture {
	t.Helper()

	root := getFixturesRoot(t)
	entries, err := os.ReadDir(root)
	if err != nil {
		t.Fatalf("Failed to list fixtures: %v", err)
	}

	var fixtures []*Fixture
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(root, e.Name())
		if _, err := os.Stat(filepath.Join(dir, "input.tex")); err != nil {
			continue
		}
		fixtures = append(fixtures, &Fixture{Name: e.Name(), Root: dir})
	}
	sort.Slice(fixtures, func(i, j int) bool { return fixtures[i].Name < fixtures[j].Name })
	return fixtures
}

// ForEachFixture runs fn as a subtest for every fixture.
func ForEachFixture(t *testing.T, fn func(t *testing.T, fixture *Fixture)) {
	t.Helper()

	fixtures := LoadFixtures(t)
	if len(fixtures) == 0 {
		t.Skip("No fixtures available")
	}
	for _, f := range fixtures {
		t.Run(f.Name, func(t *testing.T) {
			fn(t, f)
		})
	}
}

// getFixturesRoot returns the absolute path to testdata/fixtures/.
func getFixturesRoot(t *testing.T) string {
	t.Helper()

	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("Failed to get caller information")
	}

	// internal/testutil -> project root
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(thisFile)))
	fixturesRoot := filepath.Join(projectRoot, "testdata", "fixtures")

	if _, err := os.Stat(fixturesRoot); os.IsNotExist(err) {
		t.Fatalf("Fixtures root not found: %s", fixturesRoot)
	}
	return fixturesRoot
}

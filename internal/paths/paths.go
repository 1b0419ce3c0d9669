// Package paths derives output locations and the per-user bibsort directory.
package paths

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	// HomeEnvVar overrides the per-user directory.
	HomeEnvVar = "BIBSORT_HOME"
	// DefaultHomeDir is the per-user directory under the home directory.
	DefaultHomeDir = ".bibsort"
	// HistoryFile is the run history database name inside the home directory.
	HistoryFile = "history.db"
)

// GetHome returns the bibsort home directory: $BIBSORT_HOME if set,
// else ~/.bibsort.
func GetHome() (string, error) {
	if env := os.Getenv(HomeEnvVar); env != "" {
		return env, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, DefaultHomeDir), nil
}

// GetHistoryPath returns override when set, else the default history
// database location. It does not create anything.
func GetHistoryPath(override string) (string, error) {
	if override != "" {
		return ExpandHome(override)
	}
	dir, err := GetHome()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, HistoryFile), nil
}

// ExpandHome replaces a leading ~/ with the user's home directory.
func ExpandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

// DefaultOutputPath inserts suffix between the stem and the extension of
// input: paper.tex becomes paper-reordered.tex for suffix "-reordered".
func DefaultOutputPath(input, suffix string) string {
	dir, base := filepath.Split(input)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	return dir + stem + suffix + ext
}

// Canonicalize returns an absolute, symlink-resolved form of path. A path
// that does not exist yet is resolved through its parent directory.
func Canonicalize(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err == nil {
		return resolved, nil
	}
	if !os.IsNotExist(err) {
		return "", err
	}

	parent, err := filepath.EvalSymlinks(filepath.Dir(abs))
	if err != nil {
		if os.IsNotExist(err) {
			return abs, nil
		}
		return "", err
	}
	return filepath.Join(parent, filepath.Base(abs)), nil
}

// SamePath reports whether a and b name the same file, following symlinks
// and hard links when both exist.
func SamePath(a, b string) bool {
	ia, errA := os.Stat(a)
	ib, errB := os.Stat(b)
	if errA == nil && errB == nil {
		return os.SameFile(ia, ib)
	}

	ca, err := Canonicalize(a)
	if err != nil {
		return false
	}
	cb, err := Canonicalize(b)
	if err != nil {
		return false
	}
	return ca == cb
}

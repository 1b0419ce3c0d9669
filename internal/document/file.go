package document

import (
	"fmt"
	"os"
	"path/filepath"

	"bibsort/internal/errors"
)

// ReadDocument reads the whole document at path.
func ReadDocument(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", errors.NewBibsortError(
			errors.InputNotFound,
			fmt.Sprintf("cannot read %s", path),
			err,
			nil,
		)
	}
	return string(data), nil
}

// WriteDocument writes text to path through a temporary file in the same
// directory and a rename, so a failed write never leaves a partial file at
// path. An existing file's permissions are kept.
func WriteDocument(path, text string) error {
	perm := os.FileMode(0644)
	if info, err := os.Stat(path); err == nil {
		if info.IsDir() {
			return writeError(path, fmt.Errorf("is a directory"))
		}
		perm = info.Mode().Perm()
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return writeError(path, err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.WriteString(text); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return writeError(path, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return writeError(path, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return writeError(path, err)
	}
	_ = os.Chmod(tmpPath, perm)

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return writeError(path, err)
	}
	return nil
}

func writeError(path string, cause error) error {
	return errors.NewBibsortError(
		errors.OutputWrite,
		fmt.Sprintf("cannot write %s", path),
		cause,
		nil,
	)
}

// Package backup snapshots a document as a zstd file before it is rewritten
// in place and restores such snapshots.
package backup

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"

	"bibsort/internal/document"
	"bibsort/internal/errors"
)

// Ext is the snapshot file suffix.
const Ext = ".bak.zst"

// stampLayout is fixed width, so names sort by time.
const stampLayout = "20060102T150405.000000000Z"

// stampLayouts are accepted when reading names back; the second-resolution
// form is what earlier versions wrote.
var stampLayouts = []string{stampLayout, "20060102T150405Z"}

// maxAttempts bounds the search for a free name when stamps collide.
const maxAttempts = 1000

// SnapshotPath returns <dir>/<base>.<timestamp>.bak.zst, with dir defaulting
// to the directory of input.
func SnapshotPath(input, dir string, at time.Time) string {
	if dir == "" {
		dir = filepath.Dir(input)
	}
	return filepath.Join(dir, filepath.Base(input)+"."+at.UTC().Format(stampLayout)+Ext)
}

// Snapshot compresses text into a new snapshot for input and returns its
// path. An existing file is never overwritten: when the name for at is
// taken, the stamp moves forward one nanosecond at a time.
func Snapshot(input, dir, text string, at time.Time) (string, error) {
	path := SnapshotPath(input, dir, at)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", failed(path, err)
	}

	f, path, err := create(input, dir, at)
	if err != nil {
		return "", failed(path, err)
	}

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", failed(path, err)
	}
	if _, err := io.WriteString(enc, text); err != nil {
		_ = enc.Close()
		_ = f.Close()
		_ = os.Remove(path)
		return "", failed(path, err)
	}
	if err := enc.Close(); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", failed(path, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", failed(path, err)
	}
	return path, nil
}

func create(input, dir string, at time.Time) (*os.File, string, error) {
	var path string
	for i := 0; i < maxAttempts; i++ {
		path = SnapshotPath(input, dir, at.Add(time.Duration(i)))
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if err == nil {
			return f, path, nil
		}
		if !os.IsExist(err) {
			return nil, path, err
		}
	}
	return nil, path, fmt.Errorf("no free snapshot name after %d attempts", maxAttempts)
}

// Read decompresses the snapshot at path.
func Read(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", errors.NewBibsortError(
			errors.InputNotFound,
			fmt.Sprintf("cannot open snapshot %s", path),
			err,
			nil,
		)
	}
	defer func() { _ = f.Close() }()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return "", corrupt(path, err)
	}
	defer dec.Close()

	data, err := io.ReadAll(dec)
	if err != nil {
		return "", corrupt(path, err)
	}
	return string(data), nil
}

// Restore writes the snapshot at path to dest. An empty dest restores to
// the document the snapshot was taken from.
func Restore(path, dest string) (string, error) {
	if dest == "" {
		var ok bool
		if dest, ok = OriginalPath(path); !ok {
			return "", errors.NewBibsortError(
				errors.InputNotFound,
				fmt.Sprintf("%s is not named like a snapshot; give a destination", path),
				nil,
				nil,
			)
		}
	}

	text, err := Read(path)
	if err != nil {
		return "", err
	}
	if err := document.WriteDocument(dest, text); err != nil {
		return "", err
	}
	return dest, nil
}

// OriginalPath recovers the document path from a snapshot placed next to it.
func OriginalPath(snapshot string) (string, bool) {
	if !strings.HasSuffix(snapshot, Ext) {
		return "", false
	}
	trimmed := strings.TrimSuffix(snapshot, Ext)
	for _, layout := range stampLayouts {
		dot := len(trimmed) - len(layout) - 1
		if dot <= 0 || trimmed[dot] != '.' {
			continue
		}
		if _, err := time.Parse(layout, trimmed[dot+1:]); err == nil {
			return trimmed[:dot], true
		}
	}
	return "", false
}

func failed(path string, cause error) error {
	return errors.NewBibsortError(
		errors.BackupFailed,
		fmt.Sprintf("cannot write snapshot %s", path),
		cause,
		nil,
	)
}

func corrupt(path string, cause error) error {
	return errors.NewBibsortError(
		errors.InputNotFound,
		fmt.Sprintf("%s is not a readable snapshot", path),
		cause,
		nil,
	)
}

package slogutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseSize(t *testing.T) {
	tests := []struct {
		input    string
		expected int64
	}{
		{"", 0},
		{"invalid", 0},
		{"100", 100},
		{"100B", 100},
		{"100b", 100},
		{"1KB", 1024},
		{"10kb", 10240},
		{"1MB", 1024 * 1024},
		{" 10MB ", 10 * 1024 * 1024},
		{"1GB", 1024 * 1024 * 1024},
		{"1.5MB", int64(1.5 * 1024 * 1024)},
		{"-1MB", 0},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseSize(tt.input); got != tt.expected {
				t.Errorf("ParseSize(%q) = %d, want %d", tt.input, got, tt.expected)
			}
		})
	}
}

func TestRotatingFile_Rotation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bibsort.log")

	rf, err := OpenRotatingFile(path, 50, 2)
	if err != nil {
		t.Fatalf("OpenRotatingFile failed: %v", err)
	}

	line := []byte(strings.Repeat("a", 29) + "\n")
	for i := 0; i < 5; i++ {
		if _, err := rf.Write(line); err != nil {
			t.Fatalf("Write %d failed: %v", i, err)
		}
	}
	if err := rf.Close(); err != nil {
		t.Fatal(err)
	}

	// Each 30-byte write after the first overflows 50 bytes, so every write
	// lands in a fresh file and only two backups survive.
	for _, p := range []string{path, path + ".1", path + ".2"} {
		info, err := os.Stat(p)
		if err != nil {
			t.Fatalf("%s should exist: %v", p, err)
		}
		if info.Size() != int64(len(line)) {
			t.Errorf("%s size = %d, want %d", p, info.Size(), len(line))
		}
	}
	if _, err := os.Stat(path + ".3"); !os.IsNotExist(err) {
		t.Error("backup .3 should not exist with maxBackups=2")
	}
}

func TestRotatingFile_NoBackups(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bibsort.log")

	rf, err := OpenRotatingFile(path, 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer rf.Close()

	for i := 0; i < 3; i++ {
		if _, err := rf.Write([]byte("12345678\n")); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := os.Stat(path + ".1"); !os.IsNotExist(err) {
		t.Error("no backup should be kept with maxBackups=0")
	}
}

func TestOpenLogFile(t *testing.T) {
	dir := t.TempDir()

	rotating, err := OpenLogFile(filepath.Join(dir, "logs", "a.log"), "1MB", 3)
	if err != nil {
		t.Fatalf("OpenLogFile with rotation failed: %v", err)
	}
	defer rotating.Close()
	if _, ok := rotating.(*RotatingFile); !ok {
		t.Errorf("OpenLogFile(1MB) = %T, want *RotatingFile", rotating)
	}

	plain, err := OpenLogFile(filepath.Join(dir, "logs", "b.log"), "", 3)
	if err != nil {
		t.Fatalf("OpenLogFile without rotation failed: %v", err)
	}
	defer plain.Close()
	if _, ok := plain.(*os.File); !ok {
		t.Errorf("OpenLogFile(\"\") = %T, want *os.File", plain)
	}
}

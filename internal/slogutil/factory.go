package slogutil

import (
	"fmt"
	"io"
	"log/slog"

	"bibsort/internal/config"
)

// LoggerFactory builds the CLI logger from config and flags.
// Level precedence: CLI flags > logging.level > warn.
type LoggerFactory struct {
	cfg      config.LoggingConfig
	stderr   io.Writer
	cliLevel slog.Level
	cliSet   bool
	closers  []io.Closer
}

// NewLoggerFactory creates a factory for cfg writing terminal output to stderr.
func NewLoggerFactory(cfg config.LoggingConfig, stderr io.Writer) *LoggerFactory {
	return &LoggerFactory{cfg: cfg, stderr: stderr}
}

// SetCLILevel overrides the configured level.
func (f *LoggerFactory) SetCLILevel(level slog.Level) {
	f.cliLevel = level
	f.cliSet = true
}

// SetLogFile overrides logging.file.
func (f *LoggerFactory) SetLogFile(path string) {
	if path != "" {
		f.cfg.File = path
	}
}

// EffectiveLevel returns the terminal log level.
func (f *LoggerFactory) EffectiveLevel() slog.Level {
	if f.cliSet {
		return f.cliLevel
	}
	if f.cfg.Level != "" {
		return LevelFromString(f.cfg.Level)
	}
	return slog.LevelWarn
}

// Logger returns a logger writing to stderr and, when a log file is
// configured, to that file as well. The file records at least info even
// when the terminal is quieter. If the file cannot be opened the returned
// logger still writes to stderr and the error is returned alongside it.
// A silenced terminal with no log file gets a logger that discards.
func (f *LoggerFactory) Logger() (*slog.Logger, error) {
	level := f.EffectiveLevel()
	if level >= LevelSilent && f.cfg.File == "" {
		return NewDiscardLogger(), nil
	}
	term := NewLineHandler(f.stderr, &slog.HandlerOptions{Level: level}).WithoutTime()
	if f.cfg.File == "" {
		return slog.New(term), nil
	}

	w, err := OpenLogFile(f.cfg.File, f.cfg.MaxSize, f.cfg.MaxBackups)
	if err != nil {
		return slog.New(term), fmt.Errorf("open log file %s: %w", f.cfg.File, err)
	}
	f.closers = append(f.closers, w)

	fileLevel := min(level, slog.LevelInfo)
	file := NewLineHandler(w, &slog.HandlerOptions{Level: fileLevel})
	return slog.New(NewTeeHandler(term, file)), nil
}

// Close closes all open log files.
func (f *LoggerFactory) Close() error {
	var firstErr error
	for _, c := range f.closers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	f.closers = nil
	return firstErr
}

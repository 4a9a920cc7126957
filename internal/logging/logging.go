// Package logging builds the zerolog logger shared by the CLI, the TUI and
// the reference backend.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

// Options select where and how log lines are written.
type Options struct {
	Level  string
	Format string
	// File receives the log when ToFile is set. The TUI owns the terminal,
	// so it always logs to a file.
	File   string
	ToFile bool
	// Writer defaults to os.Stderr.
	Writer io.Writer
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// New returns a logger and a closer for any file it opened.
func New(opts Options) (zerolog.Logger, io.Closer, error) {
	level := zerolog.InfoLevel
	if opts.Level != "" {
		parsed, err := zerolog.ParseLevel(opts.Level)
		if err != nil {
			return zerolog.Nop(), nopCloser{}, fmt.Errorf("log level: %w", err)
		}
		level = parsed
	}

	if opts.ToFile {
		if opts.File == "" {
			return zerolog.Nop(), nopCloser{}, fmt.Errorf("log file path is required")
		}
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
			return zerolog.Nop(), nopCloser{}, fmt.Errorf("create log directory: %w", err)
		}
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return zerolog.Nop(), nopCloser{}, fmt.Errorf("open log file: %w", err)
		}
		logger := zerolog.New(f).Level(level).With().Timestamp().Logger()
		return logger, f, nil
	}

	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}
	if opts.Format == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen, NoColor: !isTerminal(w)}
	}
	logger := zerolog.New(w).Level(level).With().Timestamp().Logger()
	return logger, nopCloser{}, nil
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// Package logging provides structured debug logging for wsrun runs.
//
// Logs are JSON lines written through log/slog, either to stderr or to a
// size-rotated file under the workspace's .wsrun/logs directory. Child
// loggers created with the With* methods carry the run ID, batch index and
// package name so a run can be followed through the log after the fact.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// Log levels supported by the logger
const (
	LevelDebug = "DEBUG"
	LevelInfo  = "INFO"
	LevelWarn  = "WARN"
	LevelError = "ERROR"
)

// FileName is the name of the active log file inside the log directory.
const FileName = "debug.log"

// Dir returns the log directory for the workspace rooted at root.
func Dir(root string) string {
	return filepath.Join(root, ".wsrun", "logs")
}

// Options configures New.
type Options struct {
	// Dir is the directory the log file is written to. Empty logs to Stderr.
	Dir      string
	Level    string
	Rotation RotationConfig
	// Fs is the filesystem the log file lives on. Defaults to the OS.
	Fs afero.Fs
	// Stderr receives logs when Dir is empty. Defaults to os.Stderr.
	Stderr io.Writer
}

// Logger provides structured logging with context propagation.
// It is safe for concurrent use.
type Logger struct {
	logger *slog.Logger
	closer io.Closer
}

// New creates a Logger writing JSON lines at the given level.
func New(opts Options) (*Logger, error) {
	var (
		writer io.Writer
		closer io.Closer
	)

	if opts.Dir != "" {
		fs := opts.Fs
		if fs == nil {
			fs = afero.NewOsFs()
		}
		rw, err := NewRotatingWriter(fs, filepath.Join(opts.Dir, FileName), opts.Rotation)
		if err != nil {
			return nil, err
		}
		writer, closer = rw, rw
	} else {
		writer = opts.Stderr
		if writer == nil {
			writer = os.Stderr
		}
	}

	handler := slog.NewJSONHandler(writer, &slog.HandlerOptions{Level: parseLevel(opts.Level)})
	return &Logger{logger: slog.New(handler), closer: closer}, nil
}

// parseLevel converts a string log level to slog.Level.
// Defaults to INFO if the level string is not recognized.
func parseLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithRun returns a child logger tagging every entry with the run ID.
func (l *Logger) WithRun(runID string) *Logger {
	return l.With("run_id", runID)
}

// WithPackage returns a child logger tagging every entry with a package name.
func (l *Logger) WithPackage(name string) *Logger {
	return l.With("package", name)
}

// WithBatch returns a child logger tagging every entry with a batch index.
func (l *Logger) WithBatch(index int) *Logger {
	return l.With("batch", index)
}

// With returns a child logger with arbitrary key-value attributes.
func (l *Logger) With(args ...any) *Logger {
	if len(args) == 0 {
		return l
	}
	return &Logger{logger: l.logger.With(args...), closer: l.closer}
}

// Slog exposes the underlying *slog.Logger for packages that take one.
func (l *Logger) Slog() *slog.Logger {
	return l.logger
}

// Debug logs a message at DEBUG level with optional key-value pairs.
func (l *Logger) Debug(msg string, args ...any) {
	l.logger.Log(context.Background(), slog.LevelDebug, msg, args...)
}

// Info logs a message at INFO level with optional key-value pairs.
func (l *Logger) Info(msg string, args ...any) {
	l.logger.Log(context.Background(), slog.LevelInfo, msg, args...)
}

// Warn logs a message at WARN level with optional key-value pairs.
func (l *Logger) Warn(msg string, args ...any) {
	l.logger.Log(context.Background(), slog.LevelWarn, msg, args...)
}

// Error logs a message at ERROR level with optional key-value pairs.
func (l *Logger) Error(msg string, args ...any) {
	l.logger.Log(context.Background(), slog.LevelError, msg, args...)
}

// Close flushes and closes the log file. Closing a stderr logger, or any of
// its children after the first Close, is a no-op.
func (l *Logger) Close() error {
	if l.closer == nil {
		return nil
	}
	if err := l.closer.Close(); err != nil {
		return fmt.Errorf("failed to close log: %w", err)
	}
	return nil
}

// NopLogger returns a Logger that discards all log output.
func NopLogger() *Logger {
	return &Logger{logger: slog.New(slog.NewJSONHandler(io.Discard, nil))}
}

// ParseLevel normalizes a level string to one of the Level constants.
// Returns LevelInfo if the level string is not recognized.
func ParseLevel(level string) string {
	switch strings.ToUpper(level) {
	case LevelDebug:
		return LevelDebug
	case LevelWarn:
		return LevelWarn
	case LevelError:
		return LevelError
	default:
		return LevelInfo
	}
}

// ValidLevels returns the list of valid log level strings.
func ValidLevels() []string {
	return []string{LevelDebug, LevelInfo, LevelWarn, LevelError}
}

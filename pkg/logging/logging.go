// Package logging provides structured logging for the application.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger wraps slog.Logger with additional convenience methods.
type Logger struct {
	*slog.Logger
}

// New creates a new Logger with the specified configuration.
func New(level string, jsonFormat bool, w io.Writer) *Logger {
	if w == nil {
		w = os.Stdout
	}

	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: lvl,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			// Format time as ISO 8601
			if a.Key == slog.TimeKey {
				if t, ok := a.Value.Any().(time.Time); ok {
					a.Value = slog.StringValue(t.Format(time.RFC3339))
				}
			}
			return a
		},
	}

	var handler slog.Handler
	if jsonFormat {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return &Logger{slog.New(handler)}
}

// FileOptions controls the rotated log file.
type FileOptions struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Output returns stdout, or stdout tee'd into a size-rotated file when a
// path is configured. The returned closer releases the file.
func Output(opts FileOptions) (io.Writer, io.Closer) {
	if opts.Path == "" {
		return os.Stdout, io.NopCloser(nil)
	}
	file := &lumberjack.Logger{
		Filename:   opts.Path,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
		Compress:   true,
	}
	return io.MultiWriter(os.Stdout, file), file
}

// Discard returns a logger that drops everything. Used by tests and tools.
func Discard() *Logger {
	return New("error", false, io.Discard)
}

// With returns a logger with additional attributes.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{l.Logger.With(args...)}
}

// WithComponent returns a logger tagged with a component name.
func (l *Logger) WithComponent(name string) *Logger {
	return l.With("component", name)
}

// WithError returns a logger with an error attribute.
func (l *Logger) WithError(err error) *Logger {
	return l.With("error", err.Error())
}

// WithURL returns a logger with a URL attribute.
func (l *Logger) WithURL(url string) *Logger {
	return l.With("url", url)
}

// WithDuration returns a logger with a duration attribute.
func (l *Logger) WithDuration(d time.Duration) *Logger {
	return l.With("duration_ms", d.Milliseconds())
}

// RequestLogger creates a logger for HTTP request logging.
func (l *Logger) RequestLogger(method, path, remoteAddr, requestID string) *Logger {
	return l.With(
		"method", method,
		"path", path,
		"remote_addr", remoteAddr,
		"request_id", requestID,
	)
}

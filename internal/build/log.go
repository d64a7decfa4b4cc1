package build

import (
	"io"
	"log/slog"
	"strings"
)

// ParseLogLevel maps a level name to a slog.Level, defaulting to info for
// unknown names.
func ParseLogLevel(name string) slog.Level {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a structured text logger writing to the given
// destinations. When more than one writer is supplied, records are fanned
// out to all of them, which is how console plus rotating-file logging is
// wired.
func NewLogger(level slog.Level, writers ...io.Writer) *slog.Logger {
	var out io.Writer
	switch len(writers) {
	case 0:
		out = io.Discard
	case 1:
		out = writers[0]
	default:
		out = io.MultiWriter(writers...)
	}

	handler := slog.NewTextHandler(out, &slog.HandlerOptions{
		Level: level,
	})

	return slog.New(handler)
}

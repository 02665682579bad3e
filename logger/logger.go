// Package logger builds the structured loggers used by the binaries.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// New logs to stderr, leaving stdout free for the binaries.
func New(level, format string) *slog.Logger {
	return NewWithWriter(os.Stderr, level, format)
}

// NewWithWriter accepts any level name slog understands, such as "debug" or
// "warn+2"; anything else means info. format is "json" or "text".
func NewWithWriter(w io.Writer, level, format string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: lvl}

	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

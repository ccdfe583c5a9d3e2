package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// EnvLevel names the variable that overrides the log level.
const EnvLevel = "CANOPY_LOG_LEVEL"

// New creates the canopy logger. It writes to stderr so stdout stays free
// for rendered trees and JSON lines. The "error" key is shortened to "err".
func New(level slog.Level) *slog.Logger {
	return NewWithWriter(os.Stderr, level)
}

// NewWithWriter is New with an explicit destination.
func NewWithWriter(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == "error" {
				a.Key = "err"
			}
			return a
		},
	}))
}

// NewNop returns a logger that discards everything.
func NewNop() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// ParseLevel accepts debug, info, warn or error (case-insensitive).
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// LevelFromEnv returns the level set in CANOPY_LOG_LEVEL, or fallback.
func LevelFromEnv(fallback slog.Level) slog.Level {
	v, ok := os.LookupEnv(EnvLevel)
	if !ok {
		return fallback
	}
	level, err := ParseLevel(v)
	if err != nil {
		return fallback
	}
	return level
}

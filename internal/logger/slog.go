package logger

import (
	"log/slog"
	"os"
	"strings"
)

// NewLogger builds the daemon's own structured logger. level is one of
// debug, info, warn, error (case-insensitive); anything else means
// info. Colored output goes to stderr so it never mixes with the
// managed process's forwarded stderr semantics on pipes.
func NewLogger(level string) *slog.Logger {
	var lv slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lv = slog.LevelDebug
	case "warn":
		lv = slog.LevelWarn
	case "error":
		lv = slog.LevelError
	default:
		lv = slog.LevelInfo
	}
	h := NewColorTextHandler(os.Stderr, &slog.HandlerOptions{Level: lv}, true)
	return slog.New(h)
}

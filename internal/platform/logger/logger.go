// Package logger builds the process-wide structured logger. Everything logs
// JSON to stdout so the collector can pick it up without sidecar rewriting.
package logger

import (
	"log/slog"
	"os"
	"strings"

	"provenance/internal/platform/config"
)

// New returns a JSON slog logger at the configured level. Unknown level
// strings fall back to info rather than failing startup.
func New(cfg config.ServerConfig) *slog.Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(cfg.LogLevel),
	})
	return slog.New(handler)
}

func parseLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
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

package logger

import (
	"log/slog"
	"os"
)

// New returns a structured JSON logger writing to stdout. Handlers and
// services attach request/file attributes per call site.
func New() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

package app

import (
	"io"
	"log/slog"
)

// newLogger builds the process logger the app hands to the API server and,
// request-scoped, to every graph walk via ctxlog. It never touches the
// global logger, so embedded and test instances stay isolated.
func newLogger(level, format string, outW io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(outW, opts))
	}
	return slog.New(slog.NewTextHandler(outW, opts))
}

// parseLevel maps the configured level name to its slog level, defaulting to
// info for anything unrecognized (the CLI already rejects unknown names).
func parseLevel(name string) slog.Level {
	switch name {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

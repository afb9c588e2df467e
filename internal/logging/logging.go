// Package logging builds the structured logger shared by the server and the worker.
package logging

import (
	"io"
	"log/slog"
	"strings"

	"gorm.io/gorm/logger"
)

// New returns a slog logger writing to w. An empty format selects JSON for
// production and text otherwise.
func New(w io.Writer, level, format string, production bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}

	if format == "" {
		format = "text"
		if production {
			format = "json"
		}
	}

	var handler slog.Handler
	if strings.EqualFold(format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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

// GormLevel maps the application log level onto gorm's SQL logger.
// SQL statements are only traced at debug.
func GormLevel(level string) logger.LogLevel {
	switch ParseLevel(level) {
	case slog.LevelDebug:
		return logger.Info
	case slog.LevelError:
		return logger.Error
	default:
		return logger.Warn
	}
}

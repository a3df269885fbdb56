// Package logging configures the process logger. Components log through
// *slog.Logger; records are written by zerolog as JSON lines or, for local
// runs, colourised console output.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Config holds logging configuration.
type Config struct {
	// Level is the minimum level: debug, info, warn or error. Default info.
	Level string

	// Format is json or console. Default json.
	Format string

	// Output defaults to os.Stderr.
	Output io.Writer
}

// New builds a zerolog-backed slog logger tagged with the service name.
func New(cfg Config, service string) *slog.Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}

	out := cfg.Output
	if strings.EqualFold(cfg.Format, "console") {
		out = zerolog.ConsoleWriter{Out: cfg.Output, TimeFormat: "15:04:05"}
	}

	zl := zerolog.New(out).
		Level(ParseLevel(cfg.Level)).
		With().Timestamp().Str("service", service).Logger()

	return slog.New(NewSlogHandler(zl))
}

// Setup builds the logger with New and installs it as slog.Default.
func Setup(cfg Config, service string) *slog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	logger := New(cfg, service)
	slog.SetDefault(logger)
	return logger
}

// ParseLevel converts a level name to zerolog.Level. Unknown names map to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled", "off":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// Package logging builds the structured loggers used across triggerpoints.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Format represents the log output format.
type Format string

const (
	// FormatText outputs human-readable key=value lines.
	FormatText Format = "text"
	// FormatJSON outputs one JSON object per line.
	FormatJSON Format = "json"
)

// Standard field keys.
const (
	KeyComponent = "component"
	KeyPath      = "path"
	KeyLine      = "line"
	KeyLocation  = "location"
	KeyMode      = "mode"
	KeyColor     = "color"
	KeyOp        = "op"
	KeyReason    = "reason"
	KeyCount     = "count"
)

// Config holds the logging configuration.
type Config struct {
	// Level is the minimum level (debug, info, warn, error). Default: info.
	Level string

	// Format is the output format. Default: text.
	Format Format

	// Output is the destination. Default: os.Stderr.
	Output io.Writer

	// AddSource adds file:line of the log call.
	AddSource bool
}

// DefaultConfig returns a Config with defaults applied.
func DefaultConfig() *Config {
	return &Config{
		Level:  "info",
		Format: FormatText,
		Output: os.Stderr,
	}
}

// New creates a logger from cfg. A nil cfg uses DefaultConfig.
func New(cfg *Config) *slog.Logger {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}

	opts := &slog.HandlerOptions{
		Level:     ParseLevel(cfg.Level),
		AddSource: cfg.AddSource,
	}

	var handler slog.Handler
	switch cfg.Format {
	case FormatJSON:
		handler = slog.NewJSONHandler(out, opts)
	default:
		handler = slog.NewTextHandler(out, opts)
	}
	return slog.New(handler)
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// OrDiscard returns l, or a discarding logger when l is nil.
func OrDiscard(l *slog.Logger) *slog.Logger {
	if l == nil {
		return Discard()
	}
	return l
}

// ParseLevel converts a level name to a slog.Level. Unknown names map to info.
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

// ValidLevel reports whether level is a recognised level name.
func ValidLevel(level string) bool {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug", "info", "warn", "warning", "error":
		return true
	}
	return false
}

// WithComponent returns a logger tagged with a component name.
func WithComponent(logger *slog.Logger, component string) *slog.Logger {
	return OrDiscard(logger).With(KeyComponent, component)
}

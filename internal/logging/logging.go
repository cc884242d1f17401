// Package logging builds the slog loggers used by rawicmp and holds the
// attribute keys its components log with.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Options selects the handler a logger is built on.
type Options struct {
	Level     string // debug, info, warn or error
	Format    string // text or json
	Writer    io.Writer
	AddSource bool
}

// New returns a logger for opts. A nil Writer means stderr, so packet
// reports on stdout stay separate from diagnostics.
func New(opts Options) *slog.Logger {
	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}
	level, _ := ParseLevel(opts.Level)
	hopts := &slog.HandlerOptions{Level: level, AddSource: opts.AddSource}

	if strings.EqualFold(opts.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, hopts))
	}
	return slog.New(slog.NewTextHandler(w, hopts))
}

// NewLogger is New with only level and format set.
func NewLogger(level, format string) *slog.Logger {
	return New(Options{Level: level, Format: format})
}

// ParseLevel maps a level name to its slog.Level. Unknown names yield
// LevelInfo and false.
func ParseLevel(name string) (slog.Level, bool) {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	}
	return slog.LevelInfo, false
}

// Component tags every record from logger with the component name.
func Component(logger *slog.Logger, name string) *slog.Logger {
	if logger == nil {
		logger = NopLogger()
	}
	return logger.With(slog.String(KeyComponent, name))
}

// NopLogger discards everything.
func NopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Attribute keys.
const (
	KeyComponent  = "component"
	KeyError      = "error"
	KeyKind       = "kind"
	KeyLength     = "len"
	KeyICMPType   = "icmp_type"
	KeyICMPCode   = "icmp_code"
	KeySource     = "src"
	KeyDest       = "dst"
	KeyID         = "id"
	KeySeq        = "seq"
	KeyPath       = "path"
	KeyAddress    = "address"
	KeyCount      = "count"
	KeySuppressed = "suppressed"
	KeyDuration   = "duration"
)

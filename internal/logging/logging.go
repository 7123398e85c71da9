package logging

import (
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/muesli/termenv"
)

// Flags holds the CLI flags that affect logging behavior.
type Flags struct {
	Verbose bool
	Quiet   bool
	NoColor bool
	JSON    bool
}

// NewLogger creates a logger writing to w at WarnLevel. Diagnostics go to
// stderr in the CLI so piped stdout stays clean.
func NewLogger(w io.Writer) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		Level: log.WarnLevel,
	})
}

// EnvLevel overrides the level chosen from flags, e.g. "info" for a
// long-running server.
const EnvLevel = "METEOFETCH_LOG_LEVEL"

// Configure adjusts the logger based on CLI flags.
// Quiet takes precedence over verbose when both are set; EnvLevel wins over both.
func Configure(l *log.Logger, f Flags) {
	switch {
	case f.Quiet:
		l.SetLevel(log.ErrorLevel)
	case f.Verbose:
		l.SetLevel(log.DebugLevel)
	default:
		l.SetLevel(log.WarnLevel)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLevel)); v != "" {
		if lvl, err := log.ParseLevel(v); err == nil {
			l.SetLevel(lvl)
		}
	}

	if f.NoColor {
		l.SetColorProfile(termenv.Ascii)
	}

	if f.JSON {
		l.SetFormatter(log.JSONFormatter)
		l.SetReportTimestamp(true)
	}
}

// Component returns a child logger prefixed with the component name, or a
// discarding logger when l is nil.
func Component(l *log.Logger, name string) *log.Logger {
	if l == nil {
		l = NewLogger(io.Discard)
	}
	return l.WithPrefix(name)
}

// Task returns a child logger that tags every line with a task id and,
// when known, the provider being tried.
func Task(l *log.Logger, taskID string, provider string) *log.Logger {
	if provider == "" {
		return l.With("task", taskID)
	}
	return l.With("task", taskID, "provider", provider)
}

package logging

import (
	"context"
	"io"

	"github.com/charmbracelet/log"
)

type contextKey struct{}

// WithLogger returns a new context carrying l.
func WithLogger(ctx context.Context, l *log.Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, l)
}

// FromContext returns the logger stored in ctx, or a discarding WarnLevel
// logger when ctx is nil or carries none. Commands invoked directly in tests
// have no context.
func FromContext(ctx context.Context) *log.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(contextKey{}).(*log.Logger); ok {
			return l
		}
	}
	return NewLogger(io.Discard)
}

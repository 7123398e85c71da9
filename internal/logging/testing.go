package logging

import (
	"bytes"
	"context"

	"github.com/charmbracelet/log"
)

// NewTestLogger returns a logger configured per flags that writes into the
// returned buffer.
func NewTestLogger(flags Flags) (*log.Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	l := NewLogger(buf)
	Configure(l, flags)
	return l, buf
}

// NewTestContext is NewTestLogger with the logger attached to a background context.
func NewTestContext(flags Flags) (context.Context, *bytes.Buffer) {
	l, buf := NewTestLogger(flags)
	return WithLogger(context.Background(), l), buf
}

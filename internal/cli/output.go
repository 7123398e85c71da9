package cli

import (
	"fmt"
	"io"
	"os"
)

// outWriter receives command results. Tests replace it to capture output.
var outWriter io.Writer = os.Stdout

// errWriter receives notices that should not pollute piped results, such as
// quota warnings after a fetch.
var errWriter io.Writer = os.Stderr

func out(format string, a ...any) {
	_, _ = fmt.Fprintf(outWriter, format, a...)
}

func outln(a ...any) {
	_, _ = fmt.Fprintln(outWriter, a...)
}

func noticeln(a ...any) {
	_, _ = fmt.Fprintln(errWriter, a...)
}

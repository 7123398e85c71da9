package cli

import (
	"os"

	"github.com/charmbracelet/log"

	"github.com/joshuadavidthomas/meteofetch/internal/display"
	"github.com/joshuadavidthomas/meteofetch/internal/logging"
)

// newConfiguredLogger creates a stderr logger configured from the root
// flags. Color is dropped when stderr is redirected.
func newConfiguredLogger() *log.Logger {
	l := logging.NewLogger(os.Stderr)
	logging.Configure(l, logging.Flags{
		Verbose: verbose,
		Quiet:   quiet,
		NoColor: noColor || !display.IsTTY(os.Stderr),
		JSON:    jsonOutput,
	})
	return l
}

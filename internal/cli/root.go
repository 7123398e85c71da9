package cli

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/joshuadavidthomas/meteofetch/internal/config"
	"github.com/joshuadavidthomas/meteofetch/internal/display"
	"github.com/joshuadavidthomas/meteofetch/internal/logging"
)

// version is injected at build time via -ldflags.
var version = "dev"

var (
	jsonOutput bool
	noColor    bool
	verbose    bool
	quiet      bool
)

var rootCmd = &cobra.Command{
	Use:          "meteofetch",
	Short:        "Fetch historical daily weather from multiple providers",
	Long:         "Fetches daily weather records for a point and date range from Open-Meteo and Meteostat, routing between providers by cost and quota and falling back when one fails.",
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose && quiet {
			verbose = false
		}
		l := newConfiguredLogger()
		ctx := logging.WithLogger(cmd.Context(), l)
		cmd.SetContext(ctx)

		// Load config from disk so malformed files surface a warning.
		if _, err := config.Init(); err != nil {
			l.Warn("config file is malformed, using defaults", "err", err)
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if v, _ := cmd.Flags().GetBool("version"); v {
			out("meteofetch %s\n", version)
			return nil
		}
		return cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&jsonOutput, "json", "j", false, "Output as JSON")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show detailed output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Minimal output")
	rootCmd.Flags().Bool("version", false, "Show version and exit")

	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(usageCmd)
	rootCmd.AddCommand(providersCmd)
	rootCmd.AddCommand(routeCmd)
	rootCmd.AddCommand(keyCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(locationsCmd)
	rootCmd.AddCommand(serveCmd)
}

// ExecuteContext runs the root command with the given context.
// Commands access it via cmd.Context().
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func isTerminal() bool {
	return display.IsTTY(os.Stdout)
}

func tableOptions(title string) display.TableOptions {
	return display.TableOptions{Title: title, NoColor: noColor, Width: display.TerminalWidth()}
}

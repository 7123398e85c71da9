package cli

import (
	"github.com/spf13/cobra"

	"github.com/joshuadavidthomas/meteofetch/internal/config"
	"github.com/joshuadavidthomas/meteofetch/internal/display"
	"github.com/joshuadavidthomas/meteofetch/internal/logging"
	"github.com/joshuadavidthomas/meteofetch/internal/models"
	"github.com/joshuadavidthomas/meteofetch/internal/routing"
)

var routeCmd = &cobra.Command{
	Use:   "route",
	Short: "Show the provider chain a fetch would use",
	Long: `Shows the order in which providers would be tried for a use case, given
current credentials and this month's usage. Providers that cannot be used
are listed with the reason.`,
	Example: `  meteofetch route --use-case historical-deep
  meteofetch route --provider meteostat`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := loadState(logging.FromContext(cmd.Context()))
		if err != nil {
			return err
		}

		ucStr, _ := cmd.Flags().GetString("use-case")
		uc, err := models.ParseUseCase(ucStr)
		if err != nil {
			return err
		}
		choice, err := routeChoice(cmd, st.cfg)
		if err != nil {
			return err
		}

		sel := st.router.Select(uc, choice)

		if jsonOutput {
			return display.OutputJSON(outWriter, sel)
		}
		if quiet {
			for _, id := range sel.Chain {
				outln(id)
			}
			return nil
		}

		if sel.Rejected != nil {
			out("⚠ %s cannot be used: %s\n\n", sel.Rejected.Provider, sel.Rejected.Reason)
		}
		if sel.Empty() {
			outln("No provider is available for " + string(uc))
		}
		ft := routing.FormatSelectionRows(sel, st.catalog)
		opts := tableOptions("Route for " + string(uc))
		opts.RowStyles = toDisplayStyles(ft.Styles)
		outln(display.NewTableWithOptions(ft.Headers, ft.Rows, opts))
		return nil
	},
}

func init() {
	routeCmd.Flags().StringP("use-case", "u", "", "Routing use case: "+useCaseList())
	routeCmd.Flags().StringP("provider", "p", "", "Explicit provider choice to check; defaults to config")
}

func routeChoice(cmd *cobra.Command, cfg config.Config) (models.ProviderChoice, error) {
	if cmd.Flags().Changed("provider") {
		p, _ := cmd.Flags().GetString("provider")
		return models.ParseProviderChoice(p)
	}
	return cfg.DefaultChoice()
}

func toDisplayStyles(styles []routing.RowStyle) []display.RowStyle {
	out := make([]display.RowStyle, len(styles))
	for i, s := range styles {
		switch s {
		case routing.RowBold:
			out[i] = display.RowBold
		case routing.RowDim:
			out[i] = display.RowDim
		default:
			out[i] = display.RowNormal
		}
	}
	return out
}

package cli

import (
	"github.com/spf13/cobra"

	"github.com/joshuadavidthomas/meteofetch/internal/display"
	"github.com/joshuadavidthomas/meteofetch/internal/logging"
)

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "List weather providers with cost, quota and availability",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := loadState(logging.FromContext(cmd.Context()))
		if err != nil {
			return err
		}

		var rows []display.ProviderRow
		var entries []display.ProviderJSON
		for _, d := range st.catalog.All() {
			a := st.ledger.Check(d.ID)
			rows = append(rows, display.ProviderRow{Descriptor: d, Available: a.Available, Reason: a.Reason})
			entries = append(entries, display.ProviderJSON{Descriptor: d, Available: a.Available, Reason: a.Reason})
		}

		if jsonOutput {
			return display.OutputJSON(outWriter, entries)
		}
		if quiet {
			for _, r := range rows {
				status := "available"
				if !r.Available {
					status = "unavailable"
				}
				out("%s %s\n", r.Descriptor.ID, status)
			}
			return nil
		}
		outln(display.RenderProviders(rows, tableOptions("Providers")))
		return nil
	},
}

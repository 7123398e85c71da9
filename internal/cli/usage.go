package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joshuadavidthomas/meteofetch/internal/display"
	"github.com/joshuadavidthomas/meteofetch/internal/logging"
	"github.com/joshuadavidthomas/meteofetch/internal/models"
	"github.com/joshuadavidthomas/meteofetch/internal/prompt"
	"github.com/joshuadavidthomas/meteofetch/internal/usage"
)

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Show this month's request counts and quota headroom per provider",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := loadState(logging.FromContext(cmd.Context()))
		if err != nil {
			return err
		}

		var summaries []usage.Summary
		for _, id := range st.catalog.IDs() {
			if s, ok := st.ledger.Summary(id); ok {
				summaries = append(summaries, s)
			}
		}

		if jsonOutput {
			return display.OutputUsageJSON(outWriter, summaries)
		}
		if quiet {
			for _, s := range summaries {
				out("%s %d %s\n", s.Provider, s.RequestsThisMonth, s.Level)
			}
			return nil
		}
		_, _ = fmt.Fprint(outWriter, display.RenderUsage(summaries, noColor))
		return nil
	},
}

var usageResetCmd = &cobra.Command{
	Use:   "reset <provider>",
	Short: "Zero a provider's counters for the current month",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := models.ProviderID(args[0])
		st, err := loadState(logging.FromContext(cmd.Context()))
		if err != nil {
			return err
		}
		if !st.catalog.Has(id) {
			return fmt.Errorf("unknown provider %q", id)
		}

		confirm, _ := cmd.Flags().GetBool("confirm")
		if !confirm && !jsonOutput {
			ok, err := prompt.Default.Confirm(prompt.ConfirmConfig{
				Title:       fmt.Sprintf("Reset %s usage for this month?", id),
				Description: "Counters only track local requests; the provider's own quota is unaffected.",
			})
			if err != nil {
				return err
			}
			if !ok {
				outln("Reset cancelled")
				return nil
			}
		}

		if err := st.ledger.Reset(id); err != nil {
			return err
		}
		if err := st.ledger.Save(); err != nil {
			return err
		}
		if jsonOutput {
			return display.OutputJSON(outWriter, map[string]any{"provider": id, "reset": true})
		}
		out("✓ Usage reset for %s\n", id)
		return nil
	},
}

func init() {
	usageResetCmd.Flags().BoolP("confirm", "y", false, "Skip confirmation")
	usageCmd.AddCommand(usageResetCmd)
}

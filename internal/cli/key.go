package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joshuadavidthomas/meteofetch/internal/catalog"
	"github.com/joshuadavidthomas/meteofetch/internal/config"
	"github.com/joshuadavidthomas/meteofetch/internal/display"
	"github.com/joshuadavidthomas/meteofetch/internal/models"
	"github.com/joshuadavidthomas/meteofetch/internal/prompt"
)

var keyCmd = &cobra.Command{
	Use:   "key",
	Short: "Manage provider API keys",
	RunE: func(cmd *cobra.Command, args []string) error {
		return displayAllCredentialStatus()
	},
}

func init() {
	for _, d := range catalog.Default().All() {
		if d.RequiresKey {
			keyCmd.AddCommand(makeKeyProviderCmd(d))
		}
	}
}

type keyStatusJSON struct {
	Provider models.ProviderID `json:"provider"`
	config.CredentialStatus
}

func displayAllCredentialStatus() error {
	cat := catalog.Default()
	creds := config.NewCredentials(cat)

	var entries []keyStatusJSON
	for _, d := range cat.All() {
		if d.RequiresKey {
			entries = append(entries, keyStatusJSON{Provider: d.ID, CredentialStatus: creds.Status(d.ID)})
		}
	}

	if jsonOutput {
		return display.OutputJSON(outWriter, entries)
	}

	if quiet {
		for _, e := range entries {
			status := "not configured"
			if e.Valid {
				status = "configured"
			}
			out("%s: %s\n", e.Provider, status)
		}
		return nil
	}

	var rows [][]string
	for _, e := range entries {
		status := "✗ Not configured"
		source := "—"
		switch {
		case e.Valid:
			status = "✓ Configured"
			source = sourceToLabel(e.Source)
		case e.Present:
			status = "✗ " + e.Problem
			source = sourceToLabel(e.Source)
		}
		rows = append(rows, []string{string(e.Provider), status, source})
	}

	outln(display.NewTableWithOptions([]string{"Provider", "Status", "Source"}, rows, tableOptions("API keys")))
	outln()
	outln("Set a key with:")
	outln("  meteofetch key <provider> set")
	return nil
}

func sourceToLabel(source string) string {
	switch source {
	case config.SourceEnv:
		return "environment"
	case config.SourceDotenv:
		return ".env file"
	case config.SourceStored:
		return "meteofetch"
	case config.SourceKeychain:
		return "keychain"
	default:
		return source
	}
}

func makeKeyProviderCmd(d catalog.Descriptor) *cobra.Command {
	id := d.ID

	provCmd := &cobra.Command{
		Use:   string(id),
		Short: fmt.Sprintf("Manage the %s API key", d.Label),
		RunE: func(cmd *cobra.Command, args []string) error {
			st := config.NewCredentials(catalog.MustNew(d)).Status(id)
			path := config.CredentialPath(id)

			if jsonOutput {
				return display.OutputJSON(outWriter, struct {
					keyStatusJSON
					Path string `json:"path"`
				}{keyStatusJSON{Provider: id, CredentialStatus: st}, path})
			}

			switch {
			case st.Valid:
				out("✓ %s API key configured (%s)\n", d.Label, sourceToLabel(st.Source))
				if st.Source == config.SourceStored {
					out("  Location: %s\n", path)
				}
			case st.Present:
				out("✗ %s API key from %s is invalid: %s\n", d.Label, sourceToLabel(st.Source), st.Problem)
			default:
				out("✗ %s API key not configured\n", d.Label)
				if env := config.ProviderEnvVars[id]; env != "" {
					out("\nSet %s or run 'meteofetch key %s set'\n", env, id)
				}
			}
			return nil
		},
	}

	setCmd := &cobra.Command{
		Use:   "set [value]",
		Short: "Store an API key",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var value string
			if len(args) > 0 {
				value = args[0]
			} else {
				var err error
				value, err = prompt.Default.Input(prompt.InputConfig{
					Title:       fmt.Sprintf("%s API key", d.Label),
					Description: d.Homepage,
					Placeholder: "paste key here",
					Secret:      true,
					Validate:    func(s string) error { return config.ValidateAPIKey(id, s) },
				})
				if err != nil {
					return err
				}
			}

			if err := config.StoreAPIKey(id, strings.TrimSpace(value)); err != nil {
				return fmt.Errorf("error saving API key: %w", err)
			}
			out("✓ API key saved for %s\n", id)
			return nil
		},
	}

	deleteCmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete the stored API key",
		RunE: func(cmd *cobra.Command, args []string) error {
			force, _ := cmd.Flags().GetBool("force")
			if !force {
				ok, err := prompt.Default.Confirm(prompt.ConfirmConfig{
					Title: fmt.Sprintf("Delete the stored %s API key?", d.Label),
				})
				if err != nil {
					return err
				}
				if !ok {
					return nil
				}
			}

			if config.DeleteCredential(config.CredentialPath(id)) {
				out("✓ Deleted API key for %s\n", id)
			} else {
				out("No stored API key for %s\n", id)
			}
			return nil
		},
	}
	deleteCmd.Flags().BoolP("force", "f", false, "Skip confirmation")

	provCmd.AddCommand(setCmd)
	provCmd.AddCommand(deleteCmd)
	return provCmd
}

package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/joshuadavidthomas/meteofetch/internal/catalog"
	"github.com/joshuadavidthomas/meteofetch/internal/config"
	"github.com/joshuadavidthomas/meteofetch/internal/display"
	"github.com/joshuadavidthomas/meteofetch/internal/models"
	"github.com/joshuadavidthomas/meteofetch/internal/prompt"
)

type initStatusJSON struct {
	ConfigFile      string                                        `json:"config_file"`
	ConfigExists    bool                                          `json:"config_exists"`
	DefaultProvider string                                        `json:"default_provider"`
	Credentials     map[models.ProviderID]config.CredentialStatus `json:"credentials"`
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Run first-time setup wizard",
	RunE: func(cmd *cobra.Command, args []string) error {
		if jsonOutput {
			cat := catalog.Default()
			creds := config.NewCredentials(cat)
			status := initStatusJSON{
				ConfigFile:      config.ConfigFile(),
				ConfigExists:    fileExists(config.ConfigFile()),
				DefaultProvider: config.Get().Routing.DefaultProvider,
				Credentials:     make(map[models.ProviderID]config.CredentialStatus),
			}
			for _, id := range cat.IDs() {
				status.Credentials[id] = creds.Status(id)
			}
			return display.OutputJSON(outWriter, status)
		}

		if quiet {
			outln("Use 'meteofetch config edit' and 'meteofetch key' to configure")
			return nil
		}
		return interactiveWizard()
	},
}

func interactiveWizard() error {
	cat := catalog.Default()
	cfg := config.Get()

	outln()
	outln("  Welcome to meteofetch!")
	outln()
	outln("  Historical daily weather from Open-Meteo and Meteostat.")
	outln()

	labels := make(map[models.ProviderID]string)
	for _, d := range cat.All() {
		labels[d.ID] = fmt.Sprintf("%s (%s)", d.Label, d.Description)
	}
	options := append([]prompt.SelectOption{{Label: "Automatic (cheapest available)", Value: "auto"}},
		prompt.ProviderOptions(labels)...)

	choice, err := prompt.Default.Select(prompt.SelectConfig{
		Title:   "Default provider",
		Options: options,
		Default: cfg.Routing.DefaultProvider,
	})
	if err != nil {
		return err
	}
	if _, err := models.ParseProviderChoice(choice); err != nil {
		return err
	}
	cfg.Routing.DefaultProvider = choice

	creds := config.NewCredentials(cat)
	for _, d := range cat.All() {
		if !d.RequiresKey || creds.Status(d.ID).Valid {
			continue
		}
		ok, err := prompt.Default.Confirm(prompt.ConfirmConfig{
			Title:       fmt.Sprintf("Configure a %s API key now?", d.Label),
			Description: d.Homepage,
		})
		if err != nil {
			return err
		}
		if !ok {
			out("  Skipped %s. Set it later with 'meteofetch key %s set'\n", d.Label, d.ID)
			continue
		}
		id := d.ID
		key, err := prompt.Default.Input(prompt.InputConfig{
			Title:    fmt.Sprintf("%s API key", d.Label),
			Secret:   true,
			Validate: func(s string) error { return config.ValidateAPIKey(id, s) },
		})
		if err != nil {
			return err
		}
		if err := config.StoreAPIKey(id, key); err != nil {
			out("  ✗ %s: %v\n", d.Label, err)
			continue
		}
		out("  ✓ %s API key saved\n", d.Label)
	}

	if err := config.Save(cfg, ""); err != nil {
		return err
	}
	if _, err := config.Reload(); err != nil {
		return err
	}

	outln()
	out("  ✓ Configuration saved to %s\n", config.ConfigFile())
	outln()
	outln("  Try: meteofetch fetch 47.4979,19.0402 --days 7")
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

package cli

import (
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/joshuadavidthomas/meteofetch/internal/catalog"
	"github.com/joshuadavidthomas/meteofetch/internal/config"
	"github.com/joshuadavidthomas/meteofetch/internal/display"
	"github.com/joshuadavidthomas/meteofetch/internal/models"
	"github.com/joshuadavidthomas/meteofetch/internal/prompt"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration settings",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Display current settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Get()
		cfgPath := config.ConfigFile()

		if jsonOutput {
			return display.OutputJSON(outWriter, struct {
				config.Config
				Path string `json:"path"`
			}{cfg, cfgPath})
		}

		if quiet {
			outln(cfgPath)
			return nil
		}

		out("Config: %s\n\n", cfgPath)
		_ = toml.NewEncoder(outWriter).Encode(cfg)

		cat, err := cfg.Catalog(catalog.Default())
		if err != nil {
			return err
		}
		rows := make([][]string, 0, len(cat.All()))
		for _, d := range cat.All() {
			rows = append(rows, []string{
				string(d.ID),
				display.FormatQuota(d.MonthlyQuota),
				display.FormatCost(d.CostPerRequest),
				d.MinInterval.String(),
			})
		}
		outln()
		outln(display.NewTableWithOptions([]string{"Provider", "Monthly quota", "Cost/request", "Min interval"}, rows, tableOptions("Effective providers")))
		return nil
	},
}

// configSetters maps dotted keys to functions that parse and apply a value.
var configSetters = map[string]func(cfg *config.Config, v string) error{
	"fetch.timeout": func(cfg *config.Config, v string) error {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 {
			return fmt.Errorf("timeout must be a positive number of seconds")
		}
		cfg.Fetch.Timeout = f
		return nil
	},
	"fetch.max_concurrent": func(cfg *config.Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return fmt.Errorf("max_concurrent must be at least 1")
		}
		cfg.Fetch.MaxConcurrent = n
		return nil
	},
	"routing.default_provider": func(cfg *config.Config, v string) error {
		if _, err := models.ParseProviderChoice(v); err != nil {
			return err
		}
		cfg.Routing.DefaultProvider = v
		return nil
	},
	"server.addr": func(cfg *config.Config, v string) error {
		cfg.Server.Addr = v
		return nil
	},
	"geocoding.online": func(cfg *config.Config, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("online must be true or false")
		}
		cfg.Geocoding.Online = b
		return nil
	},
}

// setConfigValue applies key=value to cfg. Besides configSetters it accepts
// routing.use_cases.<use case> and providers.<id>.enabled.
func setConfigValue(cfg *config.Config, key, value string) error {
	if set, ok := configSetters[key]; ok {
		return set(cfg, value)
	}

	parts := strings.Split(key, ".")
	switch {
	case len(parts) == 3 && parts[0] == "routing" && parts[1] == "use_cases":
		uc, err := models.ParseUseCase(parts[2])
		if err != nil {
			return err
		}
		if !models.ProviderID(value).Known() {
			return fmt.Errorf("unknown provider %q", value)
		}
		cfg.Routing.UseCases[string(uc)] = value
		return nil
	case len(parts) == 3 && parts[0] == "providers" && parts[2] == "enabled":
		if !models.ProviderID(parts[1]).Known() {
			return fmt.Errorf("unknown provider %q", parts[1])
		}
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("enabled must be true or false")
		}
		pc := cfg.Providers[parts[1]]
		pc.Enabled = &b
		cfg.Providers[parts[1]] = pc
		return nil
	}
	return fmt.Errorf("unknown config key %q", key)
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Change one setting",
	Example: `  meteofetch config set routing.default_provider meteostat
  meteofetch config set routing.use_cases.historical-deep meteostat
  meteofetch config set providers.meteostat.enabled false`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load("")
		if err != nil {
			return err
		}
		if err := setConfigValue(&cfg, args[0], strings.TrimSpace(args[1])); err != nil {
			return err
		}
		if err := config.Save(cfg, ""); err != nil {
			return err
		}
		if _, err := config.Reload(); err != nil {
			return err
		}

		if jsonOutput {
			return display.OutputJSON(outWriter, map[string]string{"key": args[0], "value": args[1]})
		}
		out("✓ %s = %s\n", args[0], args[1])
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show file and directory paths",
	RunE: func(cmd *cobra.Command, args []string) error {
		paths := map[string]string{
			"config_dir":      config.ConfigDir(),
			"config_file":     config.ConfigFile(),
			"data_dir":        config.DataDir(),
			"usage_file":      config.UsageFile(),
			"locations_file":  config.LocationsFile(),
			"credentials_dir": config.CredentialsDir(),
		}
		if jsonOutput {
			return display.OutputJSON(outWriter, paths)
		}
		if quiet {
			outln(config.ConfigDir())
			return nil
		}
		out("Config dir:    %s\n", paths["config_dir"])
		out("Config file:   %s\n", paths["config_file"])
		out("Data dir:      %s\n", paths["data_dir"])
		out("Usage ledger:  %s\n", paths["usage_file"])
		out("Locations:     %s\n", paths["locations_file"])
		out("Credentials:   %s\n", paths["credentials_dir"])
		return nil
	},
}

var configResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset configuration to defaults",
	RunE: func(cmd *cobra.Command, args []string) error {
		confirm, _ := cmd.Flags().GetBool("confirm")
		if !confirm && !jsonOutput {
			ok, err := prompt.Default.Confirm(prompt.ConfirmConfig{
				Title: "Reset configuration to defaults?",
			})
			if err != nil {
				return err
			}
			if !ok {
				outln("Reset cancelled")
				return nil
			}
		}

		if err := os.Remove(config.ConfigFile()); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("resetting config: %w", err)
		}
		if _, err := config.Reload(); err != nil {
			return err
		}

		if jsonOutput {
			return display.OutputJSON(outWriter, map[string]any{"success": true, "reset": true})
		}
		outln("✓ Configuration reset to defaults")
		return nil
	},
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Open configuration in editor",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfgPath := config.ConfigFile()
		if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
			if err := config.Save(config.DefaultConfig(), cfgPath); err != nil {
				return err
			}
		}

		editor := os.Getenv("EDITOR")
		if editor == "" {
			editor = "vi"
		}

		c := exec.Command(editor, cfgPath)
		c.Stdin = os.Stdin
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr
		return c.Run()
	},
}

func init() {
	configResetCmd.Flags().BoolP("confirm", "y", false, "Skip confirmation")

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configResetCmd)
	configCmd.AddCommand(configEditCmd)
	configCmd.AddCommand(configSetCmd)
}

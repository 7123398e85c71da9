package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joshuadavidthomas/meteofetch/internal/config"
	"github.com/joshuadavidthomas/meteofetch/internal/display"
	"github.com/joshuadavidthomas/meteofetch/internal/geocode"
	"github.com/joshuadavidthomas/meteofetch/internal/prompt"
)

var locationsCmd = &cobra.Command{
	Use:     "locations",
	Aliases: []string{"loc"},
	Short:   "Manage saved locations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return locationsListCmd.RunE(cmd, args)
	},
}

var locationsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved locations",
	RunE: func(cmd *cobra.Command, args []string) error {
		lf, err := locationsFile().Load()
		if err != nil {
			return err
		}
		names, _ := locationsFile().Names()

		if jsonOutput {
			return display.OutputJSON(outWriter, lf.Locations)
		}
		if quiet {
			for _, n := range names {
				outln(n)
			}
			return nil
		}
		if len(names) == 0 {
			outln("No saved locations. Add one with 'meteofetch locations add <name> --lat <lat> --lon <lon>'")
			return nil
		}

		rows := make([][]string, 0, len(names))
		for _, n := range names {
			c := lf.Locations[n]
			rows = append(rows, []string{
				n,
				fmt.Sprintf("%.4f", c.Latitude),
				fmt.Sprintf("%.4f", c.Longitude),
				strings.Trim(c.Region+", "+c.Country, ", "),
			})
		}
		outln(display.NewTableWithOptions([]string{"Name", "Latitude", "Longitude", "Region"}, rows, tableOptions("Saved locations")))
		return nil
	},
}

var locationsAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Save a named location",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := prompt.ValidateNotEmpty(args[0]); err != nil {
			return fmt.Errorf("location name: %w", err)
		}
		name := strings.TrimSpace(args[0])
		lat, err := coordinateFlag(cmd, "lat", "Latitude", -90, 90)
		if err != nil {
			return err
		}
		lon, err := coordinateFlag(cmd, "lon", "Longitude", -180, 180)
		if err != nil {
			return err
		}

		c := geocode.Coordinates{Name: name, Latitude: lat, Longitude: lon}
		c.Country, _ = cmd.Flags().GetString("country")
		c.Region, _ = cmd.Flags().GetString("region")
		if err := locationsFile().Save(name, c); err != nil {
			return err
		}

		if jsonOutput {
			return display.OutputJSON(outWriter, c)
		}
		out("✓ Saved %s\n", c)
		return nil
	},
}

var locationsSearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search locations online",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		results, err := newSearcher().Search(cmd.Context(), strings.Join(args, " "))
		if err != nil {
			return err
		}

		if jsonOutput {
			return display.OutputJSON(outWriter, results)
		}
		if quiet {
			for _, c := range results {
				out("%s\t%.4f\t%.4f\n", c.Name, c.Latitude, c.Longitude)
			}
			return nil
		}
		if len(results) == 0 {
			outln("No matches")
			return nil
		}

		rows := make([][]string, 0, len(results))
		for _, c := range results {
			rows = append(rows, []string{
				c.Name,
				strings.Trim(c.Region+", "+c.Country, ", "),
				fmt.Sprintf("%.4f", c.Latitude),
				fmt.Sprintf("%.4f", c.Longitude),
				c.Timezone,
			})
		}
		outln(display.NewTableWithOptions([]string{"Name", "Region", "Latitude", "Longitude", "Timezone"}, rows, tableOptions("Matches")))
		return nil
	},
}

// coordinateFlag reads a coordinate flag, prompting for it on a terminal
// when it was not given.
func coordinateFlag(cmd *cobra.Command, name, title string, lo, hi float64) (float64, error) {
	if !cmd.Flags().Changed(name) {
		if !isTerminal() || jsonOutput {
			return 0, fmt.Errorf("--%s is required", name)
		}
		v, err := prompt.Default.Input(prompt.InputConfig{
			Title:    title,
			Validate: prompt.ValidateRange(lo, hi),
		})
		if err != nil {
			return 0, err
		}
		return strconv.ParseFloat(strings.TrimSpace(v), 64)
	}
	v, _ := cmd.Flags().GetFloat64(name)
	if v < lo || v > hi {
		return 0, fmt.Errorf("--%s must be between %g and %g", name, lo, hi)
	}
	return v, nil
}

func locationsFile() geocode.FileResolver {
	return geocode.FileResolver{Path: config.LocationsFile()}
}

func init() {
	locationsAddCmd.Flags().Float64("lat", 0, "Latitude in decimal degrees")
	locationsAddCmd.Flags().Float64("lon", 0, "Longitude in decimal degrees")
	locationsAddCmd.Flags().String("country", "", "Country, for display")
	locationsAddCmd.Flags().String("region", "", "Region, for display")

	locationsCmd.AddCommand(locationsListCmd)
	locationsCmd.AddCommand(locationsAddCmd)
	locationsCmd.AddCommand(locationsSearchCmd)
}

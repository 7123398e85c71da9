package display

import (
	"fmt"
	"strings"

	"github.com/joshuadavidthomas/meteofetch/internal/catalog"
	"github.com/joshuadavidthomas/meteofetch/internal/usage"
)

const barWidth = 20

// RenderUsage renders one block per provider with a quota bar.
func RenderUsage(summaries []usage.Summary, noColor bool) string {
	var b strings.Builder
	for i, s := range summaries {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(styled(string(s.Provider), titleStyle, noColor))
		b.WriteString(" ")
		b.WriteString(styled(s.Month, dimStyle, noColor))
		b.WriteString("\n")

		if s.Unlimited {
			fmt.Fprintf(&b, "  %d requests (unlimited)\n", s.RequestsThisMonth)
		} else {
			bar := RenderBar(int(s.PercentUsed), barWidth, LevelColor(s.Level))
			if noColor {
				bar = plainBar(int(s.PercentUsed), barWidth)
			}
			fmt.Fprintf(&b, "  %s %3.0f%%  %d/%d requests, %d left, %d days to reset\n",
				bar, s.PercentUsed, s.RequestsThisMonth, s.Quota, s.Remaining, s.DaysLeft)
		}
		if s.EstimatedCostUSD > 0 {
			fmt.Fprintf(&b, "  est. cost %s\n", FormatCost(s.EstimatedCostUSD))
		}
		if s.Level > 0 {
			b.WriteString("  ")
			b.WriteString(styled("level: "+s.Level.String(), colorStyle(LevelColor(s.Level)), noColor))
			b.WriteString("\n")
		}
		if s.CredentialNote != "" {
			b.WriteString(styled("  credential: "+s.CredentialNote, dimStyle, noColor))
			b.WriteString("\n")
		}
	}
	return b.String()
}

func plainBar(utilization, width int) string {
	filled := max(0, min(utilization*width/100, width))
	return strings.Repeat("#", filled) + strings.Repeat("-", width-filled)
}

// ProviderRow is a descriptor plus the ledger's availability verdict.
type ProviderRow struct {
	Descriptor catalog.Descriptor
	Available  bool
	Reason     string
}

// RenderProviders renders the catalog as a table. Unavailable providers are
// dimmed.
func RenderProviders(rows []ProviderRow, opts TableOptions) string {
	headers := []string{"Provider", "Cost/request", "Monthly quota", "Max days", "Key", "Status"}
	cells := make([][]string, 0, len(rows))
	styles := make([]RowStyle, 0, len(rows))
	for _, r := range rows {
		d := r.Descriptor
		key := "no"
		if d.RequiresKey {
			key = "yes"
		}
		status := "available"
		if !r.Available {
			status = r.Reason
		}
		cells = append(cells, []string{
			fmt.Sprintf("%s (%s)", d.Label, d.ID),
			FormatCost(d.CostPerRequest),
			FormatQuota(d.MonthlyQuota),
			fmt.Sprintf("%d", d.MaxDaysPerRequest),
			key,
			status,
		})
		if r.Available {
			styles = append(styles, RowNormal)
		} else {
			styles = append(styles, RowDim)
		}
	}
	opts.RowStyles = styles
	return NewTableWithOptions(headers, cells, opts)
}

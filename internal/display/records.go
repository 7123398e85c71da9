package display

import (
	"fmt"
	"strings"

	"github.com/joshuadavidthomas/meteofetch/internal/fetch"
	"github.com/joshuadavidthomas/meteofetch/internal/models"
)

var recordHeaders = []string{"Date", "Max °C", "Min °C", "Mean °C", "Precip mm", "Wind km/h", "Gust km/h", "Dir °", "Gust source"}

// FormatRecordRows renders daily records as table rows. Days without any
// measurement are dimmed.
func FormatRecordRows(records []models.DailyRecord) ([][]string, []RowStyle) {
	rows := make([][]string, 0, len(records))
	styles := make([]RowStyle, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{
			r.Date.String(),
			FormatValue(r.TempMax, 1),
			FormatValue(r.TempMin, 1),
			FormatValue(r.TempMean, 1),
			FormatValue(r.PrecipSum, 1),
			FormatValue(r.WindSpeedMax, 1),
			FormatValue(r.WindGustMax, 1),
			FormatValue(r.WindDirection, 0),
			string(r.GustProvenance),
		})
		if r.HasData() {
			styles = append(styles, RowNormal)
		} else {
			styles = append(styles, RowDim)
		}
	}
	return rows, styles
}

// RenderOutcome renders one task's result: a header line, any fallback or
// failure detail, and the records table on success.
func RenderOutcome(o fetch.Outcome, opts TableOptions) string {
	var b strings.Builder
	b.WriteString(outcomeHeader(o, opts.NoColor))
	b.WriteString("\n")

	if o.Fallback {
		b.WriteString(styled(fmt.Sprintf("  fell back from %s to %s", o.Requested, o.Provider), dimStyle, opts.NoColor))
		b.WriteString("\n")
	}
	if o.Rejected != nil {
		b.WriteString(styled(fmt.Sprintf("  %s rejected: %s", o.Rejected.Provider, o.Rejected.Reason), yellowStyle, opts.NoColor))
		b.WriteString("\n")
	}

	if !o.Succeeded() {
		for _, a := range o.Attempts {
			fmt.Fprintf(&b, "  %s: %s\n", a.Provider, a.Reason)
		}
		if o.Error != "" {
			b.WriteString(styled("  "+o.Error, redStyle, opts.NoColor))
			b.WriteString("\n")
		}
		return b.String()
	}

	rows, styles := FormatRecordRows(o.Records)
	opts.RowStyles = styles
	b.WriteString(NewTableWithOptions(recordHeaders, rows, opts))
	b.WriteString("\n")
	if o.Coverage != nil {
		fmt.Fprintf(&b, "%d of %d days with data\n", o.Coverage.WithData, o.Coverage.Days)
	}
	return b.String()
}

func outcomeHeader(o fetch.Outcome, noColor bool) string {
	req := o.Request
	where := req.Label
	if where == "" {
		where = fmt.Sprintf("%.4f, %.4f", req.Latitude, req.Longitude)
	}
	title := fmt.Sprintf("%s  %s → %s", where, req.Start, req.End)

	var status string
	switch o.Status {
	case fetch.StatusSucceeded:
		status = styled("✓ "+string(o.Provider), greenStyle, noColor)
	case fetch.StatusCancelled:
		status = styled("cancelled", yellowStyle, noColor)
	default:
		status = styled("✗ failed", redStyle, noColor)
	}
	return styled(title, titleStyle, noColor) + "  " + status
}

func styled(s string, st interface{ Render(...string) string }, noColor bool) string {
	if noColor {
		return s
	}
	return st.Render(s)
}

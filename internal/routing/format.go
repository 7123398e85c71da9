package routing

import (
	"fmt"

	"github.com/joshuadavidthomas/meteofetch/internal/catalog"
)

// RowStyle controls per-row styling in the formatted table output.
type RowStyle int

const (
	RowNormal RowStyle = iota
	RowBold
	RowDim
)

// FormattedTable holds pre-formatted rows, headers and styles for a
// selection table.
type FormattedTable struct {
	Headers []string
	Rows    [][]string
	Styles  []RowStyle
}

// FormatSelectionRows renders a selection as table rows: the chain in try
// order (the first in bold), then skipped providers dimmed.
func FormatSelectionRows(sel Selection, cat *catalog.Catalog) FormattedTable {
	var rows [][]string
	var styles []RowStyle

	for i, id := range sel.Chain {
		d, _ := cat.Get(id)
		note := ""
		if id == sel.Preferred {
			note = "preferred"
		}
		rows = append(rows, []string{
			fmt.Sprintf("%d", i+1),
			d.Label,
			formatCost(d.CostPerRequest),
			formatQuota(d.MonthlyQuota),
			note,
		})
		if i == 0 {
			styles = append(styles, RowBold)
		} else {
			styles = append(styles, RowNormal)
		}
	}

	for _, s := range sel.Skipped {
		d, _ := cat.Get(s.Provider)
		rows = append(rows, []string{"–", d.Label, formatCost(d.CostPerRequest), formatQuota(d.MonthlyQuota), s.Reason})
		styles = append(styles, RowDim)
	}

	return FormattedTable{
		Headers: []string{"#", "Provider", "Cost/request", "Monthly quota", "Note"},
		Rows:    rows,
		Styles:  styles,
	}
}

func formatCost(c float64) string {
	if c == 0 {
		return "free"
	}
	return fmt.Sprintf("$%.4f", c)
}

func formatQuota(q int) string {
	if q <= 0 {
		return "unlimited"
	}
	return fmt.Sprintf("%d", q)
}

package display

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/joshuadavidthomas/meteofetch/internal/models"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true)
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	greenStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	yellowStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	redStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	blueStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
)

const missing = "—"

// FormatValue renders an optional measurement with the given precision.
func FormatValue(v *float64, precision int) string {
	if v == nil {
		return missing
	}
	return strconv.FormatFloat(*v, 'f', precision, 64)
}

// FormatCost renders a USD amount, "free" for zero.
func FormatCost(c float64) string {
	if c == 0 {
		return "free"
	}
	return fmt.Sprintf("$%.4f", c)
}

// FormatQuota renders a monthly quota, "unlimited" for zero.
func FormatQuota(q int) string {
	if q <= 0 {
		return "unlimited"
	}
	return strconv.Itoa(q)
}

// LevelColor maps a warning level to a color name.
func LevelColor(l models.WarningLevel) string {
	switch l {
	case models.LevelCritical:
		return "red"
	case models.LevelWarning:
		return "yellow"
	case models.LevelInfo:
		return "blue"
	default:
		return "green"
	}
}

func colorStyle(color string) lipgloss.Style {
	switch color {
	case "green":
		return greenStyle
	case "yellow":
		return yellowStyle
	case "red":
		return redStyle
	case "blue":
		return blueStyle
	default:
		return lipgloss.NewStyle()
	}
}

// RenderBar draws a utilization bar of width cells.
func RenderBar(utilization int, width int, color string) string {
	filled := max(0, min(utilization*width/100, width))
	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	return colorStyle(color).Render(bar)
}

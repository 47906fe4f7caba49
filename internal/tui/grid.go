package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/cjeanneret/ThermoGo/internal/logic/render"
	"github.com/cjeanneret/ThermoGo/internal/thermal"
)

var (
	title   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#ffffff"))
	dim     = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
	online  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00ff88"))
	offline = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#ff4444"))
	hint    = lipgloss.NewStyle().Foreground(lipgloss.Color("#666688")).Italic(true)
	panel   = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#444466")).
		Padding(0, 1)
)

// Grid draws a surface as coloured terminal cells. With values set, each
// cell shows its reading; otherwise cells are two blank columns wide.
func Grid(s render.Surface, values bool) string {
	var b strings.Builder
	for y := 0; y < thermal.Size; y++ {
		for x := 0; x < thermal.Size; x++ {
			c := s.At(x, y)
			style := lipgloss.NewStyle().
				Background(lipgloss.Color(fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B))).
				Foreground(lipgloss.Color("#ffffff"))
			cell := "  "
			if values && s.Frame != nil {
				cell = fmt.Sprintf("%5.1f ", s.Frame.At(x, y))
			}
			b.WriteString(style.Render(cell))
		}
		if y < thermal.Size-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// Legend shows the calibration range under a grid.
func Legend(s render.Surface) string {
	cold := lipgloss.NewStyle().Foreground(lipgloss.Color("#0000ff")).Render("■")
	hot := lipgloss.NewStyle().Foreground(lipgloss.Color("#ff0000")).Render("■")
	return fmt.Sprintf("%s %.1f°C  …  %s %.1f°C", cold, s.Range.Min, hot, s.Range.Max)
}

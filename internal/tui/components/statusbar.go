package components

import (
	"fmt"

	"github.com/theirongolddev/salesdash/internal/tui/theme"

	"github.com/charmbracelet/lipgloss"
)

// StatusInfo is what the bottom bar reports.
type StatusInfo struct {
	DataAge     string
	Origin      string
	Refreshing  bool
	AutoRefresh bool
	Forecasting bool
}

// RenderStatusBar renders the bottom status bar.
func RenderStatusBar(width int, info StatusInfo) string {
	t := theme.Active

	style := lipgloss.NewStyle().
		Foreground(t.TextMuted).
		Background(t.Surface)
	accent := lipgloss.NewStyle().
		Foreground(t.Accent).
		Background(t.Surface)

	left := style.Render(" [?]help  [r]efresh  [q]uit")
	if info.AutoRefresh {
		left += accent.Render("  auto")
	}

	right := ""
	switch {
	case info.Refreshing:
		right = accent.Render("refreshing… ")
	case info.Forecasting:
		right = accent.Render("forecasting… ")
	}
	if info.Origin != "" {
		right += style.Render(info.Origin + "  ")
	}
	if info.DataAge != "" {
		right += style.Render(fmt.Sprintf("Data: %s ", info.DataAge))
	}

	padding := width - lipgloss.Width(left) - lipgloss.Width(right)
	if padding < 0 {
		padding = 0
	}

	return left + style.Render(fmt.Sprintf("%*s", padding, "")) + right
}

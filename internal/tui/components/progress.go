package components

import (
	"math"

	"github.com/theirongolddev/salesdash/internal/tui/theme"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
)

// Ratio returns v/ref clamped to [0, 1]. Non-finite input yields 0.
func Ratio(v, ref float64) float64 {
	if ref <= 0 || !finite(v) || !finite(ref) {
		return 0
	}
	return math.Max(0, math.Min(1, v/ref))
}

// ValueBar renders a labeled bar showing value relative to ref,
// e.g. a predicted day against the observed peak.
func ValueBar(label, value string, pct float64, color lipgloss.Color, labelW, barWidth int) string {
	t := theme.Active

	bar := progress.New(
		progress.WithSolidFill(string(color)),
		progress.WithWidth(barWidth),
		progress.WithoutPercentage(),
	)
	bar.EmptyColor = string(t.TextDim)

	labelStyle := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)
	valueStyle := lipgloss.NewStyle().Foreground(color).Background(t.Surface).Bold(true)
	spaceStyle := lipgloss.NewStyle().Background(t.Surface)

	return labelStyle.Render(padRight(label, labelW)) +
		spaceStyle.Render(" ") +
		bar.ViewAs(pct) +
		spaceStyle.Render("  ") +
		valueStyle.Render(value)
}

func padRight(s string, w int) string {
	if gap := w - lipgloss.Width(s); gap > 0 {
		return s + spaces(gap)
	}
	return s
}

func spaces(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = ' '
	}
	return string(b)
}

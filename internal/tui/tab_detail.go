package tui

import (
	"fmt"
	"strings"

	"github.com/theirongolddev/salesdash/internal/cli"
	"github.com/theirongolddev/salesdash/internal/pipeline"
	"github.com/theirongolddev/salesdash/internal/tui/components"
	"github.com/theirongolddev/salesdash/internal/tui/theme"

	"github.com/charmbracelet/lipgloss"
)

// detailState tracks the scroll position of the merged table.
type detailState struct {
	offset int
}

// scroll moves the first visible row by delta, staying within n rows.
func (d *detailState) scroll(delta, n int) {
	d.offset += delta
	d.clamp(n)
}

func (d *detailState) clamp(n int) {
	d.offset = max(0, min(d.offset, n-1))
}

// detailOverhead is the card border, title and column header lines.
const detailOverhead = 5

func (a App) renderDetailTab(cw, contentH int) string {
	t := theme.Active
	points := a.view.Merged

	if len(points) == 0 {
		return components.ContentCard("Daily Detail", emptyMessage(a.view), cw)
	}

	visible := max(1, contentH-detailOverhead)
	start := min(a.detail.offset, max(0, len(points)-visible))
	end := min(len(points), start+visible)

	headStyle := lipgloss.NewStyle().Foreground(t.Accent).Background(t.Surface).Bold(true)
	dateStyle := lipgloss.NewStyle().Foreground(t.TextPrimary).Background(t.Surface)
	dayStyle := lipgloss.NewStyle().Foreground(t.TextDim).Background(t.Surface)
	actualStyle := lipgloss.NewStyle().Foreground(t.Actual()).Background(t.Surface)
	predictedStyle := lipgloss.NewStyle().Foreground(t.Predicted()).Background(t.Surface)
	missingStyle := lipgloss.NewStyle().Foreground(t.TextDim).Background(t.Surface)
	space := lipgloss.NewStyle().Background(t.Surface)

	const (
		dateW  = 12
		dayW   = 5
		valueW = 14
	)

	var b strings.Builder
	b.WriteString(headStyle.Render(fmt.Sprintf("%-*s%-*s%*s%*s", dateW, "Date", dayW, "Day", valueW, "Actual", valueW, "Predicted")))
	b.WriteString("\n")

	for _, p := range points[start:end] {
		b.WriteString(dateStyle.Render(fmt.Sprintf("%-*s", dateW, p.Date)))
		b.WriteString(dayStyle.Render(fmt.Sprintf("%-*s", dayW, cli.FormatWeekday(p.Date))))
		b.WriteString(cell(p.Actual, 0, valueW, actualStyle, missingStyle))
		b.WriteString(cell(p.Predicted, 1, valueW, predictedStyle, missingStyle))
		b.WriteString(space.Render(" "))
		b.WriteString("\n")
	}

	pos := fmt.Sprintf("%d–%d of %d", start+1, end, len(points))
	b.WriteString(dayStyle.Render(pos))

	return components.ContentCard("Daily Detail", b.String(), cw)
}

// cell renders an optional value right-aligned in w columns.
func cell(v *float64, decimals, w int, style, missing lipgloss.Style) string {
	if v == nil {
		return missing.Render(fmt.Sprintf("%*s", w, "—"))
	}
	return style.Render(fmt.Sprintf("%*s", w, cli.FormatValue(*v, decimals)))
}

// emptyMessage explains why there is nothing to show.
func emptyMessage(v pipeline.View) string {
	if v.Series.Failed() {
		return v.Series.Message
	}
	return "No sales data yet."
}

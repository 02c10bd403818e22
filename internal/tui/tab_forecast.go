package tui

import (
	"math"
	"strings"
	"time"

	"github.com/theirongolddev/salesdash/internal/cli"
	"github.com/theirongolddev/salesdash/internal/model"
	"github.com/theirongolddev/salesdash/internal/tui/components"
	"github.com/theirongolddev/salesdash/internal/tui/theme"

	"github.com/charmbracelet/lipgloss"
)

func (a App) renderForecastTab(cw int) string {
	t := theme.Active
	v := a.view

	muted := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)
	warn := lipgloss.NewStyle().Foreground(t.Orange).Background(t.Surface)
	dim := lipgloss.NewStyle().Foreground(t.TextDim).Background(t.Surface)

	var body strings.Builder
	body.WriteString(renderPills(v.Upcoming, cw))
	if v.Forecast.Loading() {
		body.WriteString("\n")
		body.WriteString(a.spinner.View())
		body.WriteString(muted.Render(" (calculating…)"))
	}
	if v.Forecast.Failed() {
		body.WriteString("\n")
		body.WriteString(warn.Render(v.Forecast.Message))
	}
	if !v.Forecast.UpdatedAt.IsZero() {
		body.WriteString("\n")
		body.WriteString(dim.Render("updated " + cli.FormatAge(v.Forecast.UpdatedAt, time.Now())))
	}

	var b strings.Builder
	b.WriteString(components.ContentCard("Upcoming Predictions", body.String(), cw))

	if len(v.Upcoming) > 0 {
		b.WriteString("\n")
		b.WriteString(components.ContentCard("Against Observed Peak",
			renderPeakBars(v.Upcoming, v.KPIs.Max, components.CardInnerWidth(cw)), cw))
	}

	return b.String()
}

// renderPills lays out "date: value" pills, wrapping to the card width.
func renderPills(upcoming []model.ForecastRecord, cw int) string {
	t := theme.Active
	muted := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)
	if len(upcoming) == 0 {
		return muted.Render("No predictions")
	}

	pill := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.Predicted()).
		BorderBackground(t.Surface).
		Background(t.Surface).
		Padding(0, 1)
	dateStyle := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)
	valueStyle := lipgloss.NewStyle().Foreground(t.TextPrimary).Background(t.Surface).Bold(true)

	inner := components.CardInnerWidth(cw)
	var rows []string
	var row []string
	rowW := 0
	for _, r := range upcoming {
		p := pill.Render(dateStyle.Render(r.Date+": ") + valueStyle.Render(cli.FormatValue(r.Value, 1)))
		pw := lipgloss.Width(p) + 1
		if rowW+pw > inner && len(row) > 0 {
			rows = append(rows, components.CardRow(row))
			row, rowW = nil, 0
		}
		row = append(row, p, " ")
		rowW += pw
	}
	if len(row) > 0 {
		rows = append(rows, components.CardRow(row))
	}
	return strings.Join(rows, "\n")
}

// renderPeakBars shows each predicted day as a share of the observed maximum.
func renderPeakBars(upcoming []model.ForecastRecord, peak float64, w int) string {
	t := theme.Active
	ref := peak
	for _, r := range upcoming {
		if !math.IsNaN(r.Value) {
			ref = math.Max(ref, r.Value)
		}
	}

	const labelW = 11
	barW := max(10, w-labelW-14)

	lines := make([]string, len(upcoming))
	for i, r := range upcoming {
		lines[i] = components.ValueBar(r.Date, cli.FormatValue(r.Value, 1), components.Ratio(r.Value, ref), t.Predicted(), labelW, barW)
	}
	return strings.Join(lines, "\n")
}

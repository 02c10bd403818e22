package tui

import (
	"fmt"
	"math"
	"strings"

	"github.com/theirongolddev/salesdash/internal/cli"
	"github.com/theirongolddev/salesdash/internal/model"
	"github.com/theirongolddev/salesdash/internal/tui/components"
	"github.com/theirongolddev/salesdash/internal/tui/theme"

	"github.com/charmbracelet/lipgloss"
)

func (a App) renderOverviewTab(cw int) string {
	t := theme.Active
	v := a.view
	var b strings.Builder

	b.WriteString(components.MetricCardRow(kpiMetrics(v.KPIs, v.Sales), cw))
	b.WriteString("\n")

	if len(v.Merged) == 0 {
		b.WriteString(components.ContentCard("Actual vs Predicted", emptyMessage(v), cw))
		return b.String()
	}

	chartH := 12
	if a.isCompactLayout() {
		chartH = 8
	}
	legend := lipgloss.NewStyle().Foreground(t.Actual()).Background(t.Surface).Render("■ actual") +
		lipgloss.NewStyle().Background(t.Surface).Render("  ") +
		lipgloss.NewStyle().Foreground(t.Predicted()).Background(t.Surface).Render("■ predicted")
	if v.Forecast.Loading() {
		legend += lipgloss.NewStyle().Foreground(t.TextDim).Background(t.Surface).Render("  (calculating…)")
	}

	b.WriteString(components.ContentCard(
		"Actual vs Predicted",
		components.ColumnChart(chartColumns(v.Merged), components.CardInnerWidth(cw), chartH)+"\n"+legend,
		cw,
	))
	b.WriteString("\n")

	halves := components.LayoutRow(cw, 2)
	trendCard := components.ContentCard("Mini Trend", a.renderMiniTrend(components.CardInnerWidth(halves[0])), halves[0])
	nextCard := components.ContentCard("Next Days", a.renderNextDays(), halves[1])
	if a.isCompactLayout() {
		b.WriteString(trendCard)
		b.WriteString("\n")
		b.WriteString(nextCard)
	} else {
		b.WriteString(components.CardRow([]string{trendCard, nextCard}))
	}

	return b.String()
}

// kpiMetrics builds the five summary cards.
func kpiMetrics(k model.KPIs, sales []model.SalesRecord) []components.Metric {
	t := theme.Active
	peakDate, lowDate := extremeDates(sales)

	trendDelta := ""
	if n := len(sales); n > 1 {
		trendDelta = fmt.Sprintf("%s → %s", sales[0].Date, sales[n-1].Date)
	}

	return []components.Metric{
		{Label: "Total Sales", Value: cli.FormatValue(k.Total, 0), Delta: fmt.Sprintf("%d days", len(sales))},
		{Label: "Average", Value: cli.FormatValue(k.Average, 1), Delta: "per day"},
		{Label: "Peak Day", Value: cli.FormatValue(k.Max, 0), Delta: peakDate},
		{Label: "Lowest Day", Value: cli.FormatValue(k.Min, 0), Delta: lowDate},
		{Label: "Trend", Value: cli.FormatPercent(k.Trend), Delta: trendDelta, DeltaColor: t.Trend(k.Trend)},
	}
}

// extremeDates returns the first dates holding the maximum and minimum.
func extremeDates(sales []model.SalesRecord) (peak, low string) {
	hi, lo := math.Inf(-1), math.Inf(1)
	for _, r := range sales {
		if r.Value > hi {
			hi, peak = r.Value, r.Date
		}
		if r.Value < lo {
			lo, low = r.Value, r.Date
		}
	}
	return peak, low
}

// chartColumns maps merged points to columns, preferring the actual value.
func chartColumns(points []model.MergedPoint) []components.Column {
	cols := make([]components.Column, len(points))
	for i, p := range points {
		c := components.Column{Label: shortDate(p.Date)}
		switch {
		case p.HasActual():
			c.Value = *p.Actual
		case p.HasPredicted():
			c.Value = *p.Predicted
			c.Predicted = true
		default:
			c.Value = math.NaN()
		}
		cols[i] = c
	}
	return cols
}

// shortDate trims "2024-03-05" to "03-05".
func shortDate(d string) string {
	if len(d) == len(model.DateLayout) {
		return d[5:]
	}
	return d
}

func (a App) renderMiniTrend(w int) string {
	t := theme.Active
	values := model.SalesValues(a.view.Sales)
	if len(values) > w {
		values = values[len(values)-w:]
	}

	muted := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)
	trend := lipgloss.NewStyle().Foreground(t.Trend(a.view.KPIs.Trend)).Background(t.Surface).Bold(true)

	return components.Sparkline(values, t.Actual()) + "\n" +
		muted.Render("overall ") + trend.Render(cli.FormatPercent(a.view.KPIs.Trend))
}

func (a App) renderNextDays() string {
	t := theme.Active
	v := a.view
	muted := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)
	warn := lipgloss.NewStyle().Foreground(t.Orange).Background(t.Surface)
	value := lipgloss.NewStyle().Foreground(t.Predicted()).Background(t.Surface).Bold(true)

	switch {
	case v.Forecast.Failed():
		return warn.Render(v.Forecast.Message)
	case len(v.Upcoming) == 0 && v.Forecast.Loading():
		return a.spinner.View() + muted.Render(" calculating…")
	case len(v.Upcoming) == 0:
		return muted.Render("No predictions")
	}

	var lines []string
	for i, r := range v.Upcoming {
		if i == 3 {
			lines = append(lines, muted.Render(fmt.Sprintf("+%d more on the Forecast tab", len(v.Upcoming)-3)))
			break
		}
		lines = append(lines, muted.Render(r.Date+"  ")+value.Render(cli.FormatValue(r.Value, 1)))
	}
	return strings.Join(lines, "\n")
}

package components

import (
	"fmt"
	"math"
	"strings"

	"github.com/theirongolddev/salesdash/internal/tui/theme"

	"github.com/charmbracelet/lipgloss"
)

// Column is one bar of a column chart.
type Column struct {
	Label     string
	Value     float64
	Predicted bool
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

// Sparkline renders a unicode sparkline scaled between the series
// minimum and maximum. Non-finite values render as a gap.
func Sparkline(values []float64, color lipgloss.Color) string {
	if len(values) == 0 {
		return ""
	}
	t := theme.Active

	blocks := []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range values {
		if finite(v) {
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
	}
	span := hi - lo
	if span <= 0 || math.IsInf(span, 0) {
		span = 1
	}

	style := lipgloss.NewStyle().Foreground(color).Background(t.Surface)

	var buf strings.Builder
	buf.Grow(len(values) * 3)
	for _, v := range values {
		if !finite(v) {
			buf.WriteRune(' ')
			continue
		}
		idx := int((v - lo) / span * float64(len(blocks)-1))
		idx = max(0, min(idx, len(blocks)-1))
		buf.WriteRune(blocks[idx]) //nolint:gosec // clamped above
	}

	return style.Render(buf.String())
}

// ColumnChart renders a column chart with a y-axis. Observed and predicted
// columns use the theme's actual and predicted colors. Negative and
// non-finite values render as empty columns.
func ColumnChart(cols []Column, width, height int) string {
	if len(cols) == 0 {
		return ""
	}
	t := theme.Active
	if width < 15 || height < 3 {
		values := make([]float64, len(cols))
		for i, c := range cols {
			values[i] = c.Value
		}
		return Sparkline(values, t.Actual())
	}

	maxVal := 0.0
	for _, c := range cols {
		if finite(c.Value) && c.Value > maxVal {
			maxVal = c.Value
		}
	}
	if maxVal == 0 {
		maxVal = 1
	}

	tickStep := chartTickStep(maxVal)
	maxIntervals := max(2, height/2)
	for int(math.Ceil(maxVal/tickStep)) > maxIntervals {
		tickStep *= 2
	}
	ceiling := math.Ceil(maxVal/tickStep) * tickStep
	numIntervals := max(1, int(math.Round(ceiling/tickStep)))

	rowsPerTick := max(2, height/numIntervals)
	chartH := rowsPerTick * numIntervals

	yLabelW := max(4, len(formatChartLabel(ceiling))+1)
	tickLabels := make(map[int]string, numIntervals)
	for i := 1; i <= numIntervals; i++ {
		tickLabels[i*rowsPerTick] = formatChartLabel(tickStep * float64(i))
	}

	chartW := max(5, width-yLabelW-1)

	// Downsample when there are more columns than fit at two cells each.
	n := len(cols)
	gap := 1
	if n <= 1 {
		gap = 0
	}
	barW := chartW
	if n > 1 {
		barW = (chartW - (n - 1)) / n
	}
	if barW < 2 && n > 1 {
		maxN := max(2, (chartW+1)/3)
		sampled := make([]Column, maxN)
		for i := range sampled {
			sampled[i] = cols[i*(n-1)/(maxN-1)]
		}
		cols = sampled
		n = maxN
		barW = 2
	}
	barW = min(barW, 6)
	axisLen := n*barW + max(0, n-1)*gap

	blocks := []rune{' ', '▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

	axisStyle := lipgloss.NewStyle().Foreground(t.TextDim).Background(t.Surface)
	blank := lipgloss.NewStyle().Background(t.Surface)
	actualStyle := lipgloss.NewStyle().Foreground(t.Actual()).Background(t.Surface)
	predictedStyle := lipgloss.NewStyle().Foreground(t.Predicted()).Background(t.Surface)

	var b strings.Builder
	for row := chartH; row >= 1; row-- {
		rowTop := ceiling * float64(row) / float64(chartH)
		rowBottom := ceiling * float64(row-1) / float64(chartH)

		b.WriteString(axisStyle.Render(fmt.Sprintf("%*s", yLabelW, tickLabels[row])))
		b.WriteString(axisStyle.Render("│"))

		for i, c := range cols {
			if i > 0 && gap > 0 {
				b.WriteString(blank.Render(strings.Repeat(" ", gap)))
			}
			style := actualStyle
			if c.Predicted {
				style = predictedStyle
			}
			v := c.Value
			switch {
			case !finite(v) || v <= rowBottom:
				b.WriteString(blank.Render(strings.Repeat(" ", barW)))
			case v >= rowTop:
				b.WriteString(style.Render(strings.Repeat("█", barW)))
			default:
				idx := int((v - rowBottom) / (rowTop - rowBottom) * 8)
				idx = max(1, min(idx, 8))
				b.WriteString(style.Render(strings.Repeat(string(blocks[idx]), barW)))
			}
		}
		b.WriteString("\n")
	}

	b.WriteString(axisStyle.Render(fmt.Sprintf("%*s", yLabelW, "0")))
	b.WriteString(axisStyle.Render("└" + strings.Repeat("─", axisLen)))

	labels := make([]string, n)
	for i, c := range cols {
		labels[i] = c.Label
	}
	if line := axisLabels(labels, barW+gap, axisLen); line != "" {
		b.WriteString("\n")
		b.WriteString(blank.Render(strings.Repeat(" ", yLabelW+1)))
		b.WriteString(axisStyle.Render(line))
	}

	return b.String()
}

// axisLabels lays out x-axis labels at stride columns, skipping any that
// would overlap. The last label is always placed when it fits.
func axisLabels(labels []string, stride, axisLen int) string {
	n := len(labels)
	if n == 0 || axisLen <= 0 {
		return ""
	}
	buf := []byte(strings.Repeat(" ", axisLen))

	const minSpacing = 8
	step := max(1, (n*minSpacing)/(axisLen+1))

	lastEnd := -1
	place := func(i int) {
		lbl := labels[i]
		pos := i * stride
		if pos+len(lbl) > axisLen {
			pos = axisLen - len(lbl)
		}
		if pos < 0 || pos <= lastEnd {
			return
		}
		copy(buf[pos:], lbl)
		lastEnd = pos + len(lbl)
	}
	for i := 0; i < n; i += step {
		place(i)
	}
	if (n-1)%step != 0 {
		place(n - 1)
	}
	return strings.TrimRight(string(buf), " ")
}

// chartTickStep computes a tick interval targeting about five ticks.
func chartTickStep(maxVal float64) float64 {
	if maxVal <= 0 {
		return 1
	}
	rough := maxVal / 5
	exp := math.Floor(math.Log10(rough))
	base := math.Pow(10, exp)
	frac := rough / base

	switch {
	case frac < 1.5:
		return base
	case frac < 3.5:
		return 2 * base
	default:
		return 5 * base
	}
}

func formatChartLabel(v float64) string {
	switch {
	case v >= 1e9:
		return trimUnit(v/1e9, "B")
	case v >= 1e6:
		return trimUnit(v/1e6, "M")
	case v >= 1e3:
		return trimUnit(v/1e3, "k")
	case v >= 1:
		return fmt.Sprintf("%.0f", v)
	default:
		return fmt.Sprintf("%.2f", v)
	}
}

func trimUnit(v float64, unit string) string {
	if v == math.Trunc(v) {
		return fmt.Sprintf("%.0f%s", v, unit)
	}
	return fmt.Sprintf("%.1f%s", v, unit)
}

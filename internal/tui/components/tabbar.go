package components

import (
	"strings"

	"github.com/theirongolddev/salesdash/internal/tui/theme"

	"github.com/charmbracelet/lipgloss"
)

// Tab is a single entry in the tab bar.
type Tab struct {
	Name   string
	Key    rune
	KeyPos int // index of the shortcut letter in Name, -1 when absent
}

// Tabs defines the dashboard tabs in display order.
var Tabs = []Tab{
	{Name: "Overview", Key: 'o', KeyPos: 0},
	{Name: "Detail", Key: 'd', KeyPos: 0},
	{Name: "Forecast", Key: 'f', KeyPos: 0},
}

// TabVisualWidth returns the rendered width of a tab, including padding.
func TabVisualWidth(tab Tab, active bool) int {
	w := lipgloss.Width(tab.Name) + 2
	if !active && tab.KeyPos < 0 {
		w += 3 // "[k]"
	}
	return w
}

// RenderTabBar renders the tab row with activeIdx highlighted.
// Tabs are separated by a single column.
func RenderTabBar(activeIdx int, width int) string {
	t := theme.Active

	activeStyle := lipgloss.NewStyle().
		Foreground(t.TextPrimary).
		Background(t.SurfaceHover).
		Bold(true).
		Padding(0, 1)

	inactiveStyle := lipgloss.NewStyle().
		Foreground(t.TextMuted).
		Background(t.Surface)

	keyStyle := lipgloss.NewStyle().
		Foreground(t.Accent).
		Background(t.Surface).
		Bold(true)

	padStyle := lipgloss.NewStyle().Background(t.Surface)

	parts := make([]string, 0, len(Tabs))
	for i, tab := range Tabs {
		if i == activeIdx {
			parts = append(parts, activeStyle.Render(tab.Name))
			continue
		}
		var body string
		if tab.KeyPos >= 0 && tab.KeyPos < len(tab.Name) {
			body = inactiveStyle.Render(tab.Name[:tab.KeyPos]) +
				keyStyle.Render(string(tab.Name[tab.KeyPos])) +
				inactiveStyle.Render(tab.Name[tab.KeyPos+1:])
		} else {
			body = inactiveStyle.Render(tab.Name) + keyStyle.Render("["+string(tab.Key)+"]")
		}
		parts = append(parts, padStyle.Render(" ")+body+padStyle.Render(" "))
	}

	row := strings.Join(parts, padStyle.Render(" "))
	return lipgloss.NewStyle().Background(t.Surface).Width(width).Render(row)
}

// TabIdxByKey returns the tab index for a key press, or -1.
func TabIdxByKey(key rune) int {
	for i, tab := range Tabs {
		if tab.Key == key {
			return i
		}
	}
	return -1
}

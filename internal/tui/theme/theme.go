// Package theme defines color themes for the salesdash dashboard.
package theme

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme holds the color roles the dashboard draws with.
type Theme struct {
	Name string

	Background   lipgloss.Color
	Surface      lipgloss.Color // cards and bars
	SurfaceHover lipgloss.Color // active tab
	Border       lipgloss.Color
	BorderAccent lipgloss.Color // help and setup frames

	TextDim     lipgloss.Color
	TextMuted   lipgloss.Color
	TextPrimary lipgloss.Color

	Accent       lipgloss.Color
	AccentBright lipgloss.Color

	Green   lipgloss.Color
	Orange  lipgloss.Color // warnings
	Red     lipgloss.Color
	Blue    lipgloss.Color // observed sales
	Magenta lipgloss.Color // predictions
	Cyan    lipgloss.Color
}

// Active is the currently selected theme.
var Active = FlexokiDark

// FlexokiDark is the default theme.
var FlexokiDark = Theme{
	Name:         "flexoki-dark",
	Background:   "#100F0F",
	Surface:      "#1C1B1A",
	SurfaceHover: "#282726",
	Border:       "#403E3C",
	BorderAccent: "#3AA99F",
	TextDim:      "#575653",
	TextMuted:    "#878580",
	TextPrimary:  "#FFFCF0",
	Accent:       "#3AA99F",
	AccentBright: "#5BC8BE",
	Green:        "#879A39",
	Orange:       "#DA702C",
	Red:          "#D14D41",
	Blue:         "#4385BE",
	Magenta:      "#CE5D97",
	Cyan:         "#24837B",
}

// FlexokiLight is the light variant for bright terminals.
var FlexokiLight = Theme{
	Name:         "flexoki-light",
	Background:   "#FFFCF0",
	Surface:      "#F2F0E5",
	SurfaceHover: "#E6E4D9",
	Border:       "#CECDC3",
	BorderAccent: "#24837B",
	TextDim:      "#B7B5AC",
	TextMuted:    "#6F6E69",
	TextPrimary:  "#100F0F",
	Accent:       "#24837B",
	AccentBright: "#2F968D",
	Green:        "#66800B",
	Orange:       "#BC5215",
	Red:          "#AF3029",
	Blue:         "#205EA6",
	Magenta:      "#A02F6F",
	Cyan:         "#24837B",
}

// TokyoNight is a cool blue theme.
var TokyoNight = Theme{
	Name:         "tokyo-night",
	Background:   "#1A1B26",
	Surface:      "#24283B",
	SurfaceHover: "#343A52",
	Border:       "#565F89",
	BorderAccent: "#7AA2F7",
	TextDim:      "#565F89",
	TextMuted:    "#A9B1D6",
	TextPrimary:  "#C0CAF5",
	Accent:       "#7AA2F7",
	AccentBright: "#A9C1FF",
	Green:        "#9ECE6A",
	Orange:       "#FF9E64",
	Red:          "#F7768E",
	Blue:         "#7AA2F7",
	Magenta:      "#BB9AF7",
	Cyan:         "#7DCFFF",
}

// Terminal sticks to the 16 ANSI colors.
var Terminal = Theme{
	Name:         "terminal",
	Background:   "0",
	Surface:      "0",
	SurfaceHover: "8",
	Border:       "8",
	BorderAccent: "6",
	TextDim:      "8",
	TextMuted:    "7",
	TextPrimary:  "15",
	Accent:       "6",
	AccentBright: "14",
	Green:        "2",
	Orange:       "3",
	Red:          "1",
	Blue:         "4",
	Magenta:      "5",
	Cyan:         "6",
}

// All available themes, in display order.
var All = []Theme{FlexokiDark, FlexokiLight, TokyoNight, Terminal}

// ByName returns a theme by its name, defaulting to FlexokiDark.
func ByName(name string) Theme {
	for _, t := range All {
		if t.Name == name {
			return t
		}
	}
	return FlexokiDark
}

// SetActive sets the active theme by name.
func SetActive(name string) {
	Active = ByName(name)
}

// Names lists the theme names in display order.
func Names() []string {
	names := make([]string, len(All))
	for i, t := range All {
		names[i] = t.Name
	}
	return names
}

// ForProfile resolves name against what the terminal can display.
// Terminals limited to 16 colors always get the Terminal theme.
func ForProfile(name string, p termenv.Profile) Theme {
	if p == termenv.ANSI || p == termenv.Ascii {
		return Terminal
	}
	return ByName(name)
}

// Actual is the chart color for observed sales.
func (t Theme) Actual() lipgloss.Color { return t.Blue }

// Predicted is the chart color for forecast values.
func (t Theme) Predicted() lipgloss.Color { return t.Magenta }

// Trend picks green for growth, red for decline.
func (t Theme) Trend(pct float64) lipgloss.Color {
	switch {
	case pct > 0:
		return t.Green
	case pct < 0:
		return t.Red
	default:
		return t.TextMuted
	}
}

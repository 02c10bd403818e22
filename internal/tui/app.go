// Package tui provides the interactive Bubble Tea dashboard for salesdash.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/theirongolddev/salesdash/internal/cli"
	"github.com/theirongolddev/salesdash/internal/config"
	"github.com/theirongolddev/salesdash/internal/forecast"
	"github.com/theirongolddev/salesdash/internal/model"
	"github.com/theirongolddev/salesdash/internal/pipeline"
	"github.com/theirongolddev/salesdash/internal/tui/components"
	"github.com/theirongolddev/salesdash/internal/tui/theme"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
)

// SeriesLoadedMsg is sent when a series fetch finishes.
type SeriesLoadedMsg struct {
	Result *pipeline.LoadResult
	Err    error
	// Force requests a forecast even when the series is unchanged.
	Force bool
}

// ForecastDoneMsg is sent when a forecast request finishes.
type ForecastDoneMsg struct {
	Gen     uint64
	Records []model.ForecastRecord
	Err     error
}

// Options wires the dashboard to its data.
type Options struct {
	Session   *pipeline.Session
	Loader    *pipeline.Loader
	Predictor forecast.Predictor // nil disables forecasting
	// ForecastOrigin labels cached forecasts; empty skips caching.
	ForecastOrigin string
	Config         config.Config
	ConfigPath     string
	Logger         zerolog.Logger
	NeedSetup      bool
}

// App is the root Bubble Tea model.
type App struct {
	sess           *pipeline.Session
	loader         *pipeline.Loader
	predictor      forecast.Predictor
	forecastOrigin string
	cfg            config.Config
	cfgPath        string
	log            zerolog.Logger

	// Data
	view     pipeline.View
	loaded   bool
	loadTime time.Duration
	notice   string

	// Auto-refresh state
	autoRefresh     bool
	refreshInterval time.Duration
	lastRefresh     time.Time
	refreshing      bool

	forecastCancel context.CancelFunc

	// UI state
	width     int
	height    int
	activeTab int
	showHelp  bool
	detail    detailState

	// First-run setup (huh form)
	setupForm *huh.Form
	setupVals SetupValues
	needSetup bool

	spinner  spinner.Model
	spinning bool
}

const (
	minTerminalWidth = 80
	compactWidth     = 120
	maxContentWidth  = 180

	scrollOverhead    = 10 // approximate header + status bar height for half-page calc
	minHalfPageScroll = 1
	minContentHeight  = 5

	minRefreshInterval = 10 * time.Second
)

// Tab indices.
const (
	tabOverview = iota
	tabDetail
	tabForecast
)

// NewApp creates the dashboard model.
func NewApp(opts Options) App {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(theme.Active.Accent).Background(theme.Active.Surface)

	refreshInterval := time.Duration(opts.Config.TUI.RefreshIntervalSec) * time.Second
	if refreshInterval < minRefreshInterval {
		refreshInterval = 60 * time.Second
	}

	sess := opts.Session
	if sess == nil {
		sess = pipeline.NewSession(pipeline.LastWins)
	}

	return App{
		sess:            sess,
		loader:          opts.Loader,
		predictor:       opts.Predictor,
		forecastOrigin:  opts.ForecastOrigin,
		cfg:             opts.Config,
		cfgPath:         opts.ConfigPath,
		log:             opts.Logger,
		needSetup:       opts.NeedSetup,
		autoRefresh:     opts.Config.TUI.AutoRefresh,
		refreshInterval: refreshInterval,
		spinner:         sp,
		spinning:        true,
	}
}

// Init implements tea.Model.
func (a App) Init() tea.Cmd {
	return tea.Batch(
		tea.EnableMouseCellMotion,
		a.loadSeriesCmd(false),
		a.spinner.Tick,
		tickCmd(),
	)
}

// Update implements tea.Model.
func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		if a.setupForm != nil {
			a.setupForm = a.setupForm.WithWidth(msg.Width).WithHeight(msg.Height)
		}
		return a, nil

	case tea.MouseMsg:
		if !a.loaded || a.showHelp || a.setupForm != nil {
			return a, nil
		}
		switch msg.Button {
		case tea.MouseButtonWheelUp:
			if a.activeTab == tabDetail {
				a.detail.scroll(-1, len(a.view.Merged))
			}
		case tea.MouseButtonWheelDown:
			if a.activeTab == tabDetail {
				a.detail.scroll(1, len(a.view.Merged))
			}
		case tea.MouseButtonLeft:
			if msg.Y == 0 {
				if tab := a.tabAtX(msg.X); tab >= 0 {
					a.activeTab = tab
				}
			}
		}
		return a, nil

	case tea.KeyMsg:
		return a.updateKey(msg)

	case SeriesLoadedMsg:
		return a.applySeries(msg)

	case ForecastDoneMsg:
		return a.applyForecast(msg)

	case spinner.TickMsg:
		if !a.loaded || a.view.Forecast.Loading() || a.refreshing {
			var cmd tea.Cmd
			a.spinner, cmd = a.spinner.Update(msg)
			return a, cmd
		}
		a.spinning = false
		return a, nil

	case tickMsg:
		cmds := []tea.Cmd{tickCmd()}
		if a.loaded && a.autoRefresh && !a.refreshing && time.Since(a.lastRefresh) >= a.refreshInterval {
			a.refreshing = true
			cmds = append(cmds, a.loadSeriesCmd(false), a.startSpinner())
		}
		return a, tea.Batch(cmds...)
	}

	if a.setupForm != nil {
		return a.updateSetupForm(msg)
	}
	return a, nil
}

func (a App) updateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()

	if key == "ctrl+c" {
		a.cancelForecast()
		return a, tea.Quit
	}
	if !a.loaded {
		return a, nil
	}
	if a.setupForm != nil {
		return a.updateSetupForm(msg)
	}

	if key == "?" {
		a.showHelp = !a.showHelp
		return a, nil
	}
	if a.showHelp {
		a.showHelp = false
		return a, nil
	}

	if a.activeTab == tabDetail {
		n := len(a.view.Merged)
		halfPage := max(minHalfPageScroll, (a.height-scrollOverhead)/2)
		switch key {
		case "j", "down":
			a.detail.scroll(1, n)
			return a, nil
		case "k", "up":
			a.detail.scroll(-1, n)
			return a, nil
		case "ctrl+d", "pgdown":
			a.detail.scroll(halfPage, n)
			return a, nil
		case "ctrl+u", "pgup":
			a.detail.scroll(-halfPage, n)
			return a, nil
		case "g", "home":
			a.detail.offset = 0
			return a, nil
		case "G", "end":
			a.detail.scroll(n, n)
			return a, nil
		}
	}

	switch key {
	case "q":
		a.cancelForecast()
		return a, tea.Quit
	case "r":
		if a.refreshing {
			return a, nil
		}
		a.refreshing = true
		return a, tea.Batch(a.loadSeriesCmd(true), a.startSpinner())
	case "R":
		a.autoRefresh = !a.autoRefresh
		a.cfg.TUI.AutoRefresh = a.autoRefresh
		if a.cfgPath != "" {
			if err := config.SaveTo(a.cfgPath, a.cfg); err != nil {
				a.log.Warn().Err(err).Msg("saving auto-refresh preference")
			}
		}
		return a, nil
	case "left", "h":
		a.activeTab = (a.activeTab - 1 + len(components.Tabs)) % len(components.Tabs)
		return a, nil
	case "right", "l", "tab":
		a.activeTab = (a.activeTab + 1) % len(components.Tabs)
		return a, nil
	}

	if len(key) == 1 {
		if idx := components.TabIdxByKey(rune(key[0])); idx >= 0 {
			a.activeTab = idx
		}
	}
	return a, nil
}

// applySeries installs a series result and starts a forecast when due.
func (a App) applySeries(msg SeriesLoadedMsg) (tea.Model, tea.Cmd) {
	first := !a.loaded
	a.loaded = true
	a.refreshing = false
	a.lastRefresh = time.Now()

	if msg.Err != nil {
		a.sess.SeriesFailed()
		a.view = a.sess.View()
		return a.afterFirstLoad(first, nil)
	}

	a.loadTime = msg.Result.Elapsed
	changed := a.sess.SeriesLoaded(msg.Result)
	a.view = a.sess.View()
	a.detail.clamp(len(a.view.Merged))

	var cmd tea.Cmd
	if a.predictor != nil && pipeline.ShouldForecast(changed || msg.Force, msg.Result.Sales) {
		cmd = a.startForecast(msg.Result.Sales)
	}
	return a.afterFirstLoad(first, cmd)
}

func (a App) afterFirstLoad(first bool, cmd tea.Cmd) (tea.Model, tea.Cmd) {
	if first && a.needSetup {
		a.setupVals = SetupValuesFrom(a.cfg)
		a.setupForm = NewSetupForm(&a.setupVals)
		if a.width > 0 {
			a.setupForm = a.setupForm.WithWidth(a.width).WithHeight(a.height)
		}
		return a, tea.Batch(cmd, a.setupForm.Init())
	}
	return a, cmd
}

// startForecast cancels any request in flight and issues a new one.
func (a *App) startForecast(sales []model.SalesRecord) tea.Cmd {
	a.cancelForecast()
	ctx, cancel := context.WithCancel(context.Background())
	a.forecastCancel = cancel

	gen := a.sess.Tracker().Begin()
	a.view = a.sess.View()

	p := a.predictor
	records := append([]model.SalesRecord(nil), sales...)
	fetch := func() tea.Msg {
		recs, err := p.Predict(ctx, records)
		return ForecastDoneMsg{Gen: gen, Records: recs, Err: err}
	}
	return tea.Batch(fetch, a.startSpinner())
}

func (a *App) cancelForecast() {
	if a.forecastCancel != nil {
		a.forecastCancel()
		a.forecastCancel = nil
	}
}

func (a App) applyForecast(msg ForecastDoneMsg) (tea.Model, tea.Cmd) {
	if !a.sess.Tracker().Complete(msg.Gen, msg.Records, msg.Err) {
		a.log.Debug().Uint64("generation", msg.Gen).Msg("discarding superseded forecast")
		return a, nil
	}
	a.forecastCancel = nil
	if msg.Err != nil {
		a.log.Error().Err(msg.Err).Msg("forecast request failed")
	} else if a.forecastOrigin != "" && a.loader != nil {
		a.loader.SaveForecast(msg.Records, a.forecastOrigin)
	}
	a.view = a.sess.View()
	a.detail.clamp(len(a.view.Merged))
	return a, nil
}

func (a *App) startSpinner() tea.Cmd {
	if a.spinning {
		return nil
	}
	a.spinning = true
	return a.spinner.Tick
}

func (a App) updateSetupForm(msg tea.Msg) (tea.Model, tea.Cmd) {
	form, cmd := a.setupForm.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		a.setupForm = f
	}

	switch a.setupForm.State {
	case huh.StateCompleted:
		a.setupVals.Apply(&a.cfg)
		theme.SetActive(a.cfg.Appearance.Theme)
		if err := config.SaveTo(a.cfgPath, a.cfg); err != nil {
			a.notice = "Could not save config: " + err.Error()
		} else {
			a.notice = "Saved " + a.cfgPath + "; restart to apply source settings."
		}
		a.needSetup = false
		a.setupForm = nil
		return a, nil
	case huh.StateAborted:
		a.needSetup = false
		a.setupForm = nil
		return a, nil
	}
	return a, cmd
}

func (a App) contentWidth() int {
	return min(a.width, maxContentWidth)
}

func (a App) isCompactLayout() bool {
	return a.contentWidth() < compactWidth
}

// View implements tea.Model.
func (a App) View() string {
	if a.width == 0 {
		return ""
	}
	if a.width < minTerminalWidth {
		return a.viewTooNarrow()
	}
	if !a.loaded {
		return a.viewLoading()
	}
	if a.setupForm != nil {
		return a.setupForm.View()
	}
	if a.showHelp {
		return a.viewHelp()
	}
	return a.viewMain()
}

func (a App) viewTooNarrow() string {
	h := max(a.height, 5)
	msg := fmt.Sprintf(
		"\n  Terminal too narrow (%d cols)\n\n  salesdash needs at least %d columns.\n",
		a.width,
		minTerminalWidth,
	)
	return padHeight(truncateHeight(msg, h), h)
}

func (a App) viewLoading() string {
	t := theme.Active

	cardStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.BorderAccent).
		Background(t.Surface).
		Padding(2, 4)

	logoStyle := lipgloss.NewStyle().
		Foreground(t.AccentBright).
		Background(t.Surface).
		Bold(true)

	subtitleStyle := lipgloss.NewStyle().
		Foreground(t.TextMuted).
		Background(t.Surface)

	var b strings.Builder
	b.WriteString(logoStyle.Render("◈ salesdash"))
	b.WriteString(subtitleStyle.Render(" · Sales Dashboard"))
	b.WriteString("\n\n")
	b.WriteString(a.spinner.View())
	b.WriteString(subtitleStyle.Render(" Fetching sales series..."))

	return lipgloss.Place(a.width, a.height, lipgloss.Center, lipgloss.Center, cardStyle.Render(b.String()),
		lipgloss.WithWhitespaceBackground(t.Background))
}

func (a App) viewHelp() string {
	t := theme.Active

	cardStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.BorderAccent).
		Background(t.Surface).
		Padding(1, 3)

	titleStyle := lipgloss.NewStyle().Foreground(t.AccentBright).Background(t.Surface).Bold(true)
	sectionStyle := lipgloss.NewStyle().Foreground(t.Accent).Background(t.Surface).Bold(true)
	keyStyle := lipgloss.NewStyle().Foreground(t.Cyan).Background(t.Surface).Bold(true)
	descStyle := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)
	dimStyle := lipgloss.NewStyle().Foreground(t.TextDim).Background(t.Surface)

	section := func(b *strings.Builder, title string, binds []struct{ key, desc string }) {
		b.WriteString(sectionStyle.Render(title))
		b.WriteString("\n")
		for _, bind := range binds {
			fmt.Fprintf(b, "  %s  %s\n",
				keyStyle.Render(fmt.Sprintf("%-10s", bind.key)),
				descStyle.Render(bind.desc))
		}
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("◈ Keyboard Shortcuts"))
	b.WriteString("\n\n")
	section(&b, "Navigation", []struct{ key, desc string }{
		{"o d f", "Jump to tab"},
		{"← →", "Previous / Next tab"},
		{"j k", "Scroll detail table"},
		{"g G", "Top / Bottom"},
		{"^d ^u", "Half-page scroll"},
	})
	b.WriteString("\n")
	section(&b, "Actions", []struct{ key, desc string }{
		{"r", "Refresh series and forecast"},
		{"R", "Toggle auto-refresh"},
		{"?", "Toggle help"},
		{"q", "Quit"},
	})
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("Press any key to close"))

	return lipgloss.Place(a.width, a.height, lipgloss.Center, lipgloss.Center, cardStyle.Render(b.String()),
		lipgloss.WithWhitespaceBackground(t.Background))
}

func (a App) viewMain() string {
	t := theme.Active
	w := a.width
	cw := a.contentWidth()
	h := a.height

	header := components.RenderTabBar(a.activeTab, w) + "\n" + a.renderInfoRow(w)

	statusBar := components.RenderStatusBar(w, components.StatusInfo{
		DataAge:     a.dataAge(),
		Origin:      a.view.Origin,
		Refreshing:  a.refreshing,
		AutoRefresh: a.autoRefresh,
		Forecasting: a.view.Forecast.Loading(),
	})

	contentH := max(minContentHeight, h-lipgloss.Height(header)-lipgloss.Height(statusBar))

	var content string
	switch a.activeTab {
	case tabOverview:
		content = a.renderOverviewTab(cw)
	case tabDetail:
		content = a.renderDetailTab(cw, contentH)
	case tabForecast:
		content = a.renderForecastTab(cw)
	}

	content = padHeight(truncateHeight(content, contentH), contentH)
	content = fillLinesWithBackground(content, cw, t.Background)
	content = lipgloss.Place(w, contentH, lipgloss.Center, lipgloss.Top, content,
		lipgloss.WithWhitespaceBackground(t.Background))

	output := lipgloss.JoinVertical(lipgloss.Left, header, content, statusBar)
	return lipgloss.Place(w, h, lipgloss.Left, lipgloss.Top, output,
		lipgloss.WithWhitespaceBackground(t.Background))
}

// renderInfoRow shows the series summary and any warning below the tabs.
func (a App) renderInfoRow(w int) string {
	t := theme.Active
	dim := lipgloss.NewStyle().Foreground(t.TextDim).Background(t.Surface)
	accent := lipgloss.NewStyle().Foreground(t.Accent).Background(t.Surface).Bold(true)
	warn := lipgloss.NewStyle().Foreground(t.Orange).Background(t.Surface)

	row := dim.Render(" ") + accent.Render(fmt.Sprintf("%d days", len(a.view.Sales)))
	if n := len(a.view.Upcoming); n > 0 {
		row += dim.Render(" │ ") + accent.Render(fmt.Sprintf("%d predicted", n))
	}

	var note string
	switch {
	case a.view.Series.Failed():
		note = a.view.Series.Message
	case a.view.StaleNote != "":
		note = a.view.StaleNote
	case a.view.MergeError != "":
		note = a.view.MergeError
	case a.notice != "":
		note = a.notice
	}
	if note != "" {
		row += dim.Render(" │ ") + warn.Render(truncStr(note, w-lipgloss.Width(row)-4))
	}

	return lipgloss.NewStyle().Background(t.Surface).Width(w).Render(row)
}

func (a App) dataAge() string {
	if a.view.FetchedAt.IsZero() {
		return ""
	}
	return cli.FormatAge(a.view.FetchedAt, time.Now())
}

// ─── Commands ───────────────────────────────────────────────────

type tickMsg struct{}

func tickCmd() tea.Cmd {
	return tea.Tick(250*time.Millisecond, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}

// loadSeriesCmd fetches the series in the background.
func (a App) loadSeriesCmd(force bool) tea.Cmd {
	if a.loader == nil {
		return nil
	}
	a.sess.BeginSeries()
	loader := a.loader
	return func() tea.Msg {
		res, err := loader.Load(context.Background())
		return SeriesLoadedMsg{Result: res, Err: err, Force: force}
	}
}

// ─── Helpers ────────────────────────────────────────────────────

func truncStr(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-1]) + "…"
}

func truncateHeight(s string, limit int) string {
	lines := strings.Split(s, "\n")
	if len(lines) <= limit {
		return s
	}
	return strings.Join(lines[:limit], "\n")
}

func padHeight(s string, h int) string {
	lines := strings.Split(s, "\n")
	if len(lines) >= h {
		return s
	}
	return s + strings.Repeat("\n", h-len(lines))
}

// fillLinesWithBackground pads each line to width w with the background color.
func fillLinesWithBackground(s string, w int, bg lipgloss.Color) string {
	lines := strings.Split(s, "\n")

	var result strings.Builder
	for i, line := range lines {
		result.WriteString(lipgloss.PlaceHorizontal(w, lipgloss.Left, line,
			lipgloss.WithWhitespaceBackground(bg)))
		if i < len(lines)-1 {
			result.WriteString("\n")
		}
	}
	return result.String()
}

// ─── Mouse Support ──────────────────────────────────────────────

// tabAtX returns the tab index at column x, or -1 if none.
// Hitboxes follow the widths RenderTabBar produces.
func (a App) tabAtX(x int) int {
	pos := 0
	for i, tab := range components.Tabs {
		tabW := components.TabVisualWidth(tab, i == a.activeTab)
		if x >= pos && x < pos+tabW {
			return i
		}
		pos += tabW
		if i < len(components.Tabs)-1 {
			pos++
		}
	}
	return -1
}

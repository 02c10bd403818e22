package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/theirongolddev/salesdash/internal/config"
	"github.com/theirongolddev/salesdash/internal/logging"
	"github.com/theirongolddev/salesdash/internal/pipeline"
	"github.com/theirongolddev/salesdash/internal/tui"
	"github.com/theirongolddev/salesdash/internal/tui/theme"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Launch the interactive dashboard",
	RunE:  runTUI,
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}

func runTUI(cmd *cobra.Command, _ []string) error {
	path := configPath()
	needSetup := !config.Exists(path)

	cfg, err := loadConfig(cmd)
	if err != nil && needSetup {
		// Nothing usable yet: run the wizard before opening the dashboard.
		if err := runSetup(cmd, nil); err != nil {
			return err
		}
		needSetup = false
		cfg, err = loadConfig(cmd)
	}
	if err != nil {
		return err
	}

	// The terminal belongs to the dashboard; logs go to a file.
	log, closeLog := tuiLogger(cfg)
	defer closeLog()

	rt, err := newRuntime(cmd.Context(), cfg, forecastTimeout(cmd, cfg), log)
	if err != nil {
		return err
	}
	defer rt.Close()

	theme.Active = theme.ForProfile(cfg.Appearance.Theme, termenv.ColorProfile())

	// Force TrueColor so background styling always emits ANSI codes
	lipgloss.SetColorProfile(termenv.TrueColor)

	app := tui.NewApp(tui.Options{
		Session:        rt.session,
		Loader:         rt.loader,
		Predictor:      rt.predictor,
		ForecastOrigin: rt.forecastOrigin,
		Config:         cfg,
		ConfigPath:     path,
		Logger:         log,
		NeedSetup:      needSetup,
	})
	p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(cmd.Context()))

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

func tuiLogger(cfg config.Config) (zerolog.Logger, func()) {
	dir := pipeline.CacheDir()
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return logging.Nop(), func() {}
	}
	//nolint:gosec // log path is under the user's cache directory
	f, err := os.OpenFile(filepath.Join(dir, "tui.log"), os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o600)
	if err != nil {
		return logging.Nop(), func() {}
	}
	return logging.New(logging.Options{Level: cfg.Log.Level, Format: "json", Output: f}), func() { _ = f.Close() }
}

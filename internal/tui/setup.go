package tui

import (
	"errors"
	"net/url"
	"strings"

	"github.com/theirongolddev/salesdash/internal/config"
	"github.com/theirongolddev/salesdash/internal/tui/theme"

	"github.com/charmbracelet/huh"
)

// SetupValues are the fields the setup form edits.
type SetupValues struct {
	Backend     string
	ProjectID   string
	Collection  string
	APIKey      string
	File        string
	ForecastURL string
	Theme       string
}

// SetupValuesFrom seeds the form from an existing config.
func SetupValuesFrom(cfg config.Config) SetupValues {
	return SetupValues{
		Backend:     cfg.Source.Backend,
		ProjectID:   cfg.Firestore.ProjectID,
		Collection:  cfg.Source.Collection,
		File:        cfg.Source.File,
		ForecastURL: cfg.Forecast.URL,
		Theme:       cfg.Appearance.Theme,
	}
}

// Apply writes the form values into cfg. A blank API key keeps the
// current one.
func (v SetupValues) Apply(cfg *config.Config) {
	cfg.Source.Backend = v.Backend
	cfg.Firestore.ProjectID = strings.TrimSpace(v.ProjectID)
	if c := strings.TrimSpace(v.Collection); c != "" {
		cfg.Source.Collection = c
	}
	if k := strings.TrimSpace(v.APIKey); k != "" {
		cfg.Firestore.APIKey = k
	}
	cfg.Source.File = strings.TrimSpace(v.File)
	cfg.Forecast.URL = strings.TrimSpace(v.ForecastURL)
	cfg.Forecast.Enabled = cfg.Forecast.URL != ""
	if v.Theme != "" {
		cfg.Appearance.Theme = v.Theme
	}
}

// NewSetupForm builds the first-run form bound to v.
func NewSetupForm(v *SetupValues) *huh.Form {
	themeOpts := make([]huh.Option[string], 0, len(theme.All))
	for _, name := range theme.Names() {
		themeOpts = append(themeOpts, huh.NewOption(name, name))
	}

	return huh.NewForm(
		huh.NewGroup(
			huh.NewNote().
				Title("Welcome to salesdash").
				Description("Point the dashboard at your sales series and forecast service."),
			huh.NewSelect[string]().
				Title("Series source").
				Options(
					huh.NewOption("Firestore", "firestore"),
					huh.NewOption("Local JSON file", "file"),
				).
				Value(&v.Backend),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Firestore project ID").
				Value(&v.ProjectID).
				Validate(required("project ID")),
			huh.NewInput().
				Title("Collection").
				Placeholder("sales").
				Value(&v.Collection),
			huh.NewInput().
				Title("API key").
				Description("Leave blank to keep the current key or use "+config.EnvFirestoreAPIKey+".").
				EchoMode(huh.EchoModePassword).
				Value(&v.APIKey),
		).WithHideFunc(func() bool { return v.Backend != "firestore" }),
		huh.NewGroup(
			huh.NewInput().
				Title("Series file").
				Description("JSON array or JSON lines of {date, value} objects.").
				Value(&v.File).
				Validate(required("file path")),
		).WithHideFunc(func() bool { return v.Backend != "file" }),
		huh.NewGroup(
			huh.NewInput().
				Title("Forecast endpoint").
				Description("Leave blank to disable predictions.").
				Value(&v.ForecastURL).
				Validate(optionalURL),
			huh.NewSelect[string]().
				Title("Color theme").
				Options(themeOpts...).
				Value(&v.Theme),
		),
	).WithShowHelp(true)
}

func required(what string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return errors.New(what + " is required")
		}
		return nil
	}
}

func optionalURL(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	u, err := url.Parse(s)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.New("enter an http(s) URL")
	}
	return nil
}

// Package config loads, validates and saves salesdash configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Environment variables that override the config file.
const (
	EnvFirestoreAPIKey  = "SALESDASH_FIRESTORE_API_KEY"
	EnvFirestoreProject = "SALESDASH_FIRESTORE_PROJECT"
	EnvForecastURL      = "SALESDASH_FORECAST_URL"
	EnvFirestoreEmu     = "FIRESTORE_EMULATOR_HOST"
)

// Config holds all salesdash configuration.
type Config struct {
	Source     SourceConfig     `toml:"source"`
	Firestore  FirestoreConfig  `toml:"firestore"`
	Forecast   ForecastConfig   `toml:"forecast"`
	Daemon     DaemonConfig     `toml:"daemon"`
	Log        LogConfig        `toml:"log"`
	TUI        TUIConfig        `toml:"tui"`
	Appearance AppearanceConfig `toml:"appearance"`
}

// SourceConfig selects and shapes the series source.
type SourceConfig struct {
	Backend         string `toml:"backend" default:"firestore" validate:"oneof=firestore file cache"`
	Collection      string `toml:"collection" default:"sales" validate:"required"`
	DateField       string `toml:"date_field" default:"date" validate:"required"`
	ValueField      string `toml:"value_field" default:"value" validate:"required"`
	File            string `toml:"file,omitempty" validate:"required_if=Backend file"`
	StrictValues    bool   `toml:"strict_values" default:"true"`
	Duplicates      string `toml:"duplicates" default:"last-wins" validate:"oneof=last-wins first-wins reject"`
	FallbackToCache bool   `toml:"fallback_to_cache" default:"true"`
}

// FirestoreConfig holds Firestore connection settings.
type FirestoreConfig struct {
	ProjectID string `toml:"project_id,omitempty"`
	Database  string `toml:"database" default:"(default)" validate:"required"`
	APIKey    string `toml:"api_key,omitempty"`
	Endpoint  string `toml:"endpoint,omitempty" validate:"omitempty,url"`
	PageSize  int64  `toml:"page_size" default:"300" validate:"gte=1,lte=1000"`
}

// ForecastConfig holds prediction service settings.
type ForecastConfig struct {
	Enabled        bool   `toml:"enabled" default:"true"`
	URL            string `toml:"url" default:"http://127.0.0.1:5000/predict" validate:"omitempty,url"`
	TimeoutSec     int    `toml:"timeout_sec" default:"10" validate:"gte=1,lte=600"`
	DateKey        string `toml:"date_key" default:"date" validate:"required"`
	ValueKey       string `toml:"value_key" default:"value" validate:"required"`
	PredictionsKey string `toml:"predictions_key" default:"predictions" validate:"required"`
}

// Timeout returns the request timeout as a duration.
func (f ForecastConfig) Timeout() time.Duration {
	return time.Duration(f.TimeoutSec) * time.Second
}

// DaemonConfig holds background poller settings.
type DaemonConfig struct {
	Addr         string `toml:"addr" default:"127.0.0.1:8788" validate:"hostname_port"`
	IntervalSec  int    `toml:"interval_sec" default:"60" validate:"gte=2"`
	EventsBuffer int    `toml:"events_buffer" default:"200" validate:"gte=1"`
	LogLevel     string `toml:"log_level" default:"info" validate:"oneof=trace debug info warn error"`
}

// Interval returns the poll interval as a duration.
func (d DaemonConfig) Interval() time.Duration {
	return time.Duration(d.IntervalSec) * time.Second
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `toml:"level" default:"warn" validate:"oneof=trace debug info warn error"`
	Format string `toml:"format" default:"console" validate:"oneof=console json"`
}

// TUIConfig holds dashboard preferences.
type TUIConfig struct {
	AutoRefresh        bool `toml:"auto_refresh"`
	RefreshIntervalSec int  `toml:"refresh_interval_sec" default:"60" validate:"gte=10"`
}

// AppearanceConfig holds theme settings.
type AppearanceConfig struct {
	Theme string `toml:"theme" default:"flexoki-dark"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	var cfg Config
	if err := defaults.Set(&cfg); err != nil {
		panic(fmt.Sprintf("config: invalid defaults: %v", err))
	}
	return cfg
}

// Dir returns the XDG-compliant config directory.
func Dir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "salesdash")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "salesdash")
}

// Path returns the full path to the default config file.
func Path() string {
	return filepath.Join(Dir(), "config.toml")
}

// Load reads the default config file. See LoadFrom.
func Load() (Config, error) {
	return LoadFrom(Path())
}

// LoadFrom reads the config file at path, returning defaults if it doesn't
// exist. A .env file in the working directory is loaded first, then
// environment overrides are applied.
func LoadFrom(path string) (Config, error) {
	_ = godotenv.Load()

	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config: %w", err)
		}
	case !os.IsNotExist(err):
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	ApplyEnv(&cfg)
	return cfg, nil
}

// ApplyEnv overlays environment variables onto cfg.
func ApplyEnv(cfg *Config) {
	if v := os.Getenv(EnvFirestoreAPIKey); v != "" {
		cfg.Firestore.APIKey = v
	}
	if v := os.Getenv(EnvFirestoreProject); v != "" {
		cfg.Firestore.ProjectID = v
	}
	if v := os.Getenv(EnvForecastURL); v != "" {
		cfg.Forecast.URL = v
	}
	if cfg.Firestore.Endpoint == "" {
		cfg.Firestore.Endpoint = emulatorEndpoint(os.Getenv(EnvFirestoreEmu))
	}
}

// emulatorEndpoint turns a FIRESTORE_EMULATOR_HOST value into an endpoint URL.
func emulatorEndpoint(host string) string {
	host = strings.TrimSpace(host)
	if host == "" {
		return ""
	}
	if !strings.Contains(host, "://") {
		host = "http://" + host
	}
	return strings.TrimSuffix(host, "/") + "/"
}

var validate = validator.New()

// Validate checks field constraints and cross-section rules.
func Validate(cfg Config) error {
	var errs []error

	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("validating config: %w", err)
		}
		for _, fe := range verrs {
			errs = append(errs, fieldError(fe))
		}
	}

	if cfg.Source.Backend == "firestore" && strings.TrimSpace(cfg.Firestore.ProjectID) == "" {
		errs = append(errs, fmt.Errorf("firestore.project_id is required when source.backend is firestore (or set %s)", EnvFirestoreProject))
	}
	if cfg.Forecast.Enabled && strings.TrimSpace(cfg.Forecast.URL) == "" {
		errs = append(errs, errors.New("forecast.url is required when forecast.enabled is true"))
	}

	return errors.Join(errs...)
}

// fieldError renders a validator error with the TOML key path.
func fieldError(fe validator.FieldError) error {
	key := tomlPath(fe.Namespace())
	switch fe.Tag() {
	case "required", "required_if":
		return fmt.Errorf("%s is required", key)
	case "oneof":
		return fmt.Errorf("%s must be one of: %s", key, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "url":
		return fmt.Errorf("%s must be a URL", key)
	case "gte":
		return fmt.Errorf("%s must be at least %s", key, fe.Param())
	case "lte":
		return fmt.Errorf("%s must be at most %s", key, fe.Param())
	case "hostname_port":
		return fmt.Errorf("%s must be host:port", key)
	default:
		return fmt.Errorf("%s failed %s validation", key, fe.Tag())
	}
}

var tomlKeys = map[string]string{
	"Source": "source", "Firestore": "firestore", "Forecast": "forecast",
	"Daemon": "daemon", "Log": "log", "TUI": "tui", "Appearance": "appearance",
	"Backend": "backend", "Collection": "collection", "DateField": "date_field",
	"ValueField": "value_field", "File": "file", "Duplicates": "duplicates",
	"ProjectID": "project_id", "Database": "database", "Endpoint": "endpoint",
	"PageSize": "page_size", "URL": "url", "TimeoutSec": "timeout_sec",
	"DateKey": "date_key", "ValueKey": "value_key", "PredictionsKey": "predictions_key",
	"Addr": "addr", "IntervalSec": "interval_sec", "EventsBuffer": "events_buffer",
	"LogLevel": "log_level", "Level": "level", "Format": "format",
	"RefreshIntervalSec": "refresh_interval_sec", "Theme": "theme",
}

func tomlPath(namespace string) string {
	parts := strings.Split(namespace, ".")
	if len(parts) > 0 && parts[0] == "Config" {
		parts = parts[1:]
	}
	for i, p := range parts {
		if k, ok := tomlKeys[p]; ok {
			parts[i] = k
		}
	}
	return strings.Join(parts, ".")
}

// Save writes the config to the default path.
func Save(cfg Config) error {
	return SaveTo(Path(), cfg)
}

// SaveTo writes the config to path.
func SaveTo(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("creating config file: %w", err)
	}
	defer func() { _ = f.Close() }()

	enc := toml.NewEncoder(f)
	return enc.Encode(cfg)
}

// Exists returns true if a config file exists at path.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

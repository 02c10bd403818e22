package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/theirongolddev/salesdash/internal/config"
	"github.com/theirongolddev/salesdash/internal/forecast"
	"github.com/theirongolddev/salesdash/internal/logging"
	"github.com/theirongolddev/salesdash/internal/pipeline"
	"github.com/theirongolddev/salesdash/internal/source"
	"github.com/theirongolddev/salesdash/internal/store"

	"github.com/spf13/cobra"
)

var (
	flagConfig      string
	flagSource      string
	flagFile        string
	flagOffline     bool
	flagNoCache     bool
	flagForecastURL string
	flagTimeout     time.Duration
	flagDuplicates  string
	flagLenient     bool
	flagQuiet       bool
	flagLogLevel    string
	flagLogFormat   string
)

var rootCmd = &cobra.Command{
	Use:          "salesdash",
	Short:        "Sales dashboard with remote forecasts",
	Long:         "Track daily sales from Firestore or a local export, summarize them, and overlay predictions from a forecast service.",
	RunE:         runSummary,
	SilenceUsage: true,
}

// Execute is the main entry point called from main.go.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flagConfig, "config", "c", "", "Config file (default "+config.Path()+")")
	pf.StringVarP(&flagSource, "source", "s", "", "Series source: firestore, file or cache")
	pf.StringVarP(&flagFile, "file", "f", "", "Read the series from a JSON or JSONL file")
	pf.BoolVar(&flagOffline, "offline", false, "Serve series and forecast from the local cache only")
	pf.BoolVar(&flagNoCache, "no-cache", false, "Do not read or write the local cache")
	pf.StringVar(&flagForecastURL, "forecast-url", "", "Forecast endpoint (empty string disables forecasting)")
	pf.DurationVar(&flagTimeout, "timeout", forecast.DefaultTimeout, "Forecast request timeout")
	pf.StringVar(&flagDuplicates, "duplicates", "", "Duplicate date policy: last-wins, first-wins or reject")
	pf.BoolVar(&flagLenient, "lenient", false, "Keep unreadable values as NaN instead of failing")
	pf.BoolVarP(&flagQuiet, "quiet", "q", false, "Only log errors")
	pf.StringVar(&flagLogLevel, "log-level", "", "Log level: trace, debug, info, warn, error")
	pf.StringVar(&flagLogFormat, "log-format", "", "Log format: console or json")
}

func configPath() string {
	if flagConfig != "" {
		return flagConfig
	}
	return config.Path()
}

// loadConfig reads the config file and applies command-line overrides.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.LoadFrom(configPath())
	if err != nil {
		return cfg, err
	}

	flags := cmd.Flags()
	if flags.Changed("file") {
		cfg.Source.File = flagFile
		cfg.Source.Backend = "file"
	}
	if flags.Changed("source") {
		cfg.Source.Backend = flagSource
	}
	if flagOffline {
		cfg.Source.Backend = "cache"
	}
	if flags.Changed("forecast-url") {
		cfg.Forecast.URL = flagForecastURL
		cfg.Forecast.Enabled = flagForecastURL != ""
	}
	if flags.Changed("duplicates") {
		cfg.Source.Duplicates = flagDuplicates
	}
	if flagLenient {
		cfg.Source.StrictValues = false
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = flagLogLevel
	}
	if flags.Changed("log-format") {
		cfg.Log.Format = flagLogFormat
	}
	if flagQuiet {
		cfg.Log.Level = "error"
	}

	if err := config.Validate(cfg); err != nil {
		return cfg, fmt.Errorf("invalid configuration (%s):\n%w", configPath(), err)
	}
	return cfg, nil
}

func forecastTimeout(cmd *cobra.Command, cfg config.Config) time.Duration {
	if cmd.Flags().Changed("timeout") {
		return flagTimeout
	}
	return cfg.Forecast.Timeout()
}

func newLogger(cfg config.Config) zerolog.Logger {
	return logging.New(logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: os.Stderr})
}

// runtime is the wired set of collaborators every command drives.
type runtime struct {
	cfg            config.Config
	log            zerolog.Logger
	session        *pipeline.Session
	loader         *pipeline.Loader
	predictor      forecast.Predictor
	forecastOrigin string
	cache          *store.Cache
}

// Close releases the cache database.
func (r *runtime) Close() {
	if r.cache != nil {
		_ = r.cache.Close()
	}
}

// newRuntime builds the source, cache, loader and predictor from cfg.
func newRuntime(ctx context.Context, cfg config.Config, timeout time.Duration, log zerolog.Logger) (*runtime, error) {
	policy, err := pipeline.ParseDuplicatePolicy(cfg.Source.Duplicates)
	if err != nil {
		return nil, err
	}
	r := &runtime{cfg: cfg, log: log, session: pipeline.NewSession(policy)}

	offline := cfg.Source.Backend == "cache"
	if offline || !flagNoCache {
		c, err := store.Open(pipeline.CachePath())
		switch {
		case err == nil:
			r.cache = c
		case offline:
			return nil, fmt.Errorf("opening cache: %w", err)
		default:
			log.Warn().Err(err).Msg("cache unavailable, continuing without it")
		}
	}

	dec := source.Decoder{
		DateField:  cfg.Source.DateField,
		ValueField: cfg.Source.ValueField,
		Strict:     cfg.Source.StrictValues,
	}

	var (
		src    source.Source
		origin string
	)
	switch cfg.Source.Backend {
	case "file":
		src = source.NewFile(cfg.Source.File, dec)
		origin = "file:" + cfg.Source.File
	case "cache":
		src = r.cache
		origin = store.OriginCache
	default:
		fs, err := source.NewFirestore(ctx, source.FirestoreConfig{
			ProjectID:  cfg.Firestore.ProjectID,
			Database:   cfg.Firestore.Database,
			Collection: cfg.Source.Collection,
			APIKey:     cfg.Firestore.APIKey,
			Endpoint:   cfg.Firestore.Endpoint,
			PageSize:   cfg.Firestore.PageSize,
		}, dec)
		if err != nil {
			r.Close()
			return nil, err
		}
		src = fs
		origin = "firestore:" + cfg.Firestore.ProjectID + "/" + cfg.Source.Collection
	}

	opts := []pipeline.LoaderOption{pipeline.WithLogger(log)}
	if r.cache != nil {
		opts = append(opts, pipeline.WithCache(r.cache, cfg.Source.FallbackToCache))
	}
	r.loader = pipeline.NewLoader(src, origin, opts...)

	switch {
	case offline:
		r.predictor = r.cache
	case cfg.Forecast.Enabled:
		client, err := forecast.NewClient(cfg.Forecast.URL,
			forecast.WithTimeout(timeout),
			forecast.WithWireKeys(forecast.WireKeys{
				Date:        cfg.Forecast.DateKey,
				Value:       cfg.Forecast.ValueKey,
				Predictions: cfg.Forecast.PredictionsKey,
			}),
		)
		if err != nil {
			r.Close()
			return nil, err
		}
		r.predictor = client
		r.forecastOrigin = client.URL()
	}

	return r, nil
}

// setup loads config and wires a runtime for cmd.
func setup(cmd *cobra.Command) (*runtime, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return newRuntime(cmd.Context(), cfg, forecastTimeout(cmd, cfg), newLogger(cfg))
}

// refresh runs one fetch + forecast cycle.
func (r *runtime) refresh(ctx context.Context) (pipeline.View, error) {
	view, err := pipeline.Refresh(ctx, r.session, r.loader, r.predictor, r.forecastOrigin)
	if err != nil {
		return view, fmt.Errorf("%s\n  %w", pipeline.SeriesFailureMessage, err)
	}
	return view, nil
}

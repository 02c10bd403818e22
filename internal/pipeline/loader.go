package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/theirongolddev/salesdash/internal/model"
	"github.com/theirongolddev/salesdash/internal/source"
	"github.com/theirongolddev/salesdash/internal/store"
)

// LoadResult holds the output of one series fetch.
type LoadResult struct {
	Sales     []model.SalesRecord
	Origin    string
	FetchedAt time.Time
	Elapsed   time.Duration
	// Stale is set when the source failed and the cached snapshot was served.
	Stale    bool
	StaleErr error
}

// Loader fetches the series from a source and keeps the local snapshot
// current. When the source fails it can fall back to the snapshot.
type Loader struct {
	src      source.Source
	origin   string
	cache    *store.Cache
	fallback bool
	log      zerolog.Logger
	now      func() time.Time
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithCache writes every successful fetch to c. With fallback set, a failed
// fetch is served from c instead.
func WithCache(c *store.Cache, fallback bool) LoaderOption {
	return func(l *Loader) {
		l.cache = c
		l.fallback = fallback
	}
}

// WithLogger sets the loader's logger.
func WithLogger(log zerolog.Logger) LoaderOption {
	return func(l *Loader) { l.log = log }
}

// NewLoader creates a loader for src. origin labels where records came from.
func NewLoader(src source.Source, origin string, opts ...LoaderOption) *Loader {
	l := &Loader{src: src, origin: origin, log: zerolog.Nop(), now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Origin returns the label of the primary source.
func (l *Loader) Origin() string { return l.origin }

// Load fetches the series once.
func (l *Loader) Load(ctx context.Context) (*LoadResult, error) {
	start := l.now()
	sales, err := l.src.Fetch(ctx)
	elapsed := l.now().Sub(start)

	if err == nil {
		res := &LoadResult{Sales: sales, Origin: l.origin, FetchedAt: l.now(), Elapsed: elapsed}
		l.log.Debug().Str("origin", l.origin).Int("records", len(sales)).Dur("elapsed", elapsed).Msg("series fetched")
		if l.cache != nil && l.origin != store.OriginCache {
			if cerr := l.cache.ReplaceSales(sales, l.origin, res.FetchedAt); cerr != nil {
				l.log.Warn().Err(cerr).Msg("writing series snapshot")
			}
		}
		return res, nil
	}

	l.log.Error().Err(err).Str("origin", l.origin).Msg("series fetch failed")

	if !l.fallback || l.cache == nil || l.origin == store.OriginCache || errors.Is(err, context.Canceled) {
		return nil, err
	}

	meta, merr := l.cache.SalesMeta()
	if merr != nil {
		return nil, err
	}
	cached, cerr := l.cache.LoadSales(ctx)
	if cerr != nil {
		l.log.Warn().Err(cerr).Msg("reading series snapshot")
		return nil, err
	}

	l.log.Warn().Time("snapshot", meta.FetchedAt).Msg("serving cached series snapshot")
	return &LoadResult{
		Sales:     cached,
		Origin:    store.OriginCache,
		FetchedAt: meta.FetchedAt,
		Elapsed:   elapsed,
		Stale:     true,
		StaleErr:  err,
	}, nil
}

// SaveForecast stores a successful forecast so offline runs can replay it.
func (l *Loader) SaveForecast(records []model.ForecastRecord, origin string) {
	if l.cache == nil {
		return
	}
	if err := l.cache.ReplaceForecast(records, origin, l.now()); err != nil {
		l.log.Warn().Err(err).Msg("writing forecast snapshot")
	}
}

// CacheDir returns the platform-appropriate cache directory.
func CacheDir() string {
	if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
		return filepath.Join(xdg, "salesdash")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".cache", "salesdash")
}

// CachePath returns the full path to the cache database.
func CachePath() string {
	return filepath.Join(CacheDir(), "sales.db")
}

// StaleNote describes a stale result for display, or "" when fresh.
func (r *LoadResult) StaleNote() string {
	if r == nil || !r.Stale {
		return ""
	}
	return fmt.Sprintf("series source unavailable; showing snapshot from %s", r.FetchedAt.Local().Format("2006-01-02 15:04"))
}

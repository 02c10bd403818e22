package pipeline

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/theirongolddev/salesdash/internal/forecast"
	"github.com/theirongolddev/salesdash/internal/model"
)

// SeriesFailureMessage is shown when the series cannot be fetched.
const SeriesFailureMessage = "Could not load sales data (check the series source)."

// View is the dashboard state derived from the current series and forecast.
type View struct {
	Sales      []model.SalesRecord    `json:"sales"`
	Merged     []model.MergedPoint    `json:"merged"`
	KPIs       model.KPIs             `json:"kpis"`
	Upcoming   []model.ForecastRecord `json:"upcoming"`
	Series     model.Status           `json:"series"`
	Forecast   model.Status           `json:"forecast"`
	MergeError string                 `json:"merge_error,omitempty"`
	Origin     string                 `json:"origin,omitempty"`
	StaleNote  string                 `json:"stale_note,omitempty"`
	FetchedAt  time.Time              `json:"fetched_at"`
}

// BuildView merges and summarizes already loaded data.
func BuildView(sales []model.SalesRecord, upcoming []model.ForecastRecord, policy DuplicatePolicy) View {
	v := View{
		Sales:    sales,
		KPIs:     ComputeKPIs(sales),
		Upcoming: upcoming,
	}
	merged, err := Merge(sales, upcoming, policy)
	if err != nil {
		v.MergeError = err.Error()
	}
	v.Merged = merged
	return v
}

// Session owns the live series and the forecast tracker for one dashboard.
// It is safe for concurrent use.
type Session struct {
	policy  DuplicatePolicy
	tracker *forecast.Tracker

	mu        sync.RWMutex
	sales     []model.SalesRecord
	loaded    bool
	series    model.Status
	origin    string
	staleNote string
	fetchedAt time.Time
	now       func() time.Time
}

// NewSession creates an empty session.
func NewSession(policy DuplicatePolicy) *Session {
	return &Session{policy: policy, tracker: forecast.NewTracker(), now: time.Now}
}

// Policy returns the duplicate-date policy.
func (s *Session) Policy() DuplicatePolicy { return s.policy }

// Tracker returns the forecast tracker.
func (s *Session) Tracker() *forecast.Tracker { return s.tracker }

// BeginSeries marks a series fetch in flight. Current data stays visible.
func (s *Session) BeginSeries() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.series.Generation++
	s.series.State = model.StateLoading
	s.series.Message = ""
	s.series.UpdatedAt = s.now()
	return s.series.Generation
}

// SeriesLoaded installs a fetched series. It reports whether the series
// differs from the previous one (the first load always differs).
func (s *Session) SeriesLoaded(res *LoadResult) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	changed := !s.loaded || !sameSeries(s.sales, res.Sales)

	s.sales = append([]model.SalesRecord(nil), res.Sales...)
	s.loaded = true
	s.origin = res.Origin
	s.staleNote = res.StaleNote()
	s.fetchedAt = res.FetchedAt
	s.series.State = model.StateSucceeded
	s.series.Message = ""
	s.series.UpdatedAt = s.now()
	return changed
}

// SeriesFailed records a failed fetch. The previous series, if any, is kept.
func (s *Session) SeriesFailed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.series.State = model.StateFailed
	s.series.Message = SeriesFailureMessage
	s.series.UpdatedAt = s.now()
}

// Sales returns a copy of the current series.
func (s *Session) Sales() []model.SalesRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.SalesRecord(nil), s.sales...)
}

// View derives the dashboard view from the current state.
func (s *Session) View() View {
	s.mu.RLock()
	sales := append([]model.SalesRecord(nil), s.sales...)
	series := s.series
	origin, note, fetched := s.origin, s.staleNote, s.fetchedAt
	s.mu.RUnlock()

	v := BuildView(sales, s.tracker.Records(), s.policy)
	v.Series = series
	v.Forecast = s.tracker.Status()
	v.Origin = origin
	v.StaleNote = note
	v.FetchedAt = fetched
	return v
}

// sameSeries compares two series, treating NaN values as equal.
func sameSeries(a, b []model.SalesRecord) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Date != b[i].Date {
			return false
		}
		av, bv := a[i].Value, b[i].Value
		if av != bv && !(math.IsNaN(av) && math.IsNaN(bv)) {
			return false
		}
	}
	return true
}

// ShouldForecast reports whether a forecast request is due for a series
// that has just been loaded.
func ShouldForecast(changed bool, sales []model.SalesRecord) bool {
	return changed && len(sales) > 0
}

// Refresh runs one synchronous fetch and, when due, one forecast request.
// predictor may be nil, in which case the forecast stays idle.
// The returned error is the series fetch error; forecast failures are
// reflected only in the view's forecast status.
func Refresh(ctx context.Context, sess *Session, loader *Loader, predictor forecast.Predictor, origin string) (View, error) {
	sess.BeginSeries()
	res, err := loader.Load(ctx)
	if err != nil {
		sess.SeriesFailed()
		return sess.View(), err
	}

	changed := sess.SeriesLoaded(res)
	if predictor != nil && ShouldForecast(changed, res.Sales) {
		applied, ferr := sess.Tracker().Run(ctx, predictor, res.Sales)
		if applied && ferr == nil && origin != "" {
			loader.SaveForecast(sess.Tracker().Records(), origin)
		}
		if ferr != nil {
			loader.log.Error().Err(ferr).Msg("forecast request failed")
		}
	}

	return sess.View(), nil
}

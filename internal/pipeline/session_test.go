package pipeline

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theirongolddev/salesdash/internal/forecast"
	"github.com/theirongolddev/salesdash/internal/model"
	"github.com/theirongolddev/salesdash/internal/source"
	"github.com/theirongolddev/salesdash/internal/store"
)

type fakePredictor struct {
	calls   atomic.Int32
	records []model.ForecastRecord
	err     error
}

func (p *fakePredictor) Predict(_ context.Context, _ []model.SalesRecord) ([]model.ForecastRecord, error) {
	p.calls.Add(1)
	return p.records, p.err
}

func staticSource(recs []model.SalesRecord, err error) source.Source {
	return source.Func(func(context.Context) ([]model.SalesRecord, error) {
		return recs, err
	})
}

var tenDays = []model.SalesRecord{
	{Date: "2024-01-01", Value: 120}, {Date: "2024-01-02", Value: 150},
	{Date: "2024-01-03", Value: 90}, {Date: "2024-01-04", Value: 180},
	{Date: "2024-01-05", Value: 200}, {Date: "2024-01-06", Value: 170},
	{Date: "2024-01-07", Value: 210}, {Date: "2024-01-08", Value: 95},
	{Date: "2024-01-09", Value: 130}, {Date: "2024-01-10", Value: 175},
}

func TestRefreshWithForecast(t *testing.T) {
	pred := &fakePredictor{records: []model.ForecastRecord{
		{Date: "2024-01-10", Value: 170}, {Date: "2024-01-11", Value: 180},
	}}
	sess := NewSession(LastWins)
	loader := NewLoader(staticSource(tenDays, nil), "file")

	v, err := Refresh(context.Background(), sess, loader, pred, "test")
	require.NoError(t, err)

	assert.Equal(t, model.StateSucceeded, v.Series.State)
	assert.Equal(t, model.StateSucceeded, v.Forecast.State)
	assert.Len(t, v.Upcoming, 2)
	require.Len(t, v.Merged, 11)
	assert.True(t, v.Merged[9].HasActual())
	assert.True(t, v.Merged[9].HasPredicted())
	assert.False(t, v.Merged[10].HasActual())
	assert.InDelta(t, 45.8333333, v.KPIs.Trend, 1e-6)
	assert.Equal(t, "file", v.Origin)
}

func TestRefreshForecastFailureIsolated(t *testing.T) {
	pred := &fakePredictor{err: errors.New("connection refused")}
	sess := NewSession(LastWins)
	loader := NewLoader(staticSource(tenDays, nil), "file")

	v, err := Refresh(context.Background(), sess, loader, pred, "")
	require.NoError(t, err)

	assert.True(t, v.Forecast.Failed())
	assert.Equal(t, forecast.FailureMessage, v.Forecast.Message)
	assert.Empty(t, v.Upcoming)
	assert.Len(t, v.Merged, len(tenDays))
	assert.Equal(t, ComputeKPIs(tenDays), v.KPIs)
	assert.InDelta(t, 1520.0, v.KPIs.Total, 1e-9)
}

func TestRefreshSkipsForecastForEmptyOrUnchanged(t *testing.T) {
	pred := &fakePredictor{}
	sess := NewSession(LastWins)

	v, err := Refresh(context.Background(), sess, NewLoader(staticSource(nil, nil), "file"), pred, "")
	require.NoError(t, err)
	assert.EqualValues(t, 0, pred.calls.Load())
	assert.Equal(t, model.StateIdle, v.Forecast.State)
	assert.Equal(t, model.KPIs{}, v.KPIs)

	loader := NewLoader(staticSource(tenDays, nil), "file")
	_, err = Refresh(context.Background(), sess, loader, pred, "")
	require.NoError(t, err)
	assert.EqualValues(t, 1, pred.calls.Load())

	// Same content again: no new request.
	_, err = Refresh(context.Background(), sess, loader, pred, "")
	require.NoError(t, err)
	assert.EqualValues(t, 1, pred.calls.Load())
}

func TestRefreshSeriesFailure(t *testing.T) {
	pred := &fakePredictor{}
	sess := NewSession(LastWins)

	v, err := Refresh(context.Background(), sess, NewLoader(staticSource(nil, errors.New("permission denied")), "firestore"), pred, "")
	require.Error(t, err)
	assert.True(t, v.Series.Failed())
	assert.Equal(t, SeriesFailureMessage, v.Series.Message)
	assert.EqualValues(t, 0, pred.calls.Load())
	assert.Equal(t, model.KPIs{}, v.KPIs)
}

func TestRefreshRejectedDuplicatesKeepKPIs(t *testing.T) {
	sales := []model.SalesRecord{{Date: "2024-01-01", Value: 1}, {Date: "2024-01-01", Value: 3}}
	sess := NewSession(RejectDuplicates)

	v, err := Refresh(context.Background(), sess, NewLoader(staticSource(sales, nil), "file"), nil, "")
	require.NoError(t, err)
	assert.Contains(t, v.MergeError, "duplicate sales date")
	assert.Nil(t, v.Merged)
	assert.Equal(t, 4.0, v.KPIs.Total)
}

func TestLoaderCacheFallback(t *testing.T) {
	cache, err := store.Open(filepath.Join(t.TempDir(), "sales.db"))
	require.NoError(t, err)
	defer func() { _ = cache.Close() }()

	ok := NewLoader(staticSource(tenDays, nil), "firestore", WithCache(cache, true))
	res, err := ok.Load(context.Background())
	require.NoError(t, err)
	assert.False(t, res.Stale)

	failing := NewLoader(staticSource(nil, errors.New("unavailable")), "firestore", WithCache(cache, true))
	res, err = failing.Load(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Stale)
	assert.Equal(t, store.OriginCache, res.Origin)
	assert.Equal(t, tenDays, res.Sales)
	assert.NotEmpty(t, res.StaleNote())

	noFallback := NewLoader(staticSource(nil, errors.New("unavailable")), "firestore", WithCache(cache, false))
	_, err = noFallback.Load(context.Background())
	require.Error(t, err)
}

func TestLoaderSavesForecast(t *testing.T) {
	cache, err := store.Open(filepath.Join(t.TempDir(), "sales.db"))
	require.NoError(t, err)
	defer func() { _ = cache.Close() }()

	pred := &fakePredictor{records: []model.ForecastRecord{{Date: "2024-01-11", Value: 180}}}
	loader := NewLoader(staticSource(tenDays, nil), "file", WithCache(cache, true))
	_, err = Refresh(context.Background(), NewSession(LastWins), loader, pred, "http://model/predict")
	require.NoError(t, err)

	replayed, err := cache.Predict(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, pred.records, replayed)
}

func TestSameSeriesNaN(t *testing.T) {
	a := []model.SalesRecord{{Date: "2024-01-01", Value: math.NaN()}}
	b := []model.SalesRecord{{Date: "2024-01-01", Value: math.NaN()}}
	assert.True(t, sameSeries(a, b))
	assert.False(t, sameSeries(a, nil))
	assert.False(t, sameSeries(a, []model.SalesRecord{{Date: "2024-01-01", Value: 1}}))
}

func TestViewKeepsSeriesAcrossFailure(t *testing.T) {
	sess := NewSession(LastWins)
	changed := sess.SeriesLoaded(&LoadResult{Sales: tenDays, Origin: "file"})
	assert.True(t, changed)

	sess.BeginSeries()
	assert.True(t, sess.View().Series.Loading())

	sess.SeriesFailed()
	v := sess.View()
	assert.True(t, v.Series.Failed())
	assert.Len(t, v.Sales, len(tenDays))
}

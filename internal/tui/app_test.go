package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theirongolddev/salesdash/internal/config"
	"github.com/theirongolddev/salesdash/internal/model"
	"github.com/theirongolddev/salesdash/internal/pipeline"
	"github.com/theirongolddev/salesdash/internal/tui/components"
)

type predictFunc func(ctx context.Context, sales []model.SalesRecord) ([]model.ForecastRecord, error)

func (f predictFunc) Predict(ctx context.Context, sales []model.SalesRecord) ([]model.ForecastRecord, error) {
	return f(ctx, sales)
}

func noopPredictor() predictFunc {
	return func(context.Context, []model.SalesRecord) ([]model.ForecastRecord, error) { return nil, nil }
}

func tenDays() []model.SalesRecord {
	vals := []float64{120, 150, 90, 210, 180, 130, 160, 140, 165, 175}
	out := make([]model.SalesRecord, len(vals))
	for i, v := range vals {
		out[i] = model.SalesRecord{Date: fmt.Sprintf("2024-01-%02d", i+1), Value: v}
	}
	return out
}

func newTestApp() App {
	return NewApp(Options{
		Session:   pipeline.NewSession(pipeline.LastWins),
		Predictor: noopPredictor(),
		Config:    config.DefaultConfig(),
	})
}

func update(t *testing.T, a App, msg tea.Msg) (App, tea.Cmd) {
	t.Helper()
	m, cmd := a.Update(msg)
	next, ok := m.(App)
	require.True(t, ok)
	return next, cmd
}

func loaded(sales []model.SalesRecord) SeriesLoadedMsg {
	return SeriesLoadedMsg{Result: &pipeline.LoadResult{Sales: sales, Origin: "test"}}
}

func TestTabAtXMatchesTabWidths(t *testing.T) {
	n := len(components.Tabs)
	for active := 0; active < n; active++ {
		a := App{activeTab: active}
		pos := 0
		for i, tab := range components.Tabs {
			w := len(tab.Name) + 2 // horizontal padding in tab renderer
			assert.Equal(t, i, a.tabAtX(pos+w/2), "active=%d", active)
			pos += w + 1
		}
		assert.Equal(t, -1, a.tabAtX(pos+50))
	}
}

func TestSeriesLoadStartsForecast(t *testing.T) {
	a := newTestApp()
	a, cmd := update(t, a, loaded(tenDays()))

	require.NotNil(t, cmd)
	assert.True(t, a.loaded)
	assert.True(t, a.view.Forecast.Loading())
	assert.Equal(t, 1520.0, a.view.KPIs.Total)

	gen := a.sess.Tracker().Status().Generation
	recs := []model.ForecastRecord{{Date: "2024-01-11", Value: 181.5}}
	a, _ = update(t, a, ForecastDoneMsg{Gen: gen, Records: recs})

	assert.Equal(t, model.StateSucceeded, a.view.Forecast.State)
	assert.Equal(t, recs, a.view.Upcoming)
	require.Len(t, a.view.Merged, 11)
	assert.True(t, a.view.Merged[10].HasPredicted())
	assert.False(t, a.view.Merged[10].HasActual())
}

func TestSupersededForecastIsDiscarded(t *testing.T) {
	a := newTestApp()
	a, _ = update(t, a, loaded(tenDays()))
	first := a.sess.Tracker().Status().Generation

	changed := tenDays()
	changed[9].Value = 999
	a, _ = update(t, a, loaded(changed))
	require.Equal(t, first+1, a.sess.Tracker().Status().Generation)

	a, _ = update(t, a, ForecastDoneMsg{Gen: first, Records: []model.ForecastRecord{{Date: "2024-01-11", Value: 1}}})
	assert.Empty(t, a.view.Upcoming)
	assert.True(t, a.view.Forecast.Loading())
}

func TestUnchangedSeriesSkipsForecastUnlessForced(t *testing.T) {
	a := newTestApp()
	a, _ = update(t, a, loaded(tenDays()))
	a, _ = update(t, a, ForecastDoneMsg{Gen: 1})

	a, _ = update(t, a, loaded(tenDays()))
	assert.Equal(t, uint64(1), a.sess.Tracker().Status().Generation)

	msg := loaded(tenDays())
	msg.Force = true
	a, _ = update(t, a, msg)
	assert.Equal(t, uint64(2), a.sess.Tracker().Status().Generation)
}

func TestEmptySeriesNeverForecasts(t *testing.T) {
	a := newTestApp()
	a, _ = update(t, a, loaded(nil))
	assert.Equal(t, uint64(0), a.sess.Tracker().Status().Generation)
	assert.Equal(t, model.KPIs{}, a.view.KPIs)
}

func TestForecastFailureKeepsKPIs(t *testing.T) {
	a := newTestApp()
	a, _ = update(t, a, loaded(tenDays()))
	a, _ = update(t, a, ForecastDoneMsg{Gen: 1, Err: errors.New("connection refused")})

	assert.True(t, a.view.Forecast.Failed())
	assert.Contains(t, a.view.Forecast.Message, "Could not fetch predictions")
	assert.Equal(t, 1520.0, a.view.KPIs.Total)
	assert.Len(t, a.view.Merged, 10)
}

func TestSeriesFailureKeepsPreviousData(t *testing.T) {
	a := newTestApp()
	a, _ = update(t, a, loaded(tenDays()))
	a, _ = update(t, a, SeriesLoadedMsg{Err: errors.New("unavailable")})

	assert.True(t, a.view.Series.Failed())
	assert.Equal(t, pipeline.SeriesFailureMessage, a.view.Series.Message)
	assert.Len(t, a.view.Sales, 10)
}

func TestDetailScrollClamps(t *testing.T) {
	var d detailState
	d.scroll(-3, 10)
	assert.Equal(t, 0, d.offset)
	d.scroll(25, 10)
	assert.Equal(t, 9, d.offset)
	d.clamp(4)
	assert.Equal(t, 3, d.offset)
	d.clamp(0)
	assert.Equal(t, 0, d.offset)
}

func TestKeysSwitchTabs(t *testing.T) {
	a := newTestApp()
	a, _ = update(t, a, loaded(tenDays()))

	a, _ = update(t, a, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("f")})
	assert.Equal(t, tabForecast, a.activeTab)
	a, _ = update(t, a, tea.KeyMsg{Type: tea.KeyRight})
	assert.Equal(t, tabOverview, a.activeTab)
	a, _ = update(t, a, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("d")})
	assert.Equal(t, tabDetail, a.activeTab)
}

func TestViewRendersDashboard(t *testing.T) {
	a := newTestApp()
	a, _ = update(t, a, tea.WindowSizeMsg{Width: 140, Height: 45})
	a, _ = update(t, a, loaded(tenDays()))

	out := a.View()
	assert.Contains(t, out, "Overview")
	assert.Contains(t, out, "Total Sales")
	assert.Contains(t, out, "1,520")

	a.width = 60
	assert.True(t, strings.Contains(a.View(), "too narrow"))
}

func TestSetupValuesApply(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Firestore.APIKey = "existing"

	v := SetupValuesFrom(cfg)
	v.Backend = "file"
	v.File = " ./sales.json "
	v.ForecastURL = ""
	v.Theme = "tokyo-night"
	v.Apply(&cfg)

	assert.Equal(t, "file", cfg.Source.Backend)
	assert.Equal(t, "./sales.json", cfg.Source.File)
	assert.Equal(t, "existing", cfg.Firestore.APIKey)
	assert.False(t, cfg.Forecast.Enabled)
	assert.Equal(t, "tokyo-night", cfg.Appearance.Theme)
	assert.NoError(t, config.Validate(cfg))
}

func TestOptionalURL(t *testing.T) {
	assert.NoError(t, optionalURL(""))
	assert.NoError(t, optionalURL("http://localhost:5000/predict"))
	assert.Error(t, optionalURL("localhost:5000"))
	assert.Error(t, optionalURL("ftp://host/x"))
}

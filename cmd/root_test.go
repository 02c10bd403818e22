package cmd

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theirongolddev/salesdash/internal/config"
	"github.com/theirongolddev/salesdash/internal/model"
	"github.com/theirongolddev/salesdash/internal/store"
)

func TestMaskAPIKey(t *testing.T) {
	assert.Equal(t, "****", maskAPIKey(""))
	assert.Equal(t, "****", maskAPIKey("abcd"))
	assert.Equal(t, "abcd...", maskAPIKey("abcdefgh"))
	assert.Equal(t, "AIzaSyAB...wxyz", maskAPIKey("AIzaSyAB0123456789wxyz"))
}

func TestRuntimeFileThenOffline(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", t.TempDir())

	dir := t.TempDir()
	path := filepath.Join(dir, "sales.json")
	require.NoError(t, os.WriteFile(path, []byte(`[
		{"date": "2024-01-01", "value": 100},
		{"date": "2024-01-02", "value": 150},
		{"date": "2024-01-03", "value": 90}
	]`), 0o600))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"predictions":[{"date":"2024-01-04","value":120},{"date":"2024-01-05","value":125}]}`))
	}))
	defer srv.Close()

	cfg := config.DefaultConfig()
	cfg.Source.Backend = "file"
	cfg.Source.File = path
	cfg.Forecast.URL = srv.URL
	cfg.Forecast.Enabled = true
	ctx := context.Background()

	rt, err := newRuntime(ctx, cfg, cfg.Forecast.Timeout(), zerolog.Nop())
	require.NoError(t, err)
	view, err := rt.refresh(ctx)
	rt.Close()
	require.NoError(t, err)

	assert.Equal(t, "file:"+path, view.Origin)
	assert.Equal(t, 340.0, view.KPIs.Total)
	assert.Equal(t, model.StateSucceeded, view.Forecast.State)
	require.Len(t, view.Upcoming, 2)
	assert.Len(t, view.Merged, 5)

	cfg.Source.Backend = store.OriginCache
	rt, err = newRuntime(ctx, cfg, cfg.Forecast.Timeout(), zerolog.Nop())
	require.NoError(t, err)
	defer rt.Close()
	view, err = rt.refresh(ctx)
	require.NoError(t, err)

	assert.Equal(t, store.OriginCache, view.Origin)
	assert.Equal(t, 340.0, view.KPIs.Total)
	assert.Equal(t, model.StateSucceeded, view.Forecast.State)
	require.Len(t, view.Upcoming, 2)
	assert.Equal(t, "2024-01-04", view.Upcoming[0].Date)
}

func TestRuntimeOfflineWithoutSnapshot(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", t.TempDir())

	cfg := config.DefaultConfig()
	cfg.Source.Backend = store.OriginCache
	rt, err := newRuntime(context.Background(), cfg, cfg.Forecast.Timeout(), zerolog.Nop())
	require.NoError(t, err)
	defer rt.Close()

	view, err := rt.refresh(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrNoSnapshot)
	assert.Equal(t, model.StateFailed, view.Series.State)
}

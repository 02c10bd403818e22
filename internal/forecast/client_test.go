package forecast

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theirongolddev/salesdash/internal/model"
)

var sampleSales = []model.SalesRecord{
	{Date: "2024-01-01", Value: 120},
	{Date: "2024-01-02", Value: 150},
}

func TestPredictRoundTrip(t *testing.T) {
	var got []map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		_, _ = w.Write([]byte(`{"predictions":[{"date":"2024-01-03","value":160},{"date":"2024-01-04","value":"171.5"}]}`))
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL)
	require.NoError(t, err)

	recs, err := c.Predict(context.Background(), sampleSales)
	require.NoError(t, err)
	assert.Equal(t, []model.ForecastRecord{
		{Date: "2024-01-03", Value: 160},
		{Date: "2024-01-04", Value: 171.5},
	}, recs)

	require.Len(t, got, 2)
	assert.Equal(t, "2024-01-01", got[0]["date"])
	assert.Equal(t, 120.0, got[0]["value"])
}

func TestPredictCustomWireKeys(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var items []map[string]any
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &items))
		assert.Contains(t, items[0], "fecha")
		assert.Contains(t, items[0], "ventas")
		_, _ = w.Write([]byte(`{"predicciones":[{"fecha":"2024-01-03","ventas":1}]}`))
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, WithWireKeys(WireKeys{Date: "fecha", Value: "ventas", Predictions: "predicciones"}))
	require.NoError(t, err)

	recs, err := c.Predict(context.Background(), sampleSales)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "2024-01-03", recs[0].Date)
}

func TestPredictMissingKeyIsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL)
	require.NoError(t, err)
	recs, err := c.Predict(context.Background(), sampleSales)
	require.NoError(t, err)
	assert.NotNil(t, recs)
	assert.Empty(t, recs)
}

func TestPredictNonNumericValueIsNaN(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"predictions":[{"date":"2024-01-03","value":"soon"}]}`))
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL)
	require.NoError(t, err)
	recs, err := c.Predict(context.Background(), sampleSales)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.True(t, math.IsNaN(recs[0].Value))
}

func TestPredictOversizeResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"predictions":[],"pad":"`))
		_, _ = w.Write([]byte(strings.Repeat("x", maxBodySize)))
		_, _ = w.Write([]byte(`"}`))
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL)
	require.NoError(t, err)
	_, err = c.Predict(context.Background(), sampleSales)
	require.ErrorIs(t, err, ErrMalformedResponse)
	assert.Contains(t, err.Error(), "response larger than")
}

func TestPredictErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		wantErr error
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
			wantErr: ErrUnexpectedStatus,
		},
		{
			name: "not found",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusNotFound)
			},
			wantErr: ErrUnexpectedStatus,
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`<html>`))
			},
			wantErr: ErrMalformedResponse,
		},
		{
			name: "predictions not a list",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"predictions":"later"}`))
			},
			wantErr: ErrMalformedResponse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			c, err := NewClient(srv.URL)
			require.NoError(t, err)
			_, err = c.Predict(context.Background(), sampleSales)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestPredictTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c, err := NewClient(srv.URL, WithTimeout(50*time.Millisecond))
	require.NoError(t, err)

	start := time.Now()
	_, err = c.Predict(context.Background(), sampleSales)
	require.ErrorIs(t, err, ErrTimeout)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestPredictCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.Predict(ctx, sampleSales)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestNewClientRejectsBadURL(t *testing.T) {
	for _, u := range []string{"", "localhost:5000", "ftp://x/predict", "http://"} {
		_, err := NewClient(u)
		assert.Error(t, err, u)
	}
}

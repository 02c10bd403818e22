package source

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

func newFirestoreServer(t *testing.T, pages []string) (*httptest.Server, *[]*http.Request) {
	t.Helper()
	var seen []*http.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r)
		if !strings.HasSuffix(r.URL.Path, "/documents/sales") {
			http.NotFound(w, r)
			return
		}
		page := 0
		if tok := r.URL.Query().Get("pageToken"); tok != "" {
			_, _ = fmt.Sscanf(tok, "page-%d", &page)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(pages[page]))
	}))
	t.Cleanup(srv.Close)
	return srv, &seen
}

func newTestFirestore(t *testing.T, srv *httptest.Server, dec Decoder) *Firestore {
	t.Helper()
	fs, err := NewFirestore(context.Background(), FirestoreConfig{
		ProjectID:  "demo",
		Collection: "sales",
		Endpoint:   srv.URL + "/",
		PageSize:   2,
	}, dec, option.WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	return fs
}

func TestFirestoreFetchPages(t *testing.T) {
	srv, seen := newFirestoreServer(t, []string{
		`{"documents":[
			{"name":"a","fields":{"date":{"stringValue":"2024-01-01"},"value":{"integerValue":"120"}}},
			{"name":"b","fields":{"date":{"stringValue":"2024-01-02"},"value":{"doubleValue":150.5}}}
		],"nextPageToken":"page-1"}`,
		`{"documents":[
			{"name":"c","fields":{"date":{"timestampValue":"2024-01-03T00:00:00Z"},"value":{"stringValue":"90"}}}
		]}`,
	})

	recs, err := newTestFirestore(t, srv, DefaultDecoder()).Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, recs, 3)

	assert.Equal(t, "2024-01-01", recs[0].Date)
	assert.Equal(t, 120.0, recs[0].Value)
	assert.Equal(t, 150.5, recs[1].Value)
	assert.Equal(t, "2024-01-03", recs[2].Date)
	assert.Equal(t, 90.0, recs[2].Value)

	require.Len(t, *seen, 2)
	q := (*seen)[0].URL.Query()
	assert.Equal(t, "date asc", q.Get("orderBy"))
	assert.Equal(t, "2", q.Get("pageSize"))
}

func TestFirestoreStrictRejectsMissingValue(t *testing.T) {
	srv, _ := newFirestoreServer(t, []string{
		`{"documents":[
			{"name":"a","fields":{"date":{"stringValue":"2024-01-01"},"value":{"integerValue":"1"}}},
			{"name":"b","fields":{"date":{"stringValue":"2024-01-02"}}}
		]}`,
	})

	_, err := newTestFirestore(t, srv, DefaultDecoder()).Fetch(context.Background())
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, 1, verr.Index)
}

func TestFirestoreServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":{"code":403,"message":"denied"}}`, http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := newTestFirestore(t, srv, DefaultDecoder()).Fetch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listing sales")
}

func TestNewFirestoreRequiresProject(t *testing.T) {
	_, err := NewFirestore(context.Background(), FirestoreConfig{Collection: "sales"}, DefaultDecoder())
	require.Error(t, err)
}

func TestFirestoreStrictRejectsBlankAndBoolean(t *testing.T) {
	tests := []struct {
		name  string
		value string
		raw   string
	}{
		{"blank string", `{"stringValue":""}`, ""},
		{"boolean false", `{"booleanValue":false}`, `{"booleanValue":false}`},
		{"boolean true", `{"booleanValue":true}`, `{"booleanValue":true}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newFirestoreServer(t, []string{
				`{"documents":[{"name":"a","fields":{"date":{"stringValue":"2024-01-01"},"value":` + tt.value + `}}]}`,
			})

			recs, err := newTestFirestore(t, srv, DefaultDecoder()).Fetch(context.Background())
			assert.Nil(t, recs)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, 0, verr.Index)
			assert.Equal(t, "value", verr.Field)
			assert.Equal(t, tt.raw, verr.Raw)
			assert.Equal(t, ErrNotNumeric.Error(), verr.Reason)
		})
	}
}

func TestFirestoreZeroValues(t *testing.T) {
	srv, _ := newFirestoreServer(t, []string{
		`{"documents":[
			{"name":"a","fields":{"date":{"stringValue":"2024-01-01"},"value":{"integerValue":"0"}}},
			{"name":"b","fields":{"date":{"stringValue":"2024-01-02"},"value":{"doubleValue":0}}},
			{"name":"c","fields":{"date":{"stringValue":"2024-01-03"},"value":{"stringValue":"0"}}}
		]}`,
	})

	recs, err := newTestFirestore(t, srv, DefaultDecoder()).Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, recs, 3)
	for _, r := range recs {
		assert.Equal(t, 0.0, r.Value, r.Date)
	}
}

func TestFirestoreLenientBlankIsNaN(t *testing.T) {
	srv, _ := newFirestoreServer(t, []string{
		`{"documents":[
			{"name":"a","fields":{"date":{"stringValue":"2024-01-01"},"value":{"stringValue":""}}},
			{"name":"b","fields":{"date":{"stringValue":"2024-01-02"},"value":{"booleanValue":false}}}
		]}`,
	})

	dec := DefaultDecoder()
	dec.Strict = false
	recs, err := newTestFirestore(t, srv, dec).Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.True(t, math.IsNaN(recs[0].Value))
	assert.True(t, math.IsNaN(recs[1].Value))
}

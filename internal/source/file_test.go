package source

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestFileJSONArray(t *testing.T) {
	path := writeFile(t, "sales.json", `[
		{"date": "2024-01-03", "value": 90},
		{"date": "2024-01-01", "value": "120"},
		{"date": "2024-01-02", "value": 150.5}
	]`)

	recs, err := NewFile(path, DefaultDecoder()).Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, recs, 3)

	assert.Equal(t, "2024-01-01", recs[0].Date)
	assert.Equal(t, 120.0, recs[0].Value)
	assert.Equal(t, "2024-01-02", recs[1].Date)
	assert.Equal(t, 150.5, recs[1].Value)
	assert.Equal(t, "2024-01-03", recs[2].Date)
}

func TestFileJSONLCustomFields(t *testing.T) {
	path := writeFile(t, "sales.jsonl", `{"fecha":"2024-02-01","ventas":10}

{"fecha":"2024-02-01","ventas":20}
{"fecha":"2024-01-31","ventas":5}
`)

	dec := Decoder{DateField: "fecha", ValueField: "ventas", Strict: true}
	recs, err := NewFile(path, dec).Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, recs, 3)

	assert.Equal(t, "2024-01-31", recs[0].Date)
	// Repeated dates keep their file order.
	assert.Equal(t, 10.0, recs[1].Value)
	assert.Equal(t, 20.0, recs[2].Value)
}

func TestFileStrictRejectsBadValue(t *testing.T) {
	path := writeFile(t, "sales.json", `[{"date":"2024-01-01","value":1},{"date":"2024-01-02","value":"n/a"}]`)

	_, err := NewFile(path, DefaultDecoder()).Fetch(context.Background())
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, 1, verr.Index)
	assert.Equal(t, "value", verr.Field)
}

func TestFileLenientKeepsNaN(t *testing.T) {
	path := writeFile(t, "sales.json", `[{"date":"2024-01-01","value":1},{"date":"2024-01-02","value":"n/a"}]`)

	recs, err := NewFile(path, Decoder{Strict: false}).Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.True(t, math.IsNaN(recs[1].Value))
}

func TestFileErrors(t *testing.T) {
	_, err := NewFile(filepath.Join(t.TempDir(), "missing.json"), DefaultDecoder()).Fetch(context.Background())
	require.Error(t, err)

	path := writeFile(t, "bad.jsonl", "{\"date\":\"2024-01-01\"}\nnot json\n")
	_, err = NewFile(path, DefaultDecoder()).Fetch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}

func TestFileEmpty(t *testing.T) {
	path := writeFile(t, "empty.json", "[]")
	recs, err := NewFile(path, DefaultDecoder()).Fetch(context.Background())
	require.NoError(t, err)
	assert.Empty(t, recs)
}

package source

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseValue(t *testing.T) {
	tests := []struct {
		raw     string
		want    float64
		wantErr error
	}{
		{`120`, 120, nil},
		{`95.5`, 95.5, nil},
		{`"150"`, 150, nil},
		{`" 42.25 "`, 42.25, nil},
		{`null`, math.NaN(), ErrMissingValue},
		{``, math.NaN(), ErrMissingValue},
		{`"abc"`, math.NaN(), ErrNotNumeric},
		{`true`, math.NaN(), ErrNotNumeric},
		{`{"x":1}`, math.NaN(), ErrNotNumeric},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseValue(json.RawMessage(tt.raw))
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.True(t, math.IsNaN(got))
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestParseDate(t *testing.T) {
	assert.Equal(t, "2024-01-02", ParseDate(json.RawMessage(`"2024-01-02"`)))
	assert.Equal(t, "", ParseDate(nil))
	assert.Equal(t, "20240102", ParseDate(json.RawMessage(`20240102`)))
}

func TestDecoderStrict(t *testing.T) {
	dec := DefaultDecoder()

	rec, err := dec.Record(0, "2024-01-01", 10, "10", nil)
	require.NoError(t, err)
	assert.Equal(t, 10.0, rec.Value)

	_, err = dec.Record(3, "01/02/2024", 10, "10", nil)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, 3, verr.Index)
	assert.Equal(t, "date", verr.Field)

	_, err = dec.Record(4, "2024-01-01", math.NaN(), `"abc"`, ErrNotNumeric)
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "value", verr.Field)
	assert.Contains(t, verr.Error(), "not numeric")

	_, err = dec.Record(5, "2024-01-01", math.Inf(1), "Inf", nil)
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "value is not finite", verr.Reason)
}

func TestDecoderLenient(t *testing.T) {
	dec := Decoder{Strict: false}

	rec, err := dec.Record(0, "not-a-date", math.NaN(), `"abc"`, ErrNotNumeric)
	require.NoError(t, err)
	assert.Equal(t, "not-a-date", rec.Date)
	assert.True(t, math.IsNaN(rec.Value))
}

package cli

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatNumber(t *testing.T) {
	assert.Equal(t, "0", FormatNumber(0))
	assert.Equal(t, "999", FormatNumber(999))
	assert.Equal(t, "1,000", FormatNumber(1000))
	assert.Equal(t, "1,234,567", FormatNumber(1234567))
	assert.Equal(t, "-12,345", FormatNumber(-12345))
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		v    float64
		dec  int
		want string
	}{
		{1520, 0, "1,520"},
		{152.5, 0, "153"},
		{152.5, 1, "152.5"},
		{180, 1, "180"},
		{1234567.25, 1, "1,234,567.3"},
		{45.8333, 1, "45.8"},
		{-0.04, 1, "0"},
		{-1500.5, 0, "-1,501"},
		{0, 1, "0"},
		{math.NaN(), 0, "NaN"},
		{math.Inf(1), 1, "∞"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatValue(tt.v, tt.dec), "%v/%d", tt.v, tt.dec)
	}
}

func TestFormatPercent(t *testing.T) {
	assert.Equal(t, "+45.8%", FormatPercent(45.8333))
	assert.Equal(t, "-50%", FormatPercent(-50))
	assert.Equal(t, "0%", FormatPercent(0))
	assert.Equal(t, "NaN", FormatPercent(math.NaN()))
}

func TestFormatWeekday(t *testing.T) {
	assert.Equal(t, "Mon", FormatWeekday("2024-01-01"))
	assert.Equal(t, "", FormatWeekday("01/01/2024"))
}

func TestFormatAge(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, "never", FormatAge(time.Time{}, now))
	assert.Equal(t, "just now", FormatAge(now.Add(-2*time.Second), now))
	assert.Equal(t, "3m ago", FormatAge(now.Add(-3*time.Minute), now))
	assert.Equal(t, "1h 5m ago", FormatAge(now.Add(-65*time.Minute), now))
}

// Package cli provides formatting and rendering utilities for terminal output.
package cli

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/theirongolddev/salesdash/internal/model"
)

// FormatNumber adds comma separators to an integer.
// e.g., 1234567 -> "1,234,567"
func FormatNumber(n int64) string {
	if n < 0 {
		return "-" + FormatNumber(-n)
	}
	return groupDigits(strconv.FormatInt(n, 10))
}

// FormatValue renders v with digit grouping and at most maxDecimals
// fraction digits, trailing zeros removed. NaN renders as "NaN".
// e.g., FormatValue(1520, 0) -> "1,520", FormatValue(152.25, 1) -> "152.3"
func FormatValue(v float64, maxDecimals int) string {
	switch {
	case math.IsNaN(v):
		return "NaN"
	case math.IsInf(v, 1):
		return "∞"
	case math.IsInf(v, -1):
		return "-∞"
	}
	if maxDecimals < 0 {
		maxDecimals = 0
	}

	// Halves round away from zero; strconv alone rounds them to even.
	scale := math.Pow10(maxDecimals)
	if math.Abs(v)*scale < 1e15 {
		v = math.Round(v*scale) / scale
	}

	s := strconv.FormatFloat(v, 'f', maxDecimals, 64)
	if maxDecimals > 0 {
		s = strings.TrimRight(s, "0")
		s = strings.TrimSuffix(s, ".")
	}

	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	intPart, frac, hasFrac := strings.Cut(s, ".")
	out := groupDigits(intPart)
	if hasFrac {
		out += "." + frac
	}
	if neg && out != "0" {
		out = "-" + out
	}
	return out
}

// FormatPercent formats a percentage value with one decimal and a sign.
// e.g., 45.833 -> "+45.8%"
func FormatPercent(pct float64) string {
	if math.IsNaN(pct) {
		return "NaN"
	}
	if pct > 0 {
		return "+" + FormatValue(pct, 1) + "%"
	}
	return FormatValue(pct, 1) + "%"
}

// FormatWeekday returns a 3-letter day abbreviation for an ISO date,
// or "" when the date does not parse.
func FormatWeekday(date string) string {
	t, err := time.Parse(model.DateLayout, date)
	if err != nil {
		return ""
	}
	return t.Weekday().String()[:3]
}

// FormatAge renders how long ago t was, e.g. "3m ago".
func FormatAge(t, now time.Time) string {
	if t.IsZero() {
		return "never"
	}
	secs := int64(now.Sub(t).Seconds())
	if secs < 5 {
		return "just now"
	}
	return FormatDuration(secs) + " ago"
}

// FormatDuration formats seconds into a human-readable duration.
// e.g., 3725 -> "1h 2m", 125 -> "2m", 45 -> "45s"
func FormatDuration(secs int64) string {
	if secs <= 0 {
		return "0s"
	}

	hours := secs / 3600
	mins := (secs % 3600) / 60

	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, mins)
	}
	if mins > 0 {
		return fmt.Sprintf("%dm", mins)
	}
	return fmt.Sprintf("%ds", secs)
}

func groupDigits(s string) string {
	if len(s) <= 3 {
		return s
	}

	var result strings.Builder
	remainder := len(s) % 3
	if remainder > 0 {
		result.WriteString(s[:remainder])
	}
	for i := remainder; i < len(s); i += 3 {
		if result.Len() > 0 {
			result.WriteByte(',')
		}
		result.WriteString(s[i : i+3])
	}
	return result.String()
}

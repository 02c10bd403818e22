package source

import (
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
)

var (
	// ErrMissingValue indicates the value field is absent or null.
	ErrMissingValue = errors.New("value is missing")
	// ErrNotNumeric indicates the value field cannot be read as a number.
	ErrNotNumeric = errors.New("value is not numeric")
)

// ParseValue reads a polymorphic numeric field.
// Handles JSON numbers (120, 95.5) and numeric strings ("120", " 95.5 ").
// Anything else yields NaN and a non-nil error.
func ParseValue(raw json.RawMessage) (float64, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return math.NaN(), ErrMissingValue
	}

	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return ParseValueString(s)
	}

	return math.NaN(), ErrNotNumeric
}

// ParseValueString parses a numeric string, yielding NaN on failure.
func ParseValueString(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return math.NaN(), ErrNotNumeric
	}
	return v, nil
}

// ParseDate reads a date field that is either a JSON string or absent.
func ParseDate(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return strings.Trim(string(raw), `"`)
	}
	return s
}

// Package model defines domain types for salesdash series and summaries.
package model

// DateLayout is the ISO calendar date format used for every series key.
// Lexical order of dates in this layout equals chronological order.
const DateLayout = "2006-01-02"

// SalesRecord is one day of actual sales as read from the series source.
type SalesRecord struct {
	Date  string  `json:"date" validate:"required,datetime=2006-01-02"`
	Value float64 `json:"value" validate:"finite"`
}

// ForecastRecord is one predicted day returned by the forecast service.
type ForecastRecord struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

// MergedPoint unifies actual and predicted values for one date.
// Either pointer may be nil; both are set when the date appears in both series.
type MergedPoint struct {
	Date      string   `json:"date"`
	Actual    *float64 `json:"actual,omitempty"`
	Predicted *float64 `json:"predicted,omitempty"`
}

// HasActual reports whether the point carries an actual value.
func (p MergedPoint) HasActual() bool { return p.Actual != nil }

// HasPredicted reports whether the point carries a predicted value.
func (p MergedPoint) HasPredicted() bool { return p.Predicted != nil }

// KPIs holds the five summary scalars derived from the actual series.
type KPIs struct {
	Total   float64 `json:"total"`
	Average float64 `json:"average"`
	Max     float64 `json:"max"`
	Min     float64 `json:"min"`
	Trend   float64 `json:"trend"` // percent change first -> last
}

// SalesValues returns the values of records in input order.
func SalesValues(records []SalesRecord) []float64 {
	vals := make([]float64, len(records))
	for i, r := range records {
		vals[i] = r.Value
	}
	return vals
}

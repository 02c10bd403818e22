package model

import (
	"encoding/json"
	"math"
)

// encoding/json rejects NaN and Inf, which lenient ingestion can produce.
// Non-finite values are written as null instead.

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func finitePtr(v *float64) *float64 {
	if v == nil {
		return nil
	}
	return finite(*v)
}

// MarshalJSON implements json.Marshaler.
func (r SalesRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Date  string   `json:"date"`
		Value *float64 `json:"value"`
	}{r.Date, finite(r.Value)})
}

// MarshalJSON implements json.Marshaler.
func (r ForecastRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Date  string   `json:"date"`
		Value *float64 `json:"value"`
	}{r.Date, finite(r.Value)})
}

// MarshalJSON implements json.Marshaler. A NaN actual is still reported
// as present via has_actual so clients can tell it from a missing value.
func (p MergedPoint) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Date         string   `json:"date"`
		Actual       *float64 `json:"actual,omitempty"`
		Predicted    *float64 `json:"predicted,omitempty"`
		HasActual    bool     `json:"has_actual"`
		HasPredicted bool     `json:"has_predicted"`
	}{p.Date, finitePtr(p.Actual), finitePtr(p.Predicted), p.HasActual(), p.HasPredicted()})
}

// MarshalJSON implements json.Marshaler.
func (k KPIs) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Total   *float64 `json:"total"`
		Average *float64 `json:"average"`
		Max     *float64 `json:"max"`
		Min     *float64 `json:"min"`
		Trend   *float64 `json:"trend"`
	}{finite(k.Total), finite(k.Average), finite(k.Max), finite(k.Min), finite(k.Trend)})
}

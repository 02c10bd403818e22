package pipeline

import (
	"math"

	"github.com/theirongolddev/salesdash/internal/model"
)

// ComputeKPIs derives total, average, max, min and trend from the actual
// series only. Non-finite values propagate through the arithmetic.
//
// Trend compares the first and last records in input order, with the
// denominator floored at 1. For a first value between 0 and 1 this
// overstates the percentage.
func ComputeKPIs(sales []model.SalesRecord) model.KPIs {
	if len(sales) == 0 {
		return model.KPIs{}
	}

	vals := model.SalesValues(sales)

	k := model.KPIs{Max: vals[0], Min: vals[0]}
	for _, v := range vals {
		k.Total += v
		k.Max = math.Max(k.Max, v)
		k.Min = math.Min(k.Min, v)
	}
	k.Average = k.Total / float64(len(vals))

	if len(vals) > 1 {
		first, last := vals[0], vals[len(vals)-1]
		k.Trend = (last - first) / math.Max(1, first) * 100
	}

	return k
}

// Package pipeline loads the sales series, reconciles it with the forecast,
// and derives the dashboard view.
package pipeline

import (
	"fmt"
	"sort"
	"strings"

	"github.com/theirongolddev/salesdash/internal/model"
)

// DuplicatePolicy decides which record wins when one series repeats a date.
type DuplicatePolicy int

const (
	// LastWins keeps the later record in input order.
	LastWins DuplicatePolicy = iota
	// FirstWins keeps the earlier record in input order.
	FirstWins
	// RejectDuplicates fails the merge with a *DuplicateDateError.
	RejectDuplicates
)

var policyNames = map[DuplicatePolicy]string{
	LastWins:         "last-wins",
	FirstWins:        "first-wins",
	RejectDuplicates: "reject",
}

func (p DuplicatePolicy) String() string {
	if name, ok := policyNames[p]; ok {
		return name
	}
	return fmt.Sprintf("DuplicatePolicy(%d)", int(p))
}

// ParseDuplicatePolicy maps a config/flag value to a policy.
func ParseDuplicatePolicy(s string) (DuplicatePolicy, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return LastWins, nil
	}
	for p, name := range policyNames {
		if name == s {
			return p, nil
		}
	}
	return LastWins, fmt.Errorf("unknown duplicate policy %q (want last-wins, first-wins or reject)", s)
}

// DuplicateDateError reports a repeated date under RejectDuplicates.
type DuplicateDateError struct {
	Series string // "sales" or "forecast"
	Date   string
}

func (e *DuplicateDateError) Error() string {
	return fmt.Sprintf("duplicate %s date %s", e.Series, e.Date)
}

// Merge joins the actual and forecast series into one date-keyed view,
// sorted ascending by date. Values are copied, never aliased.
func Merge(sales []model.SalesRecord, forecast []model.ForecastRecord, policy DuplicatePolicy) ([]model.MergedPoint, error) {
	byDate := make(map[string]*model.MergedPoint, len(sales)+len(forecast))

	entry := func(date string) *model.MergedPoint {
		p, ok := byDate[date]
		if !ok {
			p = &model.MergedPoint{Date: date}
			byDate[date] = p
		}
		return p
	}

	for _, r := range sales {
		p := entry(r.Date)
		if p.Actual != nil {
			switch policy {
			case FirstWins:
				continue
			case RejectDuplicates:
				return nil, &DuplicateDateError{Series: "sales", Date: r.Date}
			}
		}
		v := r.Value
		p.Actual = &v
	}

	for _, r := range forecast {
		p := entry(r.Date)
		if p.Predicted != nil {
			switch policy {
			case FirstWins:
				continue
			case RejectDuplicates:
				return nil, &DuplicateDateError{Series: "forecast", Date: r.Date}
			}
		}
		v := r.Value
		p.Predicted = &v
	}

	points := make([]model.MergedPoint, 0, len(byDate))
	for _, p := range byDate {
		points = append(points, *p)
	}
	sort.Slice(points, func(i, j int) bool {
		return points[i].Date < points[j].Date
	})

	return points, nil
}

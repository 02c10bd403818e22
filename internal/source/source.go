// Package source fetches the actual sales series from a backing store.
package source

import (
	"context"

	"github.com/theirongolddev/salesdash/internal/model"
)

// Source yields the full sales series, ordered ascending by date.
type Source interface {
	Fetch(ctx context.Context) ([]model.SalesRecord, error)
}

// Func adapts a plain function to Source.
type Func func(ctx context.Context) ([]model.SalesRecord, error)

// Fetch calls f.
func (f Func) Fetch(ctx context.Context) ([]model.SalesRecord, error) {
	return f(ctx)
}

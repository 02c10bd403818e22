package forecast

import (
	"context"
	"sync"
	"time"

	"github.com/theirongolddev/salesdash/internal/model"
)

// FailureMessage is shown for any forecast failure. The underlying error is
// logged, never displayed.
const FailureMessage = "Could not fetch predictions (check the forecast service)."

// Tracker holds the state of the latest forecast request.
//
// Every Begin starts a new generation. Completions from older generations
// are discarded, so a slow stale response can never overwrite the result of
// a newer request.
type Tracker struct {
	mu        sync.RWMutex
	gen       uint64
	state     model.FetchState
	message   string
	records   []model.ForecastRecord
	updatedAt time.Time
	now       func() time.Time
}

// NewTracker returns an idle tracker.
func NewTracker() *Tracker {
	return &Tracker{now: time.Now}
}

// Begin marks a new request in flight and returns its generation.
// Previous records stay visible; the message is cleared.
func (t *Tracker) Begin() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.gen++
	t.state = model.StateLoading
	t.message = ""
	t.updatedAt = t.now()
	return t.gen
}

// Complete applies the outcome of generation gen. It returns false and
// changes nothing when gen is no longer current.
func (t *Tracker) Complete(gen uint64, records []model.ForecastRecord, err error) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if gen != t.gen {
		return false
	}

	t.updatedAt = t.now()
	if err != nil {
		t.state = model.StateFailed
		t.message = FailureMessage
		t.records = nil
		return true
	}

	t.state = model.StateSucceeded
	t.message = ""
	t.records = append([]model.ForecastRecord(nil), records...)
	return true
}

// Run performs one tracked request against p.
// applied is false when a newer request superseded this one.
func (t *Tracker) Run(ctx context.Context, p Predictor, sales []model.SalesRecord) (applied bool, err error) {
	gen := t.Begin()
	records, err := p.Predict(ctx, sales)
	return t.Complete(gen, records, err), err
}

// Records returns a copy of the current forecast.
func (t *Tracker) Records() []model.ForecastRecord {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]model.ForecastRecord(nil), t.records...)
}

// Status returns the current request status.
func (t *Tracker) Status() model.Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return model.Status{
		State:      t.state,
		Message:    t.message,
		Generation: t.gen,
		UpdatedAt:  t.updatedAt,
	}
}

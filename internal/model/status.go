package model

import (
	"fmt"
	"time"
)

// FetchState is the lifecycle of one asynchronous fetch (series or forecast).
type FetchState int

const (
	StateIdle FetchState = iota
	StateLoading
	StateSucceeded
	StateFailed
)

var stateNames = [...]string{"idle", "loading", "succeeded", "failed"}

func (s FetchState) String() string {
	if int(s) < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// MarshalText encodes the state by name for JSON payloads.
func (s FetchState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name.
func (s *FetchState) UnmarshalText(b []byte) error {
	for i, name := range stateNames {
		if name == string(b) {
			*s = FetchState(i)
			return nil
		}
	}
	return fmt.Errorf("unknown fetch state %q", b)
}

// Status is the presentation-facing view of a fetch lifecycle.
// Message is a fixed human-readable string; it never carries error detail.
type Status struct {
	State      FetchState `json:"state"`
	Message    string     `json:"message,omitempty"`
	Generation uint64     `json:"generation"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// Loading reports whether a fetch is in flight.
func (s Status) Loading() bool { return s.State == StateLoading }

// Failed reports whether the last fetch failed.
func (s Status) Failed() bool { return s.State == StateFailed }

package model

import "time"

// Run identifies one measurement window of the engine: which policy was
// active and when collection started. Statistics rows are keyed under a run
// so successive invocations never mix counters.
type Run struct {
	ID        string    `json:"id"`
	Policy    string    `json:"policy"`
	StartedAt time.Time `json:"started_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

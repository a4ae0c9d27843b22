package model

import "time"

// RunStatus is the lifecycle state of a batch run.
type RunStatus string

const (
	RunStatusIdle      RunStatus = "idle"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusStopped   RunStatus = "stopped"
	RunStatusErrored   RunStatus = "errored"
)

// Terminal reports whether no further transitions can happen.
func (s RunStatus) Terminal() bool {
	switch s {
	case RunStatusCompleted, RunStatusStopped, RunStatusErrored:
		return true
	}
	return false
}

// Run is one batch over a worklist.
type Run struct {
	ID         string       `json:"id"`
	Source     string       `json:"source"`
	Status     RunStatus    `json:"status"`
	Total      int          `json:"total"`
	Processed  int          `json:"processed"`
	Persisted  int          `json:"persisted"`
	Tiers      map[Tier]int `json:"tiers"`
	Error      string       `json:"error,omitempty"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt *time.Time   `json:"finished_at,omitempty"`
}

// Count records one processed row of the given tier.
func (r *Run) Count(t Tier) {
	if r.Tiers == nil {
		r.Tiers = make(map[Tier]int)
	}
	r.Tiers[t]++
	r.Processed++
}

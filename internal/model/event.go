package model

// EventKind distinguishes batch notifications.
type EventKind string

const (
	EventStarted  EventKind = "started"
	EventRow      EventKind = "row"
	EventProgress EventKind = "progress"
	EventFinished EventKind = "finished"
)

// Event is an immutable notification emitted by the batch worker.
type Event struct {
	Kind    EventKind  `json:"kind"`
	RunID   string     `json:"run_id"`
	Current int        `json:"current,omitempty"`
	Total   int        `json:"total,omitempty"`
	Row     *ResultRow `json:"row,omitempty"`
	Status  RunStatus  `json:"status,omitempty"`
	Err     string     `json:"error,omitempty"`
}

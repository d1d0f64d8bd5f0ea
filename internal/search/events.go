package search

import "time"

// EventType identifies a progress event.
type EventType string

const (
	// EventPeriodStarted is emitted before a period runs.
	EventPeriodStarted EventType = "period-started"

	// EventPeriodCompleted is emitted with the summary of a finished period.
	EventPeriodCompleted EventType = "period-completed"

	// EventModeChanged is emitted when the controller switches mode.
	EventModeChanged EventType = "mode-changed"

	// EventSearchFinished is emitted once with the final result.
	EventSearchFinished EventType = "search-finished"
)

// Event is a progress notification from the controller.
//
// Observers are called synchronously from the controller loop, between
// periods, and must not block for long.
type Event struct {
	Type  EventType `json:"type"`
	RunID string    `json:"runId"`
	Time  time.Time `json:"time"`

	// Period is the 1-based period number the event refers to
	Period int `json:"period,omitempty"`

	// Candidate is the worker count of the period, or the next candidate
	// for EventModeChanged
	Candidate int `json:"candidate,omitempty"`

	Mode         Mode `json:"mode"`
	PreviousMode Mode `json:"previousMode,omitempty"`

	// Summary is set for EventPeriodCompleted
	Summary *PeriodSummary `json:"summary,omitempty"`

	// Result is set for EventSearchFinished
	Result *Result `json:"result,omitempty"`
}

// Observer receives progress events.
type Observer func(Event)

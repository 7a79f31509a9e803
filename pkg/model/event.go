package model

import "time"

// EventKind identifies a scheduling action.
type EventKind string

const (
	EventAdmit    EventKind = "admit"
	EventClamp    EventKind = "clamp"
	EventStart    EventKind = "start"
	EventResume   EventKind = "resume"
	EventPreempt  EventKind = "preempt"
	EventComplete EventKind = "complete"
	EventWatchdog EventKind = "watchdog"
	EventFail     EventKind = "fail"
	EventCancel   EventKind = "cancel"
)

// AllEventKinds lists every kind in emission order.
var AllEventKinds = []EventKind{
	EventAdmit, EventClamp, EventStart, EventResume,
	EventPreempt, EventComplete, EventWatchdog, EventFail, EventCancel,
}

// Event is emitted by the dispatcher for every scheduling action.
type Event struct {
	RunID     string    `json:"run_id"`
	Tick      int       `json:"tick"`
	Kind      EventKind `json:"kind"`
	JobID     string    `json:"job_id"`
	Seq       int       `json:"seq"`
	Priority  int       `json:"priority"`
	Remaining int       `json:"remaining"`
	PID       int       `json:"pid,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	At        time.Time `json:"at"`
}

// NewEvent builds an event describing job at tick.
func NewEvent(runID string, tick int, kind EventKind, job *Job) Event {
	return Event{
		RunID:     runID,
		Tick:      tick,
		Kind:      kind,
		JobID:     job.ID,
		Seq:       job.Seq,
		Priority:  job.Priority,
		Remaining: job.RemainingProcessorTime,
		PID:       job.PID,
		At:        time.Now().UTC(),
	}
}

// Valid reports whether k is a known event kind.
func (k EventKind) Valid() bool {
	for _, known := range AllEventKinds {
		if k == known {
			return true
		}
	}
	return false
}

package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Job is the unit of work handled by the dispatcher.
type Job struct {
	ID  string `json:"id"`
	Seq int    `json:"seq"`

	ArrivalTime            int `json:"arrival_time"`
	Priority               int `json:"priority"`
	TotalProcessorTime     int `json:"total_processor_time"`
	RemainingProcessorTime int `json:"remaining_processor_time"`

	State   JobState `json:"state"`
	Outcome Outcome  `json:"outcome,omitempty"`
	Err     string   `json:"error,omitempty"`

	// PID is set by the first successful start and never cleared, so a
	// non-zero PID means the next dispatch is a resume.
	PID int `json:"pid,omitempty"`

	// RanTicks counts the ticks the job held the running slot.
	RanTicks int `json:"ran_ticks"`

	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// NewJob creates an Admitted job. The caller is responsible for clamping
// the priority into a valid tier before admission.
func NewJob(seq, arrival, priority, processorTime int) *Job {
	return &Job{
		ID:                     "job_" + uuid.New().String(),
		Seq:                    seq,
		ArrivalTime:            arrival,
		Priority:               priority,
		TotalProcessorTime:     processorTime,
		RemainingProcessorTime: processorTime,
		State:                  JobStateAdmitted,
	}
}

// HasProcess reports whether the job has been started at least once.
func (j *Job) HasProcess() bool {
	return j.PID != 0
}

// IsSystem reports whether the job belongs to the system tier.
func (j *Job) IsSystem() bool {
	return j.Priority == TierSystem
}

// Transition moves the job to next, or returns an *InvalidTransitionError.
func (j *Job) Transition(next JobState) error {
	if !j.State.CanTransitionTo(next) {
		return &InvalidTransitionError{
			Entity: "job",
			ID:     j.ID,
			From:   j.State.String(),
			To:     next.String(),
		}
	}
	j.State = next
	if next.IsTerminal() {
		now := time.Now().UTC()
		j.FinishedAt = &now
	}
	return nil
}

// Triple renders the job in the job-file display format.
func (j *Job) Triple() string {
	return fmt.Sprintf("<%d>, <%d>, <%d>", j.ArrivalTime, j.Priority, j.TotalProcessorTime)
}

package model

// JobState represents the lifecycle state of a Job.
type JobState string

const (
	JobStateAdmitted   JobState = "ADMITTED"
	JobStateReady      JobState = "READY"
	JobStateRunning    JobState = "RUNNING"
	JobStateSuspended  JobState = "SUSPENDED"
	JobStateTerminated JobState = "TERMINATED"
	JobStateFailed     JobState = "FAILED"
)

// String returns the string representation of the job state.
func (s JobState) String() string {
	return string(s)
}

// IsTerminal returns true if the job is in an absorbing state.
func (s JobState) IsTerminal() bool {
	switch s {
	case JobStateTerminated, JobStateFailed:
		return true
	}
	return false
}

// ValidJobTransitions defines the allowed state transitions for Jobs.
//
// READY may go straight to FAILED when a start or resume is refused, and
// straight to TERMINATED when the watchdog kills a suspended job that is
// still waiting in a ready queue.
var ValidJobTransitions = map[JobState][]JobState{
	JobStateAdmitted:  {JobStateReady},
	JobStateReady:     {JobStateRunning, JobStateFailed, JobStateTerminated},
	JobStateRunning:   {JobStateSuspended, JobStateTerminated, JobStateFailed},
	JobStateSuspended: {JobStateReady, JobStateFailed},
}

// CanTransitionTo returns true if moving from the current state to next is valid.
func (s JobState) CanTransitionTo(next JobState) bool {
	for _, allowed := range ValidJobTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Outcome records why a job left scheduling.
type Outcome string

const (
	OutcomeNone      Outcome = ""
	OutcomeCompleted Outcome = "completed"
	OutcomeWatchdog  Outcome = "watchdog"
	OutcomeFailed    Outcome = "failed"
	OutcomeCancelled Outcome = "cancelled"
)

// Priority tiers.
const (
	TierSystem = 0
	TierUser1  = 1
	TierUser2  = 2
	TierUser3  = 3

	// NumTiers is the number of ready queues.
	NumTiers = 4
)

// ValidPriority reports whether p names one of the four tiers.
func ValidPriority(p int) bool {
	return p >= TierSystem && p <= TierUser3
}

package model

import (
	"errors"
	"strings"
	"testing"
)

func TestNewJob(t *testing.T) {
	j := NewJob(1, 4, 2, 7)

	if !strings.HasPrefix(j.ID, "job_") {
		t.Errorf("ID = %q, want job_ prefix", j.ID)
	}
	if j.State != JobStateAdmitted {
		t.Errorf("State = %q, want %q", j.State, JobStateAdmitted)
	}
	if j.RemainingProcessorTime != 7 || j.TotalProcessorTime != 7 {
		t.Errorf("processor time = %d/%d, want 7/7", j.RemainingProcessorTime, j.TotalProcessorTime)
	}
	if j.HasProcess() {
		t.Error("fresh job should not have a process")
	}
	if other := NewJob(2, 4, 2, 7); other.ID == j.ID {
		t.Error("job ids should be unique")
	}
}

func TestJob_Transition(t *testing.T) {
	j := NewJob(1, 0, 1, 3)

	for _, next := range []JobState{JobStateReady, JobStateRunning, JobStateSuspended, JobStateReady, JobStateRunning} {
		if err := j.Transition(next); err != nil {
			t.Fatalf("Transition(%s): %v", next, err)
		}
	}
	if j.FinishedAt != nil {
		t.Error("FinishedAt set before a terminal state")
	}

	if err := j.Transition(JobStateTerminated); err != nil {
		t.Fatalf("Transition(TERMINATED): %v", err)
	}
	if j.FinishedAt == nil {
		t.Error("FinishedAt not set on terminal state")
	}

	err := j.Transition(JobStateReady)
	var ite *InvalidTransitionError
	if !errors.As(err, &ite) {
		t.Fatalf("Transition out of TERMINATED: err = %v, want InvalidTransitionError", err)
	}
	if j.State != JobStateTerminated {
		t.Errorf("State = %q after rejected transition, want TERMINATED", j.State)
	}
}

func TestJob_Triple(t *testing.T) {
	j := NewJob(3, 2, 1, 5)
	if got, want := j.Triple(), "<2>, <1>, <5>"; got != want {
		t.Errorf("Triple() = %q, want %q", got, want)
	}
}

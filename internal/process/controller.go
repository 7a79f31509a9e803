// Package process drives the OS-level lifecycle of dispatched jobs.
package process

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/me/dispatch/pkg/model"
)

// Operation names, shared by logs, spans and recorded calls.
const (
	OpStart     = "start"
	OpResume    = "resume"
	OpSuspend   = "suspend"
	OpTerminate = "terminate"
	OpRelease   = "release"
)

var errNoProcess = errors.New("no process for job")

// Controller translates scheduling decisions into process lifecycle
// transitions. Every transition blocks until the process acknowledges it.
//
// Transitions on one job are serialized by the controller, so the dispatcher
// and the watchdog may both call it.
type Controller interface {
	// Name returns the registry key of the controller.
	Name() string

	// Start creates the job's process and records its PID on job.
	// Failures are *model.ProcessError of kind ProcessCreationFailure.
	Start(ctx context.Context, job *model.Job) error

	// Resume continues a suspended process.
	Resume(ctx context.Context, job *model.Job) error

	// Suspend stops a running process and waits for the stopped status.
	Suspend(ctx context.Context, job *model.Job) error

	// Terminate interrupts the process and waits for it to exit.
	// Terminating a process that already exited succeeds.
	Terminate(ctx context.Context, job *model.Job) error

	// Release reclaims the process handle, killing the process if it is
	// still alive. It is called once a job is Terminated or Failed.
	Release(job *model.Job)
}

// OSConfig configures the OS-backed controller.
type OSConfig struct {
	// Workload is the program started for every job. It receives the
	// processor-time budget as its only argument.
	Workload string

	// AckTimeout bounds every wait for a stop, continue or exit status.
	AckTimeout time.Duration

	// Stdout and Stderr receive workload output. Nil discards it.
	Stdout *os.File
	Stderr *os.File
}

// DefaultOSConfig returns the reference workload and a 5s acknowledgement timeout.
func DefaultOSConfig() OSConfig {
	return OSConfig{
		Workload:   "./process",
		AckTimeout: 5 * time.Second,
		Stdout:     os.Stdout,
		Stderr:     os.Stderr,
	}
}

package model

import (
	"errors"
	"fmt"
)

// Startup errors. Both are fatal and reported before any scheduling state exists.
var (
	ErrMissingArgument = errors.New("missing job description file argument")
	ErrFileOpen        = errors.New("cannot open job description file")
)

// ErrProcessExited is returned when a transition targets a process that has
// already exited.
var ErrProcessExited = errors.New("process already exited")

// ErrAckTimeout is returned when a process does not acknowledge a transition in time.
var ErrAckTimeout = errors.New("transition not acknowledged")

// ProcessErrorKind classifies per-job controller failures.
type ProcessErrorKind string

const (
	ProcessCreationFailure ProcessErrorKind = "PROCESS_CREATION_FAILURE"
	SignalDeliveryFailure  ProcessErrorKind = "SIGNAL_DELIVERY_FAILURE"
)

// ProcessError is returned by the process controller. It is contained to the
// job it names and never aborts the dispatcher.
type ProcessError struct {
	Kind  ProcessErrorKind
	Op    string
	JobID string
	Err   error
}

func (e *ProcessError) Error() string {
	return fmt.Sprintf("%s: %s job %s: %v", e.Kind, e.Op, e.JobID, e.Err)
}

func (e *ProcessError) Unwrap() error {
	return e.Err
}

// NewCreationError wraps a start failure.
func NewCreationError(jobID string, err error) *ProcessError {
	return &ProcessError{Kind: ProcessCreationFailure, Op: "start", JobID: jobID, Err: err}
}

// NewSignalError wraps a suspend, resume or terminate failure.
func NewSignalError(op, jobID string, err error) *ProcessError {
	return &ProcessError{Kind: SignalDeliveryFailure, Op: op, JobID: jobID, Err: err}
}

// IsProcessErrorKind reports whether err carries a ProcessError of the given kind.
func IsProcessErrorKind(err error, kind ProcessErrorKind) bool {
	var pe *ProcessError
	return errors.As(err, &pe) && pe.Kind == kind
}

// InvalidTransitionError is returned when a state transition is invalid.
type InvalidTransitionError struct {
	Entity string
	ID     string
	From   string
	To     string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid %s state transition: %s → %s (entity %s)", e.Entity, e.From, e.To, e.ID)
}

// ErrorCode represents a structured API error code.
type ErrorCode string

const (
	ErrNotFound   ErrorCode = "NOT_FOUND"
	ErrValidation ErrorCode = "VALIDATION_ERROR"
	ErrInternal   ErrorCode = "INTERNAL_ERROR"
)

// APIError is a structured error returned by the status server.
type APIError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

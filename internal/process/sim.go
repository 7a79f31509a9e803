package process

import (
	"context"
	"log/slog"
	"sync"

	"github.com/me/dispatch/pkg/model"
)

// Call is one lifecycle request seen by the SimController.
type Call struct {
	Op    string
	JobID string
	Seq   int
	PID   int
}

type simState int

const (
	simRunning simState = iota
	simStopped
	simExited
)

type fault struct {
	op  string
	seq int
}

// SimController acknowledges every transition immediately without touching
// the OS. It records calls in order and can be told to fail specific ones,
// which makes it the backend for dry runs and dispatcher tests.
// It is safe for concurrent use.
type SimController struct {
	logger *slog.Logger

	mu      sync.Mutex
	nextPID int
	procs   map[string]simState
	faults  map[fault]error
	calls   []Call
}

// NewSimController creates a SimController whose fake PIDs start at 1000.
func NewSimController(logger *slog.Logger) *SimController {
	return &SimController{
		logger:  logger.With("component", "sim-controller"),
		nextPID: 1000,
		procs:   make(map[string]simState),
		faults:  make(map[fault]error),
	}
}

// Name returns "sim".
func (s *SimController) Name() string {
	return "sim"
}

// Fail makes every op call for the job with file position seq fail with err.
func (s *SimController) Fail(op string, seq int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[fault{op: op, seq: seq}] = err
}

// Calls returns a copy of every call recorded so far.
func (s *SimController) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

// Live returns the number of started processes that have not exited.
func (s *SimController) Live() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, st := range s.procs {
		if st != simExited {
			n++
		}
	}
	return n
}

// Start assigns the next fake PID, or fails with an injected start fault.
func (s *SimController) Start(ctx context.Context, job *model.Job) (err error) {
	_, span := startSpan(ctx, OpStart, job)
	defer func() { endSpan(span, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.record(OpStart, job)

	if ferr := s.faults[fault{OpStart, job.Seq}]; ferr != nil {
		return model.NewCreationError(job.ID, ferr)
	}
	s.nextPID++
	job.PID = s.nextPID
	s.procs[job.ID] = simRunning
	span.SetAttributes(pidAttr(job.PID))
	s.logger.Debug("process started", "job_id", job.ID, "pid", job.PID)
	return nil
}

// Resume marks a stopped process running. An exited process is refused.
func (s *SimController) Resume(ctx context.Context, job *model.Job) error {
	return s.transition(ctx, OpResume, job, func(st simState) (simState, error) {
		if st == simExited {
			return st, model.ErrProcessExited
		}
		return simRunning, nil
	})
}

// Suspend marks a running process stopped. An exited process is refused.
func (s *SimController) Suspend(ctx context.Context, job *model.Job) error {
	return s.transition(ctx, OpSuspend, job, func(st simState) (simState, error) {
		if st == simExited {
			return st, model.ErrProcessExited
		}
		return simStopped, nil
	})
}

// Terminate marks the process exited; it succeeds on an exited process.
func (s *SimController) Terminate(ctx context.Context, job *model.Job) error {
	return s.transition(ctx, OpTerminate, job, func(simState) (simState, error) {
		return simExited, nil
	})
}

// Release forgets the process.
func (s *SimController) Release(job *model.Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record(OpRelease, job)
	delete(s.procs, job.ID)
}

func (s *SimController) transition(ctx context.Context, op string, job *model.Job, fn func(simState) (simState, error)) (err error) {
	_, span := startSpan(ctx, op, job)
	defer func() { endSpan(span, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.record(op, job)

	st, ok := s.procs[job.ID]
	if !ok {
		return model.NewSignalError(op, job.ID, errNoProcess)
	}
	if ferr := s.faults[fault{op, job.Seq}]; ferr != nil {
		return model.NewSignalError(op, job.ID, ferr)
	}
	next, ferr := fn(st)
	if ferr != nil {
		return model.NewSignalError(op, job.ID, ferr)
	}
	s.procs[job.ID] = next
	s.logger.Debug("process "+op, "job_id", job.ID, "pid", job.PID)
	return nil
}

// record appends a call; s.mu must be held.
func (s *SimController) record(op string, job *model.Job) {
	s.calls = append(s.calls, Call{Op: op, JobID: job.ID, Seq: job.Seq, PID: job.PID})
}

//go:build unix

package process

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/me/dispatch/pkg/model"
	"golang.org/x/sys/unix"
)

// OSController runs each job as a child process and drives it with
// SIGSTOP, SIGCONT and SIGINT. Acknowledgements come from a per-process
// reaper blocked in wait4.
type OSController struct {
	cfg    OSConfig
	logger *slog.Logger

	mu    sync.Mutex
	procs map[string]*proc
}

// NewOSController creates an OSController.
func NewOSController(cfg OSConfig, logger *slog.Logger) *OSController {
	if cfg.AckTimeout <= 0 {
		cfg.AckTimeout = DefaultOSConfig().AckTimeout
	}
	return &OSController{
		cfg:    cfg,
		logger: logger.With("component", "os-controller"),
		procs:  make(map[string]*proc),
	}
}

// Name returns "os".
func (c *OSController) Name() string {
	return "os"
}

// Start launches the workload with the job's budget as its only argument.
// The call returns once the child has exec'd.
func (c *OSController) Start(ctx context.Context, job *model.Job) (err error) {
	_, span := startSpan(ctx, OpStart, job)
	defer func() { endSpan(span, err) }()

	c.mu.Lock()
	_, exists := c.procs[job.ID]
	c.mu.Unlock()
	if exists {
		return model.NewCreationError(job.ID, errors.New("process already started"))
	}

	cmd := exec.Command(c.cfg.Workload, strconv.Itoa(job.TotalProcessorTime))
	if c.cfg.Stdout != nil {
		cmd.Stdout = c.cfg.Stdout
	}
	if c.cfg.Stderr != nil {
		cmd.Stderr = c.cfg.Stderr
	}
	// Keep terminal signals away from children; only the controller signals them.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		return model.NewCreationError(job.ID, err)
	}

	p := newProc(job.ID, cmd.Process)
	go p.reap()

	c.mu.Lock()
	c.procs[job.ID] = p
	c.mu.Unlock()

	job.PID = p.pid
	span.SetAttributes(pidAttr(p.pid))
	c.logger.Debug("process started", "job_id", job.ID, "pid", p.pid, "workload", c.cfg.Workload)
	return nil
}

// Resume sends SIGCONT and waits for the continued status.
func (c *OSController) Resume(ctx context.Context, job *model.Job) error {
	if !job.HasProcess() {
		return model.NewSignalError(OpResume, job.ID, errNoProcess)
	}
	return c.transition(ctx, OpResume, job, func(ctx context.Context, p *proc) error {
		if p.exited {
			return model.ErrProcessExited
		}
		if !p.stopped {
			return nil
		}
		if err := p.signal(unix.SIGCONT); err != nil {
			return err
		}
		return p.await(ctx, statusContinued, c.cfg.AckTimeout)
	})
}

// Suspend sends SIGSTOP and waits for the stopped status.
func (c *OSController) Suspend(ctx context.Context, job *model.Job) error {
	return c.transition(ctx, OpSuspend, job, func(ctx context.Context, p *proc) error {
		if p.exited {
			return model.ErrProcessExited
		}
		if p.stopped {
			return nil
		}
		if err := p.signal(unix.SIGSTOP); err != nil {
			return err
		}
		return p.await(ctx, statusStopped, c.cfg.AckTimeout)
	})
}

// Terminate sends SIGINT and waits for exit. A stopped process is also
// continued so it can act on the interrupt. If no exit is acknowledged the
// process is killed so the handle can still be reclaimed, and the timeout
// is reported.
func (c *OSController) Terminate(ctx context.Context, job *model.Job) error {
	return c.transition(ctx, OpTerminate, job, func(ctx context.Context, p *proc) error {
		if p.exited {
			return nil
		}
		if err := p.signal(unix.SIGINT); err != nil {
			if errors.Is(err, model.ErrProcessExited) {
				return p.await(ctx, statusExited, c.cfg.AckTimeout)
			}
			return err
		}
		if p.stopped {
			if err := p.signal(unix.SIGCONT); err != nil && !errors.Is(err, model.ErrProcessExited) {
				return err
			}
		}
		err := p.await(ctx, statusExited, c.cfg.AckTimeout)
		if errors.Is(err, model.ErrAckTimeout) {
			c.logger.Warn("no exit after interrupt, killing", "job_id", job.ID, "pid", p.pid)
			p.kill(c.cfg.AckTimeout)
		}
		return err
	})
}

// Release kills the process if it is still alive, waits for it to be
// reaped and forgets it.
func (c *OSController) Release(job *model.Job) {
	c.mu.Lock()
	p, ok := c.procs[job.ID]
	delete(c.procs, job.ID)
	c.mu.Unlock()
	if !ok {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.drain()
	if !p.exited {
		c.logger.Warn("killing process on release", "job_id", job.ID, "pid", p.pid)
		p.kill(c.cfg.AckTimeout)
	}
	p.handle.Release()
	c.logger.Debug("process released", "job_id", job.ID, "pid", p.pid, "exit", p.exitStatus)
}

// transition looks up the job's process, serializes against any other
// transition on it and wraps failures as signal delivery errors.
func (c *OSController) transition(ctx context.Context, op string, job *model.Job, fn func(context.Context, *proc) error) (err error) {
	ctx, span := startSpan(ctx, op, job)
	defer func() { endSpan(span, err) }()

	c.mu.Lock()
	p, ok := c.procs[job.ID]
	c.mu.Unlock()
	if !ok {
		return model.NewSignalError(op, job.ID, errNoProcess)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.drain()

	if err := fn(ctx, p); err != nil {
		return model.NewSignalError(op, job.ID, err)
	}
	c.logger.Debug("process "+op, "job_id", job.ID, "pid", p.pid)
	return nil
}

type statusKind int

const (
	statusStopped statusKind = iota + 1
	statusContinued
	statusExited
	statusGone
)

// waitEvent is one status change reported by wait4.
type waitEvent struct {
	kind statusKind
	ws   unix.WaitStatus
	err  error
}

// proc is the controller's view of one child process.
// mu serializes transitions; the reaper only writes to events.
type proc struct {
	mu     sync.Mutex
	jobID  string
	pid    int
	handle *os.Process
	events chan waitEvent

	stopped    bool
	exited     bool
	exitStatus string
}

func newProc(jobID string, p *os.Process) *proc {
	return &proc{
		jobID:  jobID,
		pid:    p.Pid,
		handle: p,
		events: make(chan waitEvent, 16),
	}
}

// reap blocks in wait4 and forwards every stop, continue and exit of the
// process. It returns once the process has been reaped.
func (p *proc) reap() {
	defer close(p.events)
	for {
		var ws unix.WaitStatus
		_, err := unix.Wait4(p.pid, &ws, unix.WUNTRACED|unix.WCONTINUED, nil)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			p.events <- waitEvent{kind: statusGone, err: err}
			return
		}
		switch {
		case ws.Stopped():
			p.events <- waitEvent{kind: statusStopped, ws: ws}
		case ws.Continued():
			p.events <- waitEvent{kind: statusContinued, ws: ws}
		case ws.Exited(), ws.Signaled():
			p.events <- waitEvent{kind: statusExited, ws: ws}
			return
		}
	}
}

// apply folds ev into the tracked process state.
func (p *proc) apply(ev waitEvent) {
	switch ev.kind {
	case statusStopped:
		p.stopped = true
	case statusContinued:
		p.stopped = false
	case statusExited:
		p.stopped = false
		p.exited = true
		if ev.ws.Signaled() {
			p.exitStatus = "signal: " + ev.ws.Signal().String()
		} else {
			p.exitStatus = "exit status " + strconv.Itoa(ev.ws.ExitStatus())
		}
	case statusGone:
		p.stopped = false
		p.exited = true
		p.exitStatus = fmt.Sprintf("wait4: %v", ev.err)
	}
}

// drain applies every status change already reported, without blocking.
func (p *proc) drain() {
	for {
		select {
		case ev, ok := <-p.events:
			if !ok {
				p.exited = true
				return
			}
			p.apply(ev)
		default:
			return
		}
	}
}

// await blocks until the process reports want, exits, or timeout elapses.
func (p *proc) await(ctx context.Context, want statusKind, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case ev, ok := <-p.events:
			if !ok {
				p.exited = true
				if want == statusExited {
					return nil
				}
				return model.ErrProcessExited
			}
			p.apply(ev)
			if ev.kind == want {
				return nil
			}
			if ev.kind == statusExited || ev.kind == statusGone {
				if want == statusExited {
					return nil
				}
				return model.ErrProcessExited
			}
		case <-timer.C:
			return fmt.Errorf("%w after %s", model.ErrAckTimeout, timeout)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// signal delivers sig, mapping a finished process to ErrProcessExited.
func (p *proc) signal(sig syscall.Signal) error {
	if err := p.handle.Signal(sig); err != nil {
		if errors.Is(err, os.ErrProcessDone) {
			return model.ErrProcessExited
		}
		return fmt.Errorf("signal %s: %w", sig, err)
	}
	return nil
}

// kill sends SIGKILL and waits up to timeout for the exit to be reaped.
func (p *proc) kill(timeout time.Duration) {
	if err := p.signal(unix.SIGKILL); err != nil && !errors.Is(err, model.ErrProcessExited) {
		return
	}
	_ = p.await(context.Background(), statusExited, timeout)
}

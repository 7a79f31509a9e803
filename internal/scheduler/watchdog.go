package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/me/dispatch/internal/process"
	"github.com/me/dispatch/pkg/model"
)

// Watchdog terminates any process that outlives a fixed wall-clock ceiling.
// Each watched job gets its own timer, so a kill happens even while the
// dispatcher loop is blocked. Killed job IDs are reported on Expired for
// the loop to reconcile.
type Watchdog struct {
	ceiling time.Duration
	ctrl    process.Controller
	logger  *slog.Logger

	mu      sync.Mutex
	timers  map[string]*time.Timer
	fired   map[string]bool
	stopped bool

	expired chan string
	done    chan struct{}
}

// NewWatchdog creates a Watchdog. A zero ceiling disables it.
func NewWatchdog(ceiling time.Duration, ctrl process.Controller, logger *slog.Logger) *Watchdog {
	return &Watchdog{
		ceiling: ceiling,
		ctrl:    ctrl,
		logger:  logger.With("component", "watchdog"),
		timers:  make(map[string]*time.Timer),
		fired:   make(map[string]bool),
		expired: make(chan string, 64),
		done:    make(chan struct{}),
	}
}

// Enabled reports whether the watchdog arms timers.
func (w *Watchdog) Enabled() bool {
	return w.ceiling > 0
}

// Watch starts the lifetime clock for job. It is called once, after the
// job's first successful start.
func (w *Watchdog) Watch(job *model.Job) {
	if !w.Enabled() {
		return
	}
	// The timer goroutine gets its own copy; the loop keeps mutating job.
	target := &model.Job{ID: job.ID, Seq: job.Seq, PID: job.PID}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	if _, ok := w.timers[job.ID]; ok {
		return
	}
	w.timers[job.ID] = time.AfterFunc(w.ceiling, func() { w.fire(target) })
}

// Forget disarms the timer for jobID. It returns false if the watchdog
// already claimed the job.
func (w *Watchdog) Forget(jobID string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fired[jobID] {
		return false
	}
	if t, ok := w.timers[jobID]; ok {
		t.Stop()
		delete(w.timers, jobID)
	}
	return true
}

// Fired reports whether the watchdog has claimed jobID.
func (w *Watchdog) Fired(jobID string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.fired[jobID]
}

// Expired delivers the IDs of jobs the watchdog terminated.
func (w *Watchdog) Expired() <-chan string {
	return w.expired
}

// Stop disarms every timer. Kills already in flight still complete.
func (w *Watchdog) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	w.stopped = true
	for id, t := range w.timers {
		t.Stop()
		delete(w.timers, id)
	}
	close(w.done)
}

func (w *Watchdog) fire(job *model.Job) {
	w.mu.Lock()
	if _, armed := w.timers[job.ID]; !armed || w.stopped {
		w.mu.Unlock()
		return
	}
	delete(w.timers, job.ID)
	// Claimed before signalling so a racing dispatcher transition that
	// fails on the dead process is attributed to the watchdog.
	w.fired[job.ID] = true
	w.mu.Unlock()

	w.logger.Warn("lifetime ceiling exceeded, terminating",
		"job_id", job.ID, "seq", job.Seq, "pid", job.PID, "ceiling", w.ceiling)
	if err := w.ctrl.Terminate(context.Background(), job); err != nil {
		w.logger.Error("watchdog terminate", "job_id", job.ID, "pid", job.PID, "error", err)
	}

	select {
	case w.expired <- job.ID:
	case <-w.done:
	}
}

package scheduler

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/me/dispatch/internal/jobfile"
	"github.com/me/dispatch/internal/process"
	"github.com/me/dispatch/internal/queue"
	"github.com/me/dispatch/pkg/model"
)

// Dispatcher owns the running slot, the four ready queues and the tick
// counter. All of them are touched only from the goroutine calling Run or
// Tick; other goroutines read the published Snapshot.
type Dispatcher struct {
	cfg       Config
	ctrl      process.Controller
	source    *jobfile.Source
	ready     *queue.ReadyQueues
	watchdog  *Watchdog
	logger    *slog.Logger
	sinks     []EventSink
	observers []func(*model.Snapshot)
	dumper    *dumper
	runID     string

	tick    int
	running *model.Job
	jobs    []*model.Job
	byID    map[string]*model.Job
	done    bool

	snap atomic.Pointer[model.Snapshot]
}

// New creates a Dispatcher for the given job descriptors.
func New(cfg Config, ctrl process.Controller, descs []jobfile.Descriptor, logger *slog.Logger, opts ...Option) (*Dispatcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("dispatcher config: %w", err)
	}
	d := &Dispatcher{
		cfg:      cfg,
		ctrl:     ctrl,
		source:   jobfile.NewSource(descs),
		ready:    queue.NewReadyQueues(),
		watchdog: NewWatchdog(cfg.WatchdogCeiling, ctrl, logger),
		logger:   logger.With("component", "dispatcher"),
		dumper:   newDumper(io.Discard, cfg.DumpEvery),
		runID:    "run_" + uuid.New().String(),
		byID:     make(map[string]*model.Job),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.publish()
	return d, nil
}

// RunID identifies this run in events and snapshots.
func (d *Dispatcher) RunID() string {
	return d.runID
}

// CurrentTick returns the tick counter.
func (d *Dispatcher) CurrentTick() int {
	return d.tick
}

// Done reports whether every job has left scheduling.
func (d *Dispatcher) Done() bool {
	return d.done
}

// Snapshot returns the state published at the last tick boundary.
// It is safe to call from any goroutine.
func (d *Dispatcher) Snapshot() *model.Snapshot {
	return d.snap.Load()
}

// Jobs returns copies of every admitted job in admission order. Call it
// from the dispatcher goroutine or after Run returns.
func (d *Dispatcher) Jobs() []model.Job {
	out := make([]model.Job, 0, len(d.jobs))
	for _, j := range d.jobs {
		out = append(out, *j)
	}
	return out
}

// Run ticks until every job has left scheduling or ctx is cancelled.
// On cancellation every live process is terminated and ctx.Err() is
// returned.
func (d *Dispatcher) Run(ctx context.Context) error {
	defer d.watchdog.Stop()

	d.logger.Info("dispatcher started",
		"run_id", d.runID,
		"jobs", d.source.Remaining(),
		"controller", d.ctrl.Name(),
		"tick", d.cfg.Tick,
		"aging", d.cfg.Aging,
		"admission", d.cfg.Admission,
	)
	d.dumper.jobList(d.source.All())

	var tickC <-chan time.Time
	if d.cfg.Tick > 0 {
		ticker := time.NewTicker(d.cfg.Tick)
		defer ticker.Stop()
		tickC = ticker.C
	}

	for {
		if err := d.Tick(ctx); err != nil {
			d.shutdown(ctx)
			return err
		}
		if d.done {
			d.logger.Info("dispatcher finished", "run_id", d.runID, "tick", d.tick, "jobs", len(d.jobs))
			return nil
		}

		if tickC == nil {
			continue
		}
		select {
		case <-ctx.Done():
			d.logger.Info("dispatcher stopping (context cancelled)", "tick", d.tick)
			d.shutdown(ctx)
			return ctx.Err()
		case <-tickC:
		}
	}
}

// Tick runs one scheduling iteration at the current tick: reconcile
// watchdog kills, admit, progress the running job and fill the running
// slot. Unless the run is finished it then advances the tick counter.
func (d *Dispatcher) Tick(ctx context.Context) error {
	if d.done {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	// Acknowledgement waits are bounded by the controller; cancellation is
	// honored between ticks so a transition is never abandoned halfway.
	opCtx := context.WithoutCancel(ctx)

	d.reconcile(opCtx)
	d.admit(opCtx)
	d.progress(opCtx)
	d.dispatch(opCtx)

	d.done = d.running == nil && d.ready.Empty() && d.source.Exhausted()
	d.dumper.tick(d.tick, d.source.Pending(), d.ready.Snapshot())
	d.publish()
	if !d.done {
		d.tick++
	}
	return nil
}

// reconcile retires jobs the watchdog killed since the last tick.
func (d *Dispatcher) reconcile(ctx context.Context) {
	for {
		select {
		case id := <-d.watchdog.Expired():
			job, ok := d.byID[id]
			if !ok || job.State.IsTerminal() {
				continue
			}
			if d.running == job {
				d.running = nil
			} else {
				d.ready.Remove(job)
			}
			d.retireByWatchdog(ctx, job)
		default:
			return
		}
	}
}

// progress charges one tick to the running job, then completes it, preempts
// it for a competing job, or leaves it running.
func (d *Dispatcher) progress(ctx context.Context) {
	job := d.running
	if job == nil {
		return
	}
	if job.RemainingProcessorTime > 0 {
		job.RemainingProcessorTime--
		job.RanTicks++
	}

	if job.RemainingProcessorTime == 0 {
		d.running = nil
		if !d.watchdog.Forget(job.ID) {
			d.retireByWatchdog(ctx, job)
			return
		}
		if err := d.ctrl.Terminate(ctx, job); err != nil {
			d.fail(ctx, job, err)
			return
		}
		d.logger.Info("job completed", "job_id", job.ID, "seq", job.Seq, "tick", d.tick, "ran_ticks", job.RanTicks)
		d.finish(ctx, job, model.JobStateTerminated, model.OutcomeCompleted, model.EventComplete, "")
		return
	}

	// A waiting job competes when its tier takes precedence over or equals
	// the running job's tier. System-tier jobs are never preempted.
	if job.IsSystem() || !d.ready.HasAtOrAbove(job.Priority) {
		return
	}
	// A job whose adjusted tier would be selected straight back keeps the
	// slot; suspending it would only resume it again.
	next := adjustPriority(job.Priority, d.cfg.Aging)
	if !d.ready.HasAtOrAbove(next) {
		return
	}

	d.running = nil
	if err := d.ctrl.Suspend(ctx, job); err != nil {
		d.fail(ctx, job, err)
		return
	}
	if err := job.Transition(model.JobStateSuspended); err != nil {
		d.fail(ctx, job, err)
		return
	}
	from := job.Priority
	job.Priority = next
	if err := job.Transition(model.JobStateReady); err != nil {
		d.fail(ctx, job, err)
		return
	}
	if err := d.ready.Enqueue(job); err != nil {
		d.fail(ctx, job, err)
		return
	}
	d.logger.Info("job preempted",
		"job_id", job.ID, "seq", job.Seq, "tick", d.tick,
		"remaining", job.RemainingProcessorTime, "from_priority", from, "priority", job.Priority)
	d.emit(ctx, model.EventPreempt, job, fmt.Sprintf("priority %d -> %d", from, job.Priority))
}

// dispatch fills an empty running slot from the ready queues. A job whose
// start or resume fails is dropped and the next candidate is tried.
func (d *Dispatcher) dispatch(ctx context.Context) {
	for d.running == nil {
		job, err := d.ready.Select()
		if err != nil {
			return
		}

		kind := model.EventStart
		if job.HasProcess() {
			kind = model.EventResume
			err = d.ctrl.Resume(ctx, job)
		} else {
			err = d.ctrl.Start(ctx, job)
		}
		if err != nil {
			d.fail(ctx, job, err)
			continue
		}
		if err := job.Transition(model.JobStateRunning); err != nil {
			d.fail(ctx, job, err)
			continue
		}
		if kind == model.EventStart {
			now := time.Now().UTC()
			job.StartedAt = &now
			d.watchdog.Watch(job)
		}

		d.running = job
		msg := "job started"
		if kind == model.EventResume {
			msg = "job resumed"
		}
		d.logger.Info(msg,
			"job_id", job.ID, "seq", job.Seq, "tick", d.tick,
			"priority", job.Priority, "remaining", job.RemainingProcessorTime, "pid", job.PID)
		d.emit(ctx, kind, job, "")
	}
}

// fail retires job after a refused transition. A failure on a job the
// watchdog already claimed is the watchdog's kill, not a fault.
func (d *Dispatcher) fail(ctx context.Context, job *model.Job, err error) {
	if d.watchdog.Fired(job.ID) {
		d.retireByWatchdog(ctx, job)
		return
	}
	d.logger.Error("job failed", "job_id", job.ID, "seq", job.Seq, "tick", d.tick, "error", err)
	job.Err = err.Error()
	d.finish(ctx, job, model.JobStateFailed, model.OutcomeFailed, model.EventFail, err.Error())
}

func (d *Dispatcher) retireByWatchdog(ctx context.Context, job *model.Job) {
	d.logger.Warn("job terminated by watchdog",
		"job_id", job.ID, "seq", job.Seq, "tick", d.tick, "remaining", job.RemainingProcessorTime)
	d.finish(ctx, job, model.JobStateTerminated, model.OutcomeWatchdog, model.EventWatchdog, "lifetime ceiling exceeded")
}

// finish moves job into a terminal state and reclaims its process. An
// illegal transition is a bookkeeping bug; the job is failed regardless.
func (d *Dispatcher) finish(ctx context.Context, job *model.Job, state model.JobState, outcome model.Outcome, kind model.EventKind, detail string) {
	if err := job.Transition(state); err != nil {
		d.logger.Error("invalid job transition", "job_id", job.ID, "error", err)
		now := time.Now().UTC()
		job.State = model.JobStateFailed
		job.FinishedAt = &now
		job.Err = err.Error()
		outcome, kind, detail = model.OutcomeFailed, model.EventFail, err.Error()
	}
	job.Outcome = outcome
	d.watchdog.Forget(job.ID)
	if job.HasProcess() {
		d.ctrl.Release(job)
	}
	d.emit(ctx, kind, job, detail)
}

// shutdown terminates every live job after cancellation.
func (d *Dispatcher) shutdown(ctx context.Context) {
	d.watchdog.Stop()
	ctx = context.WithoutCancel(ctx)

	live := make([]*model.Job, 0, d.ready.Len()+1)
	if d.running != nil {
		live = append(live, d.running)
		d.running = nil
	}
	for {
		job, err := d.ready.Select()
		if err != nil {
			break
		}
		live = append(live, job)
	}

	for _, job := range live {
		if job.HasProcess() {
			if err := d.ctrl.Terminate(ctx, job); err != nil {
				d.logger.Error("terminate on shutdown", "job_id", job.ID, "pid", job.PID, "error", err)
			}
		}
		d.finish(ctx, job, model.JobStateTerminated, model.OutcomeCancelled, model.EventCancel, "dispatcher cancelled")
	}
	d.publish()
}

// emit fans ev out to every sink.
func (d *Dispatcher) emit(ctx context.Context, kind model.EventKind, job *model.Job, detail string) {
	ev := model.NewEvent(d.runID, d.tick, kind, job)
	ev.Detail = detail
	for _, s := range d.sinks {
		if err := s.Record(ctx, ev); err != nil {
			d.logger.Warn("record event", "kind", kind, "job_id", job.ID, "error", err)
		}
	}
}

// publish stores an immutable copy of the current state.
func (d *Dispatcher) publish() {
	s := &model.Snapshot{
		RunID:     d.runID,
		Tick:      d.tick,
		Queues:    d.ready.Snapshot(),
		Pending:   d.source.Remaining(),
		Finished:  []model.Job{},
		Done:      d.done,
		UpdatedAt: time.Now().UTC(),
	}
	if d.running != nil {
		cp := *d.running
		s.Running = &cp
	}
	for _, j := range d.jobs {
		if j.State.IsTerminal() {
			s.Finished = append(s.Finished, *j)
		}
	}
	d.snap.Store(s)
	for _, fn := range d.observers {
		fn(s)
	}
}

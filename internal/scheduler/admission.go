package scheduler

import (
	"context"
	"fmt"

	"github.com/me/dispatch/pkg/model"
)

// admit moves every due job from the source into its ready queue. The
// source is sorted by arrival, so admission stops at the first job whose
// arrival is still in the future.
func (d *Dispatcher) admit(ctx context.Context) {
	for {
		desc, ok := d.source.Peek()
		if !ok {
			return
		}
		if d.cfg.Admission == AdmitOnArrival && desc.Arrival > d.tick {
			return
		}
		d.source.Pop()

		job := model.NewJob(desc.Seq, desc.Arrival, desc.Priority, desc.ProcessorTime)
		d.jobs = append(d.jobs, job)
		d.byID[job.ID] = job

		if !model.ValidPriority(job.Priority) {
			d.logger.Warn("priority outside tiers, clamping to system tier",
				"job_id", job.ID, "seq", job.Seq, "priority", job.Priority)
			detail := fmt.Sprintf("priority %d clamped to %d", job.Priority, model.TierSystem)
			job.Priority = model.TierSystem
			d.emit(ctx, model.EventClamp, job, detail)
		}

		if err := job.Transition(model.JobStateReady); err != nil {
			d.logger.Error("admit job", "job_id", job.ID, "error", err)
			continue
		}
		if err := d.ready.Enqueue(job); err != nil {
			d.logger.Error("enqueue admitted job", "job_id", job.ID, "error", err)
			continue
		}
		d.logger.Debug("job admitted", "job_id", job.ID, "seq", job.Seq, "tick", d.tick, "priority", job.Priority)
		d.emit(ctx, model.EventAdmit, job, "")
	}
}

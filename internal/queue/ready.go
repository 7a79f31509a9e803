package queue

import (
	"fmt"

	"github.com/me/dispatch/pkg/model"
)

// ReadyQueues holds one FIFO per priority tier.
// It is owned by the dispatcher loop and is not safe for concurrent use.
type ReadyQueues struct {
	tiers [model.NumTiers]*FIFO[*model.Job]
}

// NewReadyQueues creates four empty tier queues.
func NewReadyQueues() *ReadyQueues {
	rq := &ReadyQueues{}
	for i := range rq.tiers {
		rq.tiers[i] = NewFIFO[*model.Job]()
	}
	return rq
}

// Enqueue appends job to the queue for its current priority.
// A job can only be in one queue at a time.
func (rq *ReadyQueues) Enqueue(job *model.Job) error {
	if !model.ValidPriority(job.Priority) {
		return fmt.Errorf("job %s: priority %d outside tiers", job.ID, job.Priority)
	}
	if rq.Contains(job) {
		return fmt.Errorf("job %s: already queued", job.ID)
	}
	rq.tiers[job.Priority].Enqueue(job)
	return nil
}

// Select dequeues the next job to run: the system tier first, then the
// lowest-numbered non-empty user tier.
func (rq *ReadyQueues) Select() (*model.Job, error) {
	for _, q := range rq.tiers {
		if q.Len() > 0 {
			return q.Dequeue()
		}
	}
	return nil, ErrEmpty
}

// Peek returns the job Select would return, without removing it.
func (rq *ReadyQueues) Peek() (*model.Job, bool) {
	for _, q := range rq.tiers {
		if job, ok := q.Peek(); ok {
			return job, true
		}
	}
	return nil, false
}

// HasAtOrAbove reports whether any job waits in tier or a tier that takes
// precedence over it.
func (rq *ReadyQueues) HasAtOrAbove(tier int) bool {
	if tier >= model.NumTiers {
		tier = model.NumTiers - 1
	}
	for i := 0; i <= tier; i++ {
		if rq.tiers[i].Len() > 0 {
			return true
		}
	}
	return false
}

// Tier returns the queue for one tier.
func (rq *ReadyQueues) Tier(tier int) *FIFO[*model.Job] {
	return rq.tiers[tier]
}

// Len returns the number of jobs across all tiers.
func (rq *ReadyQueues) Len() int {
	n := 0
	for _, q := range rq.tiers {
		n += q.Len()
	}
	return n
}

// Empty reports whether all four queues are empty.
func (rq *ReadyQueues) Empty() bool {
	return rq.Len() == 0
}

// Contains reports whether job is waiting in any tier.
func (rq *ReadyQueues) Contains(job *model.Job) bool {
	for _, q := range rq.tiers {
		if q.Contains(job) {
			return true
		}
	}
	return false
}

// Remove takes job out of whichever tier holds it.
func (rq *ReadyQueues) Remove(job *model.Job) bool {
	for _, q := range rq.tiers {
		if q.Remove(job) {
			return true
		}
	}
	return false
}

// Snapshot copies every queued job, tier by tier, front to back.
func (rq *ReadyQueues) Snapshot() [model.NumTiers][]model.Job {
	var out [model.NumTiers][]model.Job
	for i, q := range rq.tiers {
		vals := q.Values()
		out[i] = make([]model.Job, 0, len(vals))
		for _, j := range vals {
			out[i] = append(out[i], *j)
		}
	}
	return out
}

package scheduler

import (
	"fmt"
	"io"

	"github.com/me/dispatch/internal/jobfile"
	"github.com/me/dispatch/pkg/model"
	"golang.org/x/time/rate"
)

var tierLabels = [model.NumTiers]string{"sysqueue", "p1", "p2", "p3"}

// dumper prints queue contents in the job-file display format.
type dumper struct {
	w     io.Writer
	every int
	pace  rate.Sometimes
}

func newDumper(w io.Writer, every int) *dumper {
	if w == nil {
		w = io.Discard
	}
	return &dumper{w: w, every: every, pace: rate.Sometimes{Every: every}}
}

// jobList prints every job in the file, before the run starts.
func (d *dumper) jobList(descs []jobfile.Descriptor) {
	fmt.Fprintln(d.w, "jobslist:")
	for _, desc := range descs {
		fmt.Fprintln(d.w, desc.String())
	}
}

// tick prints the pending jobs and the four ready queues on the first call
// and then on every d.every-th call.
func (d *dumper) tick(tick int, pending []jobfile.Descriptor, queues [model.NumTiers][]model.Job) {
	if d.every <= 0 {
		return
	}
	d.pace.Do(func() {
		fmt.Fprintf(d.w, "tick %d\n", tick)
		fmt.Fprintln(d.w, "joblist:")
		for _, desc := range pending {
			fmt.Fprintln(d.w, desc.String())
		}
		for i, q := range queues {
			fmt.Fprintf(d.w, "%s:\n", tierLabels[i])
			for _, job := range q {
				fmt.Fprintln(d.w, job.Triple())
			}
		}
	})
}

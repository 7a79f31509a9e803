// Package metrics exposes dispatcher activity as Prometheus collectors.
package metrics

import (
	"context"
	"strconv"

	"github.com/me/dispatch/pkg/model"
	"github.com/prometheus/client_golang/prometheus"
)

// Recorder counts scheduling events and tracks queue depth. It is an event
// sink and a snapshot observer for the dispatcher.
type Recorder struct {
	EventsTotal *prometheus.CounterVec
	ReadyJobs   *prometheus.GaugeVec
	Tick        prometheus.Gauge
	Running     prometheus.Gauge
}

// New creates unregistered collectors.
func New() *Recorder {
	return &Recorder{
		EventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "dispatch_events_total", Help: "Scheduling events by kind"},
			[]string{"kind"},
		),
		ReadyJobs: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Name: "dispatch_ready_jobs", Help: "Jobs waiting per ready queue"},
			[]string{"tier"},
		),
		Tick: prometheus.NewGauge(
			prometheus.GaugeOpts{Name: "dispatch_tick", Help: "Current simulated tick"},
		),
		Running: prometheus.NewGauge(
			prometheus.GaugeOpts{Name: "dispatch_running", Help: "1 while a job holds the running slot"},
		),
	}
}

func (r *Recorder) Collectors() []prometheus.Collector {
	return []prometheus.Collector{r.EventsTotal, r.ReadyJobs, r.Tick, r.Running}
}

// Register adds every collector to reg.
func (r *Recorder) Register(reg prometheus.Registerer) error {
	for _, c := range r.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Record counts ev. It never fails.
func (r *Recorder) Record(_ context.Context, ev model.Event) error {
	r.EventsTotal.WithLabelValues(string(ev.Kind)).Inc()
	return nil
}

// Observe updates the gauges from a tick-boundary snapshot.
func (r *Recorder) Observe(s *model.Snapshot) {
	for tier, q := range s.Queues {
		r.ReadyJobs.WithLabelValues(strconv.Itoa(tier)).Set(float64(len(q)))
	}
	r.Tick.Set(float64(s.Tick))
	if s.Running != nil {
		r.Running.Set(1)
	} else {
		r.Running.Set(0)
	}
}

// Package scheduler runs the tiered dispatch loop: admission, preemption,
// aging and the watchdog that bounds every process's lifetime.
package scheduler

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/me/dispatch/pkg/model"
)

// Aging selects how a preempted job's priority is adjusted.
type Aging string

const (
	// AgingDemote moves a preempted job one tier toward tier 3.
	AgingDemote Aging = "demote"
	// AgingPromote moves a preempted job one tier toward tier 1.
	AgingPromote Aging = "promote"
)

// Admission selects when jobs enter the ready queues.
type Admission string

const (
	// AdmitOnArrival admits a job once the tick reaches its arrival time.
	AdmitOnArrival Admission = "arrival"
	// AdmitImmediately admits every job at tick 0 regardless of arrival.
	AdmitImmediately Admission = "immediate"
)

// Config holds dispatcher configuration.
type Config struct {
	// Tick is the real duration of one simulated tick. Zero runs the loop
	// without pacing.
	Tick time.Duration

	// WatchdogCeiling is the maximum wall-clock lifetime of a process.
	// Zero disables the watchdog.
	WatchdogCeiling time.Duration

	Aging     Aging
	Admission Admission

	// DumpEvery is the number of ticks between queue dumps. Zero disables
	// periodic dumps.
	DumpEvery int
}

// DefaultConfig returns a one-second tick with a 20-tick watchdog ceiling.
func DefaultConfig() Config {
	return Config{
		Tick:            time.Second,
		WatchdogCeiling: 20 * time.Second,
		Aging:           AgingDemote,
		Admission:       AdmitOnArrival,
		DumpEvery:       5,
	}
}

// Validate checks the enumerated fields and durations.
func (c Config) Validate() error {
	switch c.Aging {
	case AgingDemote, AgingPromote:
	default:
		return fmt.Errorf("unknown aging policy %q (want demote or promote)", c.Aging)
	}
	switch c.Admission {
	case AdmitOnArrival, AdmitImmediately:
	default:
		return fmt.Errorf("unknown admission mode %q (want arrival or immediate)", c.Admission)
	}
	if c.Tick < 0 {
		return fmt.Errorf("tick must not be negative: %s", c.Tick)
	}
	if c.WatchdogCeiling < 0 {
		return fmt.Errorf("watchdog ceiling must not be negative: %s", c.WatchdogCeiling)
	}
	if c.DumpEvery < 0 {
		return fmt.Errorf("dump interval must not be negative: %d", c.DumpEvery)
	}
	return nil
}

// EventSink receives every scheduling event in order. Sinks are called from
// the dispatcher goroutine; an error is logged and never stops the run.
type EventSink interface {
	Record(ctx context.Context, ev model.Event) error
}

// Option customizes a Dispatcher.
type Option func(*Dispatcher)

// WithSink adds an event sink.
func WithSink(s EventSink) Option {
	return func(d *Dispatcher) { d.sinks = append(d.sinks, s) }
}

// WithObserver calls fn with every snapshot the dispatcher publishes, from
// the dispatcher goroutine.
func WithObserver(fn func(*model.Snapshot)) Option {
	return func(d *Dispatcher) { d.observers = append(d.observers, fn) }
}

// WithDumpWriter sends queue dumps to w. Without it dumps are discarded.
func WithDumpWriter(w io.Writer) Option {
	return func(d *Dispatcher) { d.dumper = newDumper(w, d.cfg.DumpEvery) }
}

// WithRunID overrides the generated run ID.
func WithRunID(id string) Option {
	return func(d *Dispatcher) { d.runID = id }
}

// Package journal keeps an append-only sqlite record of scheduling events.
package journal

import (
	"context"
	"time"

	"github.com/me/dispatch/pkg/model"
)

// Journal records dispatcher events and reads them back.
type Journal interface {
	// Record appends one event. It satisfies scheduler.EventSink.
	Record(ctx context.Context, ev model.Event) error

	// Events returns matching events in the order they were recorded.
	Events(ctx context.Context, f Filter) ([]model.Event, error)

	// Runs summarizes every recorded run, newest first.
	Runs(ctx context.Context) ([]RunSummary, error)

	Migrate(ctx context.Context) error
	Close() error
}

// Filter narrows an Events query. Zero fields match everything.
type Filter struct {
	RunID string
	JobID string
	Kind  model.EventKind
	Limit int
}

// RunSummary describes one dispatcher run.
type RunSummary struct {
	RunID     string    `json:"run_id"`
	StartedAt time.Time `json:"started_at"`
	LastTick  int       `json:"last_tick"`
	Events    int       `json:"events"`
	Failed    int       `json:"failed"`
}

package model

import "time"

// Response is the standard API response envelope.
type Response struct {
	Status    string    `json:"status"`
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
	Error     *APIError `json:"error"`
}

// Snapshot is a read-only copy of the dispatcher state at a tick boundary.
type Snapshot struct {
	RunID     string          `json:"run_id"`
	Tick      int             `json:"tick"`
	Running   *Job            `json:"running,omitempty"`
	Queues    [NumTiers][]Job `json:"queues"`
	Pending   int             `json:"pending"`
	Finished  []Job           `json:"finished"`
	Done      bool            `json:"done"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// ReadyCount returns the number of jobs across all ready queues.
func (s *Snapshot) ReadyCount() int {
	n := 0
	for _, q := range s.Queues {
		n += len(q)
	}
	return n
}

package journal

import (
	"encoding/json"
	"errors"
	"time"
)

var ErrNotFound = errors.New("journal entry not found")

// Run is one dispatcher run.
type Run struct {
	ID            string    `json:"id"`
	DispatcherPID int       `json:"dispatcher_pid"`
	StartedAt     time.Time `json:"started_at"`
	Tasks         int       `json:"tasks"`
	Collected     int       `json:"collected"`
	Failed        int       `json:"failed"`
}

// TaskRecord is the persisted view of a task. Outcome fields are nil until
// the task has been collected.
type TaskRecord struct {
	ID          string          `json:"id"`
	RunID       string          `json:"run_id"`
	Seq         int             `json:"seq"`
	Callable    string          `json:"callable"`
	Arguments   json.RawMessage `json:"arguments"`
	Fingerprint string          `json:"fingerprint"`
	PID         int             `json:"pid"`
	OwnerPID    int             `json:"owner_pid"`
	StartedAt   time.Time       `json:"started_at"`
	RawStatus   *uint32         `json:"raw_status,omitempty"`
	ExitCode    *int            `json:"exit_code,omitempty"`
	Signal      *string         `json:"signal,omitempty"`
	CollectedAt *time.Time      `json:"collected_at,omitempty"`
}

// Collected reports whether the outcome has been recorded.
func (r *TaskRecord) Collected() bool {
	return r.ExitCode != nil
}

package api

import "github.com/mattjoyce/forkjoin/internal/journal"

// ErrorResponse is returned on errors
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthzResponse is returned by GET /healthz.
type HealthzResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

// RunListResponse is returned by GET /runs.
type RunListResponse struct {
	Runs []journal.Run `json:"runs"`
}

// TaskListResponse is returned by the task list endpoints.
type TaskListResponse struct {
	Tasks []*journal.TaskRecord `json:"tasks"`
}

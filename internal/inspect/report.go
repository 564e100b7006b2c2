// Package inspect renders a detailed report for one journaled task together
// with every other recorded launch of the same work.
package inspect

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattjoyce/forkjoin/internal/journal"
)

// Source is the journal read side needed by a report.
type Source interface {
	GetTask(ctx context.Context, id string) (*journal.TaskRecord, error)
	FindByFingerprint(ctx context.Context, fingerprint string) ([]*journal.TaskRecord, error)
}

// Report is the structured JSON representation of a task report.
type Report struct {
	TaskID      string          `json:"task_id"`
	RunID       string          `json:"run_id"`
	Seq         int             `json:"seq"`
	Callable    string          `json:"callable"`
	Arguments   json.RawMessage `json:"arguments"`
	Fingerprint string          `json:"fingerprint"`
	PID         int             `json:"pid"`
	OwnerPID    int             `json:"owner_pid"`
	Status      string          `json:"status"`
	RawStatus   *uint32         `json:"raw_status,omitempty"`
	ExitCode    *int            `json:"exit_code,omitempty"`
	StartedAt   time.Time       `json:"started_at"`
	CollectedAt *time.Time      `json:"collected_at,omitempty"`
	Duration    string          `json:"duration,omitempty"`
	History     []Step          `json:"history"`
}

// Step is one other launch of the same callable and arguments.
type Step struct {
	TaskID    string    `json:"task_id"`
	RunID     string    `json:"run_id"`
	Status    string    `json:"status"`
	ExitCode  *int      `json:"exit_code,omitempty"`
	StartedAt time.Time `json:"started_at"`
}

// BuildReport renders a terminal-friendly report for a task.
func BuildReport(ctx context.Context, src Source, taskID string) (string, error) {
	report, err := gatherReportData(ctx, src, taskID)
	if err != nil {
		return "", err
	}

	var out strings.Builder
	fmt.Fprintf(&out, "Task Report\n")
	fmt.Fprintf(&out, "Task ID     : %s\n", report.TaskID)
	fmt.Fprintf(&out, "Run ID      : %s (#%d)\n", report.RunID, report.Seq)
	fmt.Fprintf(&out, "Callable    : %s\n", report.Callable)
	fmt.Fprintf(&out, "Fingerprint : %s\n", report.Fingerprint)
	fmt.Fprintf(&out, "PID         : %d (owner %d)\n", report.PID, report.OwnerPID)
	fmt.Fprintf(&out, "Status      : %s\n", report.Status)
	if report.ExitCode != nil {
		fmt.Fprintf(&out, "Exit code   : %d\n", *report.ExitCode)
	}
	if report.RawStatus != nil {
		fmt.Fprintf(&out, "Raw status  : %#x\n", *report.RawStatus)
	}
	fmt.Fprintf(&out, "Started     : %s\n", report.StartedAt.Local().Format(time.RFC3339))
	if report.Duration != "" {
		fmt.Fprintf(&out, "Duration    : %s\n", report.Duration)
	}
	fmt.Fprintf(&out, "Arguments   :\n%s\n", indent(prettyJSON(report.Arguments), "    "))
	fmt.Fprintf(&out, "\n")

	if len(report.History) == 0 {
		fmt.Fprintf(&out, "No other launches of this work.\n")
		return out.String(), nil
	}

	fmt.Fprintf(&out, "Other launches (%d)\n", len(report.History))
	for i, step := range report.History {
		exit := "-"
		if step.ExitCode != nil {
			exit = fmt.Sprintf("%d", *step.ExitCode)
		}
		fmt.Fprintf(&out, "[%d] %s run=%s %s exit=%s\n",
			i+1, step.StartedAt.Local().Format(time.RFC3339), step.RunID, step.Status, exit)
		fmt.Fprintf(&out, "    task_id : %s\n", step.TaskID)
	}

	return strings.TrimRight(out.String(), "\n") + "\n", nil
}

// BuildJSONReport returns the machine-readable JSON task report.
func BuildJSONReport(ctx context.Context, src Source, taskID string) (string, error) {
	report, err := gatherReportData(ctx, src, taskID)
	if err != nil {
		return "", err
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal json report: %w", err)
	}
	return string(data), nil
}

func gatherReportData(ctx context.Context, src Source, taskID string) (*Report, error) {
	if strings.TrimSpace(taskID) == "" {
		return nil, fmt.Errorf("task_id is required")
	}

	rec, err := src.GetTask(ctx, taskID)
	if err != nil {
		if errors.Is(err, journal.ErrNotFound) {
			return nil, fmt.Errorf("task %q not found", taskID)
		}
		return nil, fmt.Errorf("query task %q: %w", taskID, err)
	}

	report := &Report{
		TaskID:      rec.ID,
		RunID:       rec.RunID,
		Seq:         rec.Seq,
		Callable:    rec.Callable,
		Arguments:   rec.Arguments,
		Fingerprint: rec.Fingerprint,
		PID:         rec.PID,
		OwnerPID:    rec.OwnerPID,
		Status:      describe(rec),
		RawStatus:   rec.RawStatus,
		ExitCode:    rec.ExitCode,
		StartedAt:   rec.StartedAt,
		CollectedAt: rec.CollectedAt,
		History:     make([]Step, 0),
	}
	if rec.CollectedAt != nil {
		report.Duration = rec.CollectedAt.Sub(rec.StartedAt).Round(time.Millisecond).String()
	}

	same, err := src.FindByFingerprint(ctx, rec.Fingerprint)
	if err != nil {
		return nil, fmt.Errorf("load launches of %s: %w", rec.Fingerprint, err)
	}
	for _, other := range same {
		if other.ID == rec.ID {
			continue
		}
		report.History = append(report.History, Step{
			TaskID:    other.ID,
			RunID:     other.RunID,
			Status:    describe(other),
			ExitCode:  other.ExitCode,
			StartedAt: other.StartedAt,
		})
	}

	return report, nil
}

// describe summarises how a recorded task ended.
func describe(rec *journal.TaskRecord) string {
	switch {
	case !rec.Collected():
		return "running"
	case rec.Signal != nil:
		return "signaled(" + *rec.Signal + ")"
	default:
		return fmt.Sprintf("exited(%d)", *rec.ExitCode)
	}
}

func prettyJSON(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "[]"
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return string(raw)
	}
	return string(out)
}

func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}

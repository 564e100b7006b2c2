package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sys/unix"

	"github.com/mattjoyce/forkjoin/internal/task"
)

// Journal persists dispatcher runs and task outcomes in SQLite. It satisfies
// dispatch.Recorder.
type Journal struct {
	db *sql.DB
}

func New(db *sql.DB) *Journal {
	return &Journal{db: db}
}

// RunStarted inserts the run row.
func (j *Journal) RunStarted(ctx context.Context, runID string, dispatcherPID int) error {
	if runID == "" {
		return fmt.Errorf("runID is empty")
	}
	_, err := j.db.ExecContext(ctx, `
INSERT INTO task_run(id, dispatcher_pid, started_at)
VALUES(?, ?, ?);
`, runID, dispatcherPID, formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("insert task_run: %w", err)
	}
	return nil
}

// TaskStarted records a launched task.
func (j *Journal) TaskStarted(ctx context.Context, runID string, seq int, t *task.Task) error {
	pid, ok := t.ProcessID()
	if !ok {
		return fmt.Errorf("task %s has not been executed", t.ID())
	}
	owner, _ := t.OwnerPID()
	encoded := t.EncodedArguments()
	name := t.Callable().Name()

	_, err := j.db.ExecContext(ctx, `
INSERT INTO task_log(id, run_id, seq, callable, arguments, fingerprint, pid, owner_pid, started_at)
VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?);
`, t.ID(), runID, seq, name, argumentsJSON(encoded), Fingerprint(name, encoded), pid, owner, formatTime(t.StartedAt()))
	if err != nil {
		return fmt.Errorf("insert task_log: %w", err)
	}
	return nil
}

// TaskCollected records a task's outcome. Recording the same outcome twice is harmless.
func (j *Journal) TaskCollected(ctx context.Context, runID string, t *task.Task) error {
	st, ok := t.Status()
	if !ok {
		return fmt.Errorf("task %s has not been collected", t.ID())
	}
	code, _ := t.ExitCode()

	var signal any
	if st.Signaled() {
		signal = unix.SignalName(st.Signal())
	}

	res, err := j.db.ExecContext(ctx, `
UPDATE task_log
SET raw_status = ?, exit_code = ?, signal = ?, collected_at = ?
WHERE id = ? AND run_id = ?;
`, int64(st.Raw()), code, signal, formatTime(t.CollectedAt()), t.ID(), runID)
	if err != nil {
		return fmt.Errorf("update task_log: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("task %s in run %s: %w", t.ID(), runID, ErrNotFound)
	}
	return nil
}

// ListRuns returns the most recent runs first.
func (j *Journal) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := j.db.QueryContext(ctx, `
SELECT r.id, r.dispatcher_pid, r.started_at,
  COUNT(l.id),
  COUNT(l.exit_code),
  COALESCE(SUM(CASE WHEN l.exit_code != 0 THEN 1 ELSE 0 END), 0)
FROM task_run r
LEFT JOIN task_log l ON l.run_id = r.id
GROUP BY r.id
ORDER BY r.started_at DESC, r.rowid DESC
LIMIT ?;
`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var (
			r         Run
			startedAt string
		)
		if err := rows.Scan(&r.ID, &r.DispatcherPID, &startedAt, &r.Tasks, &r.Collected, &r.Failed); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.StartedAt = parseTime(startedAt)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return out, nil
}

const taskColumns = `id, run_id, seq, callable, arguments, fingerprint, pid, owner_pid, started_at,
  raw_status, exit_code, signal, collected_at`

// GetRun returns a single run summary.
func (j *Journal) GetRun(ctx context.Context, id string) (*Run, error) {
	var (
		r         Run
		startedAt string
	)
	err := j.db.QueryRowContext(ctx, `
SELECT r.id, r.dispatcher_pid, r.started_at,
  COUNT(l.id),
  COUNT(l.exit_code),
  COALESCE(SUM(CASE WHEN l.exit_code != 0 THEN 1 ELSE 0 END), 0)
FROM task_run r
LEFT JOIN task_log l ON l.run_id = r.id
WHERE r.id = ?
GROUP BY r.id;
`, id).Scan(&r.ID, &r.DispatcherPID, &startedAt, &r.Tasks, &r.Collected, &r.Failed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	r.StartedAt = parseTime(startedAt)
	return &r, nil
}

// ListTasks returns a run's tasks in launch order.
func (j *Journal) ListTasks(ctx context.Context, runID string) ([]*TaskRecord, error) {
	rows, err := j.db.QueryContext(ctx, `
SELECT `+taskColumns+`
FROM task_log
WHERE run_id = ?
ORDER BY seq ASC;
`, runID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()
	return scanTasks(rows)
}

// FindByFingerprint returns every recorded launch of the same work, newest first.
func (j *Journal) FindByFingerprint(ctx context.Context, fingerprint string) ([]*TaskRecord, error) {
	rows, err := j.db.QueryContext(ctx, `
SELECT `+taskColumns+`
FROM task_log
WHERE fingerprint = ?
ORDER BY started_at DESC, rowid DESC;
`, fingerprint)
	if err != nil {
		return nil, fmt.Errorf("find by fingerprint: %w", err)
	}
	defer rows.Close()
	return scanTasks(rows)
}

// GetTask returns a single task record.
func (j *Journal) GetTask(ctx context.Context, id string) (*TaskRecord, error) {
	rows, err := j.db.QueryContext(ctx, `
SELECT `+taskColumns+`
FROM task_log
WHERE id = ?;
`, id)
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	defer rows.Close()

	recs, err := scanTasks(rows)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, ErrNotFound
	}
	return recs[0], nil
}

func scanTasks(rows *sql.Rows) ([]*TaskRecord, error) {
	var out []*TaskRecord
	for rows.Next() {
		var (
			r           TaskRecord
			arguments   string
			startedAt   string
			rawStatus   sql.NullInt64
			exitCode    sql.NullInt64
			signal      sql.NullString
			collectedAt sql.NullString
		)
		err := rows.Scan(
			&r.ID, &r.RunID, &r.Seq, &r.Callable, &arguments, &r.Fingerprint, &r.PID, &r.OwnerPID, &startedAt,
			&rawStatus, &exitCode, &signal, &collectedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}

		r.Arguments = []byte(arguments)
		r.StartedAt = parseTime(startedAt)
		if rawStatus.Valid {
			v := uint32(rawStatus.Int64)
			r.RawStatus = &v
		}
		if exitCode.Valid {
			v := int(exitCode.Int64)
			r.ExitCode = &v
		}
		if signal.Valid {
			r.Signal = &signal.String
		}
		if collectedAt.Valid {
			t := parseTime(collectedAt.String)
			r.CollectedAt = &t
		}
		out = append(out, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	return out, nil
}

// timeLayout is fixed width so that text order matches time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// IsNotFound reports whether err is ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/google/uuid"

	"github.com/mattjoyce/forkjoin/internal/log"
	"github.com/mattjoyce/forkjoin/internal/task"
)

// ErrNotDispatcher is returned when a Manager is used from a process other
// than the one that created it.
var ErrNotDispatcher = errors.New("caller is not the dispatcher process")

// currentPID reports the identity of the calling process.
var currentPID = os.Getpid

// Manager owns the tasks launched by the dispatcher process.
type Manager struct {
	dispatcherPID int
	runID         string
	recorder      Recorder
	logger        *slog.Logger

	// runOnce orders RunStarted before any TaskStarted, even across
	// concurrent Start calls.
	runOnce sync.Once

	mu       sync.Mutex
	tasks    []*task.Task
	reported map[string]bool
}

// Option configures a Manager.
type Option func(*Manager)

// WithRecorder attaches a Recorder.
func WithRecorder(r Recorder) Option {
	return func(m *Manager) { m.recorder = r }
}

// WithLogger overrides the default component logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// New creates a Manager owned by the calling process.
func New(opts ...Option) *Manager {
	m := &Manager{
		dispatcherPID: currentPID(),
		runID:         uuid.NewString(),
		reported:      make(map[string]bool),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = log.WithComponent("dispatch")
	}
	m.logger = m.logger.With("run_id", m.runID)
	return m
}

// RunID identifies this manager's run in logs and the journal.
func (m *Manager) RunID() string { return m.runID }

// DispatcherPID returns the pid of the owning process.
func (m *Manager) DispatcherPID() int { return m.dispatcherPID }

func (m *Manager) checkDispatcher(op string) error {
	if self := currentPID(); self != m.dispatcherPID {
		return fmt.Errorf("%s from pid %d (dispatcher %d): %w", op, self, m.dispatcherPID, ErrNotDispatcher)
	}
	return nil
}

// Start builds a Task for c and args, executes it and tracks it. It returns
// as soon as the child process exists.
func (m *Manager) Start(ctx context.Context, c task.Callable, args ...any) (*task.Task, error) {
	if err := m.checkDispatcher("start"); err != nil {
		return nil, err
	}

	t, err := task.New(c, args...)
	if err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	if err := t.Execute(); err != nil {
		return nil, fmt.Errorf("execute task: %w", err)
	}

	m.mu.Lock()
	m.tasks = append(m.tasks, t)
	seq := len(m.tasks)
	m.mu.Unlock()

	pid, _ := t.ProcessID()
	m.logger.Info("task started", "task_id", t.ID(), "callable", c.Name(), "pid", pid, "seq", seq)

	if m.recorder != nil {
		m.runOnce.Do(func() {
			if err := m.recorder.RunStarted(ctx, m.runID, m.dispatcherPID); err != nil {
				m.logger.Error("failed to record run start", "error", err)
			}
		})
		if err := m.recorder.TaskStarted(ctx, m.runID, seq, t); err != nil {
			m.logger.Error("failed to record task start", "task_id", t.ID(), "error", err)
		}
	}

	return t, nil
}

// Tasks returns the tracked tasks in launch order. The slice is a copy.
func (m *Manager) Tasks() []*task.Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*task.Task(nil), m.tasks...)
}

// WaitForAll collects every tracked task in launch order. A slow early task
// delays the report of faster later ones. It stops at the first collect
// error. ctx is only handed to the Recorder; waiting itself is unbounded.
func (m *Manager) WaitForAll(ctx context.Context) error {
	if err := m.checkDispatcher("wait for all"); err != nil {
		return err
	}

	for _, t := range m.Tasks() {
		code, err := t.Collect()
		if err != nil {
			m.logger.Error("failed to collect task", "task_id", t.ID(), "error", err)
			return fmt.Errorf("task %s: %w", t.ID(), err)
		}
		m.report(ctx, t, code)
	}
	return nil
}

// report logs and records an outcome once per task, even when the caller
// collected the task directly before WaitForAll.
func (m *Manager) report(ctx context.Context, t *task.Task, code int) {
	m.mu.Lock()
	done := m.reported[t.ID()]
	m.reported[t.ID()] = true
	m.mu.Unlock()
	if done {
		return
	}

	st, _ := t.Status()
	m.logger.Info("task collected", "task_id", t.ID(), "exit_code", code, "status", st.String())

	if m.recorder != nil {
		if err := m.recorder.TaskCollected(ctx, m.runID, t); err != nil {
			m.logger.Error("failed to record task outcome", "task_id", t.ID(), "error", err)
		}
	}
}

// Failed returns the collected tasks with a non-zero exit code, in launch order.
func (m *Manager) Failed() []*task.Task {
	var out []*task.Task
	for _, t := range m.Tasks() {
		if code, ok := t.ExitCode(); ok && code != 0 {
			out = append(out, t)
		}
	}
	return out
}

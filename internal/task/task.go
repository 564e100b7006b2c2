package task

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/docker/docker/pkg/reexec"
	"github.com/google/uuid"

	"github.com/mattjoyce/forkjoin/internal/log"
	"github.com/mattjoyce/forkjoin/internal/procwait"
)

// currentPID reports the identity of the calling process.
var currentPID = os.Getpid

// Task is one unit of work bound to its arguments and its outcome.
type Task struct {
	id       string
	callable Callable
	args     []any
	encoded  []string

	// collectMu serialises Collect so only one caller ever waits on pid.
	collectMu sync.Mutex

	mu          sync.RWMutex
	pid         int
	ownerPID    int
	startedAt   time.Time
	collected   bool
	status      procwait.Status
	exitCode    int
	collectedAt time.Time
}

// New returns an unexecuted Task. Arguments must be JSON-encodable.
func New(c Callable, args ...any) (*Task, error) {
	if !c.registered() {
		return nil, fmt.Errorf("%w: callable %q is not registered", ErrInvalidArgument, c.name)
	}

	encoded, err := encodeArgs(args)
	if err != nil {
		return nil, err
	}

	return &Task{
		id:       uuid.NewString(),
		callable: c,
		args:     append([]any(nil), args...),
		encoded:  encoded,
	}, nil
}

// Execute spawns the task's process and returns without waiting for it.
func (t *Task) Execute() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.pid != 0 {
		return fmt.Errorf("%w: pid %d", ErrAlreadyExecuted, t.pid)
	}

	argv := append([]string{initializerName(t.callable.name)}, t.encoded...)
	cmd := reexec.Command(argv...)
	if cmd == nil {
		return fmt.Errorf("%w: re-exec unsupported on this platform", ErrSpawnFailure)
	}
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = append(os.Environ(),
		envTaskID+"="+t.id,
		envParentPID+"="+strconv.Itoa(currentPID()),
		envLogLevel+"="+log.Level().String(),
	)

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%w: %v", ErrSpawnFailure, err)
	}

	t.pid = cmd.Process.Pid
	t.ownerPID = currentPID()
	t.startedAt = time.Now()

	// Collect waits on the pid directly; the os.Process handle is not needed.
	_ = cmd.Process.Release()
	return nil
}

// Collect blocks until the task's process terminates and returns its exit
// code. Once collected, it returns the cached result immediately.
func (t *Task) Collect() (int, error) {
	t.collectMu.Lock()
	defer t.collectMu.Unlock()

	t.mu.RLock()
	pid, owner, collected, code := t.pid, t.ownerPID, t.collected, t.exitCode
	t.mu.RUnlock()

	if pid == 0 {
		return 0, fmt.Errorf("collect task %s: %w", t.id, ErrTaskNotStarted)
	}
	if self := currentPID(); self != owner {
		return 0, fmt.Errorf("collect task %s from pid %d (owner %d): %w", t.id, self, owner, ErrNotOwner)
	}
	if collected {
		return code, nil
	}

	st, err := procwait.Wait(pid)
	if err != nil {
		if errors.Is(err, procwait.ErrNoChild) {
			return 0, fmt.Errorf("collect task %s: %w: %v", t.id, ErrProcessNotFound, err)
		}
		return 0, fmt.Errorf("collect task %s: %w", t.id, err)
	}

	t.mu.Lock()
	t.status = st
	t.exitCode = st.ExitCode()
	t.collected = true
	t.collectedAt = time.Now()
	code = t.exitCode
	t.mu.Unlock()

	return code, nil
}

// ID returns the task's unique identifier.
func (t *Task) ID() string { return t.id }

// Callable returns the task's callable.
func (t *Task) Callable() Callable { return t.callable }

// Arguments returns a copy of the task's arguments.
func (t *Task) Arguments() []any {
	return append([]any(nil), t.args...)
}

// EncodedArguments returns the arguments as passed to the child process.
func (t *Task) EncodedArguments() []string {
	return append([]string(nil), t.encoded...)
}

// ProcessID returns the spawned pid, if Execute has run.
func (t *Task) ProcessID() (int, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.pid, t.pid != 0
}

// OwnerPID returns the pid of the process that executed the task.
func (t *Task) OwnerPID() (int, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.ownerPID, t.pid != 0
}

// ExitCode returns the normalized exit code, if collected.
func (t *Task) ExitCode() (int, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.exitCode, t.collected
}

// Status returns the raw wait status, if collected.
func (t *Task) Status() (procwait.Status, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status, t.collected
}

// StartedAt returns when Execute spawned the process.
func (t *Task) StartedAt() time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.startedAt
}

// CollectedAt returns when Collect observed termination.
func (t *Task) CollectedAt() time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.collectedAt
}

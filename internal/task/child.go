package task

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/docker/docker/pkg/reexec"
	"golang.org/x/sys/unix"

	"github.com/mattjoyce/forkjoin/internal/log"
	"github.com/mattjoyce/forkjoin/internal/procwait"
)

const (
	// FailureExitCode is the exit status used when a Func fails.
	FailureExitCode = procwait.FailureExitCode

	envTaskID    = "FORKJOIN_TASK_ID"
	envParentPID = "FORKJOIN_PARENT_PID"
	envLogLevel  = "FORKJOIN_LOG_LEVEL"
)

// Init runs the registered Func when the current process is a task child.
// In a child it never returns. In any other process it returns false.
func Init() bool {
	return reexec.Init()
}

func runChild(c Callable) {
	// Stdout belongs to the task; the parent may be printing a report there.
	log.SetupWriter(os.Getenv(envLogLevel), os.Stderr)
	logger := log.WithTask(os.Getenv(envTaskID)).With("callable", c.name)

	args, err := decodeArgs(os.Args[1:])
	if err != nil {
		logger.Error("failed to decode task arguments", "error", err)
		unix.Exit(FailureExitCode)
	}

	// unix.Exit bypasses deferred calls and runtime exit hooks. Anything the
	// parent registered must not run a second time in the child.
	unix.Exit(invoke(c.fn, args, logger))
}

// invoke runs fn and maps its outcome to an exit status.
func invoke(fn Func, args Args, logger *slog.Logger) (code int) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("task panicked", "panic", fmt.Sprint(r))
			code = FailureExitCode
		}
	}()

	n, err := fn(args)
	if err != nil {
		logger.Error("task failed", "error", err)
		return FailureExitCode
	}
	if n < 0 || n > 255 {
		logger.Warn("task exit value outside 0-255, truncating", "value", n)
	}
	return n & 0xff
}

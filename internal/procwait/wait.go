package procwait

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// ErrNoChild is returned when the pid is not a waitable child of the caller.
var ErrNoChild = errors.New("no such child process")

// Wait blocks until the child identified by pid terminates and returns its
// status. There is no timeout; a child that never exits blocks forever.
func Wait(pid int) (Status, error) {
	if pid <= 0 {
		return Status{}, fmt.Errorf("invalid pid %d", pid)
	}

	for {
		var ws unix.WaitStatus
		wpid, err := unix.Wait4(pid, &ws, 0, nil)
		if err != nil {
			switch {
			case errors.Is(err, unix.EINTR):
				continue
			case errors.Is(err, unix.ECHILD):
				return Status{}, fmt.Errorf("wait pid %d: %w", pid, ErrNoChild)
			default:
				return Status{}, fmt.Errorf("wait pid %d: %w", pid, err)
			}
		}
		if wpid != pid {
			continue
		}

		st := Status{ws: ws}
		if !st.Terminal() {
			continue
		}
		return st, nil
	}
}

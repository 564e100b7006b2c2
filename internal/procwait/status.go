package procwait

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// FailureExitCode is the exit code synthesized for a process killed by a signal.
const FailureExitCode = 1

// Status is the raw termination word reported by wait4(2).
type Status struct {
	ws unix.WaitStatus
}

// FromRaw wraps a raw wait status word.
func FromRaw(raw uint32) Status {
	return Status{ws: unix.WaitStatus(raw)}
}

// Raw returns the unprocessed status word.
func (s Status) Raw() uint32 { return uint32(s.ws) }

func (s Status) Exited() bool    { return s.ws.Exited() }
func (s Status) Signaled() bool  { return s.ws.Signaled() }
func (s Status) Stopped() bool   { return s.ws.Stopped() }
func (s Status) Continued() bool { return s.ws.Continued() }

// ExitStatus returns the value passed to exit(2), or -1 if the process did not exit normally.
func (s Status) ExitStatus() int { return s.ws.ExitStatus() }

// Signal returns the terminating signal, or -1 if the process was not signaled.
func (s Status) Signal() unix.Signal { return s.ws.Signal() }

// Terminal reports whether the word describes a finished process.
func (s Status) Terminal() bool {
	return s.ws.Exited() || s.ws.Signaled()
}

// ExitCode normalizes the status into [0,255]. It returns -1 for a
// non-terminal status.
func (s Status) ExitCode() int {
	switch {
	case s.ws.Exited():
		return s.ws.ExitStatus()
	case s.ws.Signaled():
		return FailureExitCode
	default:
		return -1
	}
}

func (s Status) String() string {
	switch {
	case s.ws.Exited():
		return fmt.Sprintf("exited(%d)", s.ws.ExitStatus())
	case s.ws.Signaled():
		return fmt.Sprintf("signaled(%s)", unix.SignalName(s.ws.Signal()))
	case s.ws.Stopped():
		return fmt.Sprintf("stopped(%s)", unix.SignalName(s.ws.StopSignal()))
	case s.ws.Continued():
		return "continued"
	default:
		return fmt.Sprintf("unknown(%#x)", uint32(s.ws))
	}
}

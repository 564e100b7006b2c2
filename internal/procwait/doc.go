// Package procwait implements the blocking wait on a single child process and
// decodes the kernel's termination status word.
//
// Wait is always scoped to one pid. A wildcard wait would reap children that
// belong to other tasks, so the package never issues one.
//
// Decoding rules:
//   - Exited: the program chose its exit value; ExitCode returns it.
//   - Signaled: no program-chosen value exists; ExitCode returns FailureExitCode.
//   - Stopped / Continued: not terminal; Wait keeps waiting.
package procwait

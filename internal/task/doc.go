// Package task runs one unit of work in its own OS process and collects its
// outcome.
//
// The Go runtime cannot duplicate a live process image, so a unit of work is
// described by a Callable: a function registered under a unique name at
// package initialisation. Execute re-executes the current binary with that
// name as argv[0] and the JSON-encoded arguments as the remaining argv. The
// child finds the same registration, runs the function and terminates with
// its return value as the exit status.
//
// Every binary that executes tasks must call Init before doing anything else:
//
//	var sum = task.MustRegister("sum", func(args task.Args) (int, error) { ... })
//
//	func main() {
//	    if task.Init() {
//	        return
//	    }
//	    ...
//	}
//
// Tests follow the same rule in TestMain.
//
// Outcome rules:
//   - A returned error or a panic in the child becomes exit code 1.
//   - A returned value is truncated to 8 bits, as the kernel would.
//   - A child killed by a signal is reported with exit code 1 and the raw
//     status word preserved.
//
// Only the process that executed a Task may collect it. Collection blocks
// until that exact pid terminates and is idempotent afterwards.
package task

// Package dispatch launches tasks as child processes and collects them in
// launch order.
//
// A Manager belongs to the process that created it (the dispatcher). Only
// that process may start or collect its tasks, which keeps the task tree one
// level deep: code running inside a task is a different process and is
// rejected with ErrNotDispatcher.
//
// Key properties:
//   - Start is non-blocking; it returns once the child exists
//   - Tasks are kept in launch order and never pruned
//   - WaitForAll collects sequentially in launch order, not completion order
//   - No pooling, retry, cancellation or timeouts
//
// Recording:
//   - An optional Recorder is told about the run, each launch and each
//     collected outcome
//   - Recorder failures are logged and never fail a launch or a collect
package dispatch

package pipeline

import "sync/atomic"

// executing tracks re-entrant pipeline evaluation depth, letting
// filesystem-touching builtins (read_csv, write_csv, ...) tell whether they
// are being invoked from inside a pipeline node's expression rather than at
// top level. spec.md §6.3's `run --unsafe` relaxes exactly this restriction.
var executing int32

// enter marks the start of a pipeline Execute call.
func enter() { atomic.AddInt32(&executing, 1) }

// leave marks the end of a pipeline Execute call.
func leave() { atomic.AddInt32(&executing, -1) }

// InExecution reports whether any pipeline.Execute call (node-expression
// evaluation) is in progress. The counter is process-wide, not per goroutine.
func InExecution() bool {
	return atomic.LoadInt32(&executing) > 0
}

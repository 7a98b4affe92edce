package rx

import (
	"fmt"
	"runtime"
)

// PanicError wraps a recovered panic value together with the goroutine
// stack trace captured at the point of the panic and the operation that
// was executing.
//
// Panics in a zip combining function are converted to *PanicError and
// delivered downstream via OnError; panics in scheduled tasks are
// converted and routed to Scheduler.ReportFailure.
type PanicError struct {
	// Op names what was executing when the panic fired, such as
	// "zip combiner" or "scheduled task".
	Op string

	// Value is the original value passed to panic().
	Value any

	// Stack is the goroutine stack trace at the point of panic.
	Stack string
}

// Error returns a human-readable representation of the panic,
// including the faulting operation, the value, and the full stack trace.
func (e *PanicError) Error() string {
	return fmt.Sprintf("%s panicked: %v\n\n%s", e.Op, e.Value, e.Stack)
}

// Unwrap returns nil. PanicError does not wrap another error.
func (e *PanicError) Unwrap() error { return nil }

func newPanicError(op string, v any) *PanicError {
	// 8 KiB is enough for most stack traces. runtime.Stack truncates
	// gracefully if the buffer is too small.
	buf := make([]byte, 8192)
	n := runtime.Stack(buf, false)
	return &PanicError{
		Op:    op,
		Value: v,
		Stack: string(buf[:n]),
	}
}

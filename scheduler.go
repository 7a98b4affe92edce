package rx

import (
	"fmt"
	"os"
	"sync"

	"github.com/joeycumines/logiface"
	"github.com/petermattis/goid"
)

// Scheduler supplies the execution context on which producer loops and
// deferred [Ack] continuations run. No ordering is guaranteed across
// tasks submitted from different goroutines beyond what the caller
// serializes itself.
type Scheduler interface {
	// Execute runs fn, typically on another goroutine. Implementations
	// recover panics in fn and route them to ReportFailure.
	Execute(fn func())

	// ReportFailure records an error that cannot be delivered downstream,
	// such as a panic in a scheduled task or a terminal signal arriving
	// after the subscriber already terminated.
	ReportFailure(err error)
}

// failureReporter is the shared ReportFailure implementation. With a
// logger configured it emits a structured error event; otherwise it
// writes a single line to stderr.
type failureReporter struct {
	log *logiface.Logger[logiface.Event]
}

func (r failureReporter) report(err error) {
	if err == nil {
		return
	}
	if r.log != nil {
		r.log.Err().Err(err).Log("uncaught failure")
		return
	}
	fmt.Fprintf(os.Stderr, "rx: uncaught failure: %v\n", err)
}

// NewScheduler returns the default asynchronous Scheduler: every Execute
// runs fn on its own goroutine.
func NewScheduler(opts ...SchedulerOption) Scheduler {
	cfg := applySchedulerOptions(opts)
	return &asyncScheduler{rep: failureReporter{log: cfg.logger}}
}

type asyncScheduler struct {
	rep failureReporter
}

func (s *asyncScheduler) Execute(fn func()) {
	if fn == nil {
		panic("rx: Execute requires non-nil fn")
	}
	go func() {
		defer func() {
			if r := recover(); r != nil {
				s.rep.report(newPanicError("scheduled task", r))
			}
		}()
		fn()
	}()
}

func (s *asyncScheduler) ReportFailure(err error) {
	s.rep.report(err)
}

// TrampolineScheduler executes tasks on the calling goroutine. The first
// Execute on a goroutine runs fn immediately and then drains a
// goroutine-local FIFO queue; Execute calls made while that loop is
// active enqueue instead of recursing, so nested submissions become
// iteration and the stack stays flat.
//
// This makes synchronous sources deterministic: a chain of
// emit/acknowledge/resume steps runs to completion on one goroutine in
// submission order. It is also the reason continuations must never
// assume they run concurrently with their submitter.
//
// Create instances with [NewTrampolineScheduler].
type TrampolineScheduler struct {
	rep    failureReporter
	queues sync.Map // goroutine id -> *taskQueue
}

// taskQueue is only ever touched by the goroutine that owns it.
type taskQueue struct {
	tasks []func()
}

// NewTrampolineScheduler returns a trampoline scheduler. A single
// instance may be shared across goroutines; each goroutine gets its own
// run loop.
func NewTrampolineScheduler(opts ...SchedulerOption) *TrampolineScheduler {
	cfg := applySchedulerOptions(opts)
	return &TrampolineScheduler{rep: failureReporter{log: cfg.logger}}
}

func (s *TrampolineScheduler) Execute(fn func()) {
	if fn == nil {
		panic("rx: Execute requires non-nil fn")
	}
	gid := goid.Get()
	if q, ok := s.queues.Load(gid); ok {
		// A run loop is already active on this goroutine; defer fn until
		// the current task unwinds.
		tq := q.(*taskQueue)
		tq.tasks = append(tq.tasks, fn)
		return
	}
	tq := &taskQueue{}
	s.queues.Store(gid, tq)
	defer s.queues.Delete(gid)
	for {
		s.runTask(fn)
		if len(tq.tasks) == 0 {
			return
		}
		fn, tq.tasks = tq.tasks[0], tq.tasks[1:]
	}
}

func (s *TrampolineScheduler) runTask(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.rep.report(newPanicError("scheduled task", r))
		}
	}()
	fn()
}

func (s *TrampolineScheduler) ReportFailure(err error) {
	s.rep.report(err)
}

package rx

import (
	"fmt"
	"sync"
)

// AckValue is the outcome of delivering one element to a subscriber.
type AckValue uint8

const (
	// Continue signals that the consumer processed the element and is
	// ready for the next one.
	Continue AckValue = iota + 1

	// Stop signals that the consumer will not accept further elements.
	// Producers must treat Stop as terminal and release their resources.
	Stop
)

// String returns "Continue" or "Stop".
func (v AckValue) String() string {
	switch v {
	case Continue:
		return "Continue"
	case Stop:
		return "Stop"
	default:
		return fmt.Sprintf("AckValue(%d)", uint8(v))
	}
}

// Pre-resolved acknowledgments, shared by all producers. Returning one of
// these from OnNext acknowledges the element synchronously without
// allocating.
var (
	ContinueAck = Resolved(Continue)
	StopAck     = Resolved(Stop)
)

// Ack is a single-resolution acknowledgment: the backpressure signal
// returned by [Subscriber.OnNext]. It resolves to an [AckValue] exactly
// once, either immediately (see [ContinueAck], [StopAck], [Resolved]) or
// later through [Ack.Complete].
//
// Consumers never block on an Ack inside this package; they attach
// continuations with [Ack.OnComplete] instead.
type Ack struct {
	mu        sync.Mutex
	val       AckValue // zero until resolved
	done      chan struct{}
	callbacks []ackCallback
}

type ackCallback struct {
	sched Scheduler
	fn    func(AckValue)
}

// NewAck returns a pending acknowledgment. Resolve it with
// [Ack.Complete].
func NewAck() *Ack {
	return &Ack{done: make(chan struct{})}
}

// Resolved returns an acknowledgment already resolved to v.
//
// Panics if v is neither Continue nor Stop.
func Resolved(v AckValue) *Ack {
	if v != Continue && v != Stop {
		panic("rx: Resolved requires Continue or Stop")
	}
	done := make(chan struct{})
	close(done)
	return &Ack{val: v, done: done}
}

// Complete resolves the acknowledgment to v and dispatches registered
// continuations. Only the first call has any effect; Complete reports
// whether this call was the one that resolved it.
//
// Panics if v is neither Continue nor Stop.
func (a *Ack) Complete(v AckValue) bool {
	if v != Continue && v != Stop {
		panic("rx: Complete requires Continue or Stop")
	}
	a.mu.Lock()
	if a.val != 0 {
		a.mu.Unlock()
		return false
	}
	a.val = v
	cbs := a.callbacks
	a.callbacks = nil
	close(a.done)
	a.mu.Unlock()

	for _, cb := range cbs {
		fn := cb.fn
		cb.sched.Execute(func() { fn(v) })
	}
	return true
}

// Poll reports the resolved value without blocking. The second return is
// false while the acknowledgment is still pending.
func (a *Ack) Poll() (AckValue, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.val, a.val != 0
}

// Done returns a channel that is closed once the acknowledgment resolves.
func (a *Ack) Done() <-chan struct{} {
	return a.done
}

// Value blocks until the acknowledgment resolves and returns its value.
// It is a convenience for callers outside the push path; producer and
// combinator code uses [Ack.OnComplete] instead.
func (a *Ack) Value() AckValue {
	<-a.done
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.val
}

// OnComplete registers fn to run once the acknowledgment resolves. fn is
// always dispatched through s.Execute, including when the acknowledgment
// is already resolved. Whether that dispatch is deferred depends on s: an
// asynchronous scheduler runs fn off the resolving goroutine, while a
// [TrampolineScheduler] with no loop active on the calling goroutine runs
// it inline before Complete returns. Callers holding locks must therefore
// not call Complete, or register against a possibly-resolved Ack, inside
// the critical section.
//
// Continuations registered on the same Ack are dispatched in registration
// order; their relative execution order then depends on s.
//
// Panics if s or fn is nil.
func (a *Ack) OnComplete(s Scheduler, fn func(AckValue)) {
	if s == nil {
		panic("rx: OnComplete requires non-nil Scheduler")
	}
	if fn == nil {
		panic("rx: OnComplete requires non-nil callback")
	}
	a.mu.Lock()
	if a.val == 0 {
		a.callbacks = append(a.callbacks, ackCallback{sched: s, fn: fn})
		a.mu.Unlock()
		return
	}
	v := a.val
	a.mu.Unlock()
	s.Execute(func() { fn(v) })
}

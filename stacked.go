package rx

import (
	"fmt"
	"sync/atomic"
)

// StackedCancelable is a lock-free LIFO collection of [Cancelable]
// tokens supporting atomic push, pop, and replace. Cancelling the stack
// cancels every token it currently holds; tokens pushed afterwards are
// cancelled immediately instead of being stored. Every token that was
// ever held is cancelled exactly once, either by the cancellation sweep,
// at push time, or by whoever popped it (ownership transfers to the
// caller on Pop).
//
// All operations use optimistic concurrency: read the current state,
// compute the replacement, and install it with a compare-and-swap,
// retrying on contention. The only allocation per call is the updated
// snapshot.
//
// Create instances with [NewStackedCancelable]; the zero value is not
// usable.
type StackedCancelable struct {
	state atomic.Pointer[stackedState]
}

// stackedState is an immutable snapshot: either the cancelled sentinel
// or the current stack, most recently pushed token first. Snapshots are
// never mutated in place, so replaced states may safely share backing
// arrays with their successors.
type stackedState struct {
	canceled bool
	stack    []Cancelable
}

var canceledStackedState = &stackedState{canceled: true}

// NewStackedCancelable returns a stack pre-seeded with the given tokens;
// initial[0], if present, is the first token Pop returns.
//
// Panics if any token is nil.
func NewStackedCancelable(initial ...Cancelable) *StackedCancelable {
	for i, c := range initial {
		if c == nil {
			panic(fmt.Sprintf("rx: NewStackedCancelable token[%d] must not be nil", i))
		}
	}
	s := &StackedCancelable{}
	st := &stackedState{}
	if len(initial) > 0 {
		st.stack = append([]Cancelable(nil), initial...)
	}
	s.state.Store(st)
	return s
}

// IsCanceled reports whether Cancel has been called.
func (s *StackedCancelable) IsCanceled() bool {
	return s.state.Load().canceled
}

// Cancel cancels the stack and every token it currently holds. The first
// caller to install the cancelled sentinel performs the sweep; later and
// concurrent callers are no-ops. A token racing with Cancel is either
// captured by the sweep or cancelled at push time, never both and never
// neither.
func (s *StackedCancelable) Cancel() {
	for {
		old := s.state.Load()
		if old.canceled {
			return
		}
		if s.state.CompareAndSwap(old, canceledStackedState) {
			for _, c := range old.stack {
				c.Cancel()
			}
			return
		}
	}
}

// Push prepends c to the stack. If the stack is already cancelled, c is
// cancelled immediately and not stored.
//
// Panics if c is nil.
func (s *StackedCancelable) Push(c Cancelable) {
	if c == nil {
		panic("rx: Push requires non-nil Cancelable")
	}
	for {
		old := s.state.Load()
		if old.canceled {
			c.Cancel()
			return
		}
		next := &stackedState{stack: prependCancelables(old.stack, c)}
		if s.state.CompareAndSwap(old, next) {
			return
		}
	}
}

// PushAll prepends tokens as a single atomic step; tokens[0] becomes the
// new head. If the stack is already cancelled, every token is cancelled
// immediately. An empty slice is a no-op.
//
// Panics if any token is nil.
func (s *StackedCancelable) PushAll(tokens []Cancelable) {
	for i, c := range tokens {
		if c == nil {
			panic(fmt.Sprintf("rx: PushAll token[%d] must not be nil", i))
		}
	}
	if len(tokens) == 0 {
		return
	}
	for {
		old := s.state.Load()
		if old.canceled {
			for _, c := range tokens {
				c.Cancel()
			}
			return
		}
		next := &stackedState{stack: prependCancelables(old.stack, tokens...)}
		if s.state.CompareAndSwap(old, next) {
			return
		}
	}
}

// Pop removes and returns the most recently pushed token, transferring
// ownership to the caller. On an empty or cancelled stack it returns
// [NoopCancelable] without side effects.
func (s *StackedCancelable) Pop() Cancelable {
	for {
		old := s.state.Load()
		if old.canceled || len(old.stack) == 0 {
			return NoopCancelable
		}
		next := &stackedState{stack: old.stack[1:]}
		if s.state.CompareAndSwap(old, next) {
			return old.stack[0]
		}
	}
}

// PopAndPush performs pop-then-push as one atomic step: it returns the
// token Pop would have returned and installs c as the new head. If the
// stack is cancelled, c is cancelled immediately and [NoopCancelable] is
// returned.
//
// Panics if c is nil.
func (s *StackedCancelable) PopAndPush(c Cancelable) Cancelable {
	if c == nil {
		panic("rx: PopAndPush requires non-nil Cancelable")
	}
	for {
		old := s.state.Load()
		if old.canceled {
			c.Cancel()
			return NoopCancelable
		}
		popped, rest := NoopCancelable, old.stack
		if len(old.stack) > 0 {
			popped, rest = old.stack[0], old.stack[1:]
		}
		next := &stackedState{stack: prependCancelables(rest, c)}
		if s.state.CompareAndSwap(old, next) {
			return popped
		}
	}
}

// PopAndPushAll is [StackedCancelable.PopAndPush] for a batch of tokens:
// one token is popped and the whole batch is prepended atomically, with
// tokens[0] as the new head. If the stack is cancelled, every token is
// cancelled immediately and [NoopCancelable] is returned.
//
// Panics if tokens is empty or contains a nil token.
func (s *StackedCancelable) PopAndPushAll(tokens []Cancelable) Cancelable {
	if len(tokens) == 0 {
		panic("rx: PopAndPushAll requires at least one token")
	}
	for i, c := range tokens {
		if c == nil {
			panic(fmt.Sprintf("rx: PopAndPushAll token[%d] must not be nil", i))
		}
	}
	for {
		old := s.state.Load()
		if old.canceled {
			for _, c := range tokens {
				c.Cancel()
			}
			return NoopCancelable
		}
		popped, rest := NoopCancelable, old.stack
		if len(old.stack) > 0 {
			popped, rest = old.stack[0], old.stack[1:]
		}
		next := &stackedState{stack: prependCancelables(rest, tokens...)}
		if s.state.CompareAndSwap(old, next) {
			return popped
		}
	}
}

func prependCancelables(stack []Cancelable, head ...Cancelable) []Cancelable {
	next := make([]Cancelable, 0, len(head)+len(stack))
	next = append(next, head...)
	return append(next, stack...)
}

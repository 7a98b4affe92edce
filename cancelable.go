package rx

import "sync/atomic"

// Cancelable is a capability representing one cancellable resource or
// subscription. Cancel is idempotent and safe for concurrent use; there
// is no error to return because "already cancelled" is a valid state,
// not a fault.
type Cancelable interface {
	Cancel()
}

// NoopCancelable is an inert token. [StackedCancelable.Pop] returns it
// when the stack is empty or cancelled.
var NoopCancelable Cancelable = noopCancelable{}

type noopCancelable struct{}

func (noopCancelable) Cancel() {}

// NewCancelable wraps a cleanup function in a Cancelable. The function
// runs at most once, no matter how many goroutines call Cancel.
//
// Panics if fn is nil.
func NewCancelable(fn func()) Cancelable {
	if fn == nil {
		panic("rx: NewCancelable requires non-nil fn")
	}
	return &funcCancelable{fn: fn}
}

type funcCancelable struct {
	fn       func()
	canceled atomic.Bool
}

func (c *funcCancelable) Cancel() {
	if c.canceled.CompareAndSwap(false, true) {
		c.fn()
	}
}

// BoolCancelable is a Cancelable whose only observable state is whether
// Cancel has been invoked. The zero value is usable.
type BoolCancelable struct {
	canceled atomic.Bool
}

// NewBoolCancelable returns a BoolCancelable in the active state.
func NewBoolCancelable() *BoolCancelable {
	return &BoolCancelable{}
}

// Cancel flips the token into the cancelled state.
func (c *BoolCancelable) Cancel() {
	c.canceled.Store(true)
}

// IsCanceled reports whether Cancel has been called.
func (c *BoolCancelable) IsCanceled() bool {
	return c.canceled.Load()
}

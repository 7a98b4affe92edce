package rx

import "sync"

// CompositeCancelable aggregates a set of [Cancelable] members so they
// can be cancelled as a unit. Cancelling it cancels every member exactly
// once; members added after cancellation are cancelled immediately, the
// same push-after-cancel contract as [StackedCancelable].
//
// The zero value is usable.
type CompositeCancelable struct {
	mu       sync.Mutex
	canceled bool
	members  []Cancelable
}

// NewCompositeCancelable returns a composite holding the given members.
//
// Panics if any member is nil.
func NewCompositeCancelable(members ...Cancelable) *CompositeCancelable {
	c := &CompositeCancelable{}
	for _, m := range members {
		c.Add(m)
	}
	return c
}

// Add registers m for cancellation. If the composite is already
// cancelled, m is cancelled immediately and not stored.
//
// Panics if m is nil.
func (c *CompositeCancelable) Add(m Cancelable) {
	if m == nil {
		panic("rx: Add requires non-nil Cancelable")
	}
	c.mu.Lock()
	if c.canceled {
		c.mu.Unlock()
		m.Cancel()
		return
	}
	c.members = append(c.members, m)
	c.mu.Unlock()
}

// Cancel cancels every member. Only the first call performs the sweep;
// repeated and concurrent calls are no-ops.
func (c *CompositeCancelable) Cancel() {
	c.mu.Lock()
	if c.canceled {
		c.mu.Unlock()
		return
	}
	c.canceled = true
	members := c.members
	c.members = nil
	c.mu.Unlock()

	for _, m := range members {
		m.Cancel()
	}
}

// IsCanceled reports whether Cancel has been called.
func (c *CompositeCancelable) IsCanceled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.canceled
}

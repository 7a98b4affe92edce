package rx

import "sync"

// Zip3 combines three sources element-by-element: one round per
// position, emitting f(a, b, c) downstream exactly once per round in
// which every source has contributed a fresh element since the previous
// round. Rounds preserve arrival order, each buffered element is
// consumed exactly once, and the downstream subscriber receives at most
// one terminal signal.
//
// Backpressure is chained across all three sources: a source that has
// delivered its element for the current round is acknowledged only once
// the round's downstream acknowledgment resolves, so no source runs more
// than one element ahead. If any source completes while its buffer slot
// is empty, the output is permanently exhausted and completes. An error
// from any source, or a fault in f (a returned error, or a panic wrapped
// in [*PanicError]), is delivered downstream exactly once; in every
// terminal case the remaining upstream subscriptions are cancelled.
//
// Panics if any source or f is nil.
func Zip3[A, B, C, R any](a Observable[A], b Observable[B], c Observable[C], f func(A, B, C) (R, error)) Observable[R] {
	if a == nil || b == nil || c == nil {
		panic("rx: Zip3 requires non-nil sources")
	}
	if f == nil {
		panic("rx: Zip3 requires non-nil combiner")
	}
	return &zip3Observable[A, B, C, R]{a: a, b: b, c: c, f: f}
}

type zip3Observable[A, B, C, R any] struct {
	a Observable[A]
	b Observable[B]
	c Observable[C]
	f func(A, B, C) (R, error)
}

func (z *zip3Observable[A, B, C, R]) Subscribe(sub Subscriber[R]) Cancelable {
	if sub == nil {
		panic("rx: Subscribe requires non-nil Subscriber")
	}
	st := &zip3State[A, B, C, R]{
		out:     sub,
		sched:   sub.Scheduler(),
		combine: z.f,
		lastAck: ContinueAck,
		gate:    NewAck(),
		conn:    NewCompositeCancelable(),
	}
	// Sources start pushing as soon as they are subscribed; a source that
	// terminates the zip here makes the composite cancel the remaining
	// subscriptions the moment they are added.
	st.conn.Add(z.a.Subscribe(&zipSourceA[A, B, C, R]{st}))
	st.conn.Add(z.b.Subscribe(&zipSourceB[A, B, C, R]{st}))
	st.conn.Add(z.c.Subscribe(&zipSourceC[A, B, C, R]{st}))
	return st.conn
}

// zipPost collects the effects a critical section must not perform
// itself: completing an acknowledgment, attaching a continuation to one,
// or cancelling the upstream subscriptions. Completing an Ack dispatches
// parked continuations through the scheduler, and a trampoline runs them
// inline on the calling goroutine when no loop is active there; done
// under the mutex, a resumed producer would re-enter OnNext and relock
// it. Every caller that takes the lock drains its zipPost after
// unlocking.
type zipPost struct {
	fns []func()
}

func (p *zipPost) add(fn func()) { p.fns = append(p.fns, fn) }

func (p *zipPost) run() {
	for _, fn := range p.fns {
		fn()
	}
}

// zip3State is the shared critical section of one Zip3 subscription.
// Every callback entry point locks mu, records deferred effects in a
// zipPost, and runs them after unlocking; the mutex is never held across
// a suspension or an acknowledgment completion.
type zip3State[A, B, C, R any] struct {
	mu sync.Mutex

	elemA A
	elemB B
	elemC C
	hasA  bool
	hasB  bool
	hasC  bool

	// done is the terminal flag: once set, every subsequent callback is
	// a no-op returning Stop.
	done bool

	// completed counts sources that finished while their slot was still
	// buffered; their last element is consumed by the following round,
	// after which the output is exhausted.
	completed int

	// lastAck is the acknowledgment of the most recent downstream
	// emission. gate is the continuation slot handed to sources awaiting
	// the current round; it resolves once lastAck's successor is known,
	// releasing backpressure on every source at once, and a fresh slot is
	// installed for the next round.
	lastAck *Ack
	gate    *Ack

	out     Subscriber[R]
	sched   Scheduler
	combine func(A, B, C) (R, error)
	conn    *CompositeCancelable
}

type zipSourceA[A, B, C, R any] struct {
	st *zip3State[A, B, C, R]
}

func (s *zipSourceA[A, B, C, R]) OnNext(elem A) *Ack {
	st := s.st
	st.mu.Lock()
	if st.done {
		st.mu.Unlock()
		return StopAck
	}
	st.elemA, st.hasA = elem, true
	var post zipPost
	ack := st.maybeCombineLocked(&post)
	st.mu.Unlock()
	post.run()
	return ack
}

func (s *zipSourceA[A, B, C, R]) OnError(err error) { s.st.sourceError(err) }
func (s *zipSourceA[A, B, C, R]) OnComplete() { s.st.sourceComplete(&s.st.hasA) }
func (s *zipSourceA[A, B, C, R]) Scheduler() Scheduler { return s.st.sched }

type zipSourceB[A, B, C, R any] struct {
	st *zip3State[A, B, C, R]
}

func (s *zipSourceB[A, B, C, R]) OnNext(elem B) *Ack {
	st := s.st
	st.mu.Lock()
	if st.done {
		st.mu.Unlock()
		return StopAck
	}
	st.elemB, st.hasB = elem, true
	var post zipPost
	ack := st.maybeCombineLocked(&post)
	st.mu.Unlock()
	post.run()
	return ack
}

func (s *zipSourceB[A, B, C, R]) OnError(err error) { s.st.sourceError(err) }
func (s *zipSourceB[A, B, C, R]) OnComplete() { s.st.sourceComplete(&s.st.hasB) }
func (s *zipSourceB[A, B, C, R]) Scheduler() Scheduler { return s.st.sched }

type zipSourceC[A, B, C, R any] struct {
	st *zip3State[A, B, C, R]
}

func (s *zipSourceC[A, B, C, R]) OnNext(elem C) *Ack {
	st := s.st
	st.mu.Lock()
	if st.done {
		st.mu.Unlock()
		return StopAck
	}
	st.elemC, st.hasC = elem, true
	var post zipPost
	ack := st.maybeCombineLocked(&post)
	st.mu.Unlock()
	post.run()
	return ack
}

func (s *zipSourceC[A, B, C, R]) OnError(err error) { s.st.sourceError(err) }
func (s *zipSourceC[A, B, C, R]) OnComplete() { s.st.sourceComplete(&s.st.hasC) }
func (s *zipSourceC[A, B, C, R]) Scheduler() Scheduler { return s.st.sched }

// maybeCombineLocked is the tail of every OnNext: run a round if every
// slot is populated, otherwise park the caller on the current gate.
func (st *zip3State[A, B, C, R]) maybeCombineLocked(post *zipPost) *Ack {
	if !(st.hasA && st.hasB && st.hasC) {
		return st.gate
	}
	return st.combineLocked(post)
}

// combineLocked runs one round. All three slots are populated on entry;
// they are consumed exactly once and never replayed.
func (st *zip3State[A, B, C, R]) combineLocked(post *zipPost) *Ack {
	elem, err := st.applyCombiner()
	st.hasA, st.hasB, st.hasC = false, false, false
	if err != nil {
		st.errorLocked(err, post)
		return StopAck
	}

	// A source that completed with its element still buffered can never
	// contribute again, so this round is the last one.
	exhausted := st.completed > 0

	v, resolved := st.lastAck.Poll()
	switch {
	case resolved && v == Continue:
		return st.emitLocked(elem, exhausted, post)
	case resolved:
		// Stop: the downstream already terminated.
		st.terminateLocked(post)
		return StopAck
	default:
		// The previous round's acknowledgment is still pending. The round
		// is fully buffered, so the continuation emits without
		// re-checking slot population. Attachment happens outside the
		// lock: the acknowledgment may resolve in the meantime, in which
		// case OnComplete dispatches the continuation straight away.
		last := st.lastAck
		post.add(func() {
			last.OnComplete(st.sched, func(v AckValue) {
				st.mu.Lock()
				var p zipPost
				switch {
				case st.done:
				case v == Stop:
					st.terminateLocked(&p)
				default:
					st.emitLocked(elem, exhausted, &p)
				}
				st.mu.Unlock()
				p.run()
			})
		})
		return st.gate
	}
}

func (st *zip3State[A, B, C, R]) applyCombiner() (elem R, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = newPanicError("zip combiner", r)
		}
	}()
	return st.combine(st.elemA, st.elemB, st.elemC)
}

// emitLocked delivers one combined element downstream, installs a fresh
// gate for the next round, and settles the old gate once the emission's
// acknowledgment is known.
func (st *zip3State[A, B, C, R]) emitLocked(elem R, exhausted bool, post *zipPost) *Ack {
	ack := st.out.OnNext(elem)
	st.lastAck = ack
	gate := st.gate
	st.gate = NewAck()

	if v, resolved := ack.Poll(); resolved {
		st.roundSettledLocked(gate, v, exhausted, post)
		return ack
	}
	post.add(func() {
		ack.OnComplete(st.sched, func(v AckValue) {
			st.mu.Lock()
			var p zipPost
			if st.done {
				st.mu.Unlock()
				gate.Complete(Stop)
				return
			}
			st.roundSettledLocked(gate, v, exhausted, &p)
			st.mu.Unlock()
			p.run()
		})
	})
	return ack
}

// roundSettledLocked releases the round's backpressure once the
// emission's acknowledgment v is known.
func (st *zip3State[A, B, C, R]) roundSettledLocked(gate *Ack, v AckValue, exhausted bool, post *zipPost) {
	if v == Stop {
		st.done = true
		post.add(func() {
			st.conn.Cancel()
			gate.Complete(Stop)
		})
		return
	}
	if exhausted {
		st.done = true
		st.out.OnComplete()
		post.add(func() {
			st.conn.Cancel()
			gate.Complete(Stop)
		})
		return
	}
	post.add(func() { gate.Complete(Continue) })
}

func (st *zip3State[A, B, C, R]) sourceError(err error) {
	st.mu.Lock()
	var post zipPost
	st.errorLocked(err, &post)
	st.mu.Unlock()
	post.run()
}

// errorLocked delivers err downstream. The first terminal signal wins;
// errors arriving after termination cannot go downstream and are
// reported to the scheduler instead.
func (st *zip3State[A, B, C, R]) errorLocked(err error, post *zipPost) {
	if st.done {
		post.add(func() { st.sched.ReportFailure(err) })
		return
	}
	st.done = true
	st.out.OnError(err)
	gate := st.gate
	post.add(func() {
		st.conn.Cancel()
		gate.Complete(Stop)
	})
}

func (st *zip3State[A, B, C, R]) sourceComplete(has *bool) {
	st.mu.Lock()
	if st.done {
		st.mu.Unlock()
		return
	}
	var post zipPost
	if !*has {
		// Completed with an empty slot: no future round can ever fill it,
		// so the output is exhausted regardless of the other sources.
		st.completeLocked(&post)
	} else {
		st.completed++
		if st.completed == 3 {
			st.completeLocked(&post)
		}
	}
	st.mu.Unlock()
	post.run()
}

// completeLocked delivers downstream completion, gated on the last known
// acknowledgment: immediately on Continue, suppressed on Stop (the
// downstream already terminated on its own), deferred while pending.
func (st *zip3State[A, B, C, R]) completeLocked(post *zipPost) {
	st.done = true
	gate := st.gate
	v, resolved := st.lastAck.Poll()
	switch {
	case resolved && v == Continue:
		st.out.OnComplete()
		post.add(func() { st.conn.Cancel() })
	case resolved:
		post.add(func() { st.conn.Cancel() })
	default:
		last := st.lastAck
		post.add(func() {
			last.OnComplete(st.sched, func(v AckValue) {
				if v == Continue {
					st.mu.Lock()
					st.out.OnComplete()
					st.mu.Unlock()
				}
				st.conn.Cancel()
			})
		})
	}
	post.add(func() { gate.Complete(Stop) })
}

// terminateLocked ends the session after the downstream signalled Stop.
func (st *zip3State[A, B, C, R]) terminateLocked(post *zipPost) {
	st.done = true
	gate := st.gate
	post.add(func() {
		st.conn.Cancel()
		gate.Complete(Stop)
	})
}

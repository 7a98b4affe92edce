package rx

// FromSlice returns an Observable that emits each element of items in
// order. It is the reference implementation of the producer side of the
// Ack contract: the next element is delivered only after the previous
// acknowledgment resolves to [Continue], a pending acknowledgment
// suspends the loop until a continuation resumes it, and [Stop] ends the
// session.
//
// The push loop runs on the subscriber's scheduler. The returned
// subscription handle is a [StackedCancelable]; cancelling it stops the
// loop at the next element boundary.
func FromSlice[T any](items []T) Observable[T] {
	return sliceObservable[T](items)
}

// Empty returns an Observable that completes immediately without
// emitting any element.
func Empty[T any]() Observable[T] {
	return emptyObservable[T]{}
}

// Failed returns an Observable that signals err immediately without
// emitting any element.
//
// Panics if err is nil.
func Failed[T any](err error) Observable[T] {
	if err == nil {
		panic("rx: Failed requires non-nil error")
	}
	return failedObservable[T]{err: err}
}

type sliceObservable[T any] []T

func (o sliceObservable[T]) Subscribe(sub Subscriber[T]) Cancelable {
	if sub == nil {
		panic("rx: Subscribe requires non-nil Subscriber")
	}
	loop := &sliceLoop[T]{
		items: o,
		sub:   sub,
		conn:  NewStackedCancelable(),
	}
	sub.Scheduler().Execute(loop.run)
	return loop.conn
}

// sliceLoop is one push session over a slice. idx is only touched from
// run/resume, which never overlap: the loop either runs to a terminal
// signal or suspends on a pending acknowledgment, and resume is invoked
// exactly once per suspension.
type sliceLoop[T any] struct {
	items []T
	idx   int
	sub   Subscriber[T]
	conn  *StackedCancelable
}

func (l *sliceLoop[T]) run() {
	for {
		if l.conn.IsCanceled() {
			return
		}
		if l.idx >= len(l.items) {
			l.sub.OnComplete()
			return
		}
		elem := l.items[l.idx]
		l.idx++

		ack := l.sub.OnNext(elem)
		v, resolved := ack.Poll()
		if !resolved {
			ack.OnComplete(l.sub.Scheduler(), l.resume)
			return
		}
		if v == Stop {
			return
		}
	}
}

func (l *sliceLoop[T]) resume(v AckValue) {
	if v != Continue {
		return
	}
	l.run()
}

type emptyObservable[T any] struct{}

func (emptyObservable[T]) Subscribe(sub Subscriber[T]) Cancelable {
	if sub == nil {
		panic("rx: Subscribe requires non-nil Subscriber")
	}
	done := NewBoolCancelable()
	sub.Scheduler().Execute(func() {
		if !done.IsCanceled() {
			sub.OnComplete()
		}
	})
	return done
}

type failedObservable[T any] struct {
	err error
}

func (o failedObservable[T]) Subscribe(sub Subscriber[T]) Cancelable {
	if sub == nil {
		panic("rx: Subscribe requires non-nil Subscriber")
	}
	done := NewBoolCancelable()
	sub.Scheduler().Execute(func() {
		if !done.IsCanceled() {
			sub.OnError(o.err)
		}
	})
	return done
}

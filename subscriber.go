package rx

import "sync/atomic"

// NewSubscriber adapts callback functions into a [Subscriber] running on
// s. A nil onNext acknowledges every element with [ContinueAck]; nil
// onError and onComplete are no-ops. The result is wrapped with [Safe],
// so it tolerates producers that violate the terminal-signal rule.
//
// Panics if s is nil.
func NewSubscriber[T any](s Scheduler, onNext func(T) *Ack, onError func(error), onComplete func()) Subscriber[T] {
	if s == nil {
		panic("rx: NewSubscriber requires non-nil Scheduler")
	}
	return Safe[T](&funcSubscriber[T]{
		sched:      s,
		onNext:     onNext,
		onError:    onError,
		onComplete: onComplete,
	})
}

type funcSubscriber[T any] struct {
	sched      Scheduler
	onNext     func(T) *Ack
	onError    func(error)
	onComplete func()
}

func (f *funcSubscriber[T]) OnNext(elem T) *Ack {
	if f.onNext == nil {
		return ContinueAck
	}
	return f.onNext(elem)
}

func (f *funcSubscriber[T]) OnError(err error) {
	if f.onError != nil {
		f.onError(err)
	}
}

func (f *funcSubscriber[T]) OnComplete() {
	if f.onComplete != nil {
		f.onComplete()
	}
}

func (f *funcSubscriber[T]) Scheduler() Scheduler {
	return f.sched
}

// SafeSubscriber enforces the subscriber contract on behalf of the
// producer: at most one terminal signal ever reaches the wrapped
// subscriber, OnNext after a terminal signal (or after a [Stop]
// acknowledgment) short-circuits to [StopAck] without touching the
// wrapped subscriber, and errors arriving after termination are reported
// to the scheduler instead of delivered.
//
// Create instances with [Safe].
type SafeSubscriber[T any] struct {
	sub  Subscriber[T]
	done atomic.Bool
}

// Safe wraps sub in a [SafeSubscriber]. Wrapping an already-safe
// subscriber returns it unchanged.
//
// Panics if sub is nil.
func Safe[T any](sub Subscriber[T]) *SafeSubscriber[T] {
	if sub == nil {
		panic("rx: Safe requires non-nil Subscriber")
	}
	if s, ok := sub.(*SafeSubscriber[T]); ok {
		return s
	}
	return &SafeSubscriber[T]{sub: sub}
}

func (s *SafeSubscriber[T]) OnNext(elem T) *Ack {
	if s.done.Load() {
		return StopAck
	}
	ack := s.sub.OnNext(elem)
	if v, resolved := ack.Poll(); resolved {
		if v == Stop {
			s.done.Store(true)
		}
		return ack
	}
	ack.OnComplete(s.sub.Scheduler(), func(v AckValue) {
		if v == Stop {
			s.done.Store(true)
		}
	})
	return ack
}

func (s *SafeSubscriber[T]) OnError(err error) {
	if s.done.CompareAndSwap(false, true) {
		s.sub.OnError(err)
		return
	}
	s.sub.Scheduler().ReportFailure(err)
}

func (s *SafeSubscriber[T]) OnComplete() {
	if s.done.CompareAndSwap(false, true) {
		s.sub.OnComplete()
	}
}

func (s *SafeSubscriber[T]) Scheduler() Scheduler {
	return s.sub.Scheduler()
}

package rx

// Subscriber consumes a push-based stream of elements.
//
// Contract: OnNext may be called again only after the [Ack] returned by
// the previous call has resolved to [Continue]; once it resolves to
// [Stop] the producer must cease calling OnNext and may release its
// resources. OnError and OnComplete are terminal: after either is
// delivered, the producer must not invoke any further method on this
// subscriber. See [Safe] for a wrapper that enforces the terminal rule
// on behalf of producers that cannot guarantee it structurally.
type Subscriber[T any] interface {
	// OnNext delivers one element and returns the backpressure signal
	// for it.
	OnNext(elem T) *Ack

	// OnError signals that the stream failed. Terminal.
	OnError(err error)

	// OnComplete signals that the stream is exhausted. Terminal.
	OnComplete()

	// Scheduler returns the execution context on which asynchronous
	// continuations for this subscriber run.
	Scheduler() Scheduler
}

// Observable is a cold, re-subscribable description of a push-based
// producer. Every Subscribe call starts an independent, stateful push
// session that begins emitting immediately; concurrent subscriptions of
// the same Observable are independent of each other. The returned
// [Cancelable] stops that session.
type Observable[T any] interface {
	Subscribe(sub Subscriber[T]) Cancelable
}

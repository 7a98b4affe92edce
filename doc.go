// Package rx provides the concurrency core of a push-based reactive
// stream library: a producer/consumer protocol with cooperative
// backpressure, composable cancellation primitives, and a multi-source
// zip combinator built on top of both.
//
// # Backpressure
//
// A producer pushes elements into a [Subscriber] by calling OnNext, which
// returns an [Ack]. The acknowledgment may already be resolved
// ([ContinueAck], [StopAck]) or may resolve later; the producer must not
// deliver the next element until it resolves to [Continue], and must stop
// permanently once it resolves to [Stop]. OnError and OnComplete carry no
// acknowledgment and terminate the session; a subscriber receives at most
// one terminal signal.
//
// Pending acknowledgments never block: suspension is expressed by
// attaching a continuation via [Ack.OnComplete], which runs on a
// [Scheduler].
//
// # Cancellation
//
//   - [Cancelable] is the basic capability: an idempotent Cancel.
//   - [StackedCancelable] is a lock-free LIFO stack of Cancelables with
//     atomic, cancel-aware push and pop; cancelling it cancels every token
//     it holds, and tokens pushed afterwards are cancelled immediately.
//   - [CompositeCancelable] fans cancellation out to a set of members,
//     each cancelled exactly once.
//
// # Schedulers
//
// A [Scheduler] supplies the execution context for producer loops and
// deferred continuations. [NewScheduler] runs each task on its own
// goroutine; [NewTrampolineScheduler] keeps execution on the calling
// goroutine with a goroutine-local queue, turning recursion into
// iteration (useful for synchronous sources and deterministic tests);
// [NewPoolScheduler] bounds execution to a fixed set of workers.
// Failures that cannot be delivered downstream are routed to
// Scheduler.ReportFailure, which logs through logiface when configured
// via [WithLogger].
//
// # Zip
//
// [Zip3] merges three independently-scheduled sources into one ordered
// output stream: one downstream emission per round in which every source
// has contributed a fresh element, with acknowledgments chained across
// rounds so that no source runs ahead. Completion, errors, and downstream
// Stop all cancel the remaining upstream subscriptions.
package rx

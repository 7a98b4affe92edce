package rx

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// ErrPoolClosed is reported through ReportFailure when a task is
// submitted to a [PoolScheduler] that has been closed.
var ErrPoolClosed = errors.New("rx: pool scheduler is closed")

// PoolScheduler is a [Scheduler] backed by a fixed-size worker pool.
// Tasks are queued by Execute and processed by n worker goroutines,
// bounding the concurrency of producer loops and continuations that run
// on it. Call [PoolScheduler.Close] to drain the queue and stop the
// workers.
type PoolScheduler struct {
	tasks  chan func()
	wg     sync.WaitGroup
	closed atomic.Bool
	rep    failureReporter

	// Observability counters.
	submitted atomic.Int64
	completed atomic.Int64
	inFlight  atomic.Int64
	workers   int

	metricsDone chan struct{}
}

// PoolStats is a point-in-time snapshot of pool activity.
type PoolStats struct {
	Submitted  int64 // total tasks accepted by Execute
	Completed  int64 // tasks finished (including panicked ones)
	InFlight   int64 // tasks currently executing
	QueueDepth int   // tasks waiting in the queue
	Workers    int   // worker count (fixed at creation)
}

// PoolOption configures a [PoolScheduler].
type PoolOption func(*poolConfig)

type poolConfig struct {
	queueSize       int
	onMetrics       func(PoolStats)
	metricsInterval time.Duration
	scheduler       []SchedulerOption
}

// WithQueueSize sets the task queue buffer size. Default is n * 2.
//
// Panics if size is negative.
func WithQueueSize(size int) PoolOption {
	if size < 0 {
		panic("rx: WithQueueSize requires non-negative size")
	}
	return func(c *poolConfig) {
		c.queueSize = size
	}
}

// WithPoolMetrics registers a periodic metrics callback that fires every
// interval with a snapshot of the pool counters, until the pool closes.
//
// Panics if interval <= 0 or fn is nil.
func WithPoolMetrics(interval time.Duration, fn func(PoolStats)) PoolOption {
	if interval <= 0 {
		panic("rx: WithPoolMetrics requires interval > 0")
	}
	if fn == nil {
		panic("rx: WithPoolMetrics requires non-nil callback")
	}
	return func(c *poolConfig) {
		c.onMetrics = fn
		c.metricsInterval = interval
	}
}

// WithSchedulerOptions applies scheduler-level options (such as
// [WithLogger]) to the pool.
func WithSchedulerOptions(opts ...SchedulerOption) PoolOption {
	return func(c *poolConfig) {
		c.scheduler = append(c.scheduler, opts...)
	}
}

// NewPoolScheduler creates a scheduler with n worker goroutines. Workers
// start immediately and process tasks until [PoolScheduler.Close] is
// called.
//
// Panics if n <= 0.
func NewPoolScheduler(n int, opts ...PoolOption) *PoolScheduler {
	if n <= 0 {
		panic("rx: NewPoolScheduler requires n > 0")
	}

	cfg := poolConfig{queueSize: n * 2}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	scfg := applySchedulerOptions(cfg.scheduler)

	p := &PoolScheduler{
		tasks:       make(chan func(), cfg.queueSize),
		rep:         failureReporter{log: scfg.logger},
		workers:     n,
		metricsDone: make(chan struct{}),
	}

	p.wg.Add(n)
	for i := 0; i < n; i++ {
		go p.worker()
	}

	if cfg.onMetrics != nil {
		go func() {
			ticker := time.NewTicker(cfg.metricsInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					cfg.onMetrics(p.Stats())
				case <-p.metricsDone:
					return
				}
			}
		}()
	}

	return p
}

func (p *PoolScheduler) worker() {
	defer p.wg.Done()
	for fn := range p.tasks {
		p.runTask(fn)
	}
}

func (p *PoolScheduler) runTask(fn func()) {
	p.inFlight.Add(1)
	defer func() {
		p.inFlight.Add(-1)
		p.completed.Add(1)
		if r := recover(); r != nil {
			p.rep.report(newPanicError("pool task", r))
		}
	}()
	fn()
}

// Stats returns a snapshot of pool activity. Safe to call concurrently.
func (p *PoolScheduler) Stats() PoolStats {
	return PoolStats{
		Submitted:  p.submitted.Load(),
		Completed:  p.completed.Load(),
		InFlight:   p.inFlight.Load(),
		QueueDepth: len(p.tasks),
		Workers:    p.workers,
	}
}

// Execute enqueues fn, blocking while the queue is full. If the pool is
// closed, fn is dropped and [ErrPoolClosed] is reported.
//
// Panics if fn is nil.
func (p *PoolScheduler) Execute(fn func()) {
	if fn == nil {
		panic("rx: Execute requires non-nil fn")
	}
	if p.closed.Load() {
		p.rep.report(ErrPoolClosed)
		return
	}

	// Guard against the race between the closed check above and Close()
	// closing the tasks channel: if Close fires in between, the send
	// panics and we report instead.
	defer func() {
		if r := recover(); r != nil {
			p.rep.report(ErrPoolClosed)
		}
	}()

	p.tasks <- fn
	p.submitted.Add(1)
}

// ReportFailure records err through the configured reporter.
func (p *PoolScheduler) ReportFailure(err error) {
	p.rep.report(err)
}

// Close stops accepting new tasks, waits for queued and in-flight tasks
// to finish, and stops the workers. Safe to call multiple times.
func (p *PoolScheduler) Close() {
	if p.closed.CompareAndSwap(false, true) {
		close(p.tasks)
		close(p.metricsDone)
	}
	p.wg.Wait()
}

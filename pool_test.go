package rx

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolSchedulerExecutes(t *testing.T) {
	p := NewPoolScheduler(4)

	var count atomic.Int32
	for i := 0; i < 10; i++ {
		p.Execute(func() { count.Add(1) })
	}

	p.Close()
	assert.Equal(t, int32(10), count.Load(), "all 10 tasks should have executed")
}

func TestPoolSchedulerConcurrencyLimit(t *testing.T) {
	const workers = 3
	p := NewPoolScheduler(workers, WithQueueSize(20))

	var (
		active    atomic.Int32
		maxActive atomic.Int32
		wg        sync.WaitGroup
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		p.Execute(func() {
			defer wg.Done()
			cur := active.Add(1)
			for {
				old := maxActive.Load()
				if cur <= old || maxActive.CompareAndSwap(old, cur) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			active.Add(-1)
		})
	}
	wg.Wait()
	p.Close()

	assert.LessOrEqual(t, maxActive.Load(), int32(workers),
		"no more than %d tasks may run at once", workers)
}

func TestPoolSchedulerStats(t *testing.T) {
	p := NewPoolScheduler(2)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		p.Execute(func() { wg.Done() })
	}
	wg.Wait()
	p.Close()

	stats := p.Stats()
	assert.Equal(t, int64(5), stats.Submitted)
	assert.Equal(t, int64(5), stats.Completed)
	assert.Equal(t, int64(0), stats.InFlight)
	assert.Equal(t, 0, stats.QueueDepth)
	assert.Equal(t, 2, stats.Workers)
}

func TestPoolSchedulerExecuteAfterCloseReports(t *testing.T) {
	var capture captureLog
	p := NewPoolScheduler(1, WithSchedulerOptions(WithLogger(capture.logger())))
	p.Close()

	var ran bool
	p.Execute(func() { ran = true })

	assert.False(t, ran, "task submitted after Close must be dropped")
	events := capture.snapshot()
	require.Len(t, events, 1)
	assert.Equal(t, ErrPoolClosed, events[0].fields["err"])
}

func TestPoolSchedulerPanicRecovery(t *testing.T) {
	var capture captureLog
	p := NewPoolScheduler(2, WithSchedulerOptions(WithLogger(capture.logger())))

	var after atomic.Bool
	p.Execute(func() { panic("worker task exploded") })
	p.Execute(func() { after.Store(true) })
	p.Close()

	assert.True(t, after.Load(), "workers must survive a panicking task")

	events := capture.snapshot()
	require.Len(t, events, 1)
	err, ok := events[0].fields["err"].(error)
	require.True(t, ok)
	var pe *PanicError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "pool task", pe.Op)
	assert.Equal(t, "worker task exploded", pe.Value)

	stats := p.Stats()
	assert.Equal(t, int64(2), stats.Completed, "panicked tasks still count as completed")
}

func TestPoolSchedulerMetricsCallback(t *testing.T) {
	snapshots := make(chan PoolStats, 1)
	p := NewPoolScheduler(1, WithPoolMetrics(5*time.Millisecond, func(s PoolStats) {
		select {
		case snapshots <- s:
		default:
		}
	}))
	defer p.Close()

	var wg sync.WaitGroup
	wg.Add(1)
	p.Execute(func() { wg.Done() })
	wg.Wait()

	select {
	case s := <-snapshots:
		assert.Equal(t, 1, s.Workers)
	case <-time.After(time.Second):
		t.Fatal("metrics callback never fired")
	}
}

func TestPoolSchedulerCloseIdempotent(t *testing.T) {
	p := NewPoolScheduler(1)
	p.Close()
	assert.NotPanics(t, func() { p.Close() })
}

func TestPoolSchedulerConstructorValidation(t *testing.T) {
	assert.Panics(t, func() { NewPoolScheduler(0) })
	assert.Panics(t, func() { NewPoolScheduler(-1) })
	assert.Panics(t, func() { WithQueueSize(-1) })
	assert.Panics(t, func() { WithPoolMetrics(0, func(PoolStats) {}) })
	assert.Panics(t, func() { WithPoolMetrics(time.Second, nil) })

	p := NewPoolScheduler(1)
	defer p.Close()
	assert.Panics(t, func() { p.Execute(nil) })
}

func TestPoolSchedulerReportFailure(t *testing.T) {
	var capture captureLog
	p := NewPoolScheduler(1, WithSchedulerOptions(WithLogger(capture.logger())))
	defer p.Close()

	p.ReportFailure(assert.AnError)
	events := capture.snapshot()
	require.Len(t, events, 1)
	assert.Equal(t, assert.AnError, events[0].fields["err"])
}

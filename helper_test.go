package rx

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/joeycumines/logiface"
)

// capturedEvent is a minimal logiface event used to assert what a
// scheduler emits through ReportFailure.
type capturedEvent struct {
	logiface.UnimplementedEvent
	level  logiface.Level
	fields map[string]any
	msg    string
}

func (e *capturedEvent) Level() logiface.Level { return e.level }

func (e *capturedEvent) AddField(key string, val any) { e.fields[key] = val }

func (e *capturedEvent) AddMessage(msg string) bool {
	e.msg = msg
	return true
}

// captureLog collects every event written through its logger.
type captureLog struct {
	mu     sync.Mutex
	events []*capturedEvent
}

func (c *captureLog) logger() *logiface.Logger[logiface.Event] {
	return logiface.New(
		logiface.WithEventFactory[*capturedEvent](logiface.NewEventFactoryFunc(func(level logiface.Level) *capturedEvent {
			return &capturedEvent{level: level, fields: make(map[string]any)}
		})),
		logiface.WithWriter[*capturedEvent](logiface.NewWriterFunc(func(e *capturedEvent) error {
			c.mu.Lock()
			defer c.mu.Unlock()
			c.events = append(c.events, e)
			return nil
		})),
	).Logger()
}

func (c *captureLog) snapshot() []*capturedEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*capturedEvent(nil), c.events...)
}

// captureScheduler runs tasks on a trampoline but records reported
// failures in-process instead of logging them.
type captureScheduler struct {
	*TrampolineScheduler
	mu       sync.Mutex
	reported []error
}

func newCaptureScheduler() *captureScheduler {
	return &captureScheduler{TrampolineScheduler: NewTrampolineScheduler()}
}

func (s *captureScheduler) ReportFailure(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reported = append(s.reported, err)
}

func (s *captureScheduler) failures() []error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]error(nil), s.reported...)
}

// recorder is a Subscriber that journals every signal it receives, in
// order. ackFor, when set, supplies the acknowledgment for each element;
// otherwise every element is acknowledged with ContinueAck.
type recorder[T any] struct {
	sched  Scheduler
	ackFor func(elem T, n int) *Ack

	mu     sync.Mutex
	elems  []T
	errs   []error
	events []string

	terminal chan struct{}
	termOnce sync.Once
}

func newRecorder[T any](s Scheduler) *recorder[T] {
	return &recorder[T]{sched: s, terminal: make(chan struct{})}
}

func (r *recorder[T]) OnNext(elem T) *Ack {
	r.mu.Lock()
	r.elems = append(r.elems, elem)
	r.events = append(r.events, fmt.Sprintf("next(%v)", elem))
	n := len(r.elems)
	ackFor := r.ackFor
	r.mu.Unlock()
	if ackFor != nil {
		return ackFor(elem, n)
	}
	return ContinueAck
}

func (r *recorder[T]) OnError(err error) {
	r.mu.Lock()
	r.errs = append(r.errs, err)
	r.events = append(r.events, fmt.Sprintf("error(%v)", err))
	r.mu.Unlock()
	r.termOnce.Do(func() { close(r.terminal) })
}

func (r *recorder[T]) OnComplete() {
	r.mu.Lock()
	r.events = append(r.events, "complete")
	r.mu.Unlock()
	r.termOnce.Do(func() { close(r.terminal) })
}

func (r *recorder[T]) Scheduler() Scheduler { return r.sched }

func (r *recorder[T]) log() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func (r *recorder[T]) elements() []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]T(nil), r.elems...)
}

func (r *recorder[T]) errors() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.errs...)
}

func (r *recorder[T]) awaitTerminal(t *testing.T, timeout time.Duration) {
	t.Helper()
	select {
	case <-r.terminal:
	case <-time.After(timeout):
		t.Fatal("timed out waiting for terminal signal")
	}
}

// manualSource hands its subscriber back to the test so signals can be
// injected at precise points. One Subscribe call per instance.
type manualSource[T any] struct {
	mu   sync.Mutex
	sub  Subscriber[T]
	conn *BoolCancelable
}

func (m *manualSource[T]) Subscribe(sub Subscriber[T]) Cancelable {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sub = sub
	m.conn = NewBoolCancelable()
	return m.conn
}

func (m *manualSource[T]) subscriber() Subscriber[T] {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sub
}

func (m *manualSource[T]) canceled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conn != nil && m.conn.IsCanceled()
}

// countingCancelable counts Cancel invocations so tests can assert the
// exactly-once guarantee.
type countingCancelable struct {
	n atomic.Int32
}

func (c *countingCancelable) Cancel() { c.n.Add(1) }

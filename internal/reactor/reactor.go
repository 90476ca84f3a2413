// Package reactor is the async substrate handed to every bridge operation.
//
// A Reactor owns a ready queue, a timer heap and a count of off-loop work in
// flight. Nothing runs until RunUntilIdle is called; every task and timer
// callback then runs on the calling goroutine. Work started with Go runs on
// its own goroutine and hands a continuation back to the queue.
package reactor

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"github.com/GriffinCanCode/guestjs/internal/monitoring"
)

// Task is a unit of work run on the reactor goroutine. A non-nil error stops
// RunUntilIdle.
type Task func() error

// TimerID identifies a scheduled timer. Zero is never issued.
type TimerID uint64

// MinInterval is the shortest repeat interval; shorter intervals are raised
// to it.
const MinInterval = time.Millisecond

// Reactor is an explicitly driven event loop.
type Reactor struct {
	mu      sync.Mutex
	queue   []Task
	timers  timerHeap
	byID    map[TimerID]*timer
	lastID  TimerID
	seq     uint64
	pending int
	epoch   uint64
	ran     uint64

	wake    chan struct{}
	metrics *monitoring.Metrics
}

// Option configures a Reactor.
type Option func(*Reactor)

// WithMetrics counts tasks and fired timers on m.
func WithMetrics(m *monitoring.Metrics) Option {
	return func(r *Reactor) {
		r.metrics = m
	}
}

// New creates an idle reactor.
func New(opts ...Option) *Reactor {
	r := &Reactor{
		byID: make(map[TimerID]*timer),
		wake: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Post queues t to run on the next turn. Safe from any goroutine.
func (r *Reactor) Post(t Task) {
	r.mu.Lock()
	r.queue = append(r.queue, t)
	r.mu.Unlock()
	r.signal()
}

// SetTimer schedules fn after delay. A repeating timer fires every delay
// until cleared.
func (r *Reactor) SetTimer(delay time.Duration, repeat bool, fn Task) TimerID {
	if delay < 0 {
		delay = 0
	}
	if repeat && delay < MinInterval {
		delay = MinInterval
	}

	r.mu.Lock()
	r.lastID++
	r.seq++
	t := &timer{
		id:       r.lastID,
		when:     time.Now().Add(delay),
		interval: delay,
		repeat:   repeat,
		seq:      r.seq,
		fn:       fn,
	}
	heap.Push(&r.timers, t)
	r.byID[t.id] = t
	r.mu.Unlock()

	r.signal()
	return t.id
}

// ClearTimer cancels a timer. It reports whether the timer was still
// scheduled.
func (r *Reactor) ClearTimer(id TimerID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.byID[id]
	if !ok {
		return false
	}
	heap.Remove(&r.timers, t.index)
	delete(r.byID, id)
	return true
}

// Go runs work on a new goroutine. The Task it returns, if any, is queued on
// the reactor. RunUntilIdle does not return while work is in flight.
func (r *Reactor) Go(work func() Task) {
	r.mu.Lock()
	r.pending++
	epoch := r.epoch
	r.mu.Unlock()

	go func() {
		cont := work()

		r.mu.Lock()
		if r.epoch != epoch {
			r.mu.Unlock()
			return
		}
		r.pending--
		if cont != nil {
			r.queue = append(r.queue, cont)
		}
		r.mu.Unlock()
		r.signal()
	}()
}

// Reset drops every queued task and timer. Off-loop work already started
// keeps running, but its continuation is discarded. Timer ids are not
// reused.
func (r *Reactor) Reset() {
	r.mu.Lock()
	r.queue = nil
	r.timers = nil
	clear(r.byID)
	r.pending = 0
	r.epoch++
	r.mu.Unlock()
}

// Idle reports whether nothing is queued, scheduled or in flight.
func (r *Reactor) Idle() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.queue) == 0 && len(r.timers) == 0 && r.pending == 0
}

// TasksRun returns how many tasks and timer callbacks have run.
func (r *Reactor) TasksRun() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ran
}

// RunUntilIdle runs queued tasks and due timers, sleeping until the next
// deadline when nothing is ready, until the reactor is idle. It returns the
// first task error or the context error.
func (r *Reactor) RunUntilIdle(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		task, wait, idle := r.next()
		if idle {
			return nil
		}
		if task != nil {
			if err := task(); err != nil {
				return err
			}
			continue
		}
		if err := r.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// next pops the next runnable task. With nothing runnable it returns how
// long to wait; a negative wait means until woken.
func (r *Reactor) next() (Task, time.Duration, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.queue) > 0 {
		t := r.queue[0]
		r.queue[0] = nil
		r.queue = r.queue[1:]
		r.ran++
		if r.metrics != nil {
			r.metrics.IncReactorTasks()
		}
		return t, 0, false
	}

	if len(r.timers) > 0 {
		t := r.timers[0]
		now := time.Now()
		if d := t.when.Sub(now); d > 0 {
			return nil, d, false
		}
		if t.repeat {
			r.seq++
			t.when = now.Add(t.interval)
			t.seq = r.seq
			heap.Fix(&r.timers, 0)
		} else {
			heap.Pop(&r.timers)
			delete(r.byID, t.id)
		}
		r.ran++
		if r.metrics != nil {
			r.metrics.IncReactorTimers()
		}
		return t.fn, 0, false
	}

	if r.pending > 0 {
		return nil, -1, false
	}
	return nil, 0, true
}

func (r *Reactor) sleep(ctx context.Context, d time.Duration) error {
	if d < 0 {
		select {
		case <-r.wake:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-r.wake:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

func (r *Reactor) signal() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

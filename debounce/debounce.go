// Package debounce delays a callback until its input has been quiet for a
// fixed period.
package debounce

import (
	"sync"
	"time"

	"k8s.io/utils/clock"
)

// Option configures a Debouncer.
type Option func(*options)

type options struct {
	clock clock.WithDelayedExecution
}

// WithClock sets the clock used for timers. Defaults to the real clock.
func WithClock(c clock.WithDelayedExecution) Option {
	return func(o *options) { o.clock = c }
}

// Debouncer calls fn with the most recent value passed to Trigger once delay
// has elapsed without another Trigger. It fires on the trailing edge only.
type Debouncer[T any] struct {
	clock clock.WithDelayedExecution
	delay time.Duration
	fn    func(T)

	mu      sync.Mutex
	seq     uint64
	pending bool
	value   T
	timer   clock.Timer
	stopped bool
}

// New creates a debouncer that calls fn after delay of quiet.
func New[T any](delay time.Duration, fn func(T), opts ...Option) *Debouncer[T] {
	o := options{clock: clock.RealClock{}}
	for _, opt := range opts {
		opt(&o)
	}
	return &Debouncer[T]{clock: o.clock, delay: delay, fn: fn}
}

// Trigger records v and restarts the quiet period.
func (d *Debouncer[T]) Trigger(v T) {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.seq++
	seq := d.seq
	d.value = v
	d.pending = true
	old := d.timer
	d.timer = nil
	d.mu.Unlock()

	// The clock is never called with d.mu held: fake clocks run AfterFunc
	// callbacks under their own lock.
	if old != nil {
		old.Stop()
	}
	t := d.clock.AfterFunc(d.delay, func() { d.fire(seq) })

	d.mu.Lock()
	if d.seq == seq && d.pending {
		d.timer = t
		d.mu.Unlock()
		return
	}
	d.mu.Unlock()
	t.Stop()
}

func (d *Debouncer[T]) fire(seq uint64) {
	d.mu.Lock()
	if d.seq != seq || !d.pending {
		d.mu.Unlock()
		return
	}
	v := d.value
	d.pending = false
	d.timer = nil
	d.mu.Unlock()
	d.fn(v)
}

// Flush fires a pending value immediately.
func (d *Debouncer[T]) Flush() {
	d.mu.Lock()
	if !d.pending {
		d.mu.Unlock()
		return
	}
	seq := d.seq
	t := d.timer
	d.mu.Unlock()
	if t != nil {
		t.Stop()
	}
	d.fire(seq)
}

// Cancel drops a pending value without firing.
func (d *Debouncer[T]) Cancel() {
	d.mu.Lock()
	d.seq++
	d.pending = false
	t := d.timer
	d.timer = nil
	d.mu.Unlock()
	if t != nil {
		t.Stop()
	}
}

// Pending reports whether a value is waiting to fire.
func (d *Debouncer[T]) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending
}

// Stop cancels any pending value and ignores later Triggers.
func (d *Debouncer[T]) Stop() {
	d.Cancel()
	d.mu.Lock()
	d.stopped = true
	d.mu.Unlock()
}

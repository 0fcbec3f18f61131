// Package search turns rapidly changing query input into a stable filter.
package search

import (
	"sync"
	"time"

	"k8s.io/utils/clock"

	"github.com/youssefsiam38/activitypg/debounce"
)

// DebounceInterval is how long input must stay unchanged before it is
// committed.
const DebounceInterval = 1500 * time.Millisecond

// Filter holds the raw input and the committed filter value. The raw value
// changes on every SetRaw; the committed value follows DebounceInterval after
// the last change.
type Filter struct {
	onCommit func(string)
	debounce *debounce.Debouncer[string]

	mu        sync.Mutex
	raw       string
	committed string
}

// Config configures a Filter.
type Config struct {
	// Initial seeds both the raw and the committed value.
	Initial string

	// Clock drives the debounce timer. Defaults to the real clock.
	Clock clock.WithDelayedExecution
}

// NewFilter creates a filter that calls onCommit whenever the committed
// value changes.
func NewFilter(onCommit func(string), cfg *Config) *Filter {
	var c Config
	if cfg != nil {
		c = *cfg
	}
	f := &Filter{onCommit: onCommit, raw: c.Initial, committed: c.Initial}
	var opts []debounce.Option
	if c.Clock != nil {
		opts = append(opts, debounce.WithClock(c.Clock))
	}
	f.debounce = debounce.New(DebounceInterval, f.commit, opts...)
	return f
}

// SetRaw records new input and restarts the quiet period.
func (f *Filter) SetRaw(v string) {
	f.mu.Lock()
	f.raw = v
	f.mu.Unlock()
	f.debounce.Trigger(v)
}

func (f *Filter) commit(v string) {
	f.mu.Lock()
	if v == f.committed {
		f.mu.Unlock()
		return
	}
	f.committed = v
	f.mu.Unlock()
	if f.onCommit != nil {
		f.onCommit(v)
	}
}

// Raw returns the latest input.
func (f *Filter) Raw() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.raw
}

// Committed returns the active filter value.
func (f *Filter) Committed() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.committed
}

// Pending reports whether input is waiting to be committed.
func (f *Filter) Pending() bool { return f.debounce.Pending() }

// Flush commits pending input immediately, as on an explicit submit.
func (f *Filter) Flush() { f.debounce.Flush() }

// Close stops the timer. Later input is recorded but never committed.
func (f *Filter) Close() { f.debounce.Stop() }

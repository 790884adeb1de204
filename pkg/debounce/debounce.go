package debounce

import (
	"sync"
	"time"
)

// Debouncer coalesces bursts of triggers into a single callback after a
// quiet interval. Each Trigger resets the timer and replaces the pending
// callback, so only the last call in a burst fires.
type Debouncer struct {
	interval time.Duration

	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
}

// New builds a debouncer with the given quiet interval.
func New(interval time.Duration) *Debouncer {
	if interval <= 0 {
		interval = time.Millisecond
	}
	return &Debouncer{interval: interval}
}

// Trigger schedules fn to run once the interval elapses with no further
// triggers. A nil fn cancels any pending callback.
func (d *Debouncer) Trigger(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	if fn == nil {
		return
	}
	d.timer = time.AfterFunc(d.interval, func() {
		d.mu.Lock()
		if d.stopped {
			d.mu.Unlock()
			return
		}
		d.timer = nil
		d.mu.Unlock()
		fn()
	})
}

// Stop cancels any pending callback and rejects further triggers.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

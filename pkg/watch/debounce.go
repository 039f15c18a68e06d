package watch

import (
	"sync"
	"time"
)

// Debouncer coalesces bursts of triggers into one signal delivered after
// the triggers have been quiet for the configured delay
type Debouncer struct {
	delay time.Duration
	fire  chan struct{}

	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
}

// NewDebouncer creates a debouncer with the given quiet period
func NewDebouncer(delay time.Duration) *Debouncer {
	return &Debouncer{
		delay: delay,
		fire:  make(chan struct{}, 1),
	}
}

// Trigger restarts the quiet period
func (d *Debouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, func() {
		select {
		case d.fire <- struct{}{}:
		default:
			// a signal is already pending
		}
	})
}

// C delivers one value per quiet period that followed a trigger
func (d *Debouncer) C() <-chan struct{} {
	return d.fire
}

// Stop cancels any pending signal
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
}

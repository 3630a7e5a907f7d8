// Package watcher observes a dataset directory and signals when its
// files settle after a burst of writes, so the index is rebuilt once
// per change instead of once per written file.
package watcher

import (
	"sync"
	"time"
)

// Trigger coalesces rapid notifications into single firings. A firing
// is emitted one debounce window after the last Notify call.
type Trigger struct {
	window  time.Duration
	mu      sync.Mutex
	timer   *time.Timer
	out     chan struct{}
	stopped bool
}

// NewTrigger creates a trigger with the given debounce window.
func NewTrigger(window time.Duration) *Trigger {
	return &Trigger{
		window: window,
		out:    make(chan struct{}, 1),
	}
}

// Notify records a change and (re)starts the debounce window.
func (t *Trigger) Notify() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopped {
		return
	}
	if t.timer != nil {
		t.timer.Stop()
	}
	t.timer = time.AfterFunc(t.window, t.fire)
}

func (t *Trigger) fire() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopped {
		return
	}
	// Non-blocking: a pending firing already covers this change.
	select {
	case t.out <- struct{}{}:
	default:
	}
}

// C returns the firing channel.
func (t *Trigger) C() <-chan struct{} {
	return t.out
}

// Stop stops the trigger. Safe to call multiple times.
func (t *Trigger) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopped {
		return
	}
	t.stopped = true
	if t.timer != nil {
		t.timer.Stop()
	}
}

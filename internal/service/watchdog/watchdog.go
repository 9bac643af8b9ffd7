package watchdog

import (
	"sync"
	"time"
)

// Watchdog is a single-shot inactivity timer. Arm starts the countdown;
// firing invokes the callback at most once per arm cycle, enforced by a
// latch that only Activity resets. Stop guarantees the timer never outlives
// its owner.
type Watchdog struct {
	mu         sync.Mutex
	timeout    time.Duration
	onInactive func()

	timer   *time.Timer
	fired   bool
	stopped bool
}

func New(timeout time.Duration, onInactive func()) *Watchdog {
	return &Watchdog{
		timeout:    timeout,
		onInactive: onInactive,
	}
}

// Arm starts (or restarts) the countdown. It is a no-op once the latch has
// fired for the current cycle or after Stop.
func (w *Watchdog) Arm() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.cancelLocked()
	if w.fired || w.stopped {
		return
	}
	w.timer = time.AfterFunc(w.timeout, w.fire)
}

// Activity marks the cycle as answered: the latch resets and the countdown
// restarts.
func (w *Watchdog) Activity() {
	w.mu.Lock()
	w.fired = false
	w.mu.Unlock()
	w.Arm()
}

// Disarm cancels any pending countdown without touching the latch.
func (w *Watchdog) Disarm() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.cancelLocked()
}

// Stop disarms permanently. Safe to call more than once, and after a fire.
func (w *Watchdog) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stopped = true
	w.cancelLocked()
}

func (w *Watchdog) fire() {
	w.mu.Lock()
	if w.fired || w.stopped {
		w.mu.Unlock()
		return
	}
	w.fired = true
	cb := w.onInactive
	w.mu.Unlock()

	if cb != nil {
		cb()
	}
}

func (w *Watchdog) cancelLocked() {
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
}

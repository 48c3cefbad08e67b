package gpio

import (
	"errors"
	"sync"
	"time"
)

// FakeSource is a test double driven by scripted button actions.
// Hold timing uses a manual clock advanced by the test.
type FakeSource struct {
	// WatchError, if set, is returned by Watch and no handler is installed.
	WatchError error

	// Watching tracks if Watch succeeded.
	Watching bool

	// Closed tracks if Close was called.
	Closed bool

	mu    sync.Mutex
	btn   *button
	clock *manualClock
}

// NewFakeSource creates a FakeSource with the given hold threshold.
func NewFakeSource(holdTime time.Duration) *FakeSource {
	clock := &manualClock{}
	return &FakeSource{
		btn:   newButton(holdTime, clock.afterFunc),
		clock: clock,
	}
}

// Watch installs the handlers.
func (f *FakeSource) Watch(h Handlers) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.WatchError != nil {
		return f.WatchError
	}
	if f.Watching {
		return errors.New("already watching")
	}
	f.btn.setHandlers(h)
	f.Watching = true
	return nil
}

// Press simulates the button going down.
func (f *FakeSource) Press() {
	f.btn.edge(true)
}

// Release simulates the button coming up.
func (f *FakeSource) Release() {
	f.btn.edge(false)
}

// Advance moves the manual clock forward, firing a due hold timer.
func (f *FakeSource) Advance(d time.Duration) {
	f.clock.advance(d)
}

// HoldFor presses the button and keeps it down for d. The button stays pressed.
func (f *FakeSource) HoldFor(d time.Duration) {
	f.Press()
	f.Advance(d)
}

// Close detaches the handlers and marks the source as closed.
func (f *FakeSource) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.btn.stop()
	f.Watching = false
	f.Closed = true
	return nil
}

// manualClock runs AfterFunc callbacks only when advanced.
type manualClock struct {
	mu     sync.Mutex
	now    time.Duration
	timers []*manualTimer
}

type manualTimer struct {
	clock *manualClock
	at    time.Duration
	f     func()
	done  bool
}

func (c *manualClock) afterFunc(d time.Duration, f func()) stopper {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := &manualTimer{clock: c, at: c.now + d, f: f}
	c.timers = append(c.timers, t)
	return t
}

func (c *manualClock) advance(d time.Duration) {
	c.mu.Lock()
	c.now += d
	var due []*manualTimer
	pending := c.timers[:0]
	for _, t := range c.timers {
		switch {
		case t.done:
		case t.at <= c.now:
			t.done = true
			due = append(due, t)
		default:
			pending = append(pending, t)
		}
	}
	c.timers = pending
	c.mu.Unlock()

	// Callbacks take the button lock; run them without holding ours.
	for _, t := range due {
		t.f()
	}
}

func (t *manualTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()

	if t.done {
		return false
	}
	t.done = true
	return true
}

package gpio

import (
	"sync"
	"time"
)

// stopper is the part of *time.Timer the button needs.
type stopper interface {
	Stop() bool
}

type afterFunc func(d time.Duration, f func()) stopper

func realAfterFunc(d time.Duration, f func()) stopper {
	return time.AfterFunc(d, f)
}

// button converts debounced level changes into Pressed/Released/Held
// notifications. Handlers are called with mu held so they observe edges in
// order, one at a time.
type button struct {
	mu       sync.Mutex
	h        Handlers
	holdTime time.Duration
	after    afterFunc

	pressed bool
	press   uint64 // incremented on every press; stale hold timers compare against it
	timer   stopper
}

func newButton(holdTime time.Duration, after afterFunc) *button {
	return &button{holdTime: holdTime, after: after}
}

func (b *button) setHandlers(h Handlers) {
	b.mu.Lock()
	b.h = h
	b.mu.Unlock()
}

// edge processes a new logical level. Repeated levels are dropped.
func (b *button) edge(pressed bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if pressed == b.pressed {
		return
	}
	b.pressed = pressed

	if pressed {
		b.press++
		n := b.press
		b.timer = b.after(b.holdTime, func() { b.held(n) })
		call(b.h.Pressed)
		return
	}

	b.stopTimer()
	call(b.h.Released)
}

func (b *button) held(n uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.pressed || n != b.press {
		return
	}
	b.timer = nil
	call(b.h.Held)
}

// stop cancels a pending hold and detaches the handlers.
func (b *button) stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stopTimer()
	b.h = Handlers{}
}

func (b *button) stopTimer() {
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
}

func call(f func()) {
	if f != nil {
		f()
	}
}

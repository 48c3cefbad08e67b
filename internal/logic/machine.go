package logic

import (
	"fmt"
	"sync/atomic"
)

// Machine tracks the state of one configured gesture and raises the shutdown
// flag when the gesture completes. Edge handlers may run on a different
// goroutine than the one polling ShutdownRequested.
type Machine struct {
	gesture  Gesture
	wasHeld  atomic.Bool
	shutdown atomic.Bool
}

// wirings selects the edge bindings for each gesture.
var wirings = map[Gesture]func(m *Machine) Bindings{
	GesturePress: func(m *Machine) Bindings {
		return Bindings{Pressed: m.complete}
	},
	GestureRelease: func(m *Machine) Bindings {
		return Bindings{Released: m.complete}
	},
	GestureHold: func(m *Machine) Bindings {
		return Bindings{Held: m.complete}
	},
	GestureHoldRelease: func(m *Machine) Bindings {
		return Bindings{Held: m.markHeld, Released: m.complete}
	},
}

// NewMachine creates a machine for the given gesture.
// Only holdrelease requires a hold before its terminal edge.
func NewMachine(g Gesture) *Machine {
	m := &Machine{gesture: g}
	m.wasHeld.Store(g != GestureHoldRelease)
	return m
}

// Gesture returns the configured gesture.
func (m *Machine) Gesture() Gesture {
	return m.gesture
}

// Bindings returns the complete set of edge handlers for the gesture.
// An unknown gesture yields an error and no handlers at all.
func (m *Machine) Bindings() (Bindings, error) {
	wire, ok := wirings[m.gesture]
	if !ok {
		return Bindings{}, fmt.Errorf("no wiring for gesture %q", m.gesture)
	}
	return wire(m), nil
}

// Handle dispatches a single edge. Edges outside the gesture are ignored.
func (m *Machine) Handle(e Edge) {
	b, err := m.Bindings()
	if err != nil {
		return
	}
	if h := b.For(e); h != nil {
		h()
	}
}

// ShutdownRequested reports whether the gesture has completed.
// Once true it stays true.
func (m *Machine) ShutdownRequested() bool {
	return m.shutdown.Load()
}

// WasHeld reports whether the qualifying hold has been observed.
func (m *Machine) WasHeld() bool {
	return m.wasHeld.Load()
}

func (m *Machine) markHeld() {
	m.wasHeld.Store(true)
}

// complete is the terminal handler. A release without a prior hold is not a
// completed holdrelease gesture.
func (m *Machine) complete() {
	if !m.wasHeld.Load() {
		return
	}
	m.shutdown.CompareAndSwap(false, true)
}

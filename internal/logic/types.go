// Package logic contains the pure gesture detection logic for the shutdown button.
// This package has NO external dependencies (no GPIO, MQTT, OS, or time.Sleep).
// Hold durations are measured by the edge source, never here.
package logic

import (
	"fmt"
	"strings"
)

// Gesture is the button interaction that requests a system shutdown.
type Gesture string

const (
	GesturePress       Gesture = "press"
	GestureRelease     Gesture = "release"
	GestureHold        Gesture = "hold"
	GestureHoldRelease Gesture = "holdrelease"
)

// Gestures lists every supported gesture in display order.
var Gestures = []Gesture{GesturePress, GestureRelease, GestureHold, GestureHoldRelease}

// ParseGesture converts a config token into a Gesture. Matching is case-insensitive.
func ParseGesture(s string) (Gesture, error) {
	g := Gesture(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Gestures {
		if g == known {
			return g, nil
		}
	}
	return "", fmt.Errorf("unknown gesture %q (want press, release, hold or holdrelease)", s)
}

// Edge is a debounced button notification delivered by the edge source.
type Edge string

const (
	EdgePressed  Edge = "PRESSED"
	EdgeReleased Edge = "RELEASED"
	EdgeHeld     Edge = "HELD"
)

// Bindings maps edges to the handlers of the active gesture.
// A nil handler means the edge is not part of the gesture and is ignored.
type Bindings struct {
	Pressed  func()
	Released func()
	Held     func()
}

// For returns the handler bound to the given edge, or nil.
func (b Bindings) For(e Edge) func() {
	switch e {
	case EdgePressed:
		return b.Pressed
	case EdgeReleased:
		return b.Released
	case EdgeHeld:
		return b.Held
	}
	return nil
}

// Package gpio turns a single GPIO input line into button edge notifications.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

import "time"

// Handlers receives the edge notifications of one button.
// Nil handlers are skipped.
type Handlers struct {
	Pressed  func()
	Released func()
	// Held fires once per press, after the button stayed pressed for the hold time.
	Held func()
}

// Source delivers button edges for one input line.
type Source interface {
	// Watch installs all handlers at once and starts delivering edges.
	// On error no handler is installed.
	Watch(h Handlers) error

	// Close stops edge delivery and releases GPIO resources.
	Close() error
}

// Line defaults for the Raspberry Pi shutdown button (BCM numbering).
// GPIO3 has a hard-wired pull-up and wakes a halted Pi when pulled low.
const (
	DefaultChip = "gpiochip0"
	DefaultLine = 3
)

// Debounce is the fixed kernel debounce period applied to the line.
const Debounce = 10 * time.Millisecond

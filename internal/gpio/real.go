//go:build linux

package gpio

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/warthog618/go-gpiocdev"
)

// Consumer is the label shown for the requested line in gpioinfo.
const Consumer = "gpio-shutdown"

// RealSource watches a button on actual hardware using the Linux GPIO character device.
type RealSource struct {
	mu     sync.Mutex
	chip   *gpiocdev.Chip
	line   *gpiocdev.Line
	offset int
	btn    *button
}

// NewRealSource opens the GPIO chip. The line itself is requested by Watch.
func NewRealSource(chipName string, offset int, holdTime time.Duration) (*RealSource, error) {
	if holdTime <= 0 {
		return nil, fmt.Errorf("invalid hold time %v", holdTime)
	}

	chip, err := gpiocdev.NewChip(chipName, gpiocdev.WithConsumer(Consumer))
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w", chipName, err)
	}

	return &RealSource{
		chip:   chip,
		offset: offset,
		btn:    newButton(holdTime, realAfterFunc),
	}, nil
}

// Watch requests the line as an active-low input with pull-up and edge events.
// The button connects the line to ground, so a press is a logical rising edge.
func (s *RealSource) Watch(h Handlers) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.chip == nil {
		return errors.New("gpio chip closed")
	}
	if s.line != nil {
		return fmt.Errorf("line %d already watched", s.offset)
	}

	s.btn.setHandlers(h)
	line, err := s.chip.RequestLine(s.offset,
		gpiocdev.AsInput,
		gpiocdev.AsActiveLow,
		gpiocdev.WithPullUp,
		gpiocdev.WithBothEdges,
		gpiocdev.WithDebounce(Debounce),
		gpiocdev.WithEventHandler(s.handleEvent),
	)
	if err != nil {
		s.btn.setHandlers(Handlers{})
		return fmt.Errorf("request line %d: %w", s.offset, err)
	}
	s.line = line
	return nil
}

func (s *RealSource) handleEvent(evt gpiocdev.LineEvent) {
	switch evt.Type {
	case gpiocdev.LineEventRisingEdge:
		s.btn.edge(true)
	case gpiocdev.LineEventFallingEdge:
		s.btn.edge(false)
	}
}

// Close releases GPIO resources. Safe to call more than once.
func (s *RealSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error

	if s.line != nil {
		if err := s.line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close line %d: %w", s.offset, err))
		}
		s.line = nil
	}
	// After the line is closed no further events arrive; drop a pending hold.
	s.btn.stop()

	if s.chip != nil {
		if err := s.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
		s.chip = nil
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

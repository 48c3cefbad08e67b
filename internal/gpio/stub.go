//go:build !linux

package gpio

import (
	"errors"
	"time"
)

// RealSource is not available on non-Linux platforms.
type RealSource struct{}

// NewRealSource returns an error on non-Linux platforms.
func NewRealSource(chipName string, offset int, holdTime time.Duration) (*RealSource, error) {
	return nil, errors.New("gpio: not supported on this platform (requires Linux)")
}

// Watch is not implemented on non-Linux platforms.
func (s *RealSource) Watch(h Handlers) error {
	return errors.New("gpio: not supported")
}

// Close is not implemented on non-Linux platforms.
func (s *RealSource) Close() error {
	return nil
}

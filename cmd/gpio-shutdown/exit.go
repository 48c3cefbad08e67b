package main

import (
	"errors"

	"github.com/sweeney/gpio-shutdown/internal/config"
)

// Process exit codes. These values are stable; service units and scripts
// may depend on them.
//
//	0  gesture shutdown issued, stopped by SIGTERM/SIGINT, or --check passed
//	1  unhandled fault (panic, handler fault, bad flags, unexpected error)
//	2  not used; the Go runtime exits with 2 on an unrecovered panic
//	3  config file missing or unreadable
//	4  no [GPIO] Button directive, or the file cannot be parsed
//	5  invalid gesture name
//	6  invalid hold time
//	7  GPIO chip or line setup failed
const (
	exitOK              = 0
	exitFault           = 1
	exitConfigAccess    = 3
	exitConfigMissing   = 4
	exitInvalidGesture  = 5
	exitInvalidHoldTime = 6
	exitGPIOSetup       = 7
)

var (
	errGPIOSetup    = errors.New("gpio setup failed")
	errHandlerFault = errors.New("button handler panicked")
)

func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, config.ErrAccess):
		return exitConfigAccess
	case errors.Is(err, config.ErrMissingButton), errors.Is(err, config.ErrSyntax):
		return exitConfigMissing
	case errors.Is(err, config.ErrInvalidGesture):
		return exitInvalidGesture
	case errors.Is(err, config.ErrInvalidHoldTime):
		return exitInvalidHoldTime
	case errors.Is(err, errGPIOSetup):
		return exitGPIOSetup
	case errors.Is(err, errHandlerFault):
		return exitFault
	default:
		return exitFault
	}
}

// exitCodeName returns a human-readable name for an exit code.
func exitCodeName(code int) string {
	switch code {
	case exitOK:
		return "success"
	case exitFault:
		return "unhandled fault"
	case exitConfigAccess:
		return "config inaccessible"
	case exitConfigMissing:
		return "config directive missing"
	case exitInvalidGesture:
		return "invalid gesture"
	case exitInvalidHoldTime:
		return "invalid hold time"
	case exitGPIOSetup:
		return "gpio setup failed"
	default:
		return "unknown"
	}
}

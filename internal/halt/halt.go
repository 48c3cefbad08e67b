// Package halt runs the system shutdown command.
package halt

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/mattn/go-shellwords"
)

// DefaultCommand powers the machine off immediately.
// The daemon runs as root under systemd, so no sudo is needed.
const DefaultCommand = "shutdown -h now"

// ErrAlreadyInvoked is returned by a second Halt call.
var ErrAlreadyInvoked = errors.New("shutdown command already invoked")

// Halter requests a system shutdown.
type Halter interface {
	Halt(ctx context.Context) error
}

// Command is an external shutdown command. It runs at most once.
type Command struct {
	Name   string
	Args   []string
	DryRun bool

	invoked atomic.Bool
}

// NewCommand splits line into program and arguments. Quotes are honoured but
// nothing is expanded and no shell is involved.
func NewCommand(line string, dryRun bool) (*Command, error) {
	p := shellwords.NewParser()
	p.ParseEnv = false
	p.ParseBacktick = false

	words, err := p.Parse(line)
	if err != nil {
		return nil, fmt.Errorf("parse shutdown command %q: %w", line, err)
	}
	if len(words) == 0 {
		return nil, errors.New("empty shutdown command")
	}
	return &Command{Name: words[0], Args: words[1:], DryRun: dryRun}, nil
}

// String returns the command line.
func (c *Command) String() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

// Halt runs the command synchronously. Its exit status is returned for
// logging only; the command is never retried.
func (c *Command) Halt(ctx context.Context) error {
	if !c.invoked.CompareAndSwap(false, true) {
		return ErrAlreadyInvoked
	}

	if c.DryRun {
		log.Info("dry run, not executing shutdown command", "command", c.String())
		return nil
	}

	log.Info("executing shutdown command", "command", c.String())
	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Stdout = &out
	cmd.Stderr = &out
	err := cmd.Run()
	if s := strings.TrimSpace(out.String()); s != "" {
		log.Info("shutdown command output", "output", s)
	}
	if err != nil {
		return fmt.Errorf("run %s: %w", c.Name, err)
	}
	return nil
}

// Invoked reports whether Halt has been called.
func (c *Command) Invoked() bool {
	return c.invoked.Load()
}

// FakeHalter records Halt calls for test assertions.
type FakeHalter struct {
	mu    sync.Mutex
	calls int

	// HaltError, if set, is returned by every Halt call.
	HaltError error
}

// Halt records the call.
func (f *FakeHalter) Halt(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.HaltError
}

// Calls returns the number of Halt calls.
func (f *FakeHalter) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

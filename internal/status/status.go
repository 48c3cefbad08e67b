// Package status provides a thread-safe status tracker for the gpio-shutdown daemon.
// It is read by the HTTP status page and by MQTT lifecycle events.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/gpio-shutdown/internal/logic"
)

// Config contains daemon configuration for display.
type Config struct {
	ConfigPath      string
	Chip            string
	Line            int
	Gesture         logic.Gesture
	HoldTime        time.Duration
	ShutdownCommand string
	DryRun          bool
	PollMs          int64
	Broker          string
	HTTPAddr        string
	HeartbeatMs     int64
}

// Counts tracks the number of each edge since startup.
type Counts struct {
	Pressed  int
	Released int
	Held     int
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Pressed           bool
	Counts            Counts
	LastEdge          logic.Edge
	LastEdgeAt        time.Time
	ShutdownRequested bool
	StartTime         time.Time
	Now               time.Time
	MQTTConnected     bool
	Config            Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// RecordEdge counts a button edge. Called from the GPIO callback.
func (t *Tracker) RecordEdge(e logic.Edge, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch e {
	case logic.EdgePressed:
		t.snap.Counts.Pressed++
		t.snap.Pressed = true
	case logic.EdgeReleased:
		t.snap.Counts.Released++
		t.snap.Pressed = false
	case logic.EdgeHeld:
		t.snap.Counts.Held++
	default:
		return
	}
	t.snap.LastEdge = e
	t.snap.LastEdgeAt = at
}

// SetShutdownRequested marks that the gesture completed.
func (t *Tracker) SetShutdownRequested() {
	t.mu.Lock()
	t.snap.ShutdownRequested = true
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}

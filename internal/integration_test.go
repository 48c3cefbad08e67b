package internal

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/sweeney/gpio-shutdown/internal/config"
	"github.com/sweeney/gpio-shutdown/internal/gpio"
	"github.com/sweeney/gpio-shutdown/internal/logic"
	"github.com/sweeney/gpio-shutdown/internal/mqtt"
	"github.com/sweeney/gpio-shutdown/internal/status"
)

// rig connects a config file, a gesture machine and a fake button the way the
// daemon does, recording every edge in a tracker and a fake publisher.
type rig struct {
	cfg       config.Config
	src       *gpio.FakeSource
	machine   *logic.Machine
	tracker   *status.Tracker
	publisher *mqtt.FakePublisher
}

var startTime = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func newRig(t *testing.T, contents string) *rig {
	t.Helper()

	cfg, err := config.Read(contents)
	if err != nil {
		t.Fatalf("config.Read: %v", err)
	}
	r := &rig{
		cfg:       cfg,
		src:       gpio.NewFakeSource(cfg.HoldTime),
		machine:   logic.NewMachine(cfg.Gesture),
		tracker:   status.NewTracker(startTime, status.Config{Gesture: cfg.Gesture, HoldTime: cfg.HoldTime}),
		publisher: mqtt.NewFakePublisher(),
	}

	b, err := r.machine.Bindings()
	if err != nil {
		t.Fatalf("Bindings: %v", err)
	}
	on := func(e logic.Edge) func() {
		bound := b.For(e)
		return func() {
			r.tracker.RecordEdge(e, startTime)
			if bound != nil {
				bound()
			}
			r.publisher.PublishButton(mqtt.ButtonEvent{Timestamp: startTime, Edge: e, Gesture: cfg.Gesture})
		}
	}
	err = r.src.Watch(gpio.Handlers{
		Pressed:  on(logic.EdgePressed),
		Released: on(logic.EdgeReleased),
		Held:     on(logic.EdgeHeld),
	})
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	return r
}

func TestIntegrationHoldRelease(t *testing.T) {
	r := newRig(t, "[GPIO]\nButton = holdrelease,3\n")

	r.src.HoldFor(2 * time.Second)
	if r.machine.WasHeld() {
		t.Fatal("2s is below the 3s threshold")
	}
	r.src.Advance(1500 * time.Millisecond)
	if !r.machine.WasHeld() {
		t.Fatal("expected hold after 3.5s")
	}
	if r.machine.ShutdownRequested() {
		t.Fatal("holdrelease must wait for the release")
	}

	r.src.Release()
	if !r.machine.ShutdownRequested() {
		t.Fatal("expected shutdown request after release")
	}
}

func TestIntegrationDefaultHoldTime(t *testing.T) {
	r := newRig(t, "[GPIO]\nButton = hold\n")
	if r.cfg.HoldTime != config.DefaultHoldTime {
		t.Fatalf("hold time: got %v, want %v", r.cfg.HoldTime, config.DefaultHoldTime)
	}

	r.src.HoldFor(config.DefaultHoldTime - time.Millisecond)
	if r.machine.ShutdownRequested() {
		t.Fatal("hold below threshold must not request shutdown")
	}
	r.src.Advance(time.Millisecond)
	if !r.machine.ShutdownRequested() {
		t.Fatal("expected shutdown request at the threshold")
	}
}

func TestIntegrationRepeatedShortPresses(t *testing.T) {
	r := newRig(t, "[gpio]\nbutton = HoldRelease,1\n")

	for i := 0; i < 10; i++ {
		r.src.Press()
		r.src.Advance(900 * time.Millisecond)
		r.src.Release()
		r.src.Advance(900 * time.Millisecond)
	}
	if r.machine.ShutdownRequested() {
		t.Fatal("short presses must never complete holdrelease")
	}

	snap := r.tracker.Snapshot()
	if snap.Counts.Pressed != 10 || snap.Counts.Released != 10 || snap.Counts.Held != 0 {
		t.Errorf("counts: got %+v", snap.Counts)
	}
}

func TestIntegrationPublishFailureDoesNotBlockGesture(t *testing.T) {
	r := newRig(t, "[GPIO]\nButton = press\n")
	r.publisher.PublishError = errors.New("connection lost")

	r.src.Press()
	if !r.machine.ShutdownRequested() {
		t.Fatal("publish failure must not affect gesture detection")
	}
}

func TestIntegrationButtonPayloads(t *testing.T) {
	r := newRig(t, "[GPIO]\nButton = release\n")

	r.src.Press()
	r.src.Release()

	r.publisher.Reset()
	r.src.Press()

	if len(r.publisher.Payloads) != 1 {
		t.Fatalf("expected 1 payload after reset, got %d", len(r.publisher.Payloads))
	}
	var parsed map[string]map[string]string
	if err := json.Unmarshal(r.publisher.Payloads[0], &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed["button"]["edge"] != "PRESSED" {
		t.Errorf("edge: got %q, want PRESSED", parsed["button"]["edge"])
	}
	if parsed["button"]["gesture"] != "release" {
		t.Errorf("gesture: got %q, want release", parsed["button"]["gesture"])
	}
	if parsed["button"]["timestamp"] != "2026-01-01T12:00:00Z" {
		t.Errorf("timestamp: got %q", parsed["button"]["timestamp"])
	}
}

func TestIntegrationStatusEventAfterGesture(t *testing.T) {
	r := newRig(t, "[GPIO]\nButton = hold,1\n")

	r.src.HoldFor(time.Second)
	if !r.machine.ShutdownRequested() {
		t.Fatal("expected shutdown request")
	}
	r.tracker.SetShutdownRequested()

	payload := status.FormatStatusEvent(r.tracker.Snapshot(), "SHUTDOWN", "GESTURE")
	if err := r.publisher.PublishSystem(mqtt.SystemEvent{Event: "SHUTDOWN", Reason: "GESTURE", RawPayload: payload}); err != nil {
		t.Fatalf("PublishSystem: %v", err)
	}

	var parsed struct {
		Status struct {
			Event             string `json:"event"`
			Reason            string `json:"reason"`
			Button            string `json:"button"`
			LastEdge          string `json:"last_edge"`
			ShutdownRequested bool   `json:"shutdown_requested"`
			Config            struct {
				Gesture     string  `json:"gesture"`
				HoldSeconds float64 `json:"hold_seconds"`
			} `json:"config"`
		} `json:"status"`
	}
	if err := json.Unmarshal(r.publisher.SystemPayloads[0], &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	s := parsed.Status
	if s.Event != "SHUTDOWN" || s.Reason != "GESTURE" {
		t.Errorf("event/reason: got %q/%q", s.Event, s.Reason)
	}
	if s.Button != "PRESSED" || s.LastEdge != "HELD" {
		t.Errorf("button/last_edge: got %q/%q", s.Button, s.LastEdge)
	}
	if !s.ShutdownRequested {
		t.Error("shutdown_requested should be true")
	}
	if s.Config.Gesture != "hold" || s.Config.HoldSeconds != 1 {
		t.Errorf("config: got %+v", s.Config)
	}
}

func TestIntegrationCloseStopsEdges(t *testing.T) {
	r := newRig(t, "[GPIO]\nButton = hold,1\n")

	r.src.Press()
	if err := r.src.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	r.src.Advance(2 * time.Second)

	if r.machine.ShutdownRequested() {
		t.Fatal("no edges may be delivered after Close")
	}
}

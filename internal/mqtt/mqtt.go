// Package mqtt publishes button and lifecycle events, with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/gpio-shutdown/internal/logic"
)

// TopicPrefix is the root of all topics. Each host publishes below
// TopicPrefix/<node>/.
const TopicPrefix = "gpio-shutdown"

// ButtonTopic returns the topic for button edge events of a node.
func ButtonTopic(node string) string {
	return TopicPrefix + "/" + node + "/button"
}

// SystemTopic returns the topic for lifecycle events of a node.
func SystemTopic(node string) string {
	return TopicPrefix + "/" + node + "/system"
}

// Publisher publishes events to MQTT.
type Publisher interface {
	// PublishButton sends a button edge. It must not block the GPIO
	// callback; while disconnected the event is buffered.
	PublishButton(event ButtonEvent) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// ButtonEvent is a single debounced edge of the shutdown button.
type ButtonEvent struct {
	Timestamp time.Time
	Edge      logic.Edge
	Gesture   logic.Gesture
}

// SystemEvent represents a system lifecycle event (startup, shutdown).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN"
	Reason     string // e.g., "GESTURE", "SIGTERM" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload is the MQTT message payload for button events.
type Payload struct {
	Button ButtonPayload `json:"button"`
}

// ButtonPayload contains the button event details.
type ButtonPayload struct {
	Timestamp string `json:"timestamp"`
	Edge      string `json:"edge"`
	Gesture   string `json:"gesture"`
}

// FormatPayload creates the JSON payload for a button event.
func FormatPayload(event ButtonEvent) ([]byte, error) {
	payload := Payload{
		Button: ButtonPayload{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Edge:      string(event.Edge),
			Gesture:   string(event.Gesture),
		},
	}
	return json.Marshal(payload)
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp,omitempty"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	inner := SystemPayloadInner{
		Event:  event.Event,
		Reason: event.Reason,
	}
	if !event.Timestamp.IsZero() {
		inner.Timestamp = event.Timestamp.UTC().Format(time.RFC3339)
	}
	return json.Marshal(SystemPayload{System: inner})
}

// NopPublisher drops every event. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) PublishButton(ButtonEvent) error { return nil }
func (NopPublisher) PublishSystem(SystemEvent) error { return nil }
func (NopPublisher) Close() error                    { return nil }
func (NopPublisher) IsConnected() bool               { return false }

package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event             string     `json:"event,omitempty"`
	Reason            string     `json:"reason,omitempty"`
	Button            string     `json:"button"`
	LastEdge          string     `json:"last_edge,omitempty"`
	LastEdgeAt        string     `json:"last_edge_at,omitempty"`
	ShutdownRequested bool       `json:"shutdown_requested"`
	UptimeSeconds     int64      `json:"uptime_seconds"`
	StartTime         string     `json:"start_time"`
	Timestamp         string     `json:"timestamp"`
	MQTT              MQTTStatus `json:"mqtt"`
	Counts            CountsJSON `json:"edge_counts"`
	Config            ConfigJSON `json:"config"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of edge counts.
type CountsJSON struct {
	Pressed  int `json:"pressed"`
	Released int `json:"released"`
	Held     int `json:"held"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	ConfigPath      string  `json:"config_path"`
	Chip            string  `json:"chip"`
	Line            int     `json:"line"`
	Gesture         string  `json:"gesture"`
	HoldSeconds     float64 `json:"hold_seconds"`
	ShutdownCommand string  `json:"shutdown_command"`
	DryRun          bool    `json:"dry_run"`
	PollMs          int64   `json:"poll_ms"`
	Broker          string  `json:"broker"`
	HTTPAddr        string  `json:"http_addr"`
	HeartbeatMs     int64   `json:"heartbeat_ms"`
}

// ButtonState renders the current button level.
func (s Snapshot) ButtonState() string {
	if s.Pressed {
		return "PRESSED"
	}
	return "RELEASED"
}

func buildInner(snap Snapshot) StatusInner {
	inner := StatusInner{
		Button:            snap.ButtonState(),
		LastEdge:          string(snap.LastEdge),
		ShutdownRequested: snap.ShutdownRequested,
		UptimeSeconds:     int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:         snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:         snap.Now.UTC().Format(time.RFC3339),
		MQTT:              MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			Pressed:  snap.Counts.Pressed,
			Released: snap.Counts.Released,
			Held:     snap.Counts.Held,
		},
		Config: ConfigJSON{
			ConfigPath:      snap.Config.ConfigPath,
			Chip:            snap.Config.Chip,
			Line:            snap.Config.Line,
			Gesture:         string(snap.Config.Gesture),
			HoldSeconds:     snap.Config.HoldTime.Seconds(),
			ShutdownCommand: snap.Config.ShutdownCommand,
			DryRun:          snap.Config.DryRun,
			PollMs:          snap.Config.PollMs,
			Broker:          snap.Config.Broker,
			HTTPAddr:        snap.Config.HTTPAddr,
			HeartbeatMs:     snap.Config.HeartbeatMs,
		},
	}
	if !snap.LastEdgeAt.IsZero() {
		inner.LastEdgeAt = snap.LastEdgeAt.UTC().Format(time.RFC3339)
	}
	return inner
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}

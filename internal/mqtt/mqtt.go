// Package mqtt provides MQTT publishing and command intake with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// TopicPrefix is the root of every kiosk topic.
const TopicPrefix = "kiosk"

// StateTopic carries the retained idle/brightness state of one kiosk.
func StateTopic(kioskID string) string {
	return TopicPrefix + "/" + kioskID + "/state"
}

// SystemTopic carries lifecycle events of one kiosk.
func SystemTopic(kioskID string) string {
	return TopicPrefix + "/" + kioskID + "/system"
}

// CommandTopic is subscribed for remote commands to one kiosk.
func CommandTopic(kioskID string) string {
	return TopicPrefix + "/" + kioskID + "/command"
}

// Remote commands accepted on the command topic.
const (
	CommandWake   = "wake"
	CommandPause  = "pause"
	CommandResume = "resume"
)

// ParseCommand validates a command payload.
func ParseCommand(payload []byte) (string, error) {
	cmd := strings.ToLower(strings.TrimSpace(string(payload)))
	switch cmd {
	case CommandWake, CommandPause, CommandResume:
		return cmd, nil
	}
	return "", fmt.Errorf("unknown command %q", cmd)
}

// Publisher publishes kiosk events to MQTT.
type Publisher interface {
	// PublishState sends the display state. It is retained by the broker.
	// Returns error if publishing fails (should not crash the process).
	PublishState(event StateEvent) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// StateEvent is a change of idle mode or brightness.
type StateEvent struct {
	Timestamp  time.Time
	Idle       bool
	Brightness int
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat, unlock).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT", "UNLOCKED"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload represents the state message payload structure.
type Payload struct {
	Kiosk KioskPayload `json:"kiosk"`
}

// KioskPayload contains the display state.
type KioskPayload struct {
	Timestamp  string `json:"timestamp"`
	State      string `json:"state"`
	Idle       bool   `json:"idle"`
	Brightness int    `json:"brightness"`
}

// FormatPayload creates the JSON payload for a state event.
func FormatPayload(event StateEvent) ([]byte, error) {
	state := "ACTIVE"
	if event.Idle {
		state = "IDLE"
	}
	payload := Payload{
		Kiosk: KioskPayload{
			Timestamp:  event.Timestamp.UTC().Format(time.RFC3339),
			State:      state,
			Idle:       event.Idle,
			Brightness: event.Brightness,
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

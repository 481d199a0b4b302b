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
	Event           string       `json:"event,omitempty"`
	Reason          string       `json:"reason,omitempty"`
	KioskID         string       `json:"kiosk_id"`
	SessionID       string       `json:"session_id,omitempty"`
	State           string       `json:"state"`
	Idle            bool         `json:"idle"`
	Brightness      int          `json:"brightness"`
	Running         bool         `json:"running"`
	Ready           bool         `json:"ready"`
	Idleness        IdleJSON     `json:"idle_config"`
	Settings        SettingsJSON `json:"settings"`
	Unlock          UnlockJSON   `json:"unlock"`
	Interactions    int          `json:"interactions"`
	LastInteraction string       `json:"last_interaction,omitempty"`
	UptimeSeconds   int64        `json:"uptime_seconds"`
	StartTime       string       `json:"start_time"`
	Timestamp       string       `json:"timestamp"`
	MQTT            MQTTStatus   `json:"mqtt"`
	Network         *NetworkJSON `json:"network,omitempty"`
	Config          ConfigJSON   `json:"config"`
}

// IdleJSON is the config snapshot the controller is running with.
type IdleJSON struct {
	TimeoutMs        int64 `json:"timeout_ms"`
	IdleBrightness   int   `json:"idle_brightness"`
	ActiveBrightness int   `json:"active_brightness"`
}

// SettingsJSON is the persisted settings.
type SettingsJSON struct {
	StartURL        string `json:"start_url"`
	Rotation        int    `json:"rotation"`
	CheckIntervalMs int64  `json:"check_interval_ms"`
}

// UnlockJSON reports the tap unlock gesture.
type UnlockJSON struct {
	Taps          int    `json:"taps"`
	Required      int    `json:"required"`
	Unlocks       int    `json:"unlocks"`
	Unlocked      bool   `json:"unlocked"`
	UnlockedUntil string `json:"unlocked_until,omitempty"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	HeartbeatMs    int64  `json:"heartbeat_ms"`
	TapGapMs       int64  `json:"tap_gap_ms"`
	UnlockWindowMs int64  `json:"unlock_window_ms"`
	HTTPAddr       string `json:"http_addr"`
	SettingsPath   string `json:"settings_path"`
	Backlight      string `json:"backlight,omitempty"`
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func buildInner(snap Snapshot) StatusInner {
	state := "ACTIVE"
	if snap.Idle {
		state = "IDLE"
	}

	inner := StatusInner{
		KioskID:    snap.Config.KioskID,
		SessionID:  snap.Config.SessionID,
		State:      state,
		Idle:       snap.Idle,
		Brightness: snap.Brightness,
		Running:    snap.Running,
		Ready:      snap.Loaded,
		Idleness: IdleJSON{
			TimeoutMs:        snap.Kiosk.IdleTimeout.Milliseconds(),
			IdleBrightness:   snap.Kiosk.IdleBrightness,
			ActiveBrightness: snap.Kiosk.ActiveBrightness,
		},
		Settings: SettingsJSON{
			StartURL:        snap.Settings.StartURL,
			Rotation:        int(snap.Settings.Rotation),
			CheckIntervalMs: snap.Settings.CheckInterval.Milliseconds(),
		},
		Unlock: UnlockJSON{
			Taps:     snap.TapCount,
			Required: snap.Config.RequiredTaps,
			Unlocks:  snap.Unlocks,
			Unlocked: snap.Unlocked(),
		},
		Interactions:    snap.Interactions,
		LastInteraction: formatTime(snap.LastInteraction),
		UptimeSeconds:   int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:       formatTime(snap.StartTime),
		Timestamp:       formatTime(snap.Now),
		MQTT:            MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Config: ConfigJSON{
			HeartbeatMs:    snap.Config.HeartbeatMs,
			TapGapMs:       snap.Config.TapGapMs,
			UnlockWindowMs: snap.Config.UnlockWindowMs,
			HTTPAddr:       snap.Config.HTTPAddr,
			SettingsPath:   snap.Config.SettingsPath,
			Backlight:      snap.Config.Backlight,
		},
	}
	if inner.Unlock.Unlocked {
		inner.Unlock.UnlockedUntil = formatTime(snap.UnlockedUntil)
	}

	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
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

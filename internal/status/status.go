// Package status provides a thread-safe status tracker for the kiosk daemon.
// It is written from the event loop and read by HTTP handlers and MQTT heartbeats.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/kioskd/internal/logic"
	"github.com/sweeney/kioskd/internal/settings"
)

// NetworkInfo contains network state reported by pi-helper.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	KioskID        string
	SessionID      string
	Broker         string // empty when MQTT is disabled
	HTTPAddr       string
	SettingsPath   string
	Backlight      string // empty when no device is configured
	HeartbeatMs    int64
	RequiredTaps   int
	TapGapMs       int64
	UnlockWindowMs int64
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Idle       bool
	Brightness int
	Running    bool
	Loaded     bool
	Kiosk      logic.KioskConfig
	Settings   settings.Values

	TapCount        int
	Unlocks         int
	LastUnlock      time.Time
	UnlockedUntil   time.Time
	Interactions    int
	LastInteraction time.Time

	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Unlocked reports whether the settings surface is currently open.
func (s Snapshot) Unlocked() bool {
	return s.Now.Before(s.UnlockedUntil)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
	now  func() time.Time
}

// NewTracker creates a Tracker with the given start time and config.
// now defaults to time.Now.
func NewTracker(startTime time.Time, cfg Config, now func() time.Time) *Tracker {
	if now == nil {
		now = time.Now
	}
	return &Tracker{
		snap: Snapshot{
			StartTime:  startTime,
			Config:     cfg,
			Brightness: logic.MaxBrightness,
			Settings:   settings.Defaults(),
		},
		now: now,
	}
}

// UpdateDisplay sets the idle flag and brightness.
func (t *Tracker) UpdateDisplay(idle bool, brightness int) {
	t.mu.Lock()
	t.snap.Idle = idle
	t.snap.Brightness = brightness
	t.mu.Unlock()
}

// UpdateController sets the controller lifecycle and its config snapshot.
func (t *Tracker) UpdateController(running, loaded bool, cfg logic.KioskConfig) {
	t.mu.Lock()
	t.snap.Running = running
	t.snap.Loaded = loaded
	t.snap.Kiosk = cfg
	t.mu.Unlock()
}

// SetSettings records the persisted settings.
func (t *Tracker) SetSettings(v settings.Values) {
	t.mu.Lock()
	t.snap.Settings = v
	t.mu.Unlock()
}

// RecordInteraction counts one routed input event.
func (t *Tracker) RecordInteraction(at time.Time, tapCount int) {
	t.mu.Lock()
	t.snap.Interactions++
	t.snap.LastInteraction = at
	t.snap.TapCount = tapCount
	t.mu.Unlock()
}

// RecordUnlock opens the settings surface until the given time.
func (t *Tracker) RecordUnlock(at, until time.Time) {
	t.mu.Lock()
	t.snap.Unlocks++
	t.snap.LastUnlock = at
	t.snap.UnlockedUntil = until
	t.snap.TapCount = 0
	t.mu.Unlock()
}

// Lock closes the settings surface.
func (t *Tracker) Lock() {
	t.mu.Lock()
	t.snap.UnlockedUntil = time.Time{}
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Unlocked reports whether the settings surface is open right now.
func (t *Tracker) Unlocked() bool {
	return t.Snapshot().Unlocked()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = t.now()
	return s
}

// Package logic contains pure business logic for the kiosk display.
// This package has NO external dependencies (no GPIO, MQTT, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic

import "time"

// Brightness bounds, as a percentage of the panel maximum.
const (
	MinBrightness = 0
	MaxBrightness = 100
)

// Tap unlock defaults.
const (
	DefaultRequiredTaps = 30
	DefaultTapGap       = 2000 * time.Millisecond
)

// KioskConfig is the snapshot the idle controller works from.
// It is loaded once per controller start and never mutated afterwards.
type KioskConfig struct {
	// Zero disables idle mode.
	IdleTimeout      time.Duration
	IdleBrightness   int
	ActiveBrightness int
}

// DefaultKioskConfig is used between Start and the completion of the settings load.
func DefaultKioskConfig() KioskConfig {
	return KioskConfig{
		IdleTimeout:      60 * time.Second,
		IdleBrightness:   0,
		ActiveBrightness: MaxBrightness,
	}
}

// FallbackKioskConfig is used when settings cannot be loaded: always active,
// full brightness, no idle transition.
func FallbackKioskConfig() KioskConfig {
	return KioskConfig{
		IdleTimeout:      0,
		IdleBrightness:   0,
		ActiveBrightness: MaxBrightness,
	}
}

// Normalized returns a copy with brightness clamped and a non-negative timeout.
func (c KioskConfig) Normalized() KioskConfig {
	if c.IdleTimeout < 0 {
		c.IdleTimeout = 0
	}
	c.IdleBrightness = ClampBrightness(c.IdleBrightness)
	c.ActiveBrightness = ClampBrightness(c.ActiveBrightness)
	return c
}

// IdleEnabled reports whether the config arms an idle timer at all.
func (c KioskConfig) IdleEnabled() bool {
	return c.IdleTimeout > 0
}

// BlanksScreen reports whether reaching the idle timeout enters idle mode
// (as opposed to only dimming).
func (c KioskConfig) BlanksScreen() bool {
	return c.IdleBrightness == 0
}

// ClampBrightness clamps a percentage into [0,100].
func ClampBrightness(level int) int {
	if level < MinBrightness {
		return MinBrightness
	}
	if level > MaxBrightness {
		return MaxBrightness
	}
	return level
}

// BrightnessFraction converts a percentage into the [0.0, 1.0] value the
// display actuator expects.
func BrightnessFraction(level int) float64 {
	return float64(ClampBrightness(level)) / 100
}

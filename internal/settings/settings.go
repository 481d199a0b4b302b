// Package settings persists the kiosk settings and hands out snapshots of
// them. Values read from disk are always normalized: brightness clamped,
// legacy or malformed fields mapped to their defaults.
package settings

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/sweeney/kioskd/internal/logic"
)

// Defaults for absent settings.
const (
	DefaultStartURL           = "about:blank"
	DefaultCheckInterval      = 10 * time.Second
	DefaultIdleTimeoutSeconds = 0
	DefaultIdleBrightness     = 0
	DefaultActiveBrightness   = 100
)

// Largest values that still fit in a time.Duration.
const (
	MaxIdleTimeoutSeconds = int64(math.MaxInt64 / int64(time.Second))
	MaxCheckIntervalMs    = int64(math.MaxInt64 / int64(time.Millisecond))
)

var (
	// ErrInvalidRotation is returned when parsing a rotation that is not one of 0/90/180/270.
	ErrInvalidRotation = errors.New("settings: invalid rotation")
	// ErrEmptyURL is returned when setting an empty start URL.
	ErrEmptyURL = errors.New("settings: empty start url")
	// ErrInvalidInterval is returned for a non-positive check interval.
	ErrInvalidInterval = errors.New("settings: check interval must be positive")
)

// Values is a point-in-time view of every setting.
type Values struct {
	StartURL           string
	CheckInterval      time.Duration
	Rotation           Rotation
	IdleTimeoutSeconds int64
	IdleBrightness     int
	ActiveBrightness   int
}

// Defaults returns the values used when nothing has been persisted.
func Defaults() Values {
	return Values{
		StartURL:           DefaultStartURL,
		CheckInterval:      DefaultCheckInterval,
		Rotation:           Rotation0,
		IdleTimeoutSeconds: DefaultIdleTimeoutSeconds,
		IdleBrightness:     DefaultIdleBrightness,
		ActiveBrightness:   DefaultActiveBrightness,
	}
}

// KioskConfig converts the idle settings into the controller's snapshot.
func (v Values) KioskConfig() logic.KioskConfig {
	v.IdleTimeoutSeconds = clampTimeout(v.IdleTimeoutSeconds)
	return logic.KioskConfig{
		IdleTimeout:      time.Duration(v.IdleTimeoutSeconds) * time.Second,
		IdleBrightness:   v.IdleBrightness,
		ActiveBrightness: v.ActiveBrightness,
	}.Normalized()
}

func (v Values) normalized() Values {
	v.IdleTimeoutSeconds = clampTimeout(v.IdleTimeoutSeconds)
	v.IdleBrightness = logic.ClampBrightness(v.IdleBrightness)
	v.ActiveBrightness = logic.ClampBrightness(v.ActiveBrightness)
	v.Rotation = RotationFromDegrees(int(v.Rotation))
	if v.CheckInterval <= 0 {
		v.CheckInterval = DefaultCheckInterval
	}
	if v.StartURL == "" {
		v.StartURL = DefaultStartURL
	}
	return v
}

func clampTimeout(seconds int64) int64 {
	if seconds < 0 {
		return 0
	}
	if seconds > MaxIdleTimeoutSeconds {
		return MaxIdleTimeoutSeconds
	}
	return seconds
}

// Store is the settings store contract the kiosk session depends on.
type Store interface {
	// Load returns the current values.
	Load(ctx context.Context) (Values, error)

	// Subscribe delivers the latest values after every write. The returned
	// func unsubscribes.
	Subscribe() (<-chan Values, func())

	SetIdleTimeout(ctx context.Context, seconds int64) error
	SetIdleBrightness(ctx context.Context, level int) error
	SetActiveBrightness(ctx context.Context, level int) error
	SetRotation(ctx context.Context, r Rotation) error
	SetStartURL(ctx context.Context, url string) error
	SetCheckInterval(ctx context.Context, d time.Duration) error
}

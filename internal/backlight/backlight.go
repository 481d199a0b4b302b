// Package backlight writes display brightness.
// The real implementation uses the Linux sysfs backlight class.
// The fake implementation allows testing without a panel.
package backlight

import (
	"errors"
	"log"
)

// DefaultDir is the usual backlight device on a Raspberry Pi touch display.
const DefaultDir = "/sys/class/backlight/rpi_backlight"

// ErrOutOfRange is returned for a brightness fraction outside [0,1].
var ErrOutOfRange = errors.New("backlight: brightness out of range")

// Actuator sets display brightness as a fraction of maximum.
type Actuator interface {
	SetBrightness(fraction float64) error
}

func checkFraction(fraction float64) error {
	if fraction < 0 || fraction > 1 {
		return ErrOutOfRange
	}
	return nil
}

// Discard accepts every write and only logs it. Used when no panel is
// configured.
type Discard struct{}

// SetBrightness logs the requested brightness.
func (Discard) SetBrightness(fraction float64) error {
	if err := checkFraction(fraction); err != nil {
		return err
	}
	log.Printf("backlight: brightness %.0f%% (no device)", fraction*100)
	return nil
}

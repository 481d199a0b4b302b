// Package gpio provides the hardware center-key button with hardware abstraction.
// The real implementation uses Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

import "time"

// Button delivers presses of a momentary switch to a callback.
type Button interface {
	// Close releases GPIO resources. No presses are delivered afterwards.
	Close() error
}

// Defaults for the center key (BCM numbering).
const (
	DefaultChip     = "gpiochip0"
	DefaultPin      = 17
	DefaultDebounce = 20 * time.Millisecond
)

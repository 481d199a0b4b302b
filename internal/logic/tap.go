package logic

import "time"

// TapDetector counts rapid taps and fires an unlock callback when a burst
// reaches the required length.
type TapDetector struct {
	gap      time.Duration
	required int
	onUnlock func()

	count   int
	lastTap time.Time
	hasTap  bool
}

// NewTapDetector creates a detector that calls onUnlock after requiredTaps
// taps, each no more than gap after the previous one. Non-positive values
// fall back to DefaultRequiredTaps and DefaultTapGap.
func NewTapDetector(requiredTaps int, gap time.Duration, onUnlock func()) *TapDetector {
	if requiredTaps <= 0 {
		requiredTaps = DefaultRequiredTaps
	}
	if gap <= 0 {
		gap = DefaultTapGap
	}
	return &TapDetector{
		gap:      gap,
		required: requiredTaps,
		onUnlock: onUnlock,
	}
}

// RegisterTap records a tap at now. It returns true if this tap completed
// the sequence and the unlock callback was invoked.
func (d *TapDetector) RegisterTap(now time.Time) bool {
	// No previous tap counts as an infinite gap.
	if !d.hasTap || now.Sub(d.lastTap) > d.gap {
		d.count = 0
	}
	d.count++
	d.lastTap = now
	d.hasTap = true

	if d.count < d.required {
		return false
	}

	d.count = 0
	if d.onUnlock != nil {
		d.onUnlock()
	}
	return true
}

// Count returns the number of taps in the current sequence.
func (d *TapDetector) Count() int {
	return d.count
}

// RequiredTaps returns the sequence length that triggers an unlock.
func (d *TapDetector) RequiredTaps() int {
	return d.required
}

// Gap returns the maximum allowed time between consecutive taps.
func (d *TapDetector) Gap() time.Duration {
	return d.gap
}

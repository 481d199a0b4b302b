package backlight

import "sync"

// FakeActuator records brightness writes for test assertions.
type FakeActuator struct {
	mu        sync.Mutex
	fractions []float64

	// Err, if set, is returned by SetBrightness after the write is recorded.
	Err error
}

// NewFakeActuator creates a FakeActuator.
func NewFakeActuator() *FakeActuator {
	return &FakeActuator{}
}

// SetBrightness records the fraction.
func (f *FakeActuator) SetBrightness(fraction float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fractions = append(f.fractions, fraction)
	return f.Err
}

// Fractions returns every recorded write.
func (f *FakeActuator) Fractions() []float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]float64(nil), f.fractions...)
}

// Last returns the most recent write.
func (f *FakeActuator) Last() (float64, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.fractions) == 0 {
		return 0, false
	}
	return f.fractions[len(f.fractions)-1], true
}

package gpio

import "sync"

// FakeButton is a test double that presses on demand.
type FakeButton struct {
	mu      sync.Mutex
	onPress func()

	// Closed tracks if Close was called.
	Closed bool

	// Presses counts delivered presses.
	Presses int
}

// NewFakeButton creates a FakeButton that delivers presses to onPress.
func NewFakeButton(onPress func()) *FakeButton {
	return &FakeButton{onPress: onPress}
}

// Press simulates a button press. Presses after Close are dropped.
func (f *FakeButton) Press() {
	f.mu.Lock()
	if f.Closed {
		f.mu.Unlock()
		return
	}
	f.Presses++
	fn := f.onPress
	f.mu.Unlock()

	if fn != nil {
		fn()
	}
}

// Close marks the button as closed.
func (f *FakeButton) Close() error {
	f.mu.Lock()
	f.Closed = true
	f.mu.Unlock()
	return nil
}

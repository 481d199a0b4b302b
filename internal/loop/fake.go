package loop

import (
	"sort"
	"sync"
	"time"
)

// Manual is a test double with a virtual clock. Timers fire only when
// Advance moves the clock past their deadline, and they run on the
// goroutine calling Advance.
type Manual struct {
	mu     sync.Mutex
	now    time.Time
	seq    int
	timers []*manualTimer
	posted chan func()
}

type manualTimer struct {
	m        *Manual
	seq      int
	deadline time.Time
	fn       func()
	stopped  bool
	fired    bool
}

// NewManual creates a Manual whose clock starts at start.
func NewManual(start time.Time) *Manual {
	return &Manual{
		now:    start,
		posted: make(chan func(), DefaultQueueSize),
	}
}

// Now returns the virtual time.
func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Post queues fn. It runs when the test calls RunPosted.
func (m *Manual) Post(fn func()) {
	m.posted <- fn
}

// RunPosted waits up to timeout for one posted callback and runs it on the
// calling goroutine. It returns false if nothing was posted in time.
func (m *Manual) RunPosted(timeout time.Duration) bool {
	select {
	case fn := <-m.posted:
		fn()
		return true
	case <-time.After(timeout):
		return false
	}
}

// Schedule registers a virtual timer.
func (m *Manual) Schedule(delay time.Duration, fn func()) Timer {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	t := &manualTimer{m: m, seq: m.seq, deadline: m.now.Add(delay), fn: fn}
	m.timers = append(m.timers, t)
	return t
}

// Stop cancels the virtual timer.
func (t *manualTimer) Stop() {
	t.m.mu.Lock()
	t.stopped = true
	t.m.mu.Unlock()
}

// Advance moves the clock forward by d, firing due timers in deadline order.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now.Add(d)
	m.mu.Unlock()

	for {
		m.mu.Lock()
		next := m.nextDue(target)
		if next == nil {
			m.now = target
			m.mu.Unlock()
			return
		}
		m.now = next.deadline
		next.fired = true
		m.mu.Unlock()

		next.fn()
	}
}

// Pending returns the number of armed timers that have neither fired nor
// been stopped.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

// NextDeadline returns the earliest pending deadline.
func (m *Manual) NextDeadline() (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := m.nextDue(time.Time{})
	if t == nil {
		return time.Time{}, false
	}
	return t.deadline, true
}

// nextDue returns the earliest live timer due at or before limit. A zero
// limit means no limit. Caller holds m.mu.
func (m *Manual) nextDue(limit time.Time) *manualTimer {
	live := m.timers[:0]
	for _, t := range m.timers {
		if !t.stopped && !t.fired {
			live = append(live, t)
		}
	}
	m.timers = live
	sort.SliceStable(m.timers, func(i, j int) bool {
		if m.timers[i].deadline.Equal(m.timers[j].deadline) {
			return m.timers[i].seq < m.timers[j].seq
		}
		return m.timers[i].deadline.Before(m.timers[j].deadline)
	})
	if len(m.timers) == 0 {
		return nil
	}
	first := m.timers[0]
	if !limit.IsZero() && first.deadline.After(limit) {
		return nil
	}
	return first
}

// Package loop provides the single-threaded event loop that owns all kiosk
// controller state, and a cancellable single-shot scheduler that delivers
// its callbacks back onto that loop.
package loop

import (
	"context"
	"sync"
	"time"
)

// DefaultQueueSize is the posted-callback buffer used by New when size <= 0.
const DefaultQueueSize = 64

// Timer is a handle to a scheduled single-shot callback.
type Timer interface {
	// Stop prevents the callback from being queued if it has not been already.
	// It is safe to call more than once.
	Stop()
}

// Loop runs posted callbacks one at a time on the goroutine that calls Run.
type Loop struct {
	queue chan func()
}

// New creates a loop with the given queue size.
func New(size int) *Loop {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Loop{queue: make(chan func(), size)}
}

// Post queues fn to run on the loop. It may be called from any goroutine.
// Post blocks while the queue is full, so it must not be called from the
// loop goroutine itself.
func (l *Loop) Post(fn func()) {
	l.queue <- fn
}

// Run executes posted callbacks until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn := <-l.queue:
			fn()
		}
	}
}

// Schedule arms a single-shot timer. When it expires, fn is posted onto the
// loop. A callback that was already queued when Stop is called still runs;
// callers that need strict cancellation must guard fn themselves.
func (l *Loop) Schedule(delay time.Duration, fn func()) Timer {
	return &timer{t: time.AfterFunc(delay, func() { l.Post(fn) })}
}

type timer struct {
	once sync.Once
	t    *time.Timer
}

func (t *timer) Stop() {
	t.once.Do(func() { t.t.Stop() })
}

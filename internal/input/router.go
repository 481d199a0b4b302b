// Package input routes raw input events to the idle controller and the
// tap unlock detector. Dispatch must be called on the loop goroutine.
package input

import (
	"fmt"
	"log"
	"strings"
	"time"
)

// Source identifies where an input event came from.
type Source int

const (
	// Touch is any touch reaching the page surface.
	Touch Source = iota
	// CenterKey is the remote-control center (OK) key.
	CenterKey
	// OverlayTap is a tap on the always-present input overlay.
	OverlayTap
	// TouchOverlay is the direct-touch unlock overlay. It is inert: taps on
	// the page surface do not reach the unlock path, so it only counts as a
	// touch.
	TouchOverlay
)

var sourceNames = map[Source]string{
	Touch:        "touch",
	CenterKey:    "center",
	OverlayTap:   "overlay",
	TouchOverlay: "touch-overlay",
}

func (s Source) String() string {
	if name, ok := sourceNames[s]; ok {
		return name
	}
	return fmt.Sprintf("source(%d)", int(s))
}

// ParseSource maps a name from String back to a Source.
func ParseSource(name string) (Source, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for s, n := range sourceNames {
		if n == name {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown input source %q", name)
}

// Interactor is the idle controller as seen by the router.
type Interactor interface {
	OnUserInteraction()
	IsIdle() bool
}

// TapRegistrar is the unlock detector as seen by the router.
type TapRegistrar interface {
	RegisterTap(now time.Time) bool
}

// Router applies the per-source input policy.
type Router struct {
	idle Interactor
	taps TapRegistrar
	now  func() time.Time

	warnedTouchOverlay bool
}

// NewRouter creates a router. now defaults to time.Now.
func NewRouter(idle Interactor, taps TapRegistrar, now func() time.Time) *Router {
	if now == nil {
		now = time.Now
	}
	return &Router{idle: idle, taps: taps, now: now}
}

// Dispatch delivers one event and reports whether it was consumed, i.e.
// must not propagate to the page underneath.
func (r *Router) Dispatch(src Source) bool {
	if r.idle.IsIdle() {
		// The full-screen capture surface is on top: wake up, swallow the event.
		r.idle.OnUserInteraction()
		return true
	}

	switch src {
	case CenterKey, OverlayTap:
		r.idle.OnUserInteraction()
		r.taps.RegisterTap(r.now())
		return true
	case TouchOverlay:
		if !r.warnedTouchOverlay {
			log.Printf("input: direct-touch unlock overlay is disabled, use the remote center key or overlay")
			r.warnedTouchOverlay = true
		}
		r.idle.OnUserInteraction()
		return false
	default:
		r.idle.OnUserInteraction()
		return false
	}
}

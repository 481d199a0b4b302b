// Package idle implements the idle/brightness state machine for the kiosk
// display. All methods except Subscribe must be called on the loop goroutine.
package idle

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/sweeney/kioskd/internal/logic"
	"github.com/sweeney/kioskd/internal/loop"
)

// State is the display mode.
type State int

const (
	Active State = iota
	Idle
)

func (s State) String() string {
	if s == Idle {
		return "IDLE"
	}
	return "ACTIVE"
}

// Status is what the controller publishes to subscribers after every
// state or brightness change.
type Status struct {
	Idle       bool
	Brightness int
}

// Loop runs callbacks on the controller's goroutine.
type Loop interface {
	Post(fn func())
	Schedule(delay time.Duration, fn func()) loop.Timer
}

// Loader reads the kiosk config snapshot. It may block; the controller
// always calls it off the loop goroutine.
type Loader interface {
	LoadKioskConfig(ctx context.Context) (logic.KioskConfig, error)
}

// Actuator writes display brightness as a fraction of maximum.
type Actuator interface {
	SetBrightness(fraction float64) error
}

// Controller dims the display after a period of inactivity.
type Controller struct {
	loop     Loop
	loader   Loader
	actuator Actuator

	cfg        logic.KioskConfig
	loaded     bool
	running    bool
	generation uint64
	cancelLoad context.CancelFunc

	state      State
	brightness int

	timer    loop.Timer
	timerSeq uint64

	subMu sync.Mutex
	subs  map[chan Status]struct{}
	last  Status

	// observe, when set, sees every published status. Used by tests.
	observe func(Status)
}

// NewController creates a stopped controller in the Active state.
func NewController(l Loop, loader Loader, actuator Actuator) *Controller {
	cfg := logic.DefaultKioskConfig()
	return &Controller{
		loop:       l,
		loader:     loader,
		actuator:   actuator,
		cfg:        cfg,
		brightness: cfg.ActiveBrightness,
		subs:       make(map[chan Status]struct{}),
		last:       Status{Brightness: cfg.ActiveBrightness},
	}
}

// Start begins a controller session. The config is loaded asynchronously;
// until it arrives, interactions use logic.DefaultKioskConfig. Once loaded
// the controller behaves as if the user had just interacted.
// Calling Start on a running controller restarts it.
func (c *Controller) Start(ctx context.Context) {
	log.Printf("idle: starting controller")
	c.halt()

	c.generation++
	gen := c.generation
	c.running = true

	loadCtx, cancel := context.WithCancel(ctx)
	c.cancelLoad = cancel

	go func() {
		cfg, err := c.loader.LoadKioskConfig(loadCtx)
		c.loop.Post(func() { c.configLoaded(gen, cfg, err) })
	}()
}

// Stop cancels any pending idle timer and discards the config snapshot.
// It is idempotent.
func (c *Controller) Stop() {
	c.halt()
	log.Printf("idle: stopped controller")
}

func (c *Controller) halt() {
	c.cancelTimer()
	if c.cancelLoad != nil {
		c.cancelLoad()
		c.cancelLoad = nil
	}
	c.running = false
	c.loaded = false
	c.cfg = logic.DefaultKioskConfig()
}

func (c *Controller) configLoaded(gen uint64, cfg logic.KioskConfig, err error) {
	if gen != c.generation || !c.running {
		// Belongs to an earlier Start, or Stop ran while loading.
		return
	}
	c.cancelLoad = nil
	if err != nil {
		log.Printf("idle: failed to load settings, idle mode disabled: %v", err)
		cfg = logic.FallbackKioskConfig()
	}
	c.cfg = cfg.Normalized()
	c.loaded = true

	log.Printf("idle: loaded settings: timeout=%v idle_brightness=%d%% active_brightness=%d%%",
		c.cfg.IdleTimeout, c.cfg.IdleBrightness, c.cfg.ActiveBrightness)

	c.resetIdleTimer()
}

// OnUserInteraction restores active brightness, leaves idle mode, and
// re-arms the idle timer when idle mode is enabled.
func (c *Controller) OnUserInteraction() {
	c.resetIdleTimer()
}

func (c *Controller) resetIdleTimer() {
	c.cancelTimer()
	c.setBrightness(c.cfg.ActiveBrightness)
	c.setState(Active)
	c.publish()

	if !c.cfg.IdleEnabled() {
		return
	}
	if !c.running {
		// Never arm a timer for a surface that is not visible.
		return
	}

	c.timerSeq++
	seq := c.timerSeq
	c.timer = c.loop.Schedule(c.cfg.IdleTimeout, func() { c.idleTimeout(seq) })
}

func (c *Controller) cancelTimer() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	// Invalidates a fire that was already queued on the loop.
	c.timerSeq++
}

func (c *Controller) idleTimeout(seq uint64) {
	if seq != c.timerSeq || c.timer == nil {
		return
	}
	c.timer = nil

	log.Printf("idle: timeout reached, switching to idle brightness %d%%", c.cfg.IdleBrightness)
	c.setBrightness(c.cfg.IdleBrightness)
	if c.cfg.BlanksScreen() {
		c.setState(Idle)
	}
	c.publish()
}

func (c *Controller) setBrightness(level int) {
	level = logic.ClampBrightness(level)
	c.brightness = level
	if err := c.actuator.SetBrightness(logic.BrightnessFraction(level)); err != nil {
		// The logical state carries on; the panel may now disagree with it.
		log.Printf("idle: failed to set brightness to %d%%: %v", level, err)
	}
}

func (c *Controller) setState(s State) {
	if c.state == s {
		return
	}
	log.Printf("idle: state %s -> %s", c.state, s)
	c.state = s
}

// IsIdle reports whether the display is in idle mode.
func (c *Controller) IsIdle() bool {
	return c.state == Idle
}

// State returns the current mode.
func (c *Controller) State() State {
	return c.state
}

// Brightness returns the last brightness target, in percent.
func (c *Controller) Brightness() int {
	return c.brightness
}

// Config returns the config snapshot currently in effect.
func (c *Controller) Config() logic.KioskConfig {
	return c.cfg
}

// Loaded reports whether the current session's config load has completed.
func (c *Controller) Loaded() bool {
	return c.loaded
}

// Running reports whether the controller has been started and not stopped.
func (c *Controller) Running() bool {
	return c.running
}

// TimerArmed reports whether an idle timer is pending.
func (c *Controller) TimerArmed() bool {
	return c.timer != nil
}

// Subscribe returns a channel that receives the latest Status. The channel
// holds at most one value; a slow reader only ever sees the newest status.
// The returned func unsubscribes. Subscribe may be called from any goroutine.
func (c *Controller) Subscribe() (<-chan Status, func()) {
	ch := make(chan Status, 1)
	c.subMu.Lock()
	c.subs[ch] = struct{}{}
	ch <- c.last
	c.subMu.Unlock()

	return ch, func() {
		c.subMu.Lock()
		delete(c.subs, ch)
		c.subMu.Unlock()
	}
}

// publish runs once per transition, after both brightness and state are
// updated, so subscribers never see a half-applied status.
func (c *Controller) publish() {
	st := Status{Idle: c.state == Idle, Brightness: c.brightness}

	c.subMu.Lock()
	defer c.subMu.Unlock()
	if st == c.last {
		return
	}
	c.last = st
	if c.observe != nil {
		c.observe(st)
	}
	for ch := range c.subs {
		// Replace any unread value so the loop never blocks.
		select {
		case <-ch:
		default:
		}
		ch <- st
	}
}

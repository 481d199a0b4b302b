// Package kiosk wires the idle controller, the tap unlock detector and the
// input router to the settings store, the backlight and MQTT.
//
// Every mutation of controller, detector and router state runs on a single
// event loop. Callers on other goroutines (HTTP handlers, the GPIO edge
// handler, MQTT command callbacks) go through Session methods, which post
// onto the loop and return immediately.
package kiosk

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/sweeney/kioskd/internal/idle"
	"github.com/sweeney/kioskd/internal/input"
	"github.com/sweeney/kioskd/internal/logic"
	"github.com/sweeney/kioskd/internal/loop"
	"github.com/sweeney/kioskd/internal/mqtt"
	"github.com/sweeney/kioskd/internal/settings"
	"github.com/sweeney/kioskd/internal/status"
)

// DefaultUnlockWindow is how long the settings surface stays open after
// an unlock gesture.
const DefaultUnlockWindow = 5 * time.Minute

// System event names published on the system topic.
const (
	EventStartup   = "STARTUP"
	EventShutdown  = "SHUTDOWN"
	EventHeartbeat = "HEARTBEAT"
	EventUnlocked  = "UNLOCKED"
)

const outboxSize = 16

// Store is a settings store that can also produce the idle config snapshot.
type Store interface {
	settings.Store
	idle.Loader
}

// Options configures a Session. Loop, Store, Actuator and Tracker are
// required; Publisher and Conn may be nil when MQTT is disabled.
type Options struct {
	Loop      idle.Loop
	Now       func() time.Time
	Store     Store
	Actuator  idle.Actuator
	Publisher mqtt.Publisher
	Conn      mqtt.ConnectionStatus
	Tracker   *status.Tracker

	RequiredTaps int
	TapGap       time.Duration
	UnlockWindow time.Duration
}

// Session is the kiosk composition root.
type Session struct {
	loop      idle.Loop
	now       func() time.Time
	store     Store
	publisher mqtt.Publisher
	conn      mqtt.ConnectionStatus
	tracker   *status.Tracker
	window    time.Duration

	controller *idle.Controller
	detector   *logic.TapDetector
	router     *input.Router

	outbox chan mqtt.SystemEvent

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds a stopped session. Call Start to bring the controller up.
func New(o Options) *Session {
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.UnlockWindow <= 0 {
		o.UnlockWindow = DefaultUnlockWindow
	}

	s := &Session{
		now:       o.Now,
		store:     o.Store,
		publisher: o.Publisher,
		conn:      o.Conn,
		tracker:   o.Tracker,
		window:    o.UnlockWindow,
		outbox:    make(chan mqtt.SystemEvent, outboxSize),
		ctx:       context.Background(),
	}
	s.loop = &trackedLoop{loop: o.Loop, after: s.syncTracker}
	s.controller = idle.NewController(s.loop, o.Store, o.Actuator)
	s.detector = logic.NewTapDetector(o.RequiredTaps, o.TapGap, s.onUnlock)
	s.router = input.NewRouter(s.controller, s.detector, o.Now)
	return s
}

// trackedLoop refreshes the status tracker after every callback so the
// tracker sees config loads and timer fires as well as routed input.
type trackedLoop struct {
	loop  idle.Loop
	after func()
}

func (l *trackedLoop) Post(fn func()) {
	l.loop.Post(func() {
		fn()
		l.after()
	})
}

func (l *trackedLoop) Schedule(delay time.Duration, fn func()) loop.Timer {
	return l.loop.Schedule(delay, func() {
		fn()
		l.after()
	})
}

// Start launches the status and publishing goroutines and resumes the
// controller. The session runs until ctx is cancelled or Close is called.
func (s *Session) Start(ctx context.Context) {
	s.ctx, s.cancel = context.WithCancel(ctx)

	v, err := s.store.Load(s.ctx)
	if err != nil {
		// The controller applies its own fallback when its load fails too.
		log.Printf("kiosk: failed to load settings: %v", err)
	} else {
		s.tracker.SetSettings(v)
	}

	display, unsubDisplay := s.controller.Subscribe()
	values, unsubValues := s.store.Subscribe()

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		defer unsubDisplay()
		s.publishLoop(display)
	}()
	go func() {
		defer s.wg.Done()
		defer unsubValues()
		s.settingsLoop(values)
	}()

	s.Resume()
	log.Printf("kiosk: session started")
}

// Close stops the session goroutines and waits for them. Pause the
// controller first if the loop is still running.
func (s *Session) Close() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

// Resume starts (or restarts) the idle controller, e.g. when the display
// surface becomes visible.
func (s *Session) Resume() {
	s.loop.Post(func() { s.controller.Start(s.ctx) })
}

// Pause stops the idle controller, e.g. when the display surface is hidden.
func (s *Session) Pause() {
	s.loop.Post(s.controller.Stop)
}

// Input routes one interaction from src.
func (s *Session) Input(src input.Source) {
	s.loop.Post(func() {
		consumed := s.router.Dispatch(src)
		s.tracker.RecordInteraction(s.now(), s.detector.Count())
		if consumed {
			log.Printf("kiosk: %s input consumed", src)
		}
	})
}

// Command applies a remote command received over MQTT.
func (s *Session) Command(cmd string) {
	switch cmd {
	case mqtt.CommandWake:
		s.Input(input.Touch)
	case mqtt.CommandPause:
		s.Pause()
	case mqtt.CommandResume:
		s.Resume()
	default:
		log.Printf("kiosk: ignoring unknown command %q", cmd)
	}
}

// Unlocked reports whether the settings surface is open.
func (s *Session) Unlocked() bool {
	return s.tracker.Unlocked()
}

// Settings returns the persisted settings.
func (s *Session) Settings(ctx context.Context) (settings.Values, error) {
	return s.store.Load(ctx)
}

// UpdateSettings validates v, writes every changed field and restarts the
// controller so the new idle config takes effect.
func (s *Session) UpdateSettings(ctx context.Context, v settings.Values) error {
	if err := validate(v); err != nil {
		return err
	}
	cur, err := s.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	type write struct {
		changed bool
		set     func() error
	}
	writes := []write{
		{v.StartURL != cur.StartURL, func() error { return s.store.SetStartURL(ctx, v.StartURL) }},
		{v.Rotation != cur.Rotation, func() error { return s.store.SetRotation(ctx, v.Rotation) }},
		{v.CheckInterval != cur.CheckInterval, func() error { return s.store.SetCheckInterval(ctx, v.CheckInterval) }},
		{v.IdleTimeoutSeconds != cur.IdleTimeoutSeconds, func() error { return s.store.SetIdleTimeout(ctx, v.IdleTimeoutSeconds) }},
		{v.IdleBrightness != cur.IdleBrightness, func() error { return s.store.SetIdleBrightness(ctx, v.IdleBrightness) }},
		{v.ActiveBrightness != cur.ActiveBrightness, func() error { return s.store.SetActiveBrightness(ctx, v.ActiveBrightness) }},
	}
	for _, w := range writes {
		if !w.changed {
			continue
		}
		if err := w.set(); err != nil {
			return fmt.Errorf("save settings: %w", err)
		}
	}

	log.Printf("kiosk: settings saved, restarting idle controller")
	s.loop.Post(func() {
		if s.controller.Running() {
			s.controller.Start(s.ctx)
		}
	})
	return nil
}

func validate(v settings.Values) error {
	if strings.TrimSpace(v.StartURL) == "" {
		return settings.ErrEmptyURL
	}
	if !v.Rotation.Valid() {
		return fmt.Errorf("%w: %d", settings.ErrInvalidRotation, int(v.Rotation))
	}
	if v.CheckInterval <= 0 {
		return settings.ErrInvalidInterval
	}
	return nil
}

// onUnlock runs on the loop, inside the tap that completed the sequence.
func (s *Session) onUnlock() {
	now := s.now()
	until := now.Add(s.window)
	s.tracker.RecordUnlock(now, until)
	log.Printf("kiosk: unlock gesture completed, settings open until %s", until.UTC().Format(time.RFC3339))

	snap := s.tracker.Snapshot()
	event := mqtt.SystemEvent{
		Timestamp:  now,
		Event:      EventUnlocked,
		RawPayload: status.FormatStatusEvent(snap, EventUnlocked, ""),
	}
	select {
	case s.outbox <- event:
	default:
		log.Printf("kiosk: outbox full, dropping %s event", event.Event)
	}
}

// syncTracker runs on the loop after every callback.
func (s *Session) syncTracker() {
	s.tracker.UpdateController(s.controller.Running(), s.controller.Loaded(), s.controller.Config())
}

func (s *Session) publishLoop(display <-chan idle.Status) {
	for {
		select {
		case <-s.ctx.Done():
			return
		case st := <-display:
			s.tracker.UpdateDisplay(st.Idle, st.Brightness)
			if s.publisher == nil {
				continue
			}
			err := s.publisher.PublishState(mqtt.StateEvent{
				Timestamp:  s.now(),
				Idle:       st.Idle,
				Brightness: st.Brightness,
			})
			if err != nil {
				log.Printf("kiosk: publish state error: %v", err)
			}
		case event := <-s.outbox:
			if s.publisher == nil {
				continue
			}
			if err := s.publisher.PublishSystem(event); err != nil {
				log.Printf("kiosk: publish %s error: %v", event.Event, err)
			}
		}
	}
}

func (s *Session) settingsLoop(values <-chan settings.Values) {
	for {
		select {
		case <-s.ctx.Done():
			return
		case v := <-values:
			s.tracker.SetSettings(v)
		}
	}
}

// PublishSystem publishes a lifecycle event carrying a full status snapshot.
// It runs on the caller's goroutine.
func (s *Session) PublishSystem(event, reason string, retained bool) error {
	if s.publisher == nil {
		return nil
	}
	if s.conn != nil {
		s.tracker.SetMQTTConnected(s.conn.IsConnected())
	}
	snap := s.tracker.Snapshot()
	return s.publisher.PublishSystem(mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      event,
		Reason:     reason,
		Retained:   retained,
		RawPayload: status.FormatStatusEvent(snap, event, reason),
	})
}

// Heartbeat publishes a HEARTBEAT system event.
func (s *Session) Heartbeat() {
	snap := s.tracker.Snapshot()
	log.Printf("heartbeat: uptime=%v state=%s brightness=%d%% interactions=%d unlocks=%d",
		snap.Uptime().Truncate(time.Second), stateName(snap.Idle), snap.Brightness, snap.Interactions, snap.Unlocks)
	if err := s.PublishSystem(EventHeartbeat, "", false); err != nil {
		log.Printf("heartbeat publish error: %v", err)
	}
}

// RefreshConnection copies the MQTT connection state into the tracker.
func (s *Session) RefreshConnection() {
	if s.conn != nil {
		s.tracker.SetMQTTConnected(s.conn.IsConnected())
	}
}

func stateName(isIdle bool) string {
	if isIdle {
		return idle.Idle.String()
	}
	return idle.Active.String()
}

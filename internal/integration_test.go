package internal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sweeney/kioskd/internal/backlight"
	"github.com/sweeney/kioskd/internal/gpio"
	"github.com/sweeney/kioskd/internal/input"
	"github.com/sweeney/kioskd/internal/kiosk"
	"github.com/sweeney/kioskd/internal/loop"
	"github.com/sweeney/kioskd/internal/mqtt"
	"github.com/sweeney/kioskd/internal/settings"
	"github.com/sweeney/kioskd/internal/status"
	"github.com/sweeney/kioskd/internal/web"
)

type rig struct {
	loop     *loop.Manual
	store    *settings.FileStore
	act      *backlight.FakeActuator
	pub      *mqtt.FakePublisher
	tracker  *status.Tracker
	session  *kiosk.Session
	button   *gpio.FakeButton
	http     *httptest.Server
	noFollow *http.Client
}

func newRig(t *testing.T, settingsYAML string) *rig {
	t.Helper()
	path := filepath.Join(t.TempDir(), "settings.yaml")
	if settingsYAML != "" {
		if err := os.WriteFile(path, []byte(settingsYAML), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	m := loop.NewManual(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	r := &rig{
		loop:  m,
		store: settings.NewFileStore(path),
		act:   backlight.NewFakeActuator(),
		pub:   mqtt.NewFakePublisher(),
	}
	r.tracker = status.NewTracker(m.Now(), status.Config{KioskID: "lobby", RequiredTaps: 3}, m.Now)
	r.session = kiosk.New(kiosk.Options{
		Loop:         m,
		Now:          m.Now,
		Store:        r.store,
		Actuator:     r.act,
		Publisher:    r.pub,
		Conn:         r.pub,
		Tracker:      r.tracker,
		RequiredTaps: 3,
		TapGap:       2 * time.Second,
		UnlockWindow: 5 * time.Minute,
	})
	r.button = gpio.NewFakeButton(func() { r.session.Input(input.CenterKey) })
	r.http = httptest.NewServer(web.New(":0", r.tracker, r.session).Handler())
	r.noFollow = &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}

	t.Cleanup(func() {
		r.http.Close()
		r.button.Close()
		r.session.Close()
	})
	return r
}

func (r *rig) start(t *testing.T) {
	t.Helper()
	r.session.Start(context.Background())
	r.run(t, 2) // controller start, config loaded
}

func (r *rig) run(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if !r.loop.RunPosted(2 * time.Second) {
			t.Fatalf("expected posted callback %d of %d", i+1, n)
		}
	}
}

func (r *rig) post(t *testing.T, path string, form url.Values) int {
	t.Helper()
	resp, err := r.noFollow.PostForm(r.http.URL+path, form)
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	resp.Body.Close()
	return resp.StatusCode
}

func (r *rig) get(t *testing.T, path string) int {
	t.Helper()
	resp, err := http.Get(r.http.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	resp.Body.Close()
	return resp.StatusCode
}

func (r *rig) statusJSON(t *testing.T) status.StatusInner {
	t.Helper()
	resp, err := http.Get(r.http.URL + "/index.json")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var sj status.StatusJSON
	if err := json.NewDecoder(resp.Body).Decode(&sj); err != nil {
		t.Fatal(err)
	}
	return sj.Status
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// TestIntegrationIdleCycle dims after the stored timeout and wakes on a
// touch posted by the browser shell.
func TestIntegrationIdleCycle(t *testing.T) {
	r := newRig(t, "idle_timeout_seconds: 5\nidle_brightness: 0\nactive_brightness: 80\n")
	r.start(t)

	if got, _ := r.act.Last(); got != 0.8 {
		t.Fatalf("brightness after load: got %v, want 0.8", got)
	}

	r.loop.Advance(5 * time.Second)
	waitFor(t, "idle state", func() bool { return r.statusJSON(t).State == "IDLE" })

	if code := r.post(t, "/api/input?source=touch", nil); code != http.StatusAccepted {
		t.Fatalf("input: got %d, want 202", code)
	}
	r.run(t, 1)
	waitFor(t, "active state", func() bool {
		s := r.statusJSON(t)
		return s.State == "ACTIVE" && s.Brightness == 80
	})

	var sawIdle bool
	for _, e := range r.pub.StateEvents() {
		if e.Idle {
			sawIdle = true
		}
	}
	if !sawIdle {
		t.Error("expected an idle state on the state topic")
	}
}

// TestIntegrationDimWithoutBlank keeps the capture surface down when the
// idle brightness is above zero.
func TestIntegrationDimWithoutBlank(t *testing.T) {
	r := newRig(t, "idle_timeout_seconds: 5\nidle_brightness: 20\nactive_brightness: 90\n")
	r.start(t)

	r.loop.Advance(5 * time.Second)
	waitFor(t, "dimmed display", func() bool { return r.tracker.Snapshot().Brightness == 20 })
	if r.tracker.Snapshot().Idle {
		t.Error("a dimmed display must stay ACTIVE")
	}

	// Not idle, so a center key press counts toward unlock instead of only waking.
	r.button.Press()
	r.run(t, 1)
	if got := r.tracker.Snapshot().TapCount; got != 1 {
		t.Errorf("tap count: got %d, want 1", got)
	}
}

// TestIntegrationUnlockAndSave walks the remote unlock gesture through to a
// saved setting that changes the idle behaviour.
func TestIntegrationUnlockAndSave(t *testing.T) {
	r := newRig(t, "start_url: http://frontdesk.local/\nrotation: ROTATION_90\n")
	r.start(t)

	if code := r.get(t, "/settings"); code != http.StatusForbidden {
		t.Fatalf("settings before unlock: got %d, want 403", code)
	}

	for i := 0; i < 3; i++ {
		r.button.Press()
	}
	r.run(t, 3)

	if !r.statusJSON(t).Unlock.Unlocked {
		t.Fatal("expected unlocked after three presses")
	}
	waitFor(t, "UNLOCKED event", func() bool {
		for _, n := range r.pub.SystemEventNames() {
			if n == kiosk.EventUnlocked {
				return true
			}
		}
		return false
	})

	if code := r.get(t, "/settings"); code != http.StatusOK {
		t.Fatalf("settings after unlock: got %d, want 200", code)
	}
	code := r.post(t, "/settings", url.Values{
		"idle_timeout_seconds": {"2"},
		"idle_brightness":      {"0"},
		"active_brightness":    {"60"},
	})
	if code != http.StatusSeeOther {
		t.Fatalf("save: got %d, want 303", code)
	}
	r.run(t, 2) // restart, config loaded

	if got, _ := r.act.Last(); got != 0.6 {
		t.Errorf("brightness after save: got %v, want 0.6", got)
	}
	r.loop.Advance(2 * time.Second)
	waitFor(t, "idle after new timeout", func() bool { return r.tracker.Snapshot().Idle })

	v, err := r.store.Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if v.StartURL != "http://frontdesk.local/" || v.Rotation != settings.Rotation90 {
		t.Errorf("untouched settings changed: %+v", v)
	}

	// While idle the center key only wakes the display.
	r.button.Press()
	r.run(t, 1)
	if r.tracker.Snapshot().TapCount != 0 {
		t.Error("a waking press must not count as a tap")
	}

	r.loop.Advance(5 * time.Minute)
	if code := r.get(t, "/settings"); code != http.StatusForbidden {
		t.Errorf("settings after window: got %d, want 403", code)
	}
}

// TestIntegrationMalformedSettingsFallBack runs with idle disabled when the
// stored values cannot be parsed.
func TestIntegrationMalformedSettingsFallBack(t *testing.T) {
	r := newRig(t, "idle_timeout_seconds: [oops\n")
	r.start(t)

	s := r.statusJSON(t)
	if !s.Ready {
		t.Fatal("expected the controller to finish loading")
	}
	if s.Idleness.TimeoutMs != 0 || s.Idleness.ActiveBrightness != 100 {
		t.Errorf("expected fallback config, got %+v", s.Idleness)
	}
	if r.loop.Pending() != 0 {
		t.Error("fallback config must not arm an idle timer")
	}
}

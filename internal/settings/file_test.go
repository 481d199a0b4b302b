package settings

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newStore(t *testing.T, contents string) *FileStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "settings.yaml")
	if contents != "" {
		if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return NewFileStore(path)
}

func TestLoadMissingFileGivesDefaults(t *testing.T) {
	s := newStore(t, "")
	v, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != Defaults() {
		t.Errorf("got %+v, want defaults", v)
	}
	if v.IdleTimeoutSeconds != 0 || v.IdleBrightness != 0 || v.ActiveBrightness != 100 {
		t.Errorf("unexpected idle defaults: %+v", v)
	}
}

func TestLoadFullDocument(t *testing.T) {
	s := newStore(t, `
start_url: https://example.com/board
check_interval_ms: 15000
rotation: 270
idle_timeout_seconds: 300
idle_brightness: 10
active_brightness: 85
`)
	v, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := Values{
		StartURL:           "https://example.com/board",
		CheckInterval:      15 * time.Second,
		Rotation:           Rotation270,
		IdleTimeoutSeconds: 300,
		IdleBrightness:     10,
		ActiveBrightness:   85,
	}
	if v != want {
		t.Errorf("got %+v, want %+v", v, want)
	}

	cfg := v.KioskConfig()
	if cfg.IdleTimeout != 300*time.Second {
		t.Errorf("idle timeout: got %v, want 5m", cfg.IdleTimeout)
	}
}

func TestLoadClampsOutOfRangeBrightness(t *testing.T) {
	s := newStore(t, "idle_brightness: -20\nactive_brightness: 4000\nidle_timeout_seconds: -5\n")
	v, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.IdleBrightness != 0 {
		t.Errorf("idle brightness: got %d, want 0", v.IdleBrightness)
	}
	if v.ActiveBrightness != 100 {
		t.Errorf("active brightness: got %d, want 100", v.ActiveBrightness)
	}
	if v.IdleTimeoutSeconds != 0 {
		t.Errorf("idle timeout: got %d, want 0", v.IdleTimeoutSeconds)
	}
}

func TestLoadLegacyRotation(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want Rotation
	}{
		{"int", "rotation: 90", Rotation90},
		{"quoted", `rotation: "180"`, Rotation180},
		{"float", "rotation: 270.0", Rotation270},
		{"enum name", "rotation: ROTATION_90", Rotation90},
		{"unknown degrees", "rotation: 45", Rotation0},
		{"garbage", "rotation: sideways", Rotation0},
		{"mapping", "rotation: {degrees: 90}", Rotation0},
		{"absent", "idle_brightness: 5", Rotation0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t, tt.doc)
			v, err := s.Load(context.Background())
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if v.Rotation != tt.want {
				t.Errorf("rotation: got %d, want %d", v.Rotation, tt.want)
			}
		})
	}
}

func TestLoadMalformedFieldFallsBack(t *testing.T) {
	s := newStore(t, "idle_timeout_seconds: soon\nactive_brightness: \"70\"\nidle_brightness: [1, 2]\n")
	v, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.IdleTimeoutSeconds != DefaultIdleTimeoutSeconds {
		t.Errorf("idle timeout: got %d, want default", v.IdleTimeoutSeconds)
	}
	if v.ActiveBrightness != 70 {
		t.Errorf("active brightness: got %d, want 70", v.ActiveBrightness)
	}
	if v.IdleBrightness != DefaultIdleBrightness {
		t.Errorf("idle brightness: got %d, want default", v.IdleBrightness)
	}
}

func TestLoadSyntaxErrorReturnsError(t *testing.T) {
	s := newStore(t, "idle_brightness: [unterminated\n")
	v, err := s.Load(context.Background())
	if err == nil {
		t.Fatal("expected parse error")
	}
	if v != Defaults() {
		t.Errorf("expected defaults alongside error, got %+v", v)
	}
	if _, err := s.LoadKioskConfig(context.Background()); err == nil {
		t.Error("expected LoadKioskConfig to surface the error")
	}
}

func TestLoadCancelledContext(t *testing.T) {
	s := newStore(t, "")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Load(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestSettersPersistAndClamp(t *testing.T) {
	s := newStore(t, "")
	ctx := context.Background()

	if err := s.SetIdleTimeout(ctx, 120); err != nil {
		t.Fatal(err)
	}
	if err := s.SetIdleBrightness(ctx, 150); err != nil {
		t.Fatal(err)
	}
	if err := s.SetActiveBrightness(ctx, -10); err != nil {
		t.Fatal(err)
	}
	if err := s.SetRotation(ctx, Rotation180); err != nil {
		t.Fatal(err)
	}
	if err := s.SetStartURL(ctx, "  https://example.com/menu "); err != nil {
		t.Fatal(err)
	}
	if err := s.SetCheckInterval(ctx, 30*time.Second); err != nil {
		t.Fatal(err)
	}

	// A fresh store on the same file sees everything.
	v, err := NewFileStore(s.Path()).Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := Values{
		StartURL:           "https://example.com/menu",
		CheckInterval:      30 * time.Second,
		Rotation:           Rotation180,
		IdleTimeoutSeconds: 120,
		IdleBrightness:     100,
		ActiveBrightness:   0,
	}
	if v != want {
		t.Errorf("got %+v, want %+v", v, want)
	}
}

func TestSetterValidation(t *testing.T) {
	s := newStore(t, "")
	ctx := context.Background()

	if err := s.SetRotation(ctx, Rotation(45)); !errors.Is(err, ErrInvalidRotation) {
		t.Errorf("SetRotation(45): got %v", err)
	}
	if err := s.SetStartURL(ctx, "   "); !errors.Is(err, ErrEmptyURL) {
		t.Errorf("SetStartURL(blank): got %v", err)
	}
	if err := s.SetCheckInterval(ctx, 0); !errors.Is(err, ErrInvalidInterval) {
		t.Errorf("SetCheckInterval(0): got %v", err)
	}
	if _, err := os.Stat(s.Path()); !errors.Is(err, os.ErrNotExist) {
		t.Error("rejected writes should not create the file")
	}
}

func TestWriteReplacesMalformedFile(t *testing.T) {
	s := newStore(t, "active_brightness: [unterminated\n")
	if err := s.SetActiveBrightness(context.Background(), 40); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	v, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("file should be valid after write: %v", err)
	}
	if v.ActiveBrightness != 40 {
		t.Errorf("active brightness: got %d, want 40", v.ActiveBrightness)
	}
}

func TestSubscribeReceivesWrites(t *testing.T) {
	s := newStore(t, "")
	ch, cancel := s.Subscribe()
	defer cancel()

	ctx := context.Background()
	s.SetIdleBrightness(ctx, 5)
	s.SetIdleBrightness(ctx, 7)

	select {
	case v := <-ch:
		if v.IdleBrightness != 7 {
			t.Errorf("expected latest value 7, got %d", v.IdleBrightness)
		}
	case <-time.After(time.Second):
		t.Fatal("no update delivered")
	}

	cancel()
	s.SetIdleBrightness(ctx, 9)
	select {
	case v := <-ch:
		t.Errorf("unsubscribed channel received %+v", v)
	default:
	}
}

func TestLoadKioskConfig(t *testing.T) {
	s := newStore(t, "idle_timeout_seconds: 5\nidle_brightness: 0\nactive_brightness: 80\n")
	cfg, err := s.LoadKioskConfig(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if cfg.IdleTimeout != 5*time.Second || cfg.IdleBrightness != 0 || cfg.ActiveBrightness != 80 {
		t.Errorf("unexpected config: %+v", cfg)
	}
}

func TestLoadHugeDurationsSaturate(t *testing.T) {
	s := newStore(t, "idle_timeout_seconds: 18446744074\ncheck_interval_ms: 9223372036854775807\n")
	v, err := s.Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if v.IdleTimeoutSeconds != MaxIdleTimeoutSeconds {
		t.Errorf("idle timeout: got %d, want %d", v.IdleTimeoutSeconds, MaxIdleTimeoutSeconds)
	}
	if v.CheckInterval <= 0 {
		t.Errorf("check interval wrapped: %v", v.CheckInterval)
	}

	cfg, err := s.LoadKioskConfig(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if cfg.IdleTimeout < 290*365*24*time.Hour {
		t.Errorf("idle timeout wrapped to %v", cfg.IdleTimeout)
	}
}

func TestLoadHugeFloatTimeoutSaturates(t *testing.T) {
	for _, raw := range []string{"1e30", "99999999999999999999"} {
		t.Run(raw, func(t *testing.T) {
			s := newStore(t, "idle_timeout_seconds: "+raw+"\n")
			v, err := s.Load(context.Background())
			if err != nil {
				t.Fatal(err)
			}
			if v.IdleTimeoutSeconds != MaxIdleTimeoutSeconds {
				t.Errorf("got %d, want %d", v.IdleTimeoutSeconds, MaxIdleTimeoutSeconds)
			}
		})
	}
}

func TestKioskConfigClampsTimeout(t *testing.T) {
	tests := []struct {
		seconds int64
		want    time.Duration
	}{
		{-1, 0},
		{30, 30 * time.Second},
		{MaxIdleTimeoutSeconds + 1, time.Duration(MaxIdleTimeoutSeconds) * time.Second},
	}
	for _, tt := range tests {
		got := Values{IdleTimeoutSeconds: tt.seconds, ActiveBrightness: 100}.KioskConfig().IdleTimeout
		if got != tt.want {
			t.Errorf("seconds=%d: got %v, want %v", tt.seconds, got, tt.want)
		}
	}
}

func TestSetIdleTimeoutSaturates(t *testing.T) {
	s := newStore(t, "")
	ctx := context.Background()
	if err := s.SetIdleTimeout(ctx, math.MaxInt64); err != nil {
		t.Fatal(err)
	}
	v, err := s.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if v.IdleTimeoutSeconds != MaxIdleTimeoutSeconds {
		t.Errorf("got %d, want %d", v.IdleTimeoutSeconds, MaxIdleTimeoutSeconds)
	}
}

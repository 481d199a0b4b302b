package backlight

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func newSysfsDir(t *testing.T, max string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "max_brightness"), []byte(max), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "brightness"), []byte("0\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestSysfsSetBrightness(t *testing.T) {
	dir := newSysfsDir(t, "255\n")
	s, err := NewSysfs(dir)
	if err != nil {
		t.Fatalf("NewSysfs: %v", err)
	}
	if s.Max() != 255 {
		t.Errorf("max: got %d, want 255", s.Max())
	}

	tests := []struct {
		fraction float64
		want     int
	}{
		{0, 0},
		{0.8, 204},
		{0.5, 128},
		{1, 255},
	}
	for _, tt := range tests {
		if err := s.SetBrightness(tt.fraction); err != nil {
			t.Fatalf("SetBrightness(%v): %v", tt.fraction, err)
		}
		got, err := s.Current()
		if err != nil {
			t.Fatalf("Current: %v", err)
		}
		if got != tt.want {
			t.Errorf("SetBrightness(%v): raw %d, want %d", tt.fraction, got, tt.want)
		}
	}
}

func TestSysfsRejectsOutOfRange(t *testing.T) {
	s, err := NewSysfs(newSysfsDir(t, "100"))
	if err != nil {
		t.Fatalf("NewSysfs: %v", err)
	}
	for _, f := range []float64{-0.1, 1.5} {
		if err := s.SetBrightness(f); !errors.Is(err, ErrOutOfRange) {
			t.Errorf("SetBrightness(%v): got %v, want ErrOutOfRange", f, err)
		}
	}
}

func TestNewSysfsErrors(t *testing.T) {
	if _, err := NewSysfs(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected error for missing device")
	}
	if _, err := NewSysfs(newSysfsDir(t, "bogus")); err == nil {
		t.Error("expected error for unparsable max_brightness")
	}
	if _, err := NewSysfs(newSysfsDir(t, "0")); err == nil {
		t.Error("expected error for zero max_brightness")
	}
}

func TestSysfsWriteFailure(t *testing.T) {
	dir := newSysfsDir(t, "100")
	s, err := NewSysfs(dir)
	if err != nil {
		t.Fatalf("NewSysfs: %v", err)
	}
	if err := os.RemoveAll(dir); err != nil {
		t.Fatal(err)
	}
	if err := s.SetBrightness(0.5); err == nil {
		t.Error("expected write error once the device is gone")
	}
}

func TestDiscard(t *testing.T) {
	var d Discard
	if err := d.SetBrightness(0.4); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := d.SetBrightness(2); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("expected ErrOutOfRange, got %v", err)
	}
}

func TestFakeActuator(t *testing.T) {
	f := NewFakeActuator()
	if _, ok := f.Last(); ok {
		t.Error("expected no writes initially")
	}
	f.SetBrightness(0.2)
	f.Err = errors.New("boom")
	if err := f.SetBrightness(0.9); err == nil {
		t.Error("expected scripted error")
	}
	if got := f.Fractions(); len(got) != 2 || got[1] != 0.9 {
		t.Errorf("fractions: got %v", got)
	}
}

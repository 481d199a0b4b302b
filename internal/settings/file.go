package settings

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sweeney/kioskd/internal/logic"
)

// rawDocument is read leniently: every field is decoded by hand so a
// legacy or mistyped value falls back to its default instead of failing
// the whole load.
type rawDocument struct {
	StartURL           yaml.Node `yaml:"start_url"`
	CheckIntervalMs    yaml.Node `yaml:"check_interval_ms"`
	Rotation           yaml.Node `yaml:"rotation"`
	IdleTimeoutSeconds yaml.Node `yaml:"idle_timeout_seconds"`
	IdleBrightness     yaml.Node `yaml:"idle_brightness"`
	ActiveBrightness   yaml.Node `yaml:"active_brightness"`
}

// document is what gets written.
type document struct {
	StartURL           string `yaml:"start_url"`
	CheckIntervalMs    int64  `yaml:"check_interval_ms"`
	Rotation           int    `yaml:"rotation"`
	IdleTimeoutSeconds int64  `yaml:"idle_timeout_seconds"`
	IdleBrightness     int    `yaml:"idle_brightness"`
	ActiveBrightness   int    `yaml:"active_brightness"`
}

// FileStore keeps settings in a YAML file.
type FileStore struct {
	path string

	mu   sync.Mutex
	subs map[chan Values]struct{}
}

// NewFileStore creates a store backed by path. The file need not exist.
func NewFileStore(path string) *FileStore {
	return &FileStore{
		path: path,
		subs: make(map[chan Values]struct{}),
	}
}

// Path returns the backing file path.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the file. A missing file yields Defaults.
func (s *FileStore) Load(ctx context.Context) (Values, error) {
	if err := ctx.Err(); err != nil {
		return Defaults(), err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

// LoadKioskConfig adapts the store to the idle controller.
func (s *FileStore) LoadKioskConfig(ctx context.Context) (logic.KioskConfig, error) {
	v, err := s.Load(ctx)
	if err != nil {
		return logic.KioskConfig{}, err
	}
	return v.KioskConfig(), nil
}

func (s *FileStore) read() (Values, error) {
	v := Defaults()
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return v, nil
		}
		return v, fmt.Errorf("read settings: %w", err)
	}

	var raw rawDocument
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return v, fmt.Errorf("parse settings %s: %w", s.path, err)
	}

	if str, ok := stringField(&raw.StartURL); ok && strings.TrimSpace(str) != "" {
		v.StartURL = strings.TrimSpace(str)
	}
	if ms, ok := intField("check_interval_ms", &raw.CheckIntervalMs); ok {
		if ms > MaxCheckIntervalMs {
			ms = MaxCheckIntervalMs
		}
		v.CheckInterval = time.Duration(ms) * time.Millisecond
	}
	if raw.Rotation.Kind != 0 {
		v.Rotation = rotationField(&raw.Rotation)
	}
	if n, ok := intField("idle_timeout_seconds", &raw.IdleTimeoutSeconds); ok {
		v.IdleTimeoutSeconds = n
	}
	if n, ok := intField("idle_brightness", &raw.IdleBrightness); ok {
		v.IdleBrightness = clampInt64(n)
	}
	if n, ok := intField("active_brightness", &raw.ActiveBrightness); ok {
		v.ActiveBrightness = clampInt64(n)
	}
	return v.normalized(), nil
}

func clampInt64(n int64) int {
	if n < logic.MinBrightness {
		return logic.MinBrightness
	}
	if n > logic.MaxBrightness {
		return logic.MaxBrightness
	}
	return int(n)
}

func stringField(n *yaml.Node) (string, bool) {
	if n.Kind != yaml.ScalarNode {
		return "", false
	}
	return n.Value, true
}

// numeric accepts integers, floats and numeric strings.
func numeric(n *yaml.Node) (int64, bool) {
	if n.Kind != yaml.ScalarNode {
		return 0, false
	}
	var i int64
	if err := n.Decode(&i); err == nil {
		return i, true
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(n.Value), 64)
	if err != nil || math.IsNaN(f) {
		return 0, false
	}
	// Out-of-range float conversion is implementation-defined.
	if f >= math.MaxInt64 {
		return math.MaxInt64, true
	}
	if f <= math.MinInt64 {
		return math.MinInt64, true
	}
	return int64(f), true
}

func intField(name string, n *yaml.Node) (int64, bool) {
	if n.Kind == 0 {
		return 0, false
	}
	if i, ok := numeric(n); ok {
		return i, true
	}
	log.Printf("settings: ignoring malformed %s %q, using default", name, n.Value)
	return 0, false
}

func rotationField(n *yaml.Node) Rotation {
	if deg, ok := numeric(n); ok {
		return RotationFromDegrees(int(deg))
	}
	if n.Kind == yaml.ScalarNode {
		if r, err := ParseRotation(n.Value); err == nil {
			return r
		}
	}
	log.Printf("settings: unrecognized rotation %q, using 0", n.Value)
	return Rotation0
}

func (s *FileStore) write(v Values) error {
	v = v.normalized()
	data, err := yaml.Marshal(document{
		StartURL:           v.StartURL,
		CheckIntervalMs:    v.CheckInterval.Milliseconds(),
		Rotation:           int(v.Rotation),
		IdleTimeoutSeconds: v.IdleTimeoutSeconds,
		IdleBrightness:     v.IdleBrightness,
		ActiveBrightness:   v.ActiveBrightness,
	})
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".settings-*.yaml")
	if err != nil {
		return fmt.Errorf("create temp settings: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close settings: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace settings: %w", err)
	}
	return nil
}

// update applies fn to the current values, persists them and notifies
// subscribers.
func (s *FileStore) update(ctx context.Context, fn func(*Values)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	v, err := s.read()
	if err != nil {
		// An unreadable file is replaced rather than blocking every write.
		log.Printf("settings: rewriting unreadable settings: %v", err)
		v = Defaults()
	}
	fn(&v)
	v = v.normalized()
	if err := s.write(v); err != nil {
		return err
	}
	s.notify(v)
	return nil
}

// SetIdleTimeout stores the idle timeout in seconds. Zero disables idle mode.
func (s *FileStore) SetIdleTimeout(ctx context.Context, seconds int64) error {
	return s.update(ctx, func(v *Values) { v.IdleTimeoutSeconds = seconds })
}

// SetIdleBrightness stores the idle brightness, clamped to [0,100].
func (s *FileStore) SetIdleBrightness(ctx context.Context, level int) error {
	return s.update(ctx, func(v *Values) { v.IdleBrightness = logic.ClampBrightness(level) })
}

// SetActiveBrightness stores the active brightness, clamped to [0,100].
func (s *FileStore) SetActiveBrightness(ctx context.Context, level int) error {
	return s.update(ctx, func(v *Values) { v.ActiveBrightness = logic.ClampBrightness(level) })
}

// SetRotation stores the display rotation.
func (s *FileStore) SetRotation(ctx context.Context, r Rotation) error {
	if !r.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidRotation, int(r))
	}
	return s.update(ctx, func(v *Values) { v.Rotation = r })
}

// SetStartURL stores the page the kiosk displays.
func (s *FileStore) SetStartURL(ctx context.Context, url string) error {
	url = strings.TrimSpace(url)
	if url == "" {
		return ErrEmptyURL
	}
	return s.update(ctx, func(v *Values) { v.StartURL = url })
}

// SetCheckInterval stores the connectivity check interval.
func (s *FileStore) SetCheckInterval(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ErrInvalidInterval
	}
	return s.update(ctx, func(v *Values) { v.CheckInterval = d })
}

// Subscribe returns a channel holding the latest written values.
func (s *FileStore) Subscribe() (<-chan Values, func()) {
	ch := make(chan Values, 1)
	s.mu.Lock()
	s.subs[ch] = struct{}{}
	s.mu.Unlock()
	return ch, func() {
		s.mu.Lock()
		delete(s.subs, ch)
		s.mu.Unlock()
	}
}

// notify is called with s.mu held.
func (s *FileStore) notify(v Values) {
	for ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		ch <- v
	}
}

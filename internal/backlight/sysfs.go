package backlight

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Sysfs drives a /sys/class/backlight device.
type Sysfs struct {
	dir string
	max int
}

// NewSysfs opens the backlight device directory and reads its maximum.
func NewSysfs(dir string) (*Sysfs, error) {
	maxRaw, err := readInt(filepath.Join(dir, "max_brightness"))
	if err != nil {
		return nil, fmt.Errorf("read max brightness: %w", err)
	}
	if maxRaw <= 0 {
		return nil, fmt.Errorf("backlight %s: invalid max brightness %d", dir, maxRaw)
	}
	return &Sysfs{dir: dir, max: maxRaw}, nil
}

// Max returns the raw maximum brightness of the device.
func (s *Sysfs) Max() int {
	return s.max
}

// SetBrightness writes round(fraction*max) to the device.
func (s *Sysfs) SetBrightness(fraction float64) error {
	if err := checkFraction(fraction); err != nil {
		return err
	}
	raw := int(math.Round(fraction * float64(s.max)))
	path := filepath.Join(s.dir, "brightness")
	if err := os.WriteFile(path, []byte(strconv.Itoa(raw)), 0o644); err != nil {
		return fmt.Errorf("write brightness: %w", err)
	}
	return nil
}

// Current reads the raw brightness currently applied.
func (s *Sysfs) Current() (int, error) {
	return readInt(filepath.Join(s.dir, "brightness"))
}

func readInt(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", path, err)
	}
	return n, nil
}

package settings

import (
	"fmt"
	"strconv"
	"strings"
)

// Rotation is the clockwise display rotation in degrees.
type Rotation int

const (
	Rotation0   Rotation = 0
	Rotation90  Rotation = 90
	Rotation180 Rotation = 180
	Rotation270 Rotation = 270
)

// Rotations lists the valid rotations in order.
var Rotations = []Rotation{Rotation0, Rotation90, Rotation180, Rotation270}

// Valid reports whether r is one of the four cardinal rotations.
func (r Rotation) Valid() bool {
	switch r {
	case Rotation0, Rotation90, Rotation180, Rotation270:
		return true
	}
	return false
}

func (r Rotation) String() string {
	return strconv.Itoa(int(r))
}

// RotationFromDegrees maps degrees to a rotation, falling back to Rotation0
// for anything that is not a cardinal value.
func RotationFromDegrees(degrees int) Rotation {
	r := Rotation(degrees)
	if !r.Valid() {
		return Rotation0
	}
	return r
}

// ParseRotation parses "90", "ROTATION_90" or "rotation_90".
func ParseRotation(s string) (Rotation, error) {
	s = strings.TrimSpace(strings.ToUpper(s))
	s = strings.TrimPrefix(s, "ROTATION_")
	n, err := strconv.Atoi(s)
	if err != nil {
		return Rotation0, fmt.Errorf("%w: %q", ErrInvalidRotation, s)
	}
	r := Rotation(n)
	if !r.Valid() {
		return Rotation0, fmt.Errorf("%w: %d", ErrInvalidRotation, n)
	}
	return r, nil
}

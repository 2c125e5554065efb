package grid

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	// ErrOutOfBounds is returned for coordinates outside the configured width, height or floor range.
	ErrOutOfBounds = errors.New("grid coordinate out of bounds")
	// ErrInvalidDimensions is returned when an index is constructed with non-positive sizes.
	ErrInvalidDimensions = errors.New("invalid grid dimensions")
)

// Coord addresses a single cell: column X, row Z and vertical floor.
type Coord struct {
	X, Z, Floor int
}

// Add returns c shifted by o on the X/Z plane. The floor of c is kept.
func (c Coord) Add(o Coord) Coord {
	return Coord{X: c.X + o.X, Z: c.Z + o.Z, Floor: c.Floor}
}

// Sub returns c minus o on the X/Z plane. The floor of c is kept.
func (c Coord) Sub(o Coord) Coord {
	return Coord{X: c.X - o.X, Z: c.Z - o.Z, Floor: c.Floor}
}

func (c Coord) String() string {
	return fmt.Sprintf("(%d,%d,%d)", c.X, c.Z, c.Floor)
}

// Vec3 is a position in world space. Y is the vertical axis.
type Vec3 struct {
	X, Y, Z float64
}

// RoundHalfEven converts a world-to-cell ratio to the nearest integer.
// Ties go to the even neighbour: 0.5 -> 0, 1.5 -> 2, 2.5 -> 2.
func RoundHalfEven(v float64) int {
	return int(math.RoundToEven(v))
}

// ParseCoord parses "x,z" or "x,z,floor". The floor defaults to 0.
func ParseCoord(s string) (Coord, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 && len(parts) != 3 {
		return Coord{}, fmt.Errorf("coordinate %q: want x,z or x,z,floor", s)
	}

	vals := make([]int, 3)
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return Coord{}, fmt.Errorf("coordinate %q: %w", s, err)
		}
		vals[i] = v
	}
	return Coord{X: vals[0], Z: vals[1], Floor: vals[2]}, nil
}

// ParseVec3 parses a world position "x,y,z".
func ParseVec3(s string) (Vec3, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return Vec3{}, fmt.Errorf("position %q: want x,y,z", s)
	}

	var vals [3]float64
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return Vec3{}, fmt.Errorf("position %q: %w", s, err)
		}
		vals[i] = v
	}
	return Vec3{X: vals[0], Y: vals[1], Z: vals[2]}, nil
}

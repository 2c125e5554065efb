package pathfind

import "github.com/udisondev/gridpath/internal/grid"

// Oracle answers vertical samples against world geometry. The planner only
// consumes the boolean results; it never sees the geometry itself.
//
// Both methods test whether something solid is intersected within the
// vertical span [pos.Y-reach, pos.Y+reach] at the footprint of pos.
type Oracle interface {
	Blocked(pos grid.Vec3, reach float64) (bool, error)
	HasFloor(pos grid.Vec3, reach float64) (bool, error)
}

// SampleFunc is a single vertical sample.
type SampleFunc func(pos grid.Vec3, reach float64) (bool, error)

// OracleFuncs adapts two sample functions to Oracle. A nil Obstacle sample means
// nothing is blocked; a nil Floor sample means every cell has floor.
type OracleFuncs struct {
	Obstacle SampleFunc
	Floor    SampleFunc
}

func (o OracleFuncs) Blocked(pos grid.Vec3, reach float64) (bool, error) {
	if o.Obstacle == nil {
		return false, nil
	}
	return o.Obstacle(pos, reach)
}

func (o OracleFuncs) HasFloor(pos grid.Vec3, reach float64) (bool, error) {
	if o.Floor == nil {
		return true, nil
	}
	return o.Floor(pos, reach)
}

// Link is a bidirectional shortcut between two cells, usually on different
// floors (stairs, ladders, jump spots).
type Link struct {
	A, B grid.Coord
}

// Other returns the opposite endpoint when c is one of the link's endpoints.
func (l Link) Other(c grid.Coord) (grid.Coord, bool) {
	switch c {
	case l.A:
		return l.B, true
	case l.B:
		return l.A, true
	}
	return grid.Coord{}, false
}

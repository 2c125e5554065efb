package testutil

import (
	"sync"

	"github.com/udisondev/gridpath/internal/grid"
)

// CellOracle is an in-memory geometry oracle keyed by grid cell.
// Cells are open with floor unless marked otherwise.
type CellOracle struct {
	CellSize    float64
	FloorHeight float64

	// Err, when set, is returned by every sample.
	Err error

	mu      sync.Mutex
	blocked map[grid.Coord]bool
	noFloor map[grid.Coord]bool
	samples  int
}

// NewCellOracle creates an oracle for the given cell size and floor height.
func NewCellOracle(cellSize, floorHeight float64) *CellOracle {
	return &CellOracle{
		CellSize:    cellSize,
		FloorHeight: floorHeight,
		blocked:     make(map[grid.Coord]bool),
		noFloor:     make(map[grid.Coord]bool),
	}
}

// Block marks cells as containing an obstacle.
func (o *CellOracle) Block(cells ...grid.Coord) *CellOracle {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, c := range cells {
		o.blocked[c] = true
	}
	return o
}

// RemoveFloor marks cells as having nothing to stand on.
func (o *CellOracle) RemoveFloor(cells ...grid.Coord) *CellOracle {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, c := range cells {
		o.noFloor[c] = true
	}
	return o
}

// Samples returns how many samples were answered.
func (o *CellOracle) Samples() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.samples
}

func (o *CellOracle) Blocked(pos grid.Vec3, _ float64) (bool, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.samples++
	if o.Err != nil {
		return false, o.Err
	}
	return o.blocked[o.cellOf(pos)], nil
}

func (o *CellOracle) HasFloor(pos grid.Vec3, _ float64) (bool, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.samples++
	if o.Err != nil {
		return false, o.Err
	}
	return !o.noFloor[o.cellOf(pos)], nil
}

func (o *CellOracle) cellOf(pos grid.Vec3) grid.Coord {
	floor := 0
	if o.FloorHeight > 0 {
		floor = grid.RoundHalfEven(pos.Y / o.FloorHeight)
	}
	return grid.Coord{
		X:     grid.RoundHalfEven(pos.X / o.CellSize),
		Z:     grid.RoundHalfEven(pos.Z / o.CellSize),
		Floor: floor,
	}
}

// Column returns the cells (x, z, floor) for z in [fromZ, toZ].
func Column(x, fromZ, toZ, floor int) []grid.Coord {
	cells := make([]grid.Coord, 0, toZ-fromZ+1)
	for z := fromZ; z <= toZ; z++ {
		cells = append(cells, grid.Coord{X: x, Z: z, Floor: floor})
	}
	return cells
}

package grid

import "fmt"

// Index is a dense width x height container of per-cell payloads for one floor.
// Cells are stored x-major: cells[x*height+z].
type Index[T any] struct {
	width, height int
	cellSize      float64
	floor         int
	floorHeight   float64
	cells         []T
}

// NewIndex allocates the cells of one floor and fills them by calling factory
// for every coordinate, x outer and z inner. factory must not read other cells.
func NewIndex[T any](width, height int, cellSize float64, floor int, floorHeight float64,
	factory func(idx *Index[T], c Coord) T,
) (*Index[T], error) {
	if width <= 0 || height <= 0 || cellSize <= 0 {
		return nil, fmt.Errorf("new index %dx%d cell %.3f: %w", width, height, cellSize, ErrInvalidDimensions)
	}

	idx := &Index[T]{
		width:       width,
		height:      height,
		cellSize:    cellSize,
		floor:       floor,
		floorHeight: floorHeight,
		cells:       make([]T, width*height),
	}
	for x := range width {
		for z := range height {
			idx.cells[x*height+z] = factory(idx, Coord{X: x, Z: z, Floor: floor})
		}
	}
	return idx, nil
}

// Size returns the width and height in cells.
func (idx *Index[T]) Size() (width, height int) {
	return idx.width, idx.height
}

// Floor returns the floor this index covers.
func (idx *Index[T]) Floor() int {
	return idx.floor
}

// CellSize returns the world-space edge length of one cell.
func (idx *Index[T]) CellSize() float64 {
	return idx.cellSize
}

// WorldPosition returns the world position of a cell (cell centre on the X/Z plane,
// floor elevation on Y).
func (idx *Index[T]) WorldPosition(c Coord) Vec3 {
	return Vec3{
		X: float64(c.X) * idx.cellSize,
		Y: float64(c.Floor) * idx.floorHeight,
		Z: float64(c.Z) * idx.cellSize,
	}
}

// GridPosition returns the cell nearest to a world position on this floor.
// The result may be invalid; check it with IsValid.
func (idx *Index[T]) GridPosition(pos Vec3) Coord {
	return Coord{
		X:     RoundHalfEven(pos.X / idx.cellSize),
		Z:     RoundHalfEven(pos.Z / idx.cellSize),
		Floor: idx.floor,
	}
}

// IsValid reports whether c lies inside this index.
func (idx *Index[T]) IsValid(c Coord) bool {
	return c.X >= 0 && c.Z >= 0 &&
		c.X < idx.width && c.Z < idx.height &&
		c.Floor == idx.floor
}

// Get returns a pointer to the payload stored at c.
func (idx *Index[T]) Get(c Coord) (*T, error) {
	if !idx.IsValid(c) {
		return nil, fmt.Errorf("get %s: %w", c, ErrOutOfBounds)
	}
	return &idx.cells[c.X*idx.height+c.Z], nil
}

// At is Get without the bounds check. Callers must have validated c.
func (idx *Index[T]) At(c Coord) *T {
	return &idx.cells[c.X*idx.height+c.Z]
}

// Each calls fn for every cell in raster order (x outer, z inner).
func (idx *Index[T]) Each(fn func(c Coord, v *T)) {
	for x := range idx.width {
		for z := range idx.height {
			fn(Coord{X: x, Z: z, Floor: idx.floor}, &idx.cells[x*idx.height+z])
		}
	}
}

package level

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/udisondev/gridpath/internal/grid"
	"github.com/udisondev/gridpath/internal/pathfind"
)

// ErrUnitNotFound is returned when a unit is not present in the expected cell.
var ErrUnitNotFound = errors.New("unit not found in cell")

// UnitID identifies a unit placed on the grid.
type UnitID string

// Cell is the occupancy state of one grid cell.
type Cell struct {
	coord        grid.Coord
	units        []UnitID
	interactable string
}

// UnitMoved describes a unit changing cells.
type UnitMoved struct {
	Unit UnitID
	From grid.Coord
	To   grid.Coord
}

// Navigator is the part of the planner move targets are computed against.
type Navigator interface {
	IsValid(c grid.Coord) bool
	IsWalkable(c grid.Coord) (bool, error)
	PathLength(start, goal grid.Coord) (cost int, ok bool, err error)
}

// Option configures a Grid.
type Option func(*Grid)

// WithStepCost sets the path cost one unit of move distance is worth.
func WithStepCost(cost int) Option {
	return func(g *Grid) {
		if cost > 0 {
			g.stepCost = cost
		}
	}
}

// Grid tracks which units and interactables occupy which cells.
type Grid struct {
	mu     sync.RWMutex
	floors []*grid.Index[*Cell]

	stepCost int

	listenersMu sync.Mutex
	listeners   []func(UnitMoved)
}

// NewGrid creates an empty occupancy grid with the planner's dimensions.
func NewGrid(cfg pathfind.Config, opts ...Option) (*Grid, error) {
	if cfg.Floors <= 0 {
		return nil, fmt.Errorf("new level grid with %d floors: %w", cfg.Floors, grid.ErrInvalidDimensions)
	}

	g := &Grid{
		floors:   make([]*grid.Index[*Cell], cfg.Floors),
		stepCost: pathfind.StraightCost,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}

	for f := range cfg.Floors {
		idx, err := grid.NewIndex(cfg.Width, cfg.Height, cfg.CellSize, f, cfg.FloorHeight,
			func(_ *grid.Index[*Cell], c grid.Coord) *Cell { return &Cell{coord: c} })
		if err != nil {
			return nil, fmt.Errorf("building level floor %d: %w", f, err)
		}
		g.floors[f] = idx
	}
	return g, nil
}

func (g *Grid) cell(c grid.Coord) (*Cell, error) {
	if c.Floor < 0 || c.Floor >= len(g.floors) {
		return nil, fmt.Errorf("level cell %s: %w", c, grid.ErrOutOfBounds)
	}
	p, err := g.floors[c.Floor].Get(c)
	if err != nil {
		return nil, err
	}
	return *p, nil
}

// IsValid reports whether c lies inside the grid.
func (g *Grid) IsValid(c grid.Coord) bool {
	return c.Floor >= 0 && c.Floor < len(g.floors) && g.floors[c.Floor].IsValid(c)
}

// AddUnit places a unit in a cell. A cell may hold several units.
func (g *Grid) AddUnit(c grid.Coord, id UnitID) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	cell, err := g.cell(c)
	if err != nil {
		return err
	}
	cell.units = append(cell.units, id)
	return nil
}

// RemoveUnit removes a unit from a cell.
func (g *Grid) RemoveUnit(c grid.Coord, id UnitID) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.removeUnit(c, id)
}

func (g *Grid) removeUnit(c grid.Coord, id UnitID) error {
	cell, err := g.cell(c)
	if err != nil {
		return err
	}
	i := slices.Index(cell.units, id)
	if i < 0 {
		return fmt.Errorf("remove unit %s at %s: %w", id, c, ErrUnitNotFound)
	}
	cell.units = slices.Delete(cell.units, i, i+1)
	return nil
}

// MoveUnit moves a unit between cells and notifies OnUnitMoved listeners.
func (g *Grid) MoveUnit(id UnitID, from, to grid.Coord) error {
	g.mu.Lock()
	target, err := g.cell(to)
	if err == nil {
		err = g.removeUnit(from, id)
	}
	if err != nil {
		g.mu.Unlock()
		return fmt.Errorf("move unit %s: %w", id, err)
	}
	target.units = append(target.units, id)
	g.mu.Unlock()

	g.listenersMu.Lock()
	listeners := slices.Clone(g.listeners)
	g.listenersMu.Unlock()

	ev := UnitMoved{Unit: id, From: from, To: to}
	for _, fn := range listeners {
		fn(ev)
	}
	return nil
}

// OnUnitMoved registers a listener called after every successful MoveUnit.
// Listeners run on the mover's goroutine, outside the grid lock.
func (g *Grid) OnUnitMoved(fn func(UnitMoved)) {
	g.listenersMu.Lock()
	defer g.listenersMu.Unlock()
	g.listeners = append(g.listeners, fn)
}

// Units returns a copy of the units in a cell.
func (g *Grid) Units(c grid.Coord) ([]UnitID, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	cell, err := g.cell(c)
	if err != nil {
		return nil, err
	}
	return slices.Clone(cell.units), nil
}

// HasAnyUnit reports whether a cell is occupied.
func (g *Grid) HasAnyUnit(c grid.Coord) (bool, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	cell, err := g.cell(c)
	if err != nil {
		return false, err
	}
	return len(cell.units) > 0, nil
}

// SetInteractable attaches a named interactable to a cell; an empty name clears it.
func (g *Grid) SetInteractable(c grid.Coord, name string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	cell, err := g.cell(c)
	if err != nil {
		return err
	}
	cell.interactable = name
	return nil
}

// Interactable returns the interactable in a cell, if any.
func (g *Grid) Interactable(c grid.Coord) (string, bool, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	cell, err := g.cell(c)
	if err != nil {
		return "", false, err
	}
	return cell.interactable, cell.interactable != "", nil
}

// MoveTargets lists the cells a unit at from can move to within maxDistance steps.
// Candidates come from the square around from on the same floor and are kept when
// they are free, walkable and reachable for at most maxDistance*stepCost.
// The result is in raster order (x outer, z inner).
func (g *Grid) MoveTargets(nav Navigator, from grid.Coord, maxDistance int) ([]grid.Coord, error) {
	if !g.IsValid(from) {
		return nil, fmt.Errorf("move targets from %s: %w", from, grid.ErrOutOfBounds)
	}

	var targets []grid.Coord
	for dx := -maxDistance; dx <= maxDistance; dx++ {
		for dz := -maxDistance; dz <= maxDistance; dz++ {
			c := from.Add(grid.Coord{X: dx, Z: dz})
			if !g.IsValid(c) || !nav.IsValid(c) || c == from {
				continue
			}

			occupied, err := g.HasAnyUnit(c)
			if err != nil {
				return nil, err
			}
			if occupied {
				continue
			}

			walkable, err := nav.IsWalkable(c)
			if err != nil {
				return nil, err
			}
			if !walkable {
				continue
			}

			cost, ok, err := nav.PathLength(from, c)
			if err != nil {
				return nil, err
			}
			if !ok || cost > maxDistance*g.stepCost {
				continue
			}
			targets = append(targets, c)
		}
	}
	return targets, nil
}

package pathfind

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/udisondev/gridpath/internal/grid"
)

// Config describes the grid a Planner covers and how deep its setup samples reach.
type Config struct {
	Width       int
	Height      int
	CellSize    float64
	Floors      int
	FloorHeight float64

	// ObstacleReach and FloorReach are the half-heights of the vertical spans
	// sampled around each cell's world position.
	ObstacleReach float64
	FloorReach    float64
}

// Default sample reaches, relative to a 1-unit floor height.
const (
	DefaultObstacleReach = 0.4
	DefaultFloorReach    = 0.2
)

// Planner answers shortest-path queries over a multi-floor grid.
// Queries are serialized: every query resets the search state of the whole grid.
type Planner struct {
	mu sync.Mutex

	cfg    Config
	floors []*grid.Index[Node]
	links  []Link

	// linksByCell maps a cell to the indexes of links touching it.
	linksByCell map[grid.Coord][]int

	seq      uint64
	expanded int
}

// New builds one grid per floor and samples the oracle once for every cell.
// A cell is walkable iff it is not blocked and has floor beneath it.
// Sample errors abort setup: unknown cells are never assumed walkable.
func New(cfg Config, oracle Oracle, links []Link) (*Planner, error) {
	if cfg.Floors <= 0 {
		return nil, fmt.Errorf("new planner with %d floors: %w", cfg.Floors, grid.ErrInvalidDimensions)
	}
	// Floors are told apart by elevation only.
	if cfg.Floors > 1 && cfg.FloorHeight <= 0 {
		return nil, fmt.Errorf("new planner with %d floors of height %.3f: %w", cfg.Floors, cfg.FloorHeight, grid.ErrInvalidDimensions)
	}

	p := &Planner{
		cfg:         cfg,
		floors:      make([]*grid.Index[Node], cfg.Floors),
		linksByCell: make(map[grid.Coord][]int, 2*len(links)),
	}

	for f := range cfg.Floors {
		idx, err := grid.NewIndex(cfg.Width, cfg.Height, cfg.CellSize, f, cfg.FloorHeight,
			func(_ *grid.Index[Node], c grid.Coord) Node { return newNode(c) })
		if err != nil {
			return nil, fmt.Errorf("building floor %d: %w", f, err)
		}
		p.floors[f] = idx
	}

	blocked := 0
	for _, idx := range p.floors {
		var sampleErr error
		idx.Each(func(c grid.Coord, n *Node) {
			if sampleErr != nil {
				return
			}
			pos := idx.WorldPosition(c)

			isBlocked, err := oracle.Blocked(pos, cfg.ObstacleReach)
			if err != nil {
				sampleErr = fmt.Errorf("sampling obstacle at %s: %w", c, err)
				return
			}
			hasFloor, err := oracle.HasFloor(pos, cfg.FloorReach)
			if err != nil {
				sampleErr = fmt.Errorf("sampling floor at %s: %w", c, err)
				return
			}

			n.walkable = !isBlocked && hasFloor
			if !n.walkable {
				blocked++
			}
		})
		if sampleErr != nil {
			return nil, sampleErr
		}
	}

	p.links = make([]Link, 0, len(links))
	for i, l := range links {
		if !p.isValid(l.A) || !p.isValid(l.B) {
			return nil, fmt.Errorf("link %d %s-%s: %w", i, l.A, l.B, grid.ErrOutOfBounds)
		}
		p.links = append(p.links, l)
		p.linksByCell[l.A] = append(p.linksByCell[l.A], i)
		if l.B != l.A {
			p.linksByCell[l.B] = append(p.linksByCell[l.B], i)
		}
	}

	slog.Debug("navigation grid ready",
		"width", cfg.Width,
		"height", cfg.Height,
		"floors", cfg.Floors,
		"blocked", blocked,
		"links", len(p.links))

	return p, nil
}

// Dimensions returns width, height and floor count.
func (p *Planner) Dimensions() (width, height, floors int) {
	return p.cfg.Width, p.cfg.Height, p.cfg.Floors
}

// Config returns the configuration the planner was built with.
func (p *Planner) Config() Config {
	return p.cfg
}

// Links returns a copy of the traversal links.
func (p *Planner) Links() []Link {
	out := make([]Link, len(p.links))
	copy(out, p.links)
	return out
}

// IsValid reports whether c lies inside the grid.
func (p *Planner) IsValid(c grid.Coord) bool {
	return p.isValid(c)
}

func (p *Planner) isValid(c grid.Coord) bool {
	return c.Floor >= 0 && c.Floor < len(p.floors) && p.floors[c.Floor].IsValid(c)
}

func (p *Planner) node(c grid.Coord) (*Node, error) {
	if c.Floor < 0 || c.Floor >= len(p.floors) {
		return nil, fmt.Errorf("node %s: %w", c, grid.ErrOutOfBounds)
	}
	return p.floors[c.Floor].Get(c)
}

// IsWalkable reports whether c can be used as a waypoint.
func (p *Planner) IsWalkable(c grid.Coord) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	n, err := p.node(c)
	if err != nil {
		return false, err
	}
	return n.walkable, nil
}

// SetWalkable changes the walkability of a single cell, e.g. for dynamic obstacles.
func (p *Planner) SetWalkable(c grid.Coord, walkable bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	n, err := p.node(c)
	if err != nil {
		return err
	}
	n.walkable = walkable
	return nil
}

// HasPath reports whether goal is reachable from start.
func (p *Planner) HasPath(start, goal grid.Coord) (bool, error) {
	path, err := p.FindPath(start, goal)
	if err != nil {
		return false, err
	}
	return path.Found(), nil
}

// PathLength returns the cost of the shortest path. ok is false when no path
// exists, which keeps "unreachable" apart from the zero cost of start == goal.
func (p *Planner) PathLength(start, goal grid.Coord) (cost int, ok bool, err error) {
	path, err := p.FindPath(start, goal)
	if err != nil {
		return 0, false, err
	}
	return path.Cost, path.Found(), nil
}

// WorldToGrid returns the cell containing a world position. The floor is the
// nearest multiple of the floor height.
func (p *Planner) WorldToGrid(pos grid.Vec3) (grid.Coord, error) {
	floor := 0
	if p.cfg.FloorHeight > 0 {
		floor = grid.RoundHalfEven(pos.Y / p.cfg.FloorHeight)
	}
	if floor < 0 || floor >= len(p.floors) {
		return grid.Coord{}, fmt.Errorf("world position %v on floor %d: %w", pos, floor, grid.ErrOutOfBounds)
	}

	c := p.floors[floor].GridPosition(pos)
	if !p.floors[floor].IsValid(c) {
		return grid.Coord{}, fmt.Errorf("world position %v at %s: %w", pos, c, grid.ErrOutOfBounds)
	}
	return c, nil
}

// GridToWorld returns the world position of a cell.
func (p *Planner) GridToWorld(c grid.Coord) (grid.Vec3, error) {
	if !p.isValid(c) {
		return grid.Vec3{}, fmt.Errorf("grid to world %s: %w", c, grid.ErrOutOfBounds)
	}
	return p.floors[c.Floor].WorldPosition(c), nil
}

// WorldPath converts a path into world-space waypoints.
func (p *Planner) WorldPath(path Path) []grid.Vec3 {
	out := make([]grid.Vec3, 0, len(path.Coords))
	for _, c := range path.Coords {
		if !p.isValid(c) {
			continue
		}
		out = append(out, p.floors[c.Floor].WorldPosition(c))
	}
	return out
}

// Stats describes a single query.
type Stats struct {
	// Expanded is the number of nodes moved to the closed set.
	Expanded int
}

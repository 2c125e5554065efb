package leveldata

import (
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/crypto/blake2b"
	"gopkg.in/yaml.v3"

	"github.com/udisondev/gridpath/internal/geometry"
	"github.com/udisondev/gridpath/internal/grid"
	"github.com/udisondev/gridpath/internal/pathfind"
)

// ErrUnsupportedFormat is returned for level files with an unknown extension.
var ErrUnsupportedFormat = errors.New("unsupported level format")

// ErrInvalidLevel is returned by Validate.
var ErrInvalidLevel = errors.New("invalid level")

// Geometry proportions relative to the floor height.
const (
	slabThickness = 0.05 // floor slab below the walking surface
	solidHeight   = 0.5  // obstacles rise this far above their floor
)

// Level is a declarative level: grid dimensions, walkable areas, obstacles and links.
// Rectangles are given in cells.
type Level struct {
	Name        string  `yaml:"name"`
	Width       int     `yaml:"width"`
	Height      int     `yaml:"height"`
	CellSize    float64 `yaml:"cell_size"`
	Floors      int     `yaml:"floors"`
	FloorHeight float64 `yaml:"floor_height"`

	FloorAreas []Area     `yaml:"floor_areas"`
	Solids     []Area     `yaml:"solids"`
	Links      []LinkSpec `yaml:"links"`
}

// Area is a rectangle of W x D cells starting at (X, Z) on one floor.
type Area struct {
	Floor int `yaml:"floor"`
	X     int `yaml:"x"`
	Z     int `yaml:"z"`
	W     int `yaml:"w"`
	D     int `yaml:"d"`
}

// Cell is a coordinate as written in level files.
type Cell struct {
	X     int `yaml:"x"`
	Z     int `yaml:"z"`
	Floor int `yaml:"floor"`
}

// Coord converts to a grid coordinate.
func (c Cell) Coord() grid.Coord {
	return grid.Coord{X: c.X, Z: c.Z, Floor: c.Floor}
}

// LinkSpec declares a traversal link between two cells.
type LinkSpec struct {
	A Cell `yaml:"a"`
	B Cell `yaml:"b"`
}

// Parse decodes a YAML level and validates it.
func Parse(data []byte) (*Level, error) {
	var lvl Level
	if err := yaml.Unmarshal(data, &lvl); err != nil {
		return nil, fmt.Errorf("parsing level: %w", err)
	}
	if err := lvl.Validate(); err != nil {
		return nil, err
	}
	return &lvl, nil
}

// Marshal encodes the level as YAML.
func (l *Level) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(l)
	if err != nil {
		return nil, fmt.Errorf("encoding level %s: %w", l.Name, err)
	}
	return data, nil
}

// Fingerprint returns a blake2b-256 hex digest of the level's YAML encoding.
// Two levels with identical content share a fingerprint regardless of source format.
func (l *Level) Fingerprint() (string, error) {
	data, err := l.Marshal()
	if err != nil {
		return "", err
	}
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Validate checks dimensions and that every area and link lies inside the grid.
func (l *Level) Validate() error {
	if l.Name == "" {
		return fmt.Errorf("level without name: %w", ErrInvalidLevel)
	}
	if l.Width <= 0 || l.Height <= 0 || l.Floors <= 0 {
		return fmt.Errorf("level %s size %dx%dx%d: %w", l.Name, l.Width, l.Height, l.Floors, ErrInvalidLevel)
	}
	if l.CellSize <= 0 || l.FloorHeight <= 0 {
		return fmt.Errorf("level %s cell %.3f floor %.3f: %w", l.Name, l.CellSize, l.FloorHeight, ErrInvalidLevel)
	}

	for i, a := range l.FloorAreas {
		if !l.areaInBounds(a) {
			return fmt.Errorf("level %s floor area %d %+v: %w", l.Name, i, a, ErrInvalidLevel)
		}
	}
	for i, a := range l.Solids {
		if !l.areaInBounds(a) {
			return fmt.Errorf("level %s solid %d %+v: %w", l.Name, i, a, ErrInvalidLevel)
		}
	}
	for i, ln := range l.Links {
		if !l.cellInBounds(ln.A) || !l.cellInBounds(ln.B) {
			return fmt.Errorf("level %s link %d %+v: %w", l.Name, i, ln, ErrInvalidLevel)
		}
	}
	return nil
}

func (l *Level) areaInBounds(a Area) bool {
	return a.W > 0 && a.D > 0 &&
		a.Floor >= 0 && a.Floor < l.Floors &&
		a.X >= 0 && a.Z >= 0 &&
		a.X+a.W <= l.Width && a.Z+a.D <= l.Height
}

func (l *Level) cellInBounds(c Cell) bool {
	return c.Floor >= 0 && c.Floor < l.Floors &&
		c.X >= 0 && c.X < l.Width &&
		c.Z >= 0 && c.Z < l.Height
}

// World builds the collision geometry. Cell (x, z) is centred on
// (x*CellSize, z*CellSize); floor f has its walking surface at f*FloorHeight.
func (l *Level) World() (*geometry.World, error) {
	half := l.CellSize / 2
	w, err := geometry.NewWorld(geometry.Rect{
		MinX: -half,
		MinZ: -half,
		MaxX: float64(l.Width)*l.CellSize - half,
		MaxZ: float64(l.Height)*l.CellSize - half,
	}, l.CellSize)
	if err != nil {
		return nil, fmt.Errorf("building world for %s: %w", l.Name, err)
	}

	for _, a := range l.FloorAreas {
		top := float64(a.Floor) * l.FloorHeight
		w.AddFloor(geometry.Box{Rect: l.footprint(a), MinY: top - slabThickness*l.FloorHeight, MaxY: top})
	}
	for _, a := range l.Solids {
		base := float64(a.Floor) * l.FloorHeight
		w.AddSolid(geometry.Box{Rect: l.footprint(a), MinY: base, MaxY: base + solidHeight*l.FloorHeight})
	}
	return w, nil
}

func (l *Level) footprint(a Area) geometry.Rect {
	half := l.CellSize / 2
	return geometry.Rect{
		MinX: float64(a.X)*l.CellSize - half,
		MinZ: float64(a.Z)*l.CellSize - half,
		MaxX: float64(a.X+a.W)*l.CellSize - half,
		MaxZ: float64(a.Z+a.D)*l.CellSize - half,
	}
}

// PathLinks returns the declared links as planner links.
func (l *Level) PathLinks() []pathfind.Link {
	links := make([]pathfind.Link, 0, len(l.Links))
	for _, ln := range l.Links {
		links = append(links, pathfind.Link{A: ln.A.Coord(), B: ln.B.Coord()})
	}
	return links
}

// PlannerConfig returns the planner configuration. Sample reaches are given as
// fractions of the floor height.
func (l *Level) PlannerConfig(obstacleReach, floorReach float64) pathfind.Config {
	return pathfind.Config{
		Width:         l.Width,
		Height:        l.Height,
		CellSize:      l.CellSize,
		Floors:        l.Floors,
		FloorHeight:   l.FloorHeight,
		ObstacleReach: obstacleReach * l.FloorHeight,
		FloorReach:    floorReach * l.FloorHeight,
	}
}

// Build creates the geometry for the level and samples it into a planner.
func Build(l *Level, obstacleReach, floorReach float64) (*pathfind.Planner, error) {
	world, err := l.World()
	if err != nil {
		return nil, err
	}
	p, err := pathfind.New(l.PlannerConfig(obstacleReach, floorReach), world, l.PathLinks())
	if err != nil {
		return nil, fmt.Errorf("building planner for %s: %w", l.Name, err)
	}
	return p, nil
}

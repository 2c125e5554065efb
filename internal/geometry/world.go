package geometry

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/solarlune/resolv"

	"github.com/udisondev/gridpath/internal/grid"
)

// ErrOutsideWorld is returned when a sample footprint lies outside the world bounds.
var ErrOutsideWorld = errors.New("position outside world bounds")

// Collision tags.
const (
	TagSolid = "solid"
	TagFloor = "floor"
)

// spaceCellUnits is the resolv cell size; one navigation cell spans this many space units.
const spaceCellUnits = 16

// sampleFraction is the sample footprint edge relative to the navigation cell size.
const sampleFraction = 0.25

// Rect is an axis-aligned footprint on the X/Z plane.
type Rect struct {
	MinX, MinZ float64
	MaxX, MaxZ float64
}

// Box is a footprint with a vertical extent.
type Box struct {
	Rect
	MinY, MaxY float64
}

type span struct {
	minY, maxY float64
}

// World is static level geometry backed by a resolv.Space.
// Boxes live on the X/Z plane in the space; their vertical extent is tracked separately.
// Sampling adds a temporary object to the space, so all access is serialized.
type World struct {
	mu sync.Mutex

	bounds    Rect
	scale     float64
	sampleSize float64
	space     *resolv.Space
	spans     map[*resolv.Object]span

	solids int
	floors int
}

// NewWorld creates an empty world covering bounds. cellSize is the navigation
// cell size in world units and sets the sample footprint.
func NewWorld(bounds Rect, cellSize float64) (*World, error) {
	if cellSize <= 0 || bounds.MaxX <= bounds.MinX || bounds.MaxZ <= bounds.MinZ {
		return nil, fmt.Errorf("new world %+v cell %.3f: %w", bounds, cellSize, grid.ErrInvalidDimensions)
	}

	scale := spaceCellUnits / cellSize
	w := int(math.Ceil((bounds.MaxX - bounds.MinX) * scale))
	h := int(math.Ceil((bounds.MaxZ - bounds.MinZ) * scale))

	return &World{
		bounds:    bounds,
		scale:     scale,
		sampleSize: cellSize * sampleFraction * scale,
		space:     resolv.NewSpace(w, h, spaceCellUnits, spaceCellUnits),
		spans:     make(map[*resolv.Object]span),
	}, nil
}

// AddSolid adds an obstacle box.
func (w *World) AddSolid(b Box) {
	w.add(b, TagSolid)
	w.solids++
}

// AddFloor adds a walkable surface. The surface is the top of the box.
func (w *World) AddFloor(b Box) {
	w.add(b, TagFloor)
	w.floors++
}

func (w *World) add(b Box, tag string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	x, z := w.toSpace(b.MinX, b.MinZ)
	obj := resolv.NewObject(x, z, (b.MaxX-b.MinX)*w.scale, (b.MaxZ-b.MinZ)*w.scale, tag)
	w.space.Add(obj)
	w.spans[obj] = span{minY: math.Min(b.MinY, b.MaxY), maxY: math.Max(b.MinY, b.MaxY)}
}

// Counts returns the number of solid and floor boxes.
func (w *World) Counts() (solids, floors int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.solids, w.floors
}

// Blocked reports whether a solid box overlaps the sample footprint at pos
// within the vertical span [pos.Y-reach, pos.Y+reach].
func (w *World) Blocked(pos grid.Vec3, reach float64) (bool, error) {
	return w.sample(pos, reach, TagSolid)
}

// HasFloor reports whether a floor box overlaps the sample footprint at pos
// within the vertical span [pos.Y-reach, pos.Y+reach].
func (w *World) HasFloor(pos grid.Vec3, reach float64) (bool, error) {
	return w.sample(pos, reach, TagFloor)
}

func (w *World) sample(pos grid.Vec3, reach float64, tag string) (bool, error) {
	if pos.X < w.bounds.MinX || pos.X > w.bounds.MaxX || pos.Z < w.bounds.MinZ || pos.Z > w.bounds.MaxZ {
		return false, fmt.Errorf("sample %s at %v: %w", tag, pos, ErrOutsideWorld)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	x, z := w.toSpace(pos.X, pos.Z)
	half := w.sampleSize / 2
	sample := resolv.NewObject(x-half, z-half, w.sampleSize, w.sampleSize)
	w.space.Add(sample)
	defer w.space.Remove(sample)

	collision := sample.Check(0, 0, tag)
	if collision == nil {
		return false, nil
	}

	low, high := pos.Y-reach, pos.Y+reach
	for _, obj := range collision.Objects {
		if obj == sample || !overlaps(sample, obj) {
			continue
		}
		s, ok := w.spans[obj]
		if !ok {
			continue
		}
		if s.maxY >= low && s.minY <= high {
			return true, nil
		}
	}
	return false, nil
}

func (w *World) toSpace(x, z float64) (float64, float64) {
	return (x - w.bounds.MinX) * w.scale, (z - w.bounds.MinZ) * w.scale
}

// overlaps is a strict AABB test; boxes that only touch do not overlap.
// resolv's Check reports everything sharing a space cell, which is coarser.
func overlaps(a, b *resolv.Object) bool {
	return a.X < b.X+b.W && b.X < a.X+a.W &&
		a.Y < b.Y+b.H && b.Y < a.Y+a.H
}

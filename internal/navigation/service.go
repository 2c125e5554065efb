package navigation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/udisondev/gridpath/internal/config"
	"github.com/udisondev/gridpath/internal/db"
	"github.com/udisondev/gridpath/internal/grid"
	"github.com/udisondev/gridpath/internal/level"
	"github.com/udisondev/gridpath/internal/leveldata"
	"github.com/udisondev/gridpath/internal/pathfind"
)

// OverrideStore persists runtime walkability changes.
type OverrideStore interface {
	Set(ctx context.Context, level string, c grid.Coord, walkable bool) error
	Clear(ctx context.Context, level string, c grid.Coord) error
	LoadAll(ctx context.Context, level string) ([]db.Override, error)
}

// Option configures a Service.
type Option func(*Service)

// WithStore persists walkability changes in store.
func WithStore(store OverrideStore) Option {
	return func(s *Service) {
		s.store = store
	}
}

// WithMetrics records query metrics.
func WithMetrics(m *Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// CellInfo is a snapshot of one cell.
type CellInfo struct {
	Coord        grid.Coord
	Walkable     bool
	Units        []level.UnitID
	Interactable string
}

// Service serves path and move range queries for one level.
// The level can be replaced at runtime with Reload.
type Service struct {
	mu sync.Mutex

	cfg     config.Planner
	level   *leveldata.Level
	planner *pathfind.Planner
	units   *level.Grid

	// overrides are walkability changes made since setup, reapplied on Reload.
	overrides map[grid.Coord]bool
	// base holds the sampled walkability of every overridden cell.
	base map[grid.Coord]bool

	store   OverrideStore
	metrics *Metrics
}

// NewService builds the planner and occupancy grid for lvl.
func NewService(lvl *leveldata.Level, cfg config.Planner, opts ...Option) (*Service, error) {
	s := &Service{
		cfg:       cfg,
		overrides: make(map[grid.Coord]bool),
		base:      make(map[grid.Coord]bool),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	planner, units, err := s.build(lvl)
	if err != nil {
		return nil, err
	}
	s.level, s.planner, s.units = lvl, planner, units

	slog.Info("level loaded", "name", lvl.Name, "width", lvl.Width, "height", lvl.Height, "floors", lvl.Floors)
	return s, nil
}

func (s *Service) build(lvl *leveldata.Level) (*pathfind.Planner, *level.Grid, error) {
	planner, err := leveldata.Build(lvl, s.cfg.ObstacleReach, s.cfg.FloorReach)
	if err != nil {
		return nil, nil, err
	}
	units, err := level.NewGrid(planner.Config(), level.WithStepCost(s.cfg.MoveStepCost))
	if err != nil {
		return nil, nil, fmt.Errorf("building level grid for %s: %w", lvl.Name, err)
	}
	units.OnUnitMoved(func(ev level.UnitMoved) {
		s.metrics.unitMoved()
		slog.Debug("unit moved", "unit", ev.Unit, "from", ev.From.String(), "to", ev.To.String())
	})
	return planner, units, nil
}

// LevelName returns the name of the served level.
func (s *Service) LevelName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.level.Name
}

// Dimensions returns width, height and floor count of the served level.
func (s *Service) Dimensions() (width, height, floors int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.planner.Dimensions()
}

// Links returns the traversal links of the served level.
func (s *Service) Links() []pathfind.Link {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.planner.Links()
}

// IsWalkable reports whether c can be used as a waypoint.
func (s *Service) IsWalkable(c grid.Coord) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.planner.IsWalkable(c)
}

// FindPath returns the shortest path between two cells.
func (s *Service) FindPath(start, goal grid.Coord) (pathfind.Path, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.findPath(start, goal)
}

func (s *Service) findPath(start, goal grid.Coord) (pathfind.Path, error) {
	began := time.Now()
	path, stats, err := s.planner.Search(start, goal)
	elapsed := time.Since(began)

	switch {
	case err != nil:
		s.metrics.observeQuery(resultError, 0, 0, elapsed)
	case path.Found():
		s.metrics.observeQuery(resultFound, path.Cost, stats.Expanded, elapsed)
	default:
		s.metrics.observeQuery(resultNotFound, 0, stats.Expanded, elapsed)
	}
	return path, err
}

// Waypoints converts a path of the served level into world positions.
func (s *Service) Waypoints(path pathfind.Path) []grid.Vec3 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.planner.WorldPath(path)
}

// WorldPath finds a path between two world positions and returns world waypoints.
// The result is empty when no path exists.
func (s *Service) WorldPath(from, to grid.Vec3) ([]grid.Vec3, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start, err := s.planner.WorldToGrid(from)
	if err != nil {
		return nil, fmt.Errorf("path start: %w", err)
	}
	goal, err := s.planner.WorldToGrid(to)
	if err != nil {
		return nil, fmt.Errorf("path goal: %w", err)
	}

	path, err := s.findPath(start, goal)
	if err != nil {
		return nil, err
	}
	return s.planner.WorldPath(path), nil
}

// SetWalkable changes a cell's walkability and persists it when a store is set.
// The in-memory change is kept even if persisting fails.
func (s *Service) SetWalkable(ctx context.Context, c grid.Coord, walkable bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.planner.IsWalkable(c)
	if err != nil {
		return err
	}
	if _, ok := s.base[c]; !ok {
		s.base[c] = current
	}
	if err := s.planner.SetWalkable(c, walkable); err != nil {
		return err
	}
	s.overrides[c] = walkable
	s.metrics.walkabilityChanged()

	if s.store == nil {
		return nil
	}
	if err := s.store.Set(ctx, s.level.Name, c, walkable); err != nil {
		return fmt.Errorf("persisting walkability of %s: %w", c, err)
	}
	return nil
}

// ClearWalkable drops the override of a cell, restoring its sampled walkability,
// and removes it from the store.
func (s *Service) ClearWalkable(ctx context.Context, c grid.Coord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.planner.IsValid(c) {
		return fmt.Errorf("clear walkability %s: %w", c, grid.ErrOutOfBounds)
	}
	if base, ok := s.base[c]; ok {
		if err := s.planner.SetWalkable(c, base); err != nil {
			return err
		}
		delete(s.base, c)
		delete(s.overrides, c)
		s.metrics.walkabilityChanged()
	}

	if s.store == nil {
		return nil
	}
	if err := s.store.Clear(ctx, s.level.Name, c); err != nil {
		return fmt.Errorf("clearing walkability of %s: %w", c, err)
	}
	return nil
}

// RestoreOverrides applies the stored overrides of the current level.
// Overrides outside the grid are skipped. Returns how many were applied.
func (s *Service) RestoreOverrides(ctx context.Context) (int, error) {
	if s.store == nil {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored, err := s.store.LoadAll(ctx, s.level.Name)
	if err != nil {
		return 0, fmt.Errorf("loading overrides for %s: %w", s.level.Name, err)
	}
	for _, o := range stored {
		s.overrides[o.Coord] = o.Walkable
	}
	return applyOverrides(s.planner, s.level.Name, s.overrides, s.base), nil
}

// applyOverrides sets every override on planner, first recording the cell's
// current walkability in base unless base already has it.
func applyOverrides(planner *pathfind.Planner, name string, overrides, base map[grid.Coord]bool) int {
	applied := 0
	for c, walkable := range overrides {
		current, err := planner.IsWalkable(c)
		if err != nil {
			if errors.Is(err, grid.ErrOutOfBounds) {
				slog.Warn("skipping override outside level", "level", name, "cell", c.String())
				continue
			}
			slog.Error("applying override", "level", name, "cell", c.String(), "err", err)
			continue
		}
		if _, ok := base[c]; !ok {
			base[c] = current
		}
		if err := planner.SetWalkable(c, walkable); err != nil {
			slog.Error("applying override", "level", name, "cell", c.String(), "err", err)
			continue
		}
		applied++
	}
	return applied
}

// MoveTargets lists the cells a unit at from can reach within maxDistance steps.
func (s *Service) MoveTargets(from grid.Coord, maxDistance int) ([]grid.Coord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.units.MoveTargets(s.planner, from, maxDistance)
}

// AddUnit places a unit on a cell.
func (s *Service) AddUnit(c grid.Coord, id level.UnitID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.units.AddUnit(c, id)
}

// RemoveUnit takes a unit off a cell.
func (s *Service) RemoveUnit(c grid.Coord, id level.UnitID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.units.RemoveUnit(c, id)
}

// MoveUnit moves a unit between cells.
func (s *Service) MoveUnit(id level.UnitID, from, to grid.Coord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.units.MoveUnit(id, from, to)
}

// SetInteractable attaches a named interactable to a cell. An empty name clears it.
func (s *Service) SetInteractable(c grid.Coord, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.units.SetInteractable(c, name)
}

// Cell returns walkability, occupants and interactable of a cell.
func (s *Service) Cell(c grid.Coord) (CellInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	walkable, err := s.planner.IsWalkable(c)
	if err != nil {
		return CellInfo{}, err
	}
	units, err := s.units.Units(c)
	if err != nil {
		return CellInfo{}, err
	}
	name, _, err := s.units.Interactable(c)
	if err != nil {
		return CellInfo{}, err
	}
	return CellInfo{Coord: c, Walkable: walkable, Units: units, Interactable: name}, nil
}

// Reload swaps in a new level declaration. Overrides of the same level are
// reapplied; a different level starts from its stored overrides. Unit
// occupancy survives only when the grid dimensions are unchanged.
func (s *Service) Reload(ctx context.Context, lvl *leveldata.Level) error {
	planner, units, err := s.build(lvl)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	overrides := s.overrides
	if lvl.Name != s.level.Name {
		overrides = make(map[grid.Coord]bool)
		if s.store != nil {
			stored, err := s.store.LoadAll(ctx, lvl.Name)
			if err != nil {
				return fmt.Errorf("loading overrides for %s: %w", lvl.Name, err)
			}
			for _, o := range stored {
				overrides[o.Coord] = o.Walkable
			}
		}
	}
	base := make(map[grid.Coord]bool, len(overrides))
	applied := applyOverrides(planner, lvl.Name, overrides, base)

	if sameDimensions(s.planner, planner) {
		units = s.units
	}
	s.level, s.planner, s.units = lvl, planner, units
	s.overrides, s.base = overrides, base

	slog.Info("level reloaded", "name", lvl.Name, "overrides", applied)
	return nil
}

func sameDimensions(a, b *pathfind.Planner) bool {
	aw, ah, af := a.Dimensions()
	bw, bh, bf := b.Dimensions()
	return aw == bw && ah == bh && af == bf
}

package navigation

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/gridpath/internal/config"
	"github.com/udisondev/gridpath/internal/grid"
	"github.com/udisondev/gridpath/internal/level"
	"github.com/udisondev/gridpath/internal/leveldata"
	"github.com/udisondev/gridpath/internal/pathfind"
	"github.com/udisondev/gridpath/internal/testutil"
)

// yard is a 5x5 level with a wall at x=2 open only at z=4.
func yard(name string, width int) *leveldata.Level {
	return &leveldata.Level{
		Name:        name,
		Width:       width,
		Height:      5,
		CellSize:    1,
		Floors:      1,
		FloorHeight: 1,
		FloorAreas:  []leveldata.Area{{Floor: 0, X: 0, Z: 0, W: width, D: 5}},
		Solids:      []leveldata.Area{{Floor: 0, X: 2, Z: 0, W: 1, D: 4}},
	}
}

func c0(x, z int) grid.Coord { return grid.Coord{X: x, Z: z} }

var gap = c0(2, 4)

func setupService(t *testing.T, lvl *leveldata.Level, opts ...Option) (*Service, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	opts = append(opts, WithMetrics(NewMetrics(reg)))
	s, err := NewService(lvl, config.DefaultNavGrid().Planner, opts...)
	require.NoError(t, err)
	return s, reg
}

// metricValue returns a counter value or a histogram sample count.
func metricValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)

	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	metrics:
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
					continue metrics
				}
			}
			if c := m.GetCounter(); c != nil {
				return c.GetValue()
			}
			if h := m.GetHistogram(); h != nil {
				return float64(h.GetSampleCount())
			}
		}
	}
	return 0
}

func TestServiceFindPath(t *testing.T) {
	s, reg := setupService(t, yard("yard", 5))

	path, err := s.FindPath(c0(0, 0), c0(4, 0))
	require.NoError(t, err)
	require.True(t, path.Found())
	assert.Contains(t, path.Coords, gap)

	assert.Equal(t, 1.0, metricValue(t, reg, "gridpath_path_queries_total", map[string]string{"result": "found"}))
	assert.Equal(t, 1.0, metricValue(t, reg, "gridpath_path_cost", nil))
	assert.Equal(t, 1.0, metricValue(t, reg, "gridpath_query_duration_seconds", nil))
	assert.Equal(t, 1.0, metricValue(t, reg, "gridpath_expanded_nodes", nil))

	_, err = s.FindPath(c0(0, 0), c0(9, 9))
	assert.ErrorIs(t, err, grid.ErrOutOfBounds)
	assert.Equal(t, 1.0, metricValue(t, reg, "gridpath_path_queries_total", map[string]string{"result": "error"}))
}

func TestServiceSetWalkablePersists(t *testing.T) {
	store := newMemoryStore()
	s, reg := setupService(t, yard("yard", 5), WithStore(store))
	ctx := context.Background()

	require.NoError(t, s.SetWalkable(ctx, gap, false))

	path, err := s.FindPath(c0(0, 0), c0(4, 0))
	require.NoError(t, err)
	assert.False(t, path.Found())

	assert.Equal(t, 1.0, metricValue(t, reg, "gridpath_path_queries_total", map[string]string{"result": "not_found"}))
	assert.Equal(t, 1.0, metricValue(t, reg, "gridpath_walkability_changes_total", nil))
	assert.Equal(t, 0.0, metricValue(t, reg, "gridpath_path_cost", nil))

	stored, err := store.LoadAll(ctx, "yard")
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, gap, stored[0].Coord)
	assert.False(t, stored[0].Walkable)
}

func TestServiceSetWalkableStoreError(t *testing.T) {
	store := newMemoryStore()
	store.Err = testutil.ErrSimulated
	s, _ := setupService(t, yard("yard", 5), WithStore(store))

	err := s.SetWalkable(context.Background(), gap, false)
	assert.ErrorIs(t, err, testutil.ErrSimulated)

	ok, err := s.IsWalkable(gap)
	require.NoError(t, err)
	assert.False(t, ok, "in-memory change is kept")
}

func TestServiceSetWalkableOutOfBounds(t *testing.T) {
	store := newMemoryStore()
	s, _ := setupService(t, yard("yard", 5), WithStore(store))

	err := s.SetWalkable(context.Background(), c0(7, 0), false)
	assert.ErrorIs(t, err, grid.ErrOutOfBounds)
	assert.Equal(t, 0, store.Sets())
}

func TestServiceRestoreOverrides(t *testing.T) {
	store := newMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "yard", gap, false))
	require.NoError(t, store.Set(ctx, "yard", c0(2, 0), true))
	require.NoError(t, store.Set(ctx, "yard", c0(40, 0), true))

	s, _ := setupService(t, yard("yard", 5), WithStore(store))

	applied, err := s.RestoreOverrides(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, applied, "the cell outside the level is skipped")

	path, err := s.FindPath(c0(0, 0), c0(4, 0))
	require.NoError(t, err)
	require.True(t, path.Found())
	assert.Contains(t, path.Coords, c0(2, 0))
	assert.NotContains(t, path.Coords, gap)
}

func TestServiceRestoreOverridesWithoutStore(t *testing.T) {
	s, _ := setupService(t, yard("yard", 5))

	applied, err := s.RestoreOverrides(context.Background())
	require.NoError(t, err)
	assert.Zero(t, applied)
}

func TestServiceRestoreOverridesError(t *testing.T) {
	store := newMemoryStore()
	store.Err = testutil.ErrSimulated
	s, _ := setupService(t, yard("yard", 5), WithStore(store))

	_, err := s.RestoreOverrides(context.Background())
	assert.ErrorIs(t, err, testutil.ErrSimulated)
}

func TestServiceReloadKeepsOverrides(t *testing.T) {
	s, _ := setupService(t, yard("yard", 5))
	ctx := context.Background()

	require.NoError(t, s.SetWalkable(ctx, gap, false))
	require.NoError(t, s.AddUnit(c0(0, 0), "scout"))

	require.NoError(t, s.Reload(ctx, yard("yard", 5)))

	ok, err := s.IsWalkable(gap)
	require.NoError(t, err)
	assert.False(t, ok)

	cell, err := s.Cell(c0(0, 0))
	require.NoError(t, err)
	assert.Equal(t, []level.UnitID{"scout"}, cell.Units)
}

func TestServiceReloadResizes(t *testing.T) {
	s, _ := setupService(t, yard("yard", 5))
	ctx := context.Background()
	require.NoError(t, s.AddUnit(c0(0, 0), "scout"))

	require.NoError(t, s.Reload(ctx, yard("yard", 7)))

	w, _, _ := s.Dimensions()
	assert.Equal(t, 7, w)

	cell, err := s.Cell(c0(0, 0))
	require.NoError(t, err)
	assert.Empty(t, cell.Units, "occupancy is reset when dimensions change")

	path, err := s.FindPath(c0(0, 0), c0(6, 0))
	require.NoError(t, err)
	assert.True(t, path.Found())
}

func TestServiceReloadOtherLevel(t *testing.T) {
	store := newMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "annex", gap, false))

	s, _ := setupService(t, yard("yard", 5), WithStore(store))
	require.NoError(t, s.SetWalkable(ctx, c0(0, 1), false))

	require.NoError(t, s.Reload(ctx, yard("annex", 5)))
	assert.Equal(t, "annex", s.LevelName())

	ok, err := s.IsWalkable(c0(0, 1))
	require.NoError(t, err)
	assert.True(t, ok, "overrides of the previous level are dropped")

	ok, err = s.IsWalkable(gap)
	require.NoError(t, err)
	assert.False(t, ok, "stored overrides of the new level are applied")
}

func TestServiceReloadInvalid(t *testing.T) {
	s, _ := setupService(t, yard("yard", 5))

	bad := yard("yard", 7)
	bad.CellSize = 0
	assert.Error(t, s.Reload(context.Background(), bad))

	w, _, _ := s.Dimensions()
	assert.Equal(t, 5, w, "failed reload keeps the old level")
}

func TestServiceWorldPath(t *testing.T) {
	s, _ := setupService(t, yard("yard", 5))

	waypoints, err := s.WorldPath(grid.Vec3{X: 0, Z: 0}, grid.Vec3{X: 0.2, Z: 2.1})
	require.NoError(t, err)
	assert.Equal(t, []grid.Vec3{{X: 0, Z: 0}, {X: 0, Z: 1}, {X: 0, Z: 2}}, waypoints)

	_, err = s.WorldPath(grid.Vec3{X: -3}, grid.Vec3{})
	assert.ErrorIs(t, err, grid.ErrOutOfBounds)
}

func TestServiceMoveTargets(t *testing.T) {
	s, _ := setupService(t, yard("yard", 5))
	require.NoError(t, s.AddUnit(c0(1, 2), "ally"))

	targets, err := s.MoveTargets(c0(1, 1), 1)
	require.NoError(t, err)
	// (2,1) is wall, (1,2) is taken.
	assert.Equal(t, []grid.Coord{c0(0, 1), c0(1, 0)}, targets)
}

func TestNewMetricsNilRegisterer(t *testing.T) {
	m := NewMetrics(nil)
	require.NotNil(t, m)

	var nilMetrics *Metrics
	assert.NotPanics(t, func() { nilMetrics.walkabilityChanged() })
}

func TestServiceClearWalkable(t *testing.T) {
	store := newMemoryStore()
	s, reg := setupService(t, yard("yard", 5), WithStore(store))
	ctx := context.Background()
	wall := c0(2, 0)

	require.NoError(t, s.SetWalkable(ctx, gap, false))
	require.NoError(t, s.SetWalkable(ctx, wall, true))

	require.NoError(t, s.ClearWalkable(ctx, gap))
	require.NoError(t, s.ClearWalkable(ctx, wall))

	ok, err := s.IsWalkable(gap)
	require.NoError(t, err)
	assert.True(t, ok, "sampled walkability restored")
	ok, err = s.IsWalkable(wall)
	require.NoError(t, err)
	assert.False(t, ok, "sampled wall restored")

	stored, err := store.LoadAll(ctx, "yard")
	require.NoError(t, err)
	assert.Empty(t, stored)
	assert.Equal(t, 4.0, metricValue(t, reg, "gridpath_walkability_changes_total", nil))

	// Clearing twice is a no-op.
	require.NoError(t, s.ClearWalkable(ctx, gap))
	assert.Equal(t, 4.0, metricValue(t, reg, "gridpath_walkability_changes_total", nil))

	assert.ErrorIs(t, s.ClearWalkable(ctx, c0(9, 9)), grid.ErrOutOfBounds)
}

func TestServiceClearWalkableAfterReload(t *testing.T) {
	s, _ := setupService(t, yard("yard", 5))
	ctx := context.Background()

	require.NoError(t, s.SetWalkable(ctx, gap, false))
	require.NoError(t, s.Reload(ctx, yard("yard", 5)))
	require.NoError(t, s.ClearWalkable(ctx, gap))

	ok, err := s.IsWalkable(gap)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, s.Reload(ctx, yard("yard", 5)))
	ok, err = s.IsWalkable(gap)
	require.NoError(t, err)
	assert.True(t, ok, "cleared override is not reapplied")
}

func TestServiceUnits(t *testing.T) {
	s, reg := setupService(t, yard("yard", 5))

	require.NoError(t, s.AddUnit(c0(0, 0), "scout"))
	require.NoError(t, s.MoveUnit("scout", c0(0, 0), c0(0, 1)))
	require.NoError(t, s.SetInteractable(c0(0, 1), "lever"))
	assert.Equal(t, 1.0, metricValue(t, reg, "gridpath_unit_moves_total", nil))

	cell, err := s.Cell(c0(0, 1))
	require.NoError(t, err)
	assert.Equal(t, CellInfo{
		Coord:        c0(0, 1),
		Walkable:     true,
		Units:        []level.UnitID{"scout"},
		Interactable: "lever",
	}, cell)

	targets, err := s.MoveTargets(c0(0, 0), 1)
	require.NoError(t, err)
	assert.NotContains(t, targets, c0(0, 1), "occupied cell")

	require.NoError(t, s.RemoveUnit(c0(0, 1), "scout"))
	cell, err = s.Cell(c0(0, 1))
	require.NoError(t, err)
	assert.Empty(t, cell.Units)

	_, err = s.Cell(c0(5, 0))
	assert.ErrorIs(t, err, grid.ErrOutOfBounds)
}

func TestServiceWaypointsAndLinks(t *testing.T) {
	lvl := yard("yard", 5)
	lvl.Floors = 2
	lvl.FloorAreas = append(lvl.FloorAreas, leveldata.Area{Floor: 1, X: 0, Z: 0, W: 2, D: 2})
	lvl.Links = []leveldata.LinkSpec{{A: leveldata.Cell{X: 1, Z: 1}, B: leveldata.Cell{X: 1, Z: 1, Floor: 1}}}
	s, _ := setupService(t, lvl)

	assert.Equal(t, []pathfind.Link{{A: c0(1, 1), B: grid.Coord{X: 1, Z: 1, Floor: 1}}}, s.Links())

	path, err := s.FindPath(c0(1, 0), grid.Coord{X: 1, Z: 1, Floor: 1})
	require.NoError(t, err)
	require.True(t, path.Found())
	assert.Equal(t, []grid.Vec3{{X: 1}, {X: 1, Z: 1}, {X: 1, Y: 1, Z: 1}}, s.Waypoints(path))
}

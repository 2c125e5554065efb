package pathfind

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/gridpath/internal/grid"
	"github.com/udisondev/gridpath/internal/testutil"
)

// Setup helpers

func testConfig(width, height, floors int) Config {
	return Config{
		Width:         width,
		Height:        height,
		CellSize:      1,
		Floors:        floors,
		FloorHeight:   1,
		ObstacleReach: DefaultObstacleReach,
		FloorReach:    DefaultFloorReach,
	}
}

func setupPlanner(t *testing.T, cfg Config, oracle Oracle, links ...Link) *Planner {
	t.Helper()
	if oracle == nil {
		oracle = OracleFuncs{}
	}
	p, err := New(cfg, oracle, links)
	require.NoError(t, err)
	return p
}

func c0(x, z int) grid.Coord { return grid.Coord{X: x, Z: z} }

func walkable(t *testing.T, p *Planner, c grid.Coord) bool {
	t.Helper()
	ok, err := p.IsWalkable(c)
	require.NoError(t, err)
	return ok
}

func TestDistance(t *testing.T) {
	tests := []struct {
		name string
		a, b grid.Coord
		want int
	}{
		{"same", c0(2, 2), c0(2, 2), 0},
		{"straight x", c0(0, 0), c0(3, 0), 30},
		{"straight z", c0(0, 4), c0(0, 0), 40},
		{"diagonal", c0(0, 0), c0(4, 4), 56},
		{"mixed", c0(0, 0), c0(2, 5), 2*14 + 3*10},
		{"negative direction", c0(5, 2), c0(0, 0), 2*14 + 3*10},
		{"floors ignored", grid.Coord{X: 1, Z: 1, Floor: 0}, grid.Coord{X: 1, Z: 1, Floor: 3}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Distance(tt.a, tt.b))
			assert.Equal(t, tt.want, Distance(tt.b, tt.a))
		})
	}
}

func TestFindPathSameCell(t *testing.T) {
	p := setupPlanner(t, testConfig(5, 5, 1), nil)

	path, err := p.FindPath(c0(2, 3), c0(2, 3))
	require.NoError(t, err)
	assert.Equal(t, []grid.Coord{c0(2, 3)}, path.Coords)
	assert.Equal(t, 0, path.Cost)

	cost, ok, err := p.PathLength(c0(2, 3), c0(2, 3))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 0, cost)
}

func TestFindPathDiagonal(t *testing.T) {
	p := setupPlanner(t, testConfig(5, 5, 1), nil)

	path, err := p.FindPath(c0(0, 0), c0(4, 4))
	require.NoError(t, err)
	require.True(t, path.Found())
	assert.Equal(t, 56, path.Cost)
	assert.Equal(t, []grid.Coord{c0(0, 0), c0(1, 1), c0(2, 2), c0(3, 3), c0(4, 4)}, path.Coords)
}

func TestFindPathDetour(t *testing.T) {
	oracle := testutil.NewCellOracle(1, 1).Block(testutil.Column(2, 0, 3, 0)...)
	p := setupPlanner(t, testConfig(5, 5, 1), oracle)

	path, err := p.FindPath(c0(0, 0), c0(4, 4))
	require.NoError(t, err)
	require.True(t, path.Found())
	assert.Contains(t, path.Coords, c0(2, 4))
	assert.Equal(t, 68, path.Cost)
	assert.Greater(t, path.Cost, 56)

	for _, c := range path.Coords {
		assert.True(t, walkable(t, p, c), "waypoint %s must be walkable", c)
	}
}

func TestFindPathGoalNotWalkable(t *testing.T) {
	oracle := testutil.NewCellOracle(1, 1).Block(c0(3, 3))
	p := setupPlanner(t, testConfig(5, 5, 1), oracle)

	path, err := p.FindPath(c0(0, 0), c0(3, 3))
	require.NoError(t, err)
	assert.False(t, path.Found())
	assert.Equal(t, 0, path.Cost)

	path, err = p.FindPath(c0(3, 3), c0(3, 3))
	require.NoError(t, err)
	assert.False(t, path.Found())

	_, ok, err := p.PathLength(c0(0, 0), c0(3, 3))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFindPathOpenGridMatchesOctile(t *testing.T) {
	p := setupPlanner(t, testConfig(6, 4, 1), nil)

	for ax := range 6 {
		for az := range 4 {
			for bx := range 6 {
				for bz := range 4 {
					a, b := c0(ax, az), c0(bx, bz)
					path, err := p.FindPath(a, b)
					require.NoError(t, err)
					require.True(t, path.Found(), "%s -> %s", a, b)
					assert.Equal(t, Distance(a, b), path.Cost, "%s -> %s", a, b)
					assert.Equal(t, a, path.Coords[0])
					assert.Equal(t, b, path.Coords[len(path.Coords)-1])
				}
			}
		}
	}
}

func TestFindPathSymmetric(t *testing.T) {
	// A wall with a single gap plus an isolated pocket at (5,0).
	oracle := testutil.NewCellOracle(1, 1).
		Block(testutil.Column(3, 0, 4, 0)...).
		Block(c0(4, 0), c0(4, 1), c0(5, 1))
	p := setupPlanner(t, testConfig(6, 6, 1), oracle)

	for ax := range 6 {
		for az := range 6 {
			for bx := range 6 {
				for bz := range 6 {
					a, b := c0(ax, az), c0(bx, bz)
					// A blocked start may still leave its cell; only compare open cells.
					if !walkable(t, p, a) || !walkable(t, p, b) {
						continue
					}
					ab, err := p.FindPath(a, b)
					require.NoError(t, err)
					ba, err := p.FindPath(b, a)
					require.NoError(t, err)

					assert.Equal(t, ab.Found(), ba.Found(), "%s <-> %s", a, b)
					assert.Equal(t, ab.Cost, ba.Cost, "%s <-> %s", a, b)
				}
			}
		}
	}

	ok, err := p.HasPath(c0(0, 0), c0(5, 0))
	require.NoError(t, err)
	assert.False(t, ok, "pocket is sealed off")
}

func TestSetWalkableCorridor(t *testing.T) {
	p := setupPlanner(t, testConfig(5, 1, 1), nil)

	ok, err := p.HasPath(c0(0, 0), c0(4, 0))
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, p.SetWalkable(c0(2, 0), false))
	ok, err = p.HasPath(c0(0, 0), c0(4, 0))
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, p.SetWalkable(c0(2, 0), true))
	cost, ok, err := p.PathLength(c0(0, 0), c0(4, 0))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 40, cost)
}

func TestFindPathTieBreakInsertionOrder(t *testing.T) {
	p := setupPlanner(t, testConfig(3, 3, 1), nil)

	// (0,0)->(1,0)->(2,1) and (0,0)->(1,1)->(2,1) both cost 24.
	// (1,0) is opened before (1,1), so it wins.
	path, err := p.FindPath(c0(0, 0), c0(2, 1))
	require.NoError(t, err)
	assert.Equal(t, 24, path.Cost)
	assert.Equal(t, []grid.Coord{c0(0, 0), c0(1, 0), c0(2, 1)}, path.Coords)
}

func TestFindPathLinkBetweenFloors(t *testing.T) {
	lower := grid.Coord{X: 0, Z: 0, Floor: 0}
	upper := grid.Coord{X: 0, Z: 0, Floor: 1}

	without := setupPlanner(t, testConfig(3, 3, 2), nil)
	ok, err := without.HasPath(lower, upper)
	require.NoError(t, err)
	assert.False(t, ok, "floors are disconnected without a link")

	p := setupPlanner(t, testConfig(3, 3, 2), nil, Link{A: lower, B: upper})

	path, err := p.FindPath(lower, upper)
	require.NoError(t, err)
	assert.Equal(t, []grid.Coord{lower, upper}, path.Coords)
	assert.Equal(t, 0, path.Cost)

	path, err = p.FindPath(upper, lower)
	require.NoError(t, err)
	assert.Equal(t, []grid.Coord{upper, lower}, path.Coords)
}

func TestFindPathLinkToDistantCell(t *testing.T) {
	from := grid.Coord{X: 0, Z: 0, Floor: 0}
	to := grid.Coord{X: 2, Z: 2, Floor: 1}
	p := setupPlanner(t, testConfig(3, 3, 2), nil, Link{A: from, B: to})

	path, err := p.FindPath(from, to)
	require.NoError(t, err)
	assert.Equal(t, []grid.Coord{from, to}, path.Coords)
	assert.Equal(t, Distance(from, to), path.Cost)

	// Cells on the upper floor are reachable through the link.
	far := grid.Coord{X: 0, Z: 2, Floor: 1}
	ok, err := p.HasPath(c0(1, 0), far)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestFindPathLinkIntoBlockedCell(t *testing.T) {
	upper := grid.Coord{X: 0, Z: 0, Floor: 1}
	oracle := testutil.NewCellOracle(1, 1).Block(upper)
	p := setupPlanner(t, testConfig(3, 3, 2), oracle, Link{A: c0(0, 0), B: upper})

	ok, err := p.HasPath(c0(0, 0), grid.Coord{X: 2, Z: 2, Floor: 1})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFindPathOutOfBounds(t *testing.T) {
	p := setupPlanner(t, testConfig(3, 3, 1), nil)

	tests := []struct {
		name        string
		start, goal grid.Coord
	}{
		{"start x", c0(-1, 0), c0(1, 1)},
		{"goal z", c0(0, 0), c0(1, 3)},
		{"goal floor", c0(0, 0), grid.Coord{X: 1, Z: 1, Floor: 1}},
		{"negative floor", grid.Coord{Floor: -1}, c0(1, 1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.FindPath(tt.start, tt.goal)
			assert.ErrorIs(t, err, grid.ErrOutOfBounds)

			_, err = p.HasPath(tt.start, tt.goal)
			assert.ErrorIs(t, err, grid.ErrOutOfBounds)
		})
	}

	_, err := p.IsWalkable(c0(3, 0))
	assert.ErrorIs(t, err, grid.ErrOutOfBounds)
	assert.ErrorIs(t, p.SetWalkable(c0(0, 5), true), grid.ErrOutOfBounds)
}

func TestFindPathResetsBetweenQueries(t *testing.T) {
	p := setupPlanner(t, testConfig(8, 8, 1), nil)

	first, err := p.FindPath(c0(0, 0), c0(7, 7))
	require.NoError(t, err)
	assert.Equal(t, 98, first.Cost)

	second, err := p.FindPath(c0(7, 0), c0(7, 3))
	require.NoError(t, err)
	assert.Equal(t, 30, second.Cost)
	assert.Equal(t, []grid.Coord{c0(7, 0), c0(7, 1), c0(7, 2), c0(7, 3)}, second.Coords)
}

func TestSearchReportsExpandedNodes(t *testing.T) {
	p := setupPlanner(t, testConfig(8, 8, 1), nil)

	long, longStats, err := p.Search(c0(0, 0), c0(7, 7))
	require.NoError(t, err)
	require.True(t, long.Found())

	short, shortStats, err := p.Search(c0(7, 0), c0(7, 1))
	require.NoError(t, err)
	require.True(t, short.Found())

	assert.Greater(t, longStats.Expanded, shortStats.Expanded, "stats belong to their own query")
	assert.Equal(t, 1, shortStats.Expanded)

	_, stats, err := p.Search(c0(0, 0), c0(0, 0))
	require.NoError(t, err)
	assert.Zero(t, stats.Expanded)
}

func TestWorldPath(t *testing.T) {
	cfg := testConfig(4, 4, 2)
	cfg.CellSize = 2
	cfg.FloorHeight = 3
	p := setupPlanner(t, cfg, nil)

	path, err := p.FindPath(grid.Coord{X: 0, Z: 0, Floor: 1}, grid.Coord{X: 2, Z: 0, Floor: 1})
	require.NoError(t, err)

	world := p.WorldPath(path)
	assert.Equal(t, []grid.Vec3{
		{X: 0, Y: 3, Z: 0},
		{X: 2, Y: 3, Z: 0},
		{X: 4, Y: 3, Z: 0},
	}, world)
}

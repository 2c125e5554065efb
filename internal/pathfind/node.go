package pathfind

import (
	"math"

	"github.com/udisondev/gridpath/internal/grid"
)

// Movement costs. DiagonalCost approximates StraightCost*sqrt(2).
const (
	StraightCost = 10
	DiagonalCost = 14

	infiniteCost = math.MaxInt
)

// Node is the per-cell search state stored in a floor's grid.Index.
// Only the owning Planner mutates it.
type Node struct {
	coord    grid.Coord
	walkable bool

	gCost    int
	hCost    int
	fCost    int
	cameFrom *Node

	// open-set bookkeeping
	seq    uint64
	index  int
	open   bool
	closed bool
}

func newNode(c grid.Coord) Node {
	return Node{coord: c, walkable: true, gCost: infiniteCost, index: -1}
}

// Coord returns the cell this node belongs to.
func (n *Node) Coord() grid.Coord { return n.coord }

// Walkable reports whether the cell can be used as a waypoint.
func (n *Node) Walkable() bool { return n.walkable }

// GCost returns the best known cost from the start of the last query.
func (n *Node) GCost() int { return n.gCost }

// HCost returns the heuristic estimate to the goal of the last query.
func (n *Node) HCost() int { return n.hCost }

// FCost returns GCost + HCost.
func (n *Node) FCost() int { return n.fCost }

// CameFrom returns the predecessor on the best known path, or nil.
func (n *Node) CameFrom() *Node { return n.cameFrom }

func (n *Node) reset() {
	n.gCost = infiniteCost
	n.hCost = 0
	n.fCost = 0
	n.cameFrom = nil
	n.seq = 0
	n.index = -1
	n.open = false
	n.closed = false
}

func (n *Node) setCosts(g, h int) {
	n.gCost = g
	n.hCost = h
	n.fCost = g + h
}

// Distance is the octile distance between two cells on the X/Z plane:
// DiagonalCost per diagonal step plus StraightCost per remaining straight step.
// Floors are ignored.
func Distance(a, b grid.Coord) int {
	dx := absInt(a.X - b.X)
	dz := absInt(a.Z - b.Z)
	return DiagonalCost*min(dx, dz) + StraightCost*absInt(dx-dz)
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

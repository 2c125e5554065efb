package pathfind

import (
	"container/heap"
	"fmt"

	"github.com/udisondev/gridpath/internal/grid"
)

// Path is the result of a query. An empty path means the goal is unreachable.
type Path struct {
	Coords []grid.Coord
	Cost   int
}

// Found reports whether the query reached the goal.
func (p Path) Found() bool {
	return len(p.Coords) > 0
}

// neighbourOffsets lists the 8 geometric neighbours in expansion order.
var neighbourOffsets = [8]grid.Coord{
	{X: -1, Z: 0},
	{X: -1, Z: -1},
	{X: -1, Z: 1},
	{X: 1, Z: 0},
	{X: 1, Z: -1},
	{X: 1, Z: 1},
	{X: 0, Z: -1},
	{X: 0, Z: 1},
}

// FindPath finds the cheapest path from start to goal with A*.
// Returns an empty Path (and nil error) when the goal is unreachable or not walkable.
// Returns ErrOutOfBounds when start or goal lies outside the grid.
//
// Among open nodes with equal FCost the one opened first is expanded first.
func (p *Planner) FindPath(start, goal grid.Coord) (Path, error) {
	path, _, err := p.Search(start, goal)
	return path, err
}

// Search is FindPath that also reports the statistics of this query.
func (p *Planner) Search(start, goal grid.Coord) (Path, Stats, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	startNode, err := p.node(start)
	if err != nil {
		return Path{}, Stats{}, fmt.Errorf("find path from: %w", err)
	}
	goalNode, err := p.node(goal)
	if err != nil {
		return Path{}, Stats{}, fmt.Errorf("find path to: %w", err)
	}

	p.resetSearch()

	if !goalNode.walkable {
		return Path{}, Stats{}, nil
	}

	end := p.astar(startNode, goalNode)
	stats := Stats{Expanded: p.expanded}
	if end == nil {
		return Path{}, stats, nil
	}

	coords := make([]grid.Coord, 0, 32)
	for n := end; n != nil; n = n.cameFrom {
		coords = append(coords, n.coord)
	}
	// Reverse (built from goal back to start)
	for i, j := 0, len(coords)-1; i < j; i, j = i+1, j-1 {
		coords[i], coords[j] = coords[j], coords[i]
	}

	return Path{Coords: coords, Cost: end.fCost}, stats, nil
}

// resetSearch clears the search state of every node on every floor.
func (p *Planner) resetSearch() {
	for _, idx := range p.floors {
		idx.Each(func(_ grid.Coord, n *Node) {
			n.reset()
		})
	}
	p.seq = 0
	p.expanded = 0
}

// astar runs the search and returns the goal node, or nil if the open set empties.
func (p *Planner) astar(start, goal *Node) *Node {
	start.setCosts(0, Distance(start.coord, goal.coord))

	openList := &nodeHeap{}
	p.pushOpen(openList, start)

	for openList.Len() > 0 {
		current := heap.Pop(openList).(*Node)
		current.open = false

		if current == goal {
			return current
		}

		current.closed = true
		p.expanded++

		p.forEachNeighbour(current, func(neighbour *Node) {
			if neighbour.closed || !neighbour.walkable {
				return
			}

			tentative := current.gCost + Distance(current.coord, neighbour.coord)
			if tentative >= neighbour.gCost {
				return
			}

			neighbour.cameFrom = current
			neighbour.setCosts(tentative, Distance(neighbour.coord, goal.coord))

			if neighbour.open {
				heap.Fix(openList, neighbour.index)
				return
			}
			p.pushOpen(openList, neighbour)
		})
	}

	return nil
}

func (p *Planner) pushOpen(h *nodeHeap, n *Node) {
	p.seq++
	n.seq = p.seq
	n.open = true
	heap.Push(h, n)
}

// forEachNeighbour visits in-bounds geometric neighbours on the same floor,
// then the far end of every link touching n, in declaration order.
func (p *Planner) forEachNeighbour(n *Node, fn func(*Node)) {
	idx := p.floors[n.coord.Floor]
	for _, off := range neighbourOffsets {
		c := n.coord.Add(off)
		if !idx.IsValid(c) {
			continue
		}
		fn(idx.At(c))
	}

	for _, li := range p.linksByCell[n.coord] {
		other, ok := p.links[li].Other(n.coord)
		if !ok {
			continue
		}
		fn(p.floors[other.Floor].At(other))
	}
}

// nodeHeap implements container/heap for the open set: min-heap by FCost,
// ties broken by insertion sequence.
type nodeHeap []*Node

func (h nodeHeap) Len() int { return len(h) }
func (h nodeHeap) Less(i, j int) bool {
	if h[i].fCost != h[j].fCost {
		return h[i].fCost < h[j].fCost
	}
	return h[i].seq < h[j].seq
}
func (h nodeHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i]; h[i].index = i; h[j].index = j }
func (h *nodeHeap) Push(x any)   { n := x.(*Node); n.index = len(*h); *h = append(*h, n) }
func (h *nodeHeap) Pop() any {
	old := *h
	n := len(old)
	node := old[n-1]
	old[n-1] = nil // GC
	node.index = -1
	*h = old[:n-1]
	return node
}

package navigation

import (
	"context"
	"sort"
	"sync"

	"github.com/udisondev/gridpath/internal/db"
	"github.com/udisondev/gridpath/internal/grid"
)

// memoryStore is an in-memory OverrideStore.
type memoryStore struct {
	// Err, when set, is returned by every call.
	Err error

	mu     sync.Mutex
	levels map[string]map[grid.Coord]bool
	sets   int
}

// newMemoryStore creates an empty store.
func newMemoryStore() *memoryStore {
	return &memoryStore{
		levels: make(map[string]map[grid.Coord]bool),
	}
}

// Set records the walkability of a cell.
func (m *memoryStore) Set(_ context.Context, level string, c grid.Coord, walkable bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}
	cells, ok := m.levels[level]
	if !ok {
		cells = make(map[grid.Coord]bool)
		m.levels[level] = cells
	}
	cells[c] = walkable
	m.sets++
	return nil
}

// Clear removes the override of a cell.
func (m *memoryStore) Clear(_ context.Context, level string, c grid.Coord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}
	delete(m.levels[level], c)
	return nil
}

// LoadAll returns the overrides of a level ordered by floor, x, z.
func (m *memoryStore) LoadAll(_ context.Context, level string) ([]db.Override, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return nil, m.Err
	}
	var out []db.Override
	for c, walkable := range m.levels[level] {
		out = append(out, db.Override{Coord: c, Walkable: walkable})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Coord, out[j].Coord
		if a.Floor != b.Floor {
			return a.Floor < b.Floor
		}
		if a.X != b.X {
			return a.X < b.X
		}
		return a.Z < b.Z
	})
	return out, nil
}

// Sets returns how many successful Set calls were made.
func (m *memoryStore) Sets() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sets
}

// Package store caches the most recent grid read from the ledger and is the
// single source of truth for the view between syncs.
package store

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ardanlabs/pixelboard/foundation/pixelboard/grid"
)

// Store holds the cached grid. The grid is only ever replaced as a whole so
// readers observe either the old or the new grid, never a mix.
type Store struct {
	size     int
	grid     atomic.Pointer[grid.Grid]
	inflight atomic.Int64

	mu      sync.RWMutex
	gen     uint64
	lastErr error
}

// New constructs a store holding a default grid of the specified size.
func New(size int) (*Store, error) {
	g, err := grid.New(size)
	if err != nil {
		return nil, err
	}

	s := Store{
		size: size,
	}
	s.grid.Store(&g)

	return &s, nil
}

// Size returns N for the N x N grid held by the store.
func (s *Store) Size() int {
	return s.size
}

// ByIndex returns the cell for the specified canonical id.
func (s *Store) ByIndex(id int) (grid.Cell, bool) {
	return s.grid.Load().Cell(id)
}

// ByCoords returns the cell for the specified coordinates.
func (s *Store) ByCoords(x int, y int) (grid.Cell, bool) {
	return s.grid.Load().At(x, y)
}

// Snapshot returns the grid currently held.
func (s *Store) Snapshot() grid.Grid {
	return *s.grid.Load()
}

// ReplaceAll swaps in the new grid. A grid of a different size is rejected.
func (s *Store) ReplaceAll(g grid.Grid) error {
	if g.Size() != s.size || g.Len() != s.size*s.size {
		return fmt.Errorf("replace: got size %d, exp %d: %w", g.Size(), s.size, grid.ErrInvalidSize)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.grid.Store(&g)
	s.gen++
	s.lastErr = nil

	return nil
}

// =============================================================================

// BeginLoad marks the start of a fetch. The store reports loading until every
// started fetch has called EndLoad with the returned generation.
func (s *Store) BeginLoad() uint64 {
	s.inflight.Add(1)

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.gen
}

// EndLoad marks the resolution of a fetch that began at generation gen. A non
// nil error is kept so the view can explain why the grid is stale, unless the
// grid was replaced after that fetch began.
func (s *Store) EndLoad(gen uint64, err error) {
	s.inflight.Add(-1)

	if err == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.gen != gen {
		return
	}
	s.lastErr = err
}

// IsLoading reports whether a fetch is outstanding.
func (s *Store) IsLoading() bool {
	return s.inflight.Load() > 0
}

// LastError returns the error of the most recent failed fetch since the last
// successful replace.
func (s *Store) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.lastErr
}

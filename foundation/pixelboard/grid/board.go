package grid

import "fmt"

// Grid is an ordered collection of exactly size*size cells indexed by
// canonical id. A Grid is immutable, changes produce a new Grid.
type Grid struct {
	size  int
	cells []Cell
}

// New constructs a grid of the specified size where every cell is unowned.
func New(size int) (Grid, error) {
	if size <= 0 {
		return Grid{}, fmt.Errorf("size[%d]: %w", size, ErrInvalidSize)
	}

	cells := make([]Cell, size*size)
	for id := range cells {
		cells[id] = Cell{ID: id, X: id / size, Y: id % size}
	}

	return Grid{size: size, cells: cells}, nil
}

// FromCells constructs a grid from cells provided in canonical id order. The
// id and coordinates of each cell are derived from its position so a ledger
// response can't produce a missing or duplicated id.
func FromCells(size int, cells []Cell) (Grid, error) {
	if size <= 0 {
		return Grid{}, fmt.Errorf("size[%d]: %w", size, ErrInvalidSize)
	}

	if len(cells) != size*size {
		return Grid{}, fmt.Errorf("got %d cells, exp %d: %w", len(cells), size*size, ErrInvalidSize)
	}

	cpy := make([]Cell, len(cells))
	for id, cell := range cells {
		cell.ID = id
		cell.X = id / size
		cell.Y = id % size

		normalized, err := cell.normalize()
		if err != nil {
			return Grid{}, err
		}
		cpy[id] = normalized
	}

	return Grid{size: size, cells: cpy}, nil
}

// Size returns N for this N x N grid.
func (g Grid) Size() int {
	return g.size
}

// Len returns the number of cells in the grid.
func (g Grid) Len() int {
	return len(g.cells)
}

// IsZero reports whether the grid was never constructed.
func (g Grid) IsZero() bool {
	return g.size == 0
}

// Cell returns the cell for the specified canonical id.
func (g Grid) Cell(id int) (Cell, bool) {
	if id < 0 || id >= len(g.cells) {
		return Cell{}, false
	}
	return g.cells[id], true
}

// At returns the cell for the specified coordinates.
func (g Grid) At(x int, y int) (Cell, bool) {
	id, err := CoordsToID(g.size, x, y)
	if err != nil {
		return Cell{}, false
	}
	return g.Cell(id)
}

// Cells returns a copy of the cells in canonical id order.
func (g Grid) Cells() []Cell {
	cpy := make([]Cell, len(g.cells))
	copy(cpy, g.cells)
	return cpy
}

// Owned returns the number of owned cells.
func (g Grid) Owned() int {
	var n int
	for _, cell := range g.cells {
		if cell.IsOwned {
			n++
		}
	}
	return n
}

// With returns a new grid with the cell replaced by id. The receiver is left
// untouched so concurrent readers of the old grid are safe.
func (g Grid) With(cell Cell) (Grid, error) {
	if cell.ID < 0 || cell.ID >= len(g.cells) {
		return Grid{}, fmt.Errorf("id[%d]: %w", cell.ID, ErrInvalidCellIndex)
	}

	cell.X = cell.ID / g.size
	cell.Y = cell.ID % g.size

	cell, err := cell.normalize()
	if err != nil {
		return Grid{}, err
	}

	cells := g.Cells()
	cells[cell.ID] = cell

	return Grid{size: g.size, cells: cells}, nil
}

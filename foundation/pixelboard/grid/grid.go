// Package grid defines the cells of the pixel board and the canonical
// addressing law that maps a cell id to its coordinates and back.
package grid

import (
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Set of error variables for grid construction and addressing.
var (
	ErrInvalidCellIndex = errors.New("invalid cell index")
	ErrInvalidSize      = errors.New("invalid grid size")
	ErrOwnerMissing     = errors.New("owned cell has no owner")
)

// =============================================================================

// Cell represents one purchasable unit of the board. A Cell is a value and is
// never changed in place once it belongs to a Grid.
type Cell struct {
	ID            int            `json:"id"`
	X             int            `json:"x"`
	Y             int            `json:"y"`
	Owner         common.Address `json:"owner"`
	Text          string         `json:"text"`
	ImageURL      string         `json:"image_url"`
	Link          string         `json:"link"`
	IsOwned       bool           `json:"is_owned"`
	PurchaseCount uint64         `json:"purchase_count"`
	PurchaseTime  time.Time      `json:"purchase_time"`
}

// normalize enforces the ownership invariant. An unowned cell carries no
// owner and no display metadata.
func (c Cell) normalize() (Cell, error) {
	if !c.IsOwned {
		c.Owner = common.Address{}
		c.Text = ""
		c.ImageURL = ""
		c.Link = ""
		return c, nil
	}

	if c.Owner == (common.Address{}) {
		return Cell{}, fmt.Errorf("cell[%d]: %w", c.ID, ErrOwnerMissing)
	}

	return c, nil
}

// HasLink reports whether the cell carries a link to visit.
func (c Cell) HasLink() bool {
	return c.Link != ""
}

// =============================================================================

// CoordsToID converts the x, y coordinates into the canonical id for a
// board of the specified size.
func CoordsToID(size int, x int, y int) (int, error) {
	if x < 0 || x >= size || y < 0 || y >= size {
		return 0, fmt.Errorf("coords[%d,%d] size[%d]: %w", x, y, size, ErrInvalidCellIndex)
	}

	return x*size + y, nil
}

// IDToCoords converts the canonical id into x, y coordinates for a board of
// the specified size.
func IDToCoords(size int, id int) (x int, y int, err error) {
	if size <= 0 || id < 0 || id >= size*size {
		return 0, 0, fmt.Errorf("id[%d] size[%d]: %w", id, size, ErrInvalidCellIndex)
	}

	return id / size, id % size, nil
}

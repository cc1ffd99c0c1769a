package ledger

import (
	"context"
	"fmt"
	"math"
	"math/big"

	"github.com/ardanlabs/pixelboard/foundation/pixelboard/grid"
	"github.com/ardanlabs/pixelboard/foundation/pixelboard/store"
)

// Info represents the contract level counters.
type Info struct {
	Size      int    `json:"size"`
	Total     int    `json:"total"`
	TotalSold uint64 `json:"total_sold"`
}

// Reader fetches the grid from the ledger and keeps the store in sync.
type Reader struct {
	backend   Backend
	store     *store.Store
	evHandler EventHandler
}

// NewReader constructs a reader that refreshes the specified store.
func NewReader(backend Backend, store *store.Store, evHandler EventHandler) *Reader {
	ev := func(v string, args ...any) {
		if evHandler != nil {
			evHandler(v, args...)
		}
	}

	return &Reader{
		backend:   backend,
		store:     store,
		evHandler: ev,
	}
}

// FetchAll reads every cell in one call. A response that does not hold
// exactly N x N cells is rejected. Failures are not retried.
func (r *Reader) FetchAll(ctx context.Context) (grid.Grid, error) {
	cells, err := r.backend.AllPixels(ctx)
	if err != nil {
		return grid.Grid{}, fmt.Errorf("fetch all: %w", Unavailable(err))
	}

	g, err := grid.FromCells(r.store.Size(), cells)
	if err != nil {
		return grid.Grid{}, fmt.Errorf("fetch all: %w", Unavailable(err))
	}

	return g, nil
}

// FetchCell reads a single cell.
func (r *Reader) FetchCell(ctx context.Context, id int) (grid.Cell, error) {
	x, y, err := grid.IDToCoords(r.store.Size(), id)
	if err != nil {
		return grid.Cell{}, err
	}

	cell, err := r.backend.Pixel(ctx, id)
	if err != nil {
		return grid.Cell{}, fmt.Errorf("fetch cell[%d]: %w", id, Unavailable(err))
	}

	cell.ID = id
	cell.X = x
	cell.Y = y

	return cell, nil
}

// FetchPrice reads the price required to purchase the cell. The error must be
// honored by callers that intend to pay.
func (r *Reader) FetchPrice(ctx context.Context, id int) (*big.Int, error) {
	if _, _, err := grid.IDToCoords(r.store.Size(), id); err != nil {
		return nil, err
	}

	price, err := r.backend.PixelPrice(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetch price[%d]: %w", id, Unavailable(err))
	}

	if price == nil {
		return nil, fmt.Errorf("fetch price[%d]: %w: no price returned", id, ErrLedgerUnavailable)
	}

	return price, nil
}

// DisplayPrice reads the price for display only. Zero is returned on failure
// and must never be used as the payment for a purchase.
func (r *Reader) DisplayPrice(ctx context.Context, id int) *big.Int {
	price, err := r.FetchPrice(ctx, id)
	if err != nil {
		r.evHandler("ledger: DisplayPrice: id[%d]: WARNING: %s", id, err)
		return new(big.Int)
	}

	return price
}

// Info reads the contract counters.
func (r *Reader) Info(ctx context.Context) (Info, error) {
	total, err := r.backend.TotalPixels(ctx)
	if err != nil {
		return Info{}, fmt.Errorf("info: %w", Unavailable(err))
	}

	sold, err := r.backend.TotalSold(ctx)
	if err != nil {
		return Info{}, fmt.Errorf("info: %w", Unavailable(err))
	}

	return Info{
		Size:      r.store.Size(),
		Total:     total,
		TotalSold: sold,
	}, nil
}

// CanvasSize reads N for the N x N grid from the ledger.
func (r *Reader) CanvasSize(ctx context.Context) (int, error) {
	return CanvasSize(ctx, r.backend)
}

// CanvasSize reads the total number of cells from the backend and returns N
// for the N x N grid. A total that is not a perfect square is rejected.
func CanvasSize(ctx context.Context, backend Backend) (int, error) {
	total, err := backend.TotalPixels(ctx)
	if err != nil {
		return 0, fmt.Errorf("canvas size: %w", Unavailable(err))
	}

	size := int(math.Sqrt(float64(total)))
	for size*size < total {
		size++
	}
	for size*size > total {
		size--
	}

	if size <= 0 || size*size != total {
		return 0, fmt.Errorf("canvas size: total %d: %w", total, grid.ErrInvalidSize)
	}

	return size, nil
}

// Refresh fetches the whole grid and replaces the store's grid with it. No
// diffing is performed, the ledger is authoritative. When refreshes overlap
// the last one to resolve wins.
func (r *Reader) Refresh(ctx context.Context) (err error) {
	r.evHandler("ledger: Refresh: started")
	defer r.evHandler("ledger: Refresh: completed")

	gen := r.store.BeginLoad()
	defer func() {
		r.store.EndLoad(gen, err)
	}()

	g, err := r.FetchAll(ctx)
	if err != nil {
		r.evHandler("ledger: Refresh: ERROR: %s", err)
		return err
	}

	if err := r.store.ReplaceAll(g); err != nil {
		r.evHandler("ledger: Refresh: ERROR: %s", err)
		return err
	}

	r.evHandler("ledger: Refresh: owned[%d] of [%d]", g.Owned(), g.Len())

	return nil
}

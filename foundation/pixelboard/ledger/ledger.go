// Package ledger defines the read and write surface of the remote pixel
// board contract and provides the Reader that keeps the local store in sync
// with it.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ardanlabs/pixelboard/foundation/pixelboard/grid"
	"github.com/ethereum/go-ethereum/common"
)

// Set of error variables for ledger calls. An invalid cell index is reported
// with grid.ErrInvalidCellIndex.
var (
	ErrLedgerUnavailable   = errors.New("ledger unavailable")
	ErrInsufficientPayment = errors.New("insufficient payment")
	ErrNotOwner            = errors.New("not the cell owner")
	ErrEmptyText           = errors.New("empty text")
)

// EventHandler defines a function that is called when events occur in the
// processing of ledger reads and writes.
type EventHandler func(v string, args ...any)

// =============================================================================

// Backend represents the read only calls of the ledger contract.
type Backend interface {
	TotalPixels(ctx context.Context) (int, error)
	AllPixels(ctx context.Context) ([]grid.Cell, error)
	Pixel(ctx context.Context, id int) (grid.Cell, error)
	PixelPrice(ctx context.Context, id int) (*big.Int, error)
	TotalSold(ctx context.Context) (uint64, error)
}

// Kind identifies the ledger write being performed.
type Kind int

// Set of ledger writes.
const (
	KindPurchase Kind = iota + 1
	KindUpdate
)

// String implements the fmt.Stringer interface.
func (k Kind) String() string {
	switch k {
	case KindPurchase:
		return "purchase"
	case KindUpdate:
		return "update"
	}
	return "unknown"
}

// MarshalText implements the encoding.TextMarshaler interface.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements the encoding.TextUnmarshaler interface.
func (k *Kind) UnmarshalText(data []byte) error {
	switch string(data) {
	case "purchase":
		*k = KindPurchase
	case "update":
		*k = KindUpdate
	default:
		return fmt.Errorf("unknown write kind %q", data)
	}
	return nil
}

// Write represents a call to purchasePixel or updatePixel. Value is the
// payment attached to a purchase and is ignored for an update.
type Write struct {
	Kind     Kind
	CellID   int
	Text     string
	ImageURL string
	Link     string
	Value    *big.Int
}

// TxHandle identifies a transaction accepted by the ledger.
type TxHandle struct {
	Hash common.Hash    `json:"hash"`
	From common.Address `json:"from"`
	Kind Kind           `json:"kind"`
}

// Receipt is the ledger's confirmation of a transaction.
type Receipt struct {
	Hash    common.Hash `json:"hash"`
	Block   uint64      `json:"block"`
	GasUsed uint64      `json:"gas_used"`
	Success bool        `json:"success"`
}

// Wallet represents the write calls of the ledger contract bound to the
// account that signs them.
type Wallet interface {
	Address() common.Address
	Send(ctx context.Context, w Write) (TxHandle, error)
	Confirm(ctx context.Context, h TxHandle) (Receipt, error)
}

// =============================================================================

// EventKind identifies the contract event observed.
type EventKind int

// Set of contract events.
const (
	EventPurchased EventKind = iota + 1
	EventUpdated
)

// Event represents a PixelPurchased or PixelUpdated contract event.
type Event struct {
	Kind          EventKind
	CellID        int
	Account       common.Address
	Text          string
	ImageURL      string
	Link          string
	Price         *big.Int
	PurchaseCount uint64
	Block         uint64
}

// Watcher represents a source of contract events. Watch blocks until the
// context is cancelled or the subscription fails.
type Watcher interface {
	Watch(ctx context.Context, events chan<- Event) error
}

// =============================================================================

// Unavailable wraps the error as a ledger failure unless it already belongs
// to the error taxonomy of the contract.
func Unavailable(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrLedgerUnavailable),
		errors.Is(err, ErrInsufficientPayment),
		errors.Is(err, ErrNotOwner),
		errors.Is(err, ErrEmptyText),
		errors.Is(err, grid.ErrInvalidCellIndex):
		return err
	}

	return fmt.Errorf("%w: %w", ErrLedgerUnavailable, err)
}

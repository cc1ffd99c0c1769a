// Package contract implements the ledger interfaces against the PixelBoard
// smart contract through a go-ethereum JSON-RPC backend.
package contract

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"math"
	"math/big"
	"strings"
	"time"

	"github.com/ardanlabs/pixelboard/foundation/pixelboard/grid"
	"github.com/ardanlabs/pixelboard/foundation/pixelboard/ledger"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

//go:embed pixelboard.abi.json
var abiJSON string

// Backend represents the node calls required by the contract.
type Backend interface {
	bind.ContractBackend
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	ChainID(ctx context.Context) (*big.Int, error)
}

// pixel mirrors the Pixel struct of the contract. The field names must match
// the camel cased names of the tuple components for abi conversion.
type pixel struct {
	Owner         common.Address
	Text          string
	ImageUrl      string
	Link          string
	IsOwned       bool
	PurchaseCount *big.Int
	PurchaseTime  *big.Int
}

func (p pixel) toCell() grid.Cell {
	cell := grid.Cell{
		Owner:    p.Owner,
		Text:     p.Text,
		ImageURL: p.ImageUrl,
		Link:     p.Link,
		IsOwned:  p.IsOwned,
	}

	if p.PurchaseCount != nil {
		cell.PurchaseCount = p.PurchaseCount.Uint64()
	}

	if p.PurchaseTime != nil && p.PurchaseTime.Sign() > 0 {
		cell.PurchaseTime = time.Unix(p.PurchaseTime.Int64(), 0).UTC()
	}

	return cell
}

// =============================================================================

// Contract provides access to a deployed PixelBoard contract.
type Contract struct {
	address common.Address
	abi     abi.ABI
	backend Backend
	bound   *bind.BoundContract
}

// New constructs access to the contract deployed at the specified address.
func New(backend Backend, address common.Address) (*Contract, error) {
	parsed, err := abi.JSON(strings.NewReader(abiJSON))
	if err != nil {
		return nil, fmt.Errorf("parsing abi: %w", err)
	}

	c := Contract{
		address: address,
		abi:     parsed,
		backend: backend,
		bound:   bind.NewBoundContract(address, parsed, backend, backend, backend),
	}

	return &c, nil
}

// Dial connects to the node at the specified url and constructs access to the
// contract. The client must be closed by the caller.
func Dial(ctx context.Context, url string, address common.Address) (*Contract, *ethclient.Client, error) {
	client, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: dial %s: %w", ledger.ErrLedgerUnavailable, url, err)
	}

	c, err := New(client, address)
	if err != nil {
		client.Close()
		return nil, nil, err
	}

	return c, client, nil
}

// Address returns the address of the contract.
func (c *Contract) Address() common.Address {
	return c.address
}

// =============================================================================

// TotalPixels implements the ledger.Backend interface.
func (c *Contract) TotalPixels(ctx context.Context) (int, error) {
	total, err := c.callUint(ctx, "TOTAL_PIXELS")
	if err != nil {
		return 0, err
	}

	if !total.IsInt64() || total.Int64() > math.MaxInt32 {
		return 0, fmt.Errorf("total pixels %s: %w", total, grid.ErrInvalidSize)
	}

	return int(total.Int64()), nil
}

// AllPixels implements the ledger.Backend interface.
func (c *Contract) AllPixels(ctx context.Context) ([]grid.Cell, error) {
	out, err := c.call(ctx, "getAllPixels")
	if err != nil {
		return nil, err
	}

	pixels := *abi.ConvertType(out[0], new([]pixel)).(*[]pixel)

	cells := make([]grid.Cell, len(pixels))
	for i, p := range pixels {
		cells[i] = p.toCell()
	}

	return cells, nil
}

// Pixel implements the ledger.Backend interface.
func (c *Contract) Pixel(ctx context.Context, id int) (grid.Cell, error) {
	out, err := c.call(ctx, "getPixel", big.NewInt(int64(id)))
	if err != nil {
		return grid.Cell{}, err
	}

	p := *abi.ConvertType(out[0], new(pixel)).(*pixel)

	return p.toCell(), nil
}

// PixelPrice implements the ledger.Backend interface.
func (c *Contract) PixelPrice(ctx context.Context, id int) (*big.Int, error) {
	return c.callUint(ctx, "getPixelPrice", big.NewInt(int64(id)))
}

// TotalSold implements the ledger.Backend interface.
func (c *Contract) TotalSold(ctx context.Context) (uint64, error) {
	sold, err := c.callUint(ctx, "totalPixelsSold")
	if err != nil {
		return 0, err
	}

	return sold.Uint64(), nil
}

// InitialPrice returns the price of a cell that was never purchased.
func (c *Contract) InitialPrice(ctx context.Context) (*big.Int, error) {
	return c.callUint(ctx, "INITIAL_PIXEL_PRICE")
}

func (c *Contract) callUint(ctx context.Context, method string, params ...any) (*big.Int, error) {
	out, err := c.call(ctx, method, params...)
	if err != nil {
		return nil, err
	}

	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}

func (c *Contract) call(ctx context.Context, method string, params ...any) ([]any, error) {
	var out []any
	if err := c.bound.Call(&bind.CallOpts{Context: ctx}, &out, method, params...); err != nil {
		return nil, fmt.Errorf("%s: %w", method, c.decodeError(err))
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("%s: %w: empty result", method, ledger.ErrLedgerUnavailable)
	}

	return out, nil
}

// =============================================================================

// decodeError maps a custom error reverted by the contract into the ledger
// error taxonomy. Anything else is a ledger failure.
func (c *Contract) decodeError(err error) error {
	var de rpc.DataError
	if !errors.As(err, &de) {
		return ledger.Unavailable(err)
	}

	hexData, ok := de.ErrorData().(string)
	if !ok {
		return ledger.Unavailable(err)
	}

	data, derr := hexutil.Decode(hexData)
	if derr != nil || len(data) < 4 {
		return ledger.Unavailable(err)
	}

	for name, abiErr := range c.abi.Errors {
		if !bytes.Equal(abiErr.ID[:4], data[:4]) {
			continue
		}

		args, _ := abiErr.Unpack(data)

		switch name {
		case "EmptyText":
			return ledger.ErrEmptyText
		case "InsufficientPayment":
			return fmt.Errorf("%w: required/sent %v", ledger.ErrInsufficientPayment, args)
		case "InvalidPixelIndex":
			return fmt.Errorf("%w: %v", grid.ErrInvalidCellIndex, args)
		case "NotPixelOwner":
			return fmt.Errorf("%w: %v", ledger.ErrNotOwner, args)
		}
	}

	return ledger.Unavailable(err)
}

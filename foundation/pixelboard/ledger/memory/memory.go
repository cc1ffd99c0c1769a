// Package memory implements the pixel board contract in memory. It follows the
// contract rules closely enough to stand in for a chain in tests and during
// local development.
package memory

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ardanlabs/pixelboard/foundation/pixelboard/grid"
	"github.com/ardanlabs/pixelboard/foundation/pixelboard/ledger"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// DefaultInitialPrice is the price of a cell, 0.00000001 ether.
var DefaultInitialPrice = big.NewInt(10_000_000_000)

// PriceFunc returns the price required to purchase the cell.
type PriceFunc func(cell grid.Cell) *big.Int

// Config represents the configuration required to construct a ledger.
type Config struct {
	Size         int
	InitialPrice *big.Int
	Pricing      PriceFunc
	AutoMine     bool
	Now          func() time.Time
}

type pendingTx struct {
	handle ledger.TxHandle
	write  ledger.Write
}

// Ledger is an in memory pixel board contract. Transactions sent by wallets
// stay pending until Mine is called, unless the ledger is configured to mine
// every transaction as it arrives.
type Ledger struct {
	mu          sync.Mutex
	grid        grid.Grid
	initial     *big.Int
	pricing     PriceFunc
	autoMine    bool
	now         func() time.Time
	sold        uint64
	nonce       uint64
	block       uint64
	balance     *big.Int
	pending     []pendingTx
	receipts    map[common.Hash]ledger.Receipt
	waiters     map[common.Hash]chan struct{}
	subs        map[int]chan ledger.Event
	nextSub     int
	unavailable error
}

// New constructs an in memory ledger with every cell unowned.
func New(cfg Config) (*Ledger, error) {
	g, err := grid.New(cfg.Size)
	if err != nil {
		return nil, err
	}

	initial := cfg.InitialPrice
	if initial == nil {
		initial = DefaultInitialPrice
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	l := Ledger{
		grid:     g,
		initial:  new(big.Int).Set(initial),
		autoMine: cfg.AutoMine,
		now:      now,
		balance:  new(big.Int),
		receipts: make(map[common.Hash]ledger.Receipt),
		waiters:  make(map[common.Hash]chan struct{}),
		subs:     make(map[int]chan ledger.Event),
	}

	l.pricing = cfg.Pricing
	if l.pricing == nil {
		l.pricing = func(grid.Cell) *big.Int { return new(big.Int).Set(l.initial) }
	}

	return &l, nil
}

// SetUnavailable makes every call fail with the specified error until it is
// called again with nil.
func (l *Ledger) SetUnavailable(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.unavailable = err
}

// Balance returns the amount paid into the contract.
func (l *Ledger) Balance() *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return new(big.Int).Set(l.balance)
}

// Pending returns the number of transactions waiting to be mined.
func (l *Ledger) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.pending)
}

// =============================================================================

// TotalPixels implements the ledger.Backend interface.
func (l *Ledger) TotalPixels(ctx context.Context) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.check(); err != nil {
		return 0, err
	}

	return l.grid.Len(), nil
}

// AllPixels implements the ledger.Backend interface.
func (l *Ledger) AllPixels(ctx context.Context) ([]grid.Cell, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.check(); err != nil {
		return nil, err
	}

	return l.grid.Cells(), nil
}

// Pixel implements the ledger.Backend interface.
func (l *Ledger) Pixel(ctx context.Context, id int) (grid.Cell, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.check(); err != nil {
		return grid.Cell{}, err
	}

	cell, ok := l.grid.Cell(id)
	if !ok {
		return grid.Cell{}, fmt.Errorf("pixel[%d]: %w", id, grid.ErrInvalidCellIndex)
	}

	return cell, nil
}

// PixelPrice implements the ledger.Backend interface.
func (l *Ledger) PixelPrice(ctx context.Context, id int) (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.check(); err != nil {
		return nil, err
	}

	cell, ok := l.grid.Cell(id)
	if !ok {
		return nil, fmt.Errorf("price[%d]: %w", id, grid.ErrInvalidCellIndex)
	}

	return l.pricing(cell), nil
}

// TotalSold implements the ledger.Backend interface.
func (l *Ledger) TotalSold(ctx context.Context) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.check(); err != nil {
		return 0, err
	}

	return l.sold, nil
}

// check must be called with the lock held.
func (l *Ledger) check() error {
	if l.unavailable != nil {
		return fmt.Errorf("%w: %w", ledger.ErrLedgerUnavailable, l.unavailable)
	}
	return nil
}

// =============================================================================

// Mine executes the pending transactions in the order they were sent and
// returns their receipts. A transaction that no longer satisfies the contract
// rules is mined as reverted.
func (l *Ledger) Mine() []ledger.Receipt {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.mine()
}

// mine must be called with the lock held.
func (l *Ledger) mine() []ledger.Receipt {
	if len(l.pending) == 0 {
		return nil
	}

	l.block++

	receipts := make([]ledger.Receipt, 0, len(l.pending))
	for _, ptx := range l.pending {
		rcpt := ledger.Receipt{
			Hash:    ptx.handle.Hash,
			Block:   l.block,
			GasUsed: 21_000,
			Success: l.execute(ptx) == nil,
		}

		l.receipts[rcpt.Hash] = rcpt
		if ch, exists := l.waiters[rcpt.Hash]; exists {
			close(ch)
			delete(l.waiters, rcpt.Hash)
		}

		receipts = append(receipts, rcpt)
	}
	l.pending = nil

	return receipts
}

// execute applies the write to the grid and must be called with the lock held.
func (l *Ledger) execute(ptx pendingTx) error {
	from := ptx.handle.From
	w := ptx.write

	if err := l.validate(from, w); err != nil {
		return err
	}

	cell, _ := l.grid.Cell(w.CellID)
	evt := ledger.Event{
		CellID:   w.CellID,
		Account:  from,
		Text:     w.Text,
		ImageURL: w.ImageURL,
		Link:     w.Link,
		Block:    l.block,
	}

	switch w.Kind {
	case ledger.KindPurchase:
		if !cell.IsOwned {
			l.sold++
		}

		cell.Owner = from
		cell.IsOwned = true
		cell.PurchaseCount++
		cell.PurchaseTime = l.now().UTC().Truncate(time.Second)
		l.balance.Add(l.balance, w.Value)

		evt.Kind = ledger.EventPurchased
		evt.Price = new(big.Int).Set(w.Value)
		evt.PurchaseCount = cell.PurchaseCount

	case ledger.KindUpdate:
		evt.Kind = ledger.EventUpdated
	}

	cell.Text = w.Text
	cell.ImageURL = w.ImageURL
	cell.Link = w.Link

	g, err := l.grid.With(cell)
	if err != nil {
		return err
	}
	l.grid = g

	for _, ch := range l.subs {
		select {
		case ch <- evt:
		default:
		}
	}

	return nil
}

// validate applies the contract rules and must be called with the lock held.
func (l *Ledger) validate(from common.Address, w ledger.Write) error {
	cell, ok := l.grid.Cell(w.CellID)
	if !ok {
		return fmt.Errorf("pixel[%d]: %w", w.CellID, grid.ErrInvalidCellIndex)
	}

	if w.Text == "" {
		return ledger.ErrEmptyText
	}

	switch w.Kind {
	case ledger.KindPurchase:
		required := l.pricing(cell)
		if w.Value == nil || w.Value.Cmp(required) < 0 {
			return fmt.Errorf("required %s sent %s: %w", required, w.Value, ledger.ErrInsufficientPayment)
		}

	case ledger.KindUpdate:
		if !cell.IsOwned || cell.Owner != from {
			return fmt.Errorf("pixel[%d]: %w", w.CellID, ledger.ErrNotOwner)
		}

	default:
		return errors.New("unknown write kind")
	}

	return nil
}

// =============================================================================

// Wallet returns a wallet that signs transactions as the specified account.
func (l *Ledger) Wallet(account common.Address) *Wallet {
	return &Wallet{
		ledger:  l,
		account: account,
	}
}

// Watch implements the ledger.Watcher interface.
func (l *Ledger) Watch(ctx context.Context, events chan<- ledger.Event) error {
	const eventBuffer = 100
	ch := make(chan ledger.Event, eventBuffer)

	l.mu.Lock()
	id := l.nextSub
	l.nextSub++
	l.subs[id] = ch
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		delete(l.subs, id)
		l.mu.Unlock()
	}()

	for {
		select {
		case evt := <-ch:
			select {
			case events <- evt:
			case <-ctx.Done():
				return ctx.Err()
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// send simulates the transaction against the current state and queues it.
func (l *Ledger) send(from common.Address, w ledger.Write) (ledger.TxHandle, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.check(); err != nil {
		return ledger.TxHandle{}, err
	}

	// A real node rejects a call that would revert while estimating gas, so
	// the rules are checked before the transaction is accepted.
	if err := l.validate(from, w); err != nil {
		return ledger.TxHandle{}, err
	}

	if w.Kind == ledger.KindUpdate {
		w.Value = nil
	}
	if w.Value != nil {
		w.Value = new(big.Int).Set(w.Value)
	}

	l.nonce++
	var nonce [8]byte
	binary.BigEndian.PutUint64(nonce[:], l.nonce)

	h := ledger.TxHandle{
		Hash: crypto.Keccak256Hash(from.Bytes(), nonce[:]),
		From: from,
		Kind: w.Kind,
	}

	l.pending = append(l.pending, pendingTx{handle: h, write: w})
	l.waiters[h.Hash] = make(chan struct{})

	if l.autoMine {
		l.mine()
	}

	return h, nil
}

// confirm blocks until the transaction is mined or the context is done.
func (l *Ledger) confirm(ctx context.Context, h ledger.TxHandle) (ledger.Receipt, error) {
	l.mu.Lock()
	if rcpt, exists := l.receipts[h.Hash]; exists {
		l.mu.Unlock()
		return rcpt, nil
	}

	ch, exists := l.waiters[h.Hash]
	l.mu.Unlock()

	if !exists {
		return ledger.Receipt{}, fmt.Errorf("tx[%s]: %w: unknown transaction", h.Hash, ledger.ErrLedgerUnavailable)
	}

	select {
	case <-ch:
	case <-ctx.Done():
		return ledger.Receipt{}, ctx.Err()
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	return l.receipts[h.Hash], nil
}

// =============================================================================

// Wallet is bound to an account of the in memory ledger.
type Wallet struct {
	ledger  *Ledger
	account common.Address
}

// Address implements the ledger.Wallet interface.
func (w *Wallet) Address() common.Address {
	return w.account
}

// Send implements the ledger.Wallet interface.
func (w *Wallet) Send(ctx context.Context, write ledger.Write) (ledger.TxHandle, error) {
	return w.ledger.send(w.account, write)
}

// Confirm implements the ledger.Wallet interface.
func (w *Wallet) Confirm(ctx context.Context, h ledger.TxHandle) (ledger.Receipt, error) {
	return w.ledger.confirm(ctx, h)
}

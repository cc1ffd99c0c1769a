// Package mutation drives a single purchase or update of a cell through the
// ledger and tracks it until the ledger confirms or rejects it.
package mutation

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ardanlabs/pixelboard/foundation/pixelboard/grid"
	"github.com/ardanlabs/pixelboard/foundation/pixelboard/ledger"
)

// Set of error variables for mutations.
var (
	ErrInFlight = errors.New("a mutation is already in flight")
	ErrTimeout  = errors.New("timed out waiting for confirmation")
	ErrReverted = errors.New("transaction reverted")
	ErrNoWallet = errors.New("no wallet connected")
	ErrShutdown = errors.New("mutation controller is shut down")
)

// DefaultTimeout bounds the wait for a confirmation.
const DefaultTimeout = 2 * time.Minute

// PriceFetcher returns the price the ledger requires to purchase a cell.
type PriceFetcher interface {
	FetchPrice(ctx context.Context, id int) (*big.Int, error)
}

// Config represents the configuration required to construct a controller.
type Config struct {
	Size      int
	Prices    PriceFetcher
	Timeout   time.Duration
	EvHandler ledger.EventHandler

	// OnChange is called after every transition.
	OnChange func(Status)

	// OnSettled is called once the mutation reaches Confirmed or Failed. The
	// controller stays in that state until Acknowledge is called.
	OnSettled func(Status)
}

// Controller runs at most one mutation at a time. Once a submission is
// accepted it can not be cancelled, the caller may only wait for it to
// settle.
type Controller struct {
	size      int
	prices    PriceFetcher
	timeout   time.Duration
	evHandler ledger.EventHandler
	onChange  func(Status)
	onSettled func(Status)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool
	wallet ledger.Wallet
	seq    uint64
	status Status
}

// New constructs a controller in the Idle state with no wallet connected.
func New(cfg Config) (*Controller, error) {
	if cfg.Prices == nil {
		return nil, errors.New("price fetcher is required")
	}

	if cfg.Size <= 0 {
		return nil, grid.ErrInvalidSize
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())

	c := Controller{
		size:      cfg.Size,
		prices:    cfg.Prices,
		timeout:   timeout,
		evHandler: ev,
		onChange:  cfg.OnChange,
		onSettled: cfg.OnSettled,
		ctx:       ctx,
		cancel:    cancel,
	}

	return &c, nil
}

// Shutdown stops waiting on any outstanding confirmation. A mutation still
// awaiting confirmation fails and later submissions are rejected with
// ErrShutdown.
func (c *Controller) Shutdown() {
	c.evHandler("mutation: Shutdown: started")
	defer c.evHandler("mutation: Shutdown: completed")

	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()
}

// =============================================================================

// Connect sets the wallet used to sign the next submission.
func (c *Controller) Connect(w ledger.Wallet) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.wallet = w
}

// Disconnect removes the wallet. A mutation already in flight keeps the wallet
// it was submitted with.
func (c *Controller) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.wallet = nil
}

// Wallet returns the connected wallet or nil.
func (c *Controller) Wallet() ledger.Wallet {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.wallet
}

// Status returns a snapshot of the controller.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.status
}

// Acknowledge returns the settled mutation identified by seq to Idle. It is a
// no-op when Idle or when seq no longer identifies the current mutation, and
// is rejected while a mutation is in flight.
func (c *Controller) Acknowledge(seq uint64) error {
	c.mu.Lock()

	if cur := c.status.Seq; cur != seq {
		c.mu.Unlock()
		c.evHandler("mutation: Acknowledge: seq[%d]: ignored, current seq[%d]", seq, cur)
		return nil
	}

	if c.status.State.InFlight() {
		c.mu.Unlock()
		return ErrInFlight
	}

	if c.status.State == StateIdle {
		c.mu.Unlock()
		return nil
	}

	c.status = Status{Seq: c.status.Seq, State: StateIdle}
	st := c.status
	c.mu.Unlock()

	c.evHandler("mutation: Acknowledge: seq[%d]", st.Seq)
	c.notify(st)

	return nil
}

// =============================================================================

// Submit validates the request and sends it to the ledger with the connected
// wallet. A purchase pays the price currently required by the ledger. Submit
// returns once the ledger accepted the transaction and the confirmation is
// awaited in the background.
//
// Requests that fail validation, or arrive with no wallet connected, are
// rejected with no change of state. A submission while another is in flight
// is rejected with ErrInFlight. Any other failure leaves the controller in
// the Failed state.
func (c *Controller) Submit(ctx context.Context, req Request) (Status, error) {
	if err := c.validate(req); err != nil {
		return c.Status(), err
	}

	c.mu.Lock()

	if c.closed {
		st := c.status
		c.mu.Unlock()
		return st, ErrShutdown
	}

	if c.status.State.InFlight() {
		st := c.status
		c.mu.Unlock()
		return st, ErrInFlight
	}

	if c.wallet == nil {
		st := c.status
		c.mu.Unlock()
		return st, ErrNoWallet
	}

	wallet := c.wallet
	c.seq++
	seq := c.seq
	c.status = Status{Seq: seq, State: StateSubmitting, Request: req}
	st := c.status

	c.mu.Unlock()

	c.evHandler("mutation: Submit: seq[%d]: %s cell[%d]", seq, req.Kind, req.CellID)
	c.notify(st)

	write := ledger.Write{
		Kind:     req.Kind,
		CellID:   req.CellID,
		Text:     req.Text,
		ImageURL: req.ImageURL,
		Link:     req.Link,
	}

	if req.Kind == ledger.KindPurchase {
		price, err := c.prices.FetchPrice(ctx, req.CellID)
		if err != nil {
			return c.fail(seq, ledger.TxHandle{}, ledger.Unavailable(err))
		}
		write.Value = price
	}

	h, err := wallet.Send(ctx, write)
	if err != nil {
		return c.fail(seq, ledger.TxHandle{}, err)
	}

	st = c.transition(seq, func(s *Status) {
		s.State = StateAwaitingConfirmation
		s.Tx = h
		s.Price = write.Value
	})

	c.evHandler("mutation: Submit: seq[%d]: tx[%s]: awaiting confirmation", seq, h.Hash)
	c.notify(st)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return c.fail(seq, h, fmt.Errorf("tx[%s]: %w", h.Hash, ErrShutdown))
	}
	c.wg.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.wg.Done()
		c.await(seq, wallet, h)
	}()

	return st, nil
}

// await blocks until the ledger settles the transaction or the timeout fires.
func (c *Controller) await(seq uint64, wallet ledger.Wallet, h ledger.TxHandle) {
	ctx, cancel := context.WithTimeout(c.ctx, c.timeout)
	defer cancel()

	rcpt, err := wallet.Confirm(ctx, h)

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		c.fail(seq, h, fmt.Errorf("tx[%s]: %w", h.Hash, ErrTimeout))
		return

	case err != nil:
		c.fail(seq, h, fmt.Errorf("tx[%s]: %w", h.Hash, ledger.Unavailable(err)))
		return

	case !rcpt.Success:
		c.fail(seq, h, fmt.Errorf("tx[%s] block[%d]: %w", h.Hash, rcpt.Block, ErrReverted))
		return
	}

	st := c.transition(seq, func(s *Status) {
		s.State = StateConfirmed
		s.Receipt = rcpt
	})

	c.evHandler("mutation: await: seq[%d]: tx[%s]: confirmed in block[%d]", seq, h.Hash, rcpt.Block)
	c.notify(st)
}

// fail moves the mutation identified by seq to Failed.
func (c *Controller) fail(seq uint64, h ledger.TxHandle, err error) (Status, error) {
	st := c.transition(seq, func(s *Status) {
		s.State = StateFailed
		s.Tx = h
		s.Err = err
	})

	c.evHandler("mutation: seq[%d]: ERROR: %s", seq, err)
	c.notify(st)

	return st, err
}

// transition applies the change when seq still identifies the current
// mutation and returns the resulting status.
func (c *Controller) transition(seq uint64, apply func(s *Status)) Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status.Seq == seq {
		apply(&c.status)
	}

	return c.status
}

func (c *Controller) notify(st Status) {
	if c.onChange != nil {
		c.onChange(st)
	}

	if st.State.Settled() && c.onSettled != nil {
		c.onSettled(st)
	}
}

func (c *Controller) validate(req Request) error {
	switch req.Kind {
	case ledger.KindPurchase, ledger.KindUpdate:
	default:
		return fmt.Errorf("unknown mutation kind %d", req.Kind)
	}

	if _, _, err := grid.IDToCoords(c.size, req.CellID); err != nil {
		return err
	}

	if req.Text == "" {
		return ledger.ErrEmptyText
	}

	return nil
}

// Package board is the composition root of the pixel board. It routes
// resolved clicks to a link, a purchase flow or a warning and reconciles the
// store once a mutation is confirmed.
package board

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ardanlabs/pixelboard/foundation/events"
	"github.com/ardanlabs/pixelboard/foundation/pixelboard/geometry"
	"github.com/ardanlabs/pixelboard/foundation/pixelboard/grid"
	"github.com/ardanlabs/pixelboard/foundation/pixelboard/ledger"
	"github.com/ardanlabs/pixelboard/foundation/pixelboard/mutation"
	"github.com/ardanlabs/pixelboard/foundation/pixelboard/overlay"
	"github.com/ardanlabs/pixelboard/foundation/pixelboard/store"
	"github.com/ardanlabs/pixelboard/foundation/pixelboard/viewport"
)

// ErrFlowNotFound is returned when a flow is confirmed or cancelled after it
// was closed.
var ErrFlowNotFound = errors.New("flow not found")

// refreshTimeout bounds the refresh that follows a confirmed mutation.
const refreshTimeout = 30 * time.Second

// Notifier publishes user facing notices.
type Notifier interface {
	Success(format string, args ...any) events.Notice
	Warning(format string, args ...any) events.Notice
	Error(format string, args ...any) events.Notice
}

// LinkOpener opens the link of an owned cell.
type LinkOpener interface {
	OpenLink(link string) error
}

// Uploader stores an image and returns the url it is served from.
type Uploader interface {
	Upload(ctx context.Context, name string, data []byte) (string, error)
}

// ActionKind identifies what a click on the board resulted in.
type ActionKind int

// Set of click outcomes.
const (
	ActionNone ActionKind = iota
	ActionOpenLink
	ActionWarnNoWallet
	ActionPurchaseFlow
	ActionUpdateFlow
)

// String implements the fmt.Stringer interface.
func (k ActionKind) String() string {
	switch k {
	case ActionNone:
		return "none"
	case ActionOpenLink:
		return "open_link"
	case ActionWarnNoWallet:
		return "warn_no_wallet"
	case ActionPurchaseFlow:
		return "purchase_flow"
	case ActionUpdateFlow:
		return "update_flow"
	}
	return "unknown"
}

// MarshalText implements the encoding.TextMarshaler interface.
func (k ActionKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Action is the outcome of a click.
type Action struct {
	Kind   ActionKind `json:"kind"`
	Cell   grid.Cell  `json:"cell"`
	FlowID string     `json:"flow_id,omitempty"`
}

// Flow is a purchase or update dialog opened over the board.
type Flow struct {
	ID    string      `json:"id"`
	Kind  ledger.Kind `json:"kind"`
	Cell  grid.Cell   `json:"cell"`
	Price *big.Int    `json:"price"`
}

// FlowInput is what the user entered before confirming a flow. An image, when
// provided, is uploaded before anything is sent to the ledger.
type FlowInput struct {
	Text      string
	Link      string
	ImageURL  string
	ImageName string
	Image     []byte
}

// Config represents the configuration required to construct a board.
type Config struct {
	Reader          *ledger.Reader
	Store           *store.Store
	Width           float64
	Height          float64
	Notifier        Notifier
	Links           LinkOpener
	Uploader        Uploader
	Watcher         ledger.Watcher
	MutationTimeout time.Duration
	EvHandler       ledger.EventHandler

	// OnChange is called after every mutation transition.
	OnChange func(mutation.Status)
}

// Board wires the viewport, the store, the ledger reader and the mutation
// controller of one session.
type Board struct {
	reader    *ledger.Reader
	store     *store.Store
	viewport  *viewport.Controller
	mutation  *mutation.Controller
	flows     *overlay.Registry[Flow]
	notifier  Notifier
	links     LinkOpener
	uploader  Uploader
	watcher   ledger.Watcher
	evHandler ledger.EventHandler
	onChange  func(mutation.Status)

	ctx    context.Context
	cancel context.CancelFunc
}

// New constructs a board for the store's grid size.
func New(cfg Config) (*Board, error) {
	if cfg.Reader == nil || cfg.Store == nil {
		return nil, errors.New("reader and store are required")
	}

	if cfg.Notifier == nil {
		return nil, errors.New("notifier is required")
	}

	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())

	b := Board{
		reader:    cfg.Reader,
		store:     cfg.Store,
		notifier:  cfg.Notifier,
		links:     cfg.Links,
		uploader:  cfg.Uploader,
		watcher:   cfg.Watcher,
		evHandler: ev,
		onChange:  cfg.OnChange,
		ctx:       ctx,
		cancel:    cancel,
	}

	b.viewport = viewport.New(viewport.Config{
		Size:   cfg.Store.Size(),
		Width:  cfg.Width,
		Height: cfg.Height,
	})

	b.flows = overlay.New(func(id string, f Flow) {
		ev("board: flow[%s]: unmounted", id)
	})

	mut, err := mutation.New(mutation.Config{
		Size:      cfg.Store.Size(),
		Prices:    cfg.Reader,
		Timeout:   cfg.MutationTimeout,
		EvHandler: cfg.EvHandler,
		OnChange:  b.changed,
		OnSettled: b.settled,
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("mutation: %w", err)
	}
	b.mutation = mut

	return &b, nil
}

// Shutdown unmounts every flow and stops the mutation controller.
func (b *Board) Shutdown() {
	b.evHandler("board: Shutdown: started")
	defer b.evHandler("board: Shutdown: completed")

	b.flows.ExitAll()
	b.cancel()
	b.mutation.Shutdown()
}

// Viewport returns the viewport controller of the board.
func (b *Board) Viewport() *viewport.Controller {
	return b.viewport
}

// Store returns the store the board renders.
func (b *Board) Store() *store.Store {
	return b.store
}

// Reader returns the ledger reader of the board.
func (b *Board) Reader() *ledger.Reader {
	return b.reader
}

// Mutation returns the mutation controller of the board.
func (b *Board) Mutation() *mutation.Controller {
	return b.mutation
}

// Refresh replaces the grid with a fresh read of the ledger.
func (b *Board) Refresh(ctx context.Context) error {
	return b.reader.Refresh(ctx)
}

// =============================================================================

// ConnectWallet sets the wallet used to purchase and update cells.
func (b *Board) ConnectWallet(w ledger.Wallet) {
	b.mutation.Connect(w)
	b.evHandler("board: wallet[%s]: connected", w.Address())
}

// DisconnectWallet removes the wallet.
func (b *Board) DisconnectWallet() {
	b.mutation.Disconnect()
	b.evHandler("board: wallet: disconnected")
}

// =============================================================================

// Click resolves the screen point through the viewport and acts on the cell
// under it. A click that ends a drag, or lands outside the grid, does nothing.
func (b *Board) Click(ctx context.Context, p geometry.Point) (Action, error) {
	coords, ok := b.viewport.Click(p)
	if !ok {
		return Action{Kind: ActionNone}, nil
	}

	return b.Select(ctx, coords.X, coords.Y)
}

// Select acts on the cell at the coordinates.
func (b *Board) Select(ctx context.Context, x int, y int) (Action, error) {
	cell, ok := b.store.ByCoords(x, y)
	if !ok {
		return Action{}, fmt.Errorf("select[%d,%d]: %w", x, y, grid.ErrInvalidCellIndex)
	}

	switch {
	case cell.IsOwned && cell.HasLink():
		if b.links != nil {
			if err := b.links.OpenLink(cell.Link); err != nil {
				return Action{}, fmt.Errorf("open link: %w", err)
			}
		}
		return Action{Kind: ActionOpenLink, Cell: cell}, nil

	case cell.IsOwned:
		return Action{Kind: ActionNone, Cell: cell}, nil

	case b.mutation.Wallet() == nil:
		b.notifier.Warning("Please connect your wallet to purchase pixels")
		return Action{Kind: ActionWarnNoWallet, Cell: cell}, nil
	}

	f := b.openFlow(ctx, ledger.KindPurchase, cell)

	return Action{Kind: ActionPurchaseFlow, Cell: cell, FlowID: f.ID}, nil
}

// OpenUpdate opens the update flow for a cell owned by the connected wallet.
func (b *Board) OpenUpdate(ctx context.Context, id int) (Action, error) {
	w := b.mutation.Wallet()
	if w == nil {
		return Action{}, mutation.ErrNoWallet
	}

	cell, ok := b.store.ByIndex(id)
	if !ok {
		return Action{}, fmt.Errorf("update[%d]: %w", id, grid.ErrInvalidCellIndex)
	}

	if !cell.IsOwned || cell.Owner != w.Address() {
		return Action{}, fmt.Errorf("update[%d]: %w", id, ledger.ErrNotOwner)
	}

	f := b.openFlow(ctx, ledger.KindUpdate, cell)

	return Action{Kind: ActionUpdateFlow, Cell: cell, FlowID: f.ID}, nil
}

// Flows returns the flows currently mounted.
func (b *Board) Flows() []overlay.Entry[Flow] {
	return b.flows.Entries()
}

// CancelFlow closes the flow before anything was submitted.
func (b *Board) CancelFlow(id string) error {
	if err := b.flows.Exit(id); err != nil {
		return fmt.Errorf("cancel[%s]: %w", id, ErrFlowNotFound)
	}

	return nil
}

// ConfirmFlow uploads the image, when one is provided, and submits the flow
// to the mutation controller. A failed upload aborts before the ledger is
// called and leaves the flow open.
func (b *Board) ConfirmFlow(ctx context.Context, id string, in FlowInput) (mutation.Status, error) {
	entry, ok := b.flows.Get(id)
	if !ok {
		return mutation.Status{}, fmt.Errorf("confirm[%s]: %w", id, ErrFlowNotFound)
	}
	f := entry.View

	imageURL := in.ImageURL
	if len(in.Image) > 0 {
		if b.uploader == nil {
			return mutation.Status{}, errors.New("no image uploader configured")
		}

		url, err := b.uploader.Upload(ctx, in.ImageName, in.Image)
		if err != nil {
			b.notifier.Error("Failed to upload image: %s", err)
			return mutation.Status{}, fmt.Errorf("upload: %w", err)
		}
		imageURL = url
	}

	req := mutation.Request{
		Kind:     f.Kind,
		CellID:   f.Cell.ID,
		Text:     in.Text,
		ImageURL: imageURL,
		Link:     in.Link,
	}

	st, err := b.mutation.Submit(ctx, req)
	if err != nil {
		if st.State != mutation.StateFailed || st.Request != req {
			b.notifier.Error("%s", err)
		}
		return st, err
	}

	if err := b.flows.Exit(id); err != nil {
		b.evHandler("board: flow[%s]: WARNING: %s", id, err)
	}

	return st, nil
}

// =============================================================================

// Watch refreshes the store every time the ledger reports a purchase or an
// update. It blocks until the context is cancelled or the watcher fails.
func (b *Board) Watch(ctx context.Context) error {
	if b.watcher == nil {
		<-ctx.Done()
		return nil
	}

	b.evHandler("board: Watch: started")
	defer b.evHandler("board: Watch: completed")

	ch := make(chan ledger.Event, 10)
	errs := make(chan error, 1)

	go func() {
		errs <- b.watcher.Watch(ctx, ch)
	}()

	for {
		select {
		case evt := <-ch:
			b.evHandler("board: Watch: cell[%d] account[%s] block[%d]", evt.CellID, evt.Account, evt.Block)
			if err := b.reader.Refresh(ctx); err != nil {
				b.evHandler("board: Watch: ERROR: %s", err)
			}

		case err := <-errs:
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
	}
}

// =============================================================================

func (b *Board) openFlow(ctx context.Context, kind ledger.Kind, cell grid.Cell) Flow {
	f := Flow{
		ID:   fmt.Sprintf("%s-%d", kind, cell.ID),
		Kind: kind,
		Cell: cell,
	}

	if kind == ledger.KindPurchase {
		f.Price = b.reader.DisplayPrice(ctx, cell.ID)
	}

	b.flows.Open(f.ID, f)
	b.evHandler("board: flow[%s]: opened", f.ID)

	return f
}

func (b *Board) changed(st mutation.Status) {
	if b.onChange != nil {
		b.onChange(st)
	}
}

// settled reconciles the store after a confirmed mutation and reports the
// outcome to the user.
func (b *Board) settled(st mutation.Status) {
	switch st.State {
	case mutation.StateConfirmed:
		ctx, cancel := context.WithTimeout(b.ctx, refreshTimeout)
		defer cancel()

		if err := b.reader.Refresh(ctx); err != nil {
			b.evHandler("board: settled: refresh: ERROR: %s", err)
		}

		switch st.Request.Kind {
		case ledger.KindPurchase:
			b.notifier.Success("Pixel purchased successfully!")
		default:
			b.notifier.Success("Pixel updated successfully!")
		}

		if err := b.mutation.Acknowledge(st.Seq); err != nil {
			b.evHandler("board: settled: acknowledge: ERROR: %s", err)
		}

	case mutation.StateFailed:
		b.notifier.Error("Transaction failed: %s", st.Err)
	}
}

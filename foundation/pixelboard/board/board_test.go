package board_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ardanlabs/pixelboard/foundation/events"
	"github.com/ardanlabs/pixelboard/foundation/pixelboard/board"
	"github.com/ardanlabs/pixelboard/foundation/pixelboard/geometry"
	"github.com/ardanlabs/pixelboard/foundation/pixelboard/ledger"
	"github.com/ardanlabs/pixelboard/foundation/pixelboard/ledger/memory"
	"github.com/ardanlabs/pixelboard/foundation/pixelboard/mutation"
	"github.com/ardanlabs/pixelboard/foundation/pixelboard/store"
	"github.com/ethereum/go-ethereum/common"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

var alice = common.HexToAddress("0xdd6B972ffcc631a62CAE1BB9d80b7ff429c8ebA4")

func ifErrFailNow(t *testing.T, err error) {
	if err != nil {
		t.Error(err)
		t.FailNow()
	}
}

// links records the links the board opens.
type links struct {
	mu     sync.Mutex
	opened []string
}

func (l *links) OpenLink(link string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.opened = append(l.opened, link)
	return nil
}

// failingUploader rejects every image.
type failingUploader struct{}

func (failingUploader) Upload(ctx context.Context, name string, data []byte) (string, error) {
	return "", errors.New("upload rejected")
}

type harness struct {
	ledger *memory.Ledger
	board  *board.Board
	notes  *events.Events
	links  *links

	mu     sync.Mutex
	states []mutation.State
}

func newHarness(t *testing.T, cfg memory.Config, uploader board.Uploader) *harness {
	l, err := memory.New(cfg)
	ifErrFailNow(t, err)

	s, err := store.New(cfg.Size)
	ifErrFailNow(t, err)

	h := harness{
		ledger: l,
		notes:  events.New(time.Minute),
		links:  &links{},
	}

	bcfg := board.Config{
		Reader:   ledger.NewReader(l, s, nil),
		Store:    s,
		Width:    500,
		Height:   500,
		Notifier: h.notes,
		Links:    h.links,
		Uploader: uploader,
		Watcher:  l,
		OnChange: func(st mutation.Status) {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.states = append(h.states, st.State)
		},
	}

	h.board, err = board.New(bcfg)
	ifErrFailNow(t, err)

	t.Cleanup(h.board.Shutdown)

	return &h
}

func (h *harness) recorded() []mutation.State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]mutation.State(nil), h.states...)
}

func (h *harness) click(t *testing.T, p geometry.Point) board.Action {
	vp := h.board.Viewport()
	vp.PointerDown(p, 0)
	vp.PointerUp()

	act, err := h.board.Click(context.Background(), p)
	ifErrFailNow(t, err)

	return act
}

func waitFor(t *testing.T, what string, cond func() bool) {
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func lastNotice(n *events.Events) events.Notice {
	active := n.Active()
	if len(active) == 0 {
		return events.Notice{}
	}
	return active[len(active)-1]
}

// =============================================================================

func TestPurchaseEndToEnd(t *testing.T) {
	ctx := context.Background()

	// A 500x500 canvas over a 5x5 grid gives 100 pixel cells, so this point
	// resolves to cell (2,3).
	point := geometry.Point{X: 250, Y: 350}

	t.Log("Given the need to purchase a cell by clicking on the board.")
	{
		h := newHarness(t, memory.Config{Size: 5}, nil)

		t.Logf("\tTest 0:\tWhen no wallet is connected.")
		{
			act := h.click(t, point)

			if act.Kind != board.ActionWarnNoWallet || act.Cell.X != 2 || act.Cell.Y != 3 {
				t.Fatalf("\t%s\tTest 0:\tShould warn about the wallet for (2,3) : %+v", failed, act)
			}
			t.Logf("\t%s\tTest 0:\tShould warn about the wallet for (2,3).", success)

			if n := lastNotice(h.notes); n.Kind != events.KindWarning {
				t.Fatalf("\t%s\tTest 0:\tShould publish a warning : %+v", failed, n)
			}
			t.Logf("\t%s\tTest 0:\tShould publish a warning.", success)

			if h.board.Mutation().Status().State != mutation.StateIdle || h.ledger.Pending() != 0 {
				t.Fatalf("\t%s\tTest 0:\tShould not start a mutation.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould not start a mutation.", success)
		}

		t.Logf("\tTest 1:\tWhen a wallet is connected.")
		{
			h.board.ConnectWallet(h.ledger.Wallet(alice))

			act := h.click(t, point)
			if act.Kind != board.ActionPurchaseFlow || act.FlowID == "" {
				t.Fatalf("\t%s\tTest 1:\tShould open the purchase flow : %+v", failed, act)
			}
			t.Logf("\t%s\tTest 1:\tShould open the purchase flow.", success)

			st, err := h.board.ConfirmFlow(ctx, act.FlowID, board.FlowInput{Text: "Hi", Link: "https://x.com"})
			ifErrFailNow(t, err)

			if st.State != mutation.StateAwaitingConfirmation {
				t.Fatalf("\t%s\tTest 1:\tShould await confirmation : %s", failed, st.State)
			}
			t.Logf("\t%s\tTest 1:\tShould await confirmation.", success)

			if len(h.board.Flows()) != 0 {
				t.Fatalf("\t%s\tTest 1:\tShould close the flow once submitted.", failed)
			}
			t.Logf("\t%s\tTest 1:\tShould close the flow once submitted.", success)

			if cell, _ := h.board.Store().ByCoords(2, 3); cell.IsOwned {
				t.Fatalf("\t%s\tTest 1:\tShould not show ownership before confirmation.", failed)
			}
			t.Logf("\t%s\tTest 1:\tShould not show ownership before confirmation.", success)
		}

		t.Logf("\tTest 2:\tWhen the ledger confirms the purchase.")
		{
			h.ledger.Mine()

			waitFor(t, "reconciliation", func() bool {
				cell, _ := h.board.Store().ByCoords(2, 3)
				return cell.IsOwned && len(h.recorded()) == 4
			})

			cell, _ := h.board.Store().ByCoords(2, 3)
			if cell.Owner != alice || cell.Text != "Hi" || cell.Link != "https://x.com" {
				t.Fatalf("\t%s\tTest 2:\tShould show (2,3) owned by the wallet : %+v", failed, cell)
			}
			t.Logf("\t%s\tTest 2:\tShould show (2,3) owned by the wallet.", success)

			exp := []mutation.State{mutation.StateSubmitting, mutation.StateAwaitingConfirmation, mutation.StateConfirmed, mutation.StateIdle}
			got := h.recorded()
			if len(got) != len(exp) {
				t.Fatalf("\t%s\tTest 2:\tShould see %v : got %v", failed, exp, got)
			}
			for i := range exp {
				if got[i] != exp[i] {
					t.Fatalf("\t%s\tTest 2:\tShould see %v : got %v", failed, exp, got)
				}
			}
			t.Logf("\t%s\tTest 2:\tShould see %v.", success, exp)

			if n := lastNotice(h.notes); n.Kind != events.KindSuccess {
				t.Fatalf("\t%s\tTest 2:\tShould publish a success notice : %+v", failed, n)
			}
			t.Logf("\t%s\tTest 2:\tShould publish a success notice.", success)
		}

		t.Logf("\tTest 3:\tWhen the owned cell with a link is clicked.")
		{
			act := h.click(t, point)
			if act.Kind != board.ActionOpenLink {
				t.Fatalf("\t%s\tTest 3:\tShould open the link : %+v", failed, act)
			}

			h.links.mu.Lock()
			opened := append([]string(nil), h.links.opened...)
			h.links.mu.Unlock()

			if len(opened) != 1 || opened[0] != "https://x.com" {
				t.Fatalf("\t%s\tTest 3:\tShould open the link : %v", failed, opened)
			}
			t.Logf("\t%s\tTest 3:\tShould open the link.", success)
		}
	}
}

func TestFlows(t *testing.T) {
	ctx := context.Background()

	t.Log("Given the need to manage the purchase and update flows.")
	{
		t.Logf("\tTest 0:\tWhen the image upload fails.")
		{
			h := newHarness(t, memory.Config{Size: 5}, failingUploader{})
			h.board.ConnectWallet(h.ledger.Wallet(alice))

			act, err := h.board.Select(ctx, 1, 1)
			ifErrFailNow(t, err)

			_, err = h.board.ConfirmFlow(ctx, act.FlowID, board.FlowInput{Text: "Hi", ImageName: "cat.png", Image: []byte{1, 2, 3}})
			if err == nil {
				t.Fatalf("\t%s\tTest 0:\tShould fail the confirmation.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould fail the confirmation.", success)

			if h.ledger.Pending() != 0 || h.board.Mutation().Status().State != mutation.StateIdle {
				t.Fatalf("\t%s\tTest 0:\tShould not call the ledger.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould not call the ledger.", success)

			if len(h.board.Flows()) != 1 {
				t.Fatalf("\t%s\tTest 0:\tShould leave the flow open.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould leave the flow open.", success)

			if err := h.board.CancelFlow(act.FlowID); err != nil || len(h.board.Flows()) != 0 {
				t.Fatalf("\t%s\tTest 0:\tShould cancel the flow : %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould cancel the flow.", success)

			if _, err := h.board.ConfirmFlow(ctx, act.FlowID, board.FlowInput{Text: "Hi"}); !errors.Is(err, board.ErrFlowNotFound) {
				t.Fatalf("\t%s\tTest 0:\tShould not confirm a cancelled flow : %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould not confirm a cancelled flow.", success)
		}

		t.Logf("\tTest 1:\tWhen updating an owned cell.")
		{
			h := newHarness(t, memory.Config{Size: 5, AutoMine: true}, nil)

			if _, err := h.board.OpenUpdate(ctx, 6); !errors.Is(err, mutation.ErrNoWallet) {
				t.Fatalf("\t%s\tTest 1:\tShould require a wallet : %v", failed, err)
			}
			t.Logf("\t%s\tTest 1:\tShould require a wallet.", success)

			h.board.ConnectWallet(h.ledger.Wallet(alice))

			if _, err := h.board.OpenUpdate(ctx, 6); !errors.Is(err, ledger.ErrNotOwner) {
				t.Fatalf("\t%s\tTest 1:\tShould require ownership : %v", failed, err)
			}
			t.Logf("\t%s\tTest 1:\tShould require ownership.", success)

			act, err := h.board.Select(ctx, 1, 1)
			ifErrFailNow(t, err)

			_, err = h.board.ConfirmFlow(ctx, act.FlowID, board.FlowInput{Text: "First"})
			ifErrFailNow(t, err)

			waitFor(t, "purchase", func() bool {
				cell, _ := h.board.Store().ByIndex(6)
				return cell.IsOwned && h.board.Mutation().Status().State == mutation.StateIdle
			})

			act, err = h.board.OpenUpdate(ctx, 6)
			ifErrFailNow(t, err)

			if act.Kind != board.ActionUpdateFlow {
				t.Fatalf("\t%s\tTest 1:\tShould open the update flow : %+v", failed, act)
			}
			t.Logf("\t%s\tTest 1:\tShould open the update flow.", success)

			_, err = h.board.ConfirmFlow(ctx, act.FlowID, board.FlowInput{Text: "Second"})
			ifErrFailNow(t, err)

			waitFor(t, "update", func() bool {
				cell, _ := h.board.Store().ByIndex(6)
				return cell.Text == "Second"
			})
			t.Logf("\t%s\tTest 1:\tShould show the updated text.", success)
		}
	}
}

func TestWatch(t *testing.T) {
	t.Log("Given the need to follow purchases made by other clients.")
	{
		t.Logf("\tTest 0:\tWhen another wallet purchases a cell.")
		{
			h := newHarness(t, memory.Config{Size: 5, AutoMine: true}, nil)

			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan error, 1)
			go func() {
				done <- h.board.Watch(ctx)
			}()

			// Give the watcher time to subscribe before the purchase.
			waitFor(t, "subscription", func() bool {
				_, err := h.ledger.Wallet(alice).Send(context.Background(), ledger.Write{Kind: ledger.KindPurchase, CellID: 24, Text: "Hi", Value: memory.DefaultInitialPrice})
				ifErrFailNow(t, err)
				cell, _ := h.board.Store().ByIndex(24)
				return cell.IsOwned
			})
			t.Logf("\t%s\tTest 0:\tShould refresh the store.", success)

			cancel()
			if err := <-done; err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould stop cleanly : %s", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould stop cleanly.", success)
		}
	}
}

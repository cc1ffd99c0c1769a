package ledger_test

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ardanlabs/pixelboard/foundation/pixelboard/grid"
	"github.com/ardanlabs/pixelboard/foundation/pixelboard/ledger"
	"github.com/ardanlabs/pixelboard/foundation/pixelboard/ledger/memory"
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

// shortBackend returns fewer cells than the grid requires.
type shortBackend struct {
	*memory.Ledger
}

func (b shortBackend) AllPixels(ctx context.Context) ([]grid.Cell, error) {
	cells, err := b.Ledger.AllPixels(ctx)
	if err != nil {
		return nil, err
	}
	return cells[:len(cells)-1], nil
}

func TestRefresh(t *testing.T) {
	ctx := context.Background()

	t.Log("Given the need to sync the store with the ledger.")
	{
		t.Logf("\tTest 0:\tWhen a cell was purchased on the ledger.")
		{
			l, err := memory.New(memory.Config{Size: 5, AutoMine: true})
			ifErrFailNow(t, err)

			s, err := store.New(5)
			ifErrFailNow(t, err)

			_, err = l.Wallet(alice).Send(ctx, ledger.Write{Kind: ledger.KindPurchase, CellID: 13, Text: "Hi", Value: memory.DefaultInitialPrice})
			ifErrFailNow(t, err)

			r := ledger.NewReader(l, s, nil)
			if err := r.Refresh(ctx); err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to refresh : %s", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould be able to refresh.", success)

			cell, _ := s.ByCoords(2, 3)
			if !cell.IsOwned || cell.Owner != alice || cell.Text != "Hi" {
				t.Fatalf("\t%s\tTest 0:\tShould see the purchase at (2,3) : %+v", failed, cell)
			}
			t.Logf("\t%s\tTest 0:\tShould see the purchase at (2,3).", success)

			if s.IsLoading() || s.LastError() != nil {
				t.Fatalf("\t%s\tTest 0:\tShould not be loading or failed.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould not be loading or failed.", success)
		}

		t.Logf("\tTest 1:\tWhen the ledger is unavailable.")
		{
			l, err := memory.New(memory.Config{Size: 5})
			ifErrFailNow(t, err)

			s, err := store.New(5)
			ifErrFailNow(t, err)

			before := s.Snapshot()
			l.SetUnavailable(errors.New("network down"))

			r := ledger.NewReader(l, s, nil)
			err = r.Refresh(ctx)
			if !errors.Is(err, ledger.ErrLedgerUnavailable) {
				t.Fatalf("\t%s\tTest 1:\tShould fail as unavailable : %v", failed, err)
			}
			t.Logf("\t%s\tTest 1:\tShould fail as unavailable.", success)

			if !errors.Is(s.LastError(), ledger.ErrLedgerUnavailable) {
				t.Fatalf("\t%s\tTest 1:\tShould record the error in the store : %v", failed, s.LastError())
			}
			t.Logf("\t%s\tTest 1:\tShould record the error in the store.", success)

			after := s.Snapshot()
			if after.Len() != before.Len() || after.Owned() != before.Owned() {
				t.Fatalf("\t%s\tTest 1:\tShould keep the previous grid.", failed)
			}
			t.Logf("\t%s\tTest 1:\tShould keep the previous grid.", success)
		}

		t.Logf("\tTest 2:\tWhen the ledger returns the wrong number of cells.")
		{
			l, err := memory.New(memory.Config{Size: 5})
			ifErrFailNow(t, err)

			s, err := store.New(5)
			ifErrFailNow(t, err)

			r := ledger.NewReader(shortBackend{l}, s, nil)
			if _, err := r.FetchAll(ctx); !errors.Is(err, grid.ErrInvalidSize) {
				t.Fatalf("\t%s\tTest 2:\tShould reject the response : %v", failed, err)
			}
			t.Logf("\t%s\tTest 2:\tShould reject the response.", success)
		}
	}
}

func TestPrice(t *testing.T) {
	ctx := context.Background()

	t.Log("Given the need to read the price of a cell.")
	{
		l, err := memory.New(memory.Config{Size: 3})
		ifErrFailNow(t, err)

		s, err := store.New(3)
		ifErrFailNow(t, err)

		r := ledger.NewReader(l, s, nil)

		t.Logf("\tTest 0:\tWhen the ledger is available.")
		{
			price, err := r.FetchPrice(ctx, 4)
			ifErrFailNow(t, err)

			if price.Cmp(memory.DefaultInitialPrice) != 0 {
				t.Fatalf("\t%s\tTest 0:\tShould get the initial price : %s", failed, price)
			}
			t.Logf("\t%s\tTest 0:\tShould get the initial price.", success)
		}

		t.Logf("\tTest 1:\tWhen the index is out of range.")
		{
			if _, err := r.FetchPrice(ctx, 9); !errors.Is(err, grid.ErrInvalidCellIndex) {
				t.Fatalf("\t%s\tTest 1:\tShould reject the index : %v", failed, err)
			}
			t.Logf("\t%s\tTest 1:\tShould reject the index.", success)
		}

		t.Logf("\tTest 2:\tWhen the ledger is unavailable.")
		{
			l.SetUnavailable(errors.New("network down"))

			if _, err := r.FetchPrice(ctx, 4); !errors.Is(err, ledger.ErrLedgerUnavailable) {
				t.Fatalf("\t%s\tTest 2:\tShould fail the fetch : %v", failed, err)
			}
			t.Logf("\t%s\tTest 2:\tShould fail the fetch.", success)

			if price := r.DisplayPrice(ctx, 4); price.Sign() != 0 {
				t.Fatalf("\t%s\tTest 2:\tShould display zero : %s", failed, price)
			}
			t.Logf("\t%s\tTest 2:\tShould display zero.", success)
		}
	}
}

func TestWeiToEther(t *testing.T) {
	tt := []struct {
		wei *big.Int
		exp string
	}{
		{wei: big.NewInt(0), exp: "0"},
		{wei: big.NewInt(10_000_000_000), exp: "0.00000001"},
		{wei: new(big.Int).Mul(big.NewInt(15), big.NewInt(100_000_000_000_000_000)), exp: "1.5"},
		{wei: new(big.Int).Mul(big.NewInt(2), big.NewInt(1_000_000_000_000_000_000)), exp: "2"},
	}

	t.Log("Given the need to display wei amounts in ether.")
	{
		for testID, tst := range tt {
			t.Logf("\tTest %d:\tWhen converting %s wei.", testID, tst.wei)
			{
				if got := ledger.WeiToEther(tst.wei); got != tst.exp {
					t.Fatalf("\t%s\tTest %d:\tShould get %s : got %s", failed, testID, tst.exp, got)
				}
				t.Logf("\t%s\tTest %d:\tShould get %s.", success, testID, tst.exp)
			}
		}
	}
}

func TestCanvasSize(t *testing.T) {
	ctx := context.Background()

	t.Log("Given the need to learn the grid size from the ledger.")
	{
		t.Logf("\tTest 0:\tWhen the ledger holds 25 cells.")
		{
			l, err := memory.New(memory.Config{Size: 5})
			ifErrFailNow(t, err)

			size, err := ledger.CanvasSize(ctx, l)
			ifErrFailNow(t, err)

			if size != 5 {
				t.Fatalf("\t%s\tTest 0:\tShould get a size of 5 : got %d", failed, size)
			}
			t.Logf("\t%s\tTest 0:\tShould get a size of 5.", success)

			info, err := ledger.NewReader(l, mustStore(t, 5), nil).Info(ctx)
			ifErrFailNow(t, err)

			if info.Total != 25 || info.TotalSold != 0 {
				t.Fatalf("\t%s\tTest 0:\tShould get the counters : %+v", failed, info)
			}
			t.Logf("\t%s\tTest 0:\tShould get the counters.", success)
		}
	}
}

func mustStore(t *testing.T, size int) *store.Store {
	s, err := store.New(size)
	ifErrFailNow(t, err)
	return s
}

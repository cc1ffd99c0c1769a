package store_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/ardanlabs/pixelboard/foundation/pixelboard/grid"
	"github.com/ardanlabs/pixelboard/foundation/pixelboard/store"
	"github.com/ethereum/go-ethereum/common"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func ifErrFailNow(t *testing.T, err error) {
	if err != nil {
		t.Error(err)
		t.FailNow()
	}
}

func ownedGrid(t *testing.T, size int, owner common.Address, ids ...int) grid.Grid {
	cells := make([]grid.Cell, size*size)
	for _, id := range ids {
		cells[id] = grid.Cell{Owner: owner, Text: "Hi", IsOwned: true}
	}

	g, err := grid.FromCells(size, cells)
	ifErrFailNow(t, err)

	return g
}

func TestReplaceAll(t *testing.T) {
	owner := common.HexToAddress("0xbEE6ACE826eC3DE1B6349888B9151B92522F7F76")

	t.Log("Given the need to cache the grid read from the ledger.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen replacing the grid twice with the same value.", testID)
		{
			s, err := store.New(5)
			ifErrFailNow(t, err)

			g := ownedGrid(t, 5, owner, 13)

			ifErrFailNow(t, s.ReplaceAll(g))
			first := s.Snapshot().Cells()

			ifErrFailNow(t, s.ReplaceAll(g))
			second := s.Snapshot().Cells()

			for i := range first {
				if first[i] != second[i] {
					t.Fatalf("\t%s\tTest %d:\tShould leave lookups unchanged, cell %d differs.", failed, testID, i)
				}
			}
			t.Logf("\t%s\tTest %d:\tShould leave lookups unchanged.", success, testID)

			cell, ok := s.ByCoords(2, 3)
			if !ok || !cell.IsOwned || cell.Owner != owner {
				t.Fatalf("\t%s\tTest %d:\tShould find cell 2,3 owned, got %+v.", failed, testID, cell)
			}
			byID, _ := s.ByIndex(13)
			if byID != cell {
				t.Fatalf("\t%s\tTest %d:\tShould find the same cell by id and by coords.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould find the same cell by id and by coords.", success, testID)

			if _, ok := s.ByIndex(25); ok {
				t.Fatalf("\t%s\tTest %d:\tShould not find an id outside the grid.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould not find an id outside the grid.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen replacing with a grid of the wrong size.", testID)
		{
			s, err := store.New(5)
			ifErrFailNow(t, err)

			if err := s.ReplaceAll(ownedGrid(t, 3, owner, 1)); !errors.Is(err, grid.ErrInvalidSize) {
				t.Fatalf("\t%s\tTest %d:\tShould reject the grid.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould reject the grid.", success, testID)

			if s.Snapshot().Owned() != 0 {
				t.Fatalf("\t%s\tTest %d:\tShould keep the previous grid.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould keep the previous grid.", success, testID)
		}
	}
}

func TestConcurrentReaders(t *testing.T) {
	owner := common.HexToAddress("0x6Fe6CF3c8fF57c58d24BfC869668F48BCbDb3BD9")

	t.Log("Given the need to never observe a partially replaced grid.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen readers race a writer.", testID)
		{
			s, err := store.New(4)
			ifErrFailNow(t, err)

			empty, err := grid.New(4)
			ifErrFailNow(t, err)
			full := ownedGrid(t, 4, owner, 0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15)

			var wg sync.WaitGroup
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := range 1000 {
					g := empty
					if i%2 == 0 {
						g = full
					}
					s.ReplaceAll(g)
				}
			}()

			var torn bool
			for range 1000 {
				owned := s.Snapshot().Owned()
				if owned != 0 && owned != 16 {
					torn = true
				}
			}
			wg.Wait()

			if torn {
				t.Fatalf("\t%s\tTest %d:\tShould only observe whole grids.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould only observe whole grids.", success, testID)
		}
	}
}

func TestLoading(t *testing.T) {
	t.Log("Given the need to show a loading state while fetches are outstanding.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen two fetches overlap.", testID)
		{
			s, err := store.New(3)
			ifErrFailNow(t, err)

			first := s.BeginLoad()
			second := s.BeginLoad()
			s.EndLoad(first, nil)
			if !s.IsLoading() {
				t.Fatalf("\t%s\tTest %d:\tShould be loading while one fetch is outstanding.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould be loading while one fetch is outstanding.", success, testID)

			s.EndLoad(second, errors.New("rpc down"))
			if s.IsLoading() {
				t.Fatalf("\t%s\tTest %d:\tShould clear loading after a failure.", failed, testID)
			}
			if s.LastError() == nil {
				t.Fatalf("\t%s\tTest %d:\tShould keep the failure.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould clear loading and keep the failure.", success, testID)
		}

		testID = 1
		t.Logf("\tTest %d:\tWhen a slow fetch fails after a newer fetch replaced the grid.", testID)
		{
			s, err := store.New(3)
			ifErrFailNow(t, err)

			slow := s.BeginLoad()
			fast := s.BeginLoad()

			g, err := grid.New(3)
			ifErrFailNow(t, err)
			ifErrFailNow(t, s.ReplaceAll(g))
			s.EndLoad(fast, nil)

			s.EndLoad(slow, errors.New("rpc down"))
			if err := s.LastError(); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould not report a failure older than the grid : %s", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould not report a failure older than the grid.", success, testID)

			if s.IsLoading() {
				t.Fatalf("\t%s\tTest %d:\tShould clear loading.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould clear loading.", success, testID)
		}
	}
}

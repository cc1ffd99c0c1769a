package handlers_test

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ardanlabs/pixelboard/app/services/pixelboard/handlers"
	"github.com/ardanlabs/pixelboard/business/sys/imagestore"
	"github.com/ardanlabs/pixelboard/business/web/errs"
	"github.com/ardanlabs/pixelboard/foundation/events"
	"github.com/ardanlabs/pixelboard/foundation/nameservice"
	"github.com/ardanlabs/pixelboard/foundation/pixelboard/board"
	"github.com/ardanlabs/pixelboard/foundation/pixelboard/grid"
	"github.com/ardanlabs/pixelboard/foundation/pixelboard/ledger"
	"github.com/ardanlabs/pixelboard/foundation/pixelboard/ledger/memory"
	"github.com/ardanlabs/pixelboard/foundation/pixelboard/store"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

type apiTest struct {
	t      *testing.T
	mux    http.Handler
	ledger *memory.Ledger
	key    *ecdsa.PrivateKey
}

func newAPITest(t *testing.T) *apiTest {
	dir := t.TempDir()

	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generating key: %s", err)
	}
	if err := crypto.SaveECDSA(filepath.Join(dir, "kennedy.ecdsa"), key); err != nil {
		t.Fatalf("saving key: %s", err)
	}

	l, err := memory.New(memory.Config{Size: 5, AutoMine: true})
	if err != nil {
		t.Fatalf("constructing ledger: %s", err)
	}

	st, err := store.New(5)
	if err != nil {
		t.Fatalf("constructing store: %s", err)
	}

	images, err := imagestore.Open(imagestore.Config{})
	if err != nil {
		t.Fatalf("opening image store: %s", err)
	}
	t.Cleanup(func() { images.Close() })

	ns, err := nameservice.New(dir)
	if err != nil {
		t.Fatalf("loading names: %s", err)
	}

	evts := events.New(time.Minute)

	b, err := board.New(board.Config{
		Reader:   ledger.NewReader(l, st, nil),
		Store:    st,
		Width:    500,
		Height:   500,
		Notifier: evts,
		Uploader: images,
	})
	if err != nil {
		t.Fatalf("constructing board: %s", err)
	}
	t.Cleanup(b.Shutdown)

	wallets := func(ctx context.Context, key *ecdsa.PrivateKey) (ledger.Wallet, error) {
		return l.Wallet(crypto.PubkeyToAddress(key.PublicKey)), nil
	}

	mux := handlers.PublicMux(handlers.MuxConfig{
		Shutdown:  make(chan os.Signal, 1),
		Log:       zap.NewNop().Sugar(),
		Board:     b,
		Images:    images,
		NS:        ns,
		Evts:      evts,
		Wallets:   wallets,
		KeyFolder: dir,
		Origin:    "*",
	})

	return &apiTest{t: t, mux: mux, ledger: l, key: key}
}

func (at *apiTest) do(method string, path string, body string, out any) int {
	var r *http.Request
	switch body {
	case "":
		r = httptest.NewRequest(method, path, nil)
	default:
		r = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	w := httptest.NewRecorder()

	at.mux.ServeHTTP(w, r)

	if out != nil && w.Body.Len() > 0 {
		if err := json.NewDecoder(bytes.NewReader(w.Body.Bytes())).Decode(out); err != nil {
			at.t.Fatalf("decoding %s %s response %q: %s", method, path, w.Body.String(), err)
		}
	}

	return w.Code
}

type action struct {
	Kind   string    `json:"kind"`
	Cell   grid.Cell `json:"cell"`
	FlowID string    `json:"flow_id"`
}

func TestPurchaseAPI(t *testing.T) {
	at := newAPITest(t)

	t.Log("Given the need to purchase a cell through the api.")
	{
		t.Logf("\tTest 0:\tWhen no wallet is connected.")
		{
			var act action
			if code := at.do(http.MethodPost, "/v1/cells/2/3/select", "", &act); code != http.StatusOK {
				t.Fatalf("\t%s\tTest 0:\tShould receive a status code of 200 : got %d", failed, code)
			}

			if act.Kind != "warn_no_wallet" {
				t.Fatalf("\t%s\tTest 0:\tShould warn about the wallet : %+v", failed, act)
			}
			t.Logf("\t%s\tTest 0:\tShould warn about the wallet.", success)

			var notices []events.Notice
			at.do(http.MethodGet, "/v1/notices", "", &notices)
			if len(notices) != 1 || notices[0].Kind != events.KindWarning {
				t.Fatalf("\t%s\tTest 0:\tShould publish a warning : %+v", failed, notices)
			}
			t.Logf("\t%s\tTest 0:\tShould publish a warning.", success)
		}

		t.Logf("\tTest 1:\tWhen the wallet is connected and the flow confirmed.")
		{
			var wi struct {
				Connected bool   `json:"connected"`
				Name      string `json:"name"`
			}
			if code := at.do(http.MethodPost, "/v1/wallet/connect", `{"name":"kennedy"}`, &wi); code != http.StatusOK || !wi.Connected || wi.Name != "kennedy" {
				t.Fatalf("\t%s\tTest 1:\tShould connect the wallet : %d %+v", failed, code, wi)
			}
			t.Logf("\t%s\tTest 1:\tShould connect the wallet.", success)

			var act action
			at.do(http.MethodPost, "/v1/cells/2/3/select", "", &act)
			if act.Kind != "purchase_flow" || act.FlowID == "" {
				t.Fatalf("\t%s\tTest 1:\tShould open the purchase flow : %+v", failed, act)
			}
			t.Logf("\t%s\tTest 1:\tShould open the purchase flow.", success)

			var er errs.Response
			if code := at.do(http.MethodPost, "/v1/flows/"+act.FlowID+"/confirm", `{"text":""}`, &er); code != http.StatusBadRequest || er.Fields["text"] == "" {
				t.Fatalf("\t%s\tTest 1:\tShould reject empty text : %d %+v", failed, code, er)
			}
			t.Logf("\t%s\tTest 1:\tShould reject empty text.", success)

			if code := at.do(http.MethodPost, "/v1/flows/"+act.FlowID+"/confirm", `{"text":"Hi","link":"https://x.com"}`, nil); code != http.StatusAccepted {
				t.Fatalf("\t%s\tTest 1:\tShould receive a status code of 202 : got %d", failed, code)
			}
			t.Logf("\t%s\tTest 1:\tShould receive a status code of 202.", success)
		}

		t.Logf("\tTest 2:\tWhen the purchase is confirmed.")
		{
			type cellResp struct {
				grid.Cell
				OwnerName string `json:"owner_name"`
			}

			var c cellResp
			deadline := time.Now().Add(5 * time.Second)
			for {
				at.do(http.MethodGet, "/v1/pixels/13", "", &c)
				if c.IsOwned || time.Now().After(deadline) {
					break
				}
				time.Sleep(10 * time.Millisecond)
			}

			if !c.IsOwned || c.Owner != crypto.PubkeyToAddress(at.key.PublicKey) || c.OwnerName != "kennedy" {
				t.Fatalf("\t%s\tTest 2:\tShould show cell 13 owned by kennedy : %+v", failed, c)
			}
			t.Logf("\t%s\tTest 2:\tShould show cell 13 owned by kennedy.", success)
		}
	}
}

func TestErrorsAPI(t *testing.T) {
	at := newAPITest(t)

	tt := []struct {
		name   string
		method string
		path   string
		body   string
		status int
	}{
		{name: "bad-id", method: http.MethodGet, path: "/v1/pixels/abc/price", status: http.StatusBadRequest},
		{name: "out-of-range", method: http.MethodGet, path: "/v1/pixels/25/price", status: http.StatusBadRequest},
		{name: "unknown-flow", method: http.MethodDelete, path: "/v1/flows/purchase-1", status: http.StatusNotFound},
		{name: "update-no-wallet", method: http.MethodPost, path: "/v1/pixels/1/update", status: http.StatusPreconditionRequired},
		{name: "unknown-account", method: http.MethodPost, path: "/v1/wallet/connect", body: `{"name":"nobody"}`, status: http.StatusNotFound},
		{name: "bad-pointer", method: http.MethodPost, path: "/v1/viewport/pointer", body: `{"type":"hover"}`, status: http.StatusBadRequest},
		{name: "bad-ack-seq", method: http.MethodPost, path: "/v1/mutation/ack?seq=abc", status: http.StatusBadRequest},
		{name: "missing-image", method: http.MethodGet, path: "/images/0000_none.png", status: http.StatusNotFound},
	}

	t.Log("Given the need to report expected errors with the right status.")
	{
		for testID, tst := range tt {
			t.Logf("\tTest %d:\tWhen calling %s %s.", testID, tst.method, tst.path)
			{
				f := func(t *testing.T) {
					var er errs.Response
					code := at.do(tst.method, tst.path, tst.body, &er)
					if code != tst.status {
						t.Fatalf("\t%s\tTest %d:\tShould receive a status code of %d : got %d %+v", failed, testID, tst.status, code, er)
					}
					t.Logf("\t%s\tTest %d:\tShould receive a status code of %d.", success, testID, tst.status)
				}

				t.Run(tst.name, f)
			}
		}
	}
}

func TestViewportAPI(t *testing.T) {
	at := newAPITest(t)

	type vpResp struct {
		Zoom       float64 `json:"zoom"`
		HasDragged bool    `json:"has_dragged"`
		CellSize   float64 `json:"cell_size"`
	}

	t.Log("Given the need to drive the viewport through the api.")
	{
		t.Logf("\tTest 0:\tWhen zooming in.")
		{
			var vp vpResp
			at.do(http.MethodPost, "/v1/viewport/wheel", `{"delta_y":-100}`, &vp)
			if vp.Zoom < 1.09 || vp.Zoom > 1.11 || vp.CellSize < 109 || vp.CellSize > 111 {
				t.Fatalf("\t%s\tTest 0:\tShould zoom to 1.1 : %+v", failed, vp)
			}
			t.Logf("\t%s\tTest 0:\tShould zoom to 1.1.", success)
		}

		t.Logf("\tTest 1:\tWhen dragging then clicking.")
		{
			at.do(http.MethodPost, "/v1/viewport/reset", "", nil)
			at.do(http.MethodPost, "/v1/viewport/pointer", `{"type":"down","x":100,"y":100}`, nil)
			at.do(http.MethodPost, "/v1/viewport/pointer", `{"type":"move","x":120,"y":100}`, nil)

			var vp vpResp
			at.do(http.MethodPost, "/v1/viewport/pointer", `{"type":"up"}`, &vp)
			if !vp.HasDragged {
				t.Fatalf("\t%s\tTest 1:\tShould latch the drag : %+v", failed, vp)
			}
			t.Logf("\t%s\tTest 1:\tShould latch the drag.", success)

			var act action
			at.do(http.MethodPost, "/v1/viewport/click", `{"x":120,"y":100}`, &act)
			if act.Kind != "none" {
				t.Fatalf("\t%s\tTest 1:\tShould suppress the click : %+v", failed, act)
			}
			t.Logf("\t%s\tTest 1:\tShould suppress the click.", success)
		}
	}
}

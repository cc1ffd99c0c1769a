// Package boardgrp maintains the group of handlers for the pixel board.
package boardgrp

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/ardanlabs/pixelboard/business/sys/imagestore"
	"github.com/ardanlabs/pixelboard/business/web/errs"
	"github.com/ardanlabs/pixelboard/foundation/events"
	"github.com/ardanlabs/pixelboard/foundation/nameservice"
	"github.com/ardanlabs/pixelboard/foundation/pixelboard/board"
	"github.com/ardanlabs/pixelboard/foundation/pixelboard/geometry"
	"github.com/ardanlabs/pixelboard/foundation/pixelboard/grid"
	"github.com/ardanlabs/pixelboard/foundation/pixelboard/ledger"
	"github.com/ardanlabs/pixelboard/foundation/pixelboard/viewport"
	"github.com/ardanlabs/pixelboard/foundation/web"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// WalletFunc constructs the wallet for a private key.
type WalletFunc func(ctx context.Context, key *ecdsa.PrivateKey) (ledger.Wallet, error)

// Handlers manages the set of pixel board endpoints.
type Handlers struct {
	Log       *zap.SugaredLogger
	Board     *board.Board
	Images    *imagestore.Store
	NS        *nameservice.NameService
	Evts      *events.Events
	Wallets   WalletFunc
	KeyFolder string
	WS        websocket.Upgrader
}

// Events handles a web socket to provide notices to a client.
func (h Handlers) Events(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	h.WS.CheckOrigin = func(r *http.Request) bool { return true }

	c, err := h.WS.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	ch := h.Evts.Subscribe(v.TraceID)
	defer h.Evts.Unsubscribe(v.TraceID)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case notice, wd := <-ch:
			if !wd {
				return nil
			}

			if err := c.WriteJSON(notice); err != nil {
				return nil
			}

		case <-ticker.C:
			if err := c.WriteMessage(websocket.PingMessage, []byte("ping")); err != nil {
				return nil
			}
		}
	}
}

// Notices returns the notices that have not expired.
func (h Handlers) Notices(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, h.Evts.Active(), http.StatusOK)
}

// =============================================================================

// Info returns the contract counters.
func (h Handlers) Info(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	info, err := h.Board.Reader().Info(ctx)
	if err != nil {
		return err
	}

	return web.Respond(ctx, w, info, http.StatusOK)
}

// Pixels returns the cached grid.
func (h Handlers) Pixels(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	st := h.Board.Store()
	g := st.Snapshot()

	b := pixels{
		Size:    g.Size(),
		Loading: st.IsLoading(),
		Cells:   make([]cell, 0, g.Len()),
	}

	if err := st.LastError(); err != nil {
		b.LastError = err.Error()
	}

	for _, c := range g.Cells() {
		b.Cells = append(b.Cells, toCell(c, h.NS))
	}

	return web.Respond(ctx, w, b, http.StatusOK)
}

// Pixel returns a single cached cell.
func (h Handlers) Pixel(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	id, err := cellID(r)
	if err != nil {
		return err
	}

	c, ok := h.Board.Store().ByIndex(id)
	if !ok {
		return errs.NewTrusted(fmt.Errorf("id[%d]: %w", id, grid.ErrInvalidCellIndex), http.StatusNotFound)
	}

	return web.Respond(ctx, w, toCell(c, h.NS), http.StatusOK)
}

// Price returns the price the ledger requires to purchase the cell.
func (h Handlers) Price(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	id, err := cellID(r)
	if err != nil {
		return err
	}

	wei, err := h.Board.Reader().FetchPrice(ctx, id)
	if err != nil {
		return err
	}

	return web.Respond(ctx, w, toPrice(id, wei), http.StatusOK)
}

// Refresh reloads the grid from the ledger.
func (h Handlers) Refresh(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	if err := h.Board.Refresh(ctx); err != nil {
		return err
	}

	return h.Pixels(ctx, w, r)
}

// OpenUpdate opens the update flow for a cell owned by the connected wallet.
func (h Handlers) OpenUpdate(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	id, err := cellID(r)
	if err != nil {
		return err
	}

	act, err := h.Board.OpenUpdate(ctx, id)
	if err != nil {
		return err
	}

	return web.Respond(ctx, w, act, http.StatusOK)
}

// =============================================================================

// Viewport returns the viewport state and the geometry derived from it.
func (h Handlers) Viewport(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, h.viewportState(), http.StatusOK)
}

// Pointer applies a pointer down, move or up event.
func (h Handlers) Pointer(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var pe pointerEvent
	if err := web.Decode(r, &pe); err != nil {
		return err
	}

	vp := h.Board.Viewport()
	p := geometry.Point{X: pe.X, Y: pe.Y}

	switch pe.Type {
	case "down":
		vp.PointerDown(p, viewport.Button(pe.Button))
	case "move":
		vp.PointerMove(p)
	case "up":
		vp.PointerUp()
	}

	return web.Respond(ctx, w, h.viewportState(), http.StatusOK)
}

// Wheel applies a wheel event.
func (h Handlers) Wheel(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var we wheelEvent
	if err := web.Decode(r, &we); err != nil {
		return err
	}

	h.Board.Viewport().Wheel(we.DeltaY)

	return web.Respond(ctx, w, h.viewportState(), http.StatusOK)
}

// Resize sets the canvas dimensions.
func (h Handlers) Resize(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var re resizeEvent
	if err := web.Decode(r, &re); err != nil {
		return err
	}

	h.Board.Viewport().Resize(re.Width, re.Height)

	return web.Respond(ctx, w, h.viewportState(), http.StatusOK)
}

// Reset restores the initial zoom and pan.
func (h Handlers) Reset(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	h.Board.Viewport().Reset()

	return web.Respond(ctx, w, h.viewportState(), http.StatusOK)
}

// Click resolves a click on the canvas.
func (h Handlers) Click(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var ce clickEvent
	if err := web.Decode(r, &ce); err != nil {
		return err
	}

	act, err := h.Board.Click(ctx, geometry.Point{X: ce.X, Y: ce.Y})
	if err != nil {
		return err
	}

	return web.Respond(ctx, w, act, http.StatusOK)
}

// Select acts on the cell at the coordinates without going through the
// viewport.
func (h Handlers) Select(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	x, err := strconv.Atoi(web.Param(r, "x"))
	if err != nil {
		return errs.NewTrusted(fmt.Errorf("x: %w", grid.ErrInvalidCellIndex), http.StatusBadRequest)
	}

	y, err := strconv.Atoi(web.Param(r, "y"))
	if err != nil {
		return errs.NewTrusted(fmt.Errorf("y: %w", grid.ErrInvalidCellIndex), http.StatusBadRequest)
	}

	act, err := h.Board.Select(ctx, x, y)
	if err != nil {
		return err
	}

	return web.Respond(ctx, w, act, http.StatusOK)
}

// =============================================================================

// Flows returns the open flows.
func (h Handlers) Flows(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, h.Board.Flows(), http.StatusOK)
}

// ConfirmFlow submits an open flow.
func (h Handlers) ConfirmFlow(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var fc flowConfirm
	if err := web.Decode(r, &fc); err != nil {
		return err
	}

	in := board.FlowInput{
		Text:      fc.Text,
		Link:      fc.Link,
		ImageURL:  fc.ImageURL,
		ImageName: fc.ImageName,
		Image:     fc.Image,
	}

	st, err := h.Board.ConfirmFlow(ctx, web.Param(r, "id"), in)
	if err != nil {
		return err
	}

	return web.Respond(ctx, w, toMutationStatus(st), http.StatusAccepted)
}

// CancelFlow closes a flow before it is submitted.
func (h Handlers) CancelFlow(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	if err := h.Board.CancelFlow(web.Param(r, "id")); err != nil {
		return err
	}

	return web.Respond(ctx, w, nil, http.StatusNoContent)
}

// Mutation returns the state of the mutation controller.
func (h Handlers) Mutation(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, toMutationStatus(h.Board.Mutation().Status()), http.StatusOK)
}

// Acknowledge returns a settled mutation to idle. The seq query parameter
// names the mutation being acknowledged, the current one is used without it.
func (h Handlers) Acknowledge(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	mut := h.Board.Mutation()

	seq := mut.Status().Seq
	if v := r.URL.Query().Get("seq"); v != "" {
		var err error
		if seq, err = strconv.ParseUint(v, 10, 64); err != nil {
			return errs.NewTrusted(fmt.Errorf("seq: %w", err), http.StatusBadRequest)
		}
	}

	if err := mut.Acknowledge(seq); err != nil {
		return err
	}

	return web.Respond(ctx, w, toMutationStatus(h.Board.Mutation().Status()), http.StatusOK)
}

// =============================================================================

// Wallet returns the connected wallet.
func (h Handlers) Wallet(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var wi walletInfo

	if wlt := h.Board.Mutation().Wallet(); wlt != nil {
		wi = walletInfo{
			Connected: true,
			Address:   wlt.Address().Hex(),
			Name:      h.NS.Lookup(wlt.Address()),
		}
	}

	return web.Respond(ctx, w, wi, http.StatusOK)
}

// Connect loads the named key from the key folder and connects its wallet.
func (h Handlers) Connect(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var cw connectWallet
	if err := web.Decode(r, &cw); err != nil {
		return err
	}

	path := filepath.Join(h.KeyFolder, filepath.Base(cw.Name)+".ecdsa")
	key, err := crypto.LoadECDSA(path)
	if err != nil {
		return errs.NewTrusted(fmt.Errorf("unknown account %q", cw.Name), http.StatusNotFound)
	}

	wlt, err := h.Wallets(ctx, key)
	if err != nil {
		return err
	}
	h.Board.ConnectWallet(wlt)

	return h.Wallet(ctx, w, r)
}

// Disconnect removes the wallet.
func (h Handlers) Disconnect(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	h.Board.DisconnectWallet()

	return web.Respond(ctx, w, nil, http.StatusNoContent)
}

// =============================================================================

// UploadImage stores the image sent in the "image" form field.
func (h Handlers) UploadImage(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	const formOverhead = 1 << 20
	r.Body = http.MaxBytesReader(w, r.Body, imagestore.MaxSize+formOverhead)

	file, hdr, err := r.FormFile("image")
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return errs.NewTrusted(fmt.Errorf("%w: file size exceeds 5MB limit", imagestore.ErrUploadRejected), http.StatusBadRequest)
		}
		return errs.NewTrusted(fmt.Errorf("%w: no image file provided", imagestore.ErrUploadRejected), http.StatusBadRequest)
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, imagestore.MaxSize+1))
	if err != nil {
		return fmt.Errorf("reading image: %w", err)
	}

	url, err := h.Images.Upload(ctx, hdr.Filename, data)
	if err != nil {
		return err
	}

	resp := struct {
		ImageURL string `json:"image_url"`
	}{
		ImageURL: url,
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Image serves a stored image.
func (h Handlers) Image(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	img, err := h.Images.Get(ctx, web.Param(r, "name"))
	if err != nil {
		return err
	}

	web.SetStatusCode(ctx, http.StatusOK)

	w.Header().Set("Content-Type", img.MIME)
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	w.WriteHeader(http.StatusOK)

	if _, err := w.Write(img.Data); err != nil {
		return err
	}

	return nil
}

// =============================================================================

func (h Handlers) viewportState() viewportState {
	vp := h.Board.Viewport()
	g := vp.Geometry()

	return viewportState{
		State:    vp.State(),
		CellSize: g.CellSize(),
		Origin:   g.Origin(),
		Bounds:   g.Bounds(),
	}
}

func cellID(r *http.Request) (int, error) {
	id, err := strconv.Atoi(web.Param(r, "id"))
	if err != nil {
		return 0, errs.NewTrusted(fmt.Errorf("id: %w", grid.ErrInvalidCellIndex), http.StatusBadRequest)
	}
	return id, nil
}

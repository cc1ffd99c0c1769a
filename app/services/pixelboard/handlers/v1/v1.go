// Package v1 contains the full set of handler functions and routes
// supported by the v1 web api.
package v1

import (
	"net/http"

	"github.com/ardanlabs/pixelboard/app/services/pixelboard/handlers/v1/boardgrp"
	"github.com/ardanlabs/pixelboard/business/sys/imagestore"
	"github.com/ardanlabs/pixelboard/foundation/events"
	"github.com/ardanlabs/pixelboard/foundation/nameservice"
	"github.com/ardanlabs/pixelboard/foundation/pixelboard/board"
	"github.com/ardanlabs/pixelboard/foundation/web"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const version = "v1"

// WalletFunc constructs the wallet for a private key.
type WalletFunc = boardgrp.WalletFunc

// Config contains all the mandatory systems required by handlers.
type Config struct {
	Log       *zap.SugaredLogger
	Board     *board.Board
	Images    *imagestore.Store
	NS        *nameservice.NameService
	Evts      *events.Events
	Wallets   WalletFunc
	KeyFolder string
}

// Routes binds all the version 1 routes.
func Routes(app *web.App, cfg Config) {
	bgh := boardgrp.Handlers{
		Log:       cfg.Log,
		Board:     cfg.Board,
		Images:    cfg.Images,
		NS:        cfg.NS,
		Evts:      cfg.Evts,
		Wallets:   cfg.Wallets,
		KeyFolder: cfg.KeyFolder,
		WS:        websocket.Upgrader{},
	}

	app.Handle(http.MethodGet, version, "/events", bgh.Events)
	app.Handle(http.MethodGet, version, "/notices", bgh.Notices)

	app.Handle(http.MethodGet, version, "/info", bgh.Info)
	app.Handle(http.MethodGet, version, "/pixels", bgh.Pixels)
	app.Handle(http.MethodGet, version, "/pixels/:id", bgh.Pixel)
	app.Handle(http.MethodGet, version, "/pixels/:id/price", bgh.Price)
	app.Handle(http.MethodPost, version, "/pixels/:id/update", bgh.OpenUpdate)
	app.Handle(http.MethodPost, version, "/refresh", bgh.Refresh)

	app.Handle(http.MethodGet, version, "/viewport", bgh.Viewport)
	app.Handle(http.MethodPost, version, "/viewport/pointer", bgh.Pointer)
	app.Handle(http.MethodPost, version, "/viewport/wheel", bgh.Wheel)
	app.Handle(http.MethodPost, version, "/viewport/resize", bgh.Resize)
	app.Handle(http.MethodPost, version, "/viewport/reset", bgh.Reset)
	app.Handle(http.MethodPost, version, "/viewport/click", bgh.Click)
	app.Handle(http.MethodPost, version, "/cells/:x/:y/select", bgh.Select)

	app.Handle(http.MethodGet, version, "/flows", bgh.Flows)
	app.Handle(http.MethodPost, version, "/flows/:id/confirm", bgh.ConfirmFlow)
	app.Handle(http.MethodDelete, version, "/flows/:id", bgh.CancelFlow)

	app.Handle(http.MethodGet, version, "/mutation", bgh.Mutation)
	app.Handle(http.MethodPost, version, "/mutation/ack", bgh.Acknowledge)

	app.Handle(http.MethodGet, version, "/wallet", bgh.Wallet)
	app.Handle(http.MethodPost, version, "/wallet/connect", bgh.Connect)
	app.Handle(http.MethodDelete, version, "/wallet", bgh.Disconnect)

	app.Handle(http.MethodPost, version, "/images", bgh.UploadImage)
	app.Handle(http.MethodGet, "", "/images/:name", bgh.Image)
}

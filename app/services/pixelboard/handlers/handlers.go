// Package handlers manages the different versions of the API.
package handlers

import (
	"context"
	"expvar"
	"net/http"
	"net/http/pprof"
	"os"

	"github.com/ardanlabs/pixelboard/app/services/pixelboard/handlers/debug/checkgrp"
	v1 "github.com/ardanlabs/pixelboard/app/services/pixelboard/handlers/v1"
	"github.com/ardanlabs/pixelboard/business/sys/imagestore"
	"github.com/ardanlabs/pixelboard/business/web/mid"
	"github.com/ardanlabs/pixelboard/foundation/events"
	"github.com/ardanlabs/pixelboard/foundation/nameservice"
	"github.com/ardanlabs/pixelboard/foundation/pixelboard/board"
	"github.com/ardanlabs/pixelboard/foundation/pixelboard/ledger"
	"github.com/ardanlabs/pixelboard/foundation/web"
	"go.uber.org/zap"
)

// WalletFunc constructs the wallet for a private key.
type WalletFunc = v1.WalletFunc

// MuxConfig contains all the mandatory systems required by handlers.
type MuxConfig struct {
	Shutdown  chan os.Signal
	Log       *zap.SugaredLogger
	Board     *board.Board
	Images    *imagestore.Store
	NS        *nameservice.NameService
	Evts      *events.Events
	Wallets   v1.WalletFunc
	KeyFolder string
	Origin    string
}

// PublicMux constructs a http.Handler with all application routes defined.
func PublicMux(cfg MuxConfig) http.Handler {

	// Construct the web.App which holds all routes as well as common Middleware.
	app := web.NewApp(
		cfg.Shutdown,
		mid.Logger(cfg.Log),
		mid.Errors(cfg.Log),
		mid.Cors(cfg.Origin),
		mid.Panics(),
	)

	// Accept CORS 'OPTIONS' preflight requests.
	h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		return nil
	}
	app.Handle(http.MethodOptions, "", "/*", h)

	// Load the v1 routes.
	v1.Routes(app, v1.Config{
		Log:       cfg.Log,
		Board:     cfg.Board,
		Images:    cfg.Images,
		NS:        cfg.NS,
		Evts:      cfg.Evts,
		Wallets:   cfg.Wallets,
		KeyFolder: cfg.KeyFolder,
	})

	return app
}

// DebugStandardLibraryMux registers all the debug routes from the standard library
// into a new mux bypassing the use of the DefaultServerMux. Using the
// DefaultServerMux would be a security risk since a dependency could inject a
// handler into our service without us knowing it.
func DebugStandardLibraryMux() *http.ServeMux {
	mux := http.NewServeMux()

	// Register all the standard library debug endpoints.
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	mux.Handle("/debug/vars", expvar.Handler())

	return mux
}

// DebugMux registers all the debug standard library routes and then custom
// debug application routes for the service.
func DebugMux(build string, log *zap.SugaredLogger, reader *ledger.Reader) http.Handler {
	mux := DebugStandardLibraryMux()

	// Register debug check endpoints.
	cgh := checkgrp.Handlers{
		Build:  build,
		Log:    log,
		Reader: reader,
	}
	mux.HandleFunc("/debug/readiness", cgh.Readiness)
	mux.HandleFunc("/debug/liveness", cgh.Liveness)

	return mux
}

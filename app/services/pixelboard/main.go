package main

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ardanlabs/conf/v3"
	"github.com/ardanlabs/pixelboard/app/services/pixelboard/handlers"
	"github.com/ardanlabs/pixelboard/business/sys/imagestore"
	"github.com/ardanlabs/pixelboard/foundation/events"
	"github.com/ardanlabs/pixelboard/foundation/logger"
	"github.com/ardanlabs/pixelboard/foundation/nameservice"
	"github.com/ardanlabs/pixelboard/foundation/pixelboard/board"
	"github.com/ardanlabs/pixelboard/foundation/pixelboard/ledger"
	"github.com/ardanlabs/pixelboard/foundation/pixelboard/ledger/contract"
	"github.com/ardanlabs/pixelboard/foundation/pixelboard/ledger/memory"
	"github.com/ardanlabs/pixelboard/foundation/pixelboard/store"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"
)

// build is the git version of this program. It is set using build flags in the makefile.
var build = "develop"

func main() {

	// Construct the application logger.
	log, err := logger.New("PIXEL")
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer log.Sync()

	// Perform the startup and shutdown sequence.
	if err := run(log); err != nil {
		log.Errorw("startup", "ERROR", err)
		log.Sync()
		os.Exit(1)
	}
}

func run(log *zap.SugaredLogger) error {

	// =========================================================================
	// Configuration

	cfg := struct {
		conf.Version
		Web struct {
			ReadTimeout     time.Duration `conf:"default:5s"`
			WriteTimeout    time.Duration `conf:"default:10s"`
			IdleTimeout     time.Duration `conf:"default:120s"`
			ShutdownTimeout time.Duration `conf:"default:20s"`
			DebugHost       string        `conf:"default:0.0.0.0:7080"`
			APIHost         string        `conf:"default:0.0.0.0:8080"`
			CORSOrigin      string        `conf:"default:*"`
		}
		Ledger struct {
			Backend         string        `conf:"default:memory,help:memory or ethereum"`
			URL             string        `conf:"default:ws://localhost:8545"`
			Contract        string        `conf:"default:0x5FbDB2315678afecb367f032d93F642f64180aa3"`
			Size            int           `conf:"default:5,help:grid size of the memory backend"`
			MutationTimeout time.Duration `conf:"default:2m"`
		}
		Board struct {
			Width  float64 `conf:"default:500"`
			Height float64 `conf:"default:500"`
		}
		Images struct {
			DBPath  string `conf:"default:zblock/images.db"`
			BaseURL string `conf:"default:/images/"`
		}
		Wallet struct {
			Folder  string `conf:"default:zblock/accounts/"`
			Connect string `conf:"help:name of the account to connect at startup"`
		}
		Notices struct {
			TTL time.Duration `conf:"default:3s"`
		}
	}{
		Version: conf.Version{
			Build: build,
			Desc:  "copyright information here",
		},
	}

	// Parse will set the defaults and then look for any overriding values
	// in environment variables and command line flags.
	const prefix = "PIXEL"
	help, err := conf.Parse(prefix, &cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	// =========================================================================
	// App Starting

	log.Infow("starting service", "version", build)
	defer log.Infow("shutdown complete")

	// Display the current configuration to the logs.
	out, err := conf.String(&cfg)
	if err != nil {
		return fmt.Errorf("generating config for output: %w", err)
	}
	log.Infow("startup", "config", out)

	// =========================================================================
	// Name Service Support

	// The names come from the file names in the accounts folder.
	ns, err := nameservice.New(cfg.Wallet.Folder)
	if err != nil {
		return fmt.Errorf("unable to load account name service: %w", err)
	}

	for account, name := range ns.Copy() {
		log.Infow("startup", "status", "nameservice", "name", name, "account", account)
	}

	// =========================================================================
	// Ledger Support

	// The board packages accept a function of this signature to allow the
	// application to log.
	ev := func(v string, args ...any) {
		s := fmt.Sprintf(v, args...)
		log.Infow(s, "traceid", "00000000-0000-0000-0000-000000000000")
	}

	ctx := context.Background()

	var backend ledger.Backend
	var watcher ledger.Watcher
	var wallets handlers.WalletFunc

	switch cfg.Ledger.Backend {
	case "memory":
		mem, err := memory.New(memory.Config{Size: cfg.Ledger.Size, AutoMine: true})
		if err != nil {
			return fmt.Errorf("constructing memory ledger: %w", err)
		}

		backend, watcher = mem, mem
		wallets = func(ctx context.Context, key *ecdsa.PrivateKey) (ledger.Wallet, error) {
			return mem.Wallet(crypto.PubkeyToAddress(key.PublicKey)), nil
		}

	case "ethereum":
		if !common.IsHexAddress(cfg.Ledger.Contract) {
			return fmt.Errorf("invalid contract address %q", cfg.Ledger.Contract)
		}

		ctr, client, err := contract.Dial(ctx, cfg.Ledger.URL, common.HexToAddress(cfg.Ledger.Contract))
		if err != nil {
			return fmt.Errorf("connecting to ledger: %w", err)
		}
		defer client.Close()

		backend, watcher = ctr, ctr
		wallets = func(ctx context.Context, key *ecdsa.PrivateKey) (ledger.Wallet, error) {
			return contract.NewWallet(ctx, ctr, key, ev)
		}

	default:
		return fmt.Errorf("unknown ledger backend %q", cfg.Ledger.Backend)
	}

	size, err := ledger.CanvasSize(ctx, backend)
	if err != nil {
		return fmt.Errorf("reading canvas size: %w", err)
	}
	log.Infow("startup", "status", "ledger connected", "backend", cfg.Ledger.Backend, "size", size)

	st, err := store.New(size)
	if err != nil {
		return fmt.Errorf("constructing store: %w", err)
	}

	reader := ledger.NewReader(backend, st, ev)

	// =========================================================================
	// Image Support

	if dir := filepath.Dir(cfg.Images.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating image folder: %w", err)
		}
	}

	images, err := imagestore.Open(imagestore.Config{
		Path:    cfg.Images.DBPath,
		BaseURL: cfg.Images.BaseURL,
	})
	if err != nil {
		return fmt.Errorf("opening image store: %w", err)
	}
	defer images.Close()

	// =========================================================================
	// Board Support

	// Notices are published to every websocket client connected through the
	// events package.
	evts := events.New(cfg.Notices.TTL)

	b, err := board.New(board.Config{
		Reader:          reader,
		Store:           st,
		Width:           cfg.Board.Width,
		Height:          cfg.Board.Height,
		Notifier:        evts,
		Uploader:        images,
		Watcher:         watcher,
		MutationTimeout: cfg.Ledger.MutationTimeout,
		EvHandler:       ev,
	})
	if err != nil {
		return fmt.Errorf("constructing board: %w", err)
	}
	defer b.Shutdown()

	// A failed initial read leaves the default grid in place, it is retried
	// with the refresh endpoint.
	if err := b.Refresh(ctx); err != nil {
		log.Errorw("startup", "status", "initial refresh", "ERROR", err)
	}

	if cfg.Wallet.Connect != "" {
		key, err := crypto.LoadECDSA(filepath.Join(cfg.Wallet.Folder, cfg.Wallet.Connect+".ecdsa"))
		if err != nil {
			return fmt.Errorf("unable to load private key for wallet: %w", err)
		}

		w, err := wallets(ctx, key)
		if err != nil {
			return fmt.Errorf("constructing wallet: %w", err)
		}
		b.ConnectWallet(w)
	}

	watchCtx, cancelWatch := context.WithCancel(ctx)
	defer cancelWatch()

	go func() {
		if err := b.Watch(watchCtx); err != nil {
			log.Errorw("watch", "status", "ledger events unavailable", "ERROR", err)
		}
	}()

	// =========================================================================
	// Start Debug Service

	log.Infow("startup", "status", "debug v1 router started", "host", cfg.Web.DebugHost)

	// Construct the mux for the debug calls.
	debugMux := handlers.DebugMux(build, log, reader)

	// Start the service listening for debug requests.
	// Not concerned with shutting this down with load shedding.
	go func() {
		if err := http.ListenAndServe(cfg.Web.DebugHost, debugMux); err != nil {
			log.Errorw("shutdown", "status", "debug v1 router closed", "host", cfg.Web.DebugHost, "ERROR", err)
		}
	}()

	// =========================================================================
	// Service Start/Stop Support

	// Make a channel to listen for an interrupt or terminate signal from the OS.
	// Use a buffered channel because the signal package requires it.
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	// Make a channel to listen for errors coming from the listener. Use a
	// buffered channel so the goroutine can exit if we don't collect this error.
	serverErrors := make(chan error, 1)

	// =========================================================================
	// Start API Service

	log.Infow("startup", "status", "initializing V1 API support")

	// Construct the mux for the API calls.
	apiMux := handlers.PublicMux(handlers.MuxConfig{
		Shutdown:  shutdown,
		Log:       log,
		Board:     b,
		Images:    images,
		NS:        ns,
		Evts:      evts,
		Wallets:   wallets,
		KeyFolder: cfg.Wallet.Folder,
		Origin:    cfg.Web.CORSOrigin,
	})

	// Construct a server to service the requests against the mux.
	api := http.Server{
		Addr:         cfg.Web.APIHost,
		Handler:      apiMux,
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		ErrorLog:     zap.NewStdLog(log.Desugar()),
	}

	// Start the service listening for api requests.
	go func() {
		log.Infow("startup", "status", "api router started", "host", api.Addr)
		serverErrors <- api.ListenAndServe()
	}()

	// =========================================================================
	// Shutdown

	// Blocking main and waiting for shutdown.
	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		log.Infow("shutdown", "status", "shutdown started", "signal", sig)
		defer log.Infow("shutdown", "status", "shutdown complete", "signal", sig)

		// Release any web sockets that are currently active.
		log.Infow("shutdown", "status", "shutdown web socket channels")
		evts.Shutdown()

		// Give outstanding requests a deadline for completion.
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
		defer cancel()

		// Asking listener to shut down and shed load.
		if err := api.Shutdown(ctx); err != nil {
			api.Close()
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
	}

	return nil
}

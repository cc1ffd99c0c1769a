// This program performs administrative tasks for the pixel board service.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ardanlabs/pixelboard/app/tooling/admin/commands"
	"github.com/ardanlabs/pixelboard/business/sys/imagestore"
	"github.com/ardanlabs/pixelboard/foundation/logger"
	"go.uber.org/zap"
)

// build is the git version of this program. It is set using build flags in the makefile.
var build = "develop"

func main() {

	// Construct the application logger.
	log, err := logger.New("ADMIN")
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
	log.Infow("startup", "version", build)

	dbPath := os.Getenv("PIXEL_IMAGES_DB_PATH")
	if dbPath == "" {
		dbPath = "zblock/images.db"
	}

	store, err := imagestore.Open(imagestore.Config{Path: dbPath})
	if err != nil {
		return err
	}
	defer store.Close()

	return processCommands(os.Args, store)
}

// processCommands handles the execution of the commands specified on
// the command line.
func processCommands(args []string, store *imagestore.Store) error {
	if len(args) < 2 {
		return errors.New("usage: admin images | rmimage <name>")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	switch args[1] {
	case "images":
		if err := commands.Images(ctx, os.Stdout, store); err != nil {
			return fmt.Errorf("listing images: %w", err)
		}
	case "rmimage":
		if err := commands.RemoveImage(ctx, args, store); err != nil {
			return fmt.Errorf("removing image: %w", err)
		}
	default:
		return fmt.Errorf("unknown command %q", args[1])
	}

	return nil
}

// Package commands contains the functionality for the set of commands
// currently supported by the admin tool.
package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/ardanlabs/pixelboard/business/sys/imagestore"
)

// Images writes the set of stored images.
func Images(ctx context.Context, w io.Writer, store *imagestore.Store) error {
	images, err := store.List(ctx)
	if err != nil {
		return err
	}

	for _, img := range images {
		fmt.Fprintf(w, "Name: %-40s  Type: %-12s  Size: %8d  Created: %s\n", img.Name, img.MIME, img.Size, img.Created.Format(time.RFC3339))
	}

	return nil
}

// RemoveImage deletes the image named by the third argument.
func RemoveImage(ctx context.Context, args []string, store *imagestore.Store) error {
	if len(args) != 3 {
		return errors.New("image name required")
	}

	return store.Delete(ctx, args[2])
}

package cmd

import (
	"fmt"
	"strings"

	"github.com/ardanlabs/pixelboard/foundation/pixelboard/grid"
	"github.com/ardanlabs/pixelboard/foundation/pixelboard/ledger"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"
)

var gridCmd = &cobra.Command{
	Use:   "grid",
	Short: "Print the board, marking the cells you own.",
	RunE:  gridRun,
}

func init() {
	rootCmd.AddCommand(gridCmd)
}

func gridRun(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	c, client, err := dial(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	size, err := ledger.CanvasSize(ctx, c)
	if err != nil {
		return err
	}

	cells, err := c.AllPixels(ctx)
	if err != nil {
		return err
	}

	g, err := grid.FromCells(size, cells)
	if err != nil {
		return err
	}

	var mine func(grid.Cell) bool
	switch privateKey, err := loadPrivateKey(); {
	case err == nil:
		account := crypto.PubkeyToAddress(privateKey.PublicKey)
		mine = func(cell grid.Cell) bool { return cell.Owner == account }
	default:
		mine = func(grid.Cell) bool { return false }
	}

	var b strings.Builder
	for y := range size {
		for x := range size {
			cell, _ := g.At(x, y)
			switch {
			case cell.IsOwned && mine(cell):
				b.WriteByte('@')
			case cell.IsOwned:
				b.WriteByte('#')
			default:
				b.WriteByte('.')
			}
		}
		b.WriteByte('\n')
	}

	fmt.Fprint(cmd.OutOrStdout(), b.String())

	return nil
}

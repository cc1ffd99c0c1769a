package cmd

import (
	"fmt"

	"github.com/ardanlabs/pixelboard/foundation/pixelboard/ledger"
	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Print the contract counters.",
	RunE:  infoRun,
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

func infoRun(cmd *cobra.Command, args []string) error {
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

	sold, err := c.TotalSold(ctx)
	if err != nil {
		return err
	}

	initial, err := c.InitialPrice(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Contract:      %s\n", c.Address().Hex())
	fmt.Fprintf(out, "Grid:          %dx%d\n", size, size)
	fmt.Fprintf(out, "Sold:          %d of %d\n", sold, size*size)
	fmt.Fprintf(out, "Initial Price: %s ETH\n", ledger.WeiToEther(initial))

	return nil
}

package cmd

import (
	"fmt"

	"github.com/ardanlabs/pixelboard/foundation/pixelboard/ledger"
	"github.com/spf13/cobra"
)

var priceCmd = &cobra.Command{
	Use:   "price",
	Short: "Print the price of a cell.",
	RunE:  priceRun,
}

func init() {
	rootCmd.AddCommand(priceCmd)
	priceCmd.Flags().IntVarP(&cellID, "id", "i", 0, "Id of the cell.")
}

func priceRun(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	c, client, err := dial(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	wei, err := c.PixelPrice(ctx, cellID)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Cell %d: %s ETH (%s wei)\n", cellID, ledger.WeiToEther(wei), wei)

	return nil
}

package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ardanlabs/pixelboard/foundation/pixelboard/ledger"
	"github.com/ardanlabs/pixelboard/foundation/pixelboard/ledger/contract"
	"github.com/spf13/cobra"
)

var (
	cellID   int
	text     string
	imageURL string
	link     string
	timeout  time.Duration
)

var purchaseCmd = &cobra.Command{
	Use:   "purchase",
	Short: "Purchase a cell at the price the contract asks for.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return writeRun(cmd, ledger.KindPurchase)
	},
}

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Update the content of a cell you own.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return writeRun(cmd, ledger.KindUpdate)
	},
}

func init() {
	for _, c := range []*cobra.Command{purchaseCmd, updateCmd} {
		rootCmd.AddCommand(c)
		c.Flags().IntVarP(&cellID, "id", "i", 0, "Id of the cell.")
		c.Flags().StringVarP(&text, "text", "t", "", "Text of the cell.")
		c.Flags().StringVarP(&imageURL, "image", "m", "", "Url of the cell image.")
		c.Flags().StringVarP(&link, "link", "l", "", "Link opened when the cell is clicked.")
		c.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "How long to wait for the transaction to be mined.")
	}
}

func writeRun(cmd *cobra.Command, kind ledger.Kind) error {
	if text == "" {
		return ledger.ErrEmptyText
	}

	privateKey, err := loadPrivateKey()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	c, client, err := dial(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	out := cmd.OutOrStdout()
	evHandler := func(v string, args ...any) {
		fmt.Fprintf(out, v+"\n", args...)
	}

	wallet, err := contract.NewWallet(ctx, c, privateKey, evHandler)
	if err != nil {
		return err
	}

	write := ledger.Write{
		Kind:     kind,
		CellID:   cellID,
		Text:     text,
		ImageURL: imageURL,
		Link:     link,
	}

	if kind == ledger.KindPurchase {
		wei, err := c.PixelPrice(ctx, cellID)
		if err != nil {
			return fmt.Errorf("price: %w", err)
		}
		write.Value = wei
		fmt.Fprintf(out, "Price: %s ETH\n", ledger.WeiToEther(wei))
	}

	h, err := wallet.Send(ctx, write)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Tx: %s\n", h.Hash.Hex())

	rcpt, err := wallet.Confirm(ctx, h)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("tx[%s]: not mined after %s", h.Hash.Hex(), timeout)
		}
		return err
	}

	if !rcpt.Success {
		return fmt.Errorf("tx[%s]: reverted in block %d", h.Hash.Hex(), rcpt.Block)
	}

	fmt.Fprintf(out, "Confirmed in block %d, gas used %d\n", rcpt.Block, rcpt.GasUsed)

	return nil
}

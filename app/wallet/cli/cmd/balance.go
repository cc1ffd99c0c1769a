package cmd

import (
	"fmt"

	"github.com/ardanlabs/pixelboard/foundation/pixelboard/ledger"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"
)

var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Print your balance.",
	RunE:  balanceRun,
}

func init() {
	rootCmd.AddCommand(balanceCmd)
}

func balanceRun(cmd *cobra.Command, args []string) error {
	privateKey, err := loadPrivateKey()
	if err != nil {
		return err
	}

	account := crypto.PubkeyToAddress(privateKey.PublicKey)
	fmt.Fprintln(cmd.OutOrStdout(), "For Account:", account.Hex())

	_, client, err := dial(cmd.Context())
	if err != nil {
		return err
	}
	defer client.Close()

	wei, err := client.BalanceAt(cmd.Context(), account, nil)
	if err != nil {
		return fmt.Errorf("balance: %w", ledger.Unavailable(err))
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s ETH\n", ledger.WeiToEther(wei))

	return nil
}

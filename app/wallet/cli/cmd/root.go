// Package cmd contains the pixel board wallet app.
package cmd

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/ardanlabs/pixelboard/foundation/pixelboard/ledger/contract"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/spf13/cobra"
)

var (
	accountName  string
	accountPath  string
	nodeURL      string
	contractAddr string
)

const (
	keyExtenstion = ".ecdsa"
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&accountName, "account", "a", "private.ecdsa", "Path to the private key.")
	rootCmd.PersistentFlags().StringVarP(&accountPath, "account-path", "p", "zblock/accounts/", "Path to the directory with private keys.")
	rootCmd.PersistentFlags().StringVarP(&nodeURL, "url", "u", "http://localhost:8545", "Url of the ethereum node.")
	rootCmd.PersistentFlags().StringVarP(&contractAddr, "contract", "c", "0x5FbDB2315678afecb367f032d93F642f64180aa3", "Address of the pixel board contract.")
}

var rootCmd = &cobra.Command{
	Use:          "pixel",
	Short:        "Your pixel board wallet",
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func getPrivateKeyPath() string {
	if !strings.HasSuffix(accountName, keyExtenstion) {
		accountName += keyExtenstion
	}

	return filepath.Join(accountPath, accountName)
}

func loadPrivateKey() (*ecdsa.PrivateKey, error) {
	key, err := crypto.LoadECDSA(getPrivateKeyPath())
	if err != nil {
		return nil, fmt.Errorf("loading key: %w", err)
	}

	return key, nil
}

func dial(ctx context.Context) (*contract.Contract, *ethclient.Client, error) {
	if !common.IsHexAddress(contractAddr) {
		return nil, nil, fmt.Errorf("invalid contract address %q", contractAddr)
	}

	return contract.Dial(ctx, nodeURL, common.HexToAddress(contractAddr))
}

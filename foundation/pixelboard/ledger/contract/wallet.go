package contract

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ardanlabs/pixelboard/foundation/pixelboard/ledger"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// receiptPollInterval is how often the node is asked for a receipt while a
// transaction is waiting to be mined.
const receiptPollInterval = 2 * time.Second

// Wallet signs and sends contract writes with a private key. Signing is
// delegated to the go-ethereum keyed transactor.
type Wallet struct {
	contract  *Contract
	opts      *bind.TransactOpts
	evHandler ledger.EventHandler
}

// NewWallet constructs a wallet for the private key. The chain id is read
// from the node so transactions are replay protected.
func NewWallet(ctx context.Context, c *Contract, key *ecdsa.PrivateKey, evHandler ledger.EventHandler) (*Wallet, error) {
	chainID, err := c.backend.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("chain id: %w", ledger.Unavailable(err))
	}

	opts, err := bind.NewKeyedTransactorWithChainID(key, chainID)
	if err != nil {
		return nil, fmt.Errorf("transactor: %w", err)
	}

	ev := func(v string, args ...any) {
		if evHandler != nil {
			evHandler(v, args...)
		}
	}

	w := Wallet{
		contract:  c,
		opts:      opts,
		evHandler: ev,
	}

	return &w, nil
}

// Address implements the ledger.Wallet interface.
func (w *Wallet) Address() common.Address {
	return w.opts.From
}

// Send implements the ledger.Wallet interface.
func (w *Wallet) Send(ctx context.Context, write ledger.Write) (ledger.TxHandle, error) {
	opts := *w.opts
	opts.Context = ctx

	var method string
	switch write.Kind {
	case ledger.KindPurchase:
		method = "purchasePixel"
		opts.Value = write.Value
	case ledger.KindUpdate:
		method = "updatePixel"
		opts.Value = nil
	default:
		return ledger.TxHandle{}, fmt.Errorf("unknown write kind %d", write.Kind)
	}

	tx, err := w.contract.bound.Transact(&opts, method, big.NewInt(int64(write.CellID)), write.Text, write.ImageURL, write.Link)
	if err != nil {
		return ledger.TxHandle{}, fmt.Errorf("%s: %w", method, w.contract.decodeError(err))
	}

	w.evHandler("contract: Send: %s: cell[%d]: tx[%s]", method, write.CellID, tx.Hash())

	h := ledger.TxHandle{
		Hash: tx.Hash(),
		From: opts.From,
		Kind: write.Kind,
	}

	return h, nil
}

// Confirm implements the ledger.Wallet interface. The node is polled for the
// receipt until it exists or the context is done.
func (w *Wallet) Confirm(ctx context.Context, h ledger.TxHandle) (ledger.Receipt, error) {
	ticker := time.NewTicker(receiptPollInterval)
	defer ticker.Stop()

	for {
		rcpt, err := w.contract.backend.TransactionReceipt(ctx, h.Hash)
		switch {
		case err == nil:
			r := ledger.Receipt{
				Hash:    h.Hash,
				GasUsed: rcpt.GasUsed,
				Success: rcpt.Status == types.ReceiptStatusSuccessful,
			}
			if rcpt.BlockNumber != nil {
				r.Block = rcpt.BlockNumber.Uint64()
			}
			return r, nil

		case errors.Is(err, ethereum.NotFound):
			w.evHandler("contract: Confirm: tx[%s]: waiting to be mined", h.Hash)

		default:
			w.evHandler("contract: Confirm: tx[%s]: WARNING: %s", h.Hash, err)
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return ledger.Receipt{}, ctx.Err()
		}
	}
}

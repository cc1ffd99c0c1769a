package contract

import (
	"context"
	"math/big"

	"github.com/ardanlabs/pixelboard/foundation/pixelboard/ledger"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// pixelPurchased mirrors the PixelPurchased event.
type pixelPurchased struct {
	Buyer         common.Address
	PixelId       *big.Int
	Text          string
	ImageUrl      string
	Link          string
	Price         *big.Int
	PurchaseCount *big.Int
}

// pixelUpdated mirrors the PixelUpdated event.
type pixelUpdated struct {
	Owner    common.Address
	PixelId  *big.Int
	Text     string
	ImageUrl string
	Link     string
}

// Watch implements the ledger.Watcher interface. The backend must support
// subscriptions, which means a websocket or IPC connection to the node.
func (c *Contract) Watch(ctx context.Context, events chan<- ledger.Event) error {
	opts := bind.WatchOpts{Context: ctx}

	purchased, purchasedSub, err := c.bound.WatchLogs(&opts, "PixelPurchased")
	if err != nil {
		return ledger.Unavailable(err)
	}
	defer purchasedSub.Unsubscribe()

	updated, updatedSub, err := c.bound.WatchLogs(&opts, "PixelUpdated")
	if err != nil {
		return ledger.Unavailable(err)
	}
	defer updatedSub.Unsubscribe()

	for {
		var evt ledger.Event

		select {
		case lg := <-purchased:
			var out pixelPurchased
			if err := c.bound.UnpackLog(&out, "PixelPurchased", lg); err != nil {
				continue
			}
			evt = ledger.Event{
				Kind:          ledger.EventPurchased,
				CellID:        int(out.PixelId.Int64()),
				Account:       out.Buyer,
				Text:          out.Text,
				ImageURL:      out.ImageUrl,
				Link:          out.Link,
				Price:         out.Price,
				PurchaseCount: out.PurchaseCount.Uint64(),
				Block:         blockOf(lg),
			}

		case lg := <-updated:
			var out pixelUpdated
			if err := c.bound.UnpackLog(&out, "PixelUpdated", lg); err != nil {
				continue
			}
			evt = ledger.Event{
				Kind:     ledger.EventUpdated,
				CellID:   int(out.PixelId.Int64()),
				Account:  out.Owner,
				Text:     out.Text,
				ImageURL: out.ImageUrl,
				Link:     out.Link,
				Block:    blockOf(lg),
			}

		case err := <-purchasedSub.Err():
			return ledger.Unavailable(err)

		case err := <-updatedSub.Err():
			return ledger.Unavailable(err)

		case <-ctx.Done():
			return ctx.Err()
		}

		select {
		case events <- evt:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func blockOf(lg types.Log) uint64 {
	return lg.BlockNumber
}

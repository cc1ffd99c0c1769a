package boardgrp

import (
	"math/big"

	"github.com/ardanlabs/pixelboard/foundation/nameservice"
	"github.com/ardanlabs/pixelboard/foundation/pixelboard/geometry"
	"github.com/ardanlabs/pixelboard/foundation/pixelboard/grid"
	"github.com/ardanlabs/pixelboard/foundation/pixelboard/ledger"
	"github.com/ardanlabs/pixelboard/foundation/pixelboard/mutation"
	"github.com/ardanlabs/pixelboard/foundation/pixelboard/viewport"
	"github.com/ardanlabs/pixelboard/foundation/validate"
	"github.com/ethereum/go-ethereum/common"
)

type cell struct {
	grid.Cell
	OwnerName string `json:"owner_name,omitempty"`
}

func toCell(c grid.Cell, ns *nameservice.NameService) cell {
	cl := cell{Cell: c}
	if c.IsOwned {
		cl.OwnerName = ns.Lookup(c.Owner)
	}
	return cl
}

type pixels struct {
	Size      int    `json:"size"`
	Loading   bool   `json:"loading"`
	LastError string `json:"last_error,omitempty"`
	Cells     []cell `json:"cells"`
}

type price struct {
	ID    int    `json:"id"`
	Wei   string `json:"wei"`
	Ether string `json:"ether"`
}

func toPrice(id int, wei *big.Int) price {
	return price{
		ID:    id,
		Wei:   wei.String(),
		Ether: ledger.WeiToEther(wei),
	}
}

type viewportState struct {
	viewport.State
	CellSize float64        `json:"cell_size"`
	Origin   geometry.Point `json:"origin"`
	Bounds   geometry.Rect  `json:"bounds"`
}

type receipt struct {
	Hash    string `json:"hash"`
	Block   uint64 `json:"block"`
	GasUsed uint64 `json:"gas_used"`
	Success bool   `json:"success"`
}

type mutationStatus struct {
	Seq     uint64           `json:"seq"`
	State   string           `json:"state"`
	Request mutation.Request `json:"request"`
	TxHash  string           `json:"tx_hash,omitempty"`
	Price   *price           `json:"price,omitempty"`
	Receipt *receipt         `json:"receipt,omitempty"`
	Error   string           `json:"error,omitempty"`
}

func toMutationStatus(st mutation.Status) mutationStatus {
	ms := mutationStatus{
		Seq:     st.Seq,
		State:   st.State.String(),
		Request: st.Request,
	}

	if st.State == mutation.StateIdle {
		ms.Request = mutation.Request{}
	}

	if st.Tx.Hash != (common.Hash{}) {
		ms.TxHash = st.Tx.Hash.Hex()
	}

	if st.Price != nil {
		p := toPrice(st.Request.CellID, st.Price)
		ms.Price = &p
	}

	if st.State == mutation.StateConfirmed {
		ms.Receipt = &receipt{
			Hash:    st.Receipt.Hash.Hex(),
			Block:   st.Receipt.Block,
			GasUsed: st.Receipt.GasUsed,
			Success: st.Receipt.Success,
		}
	}

	if st.Err != nil {
		ms.Error = st.Err.Error()
	}

	return ms
}

// =============================================================================

type pointerEvent struct {
	Type   string  `json:"type" validate:"required,oneof=down move up"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Button int     `json:"button" validate:"min=0,max=2"`
}

// Validate checks the data in the model is considered clean.
func (p pointerEvent) Validate() error {
	return validate.Check(p)
}

type wheelEvent struct {
	DeltaY float64 `json:"delta_y"`
}

type resizeEvent struct {
	Width  float64 `json:"width" validate:"gt=0"`
	Height float64 `json:"height" validate:"gt=0"`
}

// Validate checks the data in the model is considered clean.
func (r resizeEvent) Validate() error {
	return validate.Check(r)
}

type clickEvent struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type flowConfirm struct {
	Text      string `json:"text" validate:"required"`
	Link      string `json:"link" validate:"omitempty,url"`
	ImageURL  string `json:"image_url"`
	ImageName string `json:"image_name"`
	Image     []byte `json:"image"`
}

// Validate checks the data in the model is considered clean.
func (f flowConfirm) Validate() error {
	return validate.Check(f)
}

type connectWallet struct {
	Name string `json:"name" validate:"required,alphanum"`
}

// Validate checks the data in the model is considered clean.
func (c connectWallet) Validate() error {
	return validate.Check(c)
}

type walletInfo struct {
	Connected bool   `json:"connected"`
	Address   string `json:"address,omitempty"`
	Name      string `json:"name,omitempty"`
}

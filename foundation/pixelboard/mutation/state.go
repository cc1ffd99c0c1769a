package mutation

import (
	"math/big"

	"github.com/ardanlabs/pixelboard/foundation/pixelboard/ledger"
)

// State represents the phase of the mutation being tracked.
type State int

// Set of mutation states.
const (
	StateIdle State = iota
	StateSubmitting
	StateAwaitingConfirmation
	StateConfirmed
	StateFailed
)

// String implements the fmt.Stringer interface.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSubmitting:
		return "submitting"
	case StateAwaitingConfirmation:
		return "awaiting_confirmation"
	case StateConfirmed:
		return "confirmed"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// InFlight reports whether a submission is being processed. No other
// submission is accepted while this is true.
func (s State) InFlight() bool {
	return s == StateSubmitting || s == StateAwaitingConfirmation
}

// Settled reports whether the state is terminal and waiting to be
// acknowledged.
func (s State) Settled() bool {
	return s == StateConfirmed || s == StateFailed
}

// =============================================================================

// Request represents a purchase or update of a single cell.
type Request struct {
	Kind     ledger.Kind `json:"kind"`
	CellID   int         `json:"cell_id"`
	Text     string      `json:"text"`
	ImageURL string      `json:"image_url"`
	Link     string      `json:"link"`
}

// Status is a snapshot of the controller. The fields that are set depend on
// the state:
//
//	Submitting:            Request
//	AwaitingConfirmation:  Request, Tx, Price
//	Confirmed:             Request, Tx, Price, Receipt
//	Failed:                Request, Err and Tx when one was obtained
type Status struct {
	Seq     uint64
	State   State
	Request Request
	Tx      ledger.TxHandle
	Price   *big.Int
	Receipt ledger.Receipt
	Err     error
}

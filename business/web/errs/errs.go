// Package errs provides types and support related to web v1 functionality.
package errs

import (
	"errors"
	"net/http"

	"github.com/ardanlabs/pixelboard/business/sys/imagestore"
	"github.com/ardanlabs/pixelboard/foundation/pixelboard/board"
	"github.com/ardanlabs/pixelboard/foundation/pixelboard/grid"
	"github.com/ardanlabs/pixelboard/foundation/pixelboard/ledger"
	"github.com/ardanlabs/pixelboard/foundation/pixelboard/mutation"
	"github.com/ardanlabs/pixelboard/foundation/pixelboard/overlay"
)

// Response is the form used for API responses from failures in the API.
type Response struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// Trusted is used to pass an error during the request through the
// application with web specific context.
type Trusted struct {
	Err    error
	Status int
}

// NewTrusted wraps a provided error with an HTTP status code. This
// function should be used when handlers encounter expected errors.
func NewTrusted(err error, status int) error {
	return &Trusted{err, status}
}

// Error implements the error interface. It uses the default message of the
// wrapped error. This is what will be shown in the services' logs.
func (re *Trusted) Error() string {
	return re.Err.Error()
}

// Unwrap returns the wrapped error.
func (re *Trusted) Unwrap() error {
	return re.Err
}

// IsTrusted checks if an error of type Trusted exists.
func IsTrusted(err error) bool {
	var re *Trusted
	return errors.As(err, &re)
}

// GetTrusted returns a copy of the Trusted pointer.
func GetTrusted(err error) *Trusted {
	var re *Trusted
	if !errors.As(err, &re) {
		return nil
	}
	return re
}

// =============================================================================

// statuses maps the expected board errors to the status returned to clients.
var statuses = []struct {
	err    error
	status int
}{
	{grid.ErrInvalidCellIndex, http.StatusBadRequest},
	{ledger.ErrEmptyText, http.StatusBadRequest},
	{ledger.ErrInsufficientPayment, http.StatusPaymentRequired},
	{ledger.ErrNotOwner, http.StatusForbidden},
	{mutation.ErrNoWallet, http.StatusPreconditionRequired},
	{mutation.ErrInFlight, http.StatusConflict},
	{mutation.ErrReverted, http.StatusConflict},
	{mutation.ErrTimeout, http.StatusGatewayTimeout},
	{imagestore.ErrUploadRejected, http.StatusBadRequest},
	{imagestore.ErrNotFound, http.StatusNotFound},
	{board.ErrFlowNotFound, http.StatusNotFound},
	{overlay.ErrNotFound, http.StatusNotFound},
	{ledger.ErrLedgerUnavailable, http.StatusBadGateway},
}

// Map returns the error as a trusted error when it belongs to the board
// error taxonomy. Any other error is returned untouched.
func Map(err error) error {
	if err == nil || IsTrusted(err) {
		return err
	}

	for _, s := range statuses {
		if errors.Is(err, s.err) {
			return NewTrusted(err, s.status)
		}
	}

	return err
}

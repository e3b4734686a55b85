package bridge

import (
	"errors"
	"fmt"

	errorsmod "cosmossdk.io/errors"

	"github.com/blockberries/bridgeberry/types"
)

// Codespace is the error registry namespace of the bridge.
const Codespace = "bridge"

// Error taxonomy. Every failure aborts the operation with no state
// mutation; none of these are retried internally.
var (
	ErrInsufficientValue = errorsmod.Register(Codespace, 2, "escrowed value below price floor")
	ErrWrongStatus       = errorsmod.Register(Codespace, 3, "query in wrong status")
	ErrInvalidProof      = errorsmod.Register(Codespace, 4, "invalid merkle proof")
	ErrUnauthorized      = errorsmod.Register(Codespace, 5, "unauthorized caller")
	ErrNotFound          = errorsmod.Register(Codespace, 6, "query not found")
	ErrTamperedRequest   = errorsmod.Register(Codespace, 7, "request payload changed after posting")
	ErrAlreadyReleased   = errorsmod.Register(Codespace, 8, "reward already released")

	ErrUnknownBlock   = errorsmod.Register(Codespace, 10, "unknown external block")
	ErrNotEligible    = errorsmod.Register(Codespace, 11, "claimant not eligible")
	ErrEmptyPayload   = errorsmod.Register(Codespace, 12, "empty or unaddressable request payload")
	ErrEmptyResult    = errorsmod.Register(Codespace, 13, "empty result or proof reference")
	ErrTransferFailed = errorsmod.Register(Codespace, 14, "value transfer failed")
	ErrUnsupported    = errorsmod.Register(Codespace, 15, "operation not supported by bridge variant")
	ErrInvalidConfig  = errorsmod.Register(Codespace, 16, "invalid configuration")
	ErrOverflow       = errorsmod.Register(Codespace, 17, "amount overflow")
)

var registered = []*errorsmod.Error{
	ErrInsufficientValue, ErrWrongStatus, ErrInvalidProof, ErrUnauthorized,
	ErrNotFound, ErrTamperedRequest, ErrAlreadyReleased, ErrUnknownBlock,
	ErrNotEligible, ErrEmptyPayload, ErrEmptyResult, ErrTransferFailed,
	ErrUnsupported, ErrInvalidConfig, ErrOverflow,
}

// WrongStatusError reports a guard mismatch: the operation required
// one of Expected but the query was in Actual.
type WrongStatusError struct {
	ID       types.QueryID
	Expected []types.Status
	Actual   types.Status
}

func (e *WrongStatusError) Error() string {
	return fmt.Sprintf("%s: query %s is %s, expected %v", ErrWrongStatus.Error(), e.ID, e.Actual, e.Expected)
}

// Unwrap lets errors.Is(err, ErrWrongStatus) match.
func (e *WrongStatusError) Unwrap() error { return ErrWrongStatus }

// NewWrongStatusError creates a new WrongStatusError.
func NewWrongStatusError(id types.QueryID, actual types.Status, expected ...types.Status) *WrongStatusError {
	return &WrongStatusError{ID: id, Expected: expected, Actual: actual}
}

// AsWrongStatus checks whether an error is a WrongStatusError and returns it.
func AsWrongStatus(err error) (*WrongStatusError, bool) {
	var ws *WrongStatusError
	if errors.As(err, &ws) {
		return ws, true
	}
	return nil, false
}

// CodeOf returns the registry code of the first taxonomy error in the
// chain, or 1 for errors outside the taxonomy.
func CodeOf(err error) uint32 {
	if err == nil {
		return 0
	}
	for _, e := range registered {
		if errors.Is(err, e) {
			return e.ABCICode()
		}
	}
	return 1
}

// FromCode returns the taxonomy error registered under code, or nil.
func FromCode(code uint32) error {
	for _, e := range registered {
		if e.ABCICode() == code {
			return e
		}
	}
	return nil
}

// Kind returns a short stable label for metrics and logs.
func Kind(err error) string {
	if err == nil {
		return "ok"
	}
	for _, e := range registered {
		if errors.Is(err, e) {
			return e.Error()
		}
	}
	return "internal"
}

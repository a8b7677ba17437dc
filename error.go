package settlement

import (
	"errors"

	"github.com/0x5487/rfq-settlement/protocol"
)

var (
	ErrInvalidOrderSignature           = errors.New("invalid order signature")
	ErrInvalidNonce                    = errors.New("invalid nonce")
	ErrExpired                         = errors.New("order expired")
	ErrInsufficientTakerAmountReceived = errors.New("insufficient taker amount received")
	ErrMakerBalanceTooLow              = errors.New("maker balance too low")
	ErrWithdrawTooMuch                 = errors.New("withdraw amount exceeds balance")
	ErrCancelled                       = errors.New("order cancelled")
	ErrOrderAlreadyFilled              = errors.New("order already filled")
	ErrInvalidCancel                   = errors.New("caller cannot cancel this order")
	ErrTakerFillAmountTooHigh          = errors.New("taker fill amount exceeds remaining amount")
	ErrNoPartialFill                   = errors.New("order does not allow partial fills")
	ErrBalanceViolation                = errors.New("custody balance violation")
	ErrInvalidAsset                    = errors.New("unexpected asset")

	ErrInvalidParam     = errors.New("the param is invalid")
	ErrInternal         = errors.New("internal server error")
	ErrTimeout          = errors.New("timeout")
	ErrShutdown         = errors.New("settlement engine is shutting down")
	ErrNotFound         = errors.New("not found")
	ErrTransferRejected = errors.New("transfer rejected by recipient")
	ErrChecksumMismatch = errors.New("snapshot checksum mismatch")
)

var errorKinds = []struct {
	kind protocol.ErrorKind
	err  error
}{
	{protocol.ErrorKindInvalidOrderSignature, ErrInvalidOrderSignature},
	{protocol.ErrorKindInvalidNonce, ErrInvalidNonce},
	{protocol.ErrorKindExpired, ErrExpired},
	{protocol.ErrorKindInsufficientTakerAmountReceived, ErrInsufficientTakerAmountReceived},
	{protocol.ErrorKindMakerBalanceTooLow, ErrMakerBalanceTooLow},
	{protocol.ErrorKindWithdrawTooMuch, ErrWithdrawTooMuch},
	{protocol.ErrorKindCancelled, ErrCancelled},
	{protocol.ErrorKindOrderAlreadyFilled, ErrOrderAlreadyFilled},
	{protocol.ErrorKindInvalidCancel, ErrInvalidCancel},
	{protocol.ErrorKindTakerFillAmountTooHigh, ErrTakerFillAmountTooHigh},
	{protocol.ErrorKindNoPartialFill, ErrNoPartialFill},
	{protocol.ErrorKindBalanceViolation, ErrBalanceViolation},
	{protocol.ErrorKindInvalidAsset, ErrInvalidAsset},
	{protocol.ErrorKindInvalidParam, ErrInvalidParam},
}

// KindOf maps an error returned by the engine to its wire code.
// nil maps to ErrorKindNone.
func KindOf(err error) protocol.ErrorKind {
	if err == nil {
		return protocol.ErrorKindNone
	}
	for _, e := range errorKinds {
		if errors.Is(err, e.err) {
			return e.kind
		}
	}
	return protocol.ErrorKindUnknown
}

// ErrorOf returns the sentinel error for a wire code, or nil for ErrorKindNone.
func ErrorOf(kind protocol.ErrorKind) error {
	if kind == protocol.ErrorKindNone {
		return nil
	}
	for _, e := range errorKinds {
		if e.kind == kind {
			return e.err
		}
	}
	return ErrInternal
}

package protocol

// ErrorKind is the wire code of a settlement failure. The numeric values are
// stable and shared with every client that decodes validation results.
type ErrorKind uint8

const (
	ErrorKindNone                            ErrorKind = 0
	ErrorKindInvalidOrderSignature           ErrorKind = 1
	ErrorKindInvalidNonce                    ErrorKind = 2
	ErrorKindExpired                         ErrorKind = 3
	ErrorKindInsufficientTakerAmountReceived ErrorKind = 4
	ErrorKindMakerBalanceTooLow              ErrorKind = 5
	ErrorKindWithdrawTooMuch                 ErrorKind = 6
	ErrorKindCancelled                       ErrorKind = 7
	ErrorKindOrderAlreadyFilled              ErrorKind = 8
	ErrorKindInvalidCancel                   ErrorKind = 9
	ErrorKindTakerFillAmountTooHigh          ErrorKind = 10
	ErrorKindNoPartialFill                   ErrorKind = 11
	ErrorKindBalanceViolation                ErrorKind = 12
	ErrorKindInvalidAsset                    ErrorKind = 13
	ErrorKindInvalidParam                    ErrorKind = 14

	// ErrorKindUnknown marks failures outside the settlement taxonomy
	// (shutdown, timeouts, custody faults).
	ErrorKindUnknown ErrorKind = 255
)

var errorKindNames = map[ErrorKind]string{
	ErrorKindNone:                            "no_error",
	ErrorKindInvalidOrderSignature:           "invalid_order_signature",
	ErrorKindInvalidNonce:                    "invalid_nonce",
	ErrorKindExpired:                         "expired",
	ErrorKindInsufficientTakerAmountReceived: "insufficient_taker_amount_received",
	ErrorKindMakerBalanceTooLow:              "maker_balance_too_low",
	ErrorKindWithdrawTooMuch:                 "withdraw_too_much",
	ErrorKindCancelled:                       "cancelled",
	ErrorKindOrderAlreadyFilled:              "order_already_filled",
	ErrorKindInvalidCancel:                   "invalid_cancel",
	ErrorKindTakerFillAmountTooHigh:          "taker_fill_amount_too_high",
	ErrorKindNoPartialFill:                   "no_partial_fill",
	ErrorKindBalanceViolation:                "balance_violation",
	ErrorKindInvalidAsset:                    "invalid_asset",
	ErrorKindInvalidParam:                    "invalid_param",
	ErrorKindUnknown:                         "unknown",
}

func (k ErrorKind) String() string {
	if name, ok := errorKindNames[k]; ok {
		return name
	}
	return "unknown"
}

// OrderState is the lifecycle state of an order as derived from its fill status.
type OrderState uint8

const (
	OrderStateOpen            OrderState = 0
	OrderStatePartiallyFilled OrderState = 1
	OrderStateFullyFilled     OrderState = 2
	OrderStateCancelled       OrderState = 3
)

func (s OrderState) String() string {
	switch s {
	case OrderStateOpen:
		return "open"
	case OrderStatePartiallyFilled:
		return "partially_filled"
	case OrderStateFullyFilled:
		return "fully_filled"
	case OrderStateCancelled:
		return "cancelled"
	}
	return "unknown"
}

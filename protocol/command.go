package protocol

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// CommandType defines the type of the command (using uint8 for memory alignment and performance)
type CommandType uint8

// Command Type Numbering Strategy:
// - 0-50:  Maker account management (escrow, delegates, invalidation)
// - 51+:   Settlement commands (hot path)
const (
	CmdUnknown          CommandType = 0
	CmdDeposit          CommandType = 1
	CmdWithdraw         CommandType = 2
	CmdInvalidateNonce  CommandType = 3
	CmdRegisterDelegate CommandType = 4

	CmdFill        CommandType = 51
	CmdFillFunded  CommandType = 52
	CmdCancelOrder CommandType = 53
)

// Command is the standard carrier for commands entering the settlement engine.
// It is designed to be efficient for serialization and compatible with Event Sourcing.
type Command struct {
	// Version is the protocol version for backward compatibility.
	Version uint8 `json:"version"`

	// SeqID is used for global ordering and deduplication.
	SeqID uint64 `json:"seq_id"`

	// Type identifies the payload type for fast routing.
	Type CommandType `json:"type"`

	// Payload contains the serialized business data (e.g., JSON bytes of FillCommand).
	Payload []byte `json:"payload"`

	// Metadata stores non-business context (e.g., Tracing ID, Source IP).
	Metadata map[string]string `json:"metadata,omitempty"`
}

// OrderPayload is the wire form of a signed RFQ order.
type OrderPayload struct {
	MakerAsset    common.Hash    `json:"maker_asset"`
	TakerAsset    common.Hash    `json:"taker_asset"`
	MakerAmount   uint64         `json:"maker_amount"`
	TakerAmount   uint64         `json:"taker_amount"`
	Maker         common.Address `json:"maker"`
	Nonce         uint64         `json:"nonce"`
	MakerTraits   uint64         `json:"maker_traits"`
	MakerReceiver common.Address `json:"maker_receiver"`
}

// RecipientPayload identifies where settlement proceeds are sent.
type RecipientPayload struct {
	Address    common.Address `json:"address"`
	IsContract bool           `json:"is_contract,omitempty"`
}

// DepositCommand moves an attached payment into escrow for Receiver
// (the caller when Receiver is the zero address).
type DepositCommand struct {
	Caller   common.Address `json:"caller"`
	Receiver common.Address `json:"receiver,omitempty"`
	Asset    common.Hash    `json:"asset"`
	Amount   uint64         `json:"amount"`
}

// WithdrawCommand moves escrowed funds back to the caller.
type WithdrawCommand struct {
	Caller common.Address `json:"caller"`
	Asset  common.Hash    `json:"asset"`
	Amount uint64         `json:"amount"`
}

// FillCommand settles an order against a forwarded payment.
type FillCommand struct {
	Caller          common.Address   `json:"caller"`
	Order           OrderPayload     `json:"order"`
	Signature       hexutil.Bytes    `json:"signature"`
	TakerFillAmount uint64           `json:"taker_fill_amount"`
	TakerReceiver   RecipientPayload `json:"taker_receiver"`
	PaymentAsset    common.Hash      `json:"payment_asset"`
	PaymentAmount   uint64           `json:"payment_amount"`
}

// FillFundedCommand settles an order against funds already placed in custody.
type FillFundedCommand struct {
	Caller          common.Address   `json:"caller"`
	Order           OrderPayload     `json:"order"`
	Signature       hexutil.Bytes    `json:"signature"`
	TakerFillAmount uint64           `json:"taker_fill_amount"`
	TakerReceiver   RecipientPayload `json:"taker_receiver"`
}

// CancelOrderCommand cancels a single order. When Signature is set the
// cancellation is authorized by the maker's signature instead of the caller.
type CancelOrderCommand struct {
	Caller    common.Address `json:"caller"`
	Order     OrderPayload   `json:"order"`
	Signature hexutil.Bytes  `json:"signature,omitempty"`
}

// InvalidateNonceCommand raises the caller's nonce floor for an asset pair.
type InvalidateNonceCommand struct {
	Caller     common.Address `json:"caller"`
	MakerAsset common.Hash    `json:"maker_asset"`
	TakerAsset common.Hash    `json:"taker_asset"`
	Nonce      uint64         `json:"nonce"`
}

// RegisterDelegateCommand toggles an order signer delegate for the caller.
type RegisterDelegateCommand struct {
	Caller   common.Address `json:"caller"`
	Delegate common.Address `json:"delegate"`
	Active   bool           `json:"active"`
}

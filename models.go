package settlement

import (
	"math/big"

	"github.com/0x5487/rfq-settlement/protocol"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

type ErrorKind = protocol.ErrorKind

type OrderState = protocol.OrderState

const (
	Open            OrderState = protocol.OrderStateOpen
	PartiallyFilled OrderState = protocol.OrderStatePartiallyFilled
	FullyFilled     OrderState = protocol.OrderStateFullyFilled
	Cancelled       OrderState = protocol.OrderStateCancelled
)

// Order is a maker-signed offer to exchange up to MakerAmount of MakerAsset
// for up to TakerAmount of TakerAsset at the fixed rate MakerAmount/TakerAmount.
// Orders are never stored; the order hash is their identity.
type Order struct {
	MakerAsset  common.Hash    `json:"maker_asset"`
	TakerAsset  common.Hash    `json:"taker_asset"`
	MakerAmount uint64         `json:"maker_amount"`
	TakerAmount uint64         `json:"taker_amount"`
	Maker       common.Address `json:"maker"`
	Nonce       uint64         `json:"nonce"`
	MakerTraits uint64         `json:"maker_traits"` // see Traits

	// MakerReceiver receives the taker asset directly. The zero address keeps
	// the proceeds in the maker's escrow balance.
	MakerReceiver common.Address `json:"maker_receiver"`
}

// Traits decodes the bit-packed MakerTraits field.
func (o *Order) Traits() Traits {
	return DecodeTraits(o.MakerTraits)
}

// Rate returns maker units offered per taker unit. Display only.
func (o *Order) Rate() decimal.Decimal {
	if o.TakerAmount == 0 {
		return decimal.Zero
	}
	maker := decimal.NewFromBigInt(new(big.Int).SetUint64(o.MakerAmount), 0)
	taker := decimal.NewFromBigInt(new(big.Int).SetUint64(o.TakerAmount), 0)
	return maker.DivRound(taker, 18)
}

func (o *Order) hasCustomReceiver() bool {
	return o.MakerReceiver != (common.Address{})
}

// makerRecipient is the destination of taker-asset proceeds when the order
// names a custom receiver.
func (o *Order) makerRecipient() Recipient {
	return Recipient{Address: o.MakerReceiver, IsContract: o.Traits().ReceiverIsContract}
}

func (o *Order) payload() protocol.OrderPayload {
	return protocol.OrderPayload{
		MakerAsset:    o.MakerAsset,
		TakerAsset:    o.TakerAsset,
		MakerAmount:   o.MakerAmount,
		TakerAmount:   o.TakerAmount,
		Maker:         o.Maker,
		Nonce:         o.Nonce,
		MakerTraits:   o.MakerTraits,
		MakerReceiver: o.MakerReceiver,
	}
}

func orderFromPayload(p *protocol.OrderPayload) *Order {
	return &Order{
		MakerAsset:    p.MakerAsset,
		TakerAsset:    p.TakerAsset,
		MakerAmount:   p.MakerAmount,
		TakerAmount:   p.TakerAmount,
		Maker:         p.Maker,
		Nonce:         p.Nonce,
		MakerTraits:   p.MakerTraits,
		MakerReceiver: p.MakerReceiver,
	}
}

// FillStatus is the persisted progress of an order, keyed by order hash.
type FillStatus struct {
	Cancelled         bool   `json:"cancelled"`
	TakerFilledAmount uint64 `json:"taker_filled_amount"`
}

// State derives the lifecycle state of order from its fill status.
func (s FillStatus) State(order *Order) OrderState {
	switch {
	case s.Cancelled:
		return Cancelled
	case s.TakerFilledAmount >= order.TakerAmount:
		return FullyFilled
	case s.TakerFilledAmount > 0:
		return PartiallyFilled
	}
	return Open
}

// Recipient is a destination of an outbound transfer: a plain account or a contract.
type Recipient struct {
	Address    common.Address `json:"address"`
	IsContract bool           `json:"is_contract,omitempty"`
}

// AccountRecipient returns a plain account recipient.
func AccountRecipient(addr common.Address) Recipient {
	return Recipient{Address: addr}
}

// ContractRecipient returns a contract recipient.
func ContractRecipient(addr common.Address) Recipient {
	return Recipient{Address: addr, IsContract: true}
}

func recipientFromPayload(p protocol.RecipientPayload) Recipient {
	return Recipient{Address: p.Address, IsContract: p.IsContract}
}

// Payment is value attached to a call: exactly Amount units of Asset.
type Payment struct {
	Asset  common.Hash `json:"asset"`
	Amount uint64      `json:"amount"`
}

// AssetBalance is a single escrow balance of a maker.
type AssetBalance struct {
	Asset  common.Hash `json:"asset"`
	Amount uint64      `json:"amount"`
}

// FillResult describes a committed fill.
type FillResult struct {
	OrderHash         common.Hash `json:"order_hash"`
	MakerFillAmount   uint64      `json:"maker_fill_amount"`
	TakerFillAmount   uint64      `json:"taker_fill_amount"`
	TakerFilledAmount uint64      `json:"taker_filled_amount"` // cumulative
	State             OrderState  `json:"state"`
}

package settlement

import (
	"sync"
	"time"

	"github.com/0x5487/rfq-settlement/protocol"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/xid"
	"github.com/shopspring/decimal"
)

// LogType represents the type of event log.
type LogType string

const (
	LogTypeDeposit          LogType = "deposit"
	LogTypeWithdraw         LogType = "withdraw"
	LogTypeFill             LogType = "fill"
	LogTypeCancel           LogType = "cancel"
	LogTypeNonceInvalidated LogType = "nonce_invalidated"
	LogTypeDelegate         LogType = "delegate"
	LogTypeReject           LogType = "reject"
)

// SettlementLog represents an event of the settlement engine.
// SequenceID is a globally increasing ID for every event, used for ordering,
// deduplication, and rebuild synchronization in downstream systems.
// Every type except Reject reflects a committed state change.
type SettlementLog struct {
	ID              string               `json:"id"`
	SequenceID      uint64               `json:"seq_id"`
	Type            LogType              `json:"type"`
	Caller          common.Address       `json:"caller"`
	Maker           common.Address       `json:"maker,omitempty"`
	OrderHash       common.Hash          `json:"order_hash,omitempty"`
	Asset           common.Hash          `json:"asset,omitempty"` // deposit, withdraw
	Amount          uint64               `json:"amount,omitempty"`
	MakerAsset      common.Hash          `json:"maker_asset,omitempty"`
	TakerAsset      common.Hash          `json:"taker_asset,omitempty"`
	MakerFillAmount uint64               `json:"maker_fill_amount,omitempty"`
	TakerFillAmount uint64               `json:"taker_fill_amount,omitempty"`
	Rate            decimal.Decimal      `json:"rate,omitempty"` // maker units per taker unit, only set for Fill events
	Receiver        common.Address       `json:"receiver,omitempty"`
	Nonce           uint64               `json:"nonce,omitempty"`
	Delegate        common.Address       `json:"delegate,omitempty"`
	Active          bool                 `json:"active,omitempty"`
	CommandType     protocol.CommandType `json:"command_type,omitempty"`
	ErrorKind       protocol.ErrorKind   `json:"error_kind,omitempty"` // only set for Reject events
	CreatedAt       time.Time            `json:"created_at"`
}

var settlementLogPool = sync.Pool{
	New: func() any {
		return new(SettlementLog)
	},
}

func acquireSettlementLog(seqID uint64, logType LogType, caller common.Address, now time.Time) *SettlementLog {
	log := settlementLogPool.Get().(*SettlementLog)
	log.ID = xid.New().String()
	log.SequenceID = seqID
	log.Type = logType
	log.Caller = caller
	log.CreatedAt = now.UTC()
	return log
}

func releaseSettlementLog(log *SettlementLog) {
	// For decimal.Decimal, the zero value (nil internal pointer) represents 0, which is valid.
	*log = SettlementLog{}
	settlementLogPool.Put(log)
}

func newDepositLog(seqID uint64, now time.Time, caller, receiver common.Address, p Payment) *SettlementLog {
	log := acquireSettlementLog(seqID, LogTypeDeposit, caller, now)
	log.Maker = receiver
	log.Asset = p.Asset
	log.Amount = p.Amount
	return log
}

func newWithdrawLog(seqID uint64, now time.Time, maker common.Address, asset common.Hash, amount uint64) *SettlementLog {
	log := acquireSettlementLog(seqID, LogTypeWithdraw, maker, now)
	log.Maker = maker
	log.Asset = asset
	log.Amount = amount
	return log
}

func newFillLog(seqID uint64, now time.Time, caller common.Address, order *Order, result *FillResult, receiver Recipient) *SettlementLog {
	log := acquireSettlementLog(seqID, LogTypeFill, caller, now)
	log.Maker = order.Maker
	log.OrderHash = result.OrderHash
	log.MakerAsset = order.MakerAsset
	log.TakerAsset = order.TakerAsset
	log.MakerFillAmount = result.MakerFillAmount
	log.TakerFillAmount = result.TakerFillAmount
	log.Rate = order.Rate()
	log.Receiver = receiver.Address
	return log
}

func newCancelLog(seqID uint64, now time.Time, caller common.Address, order *Order, orderHash common.Hash) *SettlementLog {
	log := acquireSettlementLog(seqID, LogTypeCancel, caller, now)
	log.Maker = order.Maker
	log.OrderHash = orderHash
	log.MakerAsset = order.MakerAsset
	log.TakerAsset = order.TakerAsset
	log.Nonce = order.Nonce
	return log
}

func newNonceLog(seqID uint64, now time.Time, maker common.Address, makerAsset, takerAsset common.Hash, floor uint64) *SettlementLog {
	log := acquireSettlementLog(seqID, LogTypeNonceInvalidated, maker, now)
	log.Maker = maker
	log.MakerAsset = makerAsset
	log.TakerAsset = takerAsset
	log.Nonce = floor
	return log
}

func newDelegateLog(seqID uint64, now time.Time, maker, delegate common.Address, active bool) *SettlementLog {
	log := acquireSettlementLog(seqID, LogTypeDelegate, maker, now)
	log.Maker = maker
	log.Delegate = delegate
	log.Active = active
	return log
}

func newRejectLog(seqID uint64, now time.Time, caller common.Address, cmdType protocol.CommandType, orderHash common.Hash, kind protocol.ErrorKind) *SettlementLog {
	log := acquireSettlementLog(seqID, LogTypeReject, caller, now)
	log.OrderHash = orderHash
	log.CommandType = cmdType
	log.ErrorKind = kind
	return log
}

package settlement

import (
	"time"

	"github.com/0x5487/rfq-settlement/protocol"
	"github.com/ethereum/go-ethereum/common"
)

// Option configures a Settlement or an Engine.
type Option func(*options)

type options struct {
	clock         func() time.Time
	publishLog    PublishLog
	serializer    protocol.Serializer
	recoveryTTL   time.Duration
	capacity      int64
	snapshotStore SnapshotStore
}

func defaultOptions() *options {
	return &options{
		clock:       time.Now,
		publishLog:  NewDiscardPublishLog(),
		serializer:  &protocol.DefaultJSONSerializer{},
		recoveryTTL: 5 * time.Minute,
		capacity:    defaultRingCapacity,
	}
}

// WithClock sets the time source used for expiry checks.
func WithClock(clock func() time.Time) Option {
	return func(o *options) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithPublishLog sets the sink for settlement logs.
func WithPublishLog(p PublishLog) Option {
	return func(o *options) {
		if p != nil {
			o.publishLog = p
		}
	}
}

// WithSerializer sets the payload serializer used by EnqueueCommand.
func WithSerializer(s protocol.Serializer) Option {
	return func(o *options) {
		if s != nil {
			o.serializer = s
		}
	}
}

// WithRecoveryCache sets how long recovered signers are memoized. Zero disables it.
func WithRecoveryCache(ttl time.Duration) Option {
	return func(o *options) {
		o.recoveryTTL = ttl
	}
}

// WithCapacity sets the engine's command ring size; it must be a power of 2.
func WithCapacity(capacity int64) Option {
	return func(o *options) {
		o.capacity = capacity
	}
}

// WithSnapshotStore sets where the engine writes and reads snapshots.
func WithSnapshotStore(store SnapshotStore) Option {
	return func(o *options) {
		o.snapshotStore = store
	}
}

// Settlement is the RFQ settlement state transition function of one
// settlement instance. Every method runs to completion and either commits all
// of its effects or none. It is not safe for concurrent use; see Engine.
type Settlement struct {
	instance   common.Hash
	ledger     *Ledger
	custody    Custody
	auth       *Authorizer
	clock      func() time.Time
	publishLog PublishLog
	seqID      uint64
}

// NewSettlement creates a settlement instance. instance is folded into every
// order hash so signatures cannot be replayed against another instance.
func NewSettlement(instance common.Hash, custody Custody, opts ...Option) *Settlement {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return newSettlement(instance, custody, o)
}

func newSettlement(instance common.Hash, custody Custody, o *options) *Settlement {
	ledger := NewLedger()
	return &Settlement{
		instance:   instance,
		ledger:     ledger,
		custody:    custody,
		auth:       NewAuthorizer(ledger, o.recoveryTTL),
		clock:      o.clock,
		publishLog: o.publishLog,
	}
}

// Instance returns the identity folded into order hashes.
func (s *Settlement) Instance() common.Hash {
	return s.instance
}

// Ledger exposes the settlement tables for read access.
func (s *Settlement) Ledger() *Ledger {
	return s.ledger
}

// PackOrder returns the canonical encoding of order for this instance.
func (s *Settlement) PackOrder(order *Order) []byte {
	return PackOrder(s.instance, order)
}

// OrderHash returns the identity of order for this instance.
func (s *Settlement) OrderHash(order *Order) common.Hash {
	return OrderHash(s.instance, order)
}

// MakerBalance returns the escrow balance of maker in asset.
func (s *Settlement) MakerBalance(maker common.Address, asset common.Hash) uint64 {
	return s.ledger.MakerBalance(maker, asset)
}

// MakerBalances lists all escrow balances of maker.
func (s *Settlement) MakerBalances(maker common.Address) []AssetBalance {
	return s.ledger.MakerBalances(maker)
}

// Balance returns the total custodied amount of asset.
func (s *Settlement) Balance(asset common.Hash) uint64 {
	return s.custody.Balance(asset)
}

// OrderFillStatus returns the fill status of an order hash.
func (s *Settlement) OrderFillStatus(orderHash common.Hash) FillStatus {
	return s.ledger.FillStatus(orderHash)
}

// Nonce returns the nonce floor of maker for the asset pair.
func (s *Settlement) Nonce(maker common.Address, makerAsset, takerAsset common.Hash) uint64 {
	return s.ledger.NonceFloor(maker, makerAsset, takerAsset)
}

// IsOrderSignerDelegate reports whether delegate signs for maker.
func (s *Settlement) IsOrderSignerDelegate(maker, delegate common.Address) bool {
	return s.ledger.IsDelegate(maker, delegate)
}

// ValidateOrder checks signature, expiry, nonce floor and cancellation, in
// that order, without mutating anything. It returns the order hash and
// ErrorKindNone when the order may be filled.
func (s *Settlement) ValidateOrder(order *Order, signature []byte) (common.Hash, ErrorKind) {
	orderHash := s.OrderHash(order)

	if !s.auth.Authorize(orderHash, order.Maker, signature) {
		return orderHash, protocol.ErrorKindInvalidOrderSignature
	}
	if order.Traits().Expired(s.clock()) {
		return orderHash, protocol.ErrorKindExpired
	}
	if order.Nonce <= s.ledger.NonceFloor(order.Maker, order.MakerAsset, order.TakerAsset) {
		return orderHash, protocol.ErrorKindInvalidNonce
	}
	if s.ledger.FillStatus(orderHash).Cancelled {
		return orderHash, protocol.ErrorKindCancelled
	}
	return orderHash, protocol.ErrorKindNone
}

func (s *Settlement) nextSeqID() uint64 {
	s.seqID++
	return s.seqID
}

func (s *Settlement) publish(log *SettlementLog) {
	s.publishLog.Publish(log)
	releaseSettlementLog(log)
}

// reject publishes a Reject log for a failed mutating call.
func (s *Settlement) reject(caller common.Address, cmdType protocol.CommandType, orderHash common.Hash, err error) {
	kind := KindOf(err)
	logger.Debug("settlement command rejected",
		"command_type", cmdType,
		"caller", caller.Hex(),
		"order_hash", orderHash.Hex(),
		"error_kind", kind.String(),
		"error", err,
	)
	s.publish(newRejectLog(s.nextSeqID(), s.clock(), caller, cmdType, orderHash, kind))
}

package settlement

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/0x5487/rfq-settlement/protocol"
	"github.com/ethereum/go-ethereum/common"
)

type response struct {
	data any
	err  error
}

// inputEvent is one slot of the engine's ring buffer.
type inputEvent struct {
	cmdSeqID uint64
	exec     func(s *Settlement) response
	resp     chan response // nil for fire-and-forget commands
}

// Engine serializes every call on a Settlement through a single consumer, so
// callers on any goroutine observe the same total order of operations.
type Engine struct {
	settlement    *Settlement
	ring          *RingBuffer[inputEvent]
	serializer    protocol.Serializer
	snapshotStore SnapshotStore
	clock         func() int64
	lastCmdSeqID  atomic.Uint64
	isShutdown    atomic.Bool
}

// NewEngine creates an engine for one settlement instance. Call Run to start
// processing.
func NewEngine(instance common.Hash, custody Custody, opts ...Option) *Engine {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	engine := &Engine{
		settlement:    newSettlement(instance, custody, o),
		serializer:    o.serializer,
		snapshotStore: o.snapshotStore,
		clock:         func() int64 { return o.clock().UnixNano() },
	}
	engine.ring = NewRingBuffer[inputEvent](o.capacity, engine)
	return engine
}

// Run processes commands on the calling goroutine until Shutdown.
func (e *Engine) Run() {
	e.ring.Run()
}

// Shutdown stops accepting commands and waits until the queued ones are
// processed or ctx is done.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.isShutdown.Store(true)
	if err := e.ring.Shutdown(ctx); err != nil {
		return err
	}
	logger.Info("settlement engine stopped",
		"instance", e.settlement.instance.Hex(),
		"last_cmd_seq_id", e.LastCmdSeqID(),
	)
	return nil
}

// OnEvent implements EventHandler. It runs on the consumer goroutine only.
func (e *Engine) OnEvent(ev *inputEvent) {
	res := ev.exec(e.settlement)
	if ev.cmdSeqID > 0 {
		e.lastCmdSeqID.Store(ev.cmdSeqID)
	}
	if ev.resp != nil {
		ev.resp <- res
	}
}

// LastCmdSeqID returns the sequence ID of the last processed command.
// This is used for snapshot recovery to know where to resume consuming from MQ.
func (e *Engine) LastCmdSeqID() uint64 {
	return e.lastCmdSeqID.Load()
}

func (e *Engine) submit(ctx context.Context, exec func(s *Settlement) response) (any, error) {
	if e.isShutdown.Load() {
		return nil, ErrShutdown
	}

	resp := make(chan response, 1)
	if !e.ring.Publish(inputEvent{exec: exec, resp: resp}) {
		return nil, ErrShutdown
	}

	select {
	case res := <-resp:
		return res.data, res.err
	case <-ctx.Done():
		return nil, ErrTimeout
	}
}

func (e *Engine) exec(ctx context.Context, fn func(s *Settlement) error) error {
	_, err := e.submit(ctx, func(s *Settlement) response {
		return response{err: fn(s)}
	})
	return err
}

func query[T any](ctx context.Context, e *Engine, fn func(s *Settlement) T) (T, error) {
	data, err := e.submit(ctx, func(s *Settlement) response {
		return response{data: fn(s)}
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return data.(T), nil
}

// Deposit credits payment to the caller's escrow balance.
func (e *Engine) Deposit(ctx context.Context, caller common.Address, payment Payment) error {
	return e.exec(ctx, func(s *Settlement) error {
		return s.Deposit(caller, payment)
	})
}

// DepositFor credits payment to receiver's escrow balance.
func (e *Engine) DepositFor(ctx context.Context, caller, receiver common.Address, payment Payment) error {
	return e.exec(ctx, func(s *Settlement) error {
		return s.DepositFor(caller, receiver, payment)
	})
}

// Withdraw returns escrowed funds to the caller.
func (e *Engine) Withdraw(ctx context.Context, caller common.Address, asset common.Hash, amount uint64) error {
	return e.exec(ctx, func(s *Settlement) error {
		return s.Withdraw(caller, asset, amount)
	})
}

// Fill settles takerFillAmount of order against an attached payment.
func (e *Engine) Fill(ctx context.Context, caller common.Address, order *Order, signature []byte, takerFillAmount uint64, takerReceiver Recipient, payment Payment) (*FillResult, error) {
	o, sig := cloneOrder(order), cloneBytes(signature)
	data, err := e.submit(ctx, func(s *Settlement) response {
		result, err := s.Fill(caller, o, sig, takerFillAmount, takerReceiver, payment)
		return response{data: result, err: err}
	})
	if err != nil {
		return nil, err
	}
	return data.(*FillResult), nil
}

// FillFunded settles takerFillAmount of order against funds already in custody.
func (e *Engine) FillFunded(ctx context.Context, caller common.Address, order *Order, signature []byte, takerFillAmount uint64, takerReceiver Recipient) (*FillResult, error) {
	o, sig := cloneOrder(order), cloneBytes(signature)
	data, err := e.submit(ctx, func(s *Settlement) response {
		result, err := s.FillFunded(caller, o, sig, takerFillAmount, takerReceiver)
		return response{data: result, err: err}
	})
	if err != nil {
		return nil, err
	}
	return data.(*FillResult), nil
}

// CancelOrder cancels order on behalf of its maker or a delegate.
func (e *Engine) CancelOrder(ctx context.Context, caller common.Address, order *Order) error {
	o := cloneOrder(order)
	return e.exec(ctx, func(s *Settlement) error {
		return s.CancelOrder(caller, o)
	})
}

// CancelOrderSigned cancels order when signature recovers to its maker.
func (e *Engine) CancelOrderSigned(ctx context.Context, caller common.Address, order *Order, signature []byte) error {
	o, sig := cloneOrder(order), cloneBytes(signature)
	return e.exec(ctx, func(s *Settlement) error {
		return s.CancelOrderSigned(caller, o, sig)
	})
}

// InvalidateNonce raises the caller's nonce floor for an asset pair.
func (e *Engine) InvalidateNonce(ctx context.Context, caller common.Address, makerAsset, takerAsset common.Hash, nonce uint64) error {
	return e.exec(ctx, func(s *Settlement) error {
		return s.InvalidateNonce(caller, makerAsset, takerAsset, nonce)
	})
}

// RegisterOrderSignerDelegate toggles delegate for the caller.
func (e *Engine) RegisterOrderSignerDelegate(ctx context.Context, caller, delegate common.Address, active bool) error {
	return e.exec(ctx, func(s *Settlement) error {
		return s.RegisterOrderSignerDelegate(caller, delegate, active)
	})
}

// cloneOrder detaches the caller's order from the queued command.
func cloneOrder(order *Order) *Order {
	if order == nil {
		return nil
	}
	o := *order
	return &o
}

func cloneBytes(b []byte) []byte {
	return append([]byte(nil), b...)
}

type validation struct {
	hash common.Hash
	kind ErrorKind
}

// ValidateOrder checks whether order could be filled right now.
func (e *Engine) ValidateOrder(ctx context.Context, order *Order, signature []byte) (common.Hash, ErrorKind, error) {
	if order == nil {
		return common.Hash{}, protocol.ErrorKindInvalidParam, ErrInvalidParam
	}
	o, sig := cloneOrder(order), cloneBytes(signature)
	v, err := query(ctx, e, func(s *Settlement) validation {
		hash, kind := s.ValidateOrder(o, sig)
		return validation{hash: hash, kind: kind}
	})
	return v.hash, v.kind, err
}

// OrderFillStatus returns the fill status of an order hash.
func (e *Engine) OrderFillStatus(ctx context.Context, orderHash common.Hash) (FillStatus, error) {
	return query(ctx, e, func(s *Settlement) FillStatus {
		return s.OrderFillStatus(orderHash)
	})
}

// MakerBalance returns the escrow balance of maker in asset.
func (e *Engine) MakerBalance(ctx context.Context, maker common.Address, asset common.Hash) (uint64, error) {
	return query(ctx, e, func(s *Settlement) uint64 {
		return s.MakerBalance(maker, asset)
	})
}

// MakerBalances lists the escrow balances of maker.
func (e *Engine) MakerBalances(ctx context.Context, maker common.Address) ([]AssetBalance, error) {
	return query(ctx, e, func(s *Settlement) []AssetBalance {
		return s.MakerBalances(maker)
	})
}

// Balance returns the total custodied amount of asset.
func (e *Engine) Balance(ctx context.Context, asset common.Hash) (uint64, error) {
	return query(ctx, e, func(s *Settlement) uint64 {
		return s.Balance(asset)
	})
}

// Nonce returns the nonce floor of maker for an asset pair.
func (e *Engine) Nonce(ctx context.Context, maker common.Address, makerAsset, takerAsset common.Hash) (uint64, error) {
	return query(ctx, e, func(s *Settlement) uint64 {
		return s.Nonce(maker, makerAsset, takerAsset)
	})
}

// IsOrderSignerDelegate reports whether delegate signs for maker.
func (e *Engine) IsOrderSignerDelegate(ctx context.Context, maker, delegate common.Address) (bool, error) {
	return query(ctx, e, func(s *Settlement) bool {
		return s.IsOrderSignerDelegate(maker, delegate)
	})
}

// PackOrder returns the canonical encoding of order. It reads no state.
func (e *Engine) PackOrder(order *Order) []byte {
	return e.settlement.PackOrder(order)
}

// OrderHash returns the identity of order. It reads no state.
func (e *Engine) OrderHash(order *Order) common.Hash {
	return e.settlement.OrderHash(order)
}

// EnqueueCommand queues a serialized command and returns without waiting for
// it. Its outcome is reported through the PublishLog. Undecodable payloads
// are logged and skipped.
func (e *Engine) EnqueueCommand(cmd *protocol.Command) error {
	if e.isShutdown.Load() {
		return ErrShutdown
	}

	exec, err := e.decodeCommand(cmd)
	if err != nil {
		logger.Error("failed to decode command",
			"seq_id", cmd.SeqID,
			"command_type", cmd.Type,
			"error", err,
		)
		// still advance LastCmdSeqID so replay does not stall on it
		exec = func(*Settlement) response { return response{err: err} }
	}

	if !e.ring.Publish(inputEvent{cmdSeqID: cmd.SeqID, exec: exec}) {
		return ErrShutdown
	}
	return nil
}

func (e *Engine) decodeCommand(cmd *protocol.Command) (func(s *Settlement) response, error) {
	wrap := func(fn func(s *Settlement) error) func(s *Settlement) response {
		return func(s *Settlement) response {
			return response{err: fn(s)}
		}
	}

	switch cmd.Type {
	case protocol.CmdDeposit:
		payload := &protocol.DepositCommand{}
		if err := e.serializer.Unmarshal(cmd.Payload, payload); err != nil {
			return nil, err
		}
		payment := Payment{Asset: payload.Asset, Amount: payload.Amount}
		return wrap(func(s *Settlement) error {
			if payload.Receiver == (common.Address{}) {
				return s.Deposit(payload.Caller, payment)
			}
			return s.DepositFor(payload.Caller, payload.Receiver, payment)
		}), nil

	case protocol.CmdWithdraw:
		payload := &protocol.WithdrawCommand{}
		if err := e.serializer.Unmarshal(cmd.Payload, payload); err != nil {
			return nil, err
		}
		return wrap(func(s *Settlement) error {
			return s.Withdraw(payload.Caller, payload.Asset, payload.Amount)
		}), nil

	case protocol.CmdFill:
		payload := &protocol.FillCommand{}
		if err := e.serializer.Unmarshal(cmd.Payload, payload); err != nil {
			return nil, err
		}
		order := orderFromPayload(&payload.Order)
		payment := Payment{Asset: payload.PaymentAsset, Amount: payload.PaymentAmount}
		return wrap(func(s *Settlement) error {
			_, err := s.Fill(payload.Caller, order, payload.Signature, payload.TakerFillAmount, recipientFromPayload(payload.TakerReceiver), payment)
			return err
		}), nil

	case protocol.CmdFillFunded:
		payload := &protocol.FillFundedCommand{}
		if err := e.serializer.Unmarshal(cmd.Payload, payload); err != nil {
			return nil, err
		}
		order := orderFromPayload(&payload.Order)
		return wrap(func(s *Settlement) error {
			_, err := s.FillFunded(payload.Caller, order, payload.Signature, payload.TakerFillAmount, recipientFromPayload(payload.TakerReceiver))
			return err
		}), nil

	case protocol.CmdCancelOrder:
		payload := &protocol.CancelOrderCommand{}
		if err := e.serializer.Unmarshal(cmd.Payload, payload); err != nil {
			return nil, err
		}
		order := orderFromPayload(&payload.Order)
		return wrap(func(s *Settlement) error {
			if len(payload.Signature) > 0 {
				return s.CancelOrderSigned(payload.Caller, order, payload.Signature)
			}
			return s.CancelOrder(payload.Caller, order)
		}), nil

	case protocol.CmdInvalidateNonce:
		payload := &protocol.InvalidateNonceCommand{}
		if err := e.serializer.Unmarshal(cmd.Payload, payload); err != nil {
			return nil, err
		}
		return wrap(func(s *Settlement) error {
			return s.InvalidateNonce(payload.Caller, payload.MakerAsset, payload.TakerAsset, payload.Nonce)
		}), nil

	case protocol.CmdRegisterDelegate:
		payload := &protocol.RegisterDelegateCommand{}
		if err := e.serializer.Unmarshal(cmd.Payload, payload); err != nil {
			return nil, err
		}
		return wrap(func(s *Settlement) error {
			return s.RegisterOrderSignerDelegate(payload.Caller, payload.Delegate, payload.Active)
		}), nil
	}

	return nil, fmt.Errorf("%w: unknown command type %d", ErrInvalidParam, cmd.Type)
}

// TakeSnapshot captures a consistent snapshot on the consumer and writes it
// to the configured SnapshotStore.
func (e *Engine) TakeSnapshot(ctx context.Context) (*SnapshotMetadata, error) {
	if e.snapshotStore == nil {
		return nil, fmt.Errorf("%w: no snapshot store configured", ErrInvalidParam)
	}

	snap, err := query(ctx, e, func(s *Settlement) *SettlementSnapshot {
		return s.Snapshot(e.lastCmdSeqID.Load())
	})
	if err != nil {
		return nil, err
	}

	data, err := encodeSnapshot(snap)
	if err != nil {
		return nil, err
	}
	meta := newSnapshotMetadata(snap, data, e.clock())

	if err := e.snapshotStore.Save(ctx, meta, data); err != nil {
		return nil, fmt.Errorf("save snapshot: %w", err)
	}

	logger.Info("snapshot taken",
		"snapshot_id", meta.SnapshotID,
		"last_cmd_seq_id", meta.LastCmdSeqID,
		"balances", len(snap.Ledger.Balances),
		"fills", len(snap.Ledger.Fills),
	)
	return meta, nil
}

// RestoreFromSnapshot loads the latest snapshot from the configured store and
// replaces the engine state with it. The returned metadata tells where to
// resume consuming commands.
func (e *Engine) RestoreFromSnapshot(ctx context.Context) (*SnapshotMetadata, error) {
	if e.snapshotStore == nil {
		return nil, fmt.Errorf("%w: no snapshot store configured", ErrInvalidParam)
	}

	meta, data, err := e.snapshotStore.Load(ctx)
	if err != nil {
		return nil, err
	}
	if meta.SchemaVersion != SnapshotSchemaVersion {
		return nil, fmt.Errorf("%w: unsupported schema version %d", ErrInvalidParam, meta.SchemaVersion)
	}

	snap, err := decodeSnapshot(data, meta.SnapshotChecksum)
	if err != nil {
		return nil, err
	}

	err = e.exec(ctx, func(s *Settlement) error {
		if err := s.Restore(snap); err != nil {
			return err
		}
		e.lastCmdSeqID.Store(snap.LastCmdSeqID)
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("snapshot restored",
		"snapshot_id", meta.SnapshotID,
		"last_cmd_seq_id", meta.LastCmdSeqID,
	)
	return meta, nil
}

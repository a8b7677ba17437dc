package settlement

import (
	"github.com/0x5487/rfq-settlement/protocol"
	"github.com/ethereum/go-ethereum/common"
)

// InvalidateNonce raises the caller's nonce floor for the asset pair to nonce,
// invalidating every order of the caller for that pair with a nonce at or
// below it. Lower values leave the floor unchanged.
func (s *Settlement) InvalidateNonce(caller common.Address, makerAsset, takerAsset common.Hash, nonce uint64) error {
	floor := s.ledger.raiseNonceFloor(caller, makerAsset, takerAsset, nonce)
	s.publish(newNonceLog(s.nextSeqID(), s.clock(), caller, makerAsset, takerAsset, floor))
	return nil
}

// CancelOrder permanently cancels order. The caller must be the order's maker
// or an active delegate of the maker. Cancelling twice is a no-op.
func (s *Settlement) CancelOrder(caller common.Address, order *Order) error {
	if order == nil {
		s.reject(caller, protocol.CmdCancelOrder, common.Hash{}, ErrInvalidParam)
		return ErrInvalidParam
	}
	orderHash := s.OrderHash(order)
	if !s.auth.IsAuthorized(caller, order.Maker) {
		s.reject(caller, protocol.CmdCancelOrder, orderHash, ErrInvalidCancel)
		return ErrInvalidCancel
	}

	s.cancel(caller, order, orderHash)
	return nil
}

// CancelOrderSigned cancels order on the strength of a signature over the
// order hash that recovers to the maker, so anyone may relay it.
func (s *Settlement) CancelOrderSigned(caller common.Address, order *Order, signature []byte) error {
	if order == nil {
		s.reject(caller, protocol.CmdCancelOrder, common.Hash{}, ErrInvalidParam)
		return ErrInvalidParam
	}
	orderHash := s.OrderHash(order)
	signer, ok := s.auth.Recover(orderHash, signature)
	if !ok || signer != order.Maker {
		s.reject(caller, protocol.CmdCancelOrder, orderHash, ErrInvalidCancel)
		return ErrInvalidCancel
	}

	s.cancel(caller, order, orderHash)
	return nil
}

func (s *Settlement) cancel(caller common.Address, order *Order, orderHash common.Hash) {
	status := s.ledger.FillStatus(orderHash)
	if status.Cancelled {
		return
	}

	status.Cancelled = true
	s.ledger.setFillStatus(orderHash, status)
	s.publish(newCancelLog(s.nextSeqID(), s.clock(), caller, order, orderHash))
}

// RegisterOrderSignerDelegate lets delegate sign and cancel orders on behalf of
// the caller, or revokes it when active is false. Delegates never own balances.
func (s *Settlement) RegisterOrderSignerDelegate(caller, delegate common.Address, active bool) error {
	if delegate == (common.Address{}) {
		s.reject(caller, protocol.CmdRegisterDelegate, common.Hash{}, ErrInvalidParam)
		return ErrInvalidParam
	}

	s.ledger.setDelegate(caller, delegate, active)
	s.publish(newDelegateLog(s.nextSeqID(), s.clock(), caller, delegate, active))
	return nil
}

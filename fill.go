package settlement

import (
	"fmt"

	"github.com/0x5487/rfq-settlement/protocol"
	"github.com/ethereum/go-ethereum/common"
)

// Fill settles takerFillAmount of order against a payment attached by the
// caller, which must be exactly takerFillAmount of the order's taker asset.
// The maker asset owed is sent to takerReceiver.
func (s *Settlement) Fill(caller common.Address, order *Order, signature []byte, takerFillAmount uint64, takerReceiver Recipient, payment Payment) (*FillResult, error) {
	result, err := s.fill(caller, order, signature, takerFillAmount, takerReceiver, &payment)
	if err != nil {
		s.reject(caller, protocol.CmdFill, s.safeOrderHash(order), err)
		return nil, err
	}
	return result, nil
}

// FillFunded settles takerFillAmount of order against taker asset that is
// already in custody but not yet owned by any maker, e.g. placed there by a
// previous router hop.
func (s *Settlement) FillFunded(caller common.Address, order *Order, signature []byte, takerFillAmount uint64, takerReceiver Recipient) (*FillResult, error) {
	result, err := s.fill(caller, order, signature, takerFillAmount, takerReceiver, nil)
	if err != nil {
		s.reject(caller, protocol.CmdFillFunded, s.safeOrderHash(order), err)
		return nil, err
	}
	return result, nil
}

func (s *Settlement) safeOrderHash(order *Order) common.Hash {
	if order == nil {
		return common.Hash{}
	}
	return s.OrderHash(order)
}

// fill validates everything against current state, stages the ledger changes,
// runs the custody legs and only then commits. payment is nil for funded fills.
func (s *Settlement) fill(caller common.Address, order *Order, signature []byte, takerFillAmount uint64, takerReceiver Recipient, payment *Payment) (*FillResult, error) {
	if order == nil || order.MakerAmount == 0 || order.TakerAmount == 0 || takerFillAmount == 0 {
		return nil, ErrInvalidParam
	}

	// 1. signature, expiry, nonce, cancellation
	orderHash, kind := s.ValidateOrder(order, signature)
	if kind != protocol.ErrorKindNone {
		return nil, ErrorOf(kind)
	}

	// 2. cumulative fill bound
	status := s.ledger.FillStatus(orderHash)
	if status.TakerFilledAmount >= order.TakerAmount {
		return nil, ErrOrderAlreadyFilled
	}
	remaining := order.TakerAmount - status.TakerFilledAmount
	if takerFillAmount > remaining {
		return nil, ErrTakerFillAmountTooHigh
	}

	// 3. partial fill policy
	if !order.Traits().AllowPartialFill && takerFillAmount != remaining {
		return nil, ErrNoPartialFill
	}

	// taker funds
	if payment != nil {
		if payment.Asset != order.TakerAsset {
			return nil, ErrInvalidAsset
		}
		if payment.Amount != takerFillAmount {
			return nil, ErrInsufficientTakerAmountReceived
		}
	} else {
		accounted := s.ledger.Total(order.TakerAsset)
		held := s.custody.Balance(order.TakerAsset)
		if held < accounted || held-accounted < takerFillAmount {
			return nil, ErrBalanceViolation
		}
	}

	// 4. proportional counter amount, rounded down
	makerFillAmount, err := ComputeMakerFillAmount(takerFillAmount, order.MakerAmount, order.TakerAmount)
	if err != nil {
		return nil, err
	}

	// 5. escrow coverage
	if s.ledger.MakerBalance(order.Maker, order.MakerAsset) < makerFillAmount {
		return nil, ErrMakerBalanceTooLow
	}

	// 6-8. stage ledger changes and custody legs
	batch := s.ledger.batch()
	if err := batch.debit(order.Maker, order.MakerAsset, makerFillAmount); err != nil {
		return nil, err
	}
	out := []Transfer{{To: takerReceiver, Asset: order.MakerAsset, Amount: makerFillAmount}}

	if order.hasCustomReceiver() {
		out = append(out, Transfer{To: order.makerRecipient(), Asset: order.TakerAsset, Amount: takerFillAmount})
	} else if err := batch.credit(order.Maker, order.TakerAsset, takerFillAmount); err != nil {
		return nil, err
	}

	status.TakerFilledAmount += takerFillAmount
	batch.setFillStatus(orderHash, status)

	var in []Payment
	if payment != nil {
		in = []Payment{*payment}
	}
	if err := s.custody.Settle(caller, in, out); err != nil {
		return nil, fmt.Errorf("fill transfer failed: %w", err)
	}
	batch.commit()

	result := &FillResult{
		OrderHash:         orderHash,
		MakerFillAmount:   makerFillAmount,
		TakerFillAmount:   takerFillAmount,
		TakerFilledAmount: status.TakerFilledAmount,
		State:             status.State(order),
	}
	s.publish(newFillLog(s.nextSeqID(), s.clock(), caller, order, result, takerReceiver))
	return result, nil
}

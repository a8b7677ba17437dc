package settlement

import (
	"fmt"

	"github.com/0x5487/rfq-settlement/protocol"
	"github.com/ethereum/go-ethereum/common"
)

// Deposit takes the attached payment into custody and credits the caller's
// escrow balance.
func (s *Settlement) Deposit(caller common.Address, payment Payment) error {
	return s.DepositFor(caller, caller, payment)
}

// DepositFor takes the attached payment into custody and credits receiver's
// escrow balance.
func (s *Settlement) DepositFor(caller, receiver common.Address, payment Payment) error {
	err := s.deposit(caller, receiver, payment)
	if err != nil {
		s.reject(caller, protocol.CmdDeposit, common.Hash{}, err)
	}
	return err
}

func (s *Settlement) deposit(caller, receiver common.Address, payment Payment) error {
	if payment.Amount == 0 || receiver == (common.Address{}) {
		return ErrInvalidParam
	}

	batch := s.ledger.batch()
	if err := batch.credit(receiver, payment.Asset, payment.Amount); err != nil {
		return err
	}
	if err := s.custody.Settle(caller, []Payment{payment}, nil); err != nil {
		return fmt.Errorf("deposit transfer failed: %w", err)
	}
	batch.commit()

	s.publish(newDepositLog(s.nextSeqID(), s.clock(), caller, receiver, payment))
	return nil
}

// Withdraw debits the caller's escrow balance and transfers amount of asset
// back to the caller.
func (s *Settlement) Withdraw(caller common.Address, asset common.Hash, amount uint64) error {
	err := s.withdraw(caller, asset, amount)
	if err != nil {
		s.reject(caller, protocol.CmdWithdraw, common.Hash{}, err)
	}
	return err
}

func (s *Settlement) withdraw(caller common.Address, asset common.Hash, amount uint64) error {
	if amount == 0 {
		return ErrInvalidParam
	}
	if amount > s.ledger.MakerBalance(caller, asset) {
		return ErrWithdrawTooMuch
	}

	batch := s.ledger.batch()
	if err := batch.debit(caller, asset, amount); err != nil {
		return err
	}
	out := []Transfer{{To: AccountRecipient(caller), Asset: asset, Amount: amount}}
	if err := s.custody.Settle(caller, nil, out); err != nil {
		return fmt.Errorf("withdraw transfer failed: %w", err)
	}
	batch.commit()

	s.publish(newWithdrawLog(s.nextSeqID(), s.clock(), caller, asset, amount))
	return nil
}

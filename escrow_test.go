package settlement

import (
	"testing"

	"github.com/0x5487/rfq-settlement/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeposit(t *testing.T) {
	env := newTestEnv(t)
	maker := newTestAccount(t)
	wallet := AccountRecipient(maker.addr)

	env.custody.Mint(maker.addr, tokenA, 1000)
	require.NoError(t, env.settlement.Deposit(maker.addr, Payment{Asset: tokenA, Amount: 600}))

	assert.Equal(t, uint64(600), env.settlement.MakerBalance(maker.addr, tokenA))
	assert.Equal(t, uint64(600), env.settlement.Balance(tokenA))
	assert.Equal(t, uint64(400), env.custody.WalletBalance(wallet, tokenA))

	deposits := env.logs.OfType(LogTypeDeposit)
	require.Len(t, deposits, 1)
	assert.Equal(t, maker.addr, deposits[0].Maker)
	assert.Equal(t, uint64(600), deposits[0].Amount)

	t.Run("ZeroAmount", func(t *testing.T) {
		err := env.settlement.Deposit(maker.addr, Payment{Asset: tokenA})
		assert.ErrorIs(t, err, ErrInvalidParam)
	})

	t.Run("UnfundedTransfer", func(t *testing.T) {
		err := env.settlement.Deposit(maker.addr, Payment{Asset: tokenA, Amount: 401})
		assert.Error(t, err)
		assert.Equal(t, uint64(600), env.settlement.MakerBalance(maker.addr, tokenA))
		assert.Equal(t, uint64(400), env.custody.WalletBalance(wallet, tokenA))
	})
}

func TestDepositFor(t *testing.T) {
	env := newTestEnv(t)
	funder := newTestAccount(t)
	maker := newTestAccount(t)

	env.custody.Mint(funder.addr, tokenB, 100)
	require.NoError(t, env.settlement.DepositFor(funder.addr, maker.addr, Payment{Asset: tokenB, Amount: 100}))

	assert.Equal(t, uint64(100), env.settlement.MakerBalance(maker.addr, tokenB))
	assert.Equal(t, uint64(0), env.settlement.MakerBalance(funder.addr, tokenB))

	log := env.logs.OfType(LogTypeDeposit)[0]
	assert.Equal(t, funder.addr, log.Caller)
	assert.Equal(t, maker.addr, log.Maker)
}

func TestWithdraw(t *testing.T) {
	env := newTestEnv(t)
	maker := newTestAccount(t)
	wallet := AccountRecipient(maker.addr)
	env.deposit(t, maker.addr, tokenA, 1000)

	require.NoError(t, env.settlement.Withdraw(maker.addr, tokenA, 400))
	assert.Equal(t, uint64(600), env.settlement.MakerBalance(maker.addr, tokenA))
	assert.Equal(t, uint64(600), env.settlement.Balance(tokenA))
	assert.Equal(t, uint64(400), env.custody.WalletBalance(wallet, tokenA))

	t.Run("TooMuch", func(t *testing.T) {
		err := env.settlement.Withdraw(maker.addr, tokenA, 601)
		assert.ErrorIs(t, err, ErrWithdrawTooMuch)
		assert.Equal(t, uint64(600), env.settlement.MakerBalance(maker.addr, tokenA))

		rejects := env.logs.OfType(LogTypeReject)
		require.NotEmpty(t, rejects)
		assert.Equal(t, protocol.ErrorKindWithdrawTooMuch, rejects[len(rejects)-1].ErrorKind)
		assert.Equal(t, protocol.CmdWithdraw, rejects[len(rejects)-1].CommandType)
	})

	t.Run("OtherMakersFundsUntouchable", func(t *testing.T) {
		thief := newTestAccount(t)
		err := env.settlement.Withdraw(thief.addr, tokenA, 1)
		assert.ErrorIs(t, err, ErrWithdrawTooMuch)
	})

	t.Run("BlockedRecipientRollsBack", func(t *testing.T) {
		env.custody.Block(wallet)
		err := env.settlement.Withdraw(maker.addr, tokenA, 100)
		assert.ErrorIs(t, err, ErrTransferRejected)
		assert.Equal(t, uint64(600), env.settlement.MakerBalance(maker.addr, tokenA))
		assert.Equal(t, uint64(600), env.settlement.Balance(tokenA))
	})

	t.Run("Everything", func(t *testing.T) {
		other := newTestEnv(t)
		other.deposit(t, maker.addr, tokenA, 10)
		require.NoError(t, other.settlement.Withdraw(maker.addr, tokenA, 10))
		assert.Empty(t, other.settlement.MakerBalances(maker.addr))
	})
}

package settlement

import (
	"math"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerBatch(t *testing.T) {
	alice := common.HexToAddress("0xa11ce")
	bob := common.HexToAddress("0xb0b")

	t.Run("CommitAppliesEverything", func(t *testing.T) {
		ledger := NewLedger()
		batch := ledger.batch()
		require.NoError(t, batch.credit(alice, tokenA, 100))
		require.NoError(t, batch.credit(bob, tokenA, 50))
		require.NoError(t, batch.debit(alice, tokenA, 30))
		batch.setFillStatus(common.HexToHash("0x01"), FillStatus{TakerFilledAmount: 5})

		// nothing visible before commit
		assert.Equal(t, uint64(0), ledger.MakerBalance(alice, tokenA))
		assert.Equal(t, uint64(0), ledger.Total(tokenA))

		batch.commit()
		assert.Equal(t, uint64(70), ledger.MakerBalance(alice, tokenA))
		assert.Equal(t, uint64(50), ledger.MakerBalance(bob, tokenA))
		assert.Equal(t, uint64(120), ledger.Total(tokenA))
		assert.Equal(t, uint64(5), ledger.FillStatus(common.HexToHash("0x01")).TakerFilledAmount)
	})

	t.Run("DiscardedBatchLeavesNoTrace", func(t *testing.T) {
		ledger := NewLedger()
		batch := ledger.batch()
		require.NoError(t, batch.credit(alice, tokenA, 100))
		batch.setFillStatus(common.HexToHash("0x01"), FillStatus{Cancelled: true})

		assert.Equal(t, uint64(0), ledger.MakerBalance(alice, tokenA))
		assert.Equal(t, FillStatus{}, ledger.FillStatus(common.HexToHash("0x01")))
		assert.Empty(t, ledger.MakerBalances(alice))
	})

	t.Run("DebitBeyondBalance", func(t *testing.T) {
		ledger := NewLedger()
		batch := ledger.batch()
		require.NoError(t, batch.credit(alice, tokenA, 10))
		assert.ErrorIs(t, batch.debit(alice, tokenA, 11), ErrBalanceViolation)
		assert.ErrorIs(t, batch.debit(bob, tokenA, 1), ErrBalanceViolation)
	})

	t.Run("CreditOverflow", func(t *testing.T) {
		ledger := NewLedger()
		batch := ledger.batch()
		require.NoError(t, batch.credit(alice, tokenA, math.MaxUint64))
		assert.ErrorIs(t, batch.credit(alice, tokenA, 1), ErrBalanceViolation)
		assert.ErrorIs(t, batch.credit(bob, tokenA, 1), ErrBalanceViolation)
	})

	t.Run("ZeroBalancesAreDropped", func(t *testing.T) {
		ledger := NewLedger()
		batch := ledger.batch()
		require.NoError(t, batch.credit(alice, tokenA, 10))
		batch.commit()

		batch = ledger.batch()
		require.NoError(t, batch.debit(alice, tokenA, 10))
		batch.commit()

		assert.Empty(t, ledger.MakerBalances(alice))
		assert.Equal(t, 0, ledger.index.Len())
		assert.Equal(t, uint64(0), ledger.Total(tokenA))
	})
}

func TestLedgerMakerBalances(t *testing.T) {
	ledger := NewLedger()
	alice := common.HexToAddress("0x01")
	bob := common.HexToAddress("0x02")
	tokenC := common.HexToHash("0x0c")

	batch := ledger.batch()
	require.NoError(t, batch.credit(bob, tokenA, 1))
	require.NoError(t, batch.credit(alice, tokenB, 2))
	require.NoError(t, batch.credit(alice, tokenC, 3))
	require.NoError(t, batch.credit(alice, tokenA, 4))
	batch.commit()

	assert.Equal(t, []AssetBalance{
		{Asset: tokenC, Amount: 3},
		{Asset: tokenA, Amount: 4},
		{Asset: tokenB, Amount: 2},
	}, ledger.MakerBalances(alice))
	assert.Equal(t, []AssetBalance{{Asset: tokenA, Amount: 1}}, ledger.MakerBalances(bob))
	assert.Empty(t, ledger.MakerBalances(common.HexToAddress("0x03")))
}

func TestLedgerNonceFloor(t *testing.T) {
	ledger := NewLedger()
	maker := common.HexToAddress("0x01")

	assert.Equal(t, uint64(5), ledger.raiseNonceFloor(maker, tokenA, tokenB, 5))
	assert.Equal(t, uint64(5), ledger.raiseNonceFloor(maker, tokenA, tokenB, 3))
	assert.Equal(t, uint64(5), ledger.NonceFloor(maker, tokenA, tokenB))

	// pairs are directional
	assert.Equal(t, uint64(0), ledger.NonceFloor(maker, tokenB, tokenA))
}

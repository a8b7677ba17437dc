package settlement

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCustodySettle(t *testing.T) {
	payer := common.HexToAddress("0x01")
	payee := AccountRecipient(common.HexToAddress("0x02"))

	t.Run("InAndOut", func(t *testing.T) {
		c := NewMemoryCustody()
		c.Mint(payer, tokenB, 100)

		err := c.Settle(payer, []Payment{{Asset: tokenB, Amount: 60}}, []Transfer{{To: payee, Asset: tokenB, Amount: 50}})
		require.NoError(t, err)
		assert.Equal(t, uint64(40), c.WalletBalance(AccountRecipient(payer), tokenB))
		assert.Equal(t, uint64(50), c.WalletBalance(payee, tokenB))
		assert.Equal(t, uint64(10), c.Balance(tokenB))
	})

	t.Run("AllOrNothing", func(t *testing.T) {
		c := NewMemoryCustody()
		c.Mint(payer, tokenB, 100)
		blocked := ContractRecipient(common.HexToAddress("0x03"))
		c.Block(blocked)

		err := c.Settle(payer, []Payment{{Asset: tokenB, Amount: 100}}, []Transfer{
			{To: payee, Asset: tokenB, Amount: 10},
			{To: blocked, Asset: tokenB, Amount: 10},
		})
		assert.ErrorIs(t, err, ErrTransferRejected)
		assert.Equal(t, uint64(100), c.WalletBalance(AccountRecipient(payer), tokenB))
		assert.Equal(t, uint64(0), c.WalletBalance(payee, tokenB))
		assert.Equal(t, uint64(0), c.Balance(tokenB))
	})

	t.Run("CannotPayOutMoreThanHeld", func(t *testing.T) {
		c := NewMemoryCustody()
		err := c.Settle(payer, nil, []Transfer{{To: payee, Asset: tokenA, Amount: 1}})
		assert.ErrorIs(t, err, ErrBalanceViolation)
	})

	t.Run("AccountAndContractWalletsAreDistinct", func(t *testing.T) {
		c := NewMemoryCustody()
		c.Mint(payer, tokenA, 5)
		require.NoError(t, c.Settle(payer, []Payment{{Asset: tokenA, Amount: 5}}, nil))
		require.NoError(t, c.Settle(payer, nil, []Transfer{{To: ContractRecipient(payee.Address), Asset: tokenA, Amount: 5}}))

		assert.Equal(t, uint64(5), c.WalletBalance(ContractRecipient(payee.Address), tokenA))
		assert.Equal(t, uint64(0), c.WalletBalance(payee, tokenA))
	})

	t.Run("TransferIn", func(t *testing.T) {
		c := NewMemoryCustody()
		c.Mint(payer, tokenA, 5)
		require.NoError(t, c.TransferIn(payer, tokenA, 5))
		assert.Equal(t, uint64(5), c.Balance(tokenA))
		assert.ErrorIs(t, c.TransferIn(payer, tokenA, 1), ErrInvalidParam)
	})
}

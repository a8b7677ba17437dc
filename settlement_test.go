package settlement

import (
	"crypto/ecdsa"
	"testing"
	"time"

	"github.com/0x5487/rfq-settlement/protocol"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testInstance = common.HexToHash("0x5e771e00000000000000000000000000000000000000000000000000000000a1")
	tokenA       = common.HexToHash("0xaaaa")
	tokenB       = common.HexToHash("0xbbbb")
	testNow      = time.Unix(1_700_000_000, 0)
)

type testAccount struct {
	key  *ecdsa.PrivateKey
	addr common.Address
}

func newTestAccount(t testing.TB) testAccount {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return testAccount{key: key, addr: crypto.PubkeyToAddress(key.PublicKey)}
}

type testEnv struct {
	now        time.Time
	custody    *MemoryCustody
	logs       *MemoryPublishLog
	settlement *Settlement
}

func newTestEnv(t testing.TB, opts ...Option) *testEnv {
	env := &testEnv{
		now:     testNow,
		custody: NewMemoryCustody(),
		logs:    NewMemoryPublishLog(),
	}
	base := []Option{
		WithClock(func() time.Time { return env.now }),
		WithPublishLog(env.logs),
	}
	env.settlement = NewSettlement(testInstance, env.custody, append(base, opts...)...)
	return env
}

// deposit mints amount into the maker's wallet and escrows it.
func (env *testEnv) deposit(t testing.TB, maker common.Address, asset common.Hash, amount uint64) {
	env.custody.Mint(maker, asset, amount)
	require.NoError(t, env.settlement.Deposit(maker, Payment{Asset: asset, Amount: amount}))
}

// newOrder builds an A-for-B order expiring in one hour.
func newOrder(maker common.Address, makerAmount, takerAmount, nonce uint64) *Order {
	return &Order{
		MakerAsset:  tokenA,
		TakerAsset:  tokenB,
		MakerAmount: makerAmount,
		TakerAmount: takerAmount,
		Maker:       maker,
		Nonce:       nonce,
		MakerTraits: EncodeTraits(uint32(testNow.Unix())+3600, false, false),
	}
}

func signOrder(t testing.TB, order *Order, signer testAccount) []byte {
	sig, err := SignOrder(testInstance, order, signer.key)
	require.NoError(t, err)
	return sig
}

func TestValidateOrder(t *testing.T) {
	maker := newTestAccount(t)

	t.Run("Valid", func(t *testing.T) {
		env := newTestEnv(t)
		order := newOrder(maker.addr, 1000, 500, 1)

		hash, kind := env.settlement.ValidateOrder(order, signOrder(t, order, maker))
		assert.Equal(t, protocol.ErrorKindNone, kind)
		assert.Equal(t, env.settlement.OrderHash(order), hash)
	})

	t.Run("WrongSigner", func(t *testing.T) {
		env := newTestEnv(t)
		order := newOrder(maker.addr, 1000, 500, 1)
		other := newTestAccount(t)

		_, kind := env.settlement.ValidateOrder(order, signOrder(t, order, other))
		assert.Equal(t, protocol.ErrorKindInvalidOrderSignature, kind)
	})

	t.Run("MalformedSignature", func(t *testing.T) {
		env := newTestEnv(t)
		order := newOrder(maker.addr, 1000, 500, 1)

		_, kind := env.settlement.ValidateOrder(order, []byte{1, 2, 3})
		assert.Equal(t, protocol.ErrorKindInvalidOrderSignature, kind)
	})

	t.Run("ExpiryBoundary", func(t *testing.T) {
		env := newTestEnv(t)
		order := newOrder(maker.addr, 1000, 500, 1)
		order.MakerTraits = EncodeTraits(uint32(testNow.Unix()), false, false)
		sig := signOrder(t, order, maker)

		_, kind := env.settlement.ValidateOrder(order, sig)
		assert.Equal(t, protocol.ErrorKindNone, kind)

		env.now = testNow.Add(time.Second)
		_, kind = env.settlement.ValidateOrder(order, sig)
		assert.Equal(t, protocol.ErrorKindExpired, kind)
	})

	t.Run("SignatureCheckedFirst", func(t *testing.T) {
		env := newTestEnv(t)
		order := newOrder(maker.addr, 1000, 500, 1)
		order.MakerTraits = EncodeTraits(1, false, false)

		_, kind := env.settlement.ValidateOrder(order, signOrder(t, order, newTestAccount(t)))
		assert.Equal(t, protocol.ErrorKindInvalidOrderSignature, kind)
	})

	t.Run("ZeroNonceNeverValid", func(t *testing.T) {
		env := newTestEnv(t)
		order := newOrder(maker.addr, 1000, 500, 0)

		_, kind := env.settlement.ValidateOrder(order, signOrder(t, order, maker))
		assert.Equal(t, protocol.ErrorKindInvalidNonce, kind)
	})

	t.Run("DoesNotMutate", func(t *testing.T) {
		env := newTestEnv(t)
		order := newOrder(maker.addr, 1000, 500, 1)

		hash, _ := env.settlement.ValidateOrder(order, signOrder(t, order, maker))
		assert.Equal(t, FillStatus{}, env.settlement.OrderFillStatus(hash))
		assert.Equal(t, 0, env.logs.Count())
	})
}

func TestSettlementReads(t *testing.T) {
	env := newTestEnv(t)
	maker := newTestAccount(t)
	order := newOrder(maker.addr, 1000, 500, 1)

	assert.Equal(t, testInstance, env.settlement.Instance())
	assert.Equal(t, PackOrder(testInstance, order), env.settlement.PackOrder(order))
	assert.Equal(t, uint64(0), env.settlement.MakerBalance(maker.addr, tokenA))
	assert.Equal(t, uint64(0), env.settlement.Balance(tokenA))
	assert.Empty(t, env.settlement.MakerBalances(maker.addr))

	env.deposit(t, maker.addr, tokenA, 1000)
	assert.Equal(t, uint64(1000), env.settlement.MakerBalance(maker.addr, tokenA))
	assert.Equal(t, uint64(1000), env.settlement.Balance(tokenA))
	assert.Same(t, env.settlement.Ledger(), env.settlement.Ledger())
}

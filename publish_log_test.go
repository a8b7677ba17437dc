package settlement

import (
	"context"
	"encoding/json"
	"os"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryPublishLog(t *testing.T) {
	env := newTestEnv(t)
	maker := newTestAccount(t)
	taker := newTestAccount(t)
	env.deposit(t, maker.addr, tokenA, 1000)
	env.custody.Mint(taker.addr, tokenB, 500)

	order := newOrder(maker.addr, 1000, 500, 1)
	sig := signOrder(t, order, maker)
	hash := env.settlement.OrderHash(order)

	_, err := env.settlement.Fill(taker.addr, order, sig, 100, AccountRecipient(taker.addr), Payment{Asset: tokenB, Amount: 100})
	require.NoError(t, err)
	_, err = env.settlement.Fill(taker.addr, order, sig, 600, AccountRecipient(taker.addr), Payment{Asset: tokenB, Amount: 600})
	require.Error(t, err)
	require.NoError(t, env.settlement.CancelOrder(maker.addr, order))

	logs := env.logs.ForOrder(hash)
	require.Len(t, logs, 3)
	assert.Equal(t, LogTypeFill, logs[0].Type)
	assert.Equal(t, LogTypeReject, logs[1].Type)
	assert.Equal(t, LogTypeCancel, logs[2].Type)
	assert.Less(t, logs[0].SequenceID, logs[2].SequenceID)

	// the deposit log does not reference the order
	assert.Len(t, env.logs.OfType(LogTypeDeposit), 1)
	assert.Equal(t, 4, env.logs.Count())

	t.Run("StoresCopies", func(t *testing.T) {
		sink := NewMemoryPublishLog()
		log := &SettlementLog{ID: "a", Type: LogTypeDeposit}
		sink.Publish(log)
		log.ID = "b"
		assert.Equal(t, "a", sink.OfType(LogTypeDeposit)[0].ID)
	})
}

func TestRedisStreamPublishLog(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}

	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	stream := "rfq-settlement-test:" + t.Name()
	defer client.Del(ctx, stream)

	env := newTestEnv(t, WithPublishLog(NewRedisStreamPublishLog(client, stream, 1000)))
	maker := newTestAccount(t)
	env.deposit(t, maker.addr, tokenA, 10)
	require.NoError(t, env.settlement.Withdraw(maker.addr, tokenA, 4))

	entries, err := client.XRange(ctx, stream, "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, string(LogTypeDeposit), entries[0].Values["type"])
	assert.Equal(t, string(LogTypeWithdraw), entries[1].Values["type"])

	var log SettlementLog
	require.NoError(t, json.Unmarshal([]byte(entries[1].Values["data"].(string)), &log))
	assert.Equal(t, maker.addr, log.Caller)
	assert.Equal(t, uint64(4), log.Amount)
}

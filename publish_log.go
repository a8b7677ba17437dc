package settlement

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"
)

// PublishLog receives every settlement event in commit order.
//
// Logs are pooled: the engine recycles each *SettlementLog once Publish
// returns, so implementations must finish with it (or copy it) before then.
// Publish runs on the engine goroutine and must not call back into the engine.
type PublishLog interface {
	Publish(...*SettlementLog)
}

// MemoryPublishLog keeps copies of published logs, useful for testing.
type MemoryPublishLog struct {
	mu   sync.RWMutex
	logs []*SettlementLog
}

// NewMemoryPublishLog creates an empty MemoryPublishLog.
func NewMemoryPublishLog() *MemoryPublishLog {
	return &MemoryPublishLog{}
}

func (m *MemoryPublishLog) Publish(logs ...*SettlementLog) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, log := range logs {
		cpy := *log
		m.logs = append(m.logs, &cpy)
	}
}

// Count returns the number of stored logs.
func (m *MemoryPublishLog) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.logs)
}

// OfType returns the stored logs of the given type, in publish order.
func (m *MemoryPublishLog) OfType(logType LogType) []*SettlementLog {
	return m.filter(func(log *SettlementLog) bool { return log.Type == logType })
}

// ForOrder returns the stored logs that reference orderHash, rejects included.
func (m *MemoryPublishLog) ForOrder(orderHash common.Hash) []*SettlementLog {
	return m.filter(func(log *SettlementLog) bool { return log.OrderHash == orderHash })
}

func (m *MemoryPublishLog) filter(match func(*SettlementLog) bool) []*SettlementLog {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var logs []*SettlementLog
	for _, log := range m.logs {
		if match(log) {
			logs = append(logs, log)
		}
	}
	return logs
}

// DiscardPublishLog drops every log, useful for benchmarking.
type DiscardPublishLog struct{}

func NewDiscardPublishLog() *DiscardPublishLog {
	return &DiscardPublishLog{}
}

func (DiscardPublishLog) Publish(...*SettlementLog) {}

// RedisStreamPublishLog appends each log as a JSON entry to a Redis stream,
// one XADD per log in a single pipeline. Failures are logged, never returned:
// the settlement has already committed when Publish runs.
type RedisStreamPublishLog struct {
	client  redis.Cmdable
	stream  string
	maxLen  int64
	timeout time.Duration
}

// NewRedisStreamPublishLog creates a publisher writing to stream. maxLen > 0
// caps the stream length approximately (XADD MAXLEN ~).
func NewRedisStreamPublishLog(client redis.Cmdable, stream string, maxLen int64) *RedisStreamPublishLog {
	return &RedisStreamPublishLog{
		client:  client,
		stream:  stream,
		maxLen:  maxLen,
		timeout: 3 * time.Second,
	}
}

func (r *RedisStreamPublishLog) Publish(logs ...*SettlementLog) {
	if len(logs) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	_, err := r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, log := range logs {
			data, err := json.Marshal(log)
			if err != nil {
				return err
			}
			pipe.XAdd(ctx, &redis.XAddArgs{
				Stream: r.stream,
				MaxLen: r.maxLen,
				Approx: r.maxLen > 0,
				Values: map[string]any{
					"seq_id": log.SequenceID,
					"type":   string(log.Type),
					"data":   data,
				},
			})
		}
		return nil
	})
	if err != nil {
		logger.Error("failed to publish settlement logs",
			"stream", r.stream,
			"count", len(logs),
			"error", err,
		)
	}
}

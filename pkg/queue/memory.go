package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"vector-pipeline-go/pkg/log"
)

// memoryQueueCap 限制单个内存队列的积压上限。
const memoryQueueCap = 4096

// MemoryStore 是 Store 的进程内实现，用于测试和本地运行。
// 行为与 RedisStore 对齐：阻塞出队、超时哨兵、畸形载荷丢弃。
type MemoryStore struct {
	mu     sync.Mutex
	queues map[string]chan json.RawMessage
}

// NewMemoryStore 创建一个新的 MemoryStore 实例。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{queues: make(map[string]chan json.RawMessage)}
}

func (s *MemoryStore) queue(name string) chan json.RawMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.queues[name]
	if !ok {
		q = make(chan json.RawMessage, memoryQueueCap)
		s.queues[name] = q
	}
	return q
}

// Enqueue 将载荷编码后写入队列通道。
func (s *MemoryStore) Enqueue(ctx context.Context, queueName string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	select {
	case s.queue(queueName) <- data:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())
	default:
		return fmt.Errorf("%w: queue %s is full", ErrUnavailable, queueName)
	}
}

// Dequeue 阻塞等待队首消息，超时返回无消息哨兵。
func (s *MemoryStore) Dequeue(ctx context.Context, queueName string, wait time.Duration) (json.RawMessage, bool, error) {
	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case raw := <-s.queue(queueName):
		if !json.Valid(raw) {
			log.Warnf("[Queue] 队列 %s 收到畸形载荷，已丢弃: %q", queueName, raw)
			return nil, false, nil
		}
		return raw, true, nil
	case <-timer.C:
		return nil, false, nil
	case <-ctx.Done():
		return nil, false, nil
	}
}

// Depth 返回队列当前积压的消息数。
func (s *MemoryStore) Depth(ctx context.Context, queueName string) int64 {
	return int64(len(s.queue(queueName)))
}

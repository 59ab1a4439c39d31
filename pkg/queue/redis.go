package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"vector-pipeline-go/pkg/log"
)

// RedisStore 基于 Redis List 实现 Store：RPUSH 入队、BLPOP 阻塞出队、LLEN 巡检。
// BLPOP 保证并发消费者下同一条消息只会被一个客户端取走。
type RedisStore struct {
	rdb *redis.Client
}

// NewRedisStore 创建一个新的 RedisStore 实例。
func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

// Enqueue 将载荷编码后追加到队列尾部，每次调用独立提交。
func (s *RedisStore) Enqueue(ctx context.Context, queueName string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	if err := s.rdb.RPush(ctx, queueName, data).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Dequeue 阻塞等待队首消息，超时返回无消息哨兵。
// 载荷不是合法 JSON 时记录日志并按无消息处理（消息被丢弃）。
func (s *RedisStore) Dequeue(ctx context.Context, queueName string, wait time.Duration) (json.RawMessage, bool, error) {
	vals, err := s.rdb.BLPop(ctx, wait, queueName).Result()
	if err != nil {
		if err == redis.Nil {
			// 等待超时，队列为空：正常的稳态结果
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	// BLPop 返回 [key, value]
	if len(vals) < 2 {
		return nil, false, nil
	}
	raw := json.RawMessage(vals[1])
	if !json.Valid(raw) {
		log.Warnf("[Queue] 队列 %s 收到畸形载荷，已丢弃: %q", queueName, vals[1])
		return nil, false, nil
	}
	return raw, true, nil
}

// Depth 返回队列长度，出错时退化为 0 而不是向上抛错。
func (s *RedisStore) Depth(ctx context.Context, queueName string) int64 {
	n, err := s.rdb.LLen(ctx, queueName).Result()
	if err != nil {
		log.Warnf("[Queue] 查询队列 %s 深度失败: %v", queueName, err)
		return 0
	}
	return n
}

// Package queue 提供流水线所依赖的命名邮箱（Queue Store）抽象。
//
// 契约要点：入队按调用逐条提交；出队阻塞至多 wait 时长，空队列返回
// "无消息" 哨兵而非错误；深度巡检永不阻塞调用方，出错时退化为 0。
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"vector-pipeline-go/pkg/log"
	"vector-pipeline-go/pkg/tasks"
)

var (
	// ErrUnavailable 表示底层存储不可达，属于可重试的基础设施错误。
	ErrUnavailable = errors.New("queue store unavailable")
	// ErrSerialization 表示载荷无法编码。
	ErrSerialization = errors.New("queue payload serialization failed")
)

// Store 定义了命名队列的入队/出队/深度契约。
type Store interface {
	// Enqueue 将载荷编码为 JSON 并原子地追加到指定队列。
	Enqueue(ctx context.Context, queueName string, payload interface{}) error
	// Dequeue 阻塞至多 wait 时长等待一条消息。
	// 第二个返回值为 false 表示等待超时且队列为空——这是正常结果，不是错误。
	Dequeue(ctx context.Context, queueName string, wait time.Duration) (json.RawMessage, bool, error)
	// Depth 返回队列中未投递的消息数，仅用于观测；出错时返回 0。
	Depth(ctx context.Context, queueName string) int64
}

// Producer 面向协作方暴露类型化的入队操作。
type Producer struct {
	store Store
}

// NewProducer 创建一个新的 Producer 实例。
func NewProducer(store Store) *Producer {
	return &Producer{store: store}
}

// EnqueueDocument 将文档任务投递到分块队列。
func (p *Producer) EnqueueDocument(ctx context.Context, task tasks.DocumentTask) error {
	if err := p.store.Enqueue(ctx, tasks.QueuePendingDocument, task); err != nil {
		return err
	}
	log.Infof("[Queue] 文档 %d 已入队等待分块, file_path: %s", task.DocumentID, task.FilePath)
	return nil
}

// EnqueueChunk 将分块任务投递到向量化队列。
func (p *Producer) EnqueueChunk(ctx context.Context, task tasks.ChunkTask) error {
	if err := p.store.Enqueue(ctx, tasks.QueuePendingChunk, task); err != nil {
		return err
	}
	log.Infof("[Queue] 文档 %d 的分块 %d 已入队等待向量化", task.DocumentID, task.ChunkIndex)
	return nil
}

// Depths 返回全部流水线队列的当前深度。
func (p *Producer) Depths(ctx context.Context) map[string]int64 {
	depths := make(map[string]int64, 2)
	for _, name := range tasks.Names() {
		depths[name] = p.store.Depth(ctx, name)
	}
	return depths
}

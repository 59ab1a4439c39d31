package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"vector-pipeline-go/internal/model"
	"vector-pipeline-go/internal/repository"
	"vector-pipeline-go/pkg/embedding"
	"vector-pipeline-go/pkg/es"
	"vector-pipeline-go/pkg/log"
	"vector-pipeline-go/pkg/tasks"
)

// Embedder 是向量化阶段：消费 pending_chunk 消息，为分块计算并回写向量。
type Embedder struct {
	embeddingClient embedding.Client
	chunkRepo       repository.ChunkRepository
	docRepo         repository.DocumentRepository
	indexer         es.Indexer
	modelVersion    string
}

// NewEmbedder 创建一个新的 Embedder 实例。
func NewEmbedder(
	embeddingClient embedding.Client,
	chunkRepo repository.ChunkRepository,
	docRepo repository.DocumentRepository,
	indexer es.Indexer,
	modelVersion string,
) *Embedder {
	return &Embedder{
		embeddingClient: embeddingClient,
		chunkRepo:       chunkRepo,
		docRepo:         docRepo,
		indexer:         indexer,
		modelVersion:    modelVersion,
	}
}

// Process 处理一条分块向量化消息，每次成功调用恰好更新一行。
func (e *Embedder) Process(ctx context.Context, raw json.RawMessage) (Outcome, error) {
	var task tasks.ChunkTask
	if err := json.Unmarshal(raw, &task); err != nil {
		return Drop, fmt.Errorf("无法解析分块任务载荷: %w", err)
	}

	log.Infof("[Embedder] 开始处理文档 %d 的分块 %d", task.DocumentID, task.ChunkIndex)

	// 1. 计算向量。模型未就绪和传输错误都可重试，消息不丢
	vector, err := e.embeddingClient.CreateEmbedding(ctx, task.ChunkText)
	if err != nil {
		if errors.Is(err, embedding.ErrModelNotReady) {
			return Retry, fmt.Errorf("模型尚未就绪, 分块 (%d,%d) 稍后重试: %w", task.DocumentID, task.ChunkIndex, err)
		}
		return Retry, fmt.Errorf("分块 (%d,%d) 向量化失败: %w", task.DocumentID, task.ChunkIndex, err)
	}

	// 2. 回写分块行
	rows, err := e.chunkRepo.UpdateEmbedding(task.DocumentID, task.ChunkIndex, model.Vector(vector))
	if err != nil {
		return Retry, fmt.Errorf("写入分块 (%d,%d) 向量失败: %w", task.DocumentID, task.ChunkIndex, err)
	}
	if rows == 0 {
		// 目标分块不存在，重试没有意义
		return Drop, fmt.Errorf("分块 (%d,%d) 不存在", task.DocumentID, task.ChunkIndex)
	}

	// 3. 同步写入搜索投影
	if e.indexer != nil {
		esDoc := model.EsChunk{
			VectorID:     fmt.Sprintf("%d_%d", task.DocumentID, task.ChunkIndex),
			DocumentID:   task.DocumentID,
			ChunkIndex:   task.ChunkIndex,
			ChunkText:    task.ChunkText,
			Vector:       vector,
			ModelVersion: e.modelVersion,
		}
		if err := e.indexer.IndexChunk(ctx, esDoc); err != nil {
			return Retry, fmt.Errorf("索引分块 (%d,%d) 到 Elasticsearch 失败: %w", task.DocumentID, task.ChunkIndex, err)
		}
	}

	// 4. 完成度检查：该文档不再有缺向量的分块时，推进到 embedded
	// 检查和推进都不影响本条消息的结果，下一条同文档消息还会再查
	missing, err := e.chunkRepo.CountMissingEmbedding(task.DocumentID)
	if err != nil {
		log.Warnf("[Embedder] 统计文档 %d 未向量化分块失败, 本轮跳过完成度检查: %v", task.DocumentID, err)
	} else if missing == 0 {
		if err := e.docRepo.MarkEmbedded(task.DocumentID); err != nil && !errors.Is(err, model.ErrInvalidTransition) {
			log.Warnf("[Embedder] 文档 %d 推进到 embedded 失败: %v", task.DocumentID, err)
		}
	}

	log.Infof("[Embedder] 文档 %d 的分块 %d 向量化完成, 维度: %d", task.DocumentID, task.ChunkIndex, len(vector))
	return Done, nil
}

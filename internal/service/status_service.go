package service

import (
	"context"

	"vector-pipeline-go/internal/model"
	"vector-pipeline-go/internal/repository"
	"vector-pipeline-go/pkg/log"
	"vector-pipeline-go/pkg/queue"
)

// PipelineStatusDTO 汇总了流水线各环节的积压与进度。
type PipelineStatusDTO struct {
	QueueDepths    map[string]int64 `json:"queueDepths"`
	DocumentCounts map[string]int64 `json:"documentCounts"`
	ChunksEmbedded int64            `json:"chunksEmbedded"`
	ChunksPending  int64            `json:"chunksPending"`
}

// StatusService 接口定义了流水线观测操作。
type StatusService interface {
	PipelineStatus(ctx context.Context) *PipelineStatusDTO
}

type statusService struct {
	docRepo   repository.DocumentRepository
	chunkRepo repository.ChunkRepository
	producer  *queue.Producer
}

// NewStatusService 创建一个新的 StatusService 实例。
func NewStatusService(docRepo repository.DocumentRepository, chunkRepo repository.ChunkRepository, producer *queue.Producer) StatusService {
	return &statusService{
		docRepo:   docRepo,
		chunkRepo: chunkRepo,
		producer:  producer,
	}
}

// PipelineStatus 采集队列深度和各状态文档数。
// 观测接口不因单项采集失败而报错，取不到的指标退化为 0。
func (s *statusService) PipelineStatus(ctx context.Context) *PipelineStatusDTO {
	status := &PipelineStatusDTO{
		QueueDepths:    s.producer.Depths(ctx),
		DocumentCounts: make(map[string]int64, 3),
	}
	for _, st := range []model.Status{model.StatusPending, model.StatusChunked, model.StatusEmbedded} {
		status.DocumentCounts[string(st)] = 0
	}

	counts, err := s.docRepo.CountByStatus()
	if err != nil {
		log.Warnf("[StatusService] 统计文档状态失败: %v", err)
	} else {
		for st, total := range counts {
			status.DocumentCounts[string(st)] = total
		}
	}

	embedded, pending, err := s.chunkRepo.EmbeddingCounts()
	if err != nil {
		log.Warnf("[StatusService] 统计分块向量化进度失败: %v", err)
	} else {
		status.ChunksEmbedded = embedded
		status.ChunksPending = pending
	}

	return status
}

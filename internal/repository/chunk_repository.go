package repository

import (
	"gorm.io/gorm"

	"vector-pipeline-go/internal/model"
)

// ChunkRepository 接口定义了 document_chunks 表的数据持久化操作。
type ChunkRepository interface {
	// ReplaceAll 以全量替换方式写入一个文档的全部分块（先删后插，同一事务）。
	ReplaceAll(documentID uint, chunks []*model.DocumentChunk) error
	// UpdateEmbedding 按 (document_id, chunk_index) 写入向量，返回受影响行数。
	// 返回 0 表示目标分块不存在，由调用方判定为消息级致命错误。
	UpdateEmbedding(documentID uint, chunkIndex int, embedding model.Vector) (int64, error)
	// CountMissingEmbedding 统计指定文档中尚未携带向量的分块数。
	CountMissingEmbedding(documentID uint) (int64, error)
	// EmbeddingCounts 统计全库已向量化/未向量化的分块数，用于观测。
	EmbeddingCounts() (embedded int64, pending int64, err error)
}

// chunkRepository 是 ChunkRepository 接口的 GORM 实现。
type chunkRepository struct {
	db *gorm.DB
}

// NewChunkRepository 创建一个新的 ChunkRepository 实例。
func NewChunkRepository(db *gorm.DB) ChunkRepository {
	return &chunkRepository{db: db}
}

// ReplaceAll 在一个事务内删除文档既有分块并批量插入新分块。
// 重复处理同一文档时由此保证幂等，不会累计膨胀。
func (r *chunkRepository) ReplaceAll(documentID uint, chunks []*model.DocumentChunk) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("document_id = ?", documentID).Delete(&model.DocumentChunk{}).Error; err != nil {
			return err
		}
		if len(chunks) == 0 {
			return nil
		}
		return tx.CreateInBatches(chunks, 100).Error // 每100条记录一批
	})
}

// UpdateEmbedding 将向量写入目标分块行。
func (r *chunkRepository) UpdateEmbedding(documentID uint, chunkIndex int, embedding model.Vector) (int64, error) {
	res := r.db.Model(&model.DocumentChunk{}).
		Where("document_id = ? AND chunk_index = ?", documentID, chunkIndex).
		Update("embedding", embedding)
	return res.RowsAffected, res.Error
}

// CountMissingEmbedding 统计文档内向量列仍为 NULL 的分块数。
func (r *chunkRepository) CountMissingEmbedding(documentID uint) (int64, error) {
	var count int64
	err := r.db.Model(&model.DocumentChunk{}).
		Where("document_id = ? AND embedding IS NULL", documentID).
		Count(&count).Error
	return count, err
}

// EmbeddingCounts 统计全库分块的向量化进度。
func (r *chunkRepository) EmbeddingCounts() (int64, int64, error) {
	var embedded, pending int64
	if err := r.db.Model(&model.DocumentChunk{}).
		Where("embedding IS NOT NULL").Count(&embedded).Error; err != nil {
		return 0, 0, err
	}
	if err := r.db.Model(&model.DocumentChunk{}).
		Where("embedding IS NULL").Count(&pending).Error; err != nil {
		return 0, 0, err
	}
	return embedded, pending, nil
}

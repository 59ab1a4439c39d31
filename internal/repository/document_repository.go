// Package repository 定义了与数据库进行数据交换的接口和实现。
package repository

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"vector-pipeline-go/internal/model"
)

// DocumentRepository 接口定义了 documents 表的数据持久化操作。
type DocumentRepository interface {
	Create(doc *model.Document) error
	FindByID(id uint) (*model.Document, error)
	FindByHash(fileHash string) (*model.Document, error)
	FindBatchByIDs(ids []uint) ([]*model.Document, error)
	// MarkChunked 执行受状态机保护的 pending/chunked/embedded → chunked 转移，
	// 同时写入分块阶段产出的元数据。
	MarkChunked(id uint, chunksCount int, title string, pageCount int) error
	// MarkEmbedded 执行受保护的 chunked → embedded 转移。
	MarkEmbedded(id uint) error
	CountByStatus() (map[model.Status]int64, error)
}

// documentRepository 是 DocumentRepository 接口的 GORM 实现。
type documentRepository struct {
	db *gorm.DB
}

// NewDocumentRepository 创建一个新的 DocumentRepository 实例。
func NewDocumentRepository(db *gorm.DB) DocumentRepository {
	return &documentRepository{db: db}
}

// Create 在数据库中创建一条新的文档记录。
func (r *documentRepository) Create(doc *model.Document) error {
	return r.db.Create(doc).Error
}

// FindByID 根据主键查找文档记录。
func (r *documentRepository) FindByID(id uint) (*model.Document, error) {
	var doc model.Document
	if err := r.db.First(&doc, id).Error; err != nil {
		return nil, err
	}
	return &doc, nil
}

// FindByHash 根据内容哈希查找文档记录，用于重复上传检测。
func (r *documentRepository) FindByHash(fileHash string) (*model.Document, error) {
	var doc model.Document
	if err := r.db.Where("file_hash = ?", fileHash).First(&doc).Error; err != nil {
		return nil, err
	}
	return &doc, nil
}

// FindBatchByIDs 批量查找文档记录，用于搜索结果补全文件名。
func (r *documentRepository) FindBatchByIDs(ids []uint) ([]*model.Document, error) {
	var docs []*model.Document
	if len(ids) == 0 {
		return docs, nil
	}
	err := r.db.Where("id IN ?", ids).Find(&docs).Error
	return docs, err
}

// MarkChunked 将文档推进到 chunked 状态并写入分块元数据。
// 条件更新中的状态白名单就是状态机的转移表：不满足时 0 行受影响，
// 返回 ErrInvalidTransition，并发的重复分块由此被拒绝。
func (r *documentRepository) MarkChunked(id uint, chunksCount int, title string, pageCount int) error {
	now := time.Now()
	res := r.db.Model(&model.Document{}).
		Where("id = ? AND processing_status IN ?", id, statusList(model.TransitionSources(model.StatusChunked))).
		Updates(map[string]interface{}{
			"processing_status": model.StatusChunked,
			"chunks_count":      chunksCount,
			"title":             title,
			"page_count":        pageCount,
			"processed_time":    &now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("文档 %d 推进到 chunked 失败: %w", id, model.ErrInvalidTransition)
	}
	return nil
}

// MarkEmbedded 将文档推进到 embedded 状态。
func (r *documentRepository) MarkEmbedded(id uint) error {
	res := r.db.Model(&model.Document{}).
		Where("id = ? AND processing_status IN ?", id, statusList(model.TransitionSources(model.StatusEmbedded))).
		Update("processing_status", model.StatusEmbedded)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("文档 %d 推进到 embedded 失败: %w", id, model.ErrInvalidTransition)
	}
	return nil
}

// CountByStatus 统计各处理状态下的文档数量，用于 /status 观测接口。
func (r *documentRepository) CountByStatus() (map[model.Status]int64, error) {
	type row struct {
		ProcessingStatus model.Status
		Total            int64
	}
	var rows []row
	err := r.db.Model(&model.Document{}).
		Select("processing_status, COUNT(*) AS total").
		Group("processing_status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[model.Status]int64, len(rows))
	for _, rw := range rows {
		counts[rw.ProcessingStatus] = rw.Total
	}
	return counts, nil
}

// statusList 将状态切片转换为可用于 IN 条件的字符串切片。
func statusList(statuses []model.Status) []string {
	out := make([]string, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, string(s))
	}
	return out
}

// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"vector-pipeline-go/internal/model"
	"vector-pipeline-go/internal/repository"
	"vector-pipeline-go/pkg/log"
	"vector-pipeline-go/pkg/queue"
	"vector-pipeline-go/pkg/storage"
	"vector-pipeline-go/pkg/tasks"
)

// ErrDatabaseUnavailable 表示摄取期间数据库不可达，属于暂时性故障。
var ErrDatabaseUnavailable = errors.New("database unavailable")

// UploadResultDTO 是上传接口返回给前端的结果。
type UploadResultDTO struct {
	DocumentID uint   `json:"documentId"`
	Filename   string `json:"filename"`
	Status     string `json:"status"`
	// Duplicate 为 true 时表示命中了内容哈希去重，返回的是已有文档。
	Duplicate bool `json:"duplicate"`
}

// DocumentService 接口定义了文档摄取相关的业务操作。
type DocumentService interface {
	// Ingest 接收上传的文件内容，落盘、建档并投递分块任务。
	Ingest(ctx context.Context, filename string, content []byte) (*UploadResultDTO, error)
	GetDocument(id uint) (*model.Document, error)
}

type documentService struct {
	docRepo  repository.DocumentRepository
	store    *storage.Client
	producer *queue.Producer
}

// NewDocumentService 创建一个新的 DocumentService 实例。
func NewDocumentService(docRepo repository.DocumentRepository, store *storage.Client, producer *queue.Producer) DocumentService {
	return &documentService{
		docRepo:  docRepo,
		store:    store,
		producer: producer,
	}
}

// Ingest 执行完整的摄取流程：哈希去重 → 对象存储落盘 → 建档 → 入队。
func (s *documentService) Ingest(ctx context.Context, filename string, content []byte) (*UploadResultDTO, error) {
	if len(content) == 0 {
		return nil, errors.New("上传内容为空")
	}

	sum := sha256.Sum256(content)
	fileHash := hex.EncodeToString(sum[:])
	log.Infof("[DocumentService] 步骤1: 计算文件哈希完成, filename: %s, hash: %s", filename, fileHash)

	// 内容级去重：相同哈希直接复用已有文档，不重复入库
	if existing, err := s.docRepo.FindByHash(fileHash); err == nil {
		log.Infof("[DocumentService] 命中重复上传, 复用文档 %d (status=%s)", existing.ID, existing.ProcessingStatus)
		return &UploadResultDTO{
			DocumentID: existing.ID,
			Filename:   existing.Filename,
			Status:     string(existing.ProcessingStatus),
			Duplicate:  true,
		}, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		// 非"未找到"的查询错误意味着数据库本身出了问题
		return nil, fmt.Errorf("查询重复文档失败: %w: %v", ErrDatabaseUnavailable, err)
	}

	// 对象名带时间戳和随机片段，避免同名文件互相覆盖
	objectName := fmt.Sprintf("documents/%s_%s%s",
		time.Now().Format("20060102150405"),
		uuid.NewString()[:8],
		sanitizeExt(filename))

	log.Infof("[DocumentService] 步骤2: 写入对象存储, object: %s, size: %d", objectName, len(content))
	if err := s.store.Save(ctx, objectName, content); err != nil {
		return nil, fmt.Errorf("保存文件到对象存储失败: %w", err)
	}

	doc := &model.Document{
		Filename:         filename,
		FileHash:         fileHash,
		FilePath:         objectName,
		ProcessingStatus: model.StatusPending,
	}
	log.Infof("[DocumentService] 步骤3: 创建文档记录")
	if err := s.docRepo.Create(doc); err != nil {
		// 建档失败时清掉刚写入的对象，避免孤儿文件
		if rmErr := s.store.Remove(ctx, objectName); rmErr != nil {
			log.Warnf("[DocumentService] 回滚删除对象 %s 失败: %v", objectName, rmErr)
		}
		return nil, fmt.Errorf("创建文档记录失败: %w: %v", ErrDatabaseUnavailable, err)
	}

	log.Infof("[DocumentService] 步骤4: 投递分块任务, document_id: %d", doc.ID)
	task := tasks.DocumentTask{DocumentID: doc.ID, FilePath: doc.FilePath}
	if err := s.producer.EnqueueDocument(ctx, task); err != nil {
		if rmErr := s.store.Remove(ctx, objectName); rmErr != nil {
			log.Warnf("[DocumentService] 回滚删除对象 %s 失败: %v", objectName, rmErr)
		}
		return nil, fmt.Errorf("投递分块任务失败: %w", err)
	}

	log.Infof("[DocumentService] 文档 %d 摄取完成, 等待分块", doc.ID)
	return &UploadResultDTO{
		DocumentID: doc.ID,
		Filename:   doc.Filename,
		Status:     string(doc.ProcessingStatus),
	}, nil
}

// GetDocument 按主键查询文档元数据和处理状态。
func (s *documentService) GetDocument(id uint) (*model.Document, error) {
	return s.docRepo.FindByID(id)
}

// sanitizeExt 保留原始文件的扩展名，文件名主体用下划线占位。
func sanitizeExt(filename string) string {
	ext := filepath.Ext(filename)
	base := filename[:len(filename)-len(ext)]
	safe := make([]rune, 0, len(base))
	for _, r := range base {
		if r == '/' || r == '\\' || r == ' ' {
			safe = append(safe, '_')
			continue
		}
		safe = append(safe, r)
	}
	return "_" + string(safe) + ext
}

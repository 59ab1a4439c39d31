// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"vector-pipeline-go/internal/service"
	"vector-pipeline-go/pkg/log"
	"vector-pipeline-go/pkg/queue"
)

// DocumentHandler 负责处理文档上传和查询相关的 API 请求。
type DocumentHandler struct {
	documentService service.DocumentService
	maxFileSize     int64
}

// NewDocumentHandler 创建一个新的 DocumentHandler 实例。
func NewDocumentHandler(documentService service.DocumentService, maxFileSize int64) *DocumentHandler {
	return &DocumentHandler{
		documentService: documentService,
		maxFileSize:     maxFileSize,
	}
}

// Upload 处理文档上传请求，接收 multipart 表单中的 file 字段。
func (h *DocumentHandler) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "未能获取上传的文件"})
		return
	}
	log.Infof("[DocumentHandler] 收到上传请求, filename: %s, size: %d", fileHeader.Filename, fileHeader.Size)

	if fileHeader.Size > h.maxFileSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{
			"error": "文件超过大小限制",
			"limit": h.maxFileSize,
		})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无法读取上传的文件"})
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "读取上传内容失败"})
		return
	}

	result, err := h.documentService.Ingest(c.Request.Context(), fileHeader.Filename, content)
	if err != nil {
		log.Errorf("[DocumentHandler] 摄取文档失败, error: %v", err)
		// 数据库或队列暂时不可达时告知客户端稍后重试，而不是笼统的 500
		if errors.Is(err, service.ErrDatabaseUnavailable) || errors.Is(err, queue.ErrUnavailable) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "服务暂时不可用，请稍后重试"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "文档摄取失败"})
		return
	}

	status := http.StatusOK
	if !result.Duplicate {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{"code": status, "data": result, "message": "success"})
}

// GetDocument 处理按 ID 查询文档处理状态的请求。
func (h *DocumentHandler) GetDocument(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的文档 ID"})
		return
	}

	doc, err := h.documentService.GetDocument(uint(id))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "文档不存在"})
			return
		}
		log.Errorf("[DocumentHandler] 查询文档 %d 失败, error: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "服务器内部错误"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"code": 200, "data": doc, "message": "success"})
}

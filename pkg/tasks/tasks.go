// Package tasks 定义了流水线各阶段之间通过队列传递的任务载荷。
package tasks

// 流水线使用的两个逻辑队列。
const (
	// QueuePendingDocument 承载等待分块的文档任务。
	QueuePendingDocument = "vector_pending_document"
	// QueuePendingChunk 承载等待向量化的分块任务。
	QueuePendingChunk = "vector_pending_chunk"
)

// Names 按固定顺序列出全部队列名，供深度巡检使用。
func Names() []string {
	return []string{QueuePendingDocument, QueuePendingChunk}
}

// DocumentTask 是 pending_document 队列的消息载荷。
// 载荷自包含：消费者仅凭 document_id 和 file_path 即可完成分块。
type DocumentTask struct {
	DocumentID uint   `json:"document_id"`
	FilePath   string `json:"file_path"`
}

// ChunkTask 是 pending_chunk 队列的消息载荷。
type ChunkTask struct {
	DocumentID uint   `json:"document_id"`
	ChunkIndex int    `json:"chunk_index"`
	ChunkText  string `json:"chunk_text"`
}

package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"vector-pipeline-go/internal/model"
	"vector-pipeline-go/internal/repository"
	"vector-pipeline-go/pkg/log"
	"vector-pipeline-go/pkg/queue"
	"vector-pipeline-go/pkg/storage"
	"vector-pipeline-go/pkg/tasks"
	"vector-pipeline-go/pkg/tika"
)

// titleSnippetLen 是从正文提取的标题摘要长度（字符数）。
const titleSnippetLen = 100

// FileFetcher 抽象了按相对路径读取文件内容的能力。
type FileFetcher interface {
	Fetch(ctx context.Context, objectName string) ([]byte, error)
}

// TextConverter 抽象了文本提取引擎。
type TextConverter interface {
	Extract(ctx context.Context, content []byte, fileName string) (tika.Result, error)
}

// Chunker 是分块阶段：消费 pending_document 消息，产出分块行和分块消息。
type Chunker struct {
	fetcher      FileFetcher
	converter    TextConverter
	docRepo      repository.DocumentRepository
	chunkRepo    repository.ChunkRepository
	producer     *queue.Producer
	chunkSize    int
	chunkOverlap int
}

// NewChunker 创建一个新的 Chunker 实例。
func NewChunker(
	fetcher FileFetcher,
	converter TextConverter,
	docRepo repository.DocumentRepository,
	chunkRepo repository.ChunkRepository,
	producer *queue.Producer,
	chunkSize, chunkOverlap int,
) *Chunker {
	return &Chunker{
		fetcher:      fetcher,
		converter:    converter,
		docRepo:      docRepo,
		chunkRepo:    chunkRepo,
		producer:     producer,
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
	}
}

// Process 处理一条文档分块消息。
func (c *Chunker) Process(ctx context.Context, raw json.RawMessage) (Outcome, error) {
	var task tasks.DocumentTask
	if err := json.Unmarshal(raw, &task); err != nil {
		return Drop, fmt.Errorf("无法解析文档任务载荷: %w", err)
	}

	log.Infof("[Chunker] 开始处理文档 %d, file_path: %s", task.DocumentID, task.FilePath)

	// 1. 从共享存储读取文件
	content, err := c.fetcher.Fetch(ctx, task.FilePath)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			// 文件不存在对该消息是致命的，不自动重试
			return Drop, fmt.Errorf("文档 %d 的文件缺失: %w", task.DocumentID, err)
		}
		return Retry, fmt.Errorf("读取文档 %d 的文件失败: %w", task.DocumentID, err)
	}

	// 2. 提取文本和页数
	result, err := c.converter.Extract(ctx, content, task.FilePath)
	if err != nil {
		return Drop, fmt.Errorf("文档 %d 文本提取失败: %w", task.DocumentID, err)
	}

	// 3. 分块。空文本是合法的终态：文档以零分块完成
	chunks := SplitText(result.Text, c.chunkSize, c.chunkOverlap)
	log.Infof("[Chunker] 文档 %d 切分为 %d 个分块", task.DocumentID, len(chunks))

	// 4. 过滤空白分块并按存储顺序连续编号，然后全量替换落库
	stored := make([]*model.DocumentChunk, 0, len(chunks))
	for i, chunkText := range chunks {
		if strings.TrimSpace(chunkText) == "" {
			log.Warnf("[Chunker] 跳过文档 %d 的空白分块 %d", task.DocumentID, i)
			continue
		}
		stored = append(stored, &model.DocumentChunk{
			DocumentID: task.DocumentID,
			ChunkIndex: len(stored), // 存储索引必须连续，与入队的索引一致
			ChunkText:  chunkText,
			ChunkSize:  utf8.RuneCountInString(chunkText),
		})
	}
	if err := c.chunkRepo.ReplaceAll(task.DocumentID, stored); err != nil {
		return Retry, fmt.Errorf("保存文档 %d 的分块失败: %w", task.DocumentID, err)
	}

	// 5. 更新文档元数据并推进状态
	title := deriveTitle(result.Text, task.DocumentID)
	if err := c.docRepo.MarkChunked(task.DocumentID, len(stored), title, result.PageCount); err != nil {
		if errors.Is(err, model.ErrInvalidTransition) {
			return Drop, fmt.Errorf("文档 %d 状态转移被拒绝: %w", task.DocumentID, err)
		}
		return Retry, fmt.Errorf("更新文档 %d 元数据失败: %w", task.DocumentID, err)
	}

	// 6. 逐个分块入队等待向量化，使用存储后的索引
	for _, chunk := range stored {
		err := c.producer.EnqueueChunk(ctx, tasks.ChunkTask{
			DocumentID: task.DocumentID,
			ChunkIndex: chunk.ChunkIndex,
			ChunkText:  chunk.ChunkText,
		})
		if err != nil {
			// 重试会重新分块，全量替换保证幂等
			return Retry, fmt.Errorf("文档 %d 的分块 %d 入队失败: %w", task.DocumentID, chunk.ChunkIndex, err)
		}
	}

	log.Infof("[Chunker] 文档 %d 处理完成, 已入队 %d 个分块", task.DocumentID, len(stored))
	return Done, nil
}

// deriveTitle 从提取出的正文生成标题摘要，无正文时使用兜底标签。
func deriveTitle(text string, documentID uint) string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return fmt.Sprintf("Document %d (no text content)", documentID)
	}
	runes := []rune(trimmed)
	if len(runes) > titleSnippetLen {
		return string(runes[:titleSnippetLen]) + "..."
	}
	return trimmed
}

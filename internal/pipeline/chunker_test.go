package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vector-pipeline-go/internal/model"
	"vector-pipeline-go/pkg/queue"
	"vector-pipeline-go/pkg/storage"
	"vector-pipeline-go/pkg/tasks"
	"vector-pipeline-go/pkg/tika"
)

// testFetcher 以内存 map 模拟对象存储。
type testFetcher struct {
	files    map[string][]byte
	fetchErr error
}

func (f *testFetcher) Fetch(ctx context.Context, objectName string) ([]byte, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	content, ok := f.files[objectName]
	if !ok {
		return nil, fmt.Errorf("%w: %s", storage.ErrObjectNotFound, objectName)
	}
	return content, nil
}

// testConverter 直接把文件内容当作提取出的文本返回。
type testConverter struct {
	pageCount  int
	extractErr error
}

func (c *testConverter) Extract(ctx context.Context, content []byte, fileName string) (tika.Result, error) {
	if c.extractErr != nil {
		return tika.Result{}, c.extractErr
	}
	return tika.Result{Text: string(content), PageCount: c.pageCount}, nil
}

// testDocumentRepo 记录状态转移调用，拒绝不在转移表中的请求。
type testDocumentRepo struct {
	mu     sync.Mutex
	docs   map[uint]*model.Document
	marked []uint
}

func newTestDocumentRepo(docs ...*model.Document) *testDocumentRepo {
	r := &testDocumentRepo{docs: make(map[uint]*model.Document)}
	for _, d := range docs {
		r.docs[d.ID] = d
	}
	return r
}

func (r *testDocumentRepo) Create(doc *model.Document) error { r.docs[doc.ID] = doc; return nil }

func (r *testDocumentRepo) FindByID(id uint) (*model.Document, error) {
	doc, ok := r.docs[id]
	if !ok {
		return nil, errors.New("record not found")
	}
	return doc, nil
}

func (r *testDocumentRepo) FindByHash(fileHash string) (*model.Document, error) {
	return nil, errors.New("record not found")
}

func (r *testDocumentRepo) FindBatchByIDs(ids []uint) ([]*model.Document, error) {
	var out []*model.Document
	for _, id := range ids {
		if doc, ok := r.docs[id]; ok {
			out = append(out, doc)
		}
	}
	return out, nil
}

func (r *testDocumentRepo) MarkChunked(id uint, chunksCount int, title string, pageCount int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[id]
	if !ok || !model.CanTransition(doc.ProcessingStatus, model.StatusChunked) {
		return fmt.Errorf("文档 %d: %w", id, model.ErrInvalidTransition)
	}
	doc.ProcessingStatus = model.StatusChunked
	doc.ChunksCount = chunksCount
	doc.Title = title
	doc.PageCount = pageCount
	r.marked = append(r.marked, id)
	return nil
}

func (r *testDocumentRepo) MarkEmbedded(id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[id]
	if !ok || !model.CanTransition(doc.ProcessingStatus, model.StatusEmbedded) {
		return fmt.Errorf("文档 %d: %w", id, model.ErrInvalidTransition)
	}
	doc.ProcessingStatus = model.StatusEmbedded
	return nil
}

func (r *testDocumentRepo) CountByStatus() (map[model.Status]int64, error) {
	counts := make(map[model.Status]int64)
	for _, doc := range r.docs {
		counts[doc.ProcessingStatus]++
	}
	return counts, nil
}

// testChunkRepo 以内存 map 模拟分块表。
type testChunkRepo struct {
	mu       sync.Mutex
	chunks   map[uint][]*model.DocumentChunk
	countErr error
}

func newTestChunkRepo() *testChunkRepo {
	return &testChunkRepo{chunks: make(map[uint][]*model.DocumentChunk)}
}

func (r *testChunkRepo) ReplaceAll(documentID uint, chunks []*model.DocumentChunk) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chunks[documentID] = chunks
	return nil
}

func (r *testChunkRepo) UpdateEmbedding(documentID uint, chunkIndex int, embedding model.Vector) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, chunk := range r.chunks[documentID] {
		if chunk.ChunkIndex == chunkIndex {
			chunk.Embedding = embedding
			return 1, nil
		}
	}
	return 0, nil
}

func (r *testChunkRepo) CountMissingEmbedding(documentID uint) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.countErr != nil {
		return 0, r.countErr
	}
	var missing int64
	for _, chunk := range r.chunks[documentID] {
		if chunk.Embedding == nil {
			missing++
		}
	}
	return missing, nil
}

func (r *testChunkRepo) EmbeddingCounts() (int64, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var embedded, pending int64
	for _, chunks := range r.chunks {
		for _, chunk := range chunks {
			if chunk.Embedding != nil {
				embedded++
			} else {
				pending++
			}
		}
	}
	return embedded, pending, nil
}

func drainChunkTasks(t *testing.T, store queue.Store) []tasks.ChunkTask {
	t.Helper()
	var out []tasks.ChunkTask
	for {
		raw, ok, err := store.Dequeue(context.Background(), tasks.QueuePendingChunk, 10*time.Millisecond)
		require.NoError(t, err)
		if !ok {
			return out
		}
		var task tasks.ChunkTask
		require.NoError(t, json.Unmarshal(raw, &task))
		out = append(out, task)
	}
}

func TestChunkerProcessSingleChunk(t *testing.T) {
	docRepo := newTestDocumentRepo(&model.Document{ID: 1, ProcessingStatus: model.StatusPending})
	chunkRepo := newTestChunkRepo()
	store := queue.NewMemoryStore()
	fetcher := &testFetcher{files: map[string][]byte{
		"documents/a.pdf": []byte("hello world this is a test"),
	}}
	chunker := NewChunker(fetcher, &testConverter{pageCount: 3}, docRepo, chunkRepo, queue.NewProducer(store), 512, 50)

	payload, _ := json.Marshal(tasks.DocumentTask{DocumentID: 1, FilePath: "documents/a.pdf"})
	outcome, err := chunker.Process(context.Background(), payload)
	require.NoError(t, err)
	assert.Equal(t, Done, outcome)

	// 分块落库：一个分块，索引 0
	require.Len(t, chunkRepo.chunks[1], 1)
	assert.Equal(t, 0, chunkRepo.chunks[1][0].ChunkIndex)
	assert.Equal(t, "hello world this is a test", chunkRepo.chunks[1][0].ChunkText)

	// 文档状态推进并带上元数据
	doc, err := docRepo.FindByID(1)
	require.NoError(t, err)
	assert.Equal(t, model.StatusChunked, doc.ProcessingStatus)
	assert.Equal(t, 1, doc.ChunksCount)
	assert.Equal(t, 3, doc.PageCount)
	assert.Equal(t, "hello world this is a test", doc.Title)

	// 分块消息入队
	queued := drainChunkTasks(t, store)
	require.Len(t, queued, 1)
	assert.Equal(t, uint(1), queued[0].DocumentID)
	assert.Equal(t, 0, queued[0].ChunkIndex)
}

func TestChunkerProcessMissingFileDrops(t *testing.T) {
	docRepo := newTestDocumentRepo(&model.Document{ID: 2, ProcessingStatus: model.StatusPending})
	chunker := NewChunker(&testFetcher{files: map[string][]byte{}}, &testConverter{},
		docRepo, newTestChunkRepo(), queue.NewProducer(queue.NewMemoryStore()), 512, 50)

	payload, _ := json.Marshal(tasks.DocumentTask{DocumentID: 2, FilePath: "documents/missing.pdf"})
	outcome, err := chunker.Process(context.Background(), payload)
	assert.Equal(t, Drop, outcome)
	assert.ErrorIs(t, err, storage.ErrObjectNotFound)
}

func TestChunkerProcessTransientFetchErrorRetries(t *testing.T) {
	docRepo := newTestDocumentRepo(&model.Document{ID: 3, ProcessingStatus: model.StatusPending})
	chunker := NewChunker(&testFetcher{fetchErr: errors.New("connection refused")}, &testConverter{},
		docRepo, newTestChunkRepo(), queue.NewProducer(queue.NewMemoryStore()), 512, 50)

	payload, _ := json.Marshal(tasks.DocumentTask{DocumentID: 3, FilePath: "documents/b.pdf"})
	outcome, err := chunker.Process(context.Background(), payload)
	assert.Equal(t, Retry, outcome)
	assert.Error(t, err)
}

func TestChunkerProcessMalformedPayloadDrops(t *testing.T) {
	chunker := NewChunker(&testFetcher{}, &testConverter{},
		newTestDocumentRepo(), newTestChunkRepo(), queue.NewProducer(queue.NewMemoryStore()), 512, 50)

	outcome, err := chunker.Process(context.Background(), json.RawMessage(`{"document_id": "not a number"}`))
	assert.Equal(t, Drop, outcome)
	assert.Error(t, err)
}

func TestChunkerProcessEmptyDocument(t *testing.T) {
	docRepo := newTestDocumentRepo(&model.Document{ID: 4, ProcessingStatus: model.StatusPending})
	chunkRepo := newTestChunkRepo()
	store := queue.NewMemoryStore()
	fetcher := &testFetcher{files: map[string][]byte{"documents/empty.pdf": []byte("   ")}}
	chunker := NewChunker(fetcher, &testConverter{}, docRepo, chunkRepo, queue.NewProducer(store), 512, 50)

	payload, _ := json.Marshal(tasks.DocumentTask{DocumentID: 4, FilePath: "documents/empty.pdf"})
	outcome, err := chunker.Process(context.Background(), payload)
	require.NoError(t, err)
	assert.Equal(t, Done, outcome)

	// 空文档是合法终态：零分块、状态照常推进、兜底标题
	assert.Empty(t, chunkRepo.chunks[4])
	doc, _ := docRepo.FindByID(4)
	assert.Equal(t, model.StatusChunked, doc.ProcessingStatus)
	assert.Equal(t, 0, doc.ChunksCount)
	assert.Equal(t, "Document 4 (no text content)", doc.Title)
	assert.Empty(t, drainChunkTasks(t, store))
}

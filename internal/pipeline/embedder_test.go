package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vector-pipeline-go/internal/model"
	"vector-pipeline-go/pkg/embedding"
	"vector-pipeline-go/pkg/tasks"
)

// testEmbeddingClient 返回固定向量。
type testEmbeddingClient struct {
	vector []float32
	err    error
}

func (c *testEmbeddingClient) CreateEmbedding(ctx context.Context, text string) ([]float32, error) {
	if c.err != nil {
		return nil, c.err
	}
	return c.vector, nil
}

func (c *testEmbeddingClient) Ready(ctx context.Context) bool { return c.err == nil }

// testIndexer 记录写入 Elasticsearch 的文档。
type testIndexer struct {
	indexed []model.EsChunk
	err     error
}

func (i *testIndexer) IndexChunk(ctx context.Context, doc model.EsChunk) error {
	if i.err != nil {
		return i.err
	}
	i.indexed = append(i.indexed, doc)
	return nil
}

func chunkPayload(t *testing.T, documentID uint, chunkIndex int, text string) json.RawMessage {
	t.Helper()
	payload, err := json.Marshal(tasks.ChunkTask{DocumentID: documentID, ChunkIndex: chunkIndex, ChunkText: text})
	require.NoError(t, err)
	return payload
}

func TestEmbedderProcessWritesVector(t *testing.T) {
	docRepo := newTestDocumentRepo(&model.Document{ID: 1, ProcessingStatus: model.StatusChunked})
	chunkRepo := newTestChunkRepo()
	chunkRepo.chunks[1] = []*model.DocumentChunk{
		{DocumentID: 1, ChunkIndex: 0, ChunkText: "first"},
		{DocumentID: 1, ChunkIndex: 1, ChunkText: "second"},
	}
	indexer := &testIndexer{}
	embedder := NewEmbedder(&testEmbeddingClient{vector: []float32{0.1, 0.2, 0.3}}, chunkRepo, docRepo, indexer, "test-model")

	outcome, err := embedder.Process(context.Background(), chunkPayload(t, 1, 0, "first"))
	require.NoError(t, err)
	assert.Equal(t, Done, outcome)

	// 恰好一行被更新，其余分块不受影响
	assert.Equal(t, model.Vector{0.1, 0.2, 0.3}, chunkRepo.chunks[1][0].Embedding)
	assert.Nil(t, chunkRepo.chunks[1][1].Embedding)

	// 搜索投影同步写入，ID 可幂等覆盖
	require.Len(t, indexer.indexed, 1)
	assert.Equal(t, "1_0", indexer.indexed[0].VectorID)
	assert.Equal(t, "test-model", indexer.indexed[0].ModelVersion)

	// 还有分块缺向量，文档保持 chunked
	doc, _ := docRepo.FindByID(1)
	assert.Equal(t, model.StatusChunked, doc.ProcessingStatus)
}

func TestEmbedderProcessLastChunkMarksEmbedded(t *testing.T) {
	docRepo := newTestDocumentRepo(&model.Document{ID: 1, ProcessingStatus: model.StatusChunked})
	chunkRepo := newTestChunkRepo()
	chunkRepo.chunks[1] = []*model.DocumentChunk{
		{DocumentID: 1, ChunkIndex: 0, ChunkText: "only"},
	}
	embedder := NewEmbedder(&testEmbeddingClient{vector: []float32{0.5}}, chunkRepo, docRepo, &testIndexer{}, "test-model")

	outcome, err := embedder.Process(context.Background(), chunkPayload(t, 1, 0, "only"))
	require.NoError(t, err)
	assert.Equal(t, Done, outcome)

	doc, _ := docRepo.FindByID(1)
	assert.Equal(t, model.StatusEmbedded, doc.ProcessingStatus)
}

func TestEmbedderProcessCompletionCheckFailureKeepsDone(t *testing.T) {
	docRepo := newTestDocumentRepo(&model.Document{ID: 1, ProcessingStatus: model.StatusChunked})
	chunkRepo := newTestChunkRepo()
	chunkRepo.chunks[1] = []*model.DocumentChunk{{DocumentID: 1, ChunkIndex: 0, ChunkText: "only"}}
	chunkRepo.countErr = errors.New("connection lost")
	embedder := NewEmbedder(&testEmbeddingClient{vector: []float32{0.5}}, chunkRepo, docRepo, &testIndexer{}, "test-model")

	// 完成度检查失败只跳过状态推进，向量写入仍然成功
	outcome, err := embedder.Process(context.Background(), chunkPayload(t, 1, 0, "only"))
	require.NoError(t, err)
	assert.Equal(t, Done, outcome)
	assert.Equal(t, model.Vector{0.5}, chunkRepo.chunks[1][0].Embedding)

	doc, _ := docRepo.FindByID(1)
	assert.Equal(t, model.StatusChunked, doc.ProcessingStatus)
}

func TestEmbedderProcessModelNotReadyRetries(t *testing.T) {
	docRepo := newTestDocumentRepo(&model.Document{ID: 1, ProcessingStatus: model.StatusChunked})
	embedder := NewEmbedder(&testEmbeddingClient{err: embedding.ErrModelNotReady}, newTestChunkRepo(), docRepo, &testIndexer{}, "test-model")

	outcome, err := embedder.Process(context.Background(), chunkPayload(t, 1, 0, "text"))
	assert.Equal(t, Retry, outcome)
	assert.ErrorIs(t, err, embedding.ErrModelNotReady)
}

func TestEmbedderProcessMissingChunkDrops(t *testing.T) {
	docRepo := newTestDocumentRepo(&model.Document{ID: 1, ProcessingStatus: model.StatusChunked})
	// 仓库里没有任何分块行
	embedder := NewEmbedder(&testEmbeddingClient{vector: []float32{0.1}}, newTestChunkRepo(), docRepo, &testIndexer{}, "test-model")

	outcome, err := embedder.Process(context.Background(), chunkPayload(t, 1, 7, "ghost"))
	assert.Equal(t, Drop, outcome)
	assert.Error(t, err)
}

func TestEmbedderProcessIndexFailureRetries(t *testing.T) {
	docRepo := newTestDocumentRepo(&model.Document{ID: 1, ProcessingStatus: model.StatusChunked})
	chunkRepo := newTestChunkRepo()
	chunkRepo.chunks[1] = []*model.DocumentChunk{{DocumentID: 1, ChunkIndex: 0, ChunkText: "text"}}
	indexer := &testIndexer{err: errors.New("es unavailable")}
	embedder := NewEmbedder(&testEmbeddingClient{vector: []float32{0.1}}, chunkRepo, docRepo, indexer, "test-model")

	outcome, err := embedder.Process(context.Background(), chunkPayload(t, 1, 0, "text"))
	assert.Equal(t, Retry, outcome)
	assert.Error(t, err)
}

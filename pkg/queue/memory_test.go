package queue

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vector-pipeline-go/pkg/tasks"
)

func TestMemoryStoreEnqueueDequeue(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Enqueue(ctx, "q1", map[string]int{"id": 42}))

	raw, ok, err := store.Dequeue(ctx, "q1", 100*time.Millisecond)
	require.NoError(t, err)
	require.True(t, ok)

	var msg map[string]int
	require.NoError(t, json.Unmarshal(raw, &msg))
	assert.Equal(t, 42, msg["id"])
}

func TestMemoryStoreDequeueTimeout(t *testing.T) {
	store := NewMemoryStore()

	start := time.Now()
	raw, ok, err := store.Dequeue(context.Background(), "empty", 50*time.Millisecond)
	elapsed := time.Since(start)

	// 超时是正常结果，不是错误
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, raw)
	assert.GreaterOrEqual(t, elapsed, 50*time.Millisecond)
	assert.Less(t, elapsed, 500*time.Millisecond)
}

func TestMemoryStoreDequeueOrdering(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, store.Enqueue(ctx, "fifo", map[string]int{"seq": i}))
	}

	for i := 0; i < 5; i++ {
		raw, ok, err := store.Dequeue(ctx, "fifo", 100*time.Millisecond)
		require.NoError(t, err)
		require.True(t, ok)
		var msg map[string]int
		require.NoError(t, json.Unmarshal(raw, &msg))
		assert.Equal(t, i, msg["seq"])
	}
}

func TestMemoryStoreDepth(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	assert.EqualValues(t, 0, store.Depth(ctx, "d"))
	require.NoError(t, store.Enqueue(ctx, "d", "a"))
	require.NoError(t, store.Enqueue(ctx, "d", "b"))
	assert.EqualValues(t, 2, store.Depth(ctx, "d"))

	_, _, _ = store.Dequeue(ctx, "d", 10*time.Millisecond)
	assert.EqualValues(t, 1, store.Depth(ctx, "d"))
}

func TestMemoryStoreQueuesAreIndependent(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Enqueue(ctx, "a", 1))

	_, ok, err := store.Dequeue(ctx, "b", 20*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.EqualValues(t, 1, store.Depth(ctx, "a"))
}

func TestProducerEnqueuesTypedTasks(t *testing.T) {
	store := NewMemoryStore()
	producer := NewProducer(store)
	ctx := context.Background()

	require.NoError(t, producer.EnqueueDocument(ctx, tasks.DocumentTask{DocumentID: 7, FilePath: "documents/x.pdf"}))
	require.NoError(t, producer.EnqueueChunk(ctx, tasks.ChunkTask{DocumentID: 7, ChunkIndex: 0, ChunkText: "hello"}))

	raw, ok, err := store.Dequeue(ctx, tasks.QueuePendingDocument, 50*time.Millisecond)
	require.NoError(t, err)
	require.True(t, ok)
	var docTask tasks.DocumentTask
	require.NoError(t, json.Unmarshal(raw, &docTask))
	assert.Equal(t, uint(7), docTask.DocumentID)
	assert.Equal(t, "documents/x.pdf", docTask.FilePath)

	depths := producer.Depths(ctx)
	assert.EqualValues(t, 0, depths[tasks.QueuePendingDocument])
	assert.EqualValues(t, 1, depths[tasks.QueuePendingChunk])
}

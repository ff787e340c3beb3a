//-------------------------------------------------------------------------
//
// pgEdge RAG Assistant
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package corpus

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgEdge/pgedge-rag-assistant/internal/llm/mock"
)

// countingEmbedder records the size of every EmbedBatch call.
type countingEmbedder struct {
	*mock.EmbeddingProvider
	mu      sync.Mutex
	batches []int
}

func newCountingEmbedder() *countingEmbedder {
	return &countingEmbedder{EmbeddingProvider: mock.NewEmbeddingProvider(64)}
}

func (e *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	e.batches = append(e.batches, len(texts))
	e.mu.Unlock()
	return e.EmbeddingProvider.EmbedBatch(ctx, texts)
}

func makeChunks(n int, fileID string) []Chunk {
	chunks := make([]Chunk, n)
	for i := range chunks {
		chunks[i] = Chunk{
			Content: fmt.Sprintf("chunk number %d about topic%d", i, i%7),
			Metadata: map[string]any{
				MetaSource:     "doc.txt",
				MetaFileID:     fileID,
				MetaChunkIndex: i,
			},
		}
	}
	return chunks
}

func TestMemoryStore_InsertBatches(t *testing.T) {
	emb := newCountingEmbedder()
	store := NewMemoryStore(emb, nil)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, makeChunks(120, "f1"), 50))

	assert.Equal(t, []int{50, 50, 20}, emb.batches)
	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 120, n)

	contents, metas, err := store.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, contents, 120)
	require.Len(t, metas, 120)
	assert.Equal(t, "chunk number 0 about topic0", contents[0])
	assert.Equal(t, "chunk number 119 about topic0", contents[119])
}

func TestMemoryStore_InsertDefaultBatchSize(t *testing.T) {
	emb := newCountingEmbedder()
	store := NewMemoryStore(emb, nil)

	require.NoError(t, store.Insert(context.Background(), makeChunks(70, "f1"), 0))
	assert.Equal(t, []int{DefaultBatchSize, 70 - DefaultBatchSize}, emb.batches)
}

func TestMemoryStore_InsertCancelled(t *testing.T) {
	store := NewMemoryStore(newCountingEmbedder(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := store.Insert(ctx, makeChunks(10, "f1"), 5)
	require.ErrorIs(t, err, context.Canceled)
	n, _ := store.Count(context.Background())
	assert.Zero(t, n)
}

func TestMemoryStore_VectorSearch(t *testing.T) {
	store := NewMemoryStore(mock.NewEmbeddingProvider(256), nil)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, []Chunk{
		{Content: "the quick brown fox"},
		{Content: "项目预算为500000元"},
		{Content: "lorem ipsum dolor"},
	}, 10))

	docs, err := store.VectorSearch(ctx, "项目预算", 2)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "项目预算为500000元", docs[0].Content)
	assert.GreaterOrEqual(t, docs[0].Score, docs[1].Score)
}

func TestMemoryStore_SearchEmpty(t *testing.T) {
	store := NewMemoryStore(mock.NewEmbeddingProvider(32), nil)
	ctx := context.Background()

	docs, err := store.VectorSearch(ctx, "anything", 5)
	require.NoError(t, err)
	assert.Empty(t, docs)

	docs, err = store.LexicalSearch(ctx, "anything", 5)
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestMemoryStore_LexicalSearch(t *testing.T) {
	store := NewMemoryStore(mock.NewEmbeddingProvider(32), nil)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, []Chunk{
		{Content: "PostgreSQL supports logical replication", Metadata: map[string]any{MetaSource: "a.txt"}},
		{Content: "bananas are yellow", Metadata: map[string]any{MetaSource: "b.txt"}},
	}, 10))

	docs, err := store.LexicalSearch(ctx, "replication", 5)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "a.txt", docs[0].String(MetaSource))
	assert.Positive(t, docs[0].Score)
}

func TestMemoryStore_DeleteByFileID(t *testing.T) {
	store := NewMemoryStore(mock.NewEmbeddingProvider(32), nil)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, makeChunks(5, "keep"), 10))
	require.NoError(t, store.Insert(ctx, makeChunks(3, "drop"), 10))

	removed, err := store.DeleteByFileID(ctx, "drop")
	require.NoError(t, err)
	assert.Equal(t, 3, removed)

	n, _ := store.Count(ctx)
	assert.Equal(t, 5, n)

	docs, err := store.LexicalSearch(ctx, "chunk", 10)
	require.NoError(t, err)
	for _, d := range docs {
		assert.Equal(t, "keep", d.String(MetaFileID))
	}
}

func TestMemoryStore_ResultsDoNotAlias(t *testing.T) {
	store := NewMemoryStore(mock.NewEmbeddingProvider(32), nil)
	ctx := context.Background()
	require.NoError(t, store.Insert(ctx, makeChunks(1, "f"), 1))

	docs, err := store.VectorSearch(ctx, "chunk", 1)
	require.NoError(t, err)
	docs[0].Metadata[MetaSource] = "changed"

	_, metas, err := store.GetAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, "doc.txt", metas[0][MetaSource])
}

func TestMemoryStore_ConcurrentReadsDuringInsert(t *testing.T) {
	store := NewMemoryStore(mock.NewEmbeddingProvider(32), nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		assert.NoError(t, store.Insert(ctx, makeChunks(200, "f"), 10))
	}()
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 20 {
				_, err := store.VectorSearch(ctx, "topic3", 3)
				assert.NoError(t, err)
				_, err = store.LexicalSearch(ctx, "topic3", 3)
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	n, _ := store.Count(ctx)
	assert.Equal(t, 200, n)
}

func TestDocument_Clone(t *testing.T) {
	d := Document{Content: "x"}
	c := d.Clone()
	c.Metadata["k"] = "v"
	assert.Nil(t, d.Metadata)
	assert.Equal(t, "v", c.String("k"))
	assert.Equal(t, "", c.String("missing"))
}

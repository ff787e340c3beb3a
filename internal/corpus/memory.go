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
	"log/slog"
	"maps"
	"math"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/pgEdge/pgedge-rag-assistant/internal/bm25"
	"github.com/pgEdge/pgedge-rag-assistant/internal/llm"
)

type storedChunk struct {
	Chunk
	vector []float32
	seq    int
}

// MemoryStore keeps chunks and their embeddings in process memory.
type MemoryStore struct {
	embedder llm.EmbeddingProvider
	logger   *slog.Logger

	mu      sync.RWMutex
	chunks  map[string]*storedChunk
	lexical *bm25.Index
	nextSeq int
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(embedder llm.EmbeddingProvider, logger *slog.Logger) *MemoryStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &MemoryStore{
		embedder: embedder,
		logger:   logger.With("component", "corpus", "backend", "memory"),
		chunks:   make(map[string]*storedChunk),
		lexical:  bm25.NewIndex(),
	}
}

// Insert embeds chunks batch by batch. Embedding happens outside the
// lock; each batch becomes visible to readers atomically.
func (s *MemoryStore) Insert(ctx context.Context, chunks []Chunk, batchSize int) error {
	return forEachBatch(ctx, chunks, batchSize, func(batch []Chunk) error {
		vecs, err := s.embedder.EmbedBatch(ctx, texts(batch))
		if err != nil {
			return fmt.Errorf("failed to embed batch: %w", err)
		}
		if len(vecs) != len(batch) {
			return fmt.Errorf("embedder returned %d vectors for %d chunks", len(vecs), len(batch))
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		for i, c := range batch {
			if c.ID == "" {
				c.ID = uuid.NewString()
			}
			c.Metadata = maps.Clone(c.Metadata)
			s.chunks[c.ID] = &storedChunk{Chunk: c, vector: vecs[i], seq: s.nextSeq}
			s.nextSeq++
			s.lexical.Add(c.ID, c.Content, c.Metadata)
		}
		s.logger.Debug("inserted batch", "size", len(batch), "total", len(s.chunks))
		return nil
	})
}

// DeleteByFileID removes all chunks of a file.
func (s *MemoryStore) DeleteByFileID(_ context.Context, fileID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, c := range s.chunks {
		if fid, _ := c.Metadata[MetaFileID].(string); fid == fileID {
			delete(s.chunks, id)
			s.lexical.Remove(id)
			removed++
		}
	}
	return removed, nil
}

// VectorSearch embeds query and ranks chunks by cosine similarity.
func (s *MemoryStore) VectorSearch(ctx context.Context, query string, k int) ([]Document, error) {
	if k <= 0 {
		return nil, nil
	}
	s.mu.RLock()
	empty := len(s.chunks) == 0
	s.mu.RUnlock()
	if empty {
		return nil, nil
	}

	qvec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	type hit struct {
		c     *storedChunk
		score float64
	}
	hits := make([]hit, 0, len(s.chunks))
	for _, c := range s.chunks {
		hits = append(hits, hit{c: c, score: cosine(qvec, c.vector)})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].c.seq < hits[j].c.seq
	})

	out := make([]Document, 0, min(k, len(hits)))
	for _, h := range hits[:min(k, len(hits))] {
		out = append(out, Document{
			Content:  h.c.Content,
			Metadata: maps.Clone(h.c.Metadata),
			Score:    h.score,
		})
	}
	return out, nil
}

// LexicalSearch ranks chunks with BM25.
func (s *MemoryStore) LexicalSearch(_ context.Context, query string, k int) ([]Document, error) {
	results := s.lexical.Search(query, k)
	out := make([]Document, 0, len(results))
	for _, r := range results {
		out = append(out, Document{
			Content:  r.Content,
			Metadata: maps.Clone(r.Metadata),
			Score:    r.Score,
		})
	}
	return out, nil
}

// GetAll returns all chunks in insertion order.
func (s *MemoryStore) GetAll(_ context.Context) ([]string, []map[string]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ordered := make([]*storedChunk, 0, len(s.chunks))
	for _, c := range s.chunks {
		ordered = append(ordered, c)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].seq < ordered[j].seq })

	contents := make([]string, len(ordered))
	metas := make([]map[string]any, len(ordered))
	for i, c := range ordered {
		contents[i] = c.Content
		metas[i] = maps.Clone(c.Metadata)
	}
	return contents, metas, nil
}

// Count returns the number of stored chunks.
func (s *MemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks), nil
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

var _ Store = (*MemoryStore)(nil)

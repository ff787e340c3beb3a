//-------------------------------------------------------------------------
//
// pgEdge RAG Assistant
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package mock

import (
	"context"
	"hash/fnv"
	"math"

	"github.com/pgEdge/pgedge-rag-assistant/internal/llm"
)

// DefaultDimensions matches text-embedding-3-small.
const DefaultDimensions = 1536

// EmbeddingProvider hashes character unigrams and bigrams into a fixed
// number of buckets and L2-normalizes the result. Texts sharing
// characters get a positive cosine similarity.
type EmbeddingProvider struct {
	dims int
}

// NewEmbeddingProvider creates a fake embedder; dims <= 0 selects
// DefaultDimensions.
func NewEmbeddingProvider(dims int) *EmbeddingProvider {
	if dims <= 0 {
		dims = DefaultDimensions
	}
	return &EmbeddingProvider{dims: dims}
}

// Embed returns the embedding of text.
func (p *EmbeddingProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return p.vector(text), nil
}

// EmbedBatch returns the embeddings of texts.
func (p *EmbeddingProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = p.vector(t)
	}
	return out, nil
}

func (p *EmbeddingProvider) bucket(s string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return int(h.Sum32() % uint32(p.dims))
}

func (p *EmbeddingProvider) vector(text string) []float32 {
	v := make([]float32, p.dims)
	runes := []rune(text)
	for i, r := range runes {
		v[p.bucket(string(r))]++
		if i+1 < len(runes) {
			v[p.bucket(string(runes[i:i+2]))]++
		}
	}

	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if norm == 0 {
		return v
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range v {
		v[i] *= scale
	}
	return v
}

// Dimensions returns the embedding size.
func (p *EmbeddingProvider) Dimensions() int {
	return p.dims
}

// ModelName returns "mock".
func (p *EmbeddingProvider) ModelName() string {
	return modelName
}

var _ llm.EmbeddingProvider = (*EmbeddingProvider)(nil)

//-------------------------------------------------------------------------
//
// pgEdge RAG Assistant
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package retrieval combines vector and lexical search over the corpus.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pgEdge/pgedge-rag-assistant/internal/corpus"
)

// Searcher is the subset of corpus.Store used for retrieval.
type Searcher interface {
	VectorSearch(ctx context.Context, query string, k int) ([]corpus.Document, error)
	LexicalSearch(ctx context.Context, query string, k int) ([]corpus.Document, error)
}

// Config configures a HybridRetriever.
type Config struct {
	// VectorWeight is the fusion weight of the vector ranking; the
	// lexical ranking gets 1 - VectorWeight. Zero means 0.5.
	VectorWeight float64
	Logger       *slog.Logger
}

// HybridRetriever fuses vector and BM25 rankings.
type HybridRetriever struct {
	store        Searcher
	vectorWeight float64
	logger       *slog.Logger
}

// NewHybridRetriever creates a retriever over store.
func NewHybridRetriever(store Searcher, cfg Config) *HybridRetriever {
	w := cfg.VectorWeight
	if w <= 0 || w > 1 {
		w = 0.5
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &HybridRetriever{
		store:        store,
		vectorWeight: w,
		logger:       logger.With("component", "retrieval"),
	}
}

// Retrieve returns at most k documents. A lexical search failure
// degrades to vector-only results; a vector search failure is returned.
func (r *HybridRetriever) Retrieve(ctx context.Context, query string, k int) ([]corpus.Document, error) {
	if k <= 0 {
		return nil, nil
	}

	vec, err := r.store.VectorSearch(ctx, query, k)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	lex, err := r.store.LexicalSearch(ctx, query, k)
	if err != nil {
		r.logger.Warn("lexical search failed, using vector results only", "error", err)
		lex = nil
	}

	fused := WeightedRankFusion(DefaultRRFConstant,
		RankedList{Docs: vec, Weight: r.vectorWeight},
		RankedList{Docs: lex, Weight: 1 - r.vectorWeight},
	)
	if len(fused) > k {
		fused = fused[:k]
	}

	r.logger.Debug("hybrid retrieval",
		"vector", len(vec), "lexical", len(lex), "fused", len(fused))
	return fused, nil
}

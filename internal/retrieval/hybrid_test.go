//-------------------------------------------------------------------------
//
// pgEdge RAG Assistant
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/pgEdge/pgedge-rag-assistant/internal/corpus"
	"github.com/pgEdge/pgedge-rag-assistant/internal/llm/mock"
)

// MockSearcher is a Searcher with overridable functions.
type MockSearcher struct {
	VectorFunc  func(ctx context.Context, query string, k int) ([]corpus.Document, error)
	LexicalFunc func(ctx context.Context, query string, k int) ([]corpus.Document, error)
}

func (m *MockSearcher) VectorSearch(ctx context.Context, query string, k int) ([]corpus.Document, error) {
	if m.VectorFunc != nil {
		return m.VectorFunc(ctx, query, k)
	}
	return nil, nil
}

func (m *MockSearcher) LexicalSearch(ctx context.Context, query string, k int) ([]corpus.Document, error) {
	if m.LexicalFunc != nil {
		return m.LexicalFunc(ctx, query, k)
	}
	return nil, nil
}

func TestHybridRetriever_Fuses(t *testing.T) {
	s := &MockSearcher{
		VectorFunc: func(_ context.Context, _ string, _ int) ([]corpus.Document, error) {
			return docs("a", "b", "c"), nil
		},
		LexicalFunc: func(_ context.Context, _ string, _ int) ([]corpus.Document, error) {
			return docs("c", "d"), nil
		},
	}
	r := NewHybridRetriever(s, Config{})

	got, err := r.Retrieve(context.Background(), "q", 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 results, got %d", len(got))
	}
	if got[0].Content != "c" {
		t.Errorf("expected c first, got %v", contents(got))
	}
}

func TestHybridRetriever_LexicalFailureDegrades(t *testing.T) {
	s := &MockSearcher{
		VectorFunc: func(_ context.Context, _ string, _ int) ([]corpus.Document, error) {
			return docs("a", "b"), nil
		},
		LexicalFunc: func(_ context.Context, _ string, _ int) ([]corpus.Document, error) {
			return nil, errors.New("index unavailable")
		},
	}
	got, err := NewHybridRetriever(s, Config{}).Retrieve(context.Background(), "q", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0].Content != "a" {
		t.Errorf("expected vector order, got %v", contents(got))
	}
}

func TestHybridRetriever_VectorFailure(t *testing.T) {
	s := &MockSearcher{
		VectorFunc: func(_ context.Context, _ string, _ int) ([]corpus.Document, error) {
			return nil, errors.New("db down")
		},
	}
	if _, err := NewHybridRetriever(s, Config{}).Retrieve(context.Background(), "q", 5); err == nil {
		t.Fatal("expected error")
	}
}

func TestHybridRetriever_EmptyCorpus(t *testing.T) {
	store := corpus.NewMemoryStore(mock.NewEmbeddingProvider(16), nil)
	got, err := NewHybridRetriever(store, Config{}).Retrieve(context.Background(), "q", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no results, got %d", len(got))
	}
}

func TestHybridRetriever_MemoryStore(t *testing.T) {
	ctx := context.Background()
	store := corpus.NewMemoryStore(mock.NewEmbeddingProvider(128), nil)
	err := store.Insert(ctx, []corpus.Chunk{
		{Content: "项目预算为500000元", Metadata: map[string]any{corpus.MetaSource: "budget.txt"}},
		{Content: "会议定于周五下午举行", Metadata: map[string]any{corpus.MetaSource: "meeting.txt"}},
		{Content: "RAG combines retrieval with generation", Metadata: map[string]any{corpus.MetaSource: "rag.txt"}},
	}, 2)
	if err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	got, err := NewHybridRetriever(store, Config{VectorWeight: 0.5}).Retrieve(ctx, "项目的金额是多少？", 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) == 0 || got[0].String(corpus.MetaSource) != "budget.txt" {
		t.Errorf("expected budget.txt first, got %v", got)
	}
}

//-------------------------------------------------------------------------
//
// pgEdge RAG Assistant
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package rewrite

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/pgEdge/pgedge-rag-assistant/internal/llm"
)

// MockCompletionProvider records calls and delegates to CompleteFunc.
type MockCompletionProvider struct {
	CompleteFunc func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error)
	Calls        int
}

func (m *MockCompletionProvider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	m.Calls++
	return m.CompleteFunc(ctx, req)
}

func (m *MockCompletionProvider) CompleteStream(context.Context, llm.CompletionRequest) (<-chan llm.StreamChunk, <-chan error) {
	chunks := make(chan llm.StreamChunk)
	errs := make(chan error, 1)
	close(chunks)
	errs <- errors.New("not implemented")
	close(errs)
	return chunks, errs
}

func (m *MockCompletionProvider) ModelName() string { return "mock" }

func reply(text string) *MockCompletionProvider {
	return &MockCompletionProvider{
		CompleteFunc: func(context.Context, llm.CompletionRequest) (*llm.CompletionResponse, error) {
			return &llm.CompletionResponse{Content: text}, nil
		},
	}
}

func history(n int) []llm.Message {
	out := make([]llm.Message, n)
	for i := range out {
		role := llm.RoleUser
		if i%2 == 1 {
			role = llm.RoleAssistant
		}
		out[i] = llm.Message{Role: role, Content: fmt.Sprintf("turn-%d", i)}
	}
	return out
}

func TestRewrite_EmptyHistorySkipsBackend(t *testing.T) {
	m := reply("should not be used")
	got := New(m, Config{}).Rewrite(context.Background(), "raw question", nil)

	if got != "raw question" {
		t.Errorf("expected raw query, got %q", got)
	}
	if m.Calls != 0 {
		t.Errorf("expected no backend calls, got %d", m.Calls)
	}
}

func TestRewrite_UsesBackend(t *testing.T) {
	var prompt string
	m := &MockCompletionProvider{
		CompleteFunc: func(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			prompt = req.Messages[0].Content
			return &llm.CompletionResponse{Content: "  PostgreSQL 17 release date \n"}, nil
		},
	}
	got := New(m, Config{}).Rewrite(context.Background(), "when was it released?", history(2))

	if got != "PostgreSQL 17 release date" {
		t.Errorf("expected trimmed rewrite, got %q", got)
	}
	if m.Calls != 1 {
		t.Errorf("expected one backend call, got %d", m.Calls)
	}
	if !strings.Contains(prompt, "when was it released?") || !strings.Contains(prompt, "turn-1") {
		t.Errorf("prompt missing query or history: %q", prompt)
	}
}

func TestRewrite_FallsBack(t *testing.T) {
	tests := []struct {
		name string
		m    *MockCompletionProvider
	}{
		{"error", &MockCompletionProvider{
			CompleteFunc: func(context.Context, llm.CompletionRequest) (*llm.CompletionResponse, error) {
				return nil, errors.New("503")
			},
		}},
		{"empty", reply("   ")},
		{"timeout", &MockCompletionProvider{
			CompleteFunc: func(ctx context.Context, _ llm.CompletionRequest) (*llm.CompletionResponse, error) {
				<-ctx.Done()
				return nil, ctx.Err()
			},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New(tt.m, Config{Timeout: 10 * time.Millisecond})
			if got := r.Rewrite(context.Background(), "q", history(1)); got != "q" {
				t.Errorf("expected raw query, got %q", got)
			}
		})
	}
}

func TestBuildPrompt_KeepsLastTurns(t *testing.T) {
	p := BuildPrompt("q", history(10), 6)

	if strings.Contains(p, "turn-3") {
		t.Error("expected turn-3 to be dropped")
	}
	for i := 4; i < 10; i++ {
		if !strings.Contains(p, fmt.Sprintf("turn-%d", i)) {
			t.Errorf("expected turn-%d in prompt", i)
		}
	}
}

//-------------------------------------------------------------------------
//
// pgEdge RAG Assistant
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package factory

import (
	"testing"
	"time"

	"github.com/pgEdge/pgedge-rag-assistant/internal/config"
	"github.com/pgEdge/pgedge-rag-assistant/internal/llm/mock"
)

func TestNewEmbeddingProvider(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.EmbeddingConfig
		keys    config.LoadedKeys
		wantErr bool
	}{
		{"openai", config.EmbeddingConfig{Provider: "openai"}, config.LoadedKeys{OpenAI: "k"}, false},
		{"openai no key", config.EmbeddingConfig{Provider: "openai"}, config.LoadedKeys{}, true},
		{"case insensitive", config.EmbeddingConfig{Provider: "OpenAI"}, config.LoadedKeys{OpenAI: "k"}, false},
		{"voyage", config.EmbeddingConfig{Provider: "voyage"}, config.LoadedKeys{Voyage: "k"}, false},
		{"voyage no key", config.EmbeddingConfig{Provider: "voyage"}, config.LoadedKeys{}, true},
		{"ollama", config.EmbeddingConfig{Provider: "ollama"}, config.LoadedKeys{}, false},
		{"hugot", config.EmbeddingConfig{Provider: "hugot", ModelDir: t.TempDir()}, config.LoadedKeys{}, false},
		{"mock", config.EmbeddingConfig{Provider: "mock"}, config.LoadedKeys{}, false},
		{"anthropic", config.EmbeddingConfig{Provider: "anthropic"}, config.LoadedKeys{Anthropic: "k"}, true},
		{"unknown", config.EmbeddingConfig{Provider: "unknown"}, config.LoadedKeys{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider, err := NewEmbeddingProvider(tt.cfg, &tt.keys, nil)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewEmbeddingProvider failed: %v", err)
			}
			if provider == nil {
				t.Fatal("expected non-nil provider")
			}
		})
	}
}

func TestNewEmbeddingProvider_MockDimensions(t *testing.T) {
	provider, err := NewEmbeddingProvider(config.EmbeddingConfig{Provider: "mock", Dimensions: 64}, &config.LoadedKeys{}, nil)
	if err != nil {
		t.Fatalf("NewEmbeddingProvider failed: %v", err)
	}
	if provider.Dimensions() != 64 {
		t.Errorf("expected 64 dimensions, got %d", provider.Dimensions())
	}
}

func TestNewCompletionProvider(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.LLMConfig
		keys    config.LoadedKeys
		wantErr bool
	}{
		{"openai", config.LLMConfig{Provider: "openai", Model: "gpt-4o-mini"}, config.LoadedKeys{OpenAI: "k"}, false},
		{"openai no key", config.LLMConfig{Provider: "openai"}, config.LoadedKeys{}, true},
		{"anthropic", config.LLMConfig{Provider: "anthropic"}, config.LoadedKeys{Anthropic: "k"}, false},
		{"anthropic no key", config.LLMConfig{Provider: "anthropic"}, config.LoadedKeys{}, true},
		{"ollama", config.LLMConfig{Provider: "ollama", Temperature: 0.3}, config.LoadedKeys{}, false},
		{"mock", config.LLMConfig{Provider: "mock"}, config.LoadedKeys{}, false},
		{"voyage", config.LLMConfig{Provider: "voyage"}, config.LoadedKeys{Voyage: "k"}, true},
		{"unknown", config.LLMConfig{Provider: "unknown"}, config.LoadedKeys{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider, err := NewCompletionProvider(tt.cfg, config.MockConfig{}, &tt.keys, time.Minute)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewCompletionProvider failed: %v", err)
			}
			if provider == nil {
				t.Fatal("expected non-nil provider")
			}
		})
	}
}

func TestNewCompletionProvider_Model(t *testing.T) {
	provider, err := NewCompletionProvider(config.LLMConfig{Provider: "openai", Model: "gpt-4o-mini"},
		config.MockConfig{}, &config.LoadedKeys{OpenAI: "k"}, 0)
	if err != nil {
		t.Fatalf("NewCompletionProvider failed: %v", err)
	}
	if provider.ModelName() != "gpt-4o-mini" {
		t.Errorf("expected configured model, got %s", provider.ModelName())
	}

	provider, err = NewCompletionProvider(config.LLMConfig{Provider: "mock"},
		config.MockConfig{Stride: 3}, &config.LoadedKeys{}, 0)
	if err != nil {
		t.Fatalf("NewCompletionProvider failed: %v", err)
	}
	if _, ok := provider.(*mock.CompletionProvider); !ok {
		t.Errorf("expected mock provider, got %T", provider)
	}
}

func TestNewRerankLoader(t *testing.T) {
	if NewRerankLoader(config.RerankConfig{Provider: "none"}, &config.LoadedKeys{}, 0) != nil {
		t.Error("expected nil loader when reranking is disabled")
	}

	load := NewRerankLoader(config.RerankConfig{Provider: "voyage"}, &config.LoadedKeys{}, 0)
	if load == nil {
		t.Fatal("expected loader")
	}
	if _, err := load(); err == nil {
		t.Error("expected error without a Voyage key")
	}

	load = NewRerankLoader(config.RerankConfig{Provider: "voyage", Model: "rerank-2-lite"}, &config.LoadedKeys{Voyage: "k"}, 0)
	scorer, err := load()
	if err != nil {
		t.Fatalf("loader failed: %v", err)
	}
	if scorer.Name() != "voyage/rerank-2-lite" {
		t.Errorf("unexpected scorer %q", scorer.Name())
	}
}

//-------------------------------------------------------------------------
//
// pgEdge RAG Assistant
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package factory builds LLM, embedding and rerank backends from
// configuration.
package factory

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/pgEdge/pgedge-rag-assistant/internal/config"
	"github.com/pgEdge/pgedge-rag-assistant/internal/llm"
	"github.com/pgEdge/pgedge-rag-assistant/internal/llm/anthropic"
	"github.com/pgEdge/pgedge-rag-assistant/internal/llm/hugot"
	"github.com/pgEdge/pgedge-rag-assistant/internal/llm/mock"
	"github.com/pgEdge/pgedge-rag-assistant/internal/llm/ollama"
	"github.com/pgEdge/pgedge-rag-assistant/internal/llm/openai"
	"github.com/pgEdge/pgedge-rag-assistant/internal/llm/voyage"
	"github.com/pgEdge/pgedge-rag-assistant/internal/rerank"
)

// NewEmbeddingProvider creates an embedding provider based on configuration.
func NewEmbeddingProvider(
	cfg config.EmbeddingConfig,
	apiKeys *config.LoadedKeys,
	logger *slog.Logger,
) (llm.EmbeddingProvider, error) {
	switch strings.ToLower(cfg.Provider) {
	case config.ProviderOpenAI:
		if apiKeys.OpenAI == "" {
			return nil, fmt.Errorf("OpenAI API key not configured")
		}
		client := openai.NewClient(apiKeys.OpenAI, openai.WithBaseURL(cfg.BaseURL))
		return openai.NewEmbeddingProvider(client,
			openai.WithEmbeddingModel(cfg.Model),
			openai.WithDimensions(cfg.Dimensions),
		), nil

	case config.ProviderVoyage:
		if apiKeys.Voyage == "" {
			return nil, fmt.Errorf("Voyage API key not configured")
		}
		client := voyage.NewClient(apiKeys.Voyage, voyage.WithBaseURL(cfg.BaseURL))
		return voyage.NewEmbeddingProvider(client,
			voyage.WithModel(cfg.Model),
			voyage.WithDimensions(cfg.Dimensions),
		), nil

	case config.ProviderOllama:
		client := ollama.NewClient(ollama.WithBaseURL(cfg.BaseURL))
		return ollama.NewEmbeddingProvider(client,
			ollama.WithEmbeddingModel(cfg.Model),
			ollama.WithDimensions(cfg.Dimensions),
		), nil

	case config.ProviderHugot:
		return hugot.NewEmbeddingProvider(hugot.Config{
			Model:      cfg.Model,
			ModelDir:   cfg.ModelDir,
			Dimensions: cfg.Dimensions,
			Logger:     logger,
		}), nil

	case config.ProviderMock:
		return mock.NewEmbeddingProvider(cfg.Dimensions), nil

	case config.ProviderAnthropic:
		return nil, fmt.Errorf("Anthropic does not provide an embedding API")

	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", cfg.Provider)
	}
}

// NewCompletionProvider creates a completion provider based on
// configuration. timeout bounds a whole streamed response.
func NewCompletionProvider(
	cfg config.LLMConfig,
	mockCfg config.MockConfig,
	apiKeys *config.LoadedKeys,
	timeout time.Duration,
) (llm.CompletionProvider, error) {
	switch strings.ToLower(cfg.Provider) {
	case config.ProviderOpenAI:
		if apiKeys.OpenAI == "" {
			return nil, fmt.Errorf("OpenAI API key not configured")
		}
		client := openai.NewClient(apiKeys.OpenAI,
			openai.WithBaseURL(cfg.BaseURL),
			openai.WithTimeout(timeout),
		)
		opts := []openai.CompletionOption{
			openai.WithCompletionModel(cfg.Model),
			openai.WithMaxTokens(cfg.MaxTokens),
		}
		if cfg.Temperature > 0 {
			opts = append(opts, openai.WithTemperature(cfg.Temperature))
		}
		return openai.NewCompletionProvider(client, opts...), nil

	case config.ProviderAnthropic:
		if apiKeys.Anthropic == "" {
			return nil, fmt.Errorf("Anthropic API key not configured")
		}
		client := anthropic.NewClient(apiKeys.Anthropic,
			anthropic.WithBaseURL(cfg.BaseURL),
			anthropic.WithTimeout(timeout),
		)
		opts := []anthropic.CompletionOption{
			anthropic.WithCompletionModel(cfg.Model),
			anthropic.WithMaxTokens(cfg.MaxTokens),
		}
		if cfg.Temperature > 0 {
			opts = append(opts, anthropic.WithTemperature(cfg.Temperature))
		}
		return anthropic.NewCompletionProvider(client, opts...), nil

	case config.ProviderOllama:
		client := ollama.NewClient(
			ollama.WithBaseURL(cfg.BaseURL),
			ollama.WithTimeout(timeout),
		)
		opts := []ollama.CompletionOption{ollama.WithCompletionModel(cfg.Model)}
		if cfg.Temperature > 0 {
			opts = append(opts, ollama.WithTemperature(cfg.Temperature))
		}
		return ollama.NewCompletionProvider(client, opts...), nil

	case config.ProviderMock:
		return mock.NewCompletionProvider(mockCfg.Stride, mockCfg.Delay), nil

	case config.ProviderVoyage:
		return nil, fmt.Errorf("Voyage does not provide a completion API")

	default:
		return nil, fmt.Errorf("unknown completion provider: %s", cfg.Provider)
	}
}

// NewRerankLoader returns a loader for the configured rerank model, or
// nil when reranking is disabled. Constructing the backend is deferred
// to the first rerank call.
func NewRerankLoader(cfg config.RerankConfig, apiKeys *config.LoadedKeys, timeout time.Duration) rerank.Loader {
	switch strings.ToLower(cfg.Provider) {
	case config.ProviderVoyage:
		return func() (rerank.Scorer, error) {
			if apiKeys.Voyage == "" {
				return nil, fmt.Errorf("Voyage API key not configured")
			}
			client := voyage.NewClient(apiKeys.Voyage,
				voyage.WithBaseURL(cfg.BaseURL),
				voyage.WithTimeout(timeout),
			)
			return voyage.NewReranker(client, cfg.Model), nil
		}
	default:
		return nil
	}
}

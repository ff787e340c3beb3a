//-------------------------------------------------------------------------
//
// pgEdge RAG Assistant
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/pgEdge/pgedge-rag-assistant/internal/config"
	"github.com/pgEdge/pgedge-rag-assistant/internal/corpus"
	"github.com/pgEdge/pgedge-rag-assistant/internal/llm"
	"github.com/pgEdge/pgedge-rag-assistant/internal/llm/factory"
	"github.com/pgEdge/pgedge-rag-assistant/internal/metrics"
	"github.com/pgEdge/pgedge-rag-assistant/internal/rerank"
	"github.com/pgEdge/pgedge-rag-assistant/internal/retrieval"
	"github.com/pgEdge/pgedge-rag-assistant/internal/rewrite"
	"github.com/pgEdge/pgedge-rag-assistant/internal/websearch"
)

// Manager owns the process-wide pipeline components built from
// configuration: the corpus store, the backends and the Generator.
type Manager struct {
	config    *config.Config
	mockMode  bool
	store     corpus.Store
	embedder  llm.EmbeddingProvider
	llm       llm.CompletionProvider
	reranker  *rerank.Service
	web       *websearch.Fallback
	generator *Generator
	logger    *slog.Logger
}

// ManagerConfig contains configuration for creating a Manager.
type ManagerConfig struct {
	Config  *config.Config
	Metrics *metrics.Collector
	Logger  *slog.Logger

	// Keys overrides API key loading; used by tests.
	Keys *config.LoadedKeys
}

// Info summarizes the running configuration for the health endpoint.
type Info struct {
	MockMode       bool   `json:"mock_mode"`
	LLMModel       string `json:"llm_model"`
	EmbeddingModel string `json:"embedding_model"`
	CorpusBackend  string `json:"corpus_backend"`
	Rerank         string `json:"rerank"`
	WebSearch      string `json:"web_search"`
}

// NewManager builds every pipeline component. When mock mode is enabled,
// or the OpenAI generation backend is selected without a key, the
// manager runs offline with the mock backends and an in-memory corpus.
func NewManager(ctx context.Context, cfg ManagerConfig) (*Manager, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	c := cfg.Config

	keys := cfg.Keys
	if keys == nil {
		var err error
		keys, err = config.NewAPIKeyLoader(c.APIKeys).LoadRequiredKeys(c)
		if err != nil {
			logger.Warn("some API keys could not be loaded", "error", err)
		}
	}

	m := &Manager{config: c, logger: logger, mockMode: c.MockMode}
	if !m.mockMode && c.LLM.Provider == config.ProviderOpenAI && keys.OpenAI == "" {
		logger.Warn("OpenAI API key not found, starting in mock mode")
		m.mockMode = true
	}

	if err := m.buildBackends(keys); err != nil {
		return nil, err
	}
	if err := m.buildStore(ctx); err != nil {
		m.Close()
		return nil, err
	}

	r := c.Retrieval
	var rewriter QueryRewriter
	var reranker Reranker
	var web WebSearcher
	var count TokenCounter
	if !m.mockMode {
		rewriter = rewrite.New(m.llm, rewrite.Config{
			MaxTurns: r.HistoryTurns,
			Timeout:  c.Timeouts.Rewrite,
			Logger:   logger,
		})

		m.reranker = rerank.NewService(rerank.Config{
			Loader:   factory.NewRerankLoader(c.Rerank, keys, c.Timeouts.Rerank),
			MaxChars: c.Rerank.MaxChars,
			Timeout:  c.Timeouts.Rerank,
			Logger:   logger,
		})
		reranker = m.reranker

		if c.WebSearch.Provider == config.ProviderDuckDuckGo {
			m.web = websearch.NewFallback(websearch.FallbackConfig{
				Provider:      websearch.NewDuckDuckGo(websearch.WithBaseURL(c.WebSearch.BaseURL)),
				Timeout:       c.Timeouts.WebSearch,
				CacheTTL:      c.WebSearch.CacheTTL,
				RatePerSecond: c.WebSearch.RatePerSecond,
				Burst:         c.WebSearch.Burst,
				Logger:        logger,
			})
			web = m.web
		}

		if c.LLM.Provider == config.ProviderOpenAI {
			count = NewTiktokenCounter(m.llm.ModelName(), logger)
		}
	}

	var refusal RefusalDetector
	if len(r.RefusalPhrases) > 0 {
		refusal = NewKeywordDetector(r.RefusalPhrases...)
	}

	gen, err := NewGenerator(Config{
		LLM:               m.llm,
		Rewriter:          rewriter,
		Retriever:         retrieval.NewHybridRetriever(m.store, retrieval.Config{VectorWeight: r.VectorWeight, Logger: logger}),
		Reranker:          reranker,
		Web:               web,
		Refusal:           refusal,
		TokenCounter:      count,
		Metrics:           cfg.Metrics,
		FetchK:            r.FetchK,
		TopK:              r.TopK,
		HistoryTurns:      r.GenerationHistoryTurns,
		WebMaxResults:     c.WebSearch.MaxResults,
		TokenBudget:       r.TokenBudget,
		RetrievalTimeout:  c.Timeouts.Retrieval,
		GenerationTimeout: c.Timeouts.Generation,
		MockMode:          m.mockMode,
		Logger:            logger,
	})
	if err != nil {
		m.Close()
		return nil, fmt.Errorf("failed to create generator: %w", err)
	}
	m.generator = gen

	logger.Info("pipeline created",
		"mock_mode", m.mockMode,
		"llm", m.llm.ModelName(),
		"embedding", m.embedder.ModelName(),
		"corpus", m.corpusBackend(),
		"rerank", c.Rerank.Provider,
		"web_search", c.WebSearch.Provider,
	)
	return m, nil
}

func (m *Manager) buildBackends(keys *config.LoadedKeys) error {
	c := m.config
	llmCfg, embCfg := c.LLM, c.Embedding
	if m.mockMode {
		llmCfg = config.LLMConfig{Provider: config.ProviderMock}
		embCfg = config.EmbeddingConfig{Provider: config.ProviderMock, Dimensions: c.Embedding.Dimensions}
	}

	var err error
	m.embedder, err = factory.NewEmbeddingProvider(embCfg, keys, m.logger)
	if err != nil {
		return fmt.Errorf("failed to create embedding provider: %w", err)
	}
	m.llm, err = factory.NewCompletionProvider(llmCfg, c.Mock, keys, c.Timeouts.Generation)
	if err != nil {
		return fmt.Errorf("failed to create completion provider: %w", err)
	}
	return nil
}

func (m *Manager) corpusBackend() string {
	if m.mockMode {
		return config.BackendMemory
	}
	return m.config.Corpus.Backend
}

func (m *Manager) buildStore(ctx context.Context) error {
	switch m.corpusBackend() {
	case config.BackendPostgres:
		store, err := corpus.NewPGStore(ctx, corpus.PGStoreConfig{
			Database:   m.config.Corpus.Database,
			Table:      m.config.Corpus.Table,
			Dimensions: m.embedder.Dimensions(),
			Embedder:   m.embedder,
			Logger:     m.logger,
		})
		if err != nil {
			return fmt.Errorf("failed to open corpus store: %w", err)
		}
		m.store = store
	default:
		m.store = corpus.NewMemoryStore(m.embedder, m.logger)
	}
	return nil
}

// Generator returns the shared answer generator.
func (m *Manager) Generator() *Generator { return m.generator }

// Run answers req with the shared generator.
func (m *Manager) Run(ctx context.Context, req Request) <-chan Event {
	return m.generator.Run(ctx, req)
}

// Store returns the corpus store.
func (m *Manager) Store() corpus.Store { return m.store }

// MockMode reports whether the manager runs with the offline backends.
func (m *Manager) MockMode() bool { return m.mockMode }

// Info describes the active configuration.
func (m *Manager) Info() Info {
	info := Info{
		MockMode:       m.mockMode,
		LLMModel:       m.llm.ModelName(),
		EmbeddingModel: m.embedder.ModelName(),
		CorpusBackend:  m.corpusBackend(),
		Rerank:         config.ProviderNone,
		WebSearch:      config.ProviderNone,
	}
	if m.reranker != nil {
		info.Rerank = m.config.Rerank.Provider
	}
	if m.web != nil {
		info.WebSearch = m.config.WebSearch.Provider
	}
	return info
}

// Close shuts down the manager and releases resources.
func (m *Manager) Close() {
	if pg, ok := m.store.(*corpus.PGStore); ok {
		pg.Close()
	}
	if c, ok := m.embedder.(io.Closer); ok {
		if err := c.Close(); err != nil {
			m.logger.Warn("failed to close embedding provider", "error", err)
		}
	}
}

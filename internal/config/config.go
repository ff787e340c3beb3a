//-------------------------------------------------------------------------
//
// pgEdge RAG Assistant
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package config handles configuration loading and validation for the
// pgEdge RAG Assistant.
package config

import "time"

// Provider names accepted in the llm, embedding, rerank and web_search
// sections.
const (
	ProviderOpenAI     = "openai"
	ProviderAnthropic  = "anthropic"
	ProviderOllama     = "ollama"
	ProviderVoyage     = "voyage"
	ProviderHugot      = "hugot"
	ProviderMock       = "mock"
	ProviderNone       = "none"
	ProviderDuckDuckGo = "duckduckgo"
)

// Corpus and conversation store backends.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

// Config is the root configuration structure for the server.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	APIKeys       APIKeysConfig       `yaml:"api_keys"`
	MockMode      bool                `yaml:"mock_mode"`
	Mock          MockConfig          `yaml:"mock"`
	LLM           LLMConfig           `yaml:"llm"`
	Embedding     EmbeddingConfig     `yaml:"embedding"`
	Corpus        CorpusConfig        `yaml:"corpus"`
	Retrieval     RetrievalConfig     `yaml:"retrieval"`
	Rerank        RerankConfig        `yaml:"rerank"`
	WebSearch     WebSearchConfig     `yaml:"web_search"`
	Conversations ConversationsConfig `yaml:"conversations"`
	Timeouts      TimeoutsConfig      `yaml:"timeouts"`
	Logging       LoggingConfig       `yaml:"logging"`
	Metrics       MetricsConfig       `yaml:"metrics"`
	Tracing       TracingConfig       `yaml:"tracing"`
}

// APIKeysConfig contains paths to files containing API keys. When a path
// is empty the key comes from the environment or ~/.<provider>-api-key.
type APIKeysConfig struct {
	OpenAI    string `yaml:"openai"`
	Anthropic string `yaml:"anthropic"`
	Voyage    string `yaml:"voyage"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	ListenAddress string     `yaml:"listen_address"`
	Port          int        `yaml:"port"`
	TLS           TLSConfig  `yaml:"tls"`
	CORS          CORSConfig `yaml:"cors"`
}

// CORSConfig contains CORS (Cross-Origin Resource Sharing) settings.
type CORSConfig struct {
	Enabled        bool     `yaml:"enabled"`
	AllowedOrigins []string `yaml:"allowed_origins"` // Origins to allow, or ["*"] for all
}

// TLSConfig contains TLS/HTTPS settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// MockConfig tunes the offline backend.
type MockConfig struct {
	Stride int           `yaml:"stride"`
	Delay  time.Duration `yaml:"delay"`
}

// LLMConfig selects the generation backend.
type LLMConfig struct {
	Provider    string  `yaml:"provider"`
	Model       string  `yaml:"model"`
	BaseURL     string  `yaml:"base_url"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

// EmbeddingConfig selects the embedding backend.
type EmbeddingConfig struct {
	Provider   string `yaml:"provider"`
	Model      string `yaml:"model"`
	BaseURL    string `yaml:"base_url"`
	Dimensions int    `yaml:"dimensions"`
	ModelDir   string `yaml:"model_dir"` // hugot only
}

// CorpusConfig selects where embedded chunks are stored.
type CorpusConfig struct {
	Backend   string         `yaml:"backend"`
	Table     string         `yaml:"table"`
	BatchSize int            `yaml:"batch_size"`
	Database  DatabaseConfig `yaml:"database"`
}

// DatabaseConfig contains PostgreSQL connection settings. URL, when set,
// takes precedence over the individual fields.
type DatabaseConfig struct {
	URL      string `yaml:"url"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`

	// Certificate-based authentication
	SSLCert   string `yaml:"ssl_cert"`
	SSLKey    string `yaml:"ssl_key"`
	SSLRootCA string `yaml:"ssl_root_ca"`
}

// RetrievalConfig controls the retrieval and generation pipeline.
type RetrievalConfig struct {
	FetchK                 int      `yaml:"fetch_k"`
	TopK                   int      `yaml:"top_k"`
	HistoryTurns           int      `yaml:"history_turns"`
	GenerationHistoryTurns int      `yaml:"generation_history_turns"`
	VectorWeight           float64  `yaml:"vector_weight"`
	TokenBudget            int      `yaml:"token_budget"`
	ChunkSize              int      `yaml:"chunk_size"`
	ChunkOverlap           int      `yaml:"chunk_overlap"`
	RefusalPhrases         []string `yaml:"refusal_phrases"`
}

// RerankConfig selects the pairwise relevance model.
type RerankConfig struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"base_url"`
	MaxChars int    `yaml:"max_chars"`
}

// WebSearchConfig controls the web search fallback.
type WebSearchConfig struct {
	Provider      string        `yaml:"provider"`
	BaseURL       string        `yaml:"base_url"`
	MaxResults    int           `yaml:"max_results"`
	RatePerSecond float64       `yaml:"rate_per_second"`
	Burst         int           `yaml:"burst"`
	CacheTTL      time.Duration `yaml:"cache_ttl"`
}

// ConversationsConfig selects the chat history store.
type ConversationsConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// TimeoutsConfig bounds every external call.
type TimeoutsConfig struct {
	Rewrite    time.Duration `yaml:"rewrite"`
	Retrieval  time.Duration `yaml:"retrieval"`
	Rerank     time.Duration `yaml:"rerank"`
	WebSearch  time.Duration `yaml:"web_search"`
	Generation time.Duration `yaml:"generation"`
}

// LoggingConfig controls the slog handler.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"` // text or json
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// TracingConfig controls OpenTelemetry export.
type TracingConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Endpoint    string  `yaml:"endpoint"`
	Insecure    bool    `yaml:"insecure"`
	ServiceName string  `yaml:"service_name"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddress: "0.0.0.0",
			Port:          8080,
		},
		Mock: MockConfig{Stride: 2, Delay: 50 * time.Millisecond},
		LLM: LLMConfig{
			Provider: ProviderOpenAI,
			Model:    "gpt-3.5-turbo",
		},
		Embedding: EmbeddingConfig{
			Provider: ProviderOpenAI,
			Model:    "text-embedding-3-small",
		},
		Corpus: CorpusConfig{
			Backend:   BackendMemory,
			Table:     "rag_chunks",
			BatchSize: 64,
		},
		Retrieval: RetrievalConfig{
			FetchK:                 15,
			TopK:                   4,
			HistoryTurns:           6,
			GenerationHistoryTurns: 2,
			VectorWeight:           0.5,
			TokenBudget:            3000,
			ChunkSize:              1000,
			ChunkOverlap:           200,
		},
		Rerank: RerankConfig{
			Provider: ProviderNone,
			MaxChars: 2000,
		},
		WebSearch: WebSearchConfig{
			Provider:      ProviderDuckDuckGo,
			MaxResults:    5,
			RatePerSecond: 1,
			Burst:         2,
			CacheTTL:      10 * time.Minute,
		},
		Conversations: ConversationsConfig{
			Driver: BackendSQLite,
			DSN:    "rag-assistant.db",
		},
		Timeouts: TimeoutsConfig{
			Rewrite:    15 * time.Second,
			Retrieval:  30 * time.Second,
			Rerank:     30 * time.Second,
			WebSearch:  15 * time.Second,
			Generation: 120 * time.Second,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			MaxSizeMB:  10,
			MaxBackups: 5,
			MaxAgeDays: 30,
			Compress:   true,
		},
		Metrics: MetricsConfig{Enabled: true, Path: "/metrics"},
		Tracing: TracingConfig{
			ServiceName: "pgedge-rag-assistant",
			SampleRatio: 1,
		},
	}
}

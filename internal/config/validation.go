//-------------------------------------------------------------------------
//
// pgEdge RAG Assistant
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// expandPath expands ~ to the user's home directory.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(homeDir, path[2:])
	}
	return path
}

// ValidationError represents a single configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}

	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate checks the configuration for errors and returns all validation
// errors found.
func (c *Config) Validate() error {
	var errs ValidationErrors

	errs = append(errs, c.validateServer()...)
	errs = append(errs, c.validateProviders()...)
	errs = append(errs, c.validateCorpus()...)
	errs = append(errs, c.validateRetrieval()...)
	errs = append(errs, c.validateLogging()...)

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func (c *Config) validateServer() ValidationErrors {
	var errs ValidationErrors

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, ValidationError{
			Field:   "server.port",
			Message: "must be between 1 and 65535",
		})
	}

	if c.Server.TLS.Enabled {
		files := []struct{ field, path string }{
			{"server.tls.cert_file", c.Server.TLS.CertFile},
			{"server.tls.key_file", c.Server.TLS.KeyFile},
		}
		for _, f := range files {
			if f.path == "" {
				errs = append(errs, ValidationError{Field: f.field, Message: "required when TLS is enabled"})
			} else if _, err := os.Stat(expandPath(f.path)); err != nil {
				errs = append(errs, ValidationError{Field: f.field, Message: fmt.Sprintf("file not found: %s", f.path)})
			}
		}
	}

	return errs
}

// oneOf reports an error when value is not in valid.
func oneOf(field, value string, valid ...string) ValidationErrors {
	if slices.Contains(valid, value) {
		return nil
	}
	if value == "" {
		return ValidationErrors{{Field: field, Message: "required"}}
	}
	return ValidationErrors{{
		Field:   field,
		Message: fmt.Sprintf("must be one of: %s", strings.Join(valid, ", ")),
	}}
}

func (c *Config) validateProviders() ValidationErrors {
	var errs ValidationErrors

	errs = append(errs, oneOf("llm.provider", c.LLM.Provider,
		ProviderOpenAI, ProviderAnthropic, ProviderOllama, ProviderMock)...)
	errs = append(errs, oneOf("embedding.provider", c.Embedding.Provider,
		ProviderOpenAI, ProviderOllama, ProviderVoyage, ProviderHugot, ProviderMock)...)
	errs = append(errs, oneOf("rerank.provider", c.Rerank.Provider,
		ProviderNone, ProviderVoyage)...)
	errs = append(errs, oneOf("web_search.provider", c.WebSearch.Provider,
		ProviderNone, ProviderDuckDuckGo)...)

	if c.Embedding.Dimensions < 0 {
		errs = append(errs, ValidationError{Field: "embedding.dimensions", Message: "must be non-negative"})
	}
	if c.WebSearch.MaxResults < 1 {
		errs = append(errs, ValidationError{Field: "web_search.max_results", Message: "must be at least 1"})
	}
	if c.WebSearch.RatePerSecond <= 0 {
		errs = append(errs, ValidationError{Field: "web_search.rate_per_second", Message: "must be positive"})
	}

	return errs
}

func (c *Config) validateCorpus() ValidationErrors {
	var errs ValidationErrors

	errs = append(errs, oneOf("corpus.backend", c.Corpus.Backend, BackendMemory, BackendPostgres)...)
	if c.Corpus.BatchSize < 1 {
		errs = append(errs, ValidationError{Field: "corpus.batch_size", Message: "must be at least 1"})
	}
	if c.Corpus.Backend == BackendPostgres {
		if c.Corpus.Table == "" {
			errs = append(errs, ValidationError{Field: "corpus.table", Message: "required"})
		}
		if c.Corpus.Database.URL == "" {
			errs = append(errs, validateDatabase("corpus.database", c.Corpus.Database)...)
		}
	}

	errs = append(errs, oneOf("conversations.driver", c.Conversations.Driver, BackendSQLite, BackendPostgres)...)
	if c.Conversations.DSN == "" {
		errs = append(errs, ValidationError{Field: "conversations.dsn", Message: "required"})
	}

	return errs
}

func validateDatabase(prefix string, db DatabaseConfig) ValidationErrors {
	var errs ValidationErrors

	if db.Host == "" {
		errs = append(errs, ValidationError{Field: prefix + ".host", Message: "required"})
	}
	if db.Database == "" {
		errs = append(errs, ValidationError{Field: prefix + ".database", Message: "required"})
	}
	if db.Port < 1 || db.Port > 65535 {
		errs = append(errs, ValidationError{Field: prefix + ".port", Message: "must be between 1 and 65535"})
	}
	errs = append(errs, oneOf(prefix+".ssl_mode", db.SSLMode,
		"disable", "allow", "prefer", "require", "verify-ca", "verify-full")...)

	return errs
}

func (c *Config) validateRetrieval() ValidationErrors {
	var errs ValidationErrors
	r := c.Retrieval

	if r.FetchK < 1 {
		errs = append(errs, ValidationError{Field: "retrieval.fetch_k", Message: "must be at least 1"})
	}
	if r.TopK < 1 {
		errs = append(errs, ValidationError{Field: "retrieval.top_k", Message: "must be at least 1"})
	} else if r.TopK > r.FetchK {
		errs = append(errs, ValidationError{Field: "retrieval.top_k", Message: "must not exceed fetch_k"})
	}
	if r.HistoryTurns < 0 {
		errs = append(errs, ValidationError{Field: "retrieval.history_turns", Message: "must be non-negative"})
	}
	if r.GenerationHistoryTurns < 0 {
		errs = append(errs, ValidationError{Field: "retrieval.generation_history_turns", Message: "must be non-negative"})
	}
	if r.VectorWeight < 0 || r.VectorWeight > 1 {
		errs = append(errs, ValidationError{Field: "retrieval.vector_weight", Message: "must be between 0 and 1"})
	}
	if r.TokenBudget < 0 {
		errs = append(errs, ValidationError{Field: "retrieval.token_budget", Message: "must be non-negative"})
	}
	if r.ChunkSize < 1 {
		errs = append(errs, ValidationError{Field: "retrieval.chunk_size", Message: "must be at least 1"})
	} else if r.ChunkOverlap < 0 || r.ChunkOverlap >= r.ChunkSize {
		errs = append(errs, ValidationError{Field: "retrieval.chunk_overlap", Message: "must be non-negative and less than chunk_size"})
	}

	return errs
}

func (c *Config) validateLogging() ValidationErrors {
	var errs ValidationErrors

	errs = append(errs, oneOf("logging.level", strings.ToLower(c.Logging.Level), "debug", "info", "warn", "error")...)
	errs = append(errs, oneOf("logging.format", strings.ToLower(c.Logging.Format), "text", "json")...)
	if c.Tracing.Enabled && c.Tracing.Endpoint == "" {
		errs = append(errs, ValidationError{Field: "tracing.endpoint", Message: "required when tracing is enabled"})
	}

	return errs
}

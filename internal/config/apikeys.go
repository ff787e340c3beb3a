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
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Environment variable names for API keys.
const (
	EnvOpenAIAPIKey    = "OPENAI_API_KEY"
	EnvAnthropicAPIKey = "ANTHROPIC_API_KEY"
	EnvVoyageAPIKey    = "VOYAGE_API_KEY"
)

// Default API key file paths (relative to home directory).
const (
	DefaultOpenAIKeyFile    = ".openai-api-key"
	DefaultAnthropicKeyFile = ".anthropic-api-key"
	DefaultVoyageKeyFile    = ".voyage-api-key"
)

// LoadedKeys holds all loaded API keys.
type LoadedKeys struct {
	OpenAI    string
	Anthropic string
	Voyage    string
}

// keySource describes where a provider's key may come from.
type keySource struct {
	provider   string // display name used in errors
	configured string // explicit file from api_keys, may be empty
	env        string
	homeFile   string
}

// APIKeyLoader resolves API keys. For each provider the configured file
// wins, then the environment variable, then ~/.<provider>-api-key.
type APIKeyLoader struct {
	config APIKeysConfig
	getenv func(string) string
}

// NewAPIKeyLoader creates a new API key loader with the given configuration.
func NewAPIKeyLoader(cfg APIKeysConfig) *APIKeyLoader {
	return &APIKeyLoader{config: cfg, getenv: os.Getenv}
}

// LoadOpenAIKey loads the OpenAI API key.
func (l *APIKeyLoader) LoadOpenAIKey() (string, error) {
	return l.load(keySource{"OpenAI", l.config.OpenAI, EnvOpenAIAPIKey, DefaultOpenAIKeyFile})
}

// LoadAnthropicKey loads the Anthropic API key.
func (l *APIKeyLoader) LoadAnthropicKey() (string, error) {
	return l.load(keySource{"Anthropic", l.config.Anthropic, EnvAnthropicAPIKey, DefaultAnthropicKeyFile})
}

// LoadVoyageKey loads the Voyage API key.
func (l *APIKeyLoader) LoadVoyageKey() (string, error) {
	return l.load(keySource{"Voyage", l.config.Voyage, EnvVoyageAPIKey, DefaultVoyageKeyFile})
}

func (l *APIKeyLoader) load(src keySource) (string, error) {
	if src.configured != "" {
		return readKeyFile(expandPath(src.configured), src.provider)
	}

	if key := strings.TrimSpace(l.getenv(src.env)); key != "" {
		return key, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("%s API key not set in %s and home directory unknown: %w",
			src.provider, src.env, err)
	}
	path := filepath.Join(home, src.homeFile)
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("%s API key not found: set %s or create %s",
			src.provider, src.env, path)
	}
	return readKeyFile(path, src.provider)
}

// readKeyFile returns the trimmed contents of a key file.
func readKeyFile(path, provider string) (string, error) {
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return "", fmt.Errorf("%s API key file not found: %s", provider, path)
	case err != nil:
		return "", fmt.Errorf("failed to read %s API key: %w", provider, err)
	}

	key := strings.TrimSpace(string(data))
	if key == "" {
		return "", fmt.Errorf("%s API key file is empty: %s", provider, path)
	}
	return key, nil
}

// LoadRequiredKeys loads the keys the configured llm, embedding and
// rerank providers need. Keys that were found are returned even when
// others are missing; the error joins every missing key so the caller
// can fall back to mock mode or run without reranking.
func (l *APIKeyLoader) LoadRequiredKeys(cfg *Config) (*LoadedKeys, error) {
	keys := &LoadedKeys{}
	var errs []error

	need := func(dst *string, load func() (string, error)) {
		key, err := load()
		if err != nil {
			errs = append(errs, err)
		}
		*dst = key
	}

	if cfg.LLM.Provider == ProviderOpenAI || cfg.Embedding.Provider == ProviderOpenAI {
		need(&keys.OpenAI, l.LoadOpenAIKey)
	}
	if cfg.LLM.Provider == ProviderAnthropic {
		need(&keys.Anthropic, l.LoadAnthropicKey)
	}
	if cfg.Embedding.Provider == ProviderVoyage || cfg.Rerank.Provider == ProviderVoyage {
		need(&keys.Voyage, l.LoadVoyageKey)
	}

	return keys, errors.Join(errs...)
}

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
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// ConfigFileName is the default configuration file name.
	ConfigFileName = "pgedge-rag-assistant.yaml"

	// SystemConfigPath is the system-wide configuration path.
	SystemConfigPath = "/etc/pgedge/" + ConfigFileName

	// DotEnvFile is read from the working directory before the
	// environment overrides are applied.
	DotEnvFile = ".env"
)

// Environment variables that override the configuration file.
const (
	EnvMockMode       = "USE_MOCK_RAG"
	EnvOpenAIBase     = "OPENAI_API_BASE"
	EnvLLMModel       = "LLM_MODEL_NAME"
	EnvEmbeddingModel = "EMBEDDING_MODEL_NAME"
	EnvFetchK         = "RAG_FETCH_K"
	EnvTopK           = "RAG_TOP_K"
	EnvHistoryTurns   = "RAG_HISTORY_TURNS"
	EnvDatabaseURL    = "DATABASE_URL"
)

// Load loads the configuration from the specified path, or searches
// default locations if path is empty. When no file is found the
// defaults are used, so a bare .env file is enough to run the server.
//
// Search order:
//  1. Explicit path (if provided, it must exist)
//  2. /etc/pgedge/pgedge-rag-assistant.yaml
//  3. pgedge-rag-assistant.yaml in the binary's directory
//
// After the file, variables from .env and then the process environment
// are applied.
func Load(path string) (*Config, error) {
	configPath, err := findConfigFile(path)
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	if configPath != "" {
		if err := loadFromFile(cfg, configPath); err != nil {
			return nil, err
		}
	}

	if err := LoadDotEnv(DotEnvFile); err != nil {
		return nil, err
	}
	if err := applyEnv(cfg, os.Getenv); err != nil {
		return nil, err
	}

	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// LoadDotEnv loads variables from a dotenv file without overriding
// variables already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	return nil
}

// findConfigFile returns the config file to read, or "" when none of the
// default locations exists.
func findConfigFile(explicitPath string) (string, error) {
	if explicitPath != "" {
		if _, err := os.Stat(explicitPath); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicitPath)
		}
		return explicitPath, nil
	}

	for _, p := range []string{SystemConfigPath, getBinaryDirConfigPath()} {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", nil
}

// getBinaryDirConfigPath returns the path to config file in the binary's
// directory.
func getBinaryDirConfigPath() string {
	executable, err := os.Executable()
	if err != nil {
		return ""
	}
	executable, err = filepath.EvalSymlinks(executable)
	if err != nil {
		return ""
	}
	return filepath.Join(filepath.Dir(executable), ConfigFileName)
}

// loadFromFile parses a YAML file over cfg.
func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

// applyEnv applies environment overrides using getenv.
func applyEnv(cfg *Config, getenv func(string) string) error {
	if v := getenv(EnvMockMode); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvMockMode, err)
		}
		cfg.MockMode = b
	}

	if v := getenv(EnvOpenAIBase); v != "" {
		if strings.EqualFold(cfg.LLM.Provider, ProviderOpenAI) && cfg.LLM.BaseURL == "" {
			cfg.LLM.BaseURL = v
		}
		if strings.EqualFold(cfg.Embedding.Provider, ProviderOpenAI) && cfg.Embedding.BaseURL == "" {
			cfg.Embedding.BaseURL = v
		}
	}
	if v := getenv(EnvLLMModel); v != "" {
		cfg.LLM.Model = v
	}
	if v := getenv(EnvEmbeddingModel); v != "" {
		cfg.Embedding.Model = v
	}
	if v := getenv(EnvDatabaseURL); v != "" {
		cfg.Corpus.Database.URL = v
	}

	ints := []struct {
		name string
		dst  *int
	}{
		{EnvFetchK, &cfg.Retrieval.FetchK},
		{EnvTopK, &cfg.Retrieval.TopK},
		{EnvHistoryTurns, &cfg.Retrieval.HistoryTurns},
	}
	for _, e := range ints {
		v := getenv(e.name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", e.name, err)
		}
		*e.dst = n
	}
	return nil
}

// applyDefaults normalizes provider names and fills values that depend
// on other settings.
func applyDefaults(cfg *Config) {
	cfg.LLM.Provider = strings.ToLower(cfg.LLM.Provider)
	cfg.Embedding.Provider = strings.ToLower(cfg.Embedding.Provider)
	cfg.Rerank.Provider = strings.ToLower(cfg.Rerank.Provider)
	cfg.WebSearch.Provider = strings.ToLower(cfg.WebSearch.Provider)
	cfg.Corpus.Backend = strings.ToLower(cfg.Corpus.Backend)
	cfg.Conversations.Driver = strings.ToLower(cfg.Conversations.Driver)

	if cfg.Rerank.Provider == "" {
		cfg.Rerank.Provider = ProviderNone
	}
	if cfg.Rerank.MaxChars == 0 {
		cfg.Rerank.MaxChars = 2000
	}
	if cfg.Corpus.Database.Port == 0 {
		cfg.Corpus.Database.Port = 5432
	}
	if cfg.Corpus.Database.SSLMode == "" {
		cfg.Corpus.Database.SSLMode = "prefer"
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
	if cfg.Mock.Stride <= 0 {
		cfg.Mock.Stride = 2
	}
}

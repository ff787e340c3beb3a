//-------------------------------------------------------------------------
//
// pgEdge RAG Assistant
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package hugot embeds text in-process with a sentence-transformers
// ONNX model, so a deployment can run retrieval without an embedding
// API.
package hugot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/knights-analytics/hugot"

	"github.com/pgEdge/pgedge-rag-assistant/internal/llm"
)

const (
	// DefaultModel produces 384-dimensional embeddings.
	DefaultModel      = "sentence-transformers/all-MiniLM-L6-v2"
	defaultDimensions = 384
	defaultModelDir   = "./models"
)

// Config configures the embedder.
type Config struct {
	Model      string
	ModelDir   string
	Dimensions int
	Logger     *slog.Logger
}

// EmbeddingProvider implements llm.EmbeddingProvider. The model is
// downloaded and loaded on first use.
type EmbeddingProvider struct {
	cfg    Config
	logger *slog.Logger

	once    sync.Once
	initErr error

	mu      sync.Mutex
	session *hugot.Session
	run     func([]string) ([][]float32, error)
}

// NewEmbeddingProvider creates an embedder; nothing is loaded yet.
func NewEmbeddingProvider(cfg Config) *EmbeddingProvider {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.ModelDir == "" {
		cfg.ModelDir = defaultModelDir
	}
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = defaultDimensions
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &EmbeddingProvider{cfg: cfg, logger: logger.With("component", "hugot")}
}

// modelPath returns the local model directory, downloading it when it
// does not exist.
func (p *EmbeddingProvider) modelPath() (string, error) {
	path := filepath.Join(p.cfg.ModelDir, strings.ReplaceAll(p.cfg.Model, "/", "_"))
	if _, err := os.Stat(path); err == nil {
		return path, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", err
	}

	if err := os.MkdirAll(p.cfg.ModelDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create model directory: %w", err)
	}
	p.logger.Info("downloading embedding model", "model", p.cfg.Model, "dir", p.cfg.ModelDir)

	opts := hugot.NewDownloadOptions()
	opts.OnnxFilePath = "onnx/model.onnx"
	downloaded, err := hugot.DownloadModel(p.cfg.Model, p.cfg.ModelDir, opts)
	if err != nil {
		return "", fmt.Errorf("failed to download model: %w", err)
	}
	return downloaded, nil
}

func (p *EmbeddingProvider) load() error {
	p.once.Do(func() {
		path, err := p.modelPath()
		if err != nil {
			p.initErr = err
			return
		}

		session, err := hugot.NewGoSession()
		if err != nil {
			p.initErr = fmt.Errorf("failed to create hugot session: %w", err)
			return
		}

		pipeline, err := hugot.NewPipeline(session, hugot.FeatureExtractionConfig{
			ModelPath: path,
			Name:      "rag-embedder",
		})
		if err != nil {
			_ = session.Destroy()
			p.initErr = fmt.Errorf("failed to create embedding pipeline: %w", err)
			return
		}

		p.session = session
		p.run = func(texts []string) ([][]float32, error) {
			out, err := pipeline.RunPipeline(texts)
			if err != nil {
				return nil, err
			}
			return out.Embeddings, nil
		}
		p.logger.Info("embedding model loaded", "model", p.cfg.Model)
	})
	return p.initErr
}

// Embed generates an embedding for a single text.
func (p *EmbeddingProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch generates embeddings for texts.
func (p *EmbeddingProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := p.load(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	vecs, err := p.run(texts)
	if err != nil {
		return nil, fmt.Errorf("failed to generate embeddings: %w", err)
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(vecs))
	}
	return vecs, nil
}

// Dimensions returns the configured embedding size.
func (p *EmbeddingProvider) Dimensions() int {
	return p.cfg.Dimensions
}

// ModelName returns the model name.
func (p *EmbeddingProvider) ModelName() string {
	return p.cfg.Model
}

// Close releases the ONNX session.
func (p *EmbeddingProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.session == nil {
		return nil
	}
	err := p.session.Destroy()
	p.session = nil
	p.run = nil
	return err
}

var _ llm.EmbeddingProvider = (*EmbeddingProvider)(nil)

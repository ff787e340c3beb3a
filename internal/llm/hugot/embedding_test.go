//-------------------------------------------------------------------------
//
// pgEdge RAG Assistant
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package hugot

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestNewEmbeddingProvider_Defaults(t *testing.T) {
	p := NewEmbeddingProvider(Config{})

	if p.ModelName() != DefaultModel {
		t.Errorf("expected %s, got %s", DefaultModel, p.ModelName())
	}
	if p.Dimensions() != 384 {
		t.Errorf("expected 384 dimensions, got %d", p.Dimensions())
	}
	if err := p.Close(); err != nil {
		t.Errorf("Close on unloaded provider: %v", err)
	}
}

func TestEmbeddingProvider_EmptyInput(t *testing.T) {
	p := NewEmbeddingProvider(Config{ModelDir: t.TempDir()})

	vecs, err := p.EmbedBatch(context.Background(), nil)
	if err != nil || vecs != nil {
		t.Errorf("expected nil result without loading the model, got %v, %v", vecs, err)
	}
}

func TestEmbeddingProvider_ExistingModelDir(t *testing.T) {
	dir := t.TempDir()
	local := filepath.Join(dir, "org_model")
	if err := os.MkdirAll(local, 0o755); err != nil {
		t.Fatal(err)
	}

	p := NewEmbeddingProvider(Config{Model: "org/model", ModelDir: dir})
	path, err := p.modelPath()
	if err != nil {
		t.Fatalf("modelPath failed: %v", err)
	}
	if path != local {
		t.Errorf("expected %s, got %s", local, path)
	}
}

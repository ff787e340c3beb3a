//-------------------------------------------------------------------------
//
// pgEdge RAG Assistant
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package ingest turns uploaded plain-text documents into corpus chunks
// and keeps the document records in step with the corpus store.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pgEdge/pgedge-rag-assistant/internal/conversation"
	"github.com/pgEdge/pgedge-rag-assistant/internal/corpus"
	"github.com/pgEdge/pgedge-rag-assistant/internal/metrics"
)

// ErrEmptyDocument is returned for documents without text.
var ErrEmptyDocument = errors.New("document is empty")

// DocumentStore records ingested documents.
type DocumentStore interface {
	CreateDocument(ctx context.Context, d *conversation.Document) error
	UpdateDocument(ctx context.Context, d *conversation.Document) error
	GetDocument(ctx context.Context, id string) (*conversation.Document, error)
	ListDocuments(ctx context.Context) ([]conversation.Document, error)
	DeleteDocument(ctx context.Context, id string) error
}

// Config configures a Service.
type Config struct {
	Corpus       corpus.Store
	Documents    DocumentStore
	ChunkSize    int
	ChunkOverlap int
	BatchSize    int
	Metrics      *metrics.Collector
	Logger       *slog.Logger
}

// Service ingests and deletes documents.
type Service struct {
	corpus    corpus.Store
	documents DocumentStore
	splitter  *Splitter
	batchSize int
	metrics   *metrics.Collector
	logger    *slog.Logger
}

// NewService creates an ingestion service.
func NewService(cfg Config) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		corpus:    cfg.Corpus,
		documents: cfg.Documents,
		splitter:  NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap),
		batchSize: cfg.BatchSize,
		metrics:   cfg.Metrics,
		logger:    logger.With("component", "ingest"),
	}
}

// Ingest splits content, records the document and inserts its chunks.
// A failed insert removes any batches already stored, leaves the record
// in StatusFailed and returns the error.
func (s *Service) Ingest(ctx context.Context, filename, content string) (*conversation.Document, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyDocument
	}

	doc := &conversation.Document{
		Filename: filename,
		Size:     int64(len(content)),
		Status:   conversation.StatusProcessing,
		Content:  content,
	}
	if err := s.documents.CreateDocument(ctx, doc); err != nil {
		return nil, err
	}

	pieces := s.splitter.Split(content)
	chunks := make([]corpus.Chunk, len(pieces))
	for i, p := range pieces {
		chunks[i] = corpus.Chunk{
			Content: p,
			Metadata: map[string]any{
				corpus.MetaSource:     filename,
				corpus.MetaTitle:      filename,
				corpus.MetaType:       corpus.TypeFile,
				corpus.MetaFileID:     doc.ID,
				corpus.MetaPage:       0,
				corpus.MetaChunkIndex: i,
			},
		}
	}

	if err := s.corpus.Insert(ctx, chunks, s.batchSize); err != nil {
		s.logger.Error("failed to insert chunks", "document", doc.ID, "filename", filename, "error", err)
		cleanup := context.WithoutCancel(ctx)
		if n, derr := s.corpus.DeleteByFileID(cleanup, doc.ID); derr != nil {
			s.logger.Error("failed to remove partially inserted chunks", "document", doc.ID, "error", derr)
		} else if n > 0 {
			s.logger.Info("removed partially inserted chunks", "document", doc.ID, "chunks", n)
		}
		doc.Status, doc.Error = conversation.StatusFailed, err.Error()
		if uerr := s.documents.UpdateDocument(cleanup, doc); uerr != nil {
			s.logger.Warn("failed to mark document as failed", "document", doc.ID, "error", uerr)
		}
		return doc, fmt.Errorf("failed to insert chunks: %w", err)
	}

	doc.Status, doc.ChunkCount = conversation.StatusCompleted, len(chunks)
	if err := s.documents.UpdateDocument(ctx, doc); err != nil {
		return doc, err
	}
	s.metrics.AddChunks(len(chunks))
	s.logger.Info("document ingested", "document", doc.ID, "filename", filename, "chunks", len(chunks))
	return doc, nil
}

// List returns the document records.
func (s *Service) List(ctx context.Context) ([]conversation.Document, error) {
	return s.documents.ListDocuments(ctx)
}

// Preview returns a document record together with its uploaded text.
func (s *Service) Preview(ctx context.Context, id string) (*conversation.Document, error) {
	return s.documents.GetDocument(ctx, id)
}

// Delete removes a document's chunks and then its record. A failure to
// delete the chunks is logged and does not keep the record.
func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := s.documents.GetDocument(ctx, id); err != nil {
		return err
	}

	n, err := s.corpus.DeleteByFileID(ctx, id)
	if err != nil {
		s.logger.Error("failed to delete document chunks", "document", id, "error", err)
	} else {
		s.logger.Info("document chunks deleted", "document", id, "chunks", n)
	}

	return s.documents.DeleteDocument(ctx, id)
}

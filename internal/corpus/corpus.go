//-------------------------------------------------------------------------
//
// pgEdge RAG Assistant
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package corpus stores embedded text chunks and serves the two
// retrieval modes used by hybrid search: vector similarity and BM25.
package corpus

import (
	"context"
	"maps"
	"runtime"
)

// Metadata keys carried by documents.
const (
	MetaSource         = "source"
	MetaTitle          = "title"
	MetaType           = "type"
	MetaFileID         = "file_id"
	MetaPage           = "page"
	MetaChunkIndex     = "chunk_index"
	MetaRelevanceScore = "relevance_score"
)

// Values of MetaType.
const (
	TypeFile      = "file"
	TypeWebSearch = "web_search"
)

// DefaultBatchSize is used when Insert is called with a non-positive
// batch size.
const DefaultBatchSize = 64

// Document is a retrieval candidate. Score is the score assigned by the
// stage that produced it.
type Document struct {
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata"`
	Score    float64        `json:"score"`
}

// Clone returns a copy whose metadata map can be modified freely.
func (d Document) Clone() Document {
	d.Metadata = maps.Clone(d.Metadata)
	if d.Metadata == nil {
		d.Metadata = map[string]any{}
	}
	return d
}

// String returns the metadata value for key, or "".
func (d Document) String(key string) string {
	s, _ := d.Metadata[key].(string)
	return s
}

// Chunk is a piece of a source document ready to be embedded.
type Chunk struct {
	ID       string
	Content  string
	Metadata map[string]any
}

// Store is the corpus store consumed by retrieval and ingestion. All
// methods are safe for concurrent use.
type Store interface {
	// Insert embeds and stores chunks, batchSize at a time.
	Insert(ctx context.Context, chunks []Chunk, batchSize int) error

	// DeleteByFileID removes every chunk whose metadata file_id matches
	// and returns how many were removed.
	DeleteByFileID(ctx context.Context, fileID string) (int, error)

	// VectorSearch returns the k chunks nearest to query by cosine
	// similarity, best first.
	VectorSearch(ctx context.Context, query string, k int) ([]Document, error)

	// LexicalSearch returns the k best BM25 matches for query.
	LexicalSearch(ctx context.Context, query string, k int) ([]Document, error)

	// GetAll returns every stored text with its metadata, in insertion
	// order.
	GetAll(ctx context.Context) ([]string, []map[string]any, error)

	// Count returns the number of stored chunks.
	Count(ctx context.Context) (int, error)
}

// forEachBatch calls fn with consecutive slices of at most size chunks.
// Between batches it checks ctx and yields the processor so that large
// uploads do not starve concurrent requests.
func forEachBatch(ctx context.Context, chunks []Chunk, size int, fn func(batch []Chunk) error) error {
	if size <= 0 {
		size = DefaultBatchSize
	}
	for start := 0; start < len(chunks); start += size {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(chunks[start:min(start+size, len(chunks))]); err != nil {
			return err
		}
		runtime.Gosched()
	}
	return nil
}

func texts(chunks []Chunk) []string {
	out := make([]string, len(chunks))
	for i, c := range chunks {
		out[i] = c.Content
	}
	return out
}

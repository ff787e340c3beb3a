//-------------------------------------------------------------------------
//
// pgEdge RAG Assistant
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package corpus

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/pgEdge/pgedge-rag-assistant/internal/bm25"
	"github.com/pgEdge/pgedge-rag-assistant/internal/config"
	"github.com/pgEdge/pgedge-rag-assistant/internal/llm"
)

// PGStore keeps chunks in a PostgreSQL table with a pgvector column.
// Lexical search runs over an in-process BM25 index that is rebuilt
// from the table whenever it is stale.
type PGStore struct {
	pool       *pgxpool.Pool
	table      pgx.Identifier
	dimensions int
	embedder   llm.EmbeddingProvider
	logger     *slog.Logger

	lexMu    sync.Mutex
	lexical  *bm25.Index
	lexCount int
	lexDirty bool
}

// PGStoreConfig configures NewPGStore.
type PGStoreConfig struct {
	Database   config.DatabaseConfig
	Table      string
	Dimensions int
	Embedder   llm.EmbeddingProvider
	Logger     *slog.Logger
}

// NewPGStore connects to PostgreSQL and makes sure the chunk table
// exists.
func NewPGStore(ctx context.Context, cfg PGStoreConfig) (*PGStore, error) {
	if cfg.Embedder == nil {
		return nil, fmt.Errorf("embedding provider is required")
	}
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = cfg.Embedder.Dimensions()
	}
	if cfg.Table == "" {
		cfg.Table = "rag_chunks"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	poolCfg, err := pgxpool.ParseConfig(buildConnectionString(cfg.Database))
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &PGStore{
		pool:       pool,
		table:      pgx.Identifier(strings.Split(cfg.Table, ".")),
		dimensions: cfg.Dimensions,
		embedder:   cfg.Embedder,
		logger:     logger.With("component", "corpus", "backend", "postgres"),
		lexical:    bm25.NewIndex(),
		lexDirty:   true,
	}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PGStore) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id         uuid PRIMARY KEY,
			file_id    text,
			content    text NOT NULL,
			metadata   jsonb NOT NULL DEFAULT '{}'::jsonb,
			embedding  vector(%d) NOT NULL,
			seq        bigserial,
			created_at timestamptz NOT NULL DEFAULT now()
		)`, s.table.Sanitize(), s.dimensions),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (file_id)`,
			pgx.Identifier{s.table[len(s.table)-1] + "_file_id_idx"}.Sanitize(),
			s.table.Sanitize()),
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to prepare corpus table: %w", err)
		}
	}
	return nil
}

// buildConnectionString returns cfg.URL when set, otherwise a keyword
// connection string built from the individual fields.
func buildConnectionString(cfg config.DatabaseConfig) string {
	if cfg.URL != "" {
		return cfg.URL
	}

	var parts []string
	if cfg.Host != "" {
		parts = append(parts, fmt.Sprintf("host=%s", cfg.Host))
	}
	if cfg.Port != 0 {
		parts = append(parts, fmt.Sprintf("port=%d", cfg.Port))
	}
	if cfg.Database != "" {
		parts = append(parts, fmt.Sprintf("dbname=%s", cfg.Database))
	}

	// Username: config > PGUSER > USER
	username := cfg.Username
	if username == "" {
		username = os.Getenv("PGUSER")
	}
	if username == "" {
		username = os.Getenv("USER")
	}
	if username != "" {
		parts = append(parts, fmt.Sprintf("user=%s", username))
	}
	if cfg.Password != "" {
		parts = append(parts, fmt.Sprintf("password=%s", cfg.Password))
	}
	if cfg.SSLMode != "" {
		parts = append(parts, fmt.Sprintf("sslmode=%s", cfg.SSLMode))
	}
	if cfg.SSLCert != "" {
		parts = append(parts, fmt.Sprintf("sslcert=%s", cfg.SSLCert))
	}
	if cfg.SSLKey != "" {
		parts = append(parts, fmt.Sprintf("sslkey=%s", cfg.SSLKey))
	}
	if cfg.SSLRootCA != "" {
		parts = append(parts, fmt.Sprintf("sslrootcert=%s", cfg.SSLRootCA))
	}
	return strings.Join(parts, " ")
}

// Insert embeds each batch and writes it in a single transaction.
func (s *PGStore) Insert(ctx context.Context, chunks []Chunk, batchSize int) error {
	query := fmt.Sprintf(
		`INSERT INTO %s (id, file_id, content, metadata, embedding)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO UPDATE
		 SET file_id = EXCLUDED.file_id, content = EXCLUDED.content,
		     metadata = EXCLUDED.metadata, embedding = EXCLUDED.embedding`,
		s.table.Sanitize())

	err := forEachBatch(ctx, chunks, batchSize, func(batch []Chunk) error {
		vecs, err := s.embedder.EmbedBatch(ctx, texts(batch))
		if err != nil {
			return fmt.Errorf("failed to embed batch: %w", err)
		}
		if len(vecs) != len(batch) {
			return fmt.Errorf("embedder returned %d vectors for %d chunks", len(vecs), len(batch))
		}

		b := &pgx.Batch{}
		for i, c := range batch {
			id := c.ID
			if id == "" {
				id = uuid.NewString()
			}
			meta := c.Metadata
			if meta == nil {
				meta = map[string]any{}
			}
			fileID, _ := meta[MetaFileID].(string)
			b.Queue(query, id, fileID, c.Content, meta, pgvector.NewVector(vecs[i]))
		}

		tx, err := s.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer func() { _ = tx.Rollback(ctx) }()

		if err := tx.SendBatch(ctx, b).Close(); err != nil {
			return fmt.Errorf("failed to insert chunks: %w", err)
		}
		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("failed to commit chunks: %w", err)
		}
		s.markDirty()
		s.logger.Debug("inserted batch", "size", len(batch))
		return nil
	})
	return err
}

// DeleteByFileID removes every chunk of a file.
func (s *PGStore) DeleteByFileID(ctx context.Context, fileID string) (int, error) {
	tag, err := s.pool.Exec(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE file_id = $1`, s.table.Sanitize()), fileID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete chunks: %w", err)
	}
	s.markDirty()
	return int(tag.RowsAffected()), nil
}

// VectorSearch ranks chunks by cosine similarity using pgvector's <=>
// operator.
func (s *PGStore) VectorSearch(ctx context.Context, query string, k int) ([]Document, error) {
	if k <= 0 {
		return nil, nil
	}
	qvec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	sql := fmt.Sprintf(`
		SELECT content, metadata, 1 - (embedding <=> $1) AS score
		FROM %s
		ORDER BY embedding <=> $1, seq
		LIMIT $2`, s.table.Sanitize())

	rows, err := s.pool.Query(ctx, sql, pgvector.NewVector(qvec), k)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}
	defer rows.Close()

	var out []Document
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.Content, &d.Metadata, &d.Score); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return out, nil
}

// LexicalSearch ranks chunks with BM25 over the whole table.
func (s *PGStore) LexicalSearch(ctx context.Context, query string, k int) ([]Document, error) {
	idx, err := s.lexicalIndex(ctx)
	if err != nil {
		return nil, err
	}
	results := idx.Search(query, k)
	out := make([]Document, 0, len(results))
	for _, r := range results {
		out = append(out, Document{
			Content:  r.Content,
			Metadata: maps.Clone(r.Metadata),
			Score:    r.Score,
		})
	}
	return out, nil
}

// lexicalIndex returns the BM25 index, rebuilding it when this store
// wrote to the table or when another writer changed the row count.
func (s *PGStore) lexicalIndex(ctx context.Context) (*bm25.Index, error) {
	count, err := s.Count(ctx)
	if err != nil {
		return nil, err
	}

	s.lexMu.Lock()
	defer s.lexMu.Unlock()
	if !s.lexDirty && count == s.lexCount {
		return s.lexical, nil
	}

	rows, err := s.pool.Query(ctx, fmt.Sprintf(
		`SELECT id::text, content, metadata FROM %s ORDER BY seq`, s.table.Sanitize()))
	if err != nil {
		return nil, fmt.Errorf("failed to load corpus: %w", err)
	}
	defer rows.Close()

	idx := bm25.NewIndex()
	n := 0
	for rows.Next() {
		var id, content string
		var meta map[string]any
		if err := rows.Scan(&id, &content, &meta); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		idx.Add(id, content, meta)
		n++
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	s.lexical, s.lexCount, s.lexDirty = idx, n, false
	s.logger.Debug("rebuilt lexical index", "chunks", n)
	return idx, nil
}

func (s *PGStore) markDirty() {
	s.lexMu.Lock()
	s.lexDirty = true
	s.lexMu.Unlock()
}

// GetAll returns every chunk in insertion order.
func (s *PGStore) GetAll(ctx context.Context) ([]string, []map[string]any, error) {
	rows, err := s.pool.Query(ctx, fmt.Sprintf(
		`SELECT content, metadata FROM %s ORDER BY seq`, s.table.Sanitize()))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load corpus: %w", err)
	}
	defer rows.Close()

	var contents []string
	var metas []map[string]any
	for rows.Next() {
		var content string
		var meta map[string]any
		if err := rows.Scan(&content, &meta); err != nil {
			return nil, nil, fmt.Errorf("failed to scan row: %w", err)
		}
		contents = append(contents, content)
		metas = append(metas, meta)
	}
	return contents, metas, rows.Err()
}

// Count returns the number of stored chunks.
func (s *PGStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT count(*) FROM %s`, s.table.Sanitize())).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return n, nil
}

// Ping verifies the database connection.
func (s *PGStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close closes the connection pool.
func (s *PGStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

var _ Store = (*PGStore)(nil)

//-------------------------------------------------------------------------
//
// pgEdge RAG Assistant
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package rerank reorders retrieval candidates with a pairwise
// relevance model.
package rerank

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/pgEdge/pgedge-rag-assistant/internal/corpus"
)

// Defaults for Service.
const (
	DefaultMaxChars = 2000
	DefaultTimeout  = 30 * time.Second
)

// ErrNoScorer is returned by a Loader when reranking is not configured.
var ErrNoScorer = errors.New("no rerank scorer configured")

// Scorer scores each passage against query. The result has one score
// per passage, in passage order.
type Scorer interface {
	Score(ctx context.Context, query string, passages []string) ([]float64, error)
	Name() string
}

// Loader builds the Scorer on first use.
type Loader func() (Scorer, error)

// Config configures a Service.
type Config struct {
	// Loader is called at most once. A nil Loader disables reranking.
	Loader   Loader
	MaxChars int
	Timeout  time.Duration
	Logger   *slog.Logger
}

// Service reranks candidates. It is shared by all requests; the scorer
// is loaded lazily on the first call.
type Service struct {
	loader   Loader
	maxChars int
	timeout  time.Duration
	logger   *slog.Logger

	once    sync.Once
	scorer  Scorer
	loadErr error
}

// NewService creates a rerank service. Nothing is loaded until the
// first Rerank call.
func NewService(cfg Config) *Service {
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = DefaultMaxChars
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Service{
		loader:   cfg.Loader,
		maxChars: cfg.MaxChars,
		timeout:  cfg.Timeout,
		logger:   cfg.Logger.With("component", "rerank"),
	}
}

func (s *Service) load() (Scorer, error) {
	s.once.Do(func() {
		if s.loader == nil {
			s.loadErr = ErrNoScorer
			return
		}
		s.scorer, s.loadErr = s.loader()
		if s.loadErr == nil && s.scorer == nil {
			s.loadErr = ErrNoScorer
		}
		if s.loadErr != nil && !errors.Is(s.loadErr, ErrNoScorer) {
			s.logger.Warn("failed to load rerank model, reranking disabled", "error", s.loadErr)
		} else if s.scorer != nil {
			s.logger.Info("rerank model loaded", "model", s.scorer.Name())
		}
	})
	return s.scorer, s.loadErr
}

// Available reports whether a scorer is loaded. It triggers loading.
func (s *Service) Available() bool {
	sc, err := s.load()
	return err == nil && sc != nil
}

// Rerank returns at most topK documents ordered by descending relevance.
// Every returned document carries a relevance_score metadata value.
// When no scorer is available, or scoring fails, the first topK
// documents are returned in input order, scored with their upstream
// score.
func (s *Service) Rerank(ctx context.Context, query string, docs []corpus.Document, topK int) []corpus.Document {
	if len(docs) == 0 || topK <= 0 {
		return []corpus.Document{}
	}

	scorer, err := s.load()
	if err != nil {
		return Passthrough(docs, topK)
	}

	scores, err := s.score(ctx, scorer, query, docs)
	if err != nil {
		s.logger.Warn("rerank failed, keeping retrieval order", "error", err)
		return Passthrough(docs, topK)
	}

	idx := make([]int, len(docs))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return scores[idx[a]] > scores[idx[b]] })

	out := make([]corpus.Document, 0, min(topK, len(docs)))
	for _, i := range idx[:min(topK, len(idx))] {
		d := docs[i].Clone()
		d.Score = scores[i]
		d.Metadata[corpus.MetaRelevanceScore] = scores[i]
		out = append(out, d)
	}
	return out
}

// score runs the scorer on its own goroutine so that a stuck model call
// is abandoned after the timeout.
func (s *Service) score(ctx context.Context, scorer Scorer, query string, docs []corpus.Document) ([]float64, error) {
	passages := make([]string, len(docs))
	for i, d := range docs {
		passages[i] = truncate(d.Content, s.maxChars)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	type result struct {
		scores []float64
		err    error
	}
	done := make(chan result, 1)
	go func() {
		scores, err := scorer.Score(ctx, query, passages)
		done <- result{scores, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return nil, r.err
		}
		if len(r.scores) != len(docs) {
			return nil, fmt.Errorf("scorer returned %d scores for %d passages", len(r.scores), len(docs))
		}
		return r.scores, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Passthrough keeps fusion order, cuts docs to topK and uses each
// document's fused score as its relevance_score.
func Passthrough(docs []corpus.Document, topK int) []corpus.Document {
	out := make([]corpus.Document, 0, min(topK, len(docs)))
	for _, d := range docs[:min(topK, len(docs))] {
		c := d.Clone()
		c.Metadata[corpus.MetaRelevanceScore] = c.Score
		out = append(out, c)
	}
	return out
}

func truncate(s string, maxRunes int) string {
	n := 0
	for i := range s {
		if n == maxRunes {
			return s[:i]
		}
		n++
	}
	return s
}

//-------------------------------------------------------------------------
//
// pgEdge RAG Assistant
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package websearch

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/pgEdge/pgedge-rag-assistant/internal/corpus"
)

// Defaults for Fallback.
const (
	DefaultMaxResults = 5
	DefaultTimeout    = 15 * time.Second
	DefaultCacheTTL   = 10 * time.Minute
)

// FallbackConfig configures a Fallback.
type FallbackConfig struct {
	Provider Provider
	Timeout  time.Duration
	// CacheTTL of zero disables caching.
	CacheTTL time.Duration
	// RatePerSecond of zero disables rate limiting.
	RatePerSecond float64
	Burst         int
	Logger        *slog.Logger
}

// Fallback turns provider results into corpus documents. It never
// returns an error: failures produce an empty slice.
type Fallback struct {
	provider Provider
	timeout  time.Duration
	limiter  *rate.Limiter
	cache    *cache.Cache
	group    singleflight.Group
	logger   *slog.Logger
}

// NewFallback creates a Fallback. A nil provider yields a Fallback that
// always returns nothing.
func NewFallback(cfg FallbackConfig) *Fallback {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	f := &Fallback{
		provider: cfg.Provider,
		timeout:  cfg.Timeout,
		logger:   cfg.Logger.With("component", "websearch"),
	}
	if cfg.RatePerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		f.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst)
	}
	if cfg.CacheTTL > 0 {
		f.cache = cache.New(cfg.CacheTTL, 2*cfg.CacheTTL)
	}
	return f
}

// Search returns at most maxResults web documents for query.
func (f *Fallback) Search(ctx context.Context, query string, maxResults int) []corpus.Document {
	if f == nil || f.provider == nil || query == "" {
		return []corpus.Document{}
	}
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}

	key := strconv.Itoa(maxResults) + "\x00" + query
	if f.cache != nil {
		if v, ok := f.cache.Get(key); ok {
			return cloneDocs(v.([]corpus.Document))
		}
	}

	// The shared call outlives any one caller; each caller waits on its
	// own ctx.
	ch := f.group.DoChan(key, func() (any, error) {
		results, err := f.search(context.WithoutCancel(ctx), query, maxResults)
		if err != nil {
			return nil, err
		}
		docs := toDocuments(results)
		if f.cache != nil && len(docs) > 0 {
			f.cache.SetDefault(key, docs)
		}
		return docs, nil
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		f.logger.Debug("web search abandoned", "query", query, "error", ctx.Err())
		return []corpus.Document{}
	}
	if res.Err != nil {
		f.logger.Warn("web search failed", "query", query, "error", res.Err)
		return []corpus.Document{}
	}
	docs := cloneDocs(res.Val.([]corpus.Document))
	f.logger.Info("web search completed", "query", query, "results", len(docs))
	return docs
}

// search calls the provider on its own goroutine and waits for it or the
// timeout.
func (f *Fallback) search(ctx context.Context, query string, maxResults int) ([]Result, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit: %w", err)
		}
	}

	type result struct {
		results []Result
		err     error
	}
	done := make(chan result, 1)
	go func() {
		r, err := f.provider.TextSearch(ctx, query, maxResults)
		done <- result{r, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return nil, r.err
		}
		if len(r.results) > maxResults {
			r.results = r.results[:maxResults]
		}
		return r.results, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// FormatContent renders a result the way it is shown to the model.
func FormatContent(r Result) string {
	return fmt.Sprintf("标题: %s\n来源: %s\n摘要: %s", r.Title, r.URL, r.Snippet)
}

func toDocuments(results []Result) []corpus.Document {
	docs := make([]corpus.Document, 0, len(results))
	for _, r := range results {
		docs = append(docs, corpus.Document{
			Content: FormatContent(r),
			Metadata: map[string]any{
				corpus.MetaSource: r.URL,
				corpus.MetaTitle:  r.Title,
				corpus.MetaType:   corpus.TypeWebSearch,
			},
		})
	}
	return docs
}

func cloneDocs(in []corpus.Document) []corpus.Document {
	out := make([]corpus.Document, len(in))
	for i, d := range in {
		out[i] = d.Clone()
	}
	return out
}

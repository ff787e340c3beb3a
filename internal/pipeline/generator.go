//-------------------------------------------------------------------------
//
// pgEdge RAG Assistant
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/pgEdge/pgedge-rag-assistant/internal/corpus"
	"github.com/pgEdge/pgedge-rag-assistant/internal/llm"
	"github.com/pgEdge/pgedge-rag-assistant/internal/metrics"
	"github.com/pgEdge/pgedge-rag-assistant/internal/rerank"
)

// Defaults for Generator.
const (
	DefaultFetchK            = 15
	DefaultTopK              = 4
	DefaultHistoryTurns      = 2
	DefaultWebMaxResults     = 5
	DefaultRetrievalTimeout  = 30 * time.Second
	DefaultGenerationTimeout = 120 * time.Second
)

// Status messages emitted at stage boundaries.
const (
	StatusRewriting     = "正在理解问题..."
	StatusRetrieving    = "正在检索本地文档..."
	StatusReranking     = "正在筛选相关内容..."
	StatusWebSearch     = "本地文档未找到相关内容，正在进行网络搜索..."
	StatusGeneral       = "未找到相关资料，将基于通用知识回答..."
	StatusGenerating    = "正在生成回答..."
	StatusRefusalRetry  = "文档中未找到答案，正在尝试网络搜索..."
	refusalAnswerJoiner = "\n\n"
)

var tracer = otel.Tracer("github.com/pgEdge/pgedge-rag-assistant/internal/pipeline")

// QueryRewriter condenses the history and question into a search query.
type QueryRewriter interface {
	Rewrite(ctx context.Context, query string, history []llm.Message) string
}

// Retriever returns local candidates for a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]corpus.Document, error)
}

// Reranker cuts candidates to the most relevant topK.
type Reranker interface {
	Rerank(ctx context.Context, query string, docs []corpus.Document, topK int) []corpus.Document
}

// WebSearcher returns web candidates. It never fails; an empty result
// means nothing was found.
type WebSearcher interface {
	Search(ctx context.Context, query string, maxResults int) []corpus.Document
}

// Config configures a Generator. LLM is required, and Retriever is
// required unless MockMode is set; every other component is optional.
type Config struct {
	LLM       llm.CompletionProvider
	Rewriter  QueryRewriter
	Retriever Retriever
	Reranker  Reranker
	Web       WebSearcher
	Refusal   RefusalDetector

	TokenCounter TokenCounter
	Metrics      *metrics.Collector

	FetchK            int
	TopK              int
	HistoryTurns      int
	WebMaxResults     int
	TokenBudget       int
	RetrievalTimeout  time.Duration
	GenerationTimeout time.Duration

	// MockMode skips retrieval and web search and answers with fixed
	// demonstration sources.
	MockMode bool

	Logger *slog.Logger
}

// Generator runs the answer pipeline. It holds only shared, read-only
// components; each Run is independent.
type Generator struct {
	llm       llm.CompletionProvider
	rewriter  QueryRewriter
	retriever Retriever
	reranker  Reranker
	web       WebSearcher
	refusal   RefusalDetector
	count     TokenCounter
	metrics   *metrics.Collector

	fetchK            int
	topK              int
	historyTurns      int
	webMaxResults     int
	tokenBudget       int
	retrievalTimeout  time.Duration
	generationTimeout time.Duration
	mockMode          bool

	logger *slog.Logger
}

// NewGenerator creates a Generator.
func NewGenerator(cfg Config) (*Generator, error) {
	if cfg.LLM == nil {
		return nil, errors.New("completion provider is required")
	}
	if cfg.Retriever == nil && !cfg.MockMode {
		return nil, errors.New("retriever is required")
	}

	g := &Generator{
		llm:               cfg.LLM,
		rewriter:          cfg.Rewriter,
		retriever:         cfg.Retriever,
		reranker:          cfg.Reranker,
		web:               cfg.Web,
		refusal:           cfg.Refusal,
		count:             cfg.TokenCounter,
		metrics:           cfg.Metrics,
		fetchK:            orDefault(cfg.FetchK, DefaultFetchK),
		topK:              orDefault(cfg.TopK, DefaultTopK),
		historyTurns:      orDefault(cfg.HistoryTurns, DefaultHistoryTurns),
		webMaxResults:     orDefault(cfg.WebMaxResults, DefaultWebMaxResults),
		tokenBudget:       orDefault(cfg.TokenBudget, DefaultTokenBudget),
		retrievalTimeout:  cfg.RetrievalTimeout,
		generationTimeout: cfg.GenerationTimeout,
		mockMode:          cfg.MockMode,
		logger:            cfg.Logger,
	}
	if g.refusal == nil {
		g.refusal = NewKeywordDetector()
	}
	if g.count == nil {
		g.count = EstimateTokens
	}
	if g.retrievalTimeout <= 0 {
		g.retrievalTimeout = DefaultRetrievalTimeout
	}
	if g.generationTimeout <= 0 {
		g.generationTimeout = DefaultGenerationTimeout
	}
	if g.logger == nil {
		g.logger = slog.Default()
	}
	g.logger = g.logger.With("component", "generator")
	return g, nil
}

func orDefault(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

// Run answers req. The returned channel yields status and answer events
// followed by exactly one Sources or Error event, then closes. When ctx
// is cancelled the run stops and the channel closes without a terminal
// event. The channel is unbuffered; the caller must drain it or cancel
// ctx.
func (g *Generator) Run(ctx context.Context, req Request) <-chan Event {
	events := make(chan Event)
	ctx, span := tracer.Start(ctx, "pipeline.run",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.Bool("mock_mode", g.mockMode),
			attribute.Int("history_messages", len(req.History)),
		))
	r := &run{ctx: ctx, span: span, events: events, req: req}

	go func() {
		defer close(events)
		defer r.finish(g)

		if g.mockMode {
			g.runMock(r)
			return
		}
		g.runPipeline(r)
	}()

	return events
}

// run is the per-request state.
type run struct {
	ctx    context.Context
	span   trace.Span
	events chan<- Event
	req    Request

	answer   strings.Builder
	sources  []SourceRef
	err      error
	terminal bool
	branch   string
}

// emit delivers e unless ctx is done.
func (r *run) emit(e Event) bool {
	if r.terminal {
		return false
	}
	select {
	case r.events <- e:
		if e.Terminal() {
			r.terminal = true
		}
		return true
	case <-r.ctx.Done():
		return false
	}
}

func (r *run) status(msg string) bool { return r.emit(StatusEvent(msg)) }

func (r *run) fail(err error) {
	r.err = err
	r.emit(ErrorEvent(err.Error()))
}

func (r *run) succeed(sources []SourceRef, branch string) {
	if r.emit(SourcesEvent(sources)) {
		r.sources = sources
		r.branch = branch
	}
}

// finish records the outcome and hands the partial result to the saver.
func (r *run) finish(g *Generator) {
	err := r.err
	outcome := "sources"
	switch {
	case err != nil:
		outcome = "error"
	case !r.terminal:
		outcome = "cancelled"
		err = r.ctx.Err()
		if err == nil {
			err = context.Canceled
		}
	default:
		g.metrics.IncBranch(r.branch)
	}
	g.metrics.IncOutcome(outcome)

	r.span.SetAttributes(attribute.String("outcome", outcome))
	if r.branch != "" {
		r.span.SetAttributes(attribute.String("branch", r.branch))
	}
	if r.err != nil {
		r.span.RecordError(r.err)
		r.span.SetStatus(codes.Error, r.err.Error())
	}
	r.span.End()

	if r.req.Saver != nil {
		r.req.Saver.OnFinish(r.answer.String(), r.sources, err)
	}
}

// stage starts a span and returns a function that ends it and records
// the stage latency.
func (g *Generator) stage(ctx context.Context, name string) (context.Context, func()) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "pipeline."+name)
	return ctx, func() {
		span.End()
		g.metrics.ObserveStage(name, time.Since(start))
	}
}

func (g *Generator) runPipeline(r *run) {
	query := r.req.Query
	turns := lastTurns(r.req.History, g.historyTurns)

	retrievalQuery := query
	if len(r.req.History) > 0 && g.rewriter != nil {
		if !r.status(StatusRewriting) {
			return
		}
		ctx, end := g.stage(r.ctx, "rewrite")
		retrievalQuery = g.rewriter.Rewrite(ctx, query, r.req.History)
		end()
	}

	if !r.status(StatusRetrieving) {
		return
	}
	docs, err := g.retrieve(r.ctx, retrievalQuery)
	if err != nil {
		if r.ctx.Err() != nil {
			return
		}
		g.logger.Error("retrieval failed", "error", err)
		r.fail(fmt.Errorf("检索失败: %w", err))
		return
	}

	if len(docs) > 0 {
		if g.reranker != nil {
			if !r.status(StatusReranking) {
				return
			}
			ctx, end := g.stage(r.ctx, "rerank")
			docs = g.reranker.Rerank(ctx, retrievalQuery, docs, g.topK)
			end()
		} else {
			docs = rerank.Passthrough(docs, g.topK)
		}
	}

	web := false
	if len(docs) == 0 {
		if !r.status(StatusWebSearch) {
			return
		}
		docs = g.webSearch(r.ctx, retrievalQuery)
		web = len(docs) > 0
	}
	if r.ctx.Err() != nil {
		return
	}

	if len(docs) == 0 {
		if !r.status(StatusGeneral) {
			return
		}
		if g.stream(r, generalRequest(query, turns)) {
			r.succeed([]SourceRef{}, "general")
		}
		return
	}

	if !r.status(StatusGenerating) {
		return
	}
	if !g.stream(r, groundedRequest(query, turns, docs, web, g.tokenBudget, g.count)) {
		return
	}

	branch := "local"
	if web {
		branch = "web"
	} else if g.refusal.IsRefusal(r.answer.String()) {
		g.logger.Info("answer looks like a refusal, retrying with web search")
		if !r.status(StatusRefusalRetry) {
			return
		}
		if webDocs := g.webSearch(r.ctx, query); len(webDocs) > 0 {
			if !r.emit(AnswerEvent(refusalAnswerJoiner)) {
				return
			}
			r.answer.WriteString(refusalAnswerJoiner)
			docs, branch = webDocs, "refusal_retry"
			if !g.stream(r, groundedRequest(query, turns, docs, true, g.tokenBudget, g.count)) {
				return
			}
		}
	}

	r.succeed(SourceRefs(docs), branch)
}

func (g *Generator) retrieve(ctx context.Context, query string) ([]corpus.Document, error) {
	ctx, span := tracer.Start(ctx, "pipeline.retrieve")
	start := time.Now()
	defer func() {
		span.End()
		g.metrics.ObserveStage("retrieve", time.Since(start))
	}()

	ctx, cancel := context.WithTimeout(ctx, g.retrievalTimeout)
	defer cancel()

	docs, err := g.retriever.Retrieve(ctx, query, g.fetchK)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("candidates", len(docs)))
	return docs, nil
}

func (g *Generator) webSearch(ctx context.Context, query string) []corpus.Document {
	if g.web == nil {
		return nil
	}
	ctx, end := g.stage(ctx, "web_search")
	defer end()
	return g.web.Search(ctx, query, g.webMaxResults)
}

// stream forwards one generation round as Answer events. It returns
// false when the run must stop: on cancellation, or after emitting an
// Error event for a backend failure.
func (g *Generator) stream(r *run, req llm.CompletionRequest) bool {
	ctx, end := g.stage(r.ctx, "generate")
	defer end()
	ctx, cancel := context.WithTimeout(ctx, g.generationTimeout)
	defer cancel()

	chunks, errs := g.llm.CompleteStream(ctx, req)
	for chunk := range chunks {
		if chunk.Content == "" {
			continue
		}
		if !r.emit(AnswerEvent(chunk.Content)) {
			return false
		}
		r.answer.WriteString(chunk.Content)
	}

	if err := <-errs; err != nil {
		if r.ctx.Err() != nil {
			return false
		}
		g.logger.Error("generation failed", "error", err)
		r.fail(fmt.Errorf("生成失败: %w", err))
		return false
	}
	return r.ctx.Err() == nil
}

//-------------------------------------------------------------------------
//
// pgEdge RAG Assistant
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package rewrite condenses a follow-up question and the chat history
// into a standalone search query.
package rewrite

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/pgEdge/pgedge-rag-assistant/internal/llm"
)

// Defaults for Rewriter.
const (
	DefaultMaxTurns = 6
	DefaultTimeout  = 15 * time.Second
)

const systemPrompt = `You rewrite follow-up questions into standalone search queries.
Given a conversation and a follow-up question, rewrite the follow-up so that it
can be understood without the conversation. Resolve pronouns and references,
keep the original language, and do not answer the question.
Output only the rewritten query.`

// Config configures a Rewriter.
type Config struct {
	MaxTurns int
	Timeout  time.Duration
	Logger   *slog.Logger
}

// Rewriter turns (query, history) into a retrieval query.
type Rewriter struct {
	llm      llm.CompletionProvider
	maxTurns int
	timeout  time.Duration
	logger   *slog.Logger
}

// New creates a Rewriter backed by provider.
func New(provider llm.CompletionProvider, cfg Config) *Rewriter {
	if cfg.MaxTurns <= 0 {
		cfg.MaxTurns = DefaultMaxTurns
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Rewriter{
		llm:      provider,
		maxTurns: cfg.MaxTurns,
		timeout:  cfg.Timeout,
		logger:   cfg.Logger.With("component", "rewrite"),
	}
}

// Rewrite returns the standalone query. With no history, query is
// returned as is and the backend is not called. Backend failures and
// empty responses also yield query.
func (r *Rewriter) Rewrite(ctx context.Context, query string, history []llm.Message) string {
	if len(history) == 0 || r.llm == nil {
		return query
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	resp, err := r.llm.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: systemPrompt,
		Messages:     []llm.Message{{Role: llm.RoleUser, Content: BuildPrompt(query, history, r.maxTurns)}},
		Temperature:  0,
	})
	if err != nil {
		r.logger.Warn("query rewrite failed, using original query", "error", err)
		return query
	}

	rewritten := strings.TrimSpace(resp.Content)
	if rewritten == "" {
		return query
	}
	r.logger.Debug("rewrote query", "original", query, "rewritten", rewritten)
	return rewritten
}

// BuildPrompt renders the last maxTurns history entries and the
// follow-up question.
func BuildPrompt(query string, history []llm.Message, maxTurns int) string {
	if maxTurns > 0 && len(history) > maxTurns {
		history = history[len(history)-maxTurns:]
	}

	var b strings.Builder
	b.WriteString("Conversation:\n")
	for _, m := range history {
		fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Content)
	}
	fmt.Fprintf(&b, "\nFollow-up question: %s\nStandalone query:", query)
	return b.String()
}

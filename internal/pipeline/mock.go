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
	"fmt"

	"github.com/pgEdge/pgedge-rag-assistant/internal/corpus"
	"github.com/pgEdge/pgedge-rag-assistant/internal/llm"
)

// MockSources returns the demonstration sources attached to every mock
// answer.
func MockSources(query string) []corpus.Document {
	return []corpus.Document{
		{
			Content: fmt.Sprintf("模拟检索片段：关于 '%s' 的相关文档内容...", query),
			Metadata: map[string]any{
				corpus.MetaSource: "demo_doc.pdf",
				corpus.MetaPage:   1,
				corpus.MetaType:   corpus.TypeFile,
			},
		},
		{
			Content: "系统配置：当前为演示模式 (Mock Mode)...",
			Metadata: map[string]any{
				corpus.MetaSource: "config.txt",
				corpus.MetaPage:   0,
				corpus.MetaType:   corpus.TypeFile,
			},
		},
	}
}

// runMock answers without touching the corpus or the network. The
// configured backend still produces the text, so the event stream has
// the same shape as a real run.
func (g *Generator) runMock(r *run) {
	if !r.status(StatusRetrieving) {
		return
	}
	docs := MockSources(r.req.Query)

	if !r.status(StatusGenerating) {
		return
	}
	req := llm.CompletionRequest{
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: r.req.Query}},
		Temperature: -1,
	}
	if g.stream(r, req) {
		r.succeed(SourceRefs(docs), "mock")
	}
}

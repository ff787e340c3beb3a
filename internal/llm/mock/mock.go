//-------------------------------------------------------------------------
//
// pgEdge RAG Assistant
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package mock provides deterministic offline backends. They make no
// network calls and produce the same output for the same input, which
// lets the server and its tests run without API credentials.
package mock

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pgEdge/pgedge-rag-assistant/internal/llm"
)

const (
	// DefaultStride is the number of characters per streamed chunk.
	DefaultStride = 2

	// DefaultDelay is the pause between streamed chunks.
	DefaultDelay = 50 * time.Millisecond

	modelName = "mock"
)

const (
	budgetAnswer = "根据文档显示，该项目的总金额预算为 500,000 元，其中首期款项占比 30%。具体明细请参考财务附录表 B。"
	ragAnswer    = "RAG (Retrieval-Augmented Generation) 的核心优势在于能利用外部知识库增强 LLM 的准确性，有效减少幻觉，并支持私有数据的即时更新。"
)

// Answer returns the canned answer for query, chosen by keyword.
func Answer(query string) string {
	var body string
	switch {
	case containsAny(query, "金额", "多少钱", "价格"):
		body = budgetAnswer
	case strings.Contains(strings.ToUpper(query), "RAG") || strings.Contains(query, "优势"):
		body = ragAnswer
	default:
		body = fmt.Sprintf("这是一个模拟回答。您询问了“%s”，但由于当前运行在 Mock 模式且未匹配到预设关键词，"+
			"我无法从文档中提取具体答案。\n\n请尝试询问“金额”或“RAG优势”来查看不同的模拟效果，"+
			"或配置真实的 API Key 以启用完整功能。", query)
	}
	return "【模拟模式】\n\n" + body + "\n\n(此回答仅用于演示 UI 交互，未消耗 Token)"
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// CompletionProvider answers the last user message with Answer.
type CompletionProvider struct {
	Stride int
	Delay  time.Duration
}

// NewCompletionProvider creates a mock backend streaming stride
// characters every delay.
func NewCompletionProvider(stride int, delay time.Duration) *CompletionProvider {
	if stride <= 0 {
		stride = DefaultStride
	}
	if delay < 0 {
		delay = 0
	}
	return &CompletionProvider{Stride: stride, Delay: delay}
}

func lastUserMessage(req llm.CompletionRequest) string {
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == llm.RoleUser {
			return req.Messages[i].Content
		}
	}
	return ""
}

// Complete returns the full canned answer.
func (p *CompletionProvider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	answer := Answer(lastUserMessage(req))
	return &llm.CompletionResponse{
		Content:      answer,
		FinishReason: "stop",
		Usage:        llm.TokenUsage{CompletionTokens: len([]rune(answer)), TotalTokens: len([]rune(answer))},
	}, nil
}

// CompleteStream streams the canned answer in Stride-character chunks.
func (p *CompletionProvider) CompleteStream(ctx context.Context, req llm.CompletionRequest) (<-chan llm.StreamChunk, <-chan error) {
	chunks := make(chan llm.StreamChunk)
	errs := make(chan error, 1)
	answer := Answer(lastUserMessage(req))

	go func() {
		defer close(errs)
		defer close(chunks)

		var timer *time.Timer
		for _, part := range Split(answer, p.Stride) {
			if p.Delay > 0 {
				if timer == nil {
					timer = time.NewTimer(p.Delay)
					defer timer.Stop()
				} else {
					timer.Reset(p.Delay)
				}
				select {
				case <-timer.C:
				case <-ctx.Done():
					errs <- ctx.Err()
					return
				}
			}
			select {
			case chunks <- llm.StreamChunk{Content: part}:
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			}
		}
	}()

	return chunks, errs
}

// ModelName returns "mock".
func (p *CompletionProvider) ModelName() string {
	return modelName
}

// Split cuts s into pieces of stride runes; the last piece may be
// shorter.
func Split(s string, stride int) []string {
	runes := []rune(s)
	parts := make([]string, 0, len(runes)/stride+1)
	for i := 0; i < len(runes); i += stride {
		parts = append(parts, string(runes[i:min(i+stride, len(runes))]))
	}
	return parts
}

var _ llm.CompletionProvider = (*CompletionProvider)(nil)

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
	"strings"

	"github.com/pgEdge/pgedge-rag-assistant/internal/corpus"
	"github.com/pgEdge/pgedge-rag-assistant/internal/llm"
)

const localPrompt = `你是一个专业的文档问答助手。请仅根据下面提供的文档片段回答用户的问题，回答应准确、简洁，并尽量引用文档中的原文信息。
如果文档片段中没有足够的信息，请直接回答“根据现有文档无法回答该问题”，不要编造内容。

文档片段：
%s`

const webPrompt = `你是一个智能助手。本地文档中没有找到相关内容，下面是网络搜索得到的结果。请根据这些搜索结果回答用户的问题，回答应准确、简洁，并在回答中注明信息来源链接。
如果搜索结果与问题无关，请如实说明。

搜索结果：
%s`

const generalPrompt = `你是一个知识渊博的助手。本地文档和网络搜索都没有找到与问题相关的信息。
请基于你的通用知识回答用户的问题，并在回答开头注明：“（以下回答基于通用知识，未参考本地文档或网络搜索结果，仅供参考）”。`

// DefaultTokenBudget bounds the context placed in the system prompt.
const DefaultTokenBudget = 3000

// minTruncatedTokens is the smallest remainder worth adding as a
// truncated document.
const minTruncatedTokens = 100

// TokenCounter returns the number of tokens in s.
type TokenCounter func(s string) int

// EstimateTokens approximates token count at four bytes per token.
func EstimateTokens(s string) int {
	return len(s) / 4
}

// buildContext renders numbered documents until the token budget is
// spent. The last document is cut short when at least
// minTruncatedTokens remain.
func buildContext(docs []corpus.Document, budget int, count TokenCounter) string {
	if count == nil {
		count = EstimateTokens
	}
	if budget <= 0 {
		budget = DefaultTokenBudget
	}

	var b strings.Builder
	used := 0
	for i, d := range docs {
		entry := formatDoc(i+1, d, d.Content)
		tokens := count(entry)
		if used+tokens > budget {
			remaining := budget - used
			if remaining > minTruncatedTokens {
				cut := truncateRunes(d.Content, remaining*len(d.Content)/max(tokens, 1))
				b.WriteString(formatDoc(i+1, d, cut+"..."))
			}
			break
		}
		b.WriteString(entry)
		used += tokens
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatDoc(n int, d corpus.Document, content string) string {
	label := d.String(corpus.MetaTitle)
	if src := d.String(corpus.MetaSource); src != "" {
		label = src
	}
	if label == "" {
		return fmt.Sprintf("[%d]\n%s\n\n", n, content)
	}
	return fmt.Sprintf("[%d] 来源: %s\n%s\n\n", n, label, content)
}

// truncateRunes cuts s to at most n bytes without splitting a rune.
func truncateRunes(s string, n int) string {
	if n >= len(s) {
		return s
	}
	if n <= 0 {
		return ""
	}
	for n > 0 && !isRuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func isRuneStart(b byte) bool { return b&0xC0 != 0x80 }

// lastTurns returns at most n trailing history entries.
func lastTurns(history []llm.Message, n int) []llm.Message {
	if n <= 0 {
		return nil
	}
	if len(history) > n {
		history = history[len(history)-n:]
	}
	out := make([]llm.Message, 0, len(history)+1)
	for _, m := range history {
		if m.Role == llm.RoleUser || m.Role == llm.RoleAssistant {
			out = append(out, m)
		}
	}
	return out
}

// groundedRequest builds the generation request for candidates. turns
// must already be trimmed to the continuity window.
func groundedRequest(query string, turns []llm.Message, docs []corpus.Document, web bool, budget int, count TokenCounter) llm.CompletionRequest {
	tmpl := localPrompt
	if web {
		tmpl = webPrompt
	}
	messages := append(turns[:len(turns):len(turns)], llm.Message{Role: llm.RoleUser, Content: query})
	return llm.CompletionRequest{
		SystemPrompt: fmt.Sprintf(tmpl, buildContext(docs, budget, count)),
		Messages:     messages,
		Temperature:  -1,
	}
}

// generalRequest builds the disclaimer-framed request used when no
// context was found.
func generalRequest(query string, turns []llm.Message) llm.CompletionRequest {
	messages := append(turns[:len(turns):len(turns)], llm.Message{Role: llm.RoleUser, Content: query})
	return llm.CompletionRequest{
		SystemPrompt: generalPrompt,
		Messages:     messages,
		Temperature:  -1,
	}
}

//-------------------------------------------------------------------------
//
// pgEdge RAG Assistant
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package openai

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pgEdge/pgedge-rag-assistant/internal/llm"
)

// CompletionProvider implements llm.CompletionProvider.
type CompletionProvider struct {
	client      *Client
	model       string
	maxTokens   int
	temperature float64
}

// CompletionOption configures the completion provider.
type CompletionOption func(*CompletionProvider)

// NewCompletionProvider creates a chat completion provider. The default
// temperature is 0 so that answers over a fixed context are stable.
func NewCompletionProvider(client *Client, opts ...CompletionOption) *CompletionProvider {
	p := &CompletionProvider{
		client:    client,
		model:     defaultChatModel,
		maxTokens: 2048,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// WithCompletionModel sets the chat model.
func WithCompletionModel(model string) CompletionOption {
	return func(p *CompletionProvider) {
		if model != "" {
			p.model = model
		}
	}
}

// WithMaxTokens sets the default max tokens. Zero keeps the default.
func WithMaxTokens(tokens int) CompletionOption {
	return func(p *CompletionProvider) {
		if tokens > 0 {
			p.maxTokens = tokens
		}
	}
}

// WithTemperature sets the default temperature.
func WithTemperature(temp float64) CompletionOption {
	return func(p *CompletionProvider) {
		p.temperature = temp
	}
}

type usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

func (u usage) toLLM() llm.TokenUsage {
	return llm.TokenUsage{
		PromptTokens:     u.PromptTokens,
		CompletionTokens: u.CompletionTokens,
		TotalTokens:      u.TotalTokens,
	}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []llm.Message `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
	Stream      bool          `json:"stream,omitempty"`
}

type chatChoice struct {
	Message      llm.Message `json:"message"`
	Delta        llm.Message `json:"delta"`
	FinishReason string      `json:"finish_reason"`
}

type chatResponse struct {
	Choices []chatChoice `json:"choices"`
	Usage   *usage       `json:"usage,omitempty"`
}

func (p *CompletionProvider) newRequest(req llm.CompletionRequest, stream bool) chatRequest {
	cr := chatRequest{
		Model:       p.model,
		MaxTokens:   p.maxTokens,
		Temperature: p.temperature,
		Stream:      stream,
	}
	if req.MaxTokens > 0 {
		cr.MaxTokens = req.MaxTokens
	}
	if req.Temperature >= 0 {
		cr.Temperature = req.Temperature
	}

	cr.Messages = make([]llm.Message, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		cr.Messages = append(cr.Messages, llm.Message{Role: llm.RoleSystem, Content: req.SystemPrompt})
	}
	cr.Messages = append(cr.Messages, req.Messages...)
	return cr
}

// Complete generates a non-streaming completion.
func (p *CompletionProvider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	var resp chatResponse
	if err := p.client.postJSON(ctx, "/chat/completions", p.newRequest(req, false), &resp); err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, &llm.Error{Code: llm.ErrCodeBadResponse, Message: "no completion returned"}
	}

	out := &llm.CompletionResponse{
		Content:      resp.Choices[0].Message.Content,
		FinishReason: resp.Choices[0].FinishReason,
	}
	if resp.Usage != nil {
		out.Usage = resp.Usage.toLLM()
	}
	return out, nil
}

// CompleteStream generates a streaming completion from the server-sent
// events of the chat completions endpoint.
func (p *CompletionProvider) CompleteStream(ctx context.Context, req llm.CompletionRequest) (<-chan llm.StreamChunk, <-chan error) {
	chunks := make(chan llm.StreamChunk)
	errs := make(chan error, 1)

	go func() {
		defer close(errs)
		defer close(chunks)

		resp, err := p.client.post(ctx, "/chat/completions", p.newRequest(req, true))
		if err != nil {
			errs <- err
			return
		}
		defer func() { _ = resp.Body.Close() }()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64<<10), 1<<20)
		for scanner.Scan() {
			data, ok := strings.CutPrefix(scanner.Text(), "data: ")
			if !ok {
				continue
			}
			if data == "[DONE]" {
				return
			}

			var event chatResponse
			if err := json.Unmarshal([]byte(data), &event); err != nil || len(event.Choices) == 0 {
				continue
			}

			chunk := llm.StreamChunk{
				Content:      event.Choices[0].Delta.Content,
				FinishReason: event.Choices[0].FinishReason,
			}
			if event.Usage != nil {
				u := event.Usage.toLLM()
				chunk.Usage = &u
			}

			select {
			case chunks <- chunk:
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			}
		}
		if err := scanner.Err(); err != nil {
			errs <- fmt.Errorf("stream read error: %w", err)
		}
	}()

	return chunks, errs
}

// ModelName returns the model name.
func (p *CompletionProvider) ModelName() string {
	return p.model
}

var _ llm.CompletionProvider = (*CompletionProvider)(nil)

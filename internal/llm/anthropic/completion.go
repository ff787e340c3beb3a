//-------------------------------------------------------------------------
//
// pgEdge RAG Assistant
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package anthropic

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

// NewCompletionProvider creates a completion provider using client.
func NewCompletionProvider(client *Client, opts ...CompletionOption) *CompletionProvider {
	p := &CompletionProvider{
		client:      client,
		model:       defaultModel,
		maxTokens:   4096,
		temperature: 0.7,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// WithCompletionModel sets the model. An empty value keeps the default.
func WithCompletionModel(model string) CompletionOption {
	return func(p *CompletionProvider) {
		if model != "" {
			p.model = model
		}
	}
}

// WithMaxTokens sets the default max tokens.
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

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesRequest struct {
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	System      string    `json:"system,omitempty"`
	Messages    []message `json:"messages"`
	Temperature float64   `json:"temperature"`
	Stream      bool      `json:"stream,omitempty"`
}

type usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

func tokenUsage(in, out int) llm.TokenUsage {
	return llm.TokenUsage{PromptTokens: in, CompletionTokens: out, TotalTokens: in + out}
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      usage  `json:"usage"`
}

type streamEvent struct {
	Type  string `json:"type"`
	Delta *struct {
		Type       string `json:"type"`
		Text       string `json:"text"`
		StopReason string `json:"stop_reason"`
	} `json:"delta,omitempty"`
	Message *struct {
		Usage usage `json:"usage"`
	} `json:"message,omitempty"`
	Usage *usage `json:"usage,omitempty"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// newRequest converts req to the Messages API shape. System-role turns
// are folded into the system prompt since the API accepts only user
// and assistant messages.
func (p *CompletionProvider) newRequest(req llm.CompletionRequest, stream bool) messagesRequest {
	mr := messagesRequest{
		Model:       p.model,
		MaxTokens:   p.maxTokens,
		Temperature: p.temperature,
		Stream:      stream,
		Messages:    make([]message, 0, len(req.Messages)),
	}
	if req.MaxTokens > 0 {
		mr.MaxTokens = req.MaxTokens
	}
	if req.Temperature >= 0 {
		mr.Temperature = req.Temperature
	}

	var system []string
	if req.SystemPrompt != "" {
		system = append(system, req.SystemPrompt)
	}
	for _, m := range req.Messages {
		if m.Role == llm.RoleSystem {
			system = append(system, m.Content)
			continue
		}
		mr.Messages = append(mr.Messages, message{Role: m.Role, Content: m.Content})
	}
	mr.System = strings.Join(system, "\n\n")
	return mr
}

// Complete generates a non-streaming completion.
func (p *CompletionProvider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	resp, err := p.client.post(ctx, "/messages", p.newRequest(req, false))
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	var mr messagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&mr); err != nil {
		return nil, &llm.Error{Code: llm.ErrCodeBadResponse, Message: "failed to parse response: " + err.Error()}
	}

	var content strings.Builder
	for _, c := range mr.Content {
		if c.Type == "text" {
			content.WriteString(c.Text)
		}
	}

	return &llm.CompletionResponse{
		Content:      content.String(),
		FinishReason: mr.StopReason,
		Usage:        tokenUsage(mr.Usage.InputTokens, mr.Usage.OutputTokens),
	}, nil
}

// CompleteStream generates a streaming completion.
func (p *CompletionProvider) CompleteStream(ctx context.Context, req llm.CompletionRequest) (<-chan llm.StreamChunk, <-chan error) {
	chunks := make(chan llm.StreamChunk)
	errs := make(chan error, 1)

	go func() {
		defer close(errs)
		defer close(chunks)

		resp, err := p.client.post(ctx, "/messages", p.newRequest(req, true))
		if err != nil {
			errs <- err
			return
		}
		defer func() { _ = resp.Body.Close() }()

		send := func(c llm.StreamChunk) bool {
			select {
			case chunks <- c:
				return true
			case <-ctx.Done():
				errs <- ctx.Err()
				return false
			}
		}

		var inputTokens, outputTokens int
		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64<<10), 1<<20)
		for scanner.Scan() {
			data, ok := strings.CutPrefix(scanner.Text(), "data: ")
			if !ok || data == "" {
				continue
			}

			var event streamEvent
			if err := json.Unmarshal([]byte(data), &event); err != nil {
				continue
			}

			switch event.Type {
			case "message_start":
				if event.Message != nil {
					inputTokens = event.Message.Usage.InputTokens
				}
			case "content_block_delta":
				if event.Delta != nil && event.Delta.Type == "text_delta" {
					if !send(llm.StreamChunk{Content: event.Delta.Text}) {
						return
					}
				}
			case "message_delta":
				if event.Usage != nil {
					outputTokens = event.Usage.OutputTokens
				}
				if event.Delta != nil && event.Delta.StopReason != "" {
					u := tokenUsage(inputTokens, outputTokens)
					if !send(llm.StreamChunk{FinishReason: event.Delta.StopReason, Usage: &u}) {
						return
					}
				}
			case "error":
				msg := "stream error"
				if event.Error != nil {
					msg = event.Error.Message
				}
				errs <- &llm.Error{Code: llm.ErrCodeModelError, Message: msg, Retryable: true}
				return
			case "message_stop":
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

//-------------------------------------------------------------------------
//
// pgEdge RAG Assistant
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package ollama

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"

	"github.com/pgEdge/pgedge-rag-assistant/internal/llm"
)

// CompletionProvider implements llm.CompletionProvider using /api/chat.
type CompletionProvider struct {
	client      *Client
	model       string
	temperature float64
}

// CompletionOption configures the completion provider.
type CompletionOption func(*CompletionProvider)

// NewCompletionProvider creates a new Ollama completion provider.
func NewCompletionProvider(client *Client, opts ...CompletionOption) *CompletionProvider {
	p := &CompletionProvider{client: client, model: defaultChatModel}
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

// WithTemperature sets the default temperature.
func WithTemperature(temp float64) CompletionOption {
	return func(p *CompletionProvider) {
		p.temperature = temp
	}
}

type chatOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []llm.Message `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  chatOptions   `json:"options"`
}

// chatResponse is a whole reply, or one NDJSON line when streaming.
type chatResponse struct {
	Message         llm.Message `json:"message"`
	Done            bool        `json:"done"`
	DoneReason      string      `json:"done_reason"`
	PromptEvalCount int         `json:"prompt_eval_count"`
	EvalCount       int         `json:"eval_count"`
	Error           string      `json:"error"`
}

func (r chatResponse) usage() llm.TokenUsage {
	return llm.TokenUsage{
		PromptTokens:     r.PromptEvalCount,
		CompletionTokens: r.EvalCount,
		TotalTokens:      r.PromptEvalCount + r.EvalCount,
	}
}

func (p *CompletionProvider) newRequest(req llm.CompletionRequest, stream bool) chatRequest {
	cr := chatRequest{
		Model:   p.model,
		Stream:  stream,
		Options: chatOptions{Temperature: p.temperature, NumPredict: req.MaxTokens},
	}
	if req.Temperature >= 0 {
		cr.Options.Temperature = req.Temperature
	}
	if req.SystemPrompt != "" {
		cr.Messages = append(cr.Messages, llm.Message{Role: llm.RoleSystem, Content: req.SystemPrompt})
	}
	cr.Messages = append(cr.Messages, req.Messages...)
	return cr
}

// Complete generates a non-streaming completion.
func (p *CompletionProvider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	resp, err := p.client.post(ctx, "/api/chat", p.newRequest(req, false))
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &llm.Error{Code: llm.ErrCodeBadResponse, Message: "failed to parse response: " + err.Error()}
	}
	if out.Error != "" {
		return nil, &llm.Error{Code: llm.ErrCodeModelError, Message: out.Error}
	}

	return &llm.CompletionResponse{
		Content:      out.Message.Content,
		FinishReason: out.DoneReason,
		Usage:        out.usage(),
	}, nil
}

// CompleteStream generates a streaming completion. Ollama streams one
// JSON object per line.
func (p *CompletionProvider) CompleteStream(ctx context.Context, req llm.CompletionRequest) (<-chan llm.StreamChunk, <-chan error) {
	chunks := make(chan llm.StreamChunk)
	errs := make(chan error, 1)

	go func() {
		defer close(errs)
		defer close(chunks)

		resp, err := p.client.post(ctx, "/api/chat", p.newRequest(req, true))
		if err != nil {
			errs <- err
			return
		}
		defer func() { _ = resp.Body.Close() }()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64<<10), 1<<20)
		for scanner.Scan() {
			var line chatResponse
			if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
				continue
			}
			if line.Error != "" {
				errs <- &llm.Error{Code: llm.ErrCodeModelError, Message: line.Error}
				return
			}

			chunk := llm.StreamChunk{Content: line.Message.Content}
			if line.Done {
				chunk.FinishReason = line.DoneReason
				u := line.usage()
				chunk.Usage = &u
			}

			select {
			case chunks <- chunk:
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			}
			if line.Done {
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

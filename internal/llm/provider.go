//-------------------------------------------------------------------------
//
// pgEdge RAG Assistant
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package llm defines the embedding and generation backends consumed by
// the answer pipeline. Concrete backends live in the sub-packages.
package llm

import (
	"context"
	"errors"
	"fmt"
)

// EmbeddingProvider generates vector embeddings from text.
type EmbeddingProvider interface {
	// Embed generates an embedding vector for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts, in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the dimensionality of embeddings produced.
	Dimensions() int

	// ModelName returns the name of the model being used.
	ModelName() string
}

// CompletionProvider is a generation backend. Complete is the blocking
// single-shot call; CompleteStream yields fragments incrementally.
type CompletionProvider interface {
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// CompleteStream returns a chunk channel that is closed when the
	// response ends, and an error channel that receives at most one
	// error and is closed after the chunk channel.
	CompleteStream(ctx context.Context, req CompletionRequest) (<-chan StreamChunk, <-chan error)

	ModelName() string
}

// Roles used in Message.Role.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// CompletionRequest is a chat completion request.
type CompletionRequest struct {
	// SystemPrompt is sent ahead of Messages when non-empty.
	SystemPrompt string

	Messages []Message

	// MaxTokens of 0 uses the provider's default.
	MaxTokens int

	// Temperature below zero uses the provider's default.
	Temperature float64
}

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionResponse is a non-streaming completion result.
type CompletionResponse struct {
	Content      string
	FinishReason string
	Usage        TokenUsage
}

// StreamChunk is one fragment of a streamed completion.
type StreamChunk struct {
	Content      string
	FinishReason string // set on the final chunk only
	Usage        *TokenUsage
}

// TokenUsage reports token consumption for a request.
type TokenUsage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Error is a backend failure with a classification code.
type Error struct {
	Code       string
	Message    string
	StatusCode int
	Retryable  bool
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s (status %d): %s", e.Code, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error codes.
const (
	ErrCodeRateLimit    = "rate_limit"
	ErrCodeInvalidKey   = "invalid_api_key"
	ErrCodeModelError   = "model_error"
	ErrCodeNetworkError = "network_error"
	ErrCodeBadResponse  = "bad_response"
)

// NewHTTPError classifies a non-2xx backend response.
func NewHTTPError(status int, message string) *Error {
	e := &Error{Code: ErrCodeModelError, Message: message, StatusCode: status}
	switch {
	case status == 401 || status == 403:
		e.Code = ErrCodeInvalidKey
	case status == 429:
		e.Code = ErrCodeRateLimit
		e.Retryable = true
	case status >= 500:
		e.Retryable = true
	}
	return e
}

// IsRetryable reports whether err wraps a retryable backend Error.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}

// Collect drains a stream into a single string. It returns the text
// received so far together with the first error.
func Collect(chunks <-chan StreamChunk, errs <-chan error) (string, error) {
	var out []byte
	for c := range chunks {
		out = append(out, c.Content...)
	}
	if err, ok := <-errs; ok && err != nil {
		return string(out), err
	}
	return string(out), nil
}

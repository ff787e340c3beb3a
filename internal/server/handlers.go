//-------------------------------------------------------------------------
//
// pgEdge RAG Assistant
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/pgEdge/pgedge-rag-assistant/internal/llm"
	"github.com/pgEdge/pgedge-rag-assistant/internal/pipeline"
)

// maxChatBody bounds chat request bodies.
const maxChatBody = 1 << 20

// HealthResponse is the response for the health check endpoint.
type HealthResponse struct {
	Status   string         `json:"status"`
	Pipeline *pipeline.Info `json:"pipeline,omitempty"`
}

// HistoryMessage is one prior turn supplied by a stateless chat client.
type HistoryMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the body of POST /v1/chat. Stream defaults to true.
type ChatRequest struct {
	Query   string           `json:"query"`
	History []HistoryMessage `json:"history,omitempty"`
	Stream  *bool            `json:"stream,omitempty"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// handleHealth handles the GET /v1/health endpoint.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "healthy"}
	if s.pipeline != nil {
		info := s.pipeline.Info()
		resp.Pipeline = &info
	}
	s.respondJSON(w, http.StatusOK, resp)
}

// handleChat handles the stateless POST /v1/chat endpoint.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if !s.decodeJSON(w, r, maxChatBody, &req) {
		return
	}

	if strings.TrimSpace(req.Query) == "" {
		s.respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "query is required")
		return
	}

	history := make([]llm.Message, 0, len(req.History))
	for _, m := range req.History {
		history = append(history, llm.Message{Role: m.Role, Content: m.Content})
	}

	events := s.pipeline.Run(r.Context(), pipeline.Request{
		Query:   req.Query,
		History: history,
	})

	if req.Stream == nil || *req.Stream {
		s.streamEvents(w, r, events, nil)
		return
	}

	resp := pipeline.Collect(events)
	if resp.Error != "" {
		s.requestLogger(r).Error("pipeline execution failed", "error", resp.Error)
		s.respondError(w, http.StatusInternalServerError, "EXECUTION_ERROR", resp.Error)
		return
	}
	s.respondJSON(w, http.StatusOK, resp)
}

// streamEvents writes events as Server-Sent Events until the channel
// closes. The channel is always drained so the pipeline's saver has run
// by the time this returns. after, when set, is called once the stream
// has ended successfully and may return a final frame.
func (s *Server) streamEvents(w http.ResponseWriter, r *http.Request,
	events <-chan pipeline.Event, after func() any) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		for range events {
		}
		s.respondError(w, http.StatusInternalServerError, "STREAMING_ERROR",
			"streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	connected := true
	failed := false
	for e := range events {
		if e.Kind == pipeline.KindError {
			failed = true
		}
		if connected {
			if err := s.sendSSE(w, flusher, e); err != nil {
				s.requestLogger(r).Debug("client disconnected during streaming", "error", err)
				connected = false
			}
		}
	}

	if !connected || failed || r.Context().Err() != nil || after == nil {
		return
	}
	if final := after(); final != nil {
		_ = s.sendSSE(w, flusher, final)
	}
}

// sendSSE sends one Server-Sent Event.
func (s *Server) sendSSE(w http.ResponseWriter, flusher http.Flusher, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("failed to marshal SSE event", "error", err)
		return nil
	}

	// SSE format: data: {json}\n\n
	if _, err := w.Write([]byte("data: " + string(data) + "\n\n")); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}

// decodeJSON decodes a bounded request body into v, responding with 400
// on failure.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, limit int64, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.respondError(w, http.StatusRequestEntityTooLarge, "REQUEST_TOO_LARGE",
				"request body too large")
			return false
		}
		s.respondError(w, http.StatusBadRequest, "INVALID_REQUEST",
			"invalid request body: "+err.Error())
		return false
	}
	return true
}

// respondJSON sends a JSON response with RFC 8631 Link header for API discovery.
func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Link", `</v1/openapi.json>; rel="service-desc"`)
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

// respondError sends an error response.
func (s *Server) respondError(w http.ResponseWriter, status int, code, message string) {
	s.respondJSON(w, status, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	})
}

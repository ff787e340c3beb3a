//-------------------------------------------------------------------------
//
// pgEdge RAG Assistant
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package server provides the HTTP API of the assistant: streamed chat,
// conversation history and document ingestion.
package server

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/pgEdge/pgedge-rag-assistant/internal/config"
	"github.com/pgEdge/pgedge-rag-assistant/internal/conversation"
	"github.com/pgEdge/pgedge-rag-assistant/internal/metrics"
	"github.com/pgEdge/pgedge-rag-assistant/internal/pipeline"
)

// Pipeline answers questions.
type Pipeline interface {
	Run(ctx context.Context, req pipeline.Request) <-chan pipeline.Event
	Info() pipeline.Info
}

// ConversationStore persists conversations and their messages.
type ConversationStore interface {
	CreateConversation(ctx context.Context, title string) (*conversation.Conversation, error)
	ListConversations(ctx context.Context, skip, limit int) ([]conversation.Conversation, error)
	GetConversation(ctx context.Context, id string) (*conversation.Conversation, error)
	UpdateTitle(ctx context.Context, id, title string) (*conversation.Conversation, error)
	DeleteConversation(ctx context.Context, id string) error
	AddMessage(ctx context.Context, conversationID, role, content string, sources any) (*conversation.Message, error)
	GetMessages(ctx context.Context, conversationID string) ([]conversation.Message, error)
	DeleteMessage(ctx context.Context, conversationID string, messageID uint) error
}

// DocumentService ingests and removes corpus documents.
type DocumentService interface {
	Ingest(ctx context.Context, filename, content string) (*conversation.Document, error)
	List(ctx context.Context) ([]conversation.Document, error)
	Preview(ctx context.Context, id string) (*conversation.Document, error)
	Delete(ctx context.Context, id string) error
}

// Options holds the server's collaborators. Conversations and Documents
// may be nil, in which case their routes are not registered.
type Options struct {
	Pipeline      Pipeline
	Conversations ConversationStore
	Documents     DocumentService
	Metrics       *metrics.Collector
	Logger        *slog.Logger
}

// Server is the HTTP server for the assistant API.
type Server struct {
	config        *config.Config
	pipeline      Pipeline
	conversations ConversationStore
	documents     DocumentService
	metrics       *metrics.Collector
	logger        *slog.Logger
	server        *http.Server
	mux           *http.ServeMux
}

// New creates a new HTTP server.
func New(cfg *config.Config, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		config:        cfg,
		pipeline:      opts.Pipeline,
		conversations: opts.Conversations,
		documents:     opts.Documents,
		metrics:       opts.Metrics,
		logger:        logger.With("component", "server"),
		mux:           http.NewServeMux(),
	}

	s.setupRoutes()

	return s
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return s.applyMiddleware(s.mux)
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.ListenAddress, s.config.Server.Port)

	// No write timeout: answer streams are bounded by the generation
	// timeout instead.
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	s.logger.Info("starting server",
		"address", addr,
		"tls", s.config.Server.TLS.Enabled)

	if s.config.Server.TLS.Enabled {
		return s.serveTLS()
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	return s.server.Serve(listener)
}

func (s *Server) serveTLS() error {
	s.server.TLSConfig = &tls.Config{
		MinVersion: tls.VersionTLS12,
	}

	return s.server.ListenAndServeTLS(
		s.config.Server.TLS.CertFile,
		s.config.Server.TLS.KeyFile,
	)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")

	if s.server != nil {
		return s.server.Shutdown(ctx)
	}

	return nil
}

// Addr returns the server's address. Returns empty string if not started.
func (s *Server) Addr() string {
	if s.server != nil {
		return s.server.Addr
	}
	return ""
}

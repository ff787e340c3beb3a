//-------------------------------------------------------------------------
//
// pgEdge RAG Assistant
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package server

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("GET /v1/openapi.json", s.handleOpenAPI)
	s.mux.HandleFunc("GET /v1/health", s.handleHealth)
	s.mux.HandleFunc("POST /v1/chat", s.handleChat)

	if s.conversations != nil {
		s.mux.HandleFunc("GET /v1/conversations", s.handleListConversations)
		s.mux.HandleFunc("POST /v1/conversations", s.handleCreateConversation)
		s.mux.HandleFunc("GET /v1/conversations/{id}", s.handleGetConversation)
		s.mux.HandleFunc("PATCH /v1/conversations/{id}", s.handleUpdateConversation)
		s.mux.HandleFunc("DELETE /v1/conversations/{id}", s.handleDeleteConversation)
		s.mux.HandleFunc("DELETE /v1/conversations/{id}/messages/{messageId}", s.handleDeleteMessage)
		s.mux.HandleFunc("POST /v1/conversations/{id}/chat", s.handleConversationChat)
	}

	if s.documents != nil {
		s.mux.HandleFunc("GET /v1/documents", s.handleListDocuments)
		s.mux.HandleFunc("POST /v1/documents", s.handleUploadDocument)
		s.mux.HandleFunc("GET /v1/documents/{id}/preview", s.handlePreviewDocument)
		s.mux.HandleFunc("DELETE /v1/documents/{id}", s.handleDeleteDocument)
	}

	if s.metrics != nil && s.config.Metrics.Enabled {
		path := s.config.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		s.mux.Handle("GET "+path, s.metrics.Handler())
	}
}

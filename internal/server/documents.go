//-------------------------------------------------------------------------
//
// pgEdge RAG Assistant
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package server

import (
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strings"

	"github.com/pgEdge/pgedge-rag-assistant/internal/conversation"
	"github.com/pgEdge/pgedge-rag-assistant/internal/ingest"
)

// maxDocumentBody bounds uploaded documents.
const maxDocumentBody = 32 << 20

// UploadRequest is the body of POST /v1/documents.
type UploadRequest struct {
	Filename string `json:"filename"`
	Content  string `json:"content"`
}

// UploadResponse reports an ingested document.
type UploadResponse struct {
	Message  string                 `json:"message"`
	Chunks   int                    `json:"chunks"`
	Document *conversation.Document `json:"document"`
}

func (s *Server) handleUploadDocument(w http.ResponseWriter, r *http.Request) {
	var req UploadRequest
	if !s.decodeJSON(w, r, maxDocumentBody, &req) {
		return
	}
	if strings.TrimSpace(req.Filename) == "" {
		s.respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "filename is required")
		return
	}

	doc, err := s.documents.Ingest(r.Context(), req.Filename, req.Content)
	if errors.Is(err, ingest.ErrEmptyDocument) {
		s.respondError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	if err != nil {
		s.requestLogger(r).Error("document ingestion failed",
			"filename", req.Filename,
			"error", err)
		s.respondError(w, http.StatusInternalServerError, "INGEST_ERROR", err.Error())
		return
	}

	s.respondJSON(w, http.StatusCreated, UploadResponse{
		Message:  fmt.Sprintf("Successfully processed %s", doc.Filename),
		Chunks:   doc.ChunkCount,
		Document: doc,
	})
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.documents.List(r.Context())
	if err != nil {
		s.internalError(w, r, "failed to list documents", err)
		return
	}
	if docs == nil {
		docs = []conversation.Document{}
	}
	s.respondJSON(w, http.StatusOK, docs)
}

// handlePreviewDocument serves the uploaded text of a document inline.
func (s *Server) handlePreviewDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.documents.Preview(r.Context(), r.PathValue("id"))
	if errors.Is(err, conversation.ErrDocumentNotFound) {
		s.respondError(w, http.StatusNotFound, "DOCUMENT_NOT_FOUND", "document not found")
		return
	}
	if err != nil {
		s.internalError(w, r, "failed to load document", err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition",
		mime.FormatMediaType("inline", map[string]string{"filename": doc.Filename}))
	w.Header().Set("Link", `</v1/openapi.json>; rel="service-desc"`)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(doc.Content)); err != nil {
		s.requestLogger(r).Debug("failed to write preview", "error", err)
	}
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	err := s.documents.Delete(r.Context(), r.PathValue("id"))
	if errors.Is(err, conversation.ErrDocumentNotFound) {
		s.respondError(w, http.StatusNotFound, "DOCUMENT_NOT_FOUND", "document not found")
		return
	}
	if err != nil {
		s.internalError(w, r, "failed to delete document", err)
		return
	}
	s.respondJSON(w, http.StatusOK, OKResponse{OK: true})
}

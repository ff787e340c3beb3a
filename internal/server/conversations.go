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
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pgEdge/pgedge-rag-assistant/internal/conversation"
	"github.com/pgEdge/pgedge-rag-assistant/internal/llm"
	"github.com/pgEdge/pgedge-rag-assistant/internal/pipeline"
)

// saveTimeout bounds persisting an answer after the request has ended.
const saveTimeout = 10 * time.Second

// ConversationRequest is the body for creating or renaming a conversation.
type ConversationRequest struct {
	Title string `json:"title"`
}

// ConversationChatRequest is the body of POST /v1/conversations/{id}/chat.
type ConversationChatRequest struct {
	Query string `json:"query"`
}

// SavedMessages is the last frame of a conversation chat stream.
type SavedMessages struct {
	MessageID     uint `json:"message_id"`
	UserMessageID uint `json:"user_message_id"`
}

// OKResponse acknowledges a deletion.
type OKResponse struct {
	OK bool `json:"ok"`
}

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	skip, err := queryInt(r, "skip", 0)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	limit, err := queryInt(r, "limit", conversation.DefaultListLimit)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	convs, err := s.conversations.ListConversations(r.Context(), skip, limit)
	if err != nil {
		s.internalError(w, r, "failed to list conversations", err)
		return
	}
	if convs == nil {
		convs = []conversation.Conversation{}
	}
	s.respondJSON(w, http.StatusOK, convs)
}

func (s *Server) handleCreateConversation(w http.ResponseWriter, r *http.Request) {
	var req ConversationRequest
	if !s.decodeJSON(w, r, maxChatBody, &req) {
		return
	}

	c, err := s.conversations.CreateConversation(r.Context(), req.Title)
	if err != nil {
		s.internalError(w, r, "failed to create conversation", err)
		return
	}
	s.respondJSON(w, http.StatusCreated, c)
}

func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	c, err := s.conversations.GetConversation(r.Context(), r.PathValue("id"))
	if err != nil {
		s.conversationError(w, r, err)
		return
	}
	if c.Messages == nil {
		c.Messages = []conversation.Message{}
	}
	s.respondJSON(w, http.StatusOK, c)
}

func (s *Server) handleUpdateConversation(w http.ResponseWriter, r *http.Request) {
	var req ConversationRequest
	if !s.decodeJSON(w, r, maxChatBody, &req) {
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		s.respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "title is required")
		return
	}

	c, err := s.conversations.UpdateTitle(r.Context(), r.PathValue("id"), req.Title)
	if err != nil {
		s.conversationError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, c)
}

func (s *Server) handleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	if err := s.conversations.DeleteConversation(r.Context(), r.PathValue("id")); err != nil {
		s.conversationError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, OKResponse{OK: true})
}

func (s *Server) handleDeleteMessage(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(r.PathValue("messageId"), 10, 64)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "invalid message id")
		return
	}

	err = s.conversations.DeleteMessage(r.Context(), r.PathValue("id"), uint(id))
	if err != nil {
		s.conversationError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, OKResponse{OK: true})
}

// handleConversationChat stores the user's question, streams the answer
// and stores the assistant's reply. An interrupted answer is stored as
// far as it got.
func (s *Server) handleConversationChat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	var req ConversationChatRequest
	if !s.decodeJSON(w, r, maxChatBody, &req) {
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		s.respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "query is required")
		return
	}

	if _, err := s.conversations.GetConversation(ctx, id); err != nil {
		s.conversationError(w, r, err)
		return
	}

	userMsg, err := s.conversations.AddMessage(ctx, id, conversation.RoleUser, req.Query, nil)
	if err != nil {
		s.conversationError(w, r, err)
		return
	}

	prior, err := s.conversations.GetMessages(ctx, id)
	if err != nil {
		s.internalError(w, r, "failed to load history", err)
		return
	}
	history := make([]llm.Message, 0, len(prior))
	for _, m := range prior {
		if m.ID == userMsg.ID {
			continue
		}
		history = append(history, llm.Message{Role: m.Role, Content: m.Content})
	}

	log := s.requestLogger(r)
	var saved *conversation.Message
	saver := pipeline.PartialSaverFunc(func(answer string, sources []pipeline.SourceRef, runErr error) {
		if runErr != nil && answer == "" {
			return
		}
		var src any
		if len(sources) > 0 {
			src = sources
		}

		saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), saveTimeout)
		defer cancel()
		msg, err := s.conversations.AddMessage(saveCtx, id, conversation.RoleAssistant, answer, src)
		if err != nil {
			log.Error("failed to save assistant message",
				"conversation", id,
				"error", err)
			return
		}
		if runErr != nil {
			log.Info("saved partial answer",
				"conversation", id,
				"reason", runErr)
		}
		saved = msg
	})

	events := s.pipeline.Run(ctx, pipeline.Request{
		Query:   req.Query,
		History: history,
		Saver:   saver,
	})

	s.streamEvents(w, r, events, func() any {
		if saved == nil {
			return nil
		}
		return SavedMessages{MessageID: saved.ID, UserMessageID: userMsg.ID}
	})
}

// conversationError maps store errors onto HTTP responses.
func (s *Server) conversationError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, conversation.ErrConversationNotFound):
		s.respondError(w, http.StatusNotFound, "CONVERSATION_NOT_FOUND", "conversation not found")
	case errors.Is(err, conversation.ErrMessageNotFound):
		s.respondError(w, http.StatusNotFound, "MESSAGE_NOT_FOUND", "message not found")
	default:
		s.internalError(w, r, "conversation store failed", err)
	}
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	s.requestLogger(r).Error(msg, "error", err)
	s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
}

// queryInt parses an optional non-negative integer query parameter.
func queryInt(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, errors.New("invalid " + name + " parameter")
	}
	return n, nil
}

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
	"net/http"
)

// OpenAPISpec represents the OpenAPI v3 specification.
type OpenAPISpec struct {
	OpenAPI    string                 `json:"openapi"`
	Info       OpenAPIInfo            `json:"info"`
	Servers    []OpenAPIServer        `json:"servers"`
	Paths      map[string]OpenAPIPath `json:"paths"`
	Components OpenAPIComponents      `json:"components"`
}

// OpenAPIInfo contains API metadata.
type OpenAPIInfo struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Version     string `json:"version"`
}

// OpenAPIServer describes a server.
type OpenAPIServer struct {
	URL         string `json:"url"`
	Description string `json:"description"`
}

// OpenAPIPath contains operations for a path.
type OpenAPIPath struct {
	Get    *OpenAPIOperation `json:"get,omitempty"`
	Post   *OpenAPIOperation `json:"post,omitempty"`
	Patch  *OpenAPIOperation `json:"patch,omitempty"`
	Delete *OpenAPIOperation `json:"delete,omitempty"`
}

// OpenAPIOperation describes an API operation.
type OpenAPIOperation struct {
	Summary     string                     `json:"summary"`
	Description string                     `json:"description,omitempty"`
	OperationID string                     `json:"operationId"`
	Tags        []string                   `json:"tags,omitempty"`
	Parameters  []OpenAPIParameter         `json:"parameters,omitempty"`
	RequestBody *OpenAPIRequestBody        `json:"requestBody,omitempty"`
	Responses   map[string]OpenAPIResponse `json:"responses"`
}

// OpenAPIParameter describes a parameter.
type OpenAPIParameter struct {
	Name        string        `json:"name"`
	In          string        `json:"in"`
	Description string        `json:"description,omitempty"`
	Required    bool          `json:"required"`
	Schema      OpenAPISchema `json:"schema"`
}

// OpenAPIRequestBody describes a request body.
type OpenAPIRequestBody struct {
	Description string                      `json:"description,omitempty"`
	Required    bool                        `json:"required"`
	Content     map[string]OpenAPIMediaType `json:"content"`
}

// OpenAPIResponse describes a response.
type OpenAPIResponse struct {
	Description string                      `json:"description"`
	Content     map[string]OpenAPIMediaType `json:"content,omitempty"`
}

// OpenAPIMediaType describes a media type.
type OpenAPIMediaType struct {
	Schema OpenAPISchema `json:"schema"`
}

// OpenAPISchema describes a schema.
type OpenAPISchema struct {
	Type        string                   `json:"type,omitempty"`
	Format      string                   `json:"format,omitempty"`
	Description string                   `json:"description,omitempty"`
	Properties  map[string]OpenAPISchema `json:"properties,omitempty"`
	Items       *OpenAPISchema           `json:"items,omitempty"`
	Required    []string                 `json:"required,omitempty"`
	Default     any                      `json:"default,omitempty"`
	Enum        []string                 `json:"enum,omitempty"`
	Ref         string                   `json:"$ref,omitempty"`
}

// OpenAPIComponents contains reusable components.
type OpenAPIComponents struct {
	Schemas map[string]OpenAPISchema `json:"schemas"`
}

// handleOpenAPI handles the GET /v1/openapi.json endpoint.
func (s *Server) handleOpenAPI(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, BuildOpenAPISpec())
}

func ref(name string) OpenAPISchema {
	return OpenAPISchema{Ref: "#/components/schemas/" + name}
}

func arrayOf(name string) OpenAPISchema {
	item := ref(name)
	return OpenAPISchema{Type: "array", Items: &item}
}

func str(desc string) OpenAPISchema {
	return OpenAPISchema{Type: "string", Description: desc}
}

func jsonBody(desc string, schema OpenAPISchema) *OpenAPIRequestBody {
	return &OpenAPIRequestBody{
		Description: desc,
		Required:    true,
		Content:     map[string]OpenAPIMediaType{"application/json": {Schema: schema}},
	}
}

func jsonResponse(desc string, schema OpenAPISchema) OpenAPIResponse {
	return OpenAPIResponse{
		Description: desc,
		Content:     map[string]OpenAPIMediaType{"application/json": {Schema: schema}},
	}
}

func sseResponse(desc string) OpenAPIResponse {
	return OpenAPIResponse{
		Description: desc,
		Content: map[string]OpenAPIMediaType{
			"text/event-stream": {Schema: OpenAPISchema{
				Type: "string",
				Description: "Server-Sent Events; each data frame is one of " +
					"{status}, {answer}, {sources} or {error}",
			}},
		},
	}
}

// withErrors adds the shared error responses for the given status codes.
func withErrors(responses map[string]OpenAPIResponse, codes ...string) map[string]OpenAPIResponse {
	desc := map[string]string{
		"400": "Invalid request",
		"404": "Not found",
		"500": "Server error",
	}
	for _, c := range codes {
		responses[c] = jsonResponse(desc[c], ref("ErrorResponse"))
	}
	return responses
}

func pathParam(name, desc string) OpenAPIParameter {
	return OpenAPIParameter{Name: name, In: "path", Description: desc, Required: true, Schema: OpenAPISchema{Type: "string"}}
}

func queryParam(name, desc string, def int) OpenAPIParameter {
	return OpenAPIParameter{Name: name, In: "query", Description: desc, Schema: OpenAPISchema{Type: "integer", Default: def}}
}

// BuildOpenAPISpec constructs the OpenAPI v3 specification.
// This is exported so it can be used to generate static documentation.
func BuildOpenAPISpec() OpenAPISpec {
	convID := pathParam("id", "Conversation ID")

	return OpenAPISpec{
		OpenAPI: "3.0.3",
		Info: OpenAPIInfo{
			Title:       "pgEdge RAG Assistant API",
			Description: "Streamed question answering over a document corpus with web search fallback",
			Version:     "1.0.0",
		},
		Servers: []OpenAPIServer{
			{URL: "/v1", Description: "API v1"},
		},
		Paths: map[string]OpenAPIPath{
			"/health": {
				Get: &OpenAPIOperation{
					Summary:     "Health check",
					Description: "Check that the server is running and report the active backends",
					OperationID: "getHealth",
					Tags:        []string{"System"},
					Responses: map[string]OpenAPIResponse{
						"200": jsonResponse("Server is healthy", ref("HealthResponse")),
					},
				},
			},
			"/chat": {
				Post: &OpenAPIOperation{
					Summary:     "Ask a question",
					Description: "Answer a question without storing it. Streams SSE unless stream is false.",
					OperationID: "chat",
					Tags:        []string{"Chat"},
					RequestBody: jsonBody("Question", ref("ChatRequest")),
					Responses: withErrors(map[string]OpenAPIResponse{
						"200": {
							Description: "Answer",
							Content: map[string]OpenAPIMediaType{
								"application/json":  {Schema: ref("ChatResponse")},
								"text/event-stream": sseResponse("").Content["text/event-stream"],
							},
						},
					}, "400", "500"),
				},
			},
			"/conversations": {
				Get: &OpenAPIOperation{
					Summary:     "List conversations",
					OperationID: "listConversations",
					Tags:        []string{"Conversations"},
					Parameters: []OpenAPIParameter{
						queryParam("skip", "Number of conversations to skip", 0),
						queryParam("limit", "Maximum number of conversations", 100),
					},
					Responses: withErrors(map[string]OpenAPIResponse{
						"200": jsonResponse("Conversations, most recently updated first", arrayOf("Conversation")),
					}, "400", "500"),
				},
				Post: &OpenAPIOperation{
					Summary:     "Create conversation",
					OperationID: "createConversation",
					Tags:        []string{"Conversations"},
					RequestBody: jsonBody("Conversation", ref("ConversationRequest")),
					Responses: withErrors(map[string]OpenAPIResponse{
						"201": jsonResponse("Created conversation", ref("Conversation")),
					}, "400", "500"),
				},
			},
			"/conversations/{id}": {
				Get: &OpenAPIOperation{
					Summary:     "Get conversation",
					Description: "Get a conversation with its messages",
					OperationID: "getConversation",
					Tags:        []string{"Conversations"},
					Parameters:  []OpenAPIParameter{convID},
					Responses: withErrors(map[string]OpenAPIResponse{
						"200": jsonResponse("Conversation", ref("Conversation")),
					}, "404", "500"),
				},
				Patch: &OpenAPIOperation{
					Summary:     "Rename conversation",
					OperationID: "updateConversation",
					Tags:        []string{"Conversations"},
					Parameters:  []OpenAPIParameter{convID},
					RequestBody: jsonBody("New title", ref("ConversationRequest")),
					Responses: withErrors(map[string]OpenAPIResponse{
						"200": jsonResponse("Updated conversation", ref("Conversation")),
					}, "400", "404", "500"),
				},
				Delete: &OpenAPIOperation{
					Summary:     "Delete conversation",
					OperationID: "deleteConversation",
					Tags:        []string{"Conversations"},
					Parameters:  []OpenAPIParameter{convID},
					Responses: withErrors(map[string]OpenAPIResponse{
						"200": jsonResponse("Deleted", ref("OKResponse")),
					}, "404", "500"),
				},
			},
			"/conversations/{id}/messages/{messageId}": {
				Delete: &OpenAPIOperation{
					Summary:     "Delete message",
					OperationID: "deleteMessage",
					Tags:        []string{"Conversations"},
					Parameters:  []OpenAPIParameter{convID, pathParam("messageId", "Message ID")},
					Responses: withErrors(map[string]OpenAPIResponse{
						"200": jsonResponse("Deleted", ref("OKResponse")),
					}, "400", "404", "500"),
				},
			},
			"/conversations/{id}/chat": {
				Post: &OpenAPIOperation{
					Summary: "Chat in a conversation",
					Description: "Store the question, stream the answer and store the reply. " +
						"A successful stream ends with a {message_id, user_message_id} frame.",
					OperationID: "conversationChat",
					Tags:        []string{"Conversations"},
					Parameters:  []OpenAPIParameter{convID},
					RequestBody: jsonBody("Question", ref("ConversationChatRequest")),
					Responses: withErrors(map[string]OpenAPIResponse{
						"200": sseResponse("Answer stream"),
					}, "400", "404", "500"),
				},
			},
			"/documents": {
				Get: &OpenAPIOperation{
					Summary:     "List documents",
					OperationID: "listDocuments",
					Tags:        []string{"Documents"},
					Responses: withErrors(map[string]OpenAPIResponse{
						"200": jsonResponse("Documents, newest first", arrayOf("Document")),
					}, "500"),
				},
				Post: &OpenAPIOperation{
					Summary:     "Upload document",
					Description: "Split a plain text document into chunks and add them to the corpus",
					OperationID: "uploadDocument",
					Tags:        []string{"Documents"},
					RequestBody: jsonBody("Document", ref("UploadRequest")),
					Responses: withErrors(map[string]OpenAPIResponse{
						"201": jsonResponse("Ingested document", ref("UploadResponse")),
					}, "400", "500"),
				},
			},
			"/documents/{id}": {
				Delete: &OpenAPIOperation{
					Summary:     "Delete document",
					Description: "Remove a document's chunks from the corpus and its record",
					OperationID: "deleteDocument",
					Tags:        []string{"Documents"},
					Parameters:  []OpenAPIParameter{pathParam("id", "Document ID")},
					Responses: withErrors(map[string]OpenAPIResponse{
						"200": jsonResponse("Deleted", ref("OKResponse")),
					}, "404", "500"),
				},
			},
			"/documents/{id}/preview": {
				Get: &OpenAPIOperation{
					Summary:     "Preview document",
					Description: "Return the uploaded text of a document, served inline",
					OperationID: "previewDocument",
					Tags:        []string{"Documents"},
					Parameters:  []OpenAPIParameter{pathParam("id", "Document ID")},
					Responses: withErrors(map[string]OpenAPIResponse{
						"200": {
							Description: "Document text",
							Content: map[string]OpenAPIMediaType{
								"text/plain": {Schema: str("Uploaded text")},
							},
						},
					}, "404", "500"),
				},
			},
		},
		Components: OpenAPIComponents{
			Schemas: map[string]OpenAPISchema{
				"HealthResponse": {
					Type: "object",
					Properties: map[string]OpenAPISchema{
						"status":   str("Health status"),
						"pipeline": ref("PipelineInfo"),
					},
					Required: []string{"status"},
				},
				"PipelineInfo": {
					Type: "object",
					Properties: map[string]OpenAPISchema{
						"mock_mode":       {Type: "boolean", Description: "Offline backends in use"},
						"llm_model":       str("Generation model"),
						"embedding_model": str("Embedding model"),
						"corpus_backend":  str("Corpus store backend"),
						"rerank":          str("Rerank provider"),
						"web_search":      str("Web search provider"),
					},
				},
				"HistoryMessage": {
					Type: "object",
					Properties: map[string]OpenAPISchema{
						"role":    {Type: "string", Enum: []string{"user", "assistant"}},
						"content": str("Message content"),
					},
					Required: []string{"role", "content"},
				},
				"ChatRequest": {
					Type: "object",
					Properties: map[string]OpenAPISchema{
						"query": str("The question to answer"),
						"history": {
							Type:        "array",
							Description: "Previous turns, oldest first",
							Items:       &OpenAPISchema{Ref: "#/components/schemas/HistoryMessage"},
						},
						"stream": {Type: "boolean", Description: "Stream Server-Sent Events", Default: true},
					},
					Required: []string{"query"},
				},
				"ChatResponse": {
					Type: "object",
					Properties: map[string]OpenAPISchema{
						"answer":  str("The generated answer"),
						"sources": arrayOf("Source"),
					},
					Required: []string{"answer", "sources"},
				},
				"Source": {
					Type: "object",
					Properties: map[string]OpenAPISchema{
						"type":     {Type: "string", Enum: []string{"file", "web"}},
						"title":    str("File name or page title"),
						"content":  str("Passage text"),
						"url":      str("Page URL for web sources"),
						"metadata": {Type: "object", Description: "Chunk metadata"},
					},
					Required: []string{"type", "title", "content", "metadata"},
				},
				"ConversationRequest": {
					Type: "object",
					Properties: map[string]OpenAPISchema{
						"title": str("Conversation title"),
					},
				},
				"ConversationChatRequest": {
					Type: "object",
					Properties: map[string]OpenAPISchema{
						"query": str("The question to answer"),
					},
					Required: []string{"query"},
				},
				"Conversation": {
					Type: "object",
					Properties: map[string]OpenAPISchema{
						"id":         str("Conversation ID"),
						"title":      str("Title"),
						"created_at": {Type: "string", Format: "date-time"},
						"updated_at": {Type: "string", Format: "date-time"},
						"messages":   arrayOf("Message"),
					},
					Required: []string{"id", "title", "created_at", "updated_at"},
				},
				"Message": {
					Type: "object",
					Properties: map[string]OpenAPISchema{
						"id":              {Type: "integer"},
						"conversation_id": str("Conversation ID"),
						"role":            {Type: "string", Enum: []string{"user", "assistant"}},
						"content":         str("Message content"),
						"sources":         arrayOf("Source"),
						"created_at":      {Type: "string", Format: "date-time"},
					},
					Required: []string{"id", "conversation_id", "role", "content"},
				},
				"UploadRequest": {
					Type: "object",
					Properties: map[string]OpenAPISchema{
						"filename": str("File name"),
						"content":  str("Plain text content"),
					},
					Required: []string{"filename", "content"},
				},
				"UploadResponse": {
					Type: "object",
					Properties: map[string]OpenAPISchema{
						"message":  str("Summary"),
						"chunks":   {Type: "integer", Description: "Number of chunks stored"},
						"document": ref("Document"),
					},
					Required: []string{"message", "chunks", "document"},
				},
				"Document": {
					Type: "object",
					Properties: map[string]OpenAPISchema{
						"id":          str("Document ID"),
						"filename":    str("File name"),
						"size":        {Type: "integer", Description: "Size in bytes"},
						"status":      {Type: "string", Enum: []string{"processing", "completed", "failed"}},
						"chunk_count": {Type: "integer"},
						"error":       str("Failure reason"),
						"created_at":  {Type: "string", Format: "date-time"},
					},
					Required: []string{"id", "filename", "status"},
				},
				"OKResponse": {
					Type: "object",
					Properties: map[string]OpenAPISchema{
						"ok": {Type: "boolean"},
					},
					Required: []string{"ok"},
				},
				"ErrorResponse": {
					Type: "object",
					Properties: map[string]OpenAPISchema{
						"error": ref("ErrorDetail"),
					},
					Required: []string{"error"},
				},
				"ErrorDetail": {
					Type: "object",
					Properties: map[string]OpenAPISchema{
						"code":    str("Error code"),
						"message": str("Error message"),
					},
					Required: []string{"code", "message"},
				},
			},
		},
	}
}

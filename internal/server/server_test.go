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
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/pgEdge/pgedge-rag-assistant/internal/config"
	"github.com/pgEdge/pgedge-rag-assistant/internal/conversation"
	"github.com/pgEdge/pgedge-rag-assistant/internal/corpus"
	"github.com/pgEdge/pgedge-rag-assistant/internal/ingest"
	"github.com/pgEdge/pgedge-rag-assistant/internal/llm/mock"
	"github.com/pgEdge/pgedge-rag-assistant/internal/metrics"
	"github.com/pgEdge/pgedge-rag-assistant/internal/pipeline"
)

// MockPipeline replays a fixed list of events, honouring cancellation
// and the request's saver the way the generator does.
type MockPipeline struct {
	Events []pipeline.Event

	mu       sync.Mutex
	Requests []pipeline.Request
}

func (m *MockPipeline) Run(ctx context.Context, req pipeline.Request) <-chan pipeline.Event {
	m.mu.Lock()
	m.Requests = append(m.Requests, req)
	m.mu.Unlock()

	events := m.Events
	if events == nil {
		events = defaultEvents()
	}

	ch := make(chan pipeline.Event)
	go func() {
		defer close(ch)

		var answer strings.Builder
		var sources []pipeline.SourceRef
		var err error
		defer func() {
			if req.Saver != nil {
				req.Saver.OnFinish(answer.String(), sources, err)
			}
		}()

		for _, e := range events {
			select {
			case ch <- e:
			case <-ctx.Done():
				err = ctx.Err()
				return
			}
			switch e.Kind {
			case pipeline.KindAnswer:
				answer.WriteString(e.Text)
			case pipeline.KindSources:
				sources = e.Sources
			case pipeline.KindError:
				err = errors.New(e.Text)
			}
		}
	}()
	return ch
}

func (m *MockPipeline) Info() pipeline.Info {
	return pipeline.Info{MockMode: true, LLMModel: "mock", EmbeddingModel: "mock"}
}

func (m *MockPipeline) lastRequest(t *testing.T) pipeline.Request {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Requests) == 0 {
		t.Fatal("pipeline was not called")
	}
	return m.Requests[len(m.Requests)-1]
}

func defaultEvents() []pipeline.Event {
	return []pipeline.Event{
		pipeline.StatusEvent("正在检索..."),
		pipeline.AnswerEvent("Hello"),
		pipeline.AnswerEvent(" world"),
		pipeline.SourcesEvent([]pipeline.SourceRef{{
			Type:           pipeline.SourceFile,
			Title:          "guide.txt",
			ContentSnippet: "Hello world",
			Metadata:       map[string]any{"source": "guide.txt"},
		}}),
	}
}

type testEnv struct {
	srv      *Server
	pipeline *MockPipeline
	store    *conversation.Store
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Server.ListenAddress = "127.0.0.1"
	cfg.Server.CORS = config.CORSConfig{
		Enabled:        true,
		AllowedOrigins: []string{"http://localhost:3000"},
	}
	return cfg
}

func newTestEnv(t *testing.T, events ...pipeline.Event) *testEnv {
	t.Helper()

	store, err := conversation.Open(config.ConversationsConfig{
		Driver: config.BackendSQLite,
		DSN:    filepath.Join(t.TempDir(), "server.db"),
	}, nil)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	docs := ingest.NewService(ingest.Config{
		Corpus:    corpus.NewMemoryStore(mock.NewEmbeddingProvider(32), nil),
		Documents: store,
		ChunkSize: 200,
	})

	p := &MockPipeline{Events: events}
	srv := New(testConfig(), Options{
		Pipeline:      p,
		Conversations: store,
		Documents:     docs,
		Metrics:       metrics.New(),
	})
	return &testEnv{srv: srv, pipeline: p, store: store}
}

func (e *testEnv) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.srv.Handler().ServeHTTP(w, req)
	return w
}

// parseSSE splits a response body into its data frames.
func parseSSE(t *testing.T, body *bytes.Buffer) []map[string]json.RawMessage {
	t.Helper()
	var frames []map[string]json.RawMessage
	sc := bufio.NewScanner(body)
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			continue
		}
		data, ok := strings.CutPrefix(line, "data: ")
		if !ok {
			t.Fatalf("unexpected SSE line %q", line)
		}
		var frame map[string]json.RawMessage
		if err := json.Unmarshal([]byte(data), &frame); err != nil {
			t.Fatalf("invalid frame %q: %v", data, err)
		}
		frames = append(frames, frame)
	}
	return frames
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(w.Body).Decode(&v); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return v
}

func assertErrorCode(t *testing.T, w *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	if w.Code != status {
		t.Fatalf("expected status %d, got %d: %s", status, w.Code, w.Body.String())
	}
	resp := decode[ErrorResponse](t, w)
	if resp.Error.Code != code {
		t.Errorf("expected error code %s, got %s", code, resp.Error.Code)
	}
}

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodGet, "/v1/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}

	resp := decode[HealthResponse](t, w)
	if resp.Status != "healthy" {
		t.Errorf("expected status 'healthy', got '%s'", resp.Status)
	}
	if resp.Pipeline == nil || !resp.Pipeline.MockMode {
		t.Errorf("expected pipeline info, got %+v", resp.Pipeline)
	}
}

func TestHealthEndpoint_MethodNotAllowed(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/v1/health", "")
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected status %d, got %d", http.StatusMethodNotAllowed, w.Code)
	}
}

func TestChat_Streaming(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/v1/chat", `{"query":"hi"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("expected text/event-stream, got %q", ct)
	}

	frames := parseSSE(t, w.Body)
	keys := make([]string, len(frames))
	for i, f := range frames {
		if len(f) != 1 {
			t.Fatalf("frame %d has %d keys", i, len(f))
		}
		for k := range f {
			keys[i] = k
		}
	}
	want := []string{"status", "answer", "answer", "sources"}
	if strings.Join(keys, ",") != strings.Join(want, ",") {
		t.Errorf("expected frames %v, got %v", want, keys)
	}

	var sources []pipeline.SourceRef
	if err := json.Unmarshal(frames[3]["sources"], &sources); err != nil {
		t.Fatalf("invalid sources: %v", err)
	}
	if len(sources) != 1 || sources[0].Title != "guide.txt" || sources[0].Type != "file" {
		t.Errorf("unexpected sources %+v", sources)
	}
}

func TestChat_History(t *testing.T) {
	env := newTestEnv(t)

	body := `{"query":"and then?","history":[{"role":"user","content":"a"},{"role":"assistant","content":"b"}]}`
	w := env.do(http.MethodPost, "/v1/chat", body)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}

	req := env.pipeline.lastRequest(t)
	if req.Query != "and then?" || len(req.History) != 2 {
		t.Fatalf("unexpected request %+v", req)
	}
	if req.History[1].Role != "assistant" || req.History[1].Content != "b" {
		t.Errorf("history not forwarded: %+v", req.History)
	}
	if req.Saver != nil {
		t.Error("stateless chat must not persist answers")
	}
}

func TestChat_JSON(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/v1/chat", `{"query":"hi","stream":false}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}

	resp := decode[pipeline.Response](t, w)
	if resp.Answer != "Hello world" || len(resp.Sources) != 1 {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestChat_JSONError(t *testing.T) {
	env := newTestEnv(t,
		pipeline.StatusEvent("正在检索..."),
		pipeline.ErrorEvent("llm unavailable"))

	w := env.do(http.MethodPost, "/v1/chat", `{"query":"hi","stream":false}`)
	assertErrorCode(t, w, http.StatusInternalServerError, "EXECUTION_ERROR")
}

func TestChat_InvalidRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{invalid`},
		{"missing query", `{}`},
		{"blank query", `{"query":"   "}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			w := env.do(http.MethodPost, "/v1/chat", tt.body)
			assertErrorCode(t, w, http.StatusBadRequest, "INVALID_REQUEST")
		})
	}
}

func TestChat_MockManager(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.MockMode = true
	cfg.Mock.Delay = 0
	cfg.Embedding.Dimensions = 32

	m, err := pipeline.NewManager(context.Background(), pipeline.ManagerConfig{
		Config: cfg,
		Keys:   &config.LoadedKeys{},
	})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	defer m.Close()

	srv := New(cfg, Options{Pipeline: m})
	req := httptest.NewRequest(http.MethodPost, "/v1/chat", strings.NewReader(`{"query":"项目的金额是多少"}`))
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	frames := parseSSE(t, w.Body)
	if len(frames) == 0 {
		t.Fatal("no frames")
	}
	var answer strings.Builder
	for _, f := range frames {
		if raw, ok := f["answer"]; ok {
			var s string
			_ = json.Unmarshal(raw, &s)
			answer.WriteString(s)
		}
	}
	if !strings.Contains(answer.String(), "500,000") {
		t.Errorf("unexpected mock answer %q", answer.String())
	}
	if _, ok := frames[len(frames)-1]["sources"]; !ok {
		t.Errorf("stream must end with sources, got %v", frames[len(frames)-1])
	}
}

func TestConversationChat(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	c, err := env.store.CreateConversation(ctx, "")
	if err != nil {
		t.Fatalf("CreateConversation failed: %v", err)
	}

	w := env.do(http.MethodPost, "/v1/conversations/"+c.ID+"/chat", `{"query":"what is pgEdge?"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}

	frames := parseSSE(t, w.Body)
	last := frames[len(frames)-1]
	var saved SavedMessages
	raw, _ := json.Marshal(last)
	if err := json.Unmarshal(raw, &saved); err != nil || saved.MessageID == 0 || saved.UserMessageID == 0 {
		t.Fatalf("expected saved message ids, got %v", last)
	}
	if _, ok := frames[len(frames)-2]["sources"]; !ok {
		t.Errorf("ids must follow the sources frame")
	}

	if req := env.pipeline.lastRequest(t); len(req.History) != 0 {
		t.Errorf("first question must have no history, got %+v", req.History)
	}

	msgs, err := env.store.GetMessages(ctx, c.ID)
	if err != nil {
		t.Fatalf("GetMessages failed: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].ID != saved.UserMessageID || msgs[0].Role != conversation.RoleUser {
		t.Errorf("unexpected user message %+v", msgs[0])
	}
	if msgs[1].ID != saved.MessageID || msgs[1].Content != "Hello world" {
		t.Errorf("unexpected assistant message %+v", msgs[1])
	}
	if !strings.Contains(string(msgs[1].Sources), "guide.txt") {
		t.Errorf("sources not stored: %s", msgs[1].Sources)
	}

	got, err := env.store.GetConversation(ctx, c.ID)
	if err != nil {
		t.Fatalf("GetConversation failed: %v", err)
	}
	if got.Title != "what is pgEdge?" {
		t.Errorf("expected automatic title, got %q", got.Title)
	}

	// Second turn sees the first exchange but not itself.
	env.do(http.MethodPost, "/v1/conversations/"+c.ID+"/chat", `{"query":"more"}`)
	req := env.pipeline.lastRequest(t)
	if len(req.History) != 2 || req.History[0].Content != "what is pgEdge?" || req.History[1].Content != "Hello world" {
		t.Errorf("unexpected history %+v", req.History)
	}
}

func TestConversationChat_ErrorSavesPartialAnswer(t *testing.T) {
	env := newTestEnv(t,
		pipeline.AnswerEvent("partial"),
		pipeline.ErrorEvent("stream broke"))
	ctx := context.Background()

	c, _ := env.store.CreateConversation(ctx, "t")
	w := env.do(http.MethodPost, "/v1/conversations/"+c.ID+"/chat", `{"query":"q"}`)

	frames := parseSSE(t, w.Body)
	if len(frames) != 2 {
		t.Fatalf("expected answer and error frames only, got %v", frames)
	}
	if _, ok := frames[1]["error"]; !ok {
		t.Errorf("expected error frame, got %v", frames[1])
	}

	msgs, _ := env.store.GetMessages(ctx, c.ID)
	if len(msgs) != 2 || msgs[1].Content != "partial" {
		t.Fatalf("expected partial answer to be saved, got %+v", msgs)
	}
	if msgs[1].Sources != "" {
		t.Errorf("partial answer must not carry sources, got %s", msgs[1].Sources)
	}
}

func TestConversationChat_ErrorWithoutAnswer(t *testing.T) {
	env := newTestEnv(t, pipeline.ErrorEvent("nothing"))
	ctx := context.Background()

	c, _ := env.store.CreateConversation(ctx, "t")
	env.do(http.MethodPost, "/v1/conversations/"+c.ID+"/chat", `{"query":"q"}`)

	msgs, _ := env.store.GetMessages(ctx, c.ID)
	if len(msgs) != 1 {
		t.Errorf("only the user message should be stored, got %d", len(msgs))
	}
}

func TestConversationChat_NotFound(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/v1/conversations/missing/chat", `{"query":"q"}`)
	assertErrorCode(t, w, http.StatusNotFound, "CONVERSATION_NOT_FOUND")
}

func TestConversationsCRUD(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/v1/conversations", `{"title":"first"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d", http.StatusCreated, w.Code)
	}
	created := decode[conversation.Conversation](t, w)

	w = env.do(http.MethodGet, "/v1/conversations", "")
	list := decode[[]conversation.Conversation](t, w)
	if len(list) != 1 || list[0].ID != created.ID {
		t.Fatalf("unexpected list %+v", list)
	}

	w = env.do(http.MethodPatch, "/v1/conversations/"+created.ID, `{"title":"renamed"}`)
	if got := decode[conversation.Conversation](t, w); got.Title != "renamed" {
		t.Errorf("expected renamed title, got %q", got.Title)
	}

	msg, err := env.store.AddMessage(context.Background(), created.ID, conversation.RoleUser, "hello", nil)
	if err != nil {
		t.Fatalf("AddMessage failed: %v", err)
	}

	w = env.do(http.MethodGet, "/v1/conversations/"+created.ID, "")
	got := decode[conversation.Conversation](t, w)
	if len(got.Messages) != 1 || got.Messages[0].Content != "hello" {
		t.Fatalf("unexpected messages %+v", got.Messages)
	}

	w = env.do(http.MethodDelete, "/v1/conversations/"+created.ID+"/messages/"+itoa(msg.ID), "")
	if w.Code != http.StatusOK {
		t.Errorf("delete message: expected %d, got %d", http.StatusOK, w.Code)
	}
	w = env.do(http.MethodDelete, "/v1/conversations/"+created.ID+"/messages/"+itoa(msg.ID), "")
	assertErrorCode(t, w, http.StatusNotFound, "MESSAGE_NOT_FOUND")

	w = env.do(http.MethodDelete, "/v1/conversations/"+created.ID, "")
	if ok := decode[OKResponse](t, w); !ok.OK {
		t.Error("expected ok response")
	}

	w = env.do(http.MethodGet, "/v1/conversations/"+created.ID, "")
	assertErrorCode(t, w, http.StatusNotFound, "CONVERSATION_NOT_FOUND")
}

func TestConversations_BadParameters(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		method string
		path   string
		body   string
	}{
		{http.MethodGet, "/v1/conversations?limit=abc", ""},
		{http.MethodGet, "/v1/conversations?skip=-1", ""},
		{http.MethodPatch, "/v1/conversations/x", `{"title":""}`},
		{http.MethodDelete, "/v1/conversations/x/messages/abc", ""},
		{http.MethodPost, "/v1/conversations/x/chat", `{"query":""}`},
	}

	for _, tt := range tests {
		w := env.do(tt.method, tt.path, tt.body)
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s %s: expected %d, got %d", tt.method, tt.path, http.StatusBadRequest, w.Code)
		}
	}
}

func TestDocuments(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/v1/documents",
		`{"filename":"notes.txt","content":"pgEdge is a distributed Postgres platform."}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d: %s", http.StatusCreated, w.Code, w.Body.String())
	}
	up := decode[UploadResponse](t, w)
	if up.Chunks != 1 || up.Document == nil || up.Document.Status != conversation.StatusCompleted {
		t.Fatalf("unexpected upload response %+v", up)
	}

	w = env.do(http.MethodGet, "/v1/documents", "")
	docs := decode[[]conversation.Document](t, w)
	if len(docs) != 1 || docs[0].Filename != "notes.txt" {
		t.Fatalf("unexpected documents %+v", docs)
	}

	w = env.do(http.MethodGet, "/v1/documents/"+up.Document.ID+"/preview", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("expected text/plain preview, got %q", ct)
	}
	if cd := w.Header().Get("Content-Disposition"); cd != `inline; filename=notes.txt` {
		t.Errorf("unexpected Content-Disposition %q", cd)
	}
	if w.Body.String() != "pgEdge is a distributed Postgres platform." {
		t.Errorf("unexpected preview body %q", w.Body.String())
	}

	w = env.do(http.MethodDelete, "/v1/documents/"+up.Document.ID, "")
	if w.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
	}

	w = env.do(http.MethodDelete, "/v1/documents/"+up.Document.ID, "")
	assertErrorCode(t, w, http.StatusNotFound, "DOCUMENT_NOT_FOUND")

	w = env.do(http.MethodGet, "/v1/documents/"+up.Document.ID+"/preview", "")
	assertErrorCode(t, w, http.StatusNotFound, "DOCUMENT_NOT_FOUND")
}

func TestDocuments_InvalidUpload(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/v1/documents", `{"filename":"","content":"x"}`)
	assertErrorCode(t, w, http.StatusBadRequest, "INVALID_REQUEST")

	w = env.do(http.MethodPost, "/v1/documents", `{"filename":"a.txt","content":"  "}`)
	assertErrorCode(t, w, http.StatusBadRequest, "INVALID_REQUEST")
}

func TestRoutesWithoutStores(t *testing.T) {
	srv := New(testConfig(), Options{Pipeline: &MockPipeline{}})

	req := httptest.NewRequest(http.MethodGet, "/v1/conversations", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected %d without a conversation store, got %d", http.StatusNotFound, w.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)

	env.do(http.MethodGet, "/v1/health", "")
	w := env.do(http.MethodGet, "/metrics", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "rag_assistant_http_requests_total") {
		t.Error("expected HTTP request counter in metrics output")
	}
	if !strings.Contains(body, `path="GET /v1/health"`) {
		t.Error("expected requests to be labelled by route pattern")
	}
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodOptions, "/v1/conversations/abc", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	env.srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("expected status %d, got %d", http.StatusNoContent, w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("unexpected allowed origin %q", got)
	}
	if methods := w.Header().Get("Access-Control-Allow-Methods"); !strings.Contains(methods, "PATCH") ||
		!strings.Contains(methods, "DELETE") {
		t.Errorf("unexpected allowed methods %q", methods)
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/health", nil)
	req.Header.Set("Origin", "http://evil.example")
	w = httptest.NewRecorder()
	env.srv.Handler().ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("unlisted origin must not be allowed, got %q", got)
	}
}

func TestRequestID(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodGet, "/v1/health", "")
	if id := w.Header().Get(RequestIDHeader); len(id) != 36 {
		t.Errorf("expected a generated request id, got %q", id)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/health", nil)
	req.Header.Set(RequestIDHeader, "client-123")
	w = httptest.NewRecorder()
	env.srv.Handler().ServeHTTP(w, req)
	if id := w.Header().Get(RequestIDHeader); id != "client-123" {
		t.Errorf("expected the client's request id to be echoed, got %q", id)
	}
}

func TestOpenAPIEndpoint(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodGet, "/v1/openapi.json", "")
	if w.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected Content-Type 'application/json', got '%s'", ct)
	}

	var spec map[string]any
	if err := json.NewDecoder(w.Body).Decode(&spec); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if spec["openapi"] != "3.0.3" {
		t.Errorf("expected OpenAPI version '3.0.3', got '%v'", spec["openapi"])
	}

	paths, _ := spec["paths"].(map[string]any)
	for _, p := range []string{"/health", "/chat", "/conversations", "/conversations/{id}",
		"/conversations/{id}/chat", "/conversations/{id}/messages/{messageId}",
		"/documents", "/documents/{id}", "/documents/{id}/preview"} {
		if _, ok := paths[p]; !ok {
			t.Errorf("OpenAPI spec missing path %s", p)
		}
	}
}

// Every schema reference must resolve.
func TestOpenAPIRefs(t *testing.T) {
	spec := BuildOpenAPISpec()
	data, err := json.Marshal(spec)
	if err != nil {
		t.Fatalf("failed to marshal spec: %v", err)
	}

	const prefix = `"$ref":"#/components/schemas/`
	s := string(data)
	for {
		i := strings.Index(s, prefix)
		if i < 0 {
			break
		}
		s = s[i+len(prefix):]
		name := s[:strings.IndexByte(s, '"')]
		if _, ok := spec.Components.Schemas[name]; !ok {
			t.Errorf("unresolved schema reference %s", name)
		}
	}
}

func TestRFC8631LinkHeader(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{"/v1/health", "/v1/conversations", "/v1/documents", "/v1/openapi.json"} {
		w := env.do(http.MethodGet, path, "")

		link := w.Header().Get("Link")
		if !strings.Contains(link, "</v1/openapi.json>") || !strings.Contains(link, `rel="service-desc"`) {
			t.Errorf("GET %s: unexpected Link header %q", path, link)
		}
	}
}

func itoa(n uint) string {
	b, _ := json.Marshal(n)
	return string(b)
}

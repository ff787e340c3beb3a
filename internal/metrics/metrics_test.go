//-------------------------------------------------------------------------
//
// pgEdge RAG Assistant
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollector_Records(t *testing.T) {
	c := New()

	c.ObserveHTTP("GET", "/v1/health", 200, 5*time.Millisecond)
	c.ObserveStage("retrieve", 20*time.Millisecond)
	c.IncBranch("web")
	c.IncBranch("web")
	c.IncOutcome("sources")
	c.AddChunks(3)

	if got := testutil.ToFloat64(c.branches.WithLabelValues("web")); got != 2 {
		t.Errorf("expected 2 web branches, got %v", got)
	}
	if got := testutil.ToFloat64(c.chunks); got != 3 {
		t.Errorf("expected 3 chunks, got %v", got)
	}
	if got := testutil.ToFloat64(c.httpRequests.WithLabelValues("GET", "/v1/health", "200")); got != 1 {
		t.Errorf("expected 1 request, got %v", got)
	}
}

func TestCollector_Handler(t *testing.T) {
	c := New()
	c.IncOutcome("error")

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `rag_assistant_pipeline_requests_total{outcome="error"} 1`) {
		t.Errorf("metric missing from exposition:\n%s", body)
	}
}

func TestCollector_NilSafe(t *testing.T) {
	var c *Collector
	c.ObserveHTTP("GET", "/", 200, time.Second)
	c.ObserveStage("x", time.Second)
	c.IncBranch("x")
	c.IncOutcome("x")
	c.AddChunks(1)
	if c.Registry() != nil {
		t.Error("expected nil registry")
	}

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != 404 {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

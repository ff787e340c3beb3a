//-------------------------------------------------------------------------
//
// pgEdge RAG Assistant
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package pipeline runs the answer pipeline: rewrite, hybrid retrieval,
// rerank, web and general-knowledge fallbacks, streamed generation and
// refusal-triggered regeneration.
package pipeline

import (
	"encoding/json"
	"path/filepath"
	"strings"

	"github.com/pgEdge/pgedge-rag-assistant/internal/corpus"
	"github.com/pgEdge/pgedge-rag-assistant/internal/llm"
)

// Kind discriminates Event.
type Kind int

// Event kinds. Sources and Error are terminal.
const (
	KindStatus Kind = iota + 1
	KindAnswer
	KindSources
	KindError
)

// String returns the wire name of the kind.
func (k Kind) String() string {
	switch k {
	case KindStatus:
		return "status"
	case KindAnswer:
		return "answer"
	case KindSources:
		return "sources"
	case KindError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is one element of the answer stream. Exactly one of the payload
// fields is meaningful, selected by Kind.
type Event struct {
	Kind    Kind
	Text    string      // status message, answer fragment or error message
	Sources []SourceRef // KindSources only
}

// StatusEvent announces a stage transition.
func StatusEvent(msg string) Event { return Event{Kind: KindStatus, Text: msg} }

// AnswerEvent carries an answer fragment.
func AnswerEvent(text string) Event { return Event{Kind: KindAnswer, Text: text} }

// SourcesEvent is the successful terminal event.
func SourcesEvent(sources []SourceRef) Event {
	if sources == nil {
		sources = []SourceRef{}
	}
	return Event{Kind: KindSources, Sources: sources}
}

// ErrorEvent is the failing terminal event.
func ErrorEvent(msg string) Event { return Event{Kind: KindError, Text: msg} }

// Terminal reports whether e ends the stream.
func (e Event) Terminal() bool {
	return e.Kind == KindSources || e.Kind == KindError
}

// MarshalJSON renders the event as a single-key object such as
// {"answer":"..."} or {"sources":[...]}.
func (e Event) MarshalJSON() ([]byte, error) {
	switch e.Kind {
	case KindSources:
		sources := e.Sources
		if sources == nil {
			sources = []SourceRef{}
		}
		return json.Marshal(map[string][]SourceRef{"sources": sources})
	default:
		return json.Marshal(map[string]string{e.Kind.String(): e.Text})
	}
}

// Source types.
const (
	SourceFile = "file"
	SourceWeb  = "web"
)

// SourceRef is the client-facing description of a document used for an
// answer.
type SourceRef struct {
	Type           string         `json:"type"`
	Title          string         `json:"title"`
	ContentSnippet string         `json:"content"`
	URL            string         `json:"url,omitempty"`
	Metadata       map[string]any `json:"metadata"`
}

// NewSourceRef converts a candidate into a SourceRef. Web results keep
// their title and URL; corpus chunks are titled by file name.
func NewSourceRef(d corpus.Document) SourceRef {
	d = d.Clone()
	if d.String(corpus.MetaType) == corpus.TypeWebSearch {
		return SourceRef{
			Type:           SourceWeb,
			Title:          d.String(corpus.MetaTitle),
			ContentSnippet: d.Content,
			URL:            d.String(corpus.MetaSource),
			Metadata:       d.Metadata,
		}
	}

	title := d.String(corpus.MetaTitle)
	if src := d.String(corpus.MetaSource); src != "" {
		title = filepath.Base(src)
	}
	return SourceRef{
		Type:           SourceFile,
		Title:          title,
		ContentSnippet: d.Content,
		Metadata:       d.Metadata,
	}
}

// SourceRefs converts candidates in order.
func SourceRefs(docs []corpus.Document) []SourceRef {
	out := make([]SourceRef, len(docs))
	for i, d := range docs {
		out[i] = NewSourceRef(d)
	}
	return out
}

// Request is one question to answer.
type Request struct {
	Query   string
	History []llm.Message

	// Saver, when set, is called exactly once when the run ends.
	Saver PartialSaver
}

// PartialSaver receives whatever was produced when a run ends: the
// accumulated answer text, the sources (nil unless a Sources event was
// emitted) and the terminal error, if any. It runs on every exit path,
// including cancellation.
type PartialSaver interface {
	OnFinish(answer string, sources []SourceRef, err error)
}

// PartialSaverFunc adapts a function to PartialSaver.
type PartialSaverFunc func(answer string, sources []SourceRef, err error)

// OnFinish calls f.
func (f PartialSaverFunc) OnFinish(answer string, sources []SourceRef, err error) {
	f(answer, sources, err)
}

// Response is a fully collected answer.
type Response struct {
	Answer  string      `json:"answer"`
	Sources []SourceRef `json:"sources"`
	Error   string      `json:"error,omitempty"`
}

// Collect drains events into a Response.
func Collect(events <-chan Event) Response {
	resp := Response{Sources: []SourceRef{}}
	var answer strings.Builder
	for e := range events {
		switch e.Kind {
		case KindAnswer:
			answer.WriteString(e.Text)
		case KindSources:
			resp.Sources = e.Sources
		case KindError:
			resp.Error = e.Text
		}
	}
	resp.Answer = answer.String()
	return resp
}

//-------------------------------------------------------------------------
//
// pgEdge RAG Assistant
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package bm25

import (
	"sort"
	"sync"
)

// Entry is one indexed passage.
type Entry struct {
	ID        string
	Content   string
	Metadata  map[string]any
	length    int
	termFreqs map[string]int
	seq       int
}

// SearchResult is a scored passage returned by Search.
type SearchResult struct {
	ID       string
	Content  string
	Metadata map[string]any
	Score    float64
}

// Index is an in-memory BM25 index safe for concurrent use.
type Index struct {
	mu        sync.RWMutex
	tokenizer *Tokenizer
	params    Params
	entries   map[string]*Entry
	docFreqs  map[string]int
	totalLen  int
	nextSeq   int
}

// NewIndex creates an empty index with default parameters.
func NewIndex() *Index {
	return NewIndexWithParams(DefaultK1, DefaultB)
}

// NewIndexWithParams creates an empty index with custom parameters.
func NewIndexWithParams(k1, b float64) *Index {
	return &Index{
		tokenizer: NewTokenizer(),
		params:    Params{K1: k1, B: b},
		entries:   make(map[string]*Entry),
		docFreqs:  make(map[string]int),
	}
}

// Add indexes content under id, replacing any previous entry with the
// same id.
func (idx *Index) Add(id, content string, metadata map[string]any) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.removeLocked(id)

	freqs := idx.tokenizer.TokenFrequencies(content)
	length := 0
	for term, n := range freqs {
		length += n
		idx.docFreqs[term]++
	}

	idx.entries[id] = &Entry{
		ID:        id,
		Content:   content,
		Metadata:  metadata,
		length:    length,
		termFreqs: freqs,
		seq:       idx.nextSeq,
	}
	idx.nextSeq++
	idx.totalLen += length
}

// Remove drops the entry with the given id, if present.
func (idx *Index) Remove(id string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.removeLocked(id)
}

func (idx *Index) removeLocked(id string) {
	e, ok := idx.entries[id]
	if !ok {
		return
	}
	for term := range e.termFreqs {
		if idx.docFreqs[term] <= 1 {
			delete(idx.docFreqs, term)
		} else {
			idx.docFreqs[term]--
		}
	}
	idx.totalLen -= e.length
	delete(idx.entries, id)
}

// Search returns at most topN entries with a positive score for query,
// best first. Equal scores keep insertion order.
func (idx *Index) Search(query string, topN int) []SearchResult {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if len(idx.entries) == 0 || topN <= 0 {
		return nil
	}

	freqs := idx.tokenizer.TokenFrequencies(query)
	if len(freqs) == 0 {
		return nil
	}
	terms := make([]string, 0, len(freqs))
	for term := range freqs {
		terms = append(terms, term)
	}
	sort.Strings(terms)

	scorer := NewScorer(idx.params, len(idx.entries), idx.totalLen)

	type scored struct {
		entry *Entry
		score float64
	}
	var hits []scored
	for _, e := range idx.entries {
		s := scorer.ScoreDocument(terms, e.termFreqs, idx.docFreqs, e.length)
		if s > 0 {
			hits = append(hits, scored{entry: e, score: s})
		}
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].entry.seq < hits[j].entry.seq
	})

	results := make([]SearchResult, 0, min(topN, len(hits)))
	for _, h := range hits[:min(topN, len(hits))] {
		results = append(results, SearchResult{
			ID:       h.entry.ID,
			Content:  h.entry.Content,
			Metadata: h.entry.Metadata,
			Score:    h.score,
		})
	}
	return results
}

// Clear removes all entries.
func (idx *Index) Clear() {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.entries = make(map[string]*Entry)
	idx.docFreqs = make(map[string]int)
	idx.totalLen = 0
	idx.nextSeq = 0
}

// Size returns the number of indexed entries.
func (idx *Index) Size() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.entries)
}

// Get returns the entry stored under id.
func (idx *Index) Get(id string) (Entry, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	e, ok := idx.entries[id]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

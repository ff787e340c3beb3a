//-------------------------------------------------------------------------
//
// pgEdge RAG Assistant
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package retrieval

import (
	"sort"

	"github.com/pgEdge/pgedge-rag-assistant/internal/corpus"
)

// DefaultRRFConstant is the k constant of rank fusion.
const DefaultRRFConstant = 60

// RankedList is one input ranking and the weight it contributes.
type RankedList struct {
	Docs   []corpus.Document
	Weight float64
}

type fused struct {
	doc   corpus.Document
	score float64
	first int
}

// WeightedRankFusion merges rankings by weighted reciprocal rank:
//
//	score(d) = sum(w_i / (k + rank_i(d)))
//
// where rank is 1-indexed. Documents are identified by content; the
// metadata of the first occurrence is kept. The result is ordered by
// fused score, ties broken by first appearance across the lists in the
// order given, and each document's Score is its fused score.
func WeightedRankFusion(k float64, lists ...RankedList) []corpus.Document {
	if k <= 0 {
		k = DefaultRRFConstant
	}

	byContent := make(map[string]*fused)
	order := 0
	for _, list := range lists {
		for i, d := range list.Docs {
			contrib := list.Weight / (k + float64(i+1))
			if existing, ok := byContent[d.Content]; ok {
				existing.score += contrib
				continue
			}
			byContent[d.Content] = &fused{doc: d.Clone(), score: contrib, first: order}
			order++
		}
	}

	results := make([]*fused, 0, len(byContent))
	for _, f := range byContent {
		results = append(results, f)
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].score != results[j].score {
			return results[i].score > results[j].score
		}
		return results[i].first < results[j].first
	})

	out := make([]corpus.Document, len(results))
	for i, f := range results {
		f.doc.Score = f.score
		out[i] = f.doc
	}
	return out
}

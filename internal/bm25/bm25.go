//-------------------------------------------------------------------------
//
// pgEdge RAG Assistant
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package bm25 provides the lexical half of hybrid retrieval: a
// CJK-aware tokenizer, Okapi BM25 scoring and an in-memory index that
// can be rebuilt from the corpus store at any time.
package bm25

import (
	"math"
)

// DefaultK1 is the default term frequency saturation parameter.
const DefaultK1 = 1.2

// DefaultB is the default document length normalization parameter.
// B=0 disables normalization, B=1 normalizes fully.
const DefaultB = 0.75

// Params holds the tunable BM25 parameters.
type Params struct {
	K1 float64
	B  float64
}

// DefaultParams returns the Lucene defaults.
func DefaultParams() Params {
	return Params{K1: DefaultK1, B: DefaultB}
}

// Scorer computes BM25 scores against a fixed set of corpus statistics.
type Scorer struct {
	Params
	DocCount int     // documents in the corpus
	AvgDL    float64 // average document length in tokens
}

// NewScorer creates a scorer for a corpus of docCount documents whose
// lengths total totalLen tokens.
func NewScorer(p Params, docCount, totalLen int) *Scorer {
	s := &Scorer{Params: p, DocCount: docCount}
	if docCount > 0 {
		s.AvgDL = float64(totalLen) / float64(docCount)
	}
	return s
}

// IDF returns the Lucene variant of inverse document frequency,
//
//	IDF(t) = ln(1 + (N - df + 0.5) / (df + 0.5))
//
// which never goes negative for very common terms.
func (s *Scorer) IDF(docFreq int) float64 {
	if s.DocCount == 0 || docFreq == 0 {
		return 0
	}
	n := float64(s.DocCount)
	df := float64(docFreq)
	return math.Log(1 + (n-df+0.5)/(df+0.5))
}

// TermScore returns the contribution of one term with frequency tf in a
// document of docLen tokens.
func (s *Scorer) TermScore(tf, docFreq, docLen int) float64 {
	if tf == 0 || docFreq == 0 || s.DocCount == 0 {
		return 0
	}

	norm := 1 - s.B
	if s.AvgDL > 0 {
		norm += s.B * float64(docLen) / s.AvgDL
	}
	f := float64(tf)

	return s.IDF(docFreq) * (f * (s.K1 + 1)) / (f + s.K1*norm)
}

// ScoreDocument sums TermScore over the distinct query terms.
func (s *Scorer) ScoreDocument(queryTerms []string, docTermFreqs, docFreqs map[string]int, docLen int) float64 {
	var score float64
	for _, term := range queryTerms {
		score += s.TermScore(docTermFreqs[term], docFreqs[term], docLen)
	}
	return score
}

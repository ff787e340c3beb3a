//-------------------------------------------------------------------------
//
// pgEdge RAG Assistant
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package bm25

import (
	"strings"
	"unicode"
)

// Tokenizer splits text into index terms.
//
// Latin letters and digits form words as usual. Runs of Han, Hiragana,
// Katakana and Hangul characters have no word boundaries, so they are
// emitted as single characters plus overlapping bigrams; this lets a
// question such as "项目的金额是多少" match a passage about "项目预算".
type Tokenizer struct {
	stopWords map[string]bool
}

// DefaultStopWords contains common English stop words and a handful of
// Chinese function characters.
var DefaultStopWords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true,
	"at": true, "be": true, "by": true, "for": true, "from": true,
	"has": true, "he": true, "in": true, "is": true, "it": true,
	"its": true, "of": true, "on": true, "or": true, "that": true,
	"the": true, "to": true, "was": true, "were": true, "will": true,
	"with": true, "this": true, "but": true, "they": true, "have": true,
	"had": true, "what": true, "when": true, "where": true, "who": true,
	"which": true, "why": true, "how": true, "all": true, "each": true,
	"can": true, "just": true, "should": true, "now": true, "not": true,
	"i": true, "you": true, "we": true, "me": true, "my": true,
	"your": true, "our": true, "their": true, "him": true, "her": true,

	"的": true, "了": true, "是": true, "在": true, "和": true,
	"与": true, "吗": true, "呢": true, "吧": true, "啊": true,
}

// NewTokenizer creates a tokenizer with DefaultStopWords.
func NewTokenizer() *Tokenizer {
	return &Tokenizer{stopWords: DefaultStopWords}
}

// NewTokenizerWithStopWords creates a tokenizer with custom stop words.
// A nil map disables stop word filtering.
func NewTokenizerWithStopWords(stopWords map[string]bool) *Tokenizer {
	return &Tokenizer{stopWords: stopWords}
}

func isCJK(r rune) bool {
	return unicode.Is(unicode.Han, r) ||
		unicode.Is(unicode.Hiragana, r) ||
		unicode.Is(unicode.Katakana, r) ||
		unicode.Is(unicode.Hangul, r)
}

// Tokenize returns the terms of text in order of appearance.
func (t *Tokenizer) Tokenize(text string) []string {
	var tokens []string
	var word strings.Builder
	var run []rune

	flushWord := func() {
		if word.Len() == 0 {
			return
		}
		w := strings.ToLower(word.String())
		word.Reset()
		// single Latin letters and digits carry no signal
		if len(w) >= 2 && !t.stopWords[w] {
			tokens = append(tokens, w)
		}
	}
	flushRun := func() {
		for i, r := range run {
			if s := string(r); !t.stopWords[s] {
				tokens = append(tokens, s)
			}
			if i+1 < len(run) {
				tokens = append(tokens, string(run[i:i+2]))
			}
		}
		run = run[:0]
	}

	for _, r := range text {
		switch {
		case isCJK(r):
			flushWord()
			run = append(run, r)
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			flushRun()
			word.WriteRune(r)
		default:
			flushWord()
			flushRun()
		}
	}
	flushWord()
	flushRun()

	return tokens
}

// TokenFrequencies returns a map of term to frequency count.
func (t *Tokenizer) TokenFrequencies(text string) map[string]int {
	freqs := make(map[string]int)
	for _, token := range t.Tokenize(text) {
		freqs[token]++
	}
	return freqs
}

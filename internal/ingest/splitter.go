//-------------------------------------------------------------------------
//
// pgEdge RAG Assistant
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package ingest

import (
	"strings"
	"unicode/utf8"
)

// Default chunking parameters, in runes.
const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// defaultSeparators are tried in order, from paragraphs down to single
// runes. The CJK full stop keeps Chinese sentences intact.
var defaultSeparators = []string{"\n\n", "\n", "。", ". ", " ", ""}

// Splitter cuts text into overlapping chunks of at most Size runes,
// preferring to break at the coarsest separator that fits.
type Splitter struct {
	size       int
	overlap    int
	separators []string
}

// NewSplitter creates a splitter. Invalid values select the defaults.
func NewSplitter(size, overlap int) *Splitter {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = min(DefaultChunkOverlap, size/5)
	}
	return &Splitter{size: size, overlap: overlap, separators: defaultSeparators}
}

// Split returns the chunks of text, trimmed and non-empty.
func (s *Splitter) Split(text string) []string {
	return s.split(text, s.separators)
}

func runeLen(s string) int { return utf8.RuneCountInString(s) }

func (s *Splitter) split(text string, separators []string) []string {
	// Pick the first separator present in text.
	sep, rest := separators[len(separators)-1], []string(nil)
	for i, candidate := range separators {
		if candidate == "" || strings.Contains(text, candidate) {
			sep, rest = candidate, separators[i+1:]
			break
		}
	}

	var pieces []string
	if sep == "" {
		pieces = strings.Split(text, "")
	} else {
		pieces = strings.Split(text, sep)
	}

	var out, pending []string
	for _, p := range pieces {
		if p == "" {
			continue
		}
		if runeLen(p) < s.size {
			pending = append(pending, p)
			continue
		}
		if len(pending) > 0 {
			out = append(out, s.merge(pending, sep)...)
			pending = nil
		}
		if len(rest) == 0 {
			out = append(out, p)
		} else {
			out = append(out, s.split(p, rest)...)
		}
	}
	if len(pending) > 0 {
		out = append(out, s.merge(pending, sep)...)
	}
	return out
}

// merge joins pieces with sep into chunks no longer than size, carrying
// up to overlap runes of trailing pieces into the next chunk.
func (s *Splitter) merge(pieces []string, sep string) []string {
	sepLen := runeLen(sep)
	var (
		out     []string
		current []string
		total   int
	)
	emit := func() {
		if chunk := strings.TrimSpace(strings.Join(current, sep)); chunk != "" {
			out = append(out, chunk)
		}
	}

	for _, p := range pieces {
		n := runeLen(p)
		joined := 0
		if len(current) > 0 {
			joined = sepLen
		}
		if total+n+joined > s.size && len(current) > 0 {
			emit()
			for len(current) > 0 && (total > s.overlap || total+n+sepLen > s.size) {
				total -= runeLen(current[0])
				if len(current) > 1 {
					total -= sepLen
				}
				current = current[1:]
			}
		}
		current = append(current, p)
		total += n
		if len(current) > 1 {
			total += sepLen
		}
	}
	if len(current) > 0 {
		emit()
	}
	return out
}

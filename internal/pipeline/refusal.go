//-------------------------------------------------------------------------
//
// pgEdge RAG Assistant
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package pipeline

import "strings"

// RefusalDetector decides whether a generated answer is a non-answer
// that should trigger a web search retry.
type RefusalDetector interface {
	IsRefusal(answer string) bool
}

// DefaultRefusalPhrases are the substrings matched by the default
// detector.
var DefaultRefusalPhrases = []string{
	"无法回答",
	"没有相关信息",
	"未找到相关",
	"没有找到相关",
	"无法找到",
	"不知道",
	"抱歉",
	"cannot answer",
	"can't answer",
	"unable to answer",
	"no relevant information",
	"not enough information",
	"i don't know",
	"i'm sorry",
	"i am sorry",
}

// KeywordDetector flags answers containing any of its phrases, ignoring
// case.
type KeywordDetector struct {
	phrases []string
}

// NewKeywordDetector creates a detector; an empty list selects
// DefaultRefusalPhrases.
func NewKeywordDetector(phrases ...string) *KeywordDetector {
	if len(phrases) == 0 {
		phrases = DefaultRefusalPhrases
	}
	lowered := make([]string, 0, len(phrases))
	for _, p := range phrases {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			lowered = append(lowered, p)
		}
	}
	return &KeywordDetector{phrases: lowered}
}

// IsRefusal reports whether answer contains a refusal phrase.
func (d *KeywordDetector) IsRefusal(answer string) bool {
	lower := strings.ToLower(answer)
	for _, p := range d.phrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// RefusalFunc adapts a function to RefusalDetector.
type RefusalFunc func(answer string) bool

// IsRefusal calls f.
func (f RefusalFunc) IsRefusal(answer string) bool { return f(answer) }

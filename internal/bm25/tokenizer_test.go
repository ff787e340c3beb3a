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
	"reflect"
	"testing"
)

func TestTokenizer_Tokenize(t *testing.T) {
	tok := NewTokenizer()

	tests := []struct {
		name   string
		input  string
		expect []string
	}{
		{
			name:   "simple text",
			input:  "hello world",
			expect: []string{"hello", "world"},
		},
		{
			name:   "with punctuation",
			input:  "Hello, World!",
			expect: []string{"hello", "world"},
		},
		{
			name:   "single digits dropped",
			input:  "version 2.0 released",
			expect: []string{"version", "released"},
		},
		{
			name:   "stop words removed",
			input:  "the quick brown fox jumps over the lazy dog",
			expect: []string{"quick", "brown", "fox", "jumps", "over", "lazy", "dog"},
		},
		{
			name:   "empty string",
			input:  "",
			expect: nil,
		},
		{
			name:  "han run with digits",
			input: "项目预算为500000元",
			expect: []string{
				"项", "项目", "目", "目预", "预", "预算", "算", "算为", "为",
				"500000", "元",
			},
		},
		{
			name:   "han stop character keeps its bigrams",
			input:  "项目的金额",
			expect: []string{"项", "项目", "目", "目的", "的金", "金", "金额", "额"},
		},
		{
			name:   "latin followed by han",
			input:  "PostgreSQL数据库",
			expect: []string{"postgresql", "数", "数据", "据", "据库", "库"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tok.Tokenize(tt.input)
			if !reflect.DeepEqual(result, tt.expect) {
				t.Errorf("Tokenize(%q) = %v, want %v", tt.input, result, tt.expect)
			}
		})
	}
}

func TestTokenizer_TokenFrequencies(t *testing.T) {
	tok := NewTokenizer()

	freqs := tok.TokenFrequencies("hello world hello database world world")
	expected := map[string]int{"hello": 2, "world": 3, "database": 1}

	if !reflect.DeepEqual(freqs, expected) {
		t.Errorf("TokenFrequencies() = %v, want %v", freqs, expected)
	}
}

func TestTokenizer_CustomStopWords(t *testing.T) {
	tok := NewTokenizerWithStopWords(map[string]bool{"custom": true})

	result := tok.Tokenize("the custom words")
	expected := []string{"the", "words"}

	if !reflect.DeepEqual(result, expected) {
		t.Errorf("Tokenize() = %v, want %v", result, expected)
	}
}

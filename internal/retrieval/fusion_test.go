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
	"fmt"
	"math"
	"testing"

	"pgregory.net/rapid"

	"github.com/pgEdge/pgedge-rag-assistant/internal/corpus"
)

func docs(contents ...string) []corpus.Document {
	out := make([]corpus.Document, len(contents))
	for i, c := range contents {
		out[i] = corpus.Document{Content: c, Metadata: map[string]any{"n": i}}
	}
	return out
}

func contents(ds []corpus.Document) []string {
	out := make([]string, len(ds))
	for i, d := range ds {
		out[i] = d.Content
	}
	return out
}

func TestWeightedRankFusion(t *testing.T) {
	tests := []struct {
		name    string
		vec     []string
		lex     []string
		wantTop string
		wantLen int
	}{
		{"overlap wins", []string{"a", "b", "c"}, []string{"c", "d"}, "c", 4},
		{"vector only", []string{"a", "b"}, nil, "a", 2},
		{"lexical only", nil, []string{"x", "y"}, "x", 2},
		{"both empty", nil, nil, "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := WeightedRankFusion(0,
				RankedList{Docs: docs(tt.vec...), Weight: 0.5},
				RankedList{Docs: docs(tt.lex...), Weight: 0.5},
			)
			if len(got) != tt.wantLen {
				t.Fatalf("expected %d results, got %d", tt.wantLen, len(got))
			}
			if tt.wantLen > 0 && got[0].Content != tt.wantTop {
				t.Errorf("expected top %q, got %q", tt.wantTop, got[0].Content)
			}
		})
	}
}

func TestWeightedRankFusion_Scores(t *testing.T) {
	got := WeightedRankFusion(60,
		RankedList{Docs: docs("a", "b"), Weight: 0.5},
		RankedList{Docs: docs("b"), Weight: 0.5},
	)

	want := map[string]float64{
		"a": 0.5 / 61,
		"b": 0.5/62 + 0.5/61,
	}
	for _, d := range got {
		if math.Abs(d.Score-want[d.Content]) > 1e-12 {
			t.Errorf("%s: expected score %v, got %v", d.Content, want[d.Content], d.Score)
		}
	}
	if got[0].Content != "b" {
		t.Errorf("expected b first, got %v", contents(got))
	}
}

func TestWeightedRankFusion_TiesKeepFirstAppearance(t *testing.T) {
	// a and x share rank 1 in their lists; vector list comes first.
	got := WeightedRankFusion(60,
		RankedList{Docs: docs("a", "b"), Weight: 0.5},
		RankedList{Docs: docs("x", "y"), Weight: 0.5},
	)
	want := []string{"a", "x", "b", "y"}
	if fmt.Sprint(contents(got)) != fmt.Sprint(want) {
		t.Errorf("expected %v, got %v", want, contents(got))
	}
}

func TestWeightedRankFusion_KeepsFirstMetadata(t *testing.T) {
	vec := []corpus.Document{{Content: "same", Metadata: map[string]any{"from": "vector"}}}
	lex := []corpus.Document{{Content: "same", Metadata: map[string]any{"from": "lexical"}}}

	got := WeightedRankFusion(60,
		RankedList{Docs: vec, Weight: 0.5},
		RankedList{Docs: lex, Weight: 0.5},
	)
	if len(got) != 1 {
		t.Fatalf("expected duplicates to merge, got %d results", len(got))
	}
	if got[0].String("from") != "vector" {
		t.Errorf("expected vector metadata, got %v", got[0].Metadata)
	}

	got[0].Metadata["from"] = "changed"
	if vec[0].Metadata["from"] != "vector" {
		t.Error("fusion output aliases input metadata")
	}
}

func TestWeightedRankFusion_Properties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		pool := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
		vec := rapid.SliceOfDistinct(rapid.SampledFrom(pool), rapid.ID[string]).Draw(t, "vec")
		lex := rapid.SliceOfDistinct(rapid.SampledFrom(pool), rapid.ID[string]).Draw(t, "lex")
		w := rapid.Float64Range(0, 1).Draw(t, "w")

		got := WeightedRankFusion(60,
			RankedList{Docs: docs(vec...), Weight: w},
			RankedList{Docs: docs(lex...), Weight: 1 - w},
		)

		union := map[string]bool{}
		for _, c := range append(append([]string{}, vec...), lex...) {
			union[c] = true
		}
		if len(got) != len(union) {
			t.Fatalf("expected %d unique results, got %d", len(union), len(got))
		}
		seen := map[string]bool{}
		for i, d := range got {
			if seen[d.Content] {
				t.Fatalf("duplicate %q in output", d.Content)
			}
			seen[d.Content] = true
			if i > 0 && got[i-1].Score < d.Score {
				t.Fatalf("output not sorted at %d: %v < %v", i, got[i-1].Score, d.Score)
			}
		}
	})
}

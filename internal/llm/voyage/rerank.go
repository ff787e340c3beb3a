//-------------------------------------------------------------------------
//
// pgEdge RAG Assistant
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package voyage

import (
	"context"
	"fmt"
)

// Reranker scores (query, passage) pairs with a Voyage rerank model.
type Reranker struct {
	client *Client
	model  string
}

// NewReranker creates a reranker. An empty model selects rerank-2.
func NewReranker(client *Client, model string) *Reranker {
	if model == "" {
		model = defaultRerankModel
	}
	return &Reranker{client: client, model: model}
}

type rerankRequest struct {
	Query      string   `json:"query"`
	Documents  []string `json:"documents"`
	Model      string   `json:"model"`
	Truncation bool     `json:"truncation"`
}

type rerankResponse struct {
	Data []struct {
		Index          int     `json:"index"`
		RelevanceScore float64 `json:"relevance_score"`
	} `json:"data"`
}

// Score returns one relevance score per passage, in passage order.
func (r *Reranker) Score(ctx context.Context, query string, passages []string) ([]float64, error) {
	if len(passages) == 0 {
		return nil, nil
	}

	var resp rerankResponse
	req := rerankRequest{Query: query, Documents: passages, Model: r.model, Truncation: true}
	if err := r.client.postJSON(ctx, "/rerank", req, &resp); err != nil {
		return nil, err
	}

	scores := make([]float64, len(passages))
	seen := make([]bool, len(passages))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(passages) {
			return nil, fmt.Errorf("rerank returned out of range index %d", d.Index)
		}
		scores[d.Index] = d.RelevanceScore
		seen[d.Index] = true
	}
	for i, ok := range seen {
		if !ok {
			return nil, fmt.Errorf("rerank returned no score for passage %d", i)
		}
	}
	return scores, nil
}

// Name identifies the scoring model.
func (r *Reranker) Name() string {
	return "voyage/" + r.model
}

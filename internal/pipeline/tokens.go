//-------------------------------------------------------------------------
//
// pgEdge RAG Assistant
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package pipeline

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// encodingForModel maps a model name prefix to its tiktoken encoding.
var encodingForModel = []struct {
	prefix   string
	encoding string
}{
	{"gpt-4o", "o200k_base"},
	{"o1", "o200k_base"},
	{"o3", "o200k_base"},
	{"gpt-4", "cl100k_base"},
	{"gpt-3.5", "cl100k_base"},
	{"text-embedding-3", "cl100k_base"},
}

// NewTiktokenCounter returns a TokenCounter for model. The encoding is
// loaded on first use; if it cannot be loaded (for example when the BPE
// ranks cannot be downloaded) the counter falls back to EstimateTokens.
func NewTiktokenCounter(model string, logger *slog.Logger) TokenCounter {
	if logger == nil {
		logger = slog.Default()
	}
	encoding := "cl100k_base"
	for _, e := range encodingForModel {
		if strings.HasPrefix(model, e.prefix) {
			encoding = e.encoding
			break
		}
	}

	var (
		once sync.Once
		enc  *tiktoken.Tiktoken
	)
	return func(s string) int {
		once.Do(func() {
			var err error
			enc, err = tiktoken.GetEncoding(encoding)
			if err != nil {
				logger.Warn("tiktoken unavailable, estimating token counts",
					"encoding", encoding, "error", err)
				enc = nil
			}
		})
		if enc == nil {
			return EstimateTokens(s)
		}
		return len(enc.Encode(s, nil, nil))
	}
}

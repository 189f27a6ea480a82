// Package voyage provides a reranker adapter using the Voyage AI rerank API.
package voyage

import (
	"context"
	"errors"
	"time"

	"github.com/custodia-labs/pdfrag/internal/adapters/driven/httpapi"
	"github.com/custodia-labs/pdfrag/internal/adapters/driven/reranker"
	"github.com/custodia-labs/pdfrag/internal/core/ports/driven"
)

// Ensure Reranker implements the interface.
var _ driven.Reranker = (*Reranker)(nil)

// Default configuration values.
const (
	DefaultBaseURL = "https://api.voyageai.com/v1"
	DefaultModel   = "rerank-2"
	DefaultTimeout = 60 * time.Second
)

// Config holds configuration for the Voyage reranker.
type Config struct {
	// APIKey is the Voyage API key (required).
	APIKey string

	// BaseURL is the API base URL (default: https://api.voyageai.com/v1).
	BaseURL string

	// Model is the reranking model (default: rerank-2).
	Model string

	// Timeout is the request timeout (default: 60s).
	Timeout time.Duration
}

// Reranker scores documents via POST /rerank.
type Reranker struct {
	api   *httpapi.Client
	model string
}

// rerankRequest is the Voyage /rerank request format.
type rerankRequest struct {
	Query      string   `json:"query"`
	Documents  []string `json:"documents"`
	Model      string   `json:"model"`
	Truncation bool     `json:"truncation"`
}

// rerankResponse is the Voyage /rerank response format.
type rerankResponse struct {
	Data []struct {
		Index          int     `json:"index"`
		RelevanceScore float64 `json:"relevance_score"`
	} `json:"data"`
}

// New creates a new Voyage reranker.
func New(cfg Config) (*Reranker, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("voyage: API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	api := httpapi.New("voyage", cfg.BaseURL, cfg.Timeout)
	api.SetBearer(cfg.APIKey)

	return &Reranker{api: api, model: cfg.Model}, nil
}

// Predict returns relevance scores in document order.
func (r *Reranker) Predict(ctx context.Context, query string, documents []string) ([]float64, error) {
	if len(documents) == 0 {
		return []float64{}, nil
	}

	var resp rerankResponse
	err := r.api.PostJSON(ctx, "/rerank", rerankRequest{
		Query:      query,
		Documents:  documents,
		Model:      r.model,
		Truncation: true,
	}, &resp)
	if err != nil {
		return nil, err
	}

	scored := make([]reranker.IndexedScore, len(resp.Data))
	for i, d := range resp.Data {
		scored[i] = reranker.IndexedScore{Index: d.Index, Score: d.RelevanceScore}
	}
	return reranker.InInputOrder("voyage", len(documents), scored)
}

// ModelName returns the name of the reranking model being used.
func (r *Reranker) ModelName() string {
	return r.model
}

// Close releases resources.
func (r *Reranker) Close() error {
	return nil
}

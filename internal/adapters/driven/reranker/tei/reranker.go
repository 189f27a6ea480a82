// Package tei provides a reranker adapter for HuggingFace
// text-embeddings-inference servers.
package tei

import (
	"context"
	"time"

	"github.com/custodia-labs/pdfrag/internal/adapters/driven/httpapi"
	"github.com/custodia-labs/pdfrag/internal/adapters/driven/reranker"
	"github.com/custodia-labs/pdfrag/internal/core/ports/driven"
)

// Ensure Reranker implements the interface.
var _ driven.Reranker = (*Reranker)(nil)

// Default configuration values.
const (
	DefaultBaseURL = "http://localhost:8080"
	DefaultModel   = "cross-encoder/ms-marco-MiniLM-L-6-v2"
	DefaultTimeout = 30 * time.Second
)

// Config holds configuration for the TEI reranker.
type Config struct {
	// BaseURL is the TEI server URL (default: http://localhost:8080).
	BaseURL string

	// Model names the cross-encoder the server hosts. TEI serves a single
	// model, so this is informational.
	Model string

	// Timeout is the request timeout (default: 30s).
	Timeout time.Duration
}

// Reranker scores query/document pairs via POST /rerank.
type Reranker struct {
	api   *httpapi.Client
	model string
}

// rerankRequest is the TEI /rerank request format.
type rerankRequest struct {
	Query     string   `json:"query"`
	Texts     []string `json:"texts"`
	RawScores bool     `json:"raw_scores"`
	Truncate  bool     `json:"truncate"`
}

// rerankResult is one element of the TEI /rerank response.
type rerankResult struct {
	Index int     `json:"index"`
	Score float64 `json:"score"`
}

// New creates a new TEI reranker.
func New(cfg Config) *Reranker {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &Reranker{
		api:   httpapi.New("tei", cfg.BaseURL, cfg.Timeout),
		model: cfg.Model,
	}
}

// Predict returns raw cross-encoder logits in document order.
func (r *Reranker) Predict(ctx context.Context, query string, documents []string) ([]float64, error) {
	if len(documents) == 0 {
		return []float64{}, nil
	}

	var results []rerankResult
	err := r.api.PostJSON(ctx, "/rerank", rerankRequest{
		Query:     query,
		Texts:     documents,
		RawScores: true,
		Truncate:  true,
	}, &results)
	if err != nil {
		return nil, err
	}

	scored := make([]reranker.IndexedScore, len(results))
	for i, res := range results {
		scored[i] = reranker.IndexedScore{Index: res.Index, Score: res.Score}
	}
	return reranker.InInputOrder("tei", len(documents), scored)
}

// ModelName returns the name of the reranking model being used.
func (r *Reranker) ModelName() string {
	return r.model
}

// Ping checks the server's /health endpoint.
func (r *Reranker) Ping(ctx context.Context) error {
	return r.api.Get(ctx, "/health")
}

// Close releases resources.
func (r *Reranker) Close() error {
	return nil
}

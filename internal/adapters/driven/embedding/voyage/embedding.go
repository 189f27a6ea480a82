// Package voyage provides an embedding service adapter using Voyage AI.
package voyage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/pdfrag/internal/adapters/driven/httpapi"
	"github.com/custodia-labs/pdfrag/internal/core/domain"
	"github.com/custodia-labs/pdfrag/internal/core/ports/driven"
)

// Ensure EmbeddingService implements the interface.
var _ driven.EmbeddingService = (*EmbeddingService)(nil)

// Default configuration values.
const (
	DefaultBaseURL    = "https://api.voyageai.com/v1"
	DefaultModel      = "voyage-code-3"
	DefaultTimeout    = 120 * time.Second
	DefaultDimensions = 1024
)

// Config holds configuration for the Voyage embedding service.
type Config struct {
	// APIKey is the Voyage API key (required).
	APIKey string

	// BaseURL is the API base URL (default: https://api.voyageai.com/v1).
	BaseURL string

	// Model is the embedding model to use (default: voyage-code-3).
	Model string

	// Timeout is the request timeout (default: 120s).
	Timeout time.Duration

	// Dimensions is the embedding vector size (default: 1024).
	Dimensions int

	// RequestsPerMinute throttles requests client-side. Zero disables throttling.
	RequestsPerMinute int
}

// EmbeddingService generates embeddings using the Voyage API.
type EmbeddingService struct {
	api        *httpapi.Client
	model      string
	dimensions int
}

// embeddingRequest is the Voyage /embeddings request format.
type embeddingRequest struct {
	Input     []string `json:"input"`
	Model     string   `json:"model"`
	InputType string   `json:"input_type,omitempty"`
}

// embeddingResponse is the Voyage /embeddings response format.
type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

// NewEmbeddingService creates a new Voyage embedding service.
func NewEmbeddingService(cfg Config) (*EmbeddingService, error) {
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
	if cfg.Dimensions == 0 {
		cfg.Dimensions = DefaultDimensions
	}

	api := httpapi.New("voyage", cfg.BaseURL, cfg.Timeout)
	api.SetBearer(cfg.APIKey)
	api.Limiter = httpapi.NewLimiter(cfg.RequestsPerMinute)

	return &EmbeddingService{
		api:        api,
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
	}, nil
}

// EmbedBatch embeds texts in one request. A 429 answer is returned as a
// *domain.RateLimitError.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string, inputType domain.InputType) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var resp embeddingResponse
	err := s.api.PostJSON(ctx, "/embeddings", embeddingRequest{
		Input:     texts,
		Model:     s.model,
		InputType: inputType.String(),
	}, &resp)
	if err != nil {
		return nil, err
	}

	embeddings := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(texts) {
			return nil, fmt.Errorf("voyage: embedding index %d out of range", d.Index)
		}
		embeddings[d.Index] = d.Embedding
	}
	for i, e := range embeddings {
		if e == nil {
			return nil, fmt.Errorf("voyage: no embedding returned for input %d", i)
		}
	}

	return embeddings, nil
}

// Dimensions returns the embedding vector size.
func (s *EmbeddingService) Dimensions() int {
	return s.dimensions
}

// ModelName returns the name of the embedding model being used.
func (s *EmbeddingService) ModelName() string {
	return s.model
}

// Ping validates the key with a one-word query embedding.
func (s *EmbeddingService) Ping(ctx context.Context) error {
	if _, err := s.EmbedBatch(ctx, []string{"ping"}, domain.InputQuery); err != nil {
		return fmt.Errorf("voyage: ping failed: %w", err)
	}
	return nil
}

// Close releases resources.
func (s *EmbeddingService) Close() error {
	return nil
}

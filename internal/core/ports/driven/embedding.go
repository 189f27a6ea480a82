// Package driven provides interfaces for infrastructure adapters (secondary/outbound ports).
package driven

import (
	"context"

	"github.com/custodia-labs/pdfrag/internal/core/domain"
)

// EmbeddingService generates vector embeddings from text.
//
// Implementations may include:
//   - Voyage AI (voyage-code-3)
//   - OpenAI (text-embedding-3-small, text-embedding-3-large)
//   - Ollama (mxbai-embed-large, nomic-embed-text)
//
// When the provider rejects a request because of its rate limit, EmbedBatch
// must return an error matching domain.ErrRateLimited (usually a
// *domain.RateLimitError) so callers can back off and retry.
type EmbeddingService interface {
	// EmbedBatch returns one vector per input text, in input order.
	EmbedBatch(ctx context.Context, texts []string, inputType domain.InputType) ([][]float32, error)

	// Dimensions returns the embedding vector size (e.g., 1024, 1536).
	Dimensions() int

	// ModelName returns the name of the embedding model being used.
	ModelName() string

	// Ping validates the service is reachable by making a lightweight test request.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

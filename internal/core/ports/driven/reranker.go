package driven

import "context"

// Reranker scores query/document pairs with a cross-encoder.
type Reranker interface {
	// Predict returns one relevance score per document, in input order.
	// Higher is more relevant.
	Predict(ctx context.Context, query string, documents []string) ([]float64, error)

	// ModelName returns the name of the reranking model being used.
	ModelName() string

	// Close releases resources.
	Close() error
}

package driven

import (
	"context"

	"github.com/custodia-labs/pdfrag/internal/core/domain"
)

// Generator streams a completion for a single prompt.
//
// Implementations may include:
//   - Ollama (llama3.1 and other local models)
//   - OpenAI or any OpenAI-compatible server
type Generator interface {
	// Stream starts a generation request. The returned stream must be closed.
	Stream(ctx context.Context, req domain.GenerationRequest) (TokenStream, error)

	// ModelName returns the name of the model used when a request names none.
	ModelName() string

	// Ping validates the service is reachable without running inference.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// TokenStream is a pull-based sequence of generated text fragments.
// At most one fragment is buffered; the consumer drives the upstream read.
type TokenStream interface {
	// Next returns the next fragment. done is true once the upstream has
	// finished; token is empty in that case. A non-nil error ends the stream.
	Next() (token string, done bool, err error)

	// Close releases the upstream connection. Safe to call more than once.
	Close() error
}

package driving

import (
	"context"

	"github.com/custodia-labs/pdfrag/internal/core/domain"
)

// QueryService answers questions from the stored chunks.
type QueryService interface {
	// Ask embeds, retrieves and reranks, then starts generation.
	// Errors before generation are returned directly; errors during
	// streaming surface from Answer.Next.
	Ask(ctx context.Context, question string) (Answer, error)

	// Retrieve returns the reranked candidates for a question without generation.
	Retrieve(ctx context.Context, question string, topK int) ([]domain.Candidate, error)
}

// Answer is a streamed response to one question.
type Answer interface {
	// ID identifies the query in logs.
	ID() string

	// State returns the current pipeline state.
	State() domain.QueryState

	// Sources returns the candidates the answer is grounded on.
	Sources() []domain.Candidate

	// Next returns the next token. done is true once generation finished or
	// when the query ended empty.
	Next() (token string, done bool, err error)

	// Close stops generation and releases the upstream connection.
	Close() error
}

package services

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/custodia-labs/pdfrag/internal/core/domain"
	"github.com/custodia-labs/pdfrag/internal/core/ports/driven"
	"github.com/custodia-labs/pdfrag/internal/logger"
)

// DefaultRerankTopK is the number of candidates kept for the prompt.
const DefaultRerankTopK = 5

// Rerank scores candidates with the cross-encoder, sorts them by score
// descending (ties keep retriever order) and keeps the first topK.
// Empty input returns empty output without calling the model. A nil reranker
// keeps retriever order.
func Rerank(
	ctx context.Context,
	reranker driven.Reranker,
	query string,
	candidates []domain.Candidate,
	topK int,
) ([]domain.Candidate, error) {
	if len(candidates) == 0 {
		return []domain.Candidate{}, nil
	}
	if topK <= 0 {
		return nil, fmt.Errorf("%w: top-k must be positive, got %d", domain.ErrInvalidInput, topK)
	}

	ranked := slices.Clone(candidates)

	if reranker == nil {
		logger.Debug("No reranker configured, keeping retriever order")
		return ranked[:min(topK, len(ranked))], nil
	}

	docs := make([]string, len(ranked))
	for i := range ranked {
		docs[i] = ranked[i].Content
	}

	scores, err := reranker.Predict(ctx, query, docs)
	if err != nil {
		return nil, &domain.StageError{Stage: domain.StageReranking, Err: err}
	}
	if len(scores) != len(ranked) {
		return nil, &domain.StageError{
			Stage: domain.StageReranking,
			Err:   fmt.Errorf("reranker returned %d scores for %d documents", len(scores), len(ranked)),
		}
	}

	for i := range ranked {
		ranked[i].RerankScore = scores[i]
	}
	slices.SortStableFunc(ranked, func(a, b domain.Candidate) int {
		return cmp.Compare(b.RerankScore, a.RerankScore)
	})

	return ranked[:min(topK, len(ranked))], nil
}

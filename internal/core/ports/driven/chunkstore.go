package driven

import (
	"context"

	"github.com/custodia-labs/pdfrag/internal/core/domain"
)

// ChunkStore persists embedded chunks and serves hybrid retrieval.
// All failures wrap domain.ErrStore.
type ChunkStore interface {
	// EnsureSchema creates extensions, tables and indexes if missing.
	EnsureSchema(ctx context.Context) error

	// Exists reports whether any chunk is stored for filename.
	Exists(ctx context.Context, filename string) (bool, error)

	// BulkLoad writes rows in a single streaming transaction and returns the row count.
	BulkLoad(ctx context.Context, rows []domain.StoredChunk) (int64, error)

	// HybridSearch returns candidates ranked by fused lexical and vector score.
	// An empty result is not an error.
	HybridSearch(ctx context.Context, query string, vector []float32, opts domain.RetrievalOptions) ([]domain.Candidate, error)

	// Delete removes every chunk for filename and returns the count removed.
	Delete(ctx context.Context, filename string) (int64, error)

	// List summarises stored documents ordered by filename.
	List(ctx context.Context) ([]domain.DocumentInfo, error)

	// Close releases the connection pool.
	Close() error
}

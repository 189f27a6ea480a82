package driven

import (
	"time"

	"github.com/custodia-labs/pdfrag/internal/core/domain"
)

// MetricsRecorder receives pipeline measurements. Implementations must be
// safe for concurrent use. Services fall back to a no-op recorder when nil.
type MetricsRecorder interface {
	// EmbeddingRequest counts one provider call by outcome ("ok", "rate_limited", "error").
	EmbeddingRequest(outcome string)

	// ChunksEmbedded adds n freshly embedded chunks.
	ChunksEmbedded(n int)

	// CheckpointSaved counts a persisted checkpoint.
	CheckpointSaved()

	// DocumentProcessed counts one ingestion outcome.
	DocumentProcessed(status domain.IngestStatus)

	// StageDuration observes how long a pipeline stage took.
	StageDuration(stage domain.Stage, d time.Duration)
}

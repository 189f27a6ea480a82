package driven

import (
	"context"

	"github.com/custodia-labs/pdfrag/internal/core/domain"
)

// CheckpointStore persists embedding progress per filename.
// Save must be atomic: a reader sees either the previous or the new checkpoint.
type CheckpointStore interface {
	// Load returns the checkpoint for filename, or domain.ErrNotFound.
	Load(ctx context.Context, filename string) (*domain.Checkpoint, error)

	// Save replaces the checkpoint for cp.Filename.
	Save(ctx context.Context, cp *domain.Checkpoint) error

	// Delete removes the checkpoint. Deleting a missing checkpoint is not an error.
	Delete(ctx context.Context, filename string) error

	// List returns the filenames that have a checkpoint.
	List(ctx context.Context) ([]string, error)
}

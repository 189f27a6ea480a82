package driving

import (
	"context"

	"github.com/custodia-labs/pdfrag/internal/core/domain"
)

// IngestService loads PDFs into the chunk store.
type IngestService interface {
	// IngestFile runs extract, chunk, embed and load for one file. A file
	// already present in the store is skipped unless a checkpoint exists.
	IngestFile(ctx context.Context, path string) (domain.IngestReport, error)

	// IngestAll ingests files sequentially. A failing file does not stop the
	// others; the returned error joins every failure.
	IngestAll(ctx context.Context, paths []string) ([]domain.IngestReport, error)

	// Discover lists the files in dir the extractor can read, sorted by name.
	Discover(dir string) ([]string, error)

	// SupportedExtensions lists the file extensions ingestion accepts.
	SupportedExtensions() []string

	// DeleteDocument removes a document's chunks and any checkpoint.
	DeleteDocument(ctx context.Context, filename string) (int64, error)

	// ListDocuments summarises stored documents.
	ListDocuments(ctx context.Context) ([]domain.DocumentInfo, error)

	// ListCheckpoints returns filenames with pending checkpoints.
	ListCheckpoints(ctx context.Context) ([]string, error)

	// ClearCheckpoint discards a pending checkpoint.
	ClearCheckpoint(ctx context.Context, filename string) error
}

package driven

import (
	"context"

	"github.com/custodia-labs/pdfrag/internal/core/domain"
)

// Extractor renders a document into per-page structured text.
type Extractor interface {
	// Extract returns one Page per document page, 1-indexed and in order.
	// An unreadable document yields an error matching domain.ErrExtraction.
	Extract(ctx context.Context, path string) ([]domain.Page, error)

	// SupportedExtensions returns the file extensions this extractor handles (e.g. ".pdf").
	SupportedExtensions() []string
}

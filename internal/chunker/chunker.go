// Package chunker splits page text into overlapping fixed-size windows
// and groups items into batches.
package chunker

import (
	"fmt"
	"iter"
	"strings"

	"github.com/custodia-labs/pdfrag/internal/core/domain"
)

// DefaultChunkSize is the default number of characters per chunk.
const DefaultChunkSize = 1000

// DefaultChunkOverlap is the default number of overlapping characters.
const DefaultChunkOverlap = 200

// DefaultBatchSize is the default number of chunks grouped per batch.
const DefaultBatchSize = 128

// Chunk returns the sliding windows of text. Sizes count runes, not bytes.
//
// Windows start at 0, step, 2*step, ... where step = size - overlap. Each
// window is text[i:min(i+size, len)], and iteration stops after the window
// that reaches the end of the text. Arguments are validated eagerly; the
// windows are produced lazily and the sequence may be ranged over again.
func Chunk(text string, size, overlap int) (iter.Seq[string], error) {
	if err := validate(text, size, overlap); err != nil {
		return nil, err
	}

	runes := []rune(text)
	step := size - overlap

	return func(yield func(string) bool) {
		for i := 0; i < len(runes); i += step {
			end := min(i+size, len(runes))
			if !yield(string(runes[i:end])) {
				return
			}
			if end >= len(runes) {
				return
			}
		}
	}, nil
}

func validate(text string, size, overlap int) error {
	switch {
	case text == "":
		return fmt.Errorf("%w: text is empty", domain.ErrInvalidInput)
	case size <= 0:
		return fmt.Errorf("%w: chunk size must be positive, got %d", domain.ErrInvalidInput, size)
	case overlap < 0:
		return fmt.Errorf("%w: overlap must not be negative, got %d", domain.ErrInvalidInput, overlap)
	case overlap >= size:
		return fmt.Errorf("%w: overlap %d must be smaller than chunk size %d", domain.ErrInvalidInput, overlap, size)
	}
	return nil
}

// Batch yields consecutive groups of at most size items, preserving order.
// The final group may be shorter.
func Batch[T any](items []T, size int) (iter.Seq[[]T], error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: batch size must be positive, got %d", domain.ErrInvalidInput, size)
	}

	return func(yield func([]T) bool) {
		for i := 0; i < len(items); i += size {
			end := min(i+size, len(items))
			if !yield(items[i:end]) {
				return
			}
		}
	}, nil
}

// Processor chunks whole documents with a fixed window configuration.
type Processor struct {
	chunkSize int
	overlap   int
}

// Option configures the chunker processor.
type Option func(*Processor)

// WithChunkSize sets the chunk size in characters.
func WithChunkSize(size int) Option {
	return func(p *Processor) {
		p.chunkSize = size
	}
}

// WithOverlap sets the overlap between chunks in characters.
func WithOverlap(overlap int) Option {
	return func(p *Processor) {
		p.overlap = overlap
	}
}

// New creates a processor. Invalid sizes are reported by ChunkPages.
func New(opts ...Option) *Processor {
	p := &Processor{
		chunkSize: DefaultChunkSize,
		overlap:   DefaultChunkOverlap,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// ChunkPages chunks every page of a document and tags each chunk with its
// filename and page number. Pages without text contribute no chunks.
func (p *Processor) ChunkPages(filename string, pages []domain.Page) ([]string, []domain.ChunkMeta, error) {
	if err := validate("-", p.chunkSize, p.overlap); err != nil {
		return nil, nil, err
	}

	var (
		chunks []string
		meta   []domain.ChunkMeta
	)
	for _, page := range pages {
		if strings.TrimSpace(page.Text) == "" {
			continue
		}
		windows, err := Chunk(page.Text, p.chunkSize, p.overlap)
		if err != nil {
			return nil, nil, fmt.Errorf("chunk page %d: %w", page.Number, err)
		}
		for w := range windows {
			chunks = append(chunks, w)
			meta = append(meta, domain.ChunkMeta{Filename: filename, PageNumber: page.Number})
		}
	}

	return chunks, meta, nil
}

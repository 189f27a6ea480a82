package domain

import "fmt"

// Checkpoint is the durable progress record for one file's embedding run.
//
// Chunks and Metadata are parallel and complete for the file. Vectors holds
// the embeddings produced so far, in chunk order, so the next chunk to embed
// is at index len(Vectors).
type Checkpoint struct {
	Filename string      `json:"filename"`
	Chunks   []string    `json:"chunks"`
	Metadata []ChunkMeta `json:"metadata"`
	Vectors  [][]float32 `json:"vectors"`
}

// Cursor returns the index of the first chunk without an embedding.
func (c *Checkpoint) Cursor() int {
	return len(c.Vectors)
}

// Complete reports whether every chunk has an embedding.
func (c *Checkpoint) Complete() bool {
	return len(c.Vectors) == len(c.Chunks)
}

// Validate checks the structural invariants of a checkpoint.
func (c *Checkpoint) Validate() error {
	if c.Filename == "" {
		return fmt.Errorf("%w: checkpoint has no filename", ErrInvalidInput)
	}
	if len(c.Chunks) != len(c.Metadata) {
		return fmt.Errorf("%w: checkpoint for %s has %d chunks but %d metadata entries",
			ErrInvalidInput, c.Filename, len(c.Chunks), len(c.Metadata))
	}
	if len(c.Vectors) > len(c.Chunks) {
		return fmt.Errorf("%w: checkpoint for %s has %d vectors for %d chunks",
			ErrInvalidInput, c.Filename, len(c.Vectors), len(c.Chunks))
	}
	return nil
}

// Rows pairs every chunk with its embedding for loading.
// Only valid when the checkpoint is complete.
func (c *Checkpoint) Rows() ([]StoredChunk, error) {
	if !c.Complete() {
		return nil, fmt.Errorf("%w: checkpoint for %s has %d of %d embeddings",
			ErrInvalidInput, c.Filename, len(c.Vectors), len(c.Chunks))
	}
	rows := make([]StoredChunk, len(c.Chunks))
	for i := range c.Chunks {
		rows[i] = StoredChunk{
			Content:    c.Chunks[i],
			Embedding:  c.Vectors[i],
			Filename:   c.Metadata[i].Filename,
			PageNumber: c.Metadata[i].PageNumber,
		}
	}
	return rows, nil
}

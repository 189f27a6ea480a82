package domain

import (
	"path/filepath"
	"time"
)

// Page is the rendered text of one PDF page.
// Number is 1-indexed; Text may be empty for image-only pages.
type Page struct {
	Number int
	Text   string
}

// ChunkMeta records where a chunk came from.
type ChunkMeta struct {
	Filename   string `json:"filename"`
	PageNumber int    `json:"page_number"`
}

// StoredChunk is the persisted unit of retrieval: one chunk with its embedding.
type StoredChunk struct {
	Content    string
	Embedding  []float32
	Filename   string
	PageNumber int
}

// Candidate is a retrieved chunk, scored by the hybrid retriever and optionally the reranker.
type Candidate struct {
	ID          int64   `json:"id"`
	Content     string  `json:"content"`
	Filename    string  `json:"filename"`
	PageNumber  int     `json:"page_number"`
	Score       float64 `json:"score"`
	RerankScore float64 `json:"rerank_score"`
}

// DocumentInfo summarises a stored document.
type DocumentInfo struct {
	Filename string `json:"filename"`
	Chunks   int    `json:"chunks"`
	Pages    int    `json:"pages"`
}

// InputType tells the embedding provider whether text is a query or a stored document.
type InputType string

// Embedding input types.
const (
	InputQuery    InputType = "query"
	InputDocument InputType = "document"
)

// String returns the string representation.
func (t InputType) String() string {
	return string(t)
}

// IngestStatus is the outcome of ingesting one file.
type IngestStatus string

// Ingestion outcomes.
const (
	IngestLoaded  IngestStatus = "loaded"
	IngestSkipped IngestStatus = "skipped"
	IngestFailed  IngestStatus = "failed"
)

// IngestReport describes what happened to one file during ingestion.
type IngestReport struct {
	Filename string
	Status   IngestStatus
	Chunks   int
	Resumed  bool
	Duration time.Duration
	Err      error
}

// FilenameOf returns the document identity for a path: its base name.
func FilenameOf(path string) string {
	return filepath.Base(path)
}
